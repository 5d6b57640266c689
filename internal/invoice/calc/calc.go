package calc

import "strings"

// Line is one invoice line in integer cents.
type Line struct {
	ItemID      *int64
	Description string
	Quantity    int64
	UnitPrice   int64
	Taxable     bool
}

// FeePlanInput carries the fee configuration applied on top of the subtotal.
type FeePlanInput struct {
	Mode                string
	ConvenienceFeeCents int64
	ServiceFeeBps       int64
}

// Totals are the computed invoice amounts in integer cents.
type Totals struct {
	Subtotal  int64 `json:"subtotal"`
	FeeAmount int64 `json:"fee_amount"`
	TaxAmount int64 `json:"tax_amount"`
	Total     int64 `json:"total"`
}

const (
	FeeModeNone        = "none"
	FeeModeConvenience = "convenience"
	FeeModeService     = "service"
)

var feeRowMarkers = []string{"fee", "convenience", "service"}

// Amount returns the line amount, quantity times unit price.
func (l Line) Amount() int64 {
	return l.Quantity * l.UnitPrice
}

// Compute derives invoice totals from lines, an optional fee plan and a tax
// rate in basis points. All arithmetic is integer cents; bps amounts round
// half-up. Tax applies to taxable lines only, never to the fee.
func Compute(items []Line, plan *FeePlanInput, rateBps int64) Totals {
	var totals Totals
	var taxableBase int64
	for _, line := range items {
		amount := line.Amount()
		totals.Subtotal += amount
		if line.Taxable {
			taxableBase += amount
		}
	}

	if plan != nil {
		switch plan.Mode {
		case FeeModeConvenience:
			if plan.ConvenienceFeeCents > 0 {
				totals.FeeAmount = plan.ConvenienceFeeCents
			}
		case FeeModeService:
			if plan.ServiceFeeBps > 0 {
				totals.FeeAmount = roundBps(totals.Subtotal, plan.ServiceFeeBps)
			}
		}
	}

	if rateBps > 0 && taxableBase > 0 {
		totals.TaxAmount = roundBps(taxableBase, rateBps)
	}

	totals.Total = totals.Subtotal + totals.FeeAmount + totals.TaxAmount
	return totals
}

// FilterFeeRows drops legacy fee rows that predate the fee_cents column:
// lines without a catalog reference whose description mentions a fee.
// Applying it twice yields the same result.
func FilterFeeRows(items []Line) []Line {
	kept := make([]Line, 0, len(items))
	for _, line := range items {
		if IsFeeRow(line) {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}

// IsFeeRow reports whether a line looks like a legacy fee row.
func IsFeeRow(line Line) bool {
	if line.ItemID != nil {
		return false
	}
	desc := strings.ToLower(line.Description)
	for _, marker := range feeRowMarkers {
		if strings.Contains(desc, marker) {
			return true
		}
	}
	return false
}

// roundBps applies a basis-point rate to a non-negative base with
// round-half-up semantics on the cent.
func roundBps(base, bps int64) int64 {
	if base <= 0 || bps <= 0 {
		return 0
	}
	return (base*bps + 5000) / 10000
}
