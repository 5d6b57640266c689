package calc

import "testing"

func scenarioLines() []Line {
	return []Line{
		{Description: "Consulting", Quantity: 2, UnitPrice: 500, Taxable: true},
		{Description: "Materials", Quantity: 1, UnitPrice: 1000},
	}
}

func TestComputeTaxOnTaxableLinesOnly(t *testing.T) {
	totals := Compute(scenarioLines(), nil, 700)
	if totals.Subtotal != 2000 {
		t.Fatalf("expected subtotal 2000, got %d", totals.Subtotal)
	}
	if totals.TaxAmount != 70 {
		t.Fatalf("expected tax 70 on the taxable base, got %d", totals.TaxAmount)
	}
	if totals.Total != 2070 {
		t.Fatalf("expected total 2070, got %d", totals.Total)
	}
}

func TestComputeConvenienceFee(t *testing.T) {
	plan := &FeePlanInput{Mode: FeeModeConvenience, ConvenienceFeeCents: 199}
	totals := Compute(scenarioLines(), plan, 700)
	if totals.FeeAmount != 199 {
		t.Fatalf("expected fee 199, got %d", totals.FeeAmount)
	}
	if totals.Total != 2269 {
		t.Fatalf("expected total 2269, got %d", totals.Total)
	}
}

func TestComputeServiceFee(t *testing.T) {
	plan := &FeePlanInput{Mode: FeeModeService, ServiceFeeBps: 250}
	totals := Compute(scenarioLines(), plan, 700)
	if totals.FeeAmount != 50 {
		t.Fatalf("expected fee 50, got %d", totals.FeeAmount)
	}
	if totals.TaxAmount != 70 {
		t.Fatalf("expected tax unaffected by fee, got %d", totals.TaxAmount)
	}
	if totals.Total != 2120 {
		t.Fatalf("expected total 2120, got %d", totals.Total)
	}
}

func TestComputeRoundsHalfUp(t *testing.T) {
	items := []Line{{Description: "Widget", Quantity: 1, UnitPrice: 101, Taxable: true}}
	totals := Compute(items, nil, 50)
	// 101 * 50 / 10000 = 0.505, rounds up to 1.
	if totals.TaxAmount != 1 {
		t.Fatalf("expected tax 1, got %d", totals.TaxAmount)
	}
}

func TestComputeZeroContributions(t *testing.T) {
	plan := &FeePlanInput{Mode: FeeModeService, ServiceFeeBps: 250}
	totals := Compute(nil, plan, 700)
	if totals != (Totals{}) {
		t.Fatalf("expected zero totals, got %+v", totals)
	}

	totals = Compute(scenarioLines(), &FeePlanInput{Mode: FeeModeNone}, 0)
	if totals.FeeAmount != 0 || totals.TaxAmount != 0 {
		t.Fatalf("expected no fee or tax, got %+v", totals)
	}
	if totals.Total != totals.Subtotal {
		t.Fatalf("expected total to equal subtotal, got %+v", totals)
	}
}

func TestFilterFeeRows(t *testing.T) {
	itemID := int64(42)
	items := []Line{
		{Description: "Consulting", Quantity: 1, UnitPrice: 1000},
		{Description: "Convenience Fee", Quantity: 1, UnitPrice: 199},
		{Description: "service charge", Quantity: 1, UnitPrice: 50},
		{ItemID: &itemID, Description: "Fee schedule review", Quantity: 1, UnitPrice: 300},
	}
	kept := FilterFeeRows(items)
	if len(kept) != 2 {
		t.Fatalf("expected 2 kept lines, got %d", len(kept))
	}
	if kept[0].Description != "Consulting" {
		t.Fatalf("unexpected first line %q", kept[0].Description)
	}
	// Catalog-backed lines are never treated as fee rows.
	if kept[1].ItemID == nil || *kept[1].ItemID != itemID {
		t.Fatalf("expected catalog line kept, got %+v", kept[1])
	}

	again := FilterFeeRows(kept)
	if len(again) != len(kept) {
		t.Fatalf("expected filter to be idempotent")
	}
}
