package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aspirepayments/aspire-payments-web/internal/clock"
	"github.com/aspirepayments/aspire-payments-web/internal/invoice/calc"
	invoicedomain "github.com/aspirepayments/aspire-payments-web/internal/invoice/domain"
	"github.com/aspirepayments/aspire-payments-web/internal/invoice/terms"
	settingsdomain "github.com/aspirepayments/aspire-payments-web/internal/settings/domain"
	tenantdomain "github.com/aspirepayments/aspire-payments-web/internal/tenant/domain"
	"github.com/aspirepayments/aspire-payments-web/internal/validation"
)

const defaultListLimit = 50

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Tenant   tenantdomain.Provisioner
	Settings settingsdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	tenant   tenantdomain.Provisioner
	settings settingsdomain.Service
}

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		tenant:   p.Tenant,
		settings: p.Settings,
	}
}

func (s *Service) Create(ctx context.Context, merchantID snowflake.ID, input invoicedomain.CreateInput) (invoicedomain.Invoice, error) {
	var out invoicedomain.Invoice

	if err := validateLines(input.Items, &input.CustomerID); err != nil {
		return out, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		merchant, err := s.tenant.EnsureMerchantTx(ctx, tx, merchantID)
		if err != nil {
			return err
		}

		var customerExists int64
		if err := tx.WithContext(ctx).
			Table("customers").
			Where("merchant_id = ? AND id = ?", merchant.ID, input.CustomerID).
			Count(&customerExists).Error; err != nil {
			return err
		}
		if customerExists == 0 {
			return invoicedomain.ErrMissingCustomer
		}

		now := s.clock.Now().UTC()
		issueDate := now
		if input.IssueDate != nil {
			issueDate = input.IssueDate.UTC()
		}

		term := input.Term
		if term == nil && input.DueDate == nil {
			if def, err := s.settings.DefaultPaymentTerm(ctx, merchant.ID); err == nil && def != nil {
				term = &def.Name
			}
		}

		plan, planID, rateBps, rateID, err := s.resolveFeeAndTax(ctx, merchant.ID, input.FeePlanID, input.TaxRateID, true)
		if err != nil {
			return err
		}

		lines := calc.FilterFeeRows(toCalcLines(input.Items))
		totals := calc.Compute(lines, plan, rateBps)

		id := s.genID.Generate()
		status := invoicedomain.StatusDraft
		if input.Send {
			status = invoicedomain.StatusOpen
		}

		out = invoicedomain.Invoice{
			ID:           id,
			MerchantID:   merchant.ID,
			CustomerID:   input.CustomerID,
			Number:       invoiceNumber(id),
			Status:       status,
			IssueDate:    issueDate,
			DueDate:      terms.DueDate(issueDate, derefOr(term, ""), input.DueDate),
			Term:         term,
			Currency:     currencyOr(input.Currency),
			FeePlanID:    planID,
			TaxRateID:    rateID,
			Subtotal:     totals.Subtotal,
			FeeCents:     totals.FeeAmount,
			TaxTotal:     totals.TaxAmount,
			Total:        totals.Total,
			Message:      input.Message,
			InternalNote: input.InternalNote,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.WithContext(ctx).Create(&out).Error; err != nil {
			return err
		}
		items, err := s.insertItems(ctx, tx, out.ID, input.Items, now)
		if err != nil {
			return err
		}
		out.Items = items
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.log.Info("created invoice",
		zap.String("invoice_id", out.ID.String()),
		zap.String("number", out.Number),
		zap.String("status", out.Status),
		zap.Int64("total", out.Total),
	)
	return out, nil
}

func (s *Service) Update(ctx context.Context, merchantID snowflake.ID, id snowflake.ID, input invoicedomain.UpdateInput) (invoicedomain.Invoice, error) {
	var out invoicedomain.Invoice

	if input.Status != nil && !invoicedomain.ValidStatus(*input.Status) {
		return out, invoicedomain.ErrInvalidStatus
	}
	if input.Items != nil {
		if err := validateLines(input.Items, nil); err != nil {
			return out, err
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row invoicedomain.Invoice
		if err := findInvoice(ctx, tx, &row, merchantID, id); err != nil {
			return err
		}
		if row.Status == invoicedomain.StatusVoid {
			return invoicedomain.ErrInvoiceVoid
		}

		dueInputsChanged := input.IssueDate != nil || input.Term != nil || input.DueDate != nil

		if input.CustomerID != nil {
			row.CustomerID = *input.CustomerID
		}
		if input.IssueDate != nil {
			row.IssueDate = input.IssueDate.UTC()
		}
		if input.Term != nil {
			row.Term = input.Term
		}
		if input.Currency != nil {
			row.Currency = currencyOr(input.Currency)
		}
		if input.ClearFeePlan {
			row.FeePlanID = nil
		} else if input.FeePlanID != nil {
			row.FeePlanID = input.FeePlanID
		}
		if input.ClearTaxRate {
			row.TaxRateID = nil
		} else if input.TaxRateID != nil {
			row.TaxRateID = input.TaxRateID
		}
		if input.Message != nil {
			row.Message = input.Message
		}
		if input.InternalNote != nil {
			row.InternalNote = input.InternalNote
		}

		if dueInputsChanged {
			row.DueDate = terms.DueDate(row.IssueDate, derefOr(row.Term, ""), input.DueDate)
		}

		now := s.clock.Now().UTC()

		// Full replace: recreate the entire line set so totals always match
		// stored items.
		var stored []invoicedomain.InvoiceItem
		if input.Items != nil {
			if err := tx.WithContext(ctx).
				Where("invoice_id = ?", row.ID).
				Delete(&invoicedomain.InvoiceItem{}).Error; err != nil {
				return err
			}
			items, err := s.insertItems(ctx, tx, row.ID, input.Items, now)
			if err != nil {
				return err
			}
			stored = items
		} else {
			if err := tx.WithContext(ctx).
				Where("invoice_id = ?", row.ID).
				Order("id").
				Find(&stored).Error; err != nil {
				return err
			}
		}

		plan, _, rateBps, _, err := s.resolveFeeAndTax(ctx, row.MerchantID, row.FeePlanID, row.TaxRateID, false)
		if err != nil {
			return err
		}
		lines := calc.FilterFeeRows(itemsToCalcLines(stored))
		totals := calc.Compute(lines, plan, rateBps)
		row.Subtotal = totals.Subtotal
		row.FeeCents = totals.FeeAmount
		row.TaxTotal = totals.TaxAmount
		row.Total = totals.Total

		if input.Status != nil {
			row.Status = *input.Status
			if row.Status == invoicedomain.StatusVoid {
				voidedAt := now
				row.VoidedAt = &voidedAt
			}
		} else if row.Status == invoicedomain.StatusDraft &&
			row.CustomerID != 0 && !row.IssueDate.IsZero() && len(stored) > 0 {
			row.Status = invoicedomain.StatusOpen
		}

		row.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(&row).Error; err != nil {
			return err
		}
		row.Items = stored
		out = row
		return nil
	})
	return out, err
}

func (s *Service) Patch(ctx context.Context, merchantID snowflake.ID, id snowflake.ID, input invoicedomain.PatchInput) (invoicedomain.Invoice, error) {
	var out invoicedomain.Invoice

	if input.Status != nil && !invoicedomain.ValidStatus(*input.Status) {
		return out, invoicedomain.ErrInvalidStatus
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row invoicedomain.Invoice
		if err := findInvoice(ctx, tx, &row, merchantID, id); err != nil {
			return err
		}
		if row.Status == invoicedomain.StatusVoid {
			return invoicedomain.ErrInvoiceVoid
		}

		now := s.clock.Now().UTC()
		if input.Status != nil {
			row.Status = *input.Status
			if row.Status == invoicedomain.StatusVoid {
				voidedAt := now
				row.VoidedAt = &voidedAt
			}
		}
		if input.AmountPaid != nil {
			paid := *input.AmountPaid
			if paid < 0 {
				paid = 0
			}
			row.AmountPaid = paid
		}
		row.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(&row).Error; err != nil {
			return err
		}
		out = row
		return nil
	})
	return out, err
}

func (s *Service) Void(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) (invoicedomain.Invoice, error) {
	status := invoicedomain.StatusVoid
	return s.Patch(ctx, merchantID, id, invoicedomain.PatchInput{Status: &status})
}

func (s *Service) Get(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) (invoicedomain.Invoice, error) {
	var row invoicedomain.Invoice
	if err := findInvoice(ctx, s.db, &row, merchantID, id); err != nil {
		return row, err
	}
	if err := s.db.WithContext(ctx).
		Where("invoice_id = ?", row.ID).
		Order("id").
		Find(&row.Items).Error; err != nil {
		return row, err
	}
	return row, nil
}

func (s *Service) List(ctx context.Context, merchantID snowflake.ID, input invoicedomain.ListInput) (invoicedomain.ListResult, error) {
	limit := input.Limit
	if limit <= 0 || limit > 200 {
		limit = defaultListLimit
	}

	query := s.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("id DESC").
		Limit(limit + 1)
	if input.Cursor != 0 {
		query = query.Where("id < ?", input.Cursor)
	}
	if status := strings.TrimSpace(input.Status); status != "" {
		if !invoicedomain.ValidStatus(status) {
			return invoicedomain.ListResult{}, invoicedomain.ErrInvalidStatus
		}
		query = query.Where("status = ?", status)
	}
	if input.CustomerID != 0 {
		query = query.Where("customer_id = ?", input.CustomerID)
	}

	var rows []invoicedomain.Invoice
	if err := query.Find(&rows).Error; err != nil {
		return invoicedomain.ListResult{}, err
	}
	result := invoicedomain.ListResult{Invoices: rows}
	if len(rows) > limit {
		result.Invoices = rows[:limit]
		result.NextCursor = rows[limit-1].ID
	}
	return result, nil
}

func (s *Service) ApplySettlement(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID, delta int64) error {
	if tx == nil {
		tx = s.db
	}

	var row invoicedomain.Invoice
	err := tx.WithContext(ctx).First(&row, "id = ?", invoiceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invoicedomain.ErrInvoiceNotFound
		}
		return err
	}
	if row.Status == invoicedomain.StatusVoid {
		return invoicedomain.ErrInvoiceVoid
	}

	paid := row.AmountPaid + delta
	if paid < 0 {
		paid = 0
	}

	now := s.clock.Now().UTC()
	updates := map[string]any{
		"amount_paid": paid,
		"updated_at":  now,
	}
	switch {
	case row.Total > 0 && paid >= row.Total:
		updates["status"] = invoicedomain.StatusPaid
		updates["paid_at"] = now
	case paid > 0:
		updates["status"] = invoicedomain.StatusPartial
		updates["paid_at"] = nil
	default:
		updates["status"] = invoicedomain.StatusOpen
		updates["paid_at"] = nil
	}

	return tx.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ?", invoiceID).
		Updates(updates).Error
}

func (s *Service) RepairFees(ctx context.Context, merchantID snowflake.ID) (int, error) {
	repaired := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoices []invoicedomain.Invoice
		if err := tx.WithContext(ctx).
			Where("merchant_id = ?", merchantID).
			Find(&invoices).Error; err != nil {
			return err
		}

		for i := range invoices {
			inv := &invoices[i]
			var items []invoicedomain.InvoiceItem
			if err := tx.WithContext(ctx).
				Where("invoice_id = ?", inv.ID).
				Order("id").
				Find(&items).Error; err != nil {
				return err
			}

			feeRowIDs := make([]snowflake.ID, 0)
			kept := make([]invoicedomain.InvoiceItem, 0, len(items))
			for _, item := range items {
				if calc.IsFeeRow(itemToCalcLine(item)) {
					feeRowIDs = append(feeRowIDs, item.ID)
					continue
				}
				kept = append(kept, item)
			}
			if len(feeRowIDs) == 0 {
				continue
			}

			if err := tx.WithContext(ctx).
				Where("id IN ?", feeRowIDs).
				Delete(&invoicedomain.InvoiceItem{}).Error; err != nil {
				return err
			}

			plan, _, rateBps, _, err := s.resolveFeeAndTax(ctx, inv.MerchantID, inv.FeePlanID, inv.TaxRateID, false)
			if err != nil {
				return err
			}
			totals := calc.Compute(itemsToCalcLines(kept), plan, rateBps)
			if err := tx.WithContext(ctx).
				Model(&invoicedomain.Invoice{}).
				Where("id = ?", inv.ID).
				Updates(map[string]any{
					"subtotal":   totals.Subtotal,
					"fee_cents":  totals.FeeAmount,
					"tax_total":  totals.TaxAmount,
					"total":      totals.Total,
					"updated_at": s.clock.Now().UTC(),
				}).Error; err != nil {
				return err
			}
			repaired++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if repaired > 0 {
		s.log.Info("repaired legacy fee rows", zap.Int("invoices", repaired))
	}
	return repaired, nil
}

func (s *Service) Reports(ctx context.Context, merchantID snowflake.ID, from, to time.Time) (invoicedomain.ReportSummary, error) {
	var summary invoicedomain.ReportSummary
	now := s.clock.Now().UTC()
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.AddDate(-1, 0, 0)
	}

	// Revenue: collected amounts on non-void invoices, bucketed by issue
	// month. Bucketing happens in Go to stay portable across dialects.
	var paidRows []invoicedomain.Invoice
	if err := s.db.WithContext(ctx).
		Where("merchant_id = ? AND status != ? AND amount_paid > 0", merchantID, invoicedomain.StatusVoid).
		Where("issue_date >= ? AND issue_date <= ?", from, to).
		Order("issue_date").
		Find(&paidRows).Error; err != nil {
		return summary, err
	}
	byMonth := map[string]int64{}
	order := make([]string, 0)
	for _, row := range paidRows {
		month := row.IssueDate.UTC().Format("2006-01")
		if _, seen := byMonth[month]; !seen {
			order = append(order, month)
		}
		byMonth[month] += row.AmountPaid
	}
	for _, month := range order {
		summary.Revenue = append(summary.Revenue, invoicedomain.RevenuePoint{Month: month, Revenue: byMonth[month]})
	}

	var openRows []invoicedomain.Invoice
	if err := s.db.WithContext(ctx).
		Where("merchant_id = ? AND status IN ?", merchantID,
			[]string{invoicedomain.StatusOpen, invoicedomain.StatusPartial, invoicedomain.StatusOverdue}).
		Find(&openRows).Error; err != nil {
		return summary, err
	}
	for _, row := range openRows {
		outstanding := row.Total - row.AmountPaid
		if outstanding <= 0 {
			continue
		}
		summary.OpenReceivables += outstanding
		overdueDays := int(now.Sub(row.DueDate.UTC()).Hours() / 24)
		switch {
		case overdueDays <= 30:
			summary.Aging.Current += outstanding
		case overdueDays <= 60:
			summary.Aging.Days31to60 += outstanding
		case overdueDays <= 90:
			summary.Aging.Days61to90 += outstanding
		default:
			summary.Aging.Over90 += outstanding
		}
	}

	if err := s.db.WithContext(ctx).
		Table("payments").
		Where("merchant_id = ? AND created_at >= ? AND created_at <= ?", merchantID, from, to).
		Count(&summary.TransactionCount).Error; err != nil {
		return summary, err
	}

	return summary, nil
}

func (s *Service) resolveFeeAndTax(
	ctx context.Context,
	merchantID snowflake.ID,
	feePlanID, taxRateID *snowflake.ID,
	applyDefaults bool,
) (*calc.FeePlanInput, *snowflake.ID, int64, *snowflake.ID, error) {
	var plan *calc.FeePlanInput
	planID := feePlanID
	if feePlanID != nil {
		stored, err := s.settings.GetFeePlan(ctx, merchantID, *feePlanID)
		if err != nil {
			return nil, nil, 0, nil, err
		}
		plan = feePlanInput(stored)
	} else if applyDefaults {
		def, err := s.settings.DefaultFeePlan(ctx, merchantID)
		if err != nil {
			return nil, nil, 0, nil, err
		}
		if def != nil {
			plan = feePlanInput(*def)
			planID = &def.ID
		}
	}

	var rateBps int64
	rateID := taxRateID
	if taxRateID != nil {
		stored, err := s.settings.GetTaxRate(ctx, merchantID, *taxRateID)
		if err != nil {
			return nil, nil, 0, nil, err
		}
		rateBps = stored.RateBps
	} else if applyDefaults {
		def, err := s.settings.DefaultTaxRate(ctx, merchantID)
		if err != nil {
			return nil, nil, 0, nil, err
		}
		if def != nil {
			rateBps = def.RateBps
			rateID = &def.ID
		}
	}
	return plan, planID, rateBps, rateID, nil
}

func (s *Service) insertItems(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID, inputs []invoicedomain.LineInput, now time.Time) ([]invoicedomain.InvoiceItem, error) {
	items := make([]invoicedomain.InvoiceItem, 0, len(inputs))
	for _, line := range inputs {
		description := strings.TrimSpace(line.Description)
		if description == "" && line.ItemID != nil {
			var name string
			if err := tx.WithContext(ctx).
				Table("items").
				Select("name").
				Where("id = ?", *line.ItemID).
				Scan(&name).Error; err == nil && name != "" {
				description = name
			}
		}
		if description == "" {
			description = "Item"
		}
		items = append(items, invoicedomain.InvoiceItem{
			ID:          s.genID.Generate(),
			InvoiceID:   invoiceID,
			ItemID:      line.ItemID,
			Description: description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Amount:      line.Quantity * line.UnitPrice,
			Taxable:     line.Taxable,
			CreatedAt:   now,
		})
	}
	if len(items) == 0 {
		return items, nil
	}
	if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func validateLines(items []invoicedomain.LineInput, customerID *snowflake.ID) error {
	var violations validation.Collector
	if customerID != nil && *customerID == 0 {
		violations.Add("customer_id", "customer is required")
	}
	if len(items) == 0 {
		violations.Add("items", "at least one line item is required")
	}
	for i, line := range items {
		prefix := "items[" + strconv.Itoa(i) + "]"
		if line.Quantity <= 0 {
			violations.Add(prefix+".quantity", "quantity must be positive")
		}
		if line.UnitPrice < 0 {
			violations.Add(prefix+".unit_price", "unit price must not be negative")
		}
	}
	return violations.Err()
}

func toCalcLines(items []invoicedomain.LineInput) []calc.Line {
	lines := make([]calc.Line, 0, len(items))
	for _, item := range items {
		var itemID *int64
		if item.ItemID != nil {
			raw := int64(*item.ItemID)
			itemID = &raw
		}
		lines = append(lines, calc.Line{
			ItemID:      itemID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Taxable:     item.Taxable,
		})
	}
	return lines
}

func itemsToCalcLines(items []invoicedomain.InvoiceItem) []calc.Line {
	lines := make([]calc.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, itemToCalcLine(item))
	}
	return lines
}

func itemToCalcLine(item invoicedomain.InvoiceItem) calc.Line {
	var itemID *int64
	if item.ItemID != nil {
		raw := int64(*item.ItemID)
		itemID = &raw
	}
	return calc.Line{
		ItemID:      itemID,
		Description: item.Description,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		Taxable:     item.Taxable,
	}
}

func feePlanInput(plan settingsdomain.FeePlan) *calc.FeePlanInput {
	return &calc.FeePlanInput{
		Mode:                plan.Mode,
		ConvenienceFeeCents: plan.ConvenienceFeeCents,
		ServiceFeeBps:       plan.ServiceFeeBps,
	}
}

func findInvoice(ctx context.Context, db *gorm.DB, out *invoicedomain.Invoice, merchantID, id snowflake.ID) error {
	err := db.WithContext(ctx).
		Where("merchant_id = ? AND id = ?", merchantID, id).
		First(out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return invoicedomain.ErrInvoiceNotFound
	}
	return err
}

func invoiceNumber(id snowflake.ID) string {
	return "INV-" + strings.ToUpper(strconv.FormatInt(int64(id), 36))
}

func currencyOr(value *string) string {
	if value == nil {
		return "USD"
	}
	currency := strings.ToUpper(strings.TrimSpace(*value))
	if currency == "" {
		return "USD"
	}
	return currency
}

func derefOr(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	return *value
}
