package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aspirepayments/aspire-payments-web/internal/clock"
	invoicedomain "github.com/aspirepayments/aspire-payments-web/internal/invoice/domain"
	settingsdomain "github.com/aspirepayments/aspire-payments-web/internal/settings/domain"
	settingssvc "github.com/aspirepayments/aspire-payments-web/internal/settings/service"
	tenantdomain "github.com/aspirepayments/aspire-payments-web/internal/tenant/domain"
	"github.com/aspirepayments/aspire-payments-web/internal/validation"
)

type stubProvisioner struct{}

func (stubProvisioner) EnsureMerchant(ctx context.Context, id snowflake.ID) (tenantdomain.Merchant, error) {
	return tenantdomain.Merchant{ID: id}, nil
}

func (stubProvisioner) EnsureMerchantTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (tenantdomain.Merchant, error) {
	return tenantdomain.Merchant{ID: id}, nil
}

func (stubProvisioner) ConnectGateway(ctx context.Context, merchantID snowflake.ID, gateway, apiKey string) error {
	return nil
}

func (stubProvisioner) GatewayKey(ctx context.Context, merchantID snowflake.ID, gateway string) (string, error) {
	return "", nil
}

func setupInvoiceTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS customers (
			id BIGINT PRIMARY KEY,
			merchant_id BIGINT NOT NULL,
			first_name TEXT, last_name TEXT, company TEXT,
			email TEXT, phone TEXT,
			address1 TEXT, address2 TEXT, city TEXT, state TEXT, postal TEXT,
			country TEXT NOT NULL DEFAULT 'US',
			terms TEXT NOT NULL DEFAULT 'Net 30',
			created_at TIMESTAMP, updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id BIGINT PRIMARY KEY,
			merchant_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			unit_price BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP, updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS fee_plans (
			id BIGINT PRIMARY KEY,
			merchant_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			mode TEXT NOT NULL DEFAULT 'none',
			convenience_fee_cents BIGINT NOT NULL DEFAULT 0,
			service_fee_bps BIGINT NOT NULL DEFAULT 0,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP, updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tax_rates (
			id BIGINT PRIMARY KEY,
			merchant_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			rate_bps BIGINT NOT NULL DEFAULT 0,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP, updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS payment_terms (
			id BIGINT PRIMARY KEY,
			merchant_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			days INT NOT NULL DEFAULT 0,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP, updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			id BIGINT PRIMARY KEY,
			merchant_id BIGINT NOT NULL,
			customer_id BIGINT NOT NULL,
			number TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'draft',
			issue_date TIMESTAMP NOT NULL,
			due_date TIMESTAMP NOT NULL,
			term TEXT,
			currency TEXT NOT NULL DEFAULT 'USD',
			fee_plan_id BIGINT,
			tax_rate_id BIGINT,
			subtotal BIGINT NOT NULL DEFAULT 0,
			fee_cents BIGINT NOT NULL DEFAULT 0,
			tax_total BIGINT NOT NULL DEFAULT 0,
			total BIGINT NOT NULL DEFAULT 0,
			amount_paid BIGINT NOT NULL DEFAULT 0,
			message TEXT, internal_note TEXT,
			paid_at TIMESTAMP, voided_at TIMESTAMP,
			created_at TIMESTAMP, updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS invoice_items (
			id BIGINT PRIMARY KEY,
			invoice_id BIGINT NOT NULL,
			item_id BIGINT,
			description TEXT NOT NULL DEFAULT 'Item',
			quantity BIGINT NOT NULL,
			unit_price BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			taxable BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id BIGINT PRIMARY KEY,
			merchant_id BIGINT NOT NULL,
			invoice_id BIGINT,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL DEFAULT 'USD',
			method TEXT NOT NULL,
			rail TEXT,
			provider TEXT NOT NULL,
			provider_ref TEXT,
			status TEXT NOT NULL DEFAULT 'created',
			instrument_mask TEXT,
			return_code TEXT, return_reason TEXT,
			posted_at TIMESTAMP, settled_at TIMESTAMP, last_event_at TIMESTAMP,
			created_at TIMESTAMP, updated_at TIMESTAMP
		)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

type invoiceTestEnv struct {
	svc        *Service
	settings   settingsdomain.Service
	db         *gorm.DB
	clock      *clock.FixedClock
	merchantID snowflake.ID
	customerID snowflake.ID
}

func setupInvoiceEnv(t *testing.T, name string) *invoiceTestEnv {
	t.Helper()
	db := setupInvoiceTestDB(t, name)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	settingsSvc := settingssvc.NewService(settingssvc.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Tenant: stubProvisioner{},
	})

	fixed := &clock.FixedClock{At: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	svc := &Service{
		db:       db,
		log:      zap.NewNop(),
		genID:    node,
		clock:    fixed,
		tenant:   stubProvisioner{},
		settings: settingsSvc,
	}

	merchantID := snowflake.ID(1)
	customerID := node.Generate()
	if err := db.Exec(
		`INSERT INTO customers (id, merchant_id, email, country, terms) VALUES (?, ?, ?, 'US', 'Net 30')`,
		customerID, merchantID, "buyer@example.com",
	).Error; err != nil {
		t.Fatalf("insert customer: %v", err)
	}

	return &invoiceTestEnv{
		svc:        svc,
		settings:   settingsSvc,
		db:         db,
		clock:      fixed,
		merchantID: merchantID,
		customerID: customerID,
	}
}

func scenarioItems() []invoicedomain.LineInput {
	return []invoicedomain.LineInput{
		{Description: "Consulting", Quantity: 2, UnitPrice: 500, Taxable: true},
		{Description: "Materials", Quantity: 1, UnitPrice: 1000},
	}
}

func TestCreateInvoiceComputesTotals(t *testing.T) {
	env := setupInvoiceEnv(t, "invoice_create")
	ctx := context.Background()

	rate, err := env.settings.CreateTaxRate(ctx, env.merchantID, settingsdomain.TaxRateInput{
		Name:    "Sales Tax",
		RateBps: 700,
	})
	if err != nil {
		t.Fatalf("create tax rate: %v", err)
	}

	inv, err := env.svc.Create(ctx, env.merchantID, invoicedomain.CreateInput{
		CustomerID: env.customerID,
		TaxRateID:  &rate.ID,
		Items:      scenarioItems(),
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	if inv.Subtotal != 2000 || inv.TaxTotal != 70 || inv.Total != 2070 {
		t.Fatalf("unexpected totals %+v", inv)
	}
	if inv.Status != invoicedomain.StatusDraft {
		t.Fatalf("expected draft, got %s", inv.Status)
	}
	if !strings.HasPrefix(inv.Number, "INV-") {
		t.Fatalf("unexpected number %q", inv.Number)
	}
	if len(inv.Items) != 2 {
		t.Fatalf("expected 2 stored items, got %d", len(inv.Items))
	}

	wantDue := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	if !inv.DueDate.Equal(wantDue) {
		t.Fatalf("expected due %v, got %v", wantDue, inv.DueDate)
	}
}

func TestCreateInvoiceAppliesDefaults(t *testing.T) {
	env := setupInvoiceEnv(t, "invoice_defaults")
	ctx := context.Background()

	if _, err := env.settings.CreateFeePlan(ctx, env.merchantID, settingsdomain.FeePlanInput{
		Name:                "Convenience",
		Mode:                settingsdomain.FeeModeConvenience,
		ConvenienceFeeCents: 199,
		IsDefault:           true,
	}); err != nil {
		t.Fatalf("create fee plan: %v", err)
	}
	if _, err := env.settings.CreateTaxRate(ctx, env.merchantID, settingsdomain.TaxRateInput{
		Name:      "Sales Tax",
		RateBps:   700,
		IsDefault: true,
	}); err != nil {
		t.Fatalf("create tax rate: %v", err)
	}
	if _, err := env.settings.CreatePaymentTerm(ctx, env.merchantID, settingsdomain.PaymentTermInput{
		Name:      "Net 7",
		Days:      7,
		IsDefault: true,
	}); err != nil {
		t.Fatalf("create term: %v", err)
	}

	inv, err := env.svc.Create(ctx, env.merchantID, invoicedomain.CreateInput{
		CustomerID: env.customerID,
		Items:      scenarioItems(),
		Send:       true,
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	if inv.Status != invoicedomain.StatusOpen {
		t.Fatalf("expected open on send, got %s", inv.Status)
	}
	if inv.FeeCents != 199 || inv.TaxTotal != 70 || inv.Total != 2269 {
		t.Fatalf("unexpected totals %+v", inv)
	}
	if inv.Term == nil || *inv.Term != "Net 7" {
		t.Fatalf("expected default term applied, got %v", inv.Term)
	}
	wantDue := time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)
	if !inv.DueDate.Equal(wantDue) {
		t.Fatalf("expected due %v, got %v", wantDue, inv.DueDate)
	}
	if inv.FeePlanID == nil || inv.TaxRateID == nil {
		t.Fatalf("expected default plan and rate recorded")
	}
}

func TestCreateInvoiceValidation(t *testing.T) {
	env := setupInvoiceEnv(t, "invoice_validation")

	_, err := env.svc.Create(context.Background(), env.merchantID, invoicedomain.CreateInput{
		Items: []invoicedomain.LineInput{{Description: "Bad", Quantity: 0, UnitPrice: -5}},
	})
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"customer_id", "items[0].quantity", "items[0].unit_price"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Fatalf("expected violation for %s, got %v", field, verr.Fields)
		}
	}
}

func TestUpdateReplacesItemsAndPromotes(t *testing.T) {
	env := setupInvoiceEnv(t, "invoice_update")
	ctx := context.Background()

	inv, err := env.svc.Create(ctx, env.merchantID, invoicedomain.CreateInput{
		CustomerID: env.customerID,
		Items:      scenarioItems(),
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if inv.Status != invoicedomain.StatusDraft {
		t.Fatalf("expected draft, got %s", inv.Status)
	}

	updated, err := env.svc.Update(ctx, env.merchantID, inv.ID, invoicedomain.UpdateInput{
		Items: []invoicedomain.LineInput{
			{Description: "Consulting", Quantity: 3, UnitPrice: 1000, Taxable: false},
		},
	})
	if err != nil {
		t.Fatalf("update invoice: %v", err)
	}
	if updated.Subtotal != 3000 || updated.Total != 3000 {
		t.Fatalf("unexpected totals after replace %+v", updated)
	}
	if len(updated.Items) != 1 {
		t.Fatalf("expected 1 item after full replace, got %d", len(updated.Items))
	}
	if updated.Status != invoicedomain.StatusOpen {
		t.Fatalf("expected auto-promotion to open, got %s", updated.Status)
	}

	var count int64
	if err := env.db.Table("invoice_items").Where("invoice_id = ?", inv.ID).Count(&count).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected old items deleted, got %d rows", count)
	}
}

func TestUpdateKeepsItemsWhenOmitted(t *testing.T) {
	env := setupInvoiceEnv(t, "invoice_update_scalars")
	ctx := context.Background()

	inv, err := env.svc.Create(ctx, env.merchantID, invoicedomain.CreateInput{
		CustomerID: env.customerID,
		Items:      scenarioItems(),
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	plan, err := env.settings.CreateFeePlan(ctx, env.merchantID, settingsdomain.FeePlanInput{
		Name:          "Service",
		Mode:          settingsdomain.FeeModeService,
		ServiceFeeBps: 250,
	})
	if err != nil {
		t.Fatalf("create fee plan: %v", err)
	}

	updated, err := env.svc.Update(ctx, env.merchantID, inv.ID, invoicedomain.UpdateInput{
		FeePlanID: &plan.ID,
	})
	if err != nil {
		t.Fatalf("update invoice: %v", err)
	}
	if updated.Subtotal != 2000 || updated.FeeCents != 50 || updated.Total != 2050 {
		t.Fatalf("unexpected totals with reused items %+v", updated)
	}
}

func TestPatchClampsAmountPaid(t *testing.T) {
	env := setupInvoiceEnv(t, "invoice_patch")
	ctx := context.Background()

	inv, err := env.svc.Create(ctx, env.merchantID, invoicedomain.CreateInput{
		CustomerID: env.customerID,
		Items:      scenarioItems(),
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	negative := int64(-500)
	patched, err := env.svc.Patch(ctx, env.merchantID, inv.ID, invoicedomain.PatchInput{AmountPaid: &negative})
	if err != nil {
		t.Fatalf("patch invoice: %v", err)
	}
	if patched.AmountPaid != 0 {
		t.Fatalf("expected amount paid clamped to 0, got %d", patched.AmountPaid)
	}
}

func TestVoidIsTerminal(t *testing.T) {
	env := setupInvoiceEnv(t, "invoice_void")
	ctx := context.Background()

	inv, err := env.svc.Create(ctx, env.merchantID, invoicedomain.CreateInput{
		CustomerID: env.customerID,
		Items:      scenarioItems(),
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	voided, err := env.svc.Void(ctx, env.merchantID, inv.ID)
	if err != nil {
		t.Fatalf("void invoice: %v", err)
	}
	if voided.Status != invoicedomain.StatusVoid || voided.VoidedAt == nil {
		t.Fatalf("expected void status with timestamp, got %+v", voided)
	}
	if voided.Payable() {
		t.Fatalf("void invoice must not be payable")
	}

	open := invoicedomain.StatusOpen
	if _, err := env.svc.Patch(ctx, env.merchantID, inv.ID, invoicedomain.PatchInput{Status: &open}); !errors.Is(err, invoicedomain.ErrInvoiceVoid) {
		t.Fatalf("expected void terminal, got %v", err)
	}
}

func TestApplySettlementTransitions(t *testing.T) {
	env := setupInvoiceEnv(t, "invoice_settlement")
	ctx := context.Background()

	inv, err := env.svc.Create(ctx, env.merchantID, invoicedomain.CreateInput{
		CustomerID: env.customerID,
		Items:      scenarioItems(),
		Send:       true,
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	if err := env.svc.ApplySettlement(ctx, nil, inv.ID, 500); err != nil {
		t.Fatalf("apply partial: %v", err)
	}
	got, err := env.svc.Get(ctx, env.merchantID, inv.ID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if got.Status != invoicedomain.StatusPartial || got.AmountPaid != 500 {
		t.Fatalf("expected partial/500, got %s/%d", got.Status, got.AmountPaid)
	}

	if err := env.svc.ApplySettlement(ctx, nil, inv.ID, 1500); err != nil {
		t.Fatalf("apply remainder: %v", err)
	}
	got, err = env.svc.Get(ctx, env.merchantID, inv.ID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if got.Status != invoicedomain.StatusPaid || got.PaidAt == nil {
		t.Fatalf("expected paid with timestamp, got %+v", got)
	}
}

func TestRepairFeesStripsLegacyRows(t *testing.T) {
	env := setupInvoiceEnv(t, "invoice_repair")
	ctx := context.Background()

	inv, err := env.svc.Create(ctx, env.merchantID, invoicedomain.CreateInput{
		CustomerID: env.customerID,
		Items:      scenarioItems(),
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	// A legacy fee row leaked into the item list.
	if err := env.db.Exec(
		`INSERT INTO invoice_items (id, invoice_id, description, quantity, unit_price, amount, taxable)
		 VALUES (?, ?, 'Convenience Fee', 1, 199, 199, 0)`,
		env.svc.genID.Generate(), inv.ID,
	).Error; err != nil {
		t.Fatalf("insert fee row: %v", err)
	}

	repaired, err := env.svc.RepairFees(ctx, env.merchantID)
	if err != nil {
		t.Fatalf("repair fees: %v", err)
	}
	if repaired != 1 {
		t.Fatalf("expected 1 repaired invoice, got %d", repaired)
	}

	got, err := env.svc.Get(ctx, env.merchantID, inv.ID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if got.Subtotal != 2000 || got.Total != 2000 {
		t.Fatalf("expected rebuilt totals, got %+v", got)
	}
	if len(got.Items) != 2 {
		t.Fatalf("expected fee row removed, got %d items", len(got.Items))
	}

	again, err := env.svc.RepairFees(ctx, env.merchantID)
	if err != nil {
		t.Fatalf("repair fees again: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected repair to be idempotent, got %d", again)
	}
}

func TestReportsExcludeVoid(t *testing.T) {
	env := setupInvoiceEnv(t, "invoice_reports")
	ctx := context.Background()

	inv, err := env.svc.Create(ctx, env.merchantID, invoicedomain.CreateInput{
		CustomerID: env.customerID,
		Items:      scenarioItems(),
		Send:       true,
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if err := env.svc.ApplySettlement(ctx, nil, inv.ID, 500); err != nil {
		t.Fatalf("apply settlement: %v", err)
	}

	voidInv, err := env.svc.Create(ctx, env.merchantID, invoicedomain.CreateInput{
		CustomerID: env.customerID,
		Items:      scenarioItems(),
		Send:       true,
	})
	if err != nil {
		t.Fatalf("create second invoice: %v", err)
	}
	if _, err := env.svc.Void(ctx, env.merchantID, voidInv.ID); err != nil {
		t.Fatalf("void invoice: %v", err)
	}

	summary, err := env.svc.Reports(ctx, env.merchantID, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("reports: %v", err)
	}
	if summary.OpenReceivables != 1500 {
		t.Fatalf("expected 1500 open receivables, got %d", summary.OpenReceivables)
	}
	if len(summary.Revenue) != 1 || summary.Revenue[0].Revenue != 500 {
		t.Fatalf("unexpected revenue series %+v", summary.Revenue)
	}
	if summary.Aging.Current != 1500 {
		t.Fatalf("expected receivable in current bucket, got %+v", summary.Aging)
	}
}
