package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aspirepayments/aspire-payments-web/internal/cache"
	settingsdomain "github.com/aspirepayments/aspire-payments-web/internal/settings/domain"
	tenantdomain "github.com/aspirepayments/aspire-payments-web/internal/tenant/domain"
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

func setupSettingsTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS fee_plans (
			id BIGINT PRIMARY KEY,
			merchant_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			mode TEXT NOT NULL DEFAULT 'none',
			convenience_fee_cents BIGINT NOT NULL DEFAULT 0,
			service_fee_bps BIGINT NOT NULL DEFAULT 0,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tax_rates (
			id BIGINT PRIMARY KEY,
			merchant_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			rate_bps BIGINT NOT NULL DEFAULT 0,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS payment_terms (
			id BIGINT PRIMARY KEY,
			merchant_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			days INT NOT NULL DEFAULT 0,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func newSettingsService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return &Service{
		db:        db,
		log:       zap.NewNop(),
		genID:     node,
		tenant:    stubProvisioner{},
		termCache: cache.NewTTLCache[snowflake.ID, settingsdomain.PaymentTerm](),
	}
}

func TestSetDefaultFeePlanFlipsSingleDefault(t *testing.T) {
	db := setupSettingsTestDB(t, "settings_feeplan")
	svc := newSettingsService(t, db)
	ctx := context.Background()
	merchantID := snowflake.ID(1)

	first, err := svc.CreateFeePlan(ctx, merchantID, settingsdomain.FeePlanInput{
		Name:      "Convenience",
		Mode:      settingsdomain.FeeModeConvenience,
		IsDefault: true,
	})
	if err != nil {
		t.Fatalf("create first plan: %v", err)
	}
	second, err := svc.CreateFeePlan(ctx, merchantID, settingsdomain.FeePlanInput{
		Name:          "Service",
		Mode:          settingsdomain.FeeModeService,
		ServiceFeeBps: 250,
	})
	if err != nil {
		t.Fatalf("create second plan: %v", err)
	}

	if err := svc.SetDefaultFeePlan(ctx, merchantID, second.ID); err != nil {
		t.Fatalf("set default: %v", err)
	}

	var count int64
	if err := db.Model(&settingsdomain.FeePlan{}).
		Where("merchant_id = ? AND is_default", merchantID).
		Count(&count).Error; err != nil {
		t.Fatalf("count defaults: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one default plan, got %d", count)
	}

	plan, err := svc.DefaultFeePlan(ctx, merchantID)
	if err != nil {
		t.Fatalf("default plan: %v", err)
	}
	if plan == nil || plan.ID != second.ID {
		t.Fatalf("expected plan %v as default, got %+v", second.ID, plan)
	}
	refreshed, err := svc.GetFeePlan(ctx, merchantID, first.ID)
	if err != nil {
		t.Fatalf("get first plan: %v", err)
	}
	if refreshed.IsDefault {
		t.Fatalf("expected first plan demoted")
	}
}

func TestCreateFeePlanRejectsInvalidMode(t *testing.T) {
	db := setupSettingsTestDB(t, "settings_feeplan_invalid")
	svc := newSettingsService(t, db)

	_, err := svc.CreateFeePlan(context.Background(), 1, settingsdomain.FeePlanInput{
		Name: "Broken",
		Mode: "percentage",
	})
	if !errors.Is(err, settingsdomain.ErrInvalidFeePlan) {
		t.Fatalf("expected invalid fee plan, got %v", err)
	}
}

func TestSetDefaultTaxRateMissing(t *testing.T) {
	db := setupSettingsTestDB(t, "settings_taxrate")
	svc := newSettingsService(t, db)

	err := svc.SetDefaultTaxRate(context.Background(), 1, 999)
	if !errors.Is(err, settingsdomain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDefaultPaymentTermCacheInvalidation(t *testing.T) {
	db := setupSettingsTestDB(t, "settings_terms")
	svc := newSettingsService(t, db)
	ctx := context.Background()
	merchantID := snowflake.ID(7)

	net30, err := svc.CreatePaymentTerm(ctx, merchantID, settingsdomain.PaymentTermInput{
		Name:      "Net 30",
		Days:      30,
		IsDefault: true,
	})
	if err != nil {
		t.Fatalf("create net30: %v", err)
	}

	term, err := svc.DefaultPaymentTerm(ctx, merchantID)
	if err != nil {
		t.Fatalf("default term: %v", err)
	}
	if term == nil || term.ID != net30.ID {
		t.Fatalf("expected net30 default, got %+v", term)
	}

	net7, err := svc.CreatePaymentTerm(ctx, merchantID, settingsdomain.PaymentTermInput{
		Name: "Net 7",
		Days: 7,
	})
	if err != nil {
		t.Fatalf("create net7: %v", err)
	}
	if err := svc.SetDefaultPaymentTerm(ctx, merchantID, net7.ID); err != nil {
		t.Fatalf("set default: %v", err)
	}

	term, err = svc.DefaultPaymentTerm(ctx, merchantID)
	if err != nil {
		t.Fatalf("default term after flip: %v", err)
	}
	if term == nil || term.ID != net7.ID {
		t.Fatalf("expected net7 default after flip, got %+v", term)
	}
}
