package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type FeePlanInput struct {
	Name                string
	Mode                string
	ConvenienceFeeCents int64
	ServiceFeeBps       int64
	IsDefault           bool
}

type TaxRateInput struct {
	Name      string
	RateBps   int64
	IsDefault bool
}

type PaymentTermInput struct {
	Name      string
	Days      int
	IsDefault bool
}

type Service interface {
	CreateFeePlan(ctx context.Context, merchantID snowflake.ID, input FeePlanInput) (FeePlan, error)
	UpdateFeePlan(ctx context.Context, merchantID snowflake.ID, id snowflake.ID, input FeePlanInput) (FeePlan, error)
	DeleteFeePlan(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) error
	ListFeePlans(ctx context.Context, merchantID snowflake.ID) ([]FeePlan, error)
	SetDefaultFeePlan(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) error
	DefaultFeePlan(ctx context.Context, merchantID snowflake.ID) (*FeePlan, error)
	GetFeePlan(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) (FeePlan, error)

	CreateTaxRate(ctx context.Context, merchantID snowflake.ID, input TaxRateInput) (TaxRate, error)
	UpdateTaxRate(ctx context.Context, merchantID snowflake.ID, id snowflake.ID, input TaxRateInput) (TaxRate, error)
	DeleteTaxRate(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) error
	ListTaxRates(ctx context.Context, merchantID snowflake.ID) ([]TaxRate, error)
	SetDefaultTaxRate(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) error
	DefaultTaxRate(ctx context.Context, merchantID snowflake.ID) (*TaxRate, error)
	GetTaxRate(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) (TaxRate, error)

	CreatePaymentTerm(ctx context.Context, merchantID snowflake.ID, input PaymentTermInput) (PaymentTerm, error)
	UpdatePaymentTerm(ctx context.Context, merchantID snowflake.ID, id snowflake.ID, input PaymentTermInput) (PaymentTerm, error)
	DeletePaymentTerm(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) error
	ListPaymentTerms(ctx context.Context, merchantID snowflake.ID) ([]PaymentTerm, error)
	SetDefaultPaymentTerm(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) error
	DefaultPaymentTerm(ctx context.Context, merchantID snowflake.ID) (*PaymentTerm, error)
}

var (
	ErrNotFound       = errors.New("settings_not_found")
	ErrInvalidFeePlan = errors.New("invalid_fee_plan")
	ErrInvalidTaxRate = errors.New("invalid_tax_rate")
	ErrInvalidTerm    = errors.New("invalid_payment_term")
)
