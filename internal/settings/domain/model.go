package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Fee plan modes. "none" charges nothing, "convenience" adds a flat amount,
// "service" adds a basis-point surcharge on the subtotal.
const (
	FeeModeNone        = "none"
	FeeModeConvenience = "convenience"
	FeeModeService     = "service"
)

type FeePlan struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	MerchantID          snowflake.ID `gorm:"column:merchant_id" json:"merchant_id"`
	Name                string       `gorm:"column:name" json:"name"`
	Mode                string       `gorm:"column:mode" json:"mode"`
	ConvenienceFeeCents int64        `gorm:"column:convenience_fee_cents" json:"convenience_fee_cents"`
	ServiceFeeBps       int64        `gorm:"column:service_fee_bps" json:"service_fee_bps"`
	IsDefault           bool         `gorm:"column:is_default" json:"is_default"`
	CreatedAt           time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (FeePlan) TableName() string { return "fee_plans" }

type TaxRate struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	MerchantID snowflake.ID `gorm:"column:merchant_id" json:"merchant_id"`
	Name       string       `gorm:"column:name" json:"name"`
	RateBps    int64        `gorm:"column:rate_bps" json:"rate_bps"`
	IsDefault  bool         `gorm:"column:is_default" json:"is_default"`
	CreatedAt  time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (TaxRate) TableName() string { return "tax_rates" }

type PaymentTerm struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	MerchantID snowflake.ID `gorm:"column:merchant_id" json:"merchant_id"`
	Name       string       `gorm:"column:name" json:"name"`
	Days       int          `gorm:"column:days" json:"days"`
	IsDefault  bool         `gorm:"column:is_default" json:"is_default"`
	CreatedAt  time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (PaymentTerm) TableName() string { return "payment_terms" }
