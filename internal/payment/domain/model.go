package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Payment statuses.
const (
	StatusCreated  = "created"
	StatusPending  = "pending"
	StatusCaptured = "captured"
	StatusFailed   = "failed"
	StatusReturned = "returned"
	StatusSettled  = "settled"
)

// Methods and bank rails.
const (
	MethodCard = "card"
	MethodBank = "bank"

	RailACH    = "ach"
	RailRTP    = "rtp"
	RailFedNow = "fednow"
)

type Payment struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	MerchantID     snowflake.ID  `gorm:"column:merchant_id" json:"merchant_id"`
	InvoiceID      *snowflake.ID `gorm:"column:invoice_id" json:"invoice_id,omitempty"`
	Amount         int64         `gorm:"column:amount" json:"amount"`
	Currency       string        `gorm:"column:currency" json:"currency"`
	Method         string        `gorm:"column:method" json:"method"`
	Rail           *string       `gorm:"column:rail" json:"rail,omitempty"`
	Provider       string        `gorm:"column:provider" json:"provider"`
	ProviderRef    *string       `gorm:"column:provider_ref" json:"provider_ref,omitempty"`
	Status         string        `gorm:"column:status" json:"status"`
	InstrumentMask *string       `gorm:"column:instrument_mask" json:"instrument_mask,omitempty"`
	ReturnCode     *string       `gorm:"column:return_code" json:"return_code,omitempty"`
	ReturnReason   *string       `gorm:"column:return_reason" json:"return_reason,omitempty"`
	PostedAt       *time.Time    `gorm:"column:posted_at" json:"posted_at,omitempty"`
	SettledAt      *time.Time    `gorm:"column:settled_at" json:"settled_at,omitempty"`
	LastEventAt    *time.Time    `gorm:"column:last_event_at" json:"last_event_at,omitempty"`
	CreatedAt      time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"column:updated_at" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// PaymentAttempt is the immutable audit record of one provider call.
type PaymentAttempt struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	PaymentID      snowflake.ID   `gorm:"column:payment_id" json:"payment_id"`
	IdempotencyKey *string        `gorm:"column:idempotency_key" json:"idempotency_key,omitempty"`
	Status         string         `gorm:"column:status" json:"status"`
	RequestJSON    datatypes.JSON `gorm:"column:request_json" json:"request_json,omitempty"`
	ResponseJSON   datatypes.JSON `gorm:"column:response_json" json:"response_json,omitempty"`
	CreatedAt      time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (PaymentAttempt) TableName() string { return "payment_attempts" }

type Refund struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	PaymentID snowflake.ID `gorm:"column:payment_id" json:"payment_id"`
	Amount    int64        `gorm:"column:amount" json:"amount"`
	Status    string       `gorm:"column:status" json:"status"`
	CreatedAt time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (Refund) TableName() string { return "refunds" }

// WebhookEvent is the dedup ledger. A duplicate (provider, external_id)
// insert means the event was already processed.
type WebhookEvent struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Provider    string       `gorm:"column:provider" json:"provider"`
	EventType   string       `gorm:"column:event_type" json:"event_type"`
	ExternalID  string       `gorm:"column:external_id" json:"external_id"`
	PayloadHash string       `gorm:"column:payload_hash" json:"payload_hash"`
	Processed   bool         `gorm:"column:processed" json:"processed"`
	ReceivedAt  time.Time    `gorm:"column:received_at" json:"received_at"`
	ProcessedAt *time.Time   `gorm:"column:processed_at" json:"processed_at,omitempty"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }

// PaymentMethod is a saved instrument vaulted with a provider.
type PaymentMethod struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	MerchantID    snowflake.ID `gorm:"column:merchant_id" json:"merchant_id"`
	CustomerID    snowflake.ID `gorm:"column:customer_id" json:"customer_id"`
	Type          string       `gorm:"column:type" json:"type"`
	VaultProvider string       `gorm:"column:vault_provider" json:"vault_provider"`
	ProviderRef   string       `gorm:"column:provider_ref" json:"provider_ref"`
	Brand         *string      `gorm:"column:brand" json:"brand,omitempty"`
	Last4         *string      `gorm:"column:last4" json:"last4,omitempty"`
	ExpMonth      *int         `gorm:"column:exp_month" json:"exp_month,omitempty"`
	ExpYear       *int         `gorm:"column:exp_year" json:"exp_year,omitempty"`
	BankName      *string      `gorm:"column:bank_name" json:"bank_name,omitempty"`
	Mask          *string      `gorm:"column:mask" json:"mask,omitempty"`
	Status        string       `gorm:"column:status" json:"status"`
	IsDefault     bool         `gorm:"column:is_default" json:"is_default"`
	CreatedAt     time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (PaymentMethod) TableName() string { return "payment_methods" }

func ValidStatus(status string) bool {
	switch status {
	case StatusCreated, StatusPending, StatusCaptured, StatusFailed, StatusReturned, StatusSettled:
		return true
	}
	return false
}
