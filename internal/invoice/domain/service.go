package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type LineInput struct {
	ItemID      *snowflake.ID `json:"item_id,omitempty"`
	Description string        `json:"description"`
	Quantity    int64         `json:"quantity"`
	UnitPrice   int64         `json:"unit_price"`
	Taxable     bool          `json:"taxable"`
}

type CreateInput struct {
	CustomerID   snowflake.ID
	IssueDate    *time.Time
	Term         *string
	DueDate      *time.Time
	Currency     *string
	FeePlanID    *snowflake.ID
	TaxRateID    *snowflake.ID
	Items        []LineInput
	Message      *string
	InternalNote *string
	// Send opens the invoice immediately instead of saving a draft.
	Send bool
}

// UpdateInput replaces the full line-item set when Items is non-nil.
// Scalars update only when the pointer is set.
type UpdateInput struct {
	CustomerID   *snowflake.ID
	IssueDate    *time.Time
	Term         *string
	DueDate      *time.Time
	Currency     *string
	FeePlanID    *snowflake.ID
	ClearFeePlan bool
	TaxRateID    *snowflake.ID
	ClearTaxRate bool
	Items        []LineInput
	Message      *string
	InternalNote *string
	Status       *string
}

type PatchInput struct {
	Status     *string
	AmountPaid *int64
}

type ListInput struct {
	Status     string
	CustomerID snowflake.ID
	Cursor     snowflake.ID
	Limit      int
}

type ListResult struct {
	Invoices   []Invoice
	NextCursor snowflake.ID
}

// RevenuePoint is one month of collected revenue.
type RevenuePoint struct {
	Month   string `json:"month"`
	Revenue int64  `json:"revenue"`
}

// AgingBuckets groups open receivables by days past due.
type AgingBuckets struct {
	Current    int64 `json:"current"`
	Days31to60 int64 `json:"days_31_60"`
	Days61to90 int64 `json:"days_61_90"`
	Over90     int64 `json:"over_90"`
}

type ReportSummary struct {
	Revenue          []RevenuePoint `json:"revenue"`
	OpenReceivables  int64          `json:"open_receivables"`
	TransactionCount int64          `json:"transaction_count"`
	Aging            AgingBuckets   `json:"aging"`
}

type Service interface {
	Create(ctx context.Context, merchantID snowflake.ID, input CreateInput) (Invoice, error)
	Update(ctx context.Context, merchantID snowflake.ID, id snowflake.ID, input UpdateInput) (Invoice, error)
	Patch(ctx context.Context, merchantID snowflake.ID, id snowflake.ID, input PatchInput) (Invoice, error)
	Void(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) (Invoice, error)
	Get(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) (Invoice, error)
	List(ctx context.Context, merchantID snowflake.ID, input ListInput) (ListResult, error)

	// ApplySettlement moves amount paid by delta cents inside the caller's
	// transaction and advances paid/partial status. Webhook driven.
	ApplySettlement(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID, delta int64) error

	// RepairFees strips legacy fee rows from stored invoices and rebuilds
	// their totals. Returns the number of invoices repaired.
	RepairFees(ctx context.Context, merchantID snowflake.ID) (int, error)

	Reports(ctx context.Context, merchantID snowflake.ID, from, to time.Time) (ReportSummary, error)
}

var (
	ErrInvoiceNotFound = errors.New("invoice_not_found")
	ErrInvoiceVoid     = errors.New("invoice_void")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrMissingCustomer = errors.New("missing_customer")
	ErrMissingItems    = errors.New("missing_items")
)
