package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Invoice statuses. Void is terminal.
const (
	StatusDraft   = "draft"
	StatusOpen    = "open"
	StatusPaid    = "paid"
	StatusOverdue = "overdue"
	StatusPartial = "partial"
	StatusVoid    = "void"
)

type Invoice struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	MerchantID   snowflake.ID  `gorm:"column:merchant_id" json:"merchant_id"`
	CustomerID   snowflake.ID  `gorm:"column:customer_id" json:"customer_id"`
	Number       string        `gorm:"column:number" json:"number"`
	Status       string        `gorm:"column:status" json:"status"`
	IssueDate    time.Time     `gorm:"column:issue_date" json:"issue_date"`
	DueDate      time.Time     `gorm:"column:due_date" json:"due_date"`
	Term         *string       `gorm:"column:term" json:"term,omitempty"`
	Currency     string        `gorm:"column:currency" json:"currency"`
	FeePlanID    *snowflake.ID `gorm:"column:fee_plan_id" json:"fee_plan_id,omitempty"`
	TaxRateID    *snowflake.ID `gorm:"column:tax_rate_id" json:"tax_rate_id,omitempty"`
	Subtotal     int64         `gorm:"column:subtotal" json:"subtotal"`
	FeeCents     int64         `gorm:"column:fee_cents" json:"fee_cents"`
	TaxTotal     int64         `gorm:"column:tax_total" json:"tax_total"`
	Total        int64         `gorm:"column:total" json:"total"`
	AmountPaid   int64         `gorm:"column:amount_paid" json:"amount_paid"`
	Message      *string       `gorm:"column:message" json:"message,omitempty"`
	InternalNote *string       `gorm:"column:internal_note" json:"internal_note,omitempty"`
	PaidAt       *time.Time    `gorm:"column:paid_at" json:"paid_at,omitempty"`
	VoidedAt     *time.Time    `gorm:"column:voided_at" json:"voided_at,omitempty"`
	CreatedAt    time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"column:updated_at" json:"updated_at"`

	Items []InvoiceItem `gorm:"-" json:"items,omitempty"`
}

func (Invoice) TableName() string { return "invoices" }

// Payable reports whether the invoice may still collect money.
func (i Invoice) Payable() bool {
	switch i.Status {
	case StatusOpen, StatusPartial, StatusDraft:
		return true
	}
	return false
}

type InvoiceItem struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID  `gorm:"column:invoice_id" json:"invoice_id"`
	ItemID      *snowflake.ID `gorm:"column:item_id" json:"item_id,omitempty"`
	Description string        `gorm:"column:description" json:"description"`
	Quantity    int64         `gorm:"column:quantity" json:"quantity"`
	UnitPrice   int64         `gorm:"column:unit_price" json:"unit_price"`
	Amount      int64         `gorm:"column:amount" json:"amount"`
	Taxable     bool          `gorm:"column:taxable" json:"taxable"`
	CreatedAt   time.Time     `gorm:"column:created_at" json:"created_at"`
}

func (InvoiceItem) TableName() string { return "invoice_items" }

func ValidStatus(status string) bool {
	switch status {
	case StatusDraft, StatusOpen, StatusPaid, StatusOverdue, StatusPartial, StatusVoid:
		return true
	}
	return false
}
