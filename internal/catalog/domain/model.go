package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Item is a reusable catalog entry used to default invoice line items.
type Item struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	MerchantID  snowflake.ID `gorm:"column:merchant_id" json:"merchant_id"`
	Name        string       `gorm:"column:name" json:"name"`
	Description *string      `gorm:"column:description" json:"description,omitempty"`
	UnitPrice   int64        `gorm:"column:unit_price" json:"unit_price"`
	CreatedAt   time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (Item) TableName() string { return "items" }
