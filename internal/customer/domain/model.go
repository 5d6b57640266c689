package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Customer is a billable party belonging to a merchant.
type Customer struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	MerchantID snowflake.ID `gorm:"column:merchant_id" json:"merchant_id"`
	FirstName  *string      `gorm:"column:first_name" json:"first_name,omitempty"`
	LastName   *string      `gorm:"column:last_name" json:"last_name,omitempty"`
	Company    *string      `gorm:"column:company" json:"company,omitempty"`
	Email      *string      `gorm:"column:email" json:"email,omitempty"`
	Phone      *string      `gorm:"column:phone" json:"phone,omitempty"`
	Address1   *string      `gorm:"column:address1" json:"address1,omitempty"`
	Address2   *string      `gorm:"column:address2" json:"address2,omitempty"`
	City       *string      `gorm:"column:city" json:"city,omitempty"`
	State      *string      `gorm:"column:state" json:"state,omitempty"`
	Postal     *string      `gorm:"column:postal" json:"postal,omitempty"`
	Country    string       `gorm:"column:country" json:"country"`
	Terms      string       `gorm:"column:terms" json:"terms"`
	CreatedAt  time.Time    `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"column:updated_at" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

// DisplayName resolves the label used on invoices and lists.
func (c Customer) DisplayName() string {
	if c.Company != nil && *c.Company != "" {
		return *c.Company
	}
	name := ""
	if c.FirstName != nil {
		name = *c.FirstName
	}
	if c.LastName != nil && *c.LastName != "" {
		if name != "" {
			name += " "
		}
		name += *c.LastName
	}
	if name != "" {
		return name
	}
	if c.Email != nil {
		return *c.Email
	}
	return c.ID.String()
}
