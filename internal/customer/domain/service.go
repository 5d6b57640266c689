package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateInput struct {
	FirstName *string
	LastName  *string
	Company   *string
	Email     *string
	Phone     *string
	Address1  *string
	Address2  *string
	City      *string
	State     *string
	Postal    *string
	Country   *string
	Terms     *string
}

// PatchInput updates only the fields that are set.
type PatchInput struct {
	FirstName *string
	LastName  *string
	Company   *string
	Email     *string
	Phone     *string
	Address1  *string
	Address2  *string
	City      *string
	State     *string
	Postal    *string
	Country   *string
	Terms     *string
}

type ListInput struct {
	Search string
	Cursor snowflake.ID
	Limit  int
}

type ListResult struct {
	Customers  []Customer
	NextCursor snowflake.ID
}

type Service interface {
	Create(ctx context.Context, merchantID snowflake.ID, input CreateInput) (Customer, error)
	Get(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) (Customer, error)
	Patch(ctx context.Context, merchantID snowflake.ID, id snowflake.ID, input PatchInput) (Customer, error)
	List(ctx context.Context, merchantID snowflake.ID, input ListInput) (ListResult, error)
}

var (
	ErrCustomerNotFound = errors.New("customer_not_found")
	ErrInvalidCustomer  = errors.New("invalid_customer")
	ErrInvalidEmail     = errors.New("invalid_email")
)
