package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type ItemInput struct {
	Name        string
	Description *string
	UnitPrice   int64
}

type Service interface {
	Create(ctx context.Context, merchantID snowflake.ID, input ItemInput) (Item, error)
	Get(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) (Item, error)
	Update(ctx context.Context, merchantID snowflake.ID, id snowflake.ID, input ItemInput) (Item, error)
	Delete(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) error
	List(ctx context.Context, merchantID snowflake.ID) ([]Item, error)
}

var (
	ErrItemNotFound = errors.New("item_not_found")
	ErrInvalidItem  = errors.New("invalid_item")
)
