package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// ChargeInput is the provider-independent charge request.
type ChargeInput struct {
	MerchantID snowflake.ID
	Amount     int64
	Currency   string
	Method     string
	Rail       string
	// Token is a vault reference for card providers or a paykey for bank
	// providers.
	Token      string
	AccountRef string
	ClientIP   string
	Capture    bool
}

// ChargeResult is the common shape every adapter reply is translated into.
// Declines arrive as Approved=false, never as an error.
type ChargeResult struct {
	Approved              bool
	ProviderTransactionID string
	AuthCode              string
	InstrumentMask        string
	Raw                   map[string]any
}

type VaultInput struct {
	MerchantID snowflake.ID
	CustomerID snowflake.ID
	// Token is the one-time payment token produced by the provider's
	// client-side collect flow.
	Token string
}

type VaultResult struct {
	VaultRef string
	Brand    string
	Last4    string
	Raw      map[string]any
}

// Adapter abstracts one payment provider.
type Adapter interface {
	Name() string
	Charge(ctx context.Context, input ChargeInput) (ChargeResult, error)
}

// CardVaultAdapter adds saved-instrument support on top of charging.
type CardVaultAdapter interface {
	Adapter
	VaultPaymentMethod(ctx context.Context, input VaultInput) (VaultResult, error)
}
