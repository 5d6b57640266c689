package domain

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
)

type CreatePaymentInput struct {
	InvoiceID    *snowflake.ID
	Amount       int64
	Currency     string
	Method       string
	Rail         string
	ProviderPref string
	Token        string
	AccountRef   string
	ClientIP     string
	Capture      bool
	// IdempotencyKey, when set, is recorded on the audit attempt.
	IdempotencyKey string
}

type CreatePaymentResult struct {
	PaymentID snowflake.ID `json:"payment_id"`
	Status    string       `json:"status"`
	Provider  string       `json:"provider"`
}

type VaultMethodInput struct {
	CustomerID snowflake.ID
	Provider   string
	Token      string
}

type Service interface {
	CreatePayment(ctx context.Context, merchantID snowflake.ID, input CreatePaymentInput) (CreatePaymentResult, error)
	Refund(ctx context.Context, merchantID snowflake.ID, paymentID snowflake.ID, amount *int64) (Refund, error)
	Get(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) (Payment, error)
	List(ctx context.Context, merchantID snowflake.ID, limit int) ([]Payment, error)
	VaultPaymentMethod(ctx context.Context, merchantID snowflake.ID, input VaultMethodInput) (PaymentMethod, error)
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}

var (
	ErrPaymentNotFound   = errors.New("payment_not_found")
	ErrInvalidProvider   = errors.New("invalid_provider")
	ErrInvalidMethod     = errors.New("invalid_method")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidSignature  = errors.New("invalid_signature")
	ErrInvalidPayload    = errors.New("invalid_payload")
	ErrEventIgnored      = errors.New("event_ignored")
	ErrMissingClientIP   = errors.New("missing_client_ip")
	ErrMissingToken      = errors.New("missing_token")
	ErrProviderFailure   = errors.New("provider_failure")
	ErrVaultNotSupported = errors.New("vault_not_supported")
)
