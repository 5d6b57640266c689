package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Provisioner guarantees the owning merchant exists before any write.
// Passed explicitly into each service; never a package-level singleton.
type Provisioner interface {
	// EnsureMerchant returns the merchant, creating it when absent.
	// A zero id resolves to the default merchant.
	EnsureMerchant(ctx context.Context, id snowflake.ID) (Merchant, error)
	// EnsureMerchantTx is the transactional variant for callers that
	// need the merchant row inside their own unit of work.
	EnsureMerchantTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (Merchant, error)
	// ConnectGateway stores (or rotates) a gateway credential.
	ConnectGateway(ctx context.Context, merchantID snowflake.ID, gateway, apiKey string) error
	// GatewayKey returns the stored credential for a gateway, or "" when
	// the merchant has none connected.
	GatewayKey(ctx context.Context, merchantID snowflake.ID, gateway string) (string, error)
}

var (
	ErrInvalidGateway = errors.New("invalid_gateway")
	ErrInvalidAPIKey  = errors.New("invalid_api_key")
)
