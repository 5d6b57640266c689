package invoice

import (
	"time"

	"go.uber.org/fx"

	"github.com/aspirepayments/aspire-payments-web/internal/clock"
	"github.com/aspirepayments/aspire-payments-web/internal/config"
	"github.com/aspirepayments/aspire-payments-web/internal/invoice/paylink"
	"github.com/aspirepayments/aspire-payments-web/internal/invoice/service"
)

var Module = fx.Module("invoice.service",
	fx.Provide(service.NewService),
	fx.Provide(newSigner),
)

func newSigner(cfg config.Config, clk clock.Clock) (*paylink.Signer, error) {
	secret := cfg.PayLinkSecret
	if secret == "" && !cfg.IsProduction() {
		secret = "dev-paylink-secret"
	}
	ttl := time.Duration(cfg.PayLinkTTLMinutes) * time.Minute
	return paylink.NewSigner(secret, ttl, clk)
}
