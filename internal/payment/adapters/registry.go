package adapters

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aspirepayments/aspire-payments-web/internal/config"
	paymentdomain "github.com/aspirepayments/aspire-payments-web/internal/payment/domain"
)

// Provider tags.
const (
	ProviderNMI          = "nmi"
	ProviderAuthorizeNet = "authorizenet"
	ProviderStraddle     = "straddle"
	ProviderPlaid        = "plaid"
)

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

// Registry resolves provider adapters by tag and routes methods to their
// default provider.
type Registry struct {
	adapters map[string]paymentdomain.Adapter
}

func NewRegistry(p Params) *Registry {
	client := &http.Client{Timeout: p.Cfg.ProviderTimeout}
	log := p.Log.Named("payment.adapters")

	registry := &Registry{adapters: map[string]paymentdomain.Adapter{
		ProviderNMI:          NewNMI(p.Cfg, client, log),
		ProviderAuthorizeNet: NewAuthorizeNet(p.Cfg, client, log),
		ProviderStraddle:     NewStraddle(p.Cfg, client, log),
		ProviderPlaid:        NewPlaid(p.Cfg, client, log),
	}}
	return registry
}

func (r *Registry) Get(name string) (paymentdomain.Adapter, error) {
	adapter, ok := r.adapters[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, paymentdomain.ErrInvalidProvider
	}
	return adapter, nil
}

// ForMethod picks the adapter for a payment method, honoring an explicit
// provider preference when given. Cards default to NMI, bank to Straddle.
func (r *Registry) ForMethod(method, pref string) (paymentdomain.Adapter, error) {
	if pref = strings.ToLower(strings.TrimSpace(pref)); pref != "" {
		return r.Get(pref)
	}
	switch method {
	case paymentdomain.MethodCard:
		return r.Get(ProviderNMI)
	case paymentdomain.MethodBank:
		return r.Get(ProviderStraddle)
	}
	return nil, paymentdomain.ErrInvalidMethod
}

func (r *Registry) ProviderExists(name string) bool {
	_, ok := r.adapters[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// simulatedRef derives a stable transaction id for simulate mode, so
// repeated runs (and tests) observe deterministic success shapes.
func simulatedRef(provider string, input paymentdomain.ChargeInput) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%d|%s|%s", provider, input.MerchantID, input.Amount, input.Currency, input.Token))
	return "sim_" + hex.EncodeToString(sum[:8])
}
