package tenant

import (
	"go.uber.org/fx"

	"github.com/aspirepayments/aspire-payments-web/internal/tenant/service"
)

var Module = fx.Module("tenant.service",
	fx.Provide(service.NewService),
)
