package catalog

import (
	"go.uber.org/fx"

	"github.com/aspirepayments/aspire-payments-web/internal/catalog/service"
)

var Module = fx.Module("catalog.service",
	fx.Provide(service.NewService),
)
