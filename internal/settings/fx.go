package settings

import (
	"go.uber.org/fx"

	"github.com/aspirepayments/aspire-payments-web/internal/settings/service"
)

var Module = fx.Module("settings.service",
	fx.Provide(service.NewService),
)
