package payment

import (
	"go.uber.org/fx"

	"github.com/aspirepayments/aspire-payments-web/internal/payment/adapters"
	"github.com/aspirepayments/aspire-payments-web/internal/payment/service"
)

var Module = fx.Module("payment.service",
	fx.Provide(adapters.NewRegistry),
	fx.Provide(service.NewService),
)
