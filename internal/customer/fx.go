package customer

import (
	"go.uber.org/fx"

	"github.com/aspirepayments/aspire-payments-web/internal/customer/service"
)

var Module = fx.Module("customer.service",
	fx.Provide(service.NewService),
)
