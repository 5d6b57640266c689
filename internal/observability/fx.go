package observability

import (
	"go.uber.org/fx"

	"github.com/aspirepayments/aspire-payments-web/internal/observability/logger"
	"github.com/aspirepayments/aspire-payments-web/internal/observability/tracing"
)

var Module = fx.Module("observability",
	fx.Provide(logger.New),
	fx.Invoke(tracing.Setup),
)
