package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aspirepayments/aspire-payments-web/internal/catalog"
	"github.com/aspirepayments/aspire-payments-web/internal/clock"
	"github.com/aspirepayments/aspire-payments-web/internal/config"
	"github.com/aspirepayments/aspire-payments-web/internal/customer"
	"github.com/aspirepayments/aspire-payments-web/internal/events"
	"github.com/aspirepayments/aspire-payments-web/internal/idempotency"
	"github.com/aspirepayments/aspire-payments-web/internal/invoice"
	"github.com/aspirepayments/aspire-payments-web/internal/migration"
	"github.com/aspirepayments/aspire-payments-web/internal/observability"
	"github.com/aspirepayments/aspire-payments-web/internal/payment"
	"github.com/aspirepayments/aspire-payments-web/internal/seed"
	"github.com/aspirepayments/aspire-payments-web/internal/server"
	"github.com/aspirepayments/aspire-payments-web/internal/settings"
	"github.com/aspirepayments/aspire-payments-web/internal/tenant"
	"github.com/aspirepayments/aspire-payments-web/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		fx.Invoke(Bootstrap),

		fx.Provide(events.NewOutbox),

		tenant.Module,
		customer.Module,
		catalog.Module,
		settings.Module,
		invoice.Module,
		idempotency.Module,
		payment.Module,

		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Invoke(func(s *server.Server, engine *gin.Engine) {
			s.RegisterAPIRoutes(engine)
		}),
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// Bootstrap applies migrations and seeds the default merchant before any
// module starts serving.
func Bootstrap(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if err := migration.RunMigrations(sqlDB); err != nil {
		return err
	}
	log.Info("migrations applied")

	if cfg.EnsureDefaultMerchant {
		if err := seed.EnsureDefaultMerchantAndAdmin(conn, cfg); err != nil {
			return err
		}
		log.Info("default merchant ensured")
	}
	return nil
}
