package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	catalogdomain "github.com/aspirepayments/aspire-payments-web/internal/catalog/domain"
	"github.com/aspirepayments/aspire-payments-web/internal/config"
	customerdomain "github.com/aspirepayments/aspire-payments-web/internal/customer/domain"
	"github.com/aspirepayments/aspire-payments-web/internal/idempotency"
	invoicedomain "github.com/aspirepayments/aspire-payments-web/internal/invoice/domain"
	"github.com/aspirepayments/aspire-payments-web/internal/invoice/paylink"
	"github.com/aspirepayments/aspire-payments-web/internal/observability/tracing"
	paymentdomain "github.com/aspirepayments/aspire-payments-web/internal/payment/domain"
	settingsdomain "github.com/aspirepayments/aspire-payments-web/internal/settings/domain"
	tenantdomain "github.com/aspirepayments/aspire-payments-web/internal/tenant/domain"
)

// HeaderMerchant scopes a request to one merchant. Absent, the default
// merchant is used; suits the single-tenant deployment this ships as.
const HeaderMerchant = "X-Merchant-Id"

const (
	publicLinkRateLimit  = 30
	publicLinkRateWindow = time.Minute
)

type Params struct {
	fx.In

	Cfg       config.Config
	Log       *zap.Logger
	DB        *gorm.DB
	Customers customerdomain.Service
	Items     catalogdomain.Service
	Settings  settingsdomain.Service
	Invoices  invoicedomain.Service
	Payments  paymentdomain.Service
	Tenant    tenantdomain.Provisioner
	Signer    *paylink.Signer
	IdemStore *idempotency.Store
}

type Server struct {
	cfg           config.Config
	log           *zap.Logger
	db            *gorm.DB
	customerSvc   customerdomain.Service
	itemSvc       catalogdomain.Service
	settingsSvc   settingsdomain.Service
	invoiceSvc    invoicedomain.Service
	paymentSvc    paymentdomain.Service
	tenantSvc     tenantdomain.Provisioner
	signer        *paylink.Signer
	idemStore     *idempotency.Store
	publicLimiter *rateLimiter
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:           p.Cfg,
		log:           p.Log.Named("server"),
		db:            p.DB,
		customerSvc:   p.Customers,
		itemSvc:       p.Items,
		settingsSvc:   p.Settings,
		invoiceSvc:    p.Invoices,
		paymentSvc:    p.Payments,
		tenantSvc:     p.Tenant,
		signer:        p.Signer,
		idemStore:     p.IdemStore,
		publicLimiter: newRateLimiter(publicLinkRateLimit, publicLinkRateWindow),
	}
}

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log))
	if cfg.OTLPEndpoint != "" {
		engine.Use(tracing.Middleware())
	}
	return engine
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// RunHTTP binds the listener to the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// resolveMerchant picks the merchant scope for the request. Reports false
// after writing the error response when the header cannot be parsed.
func (s *Server) resolveMerchant(c *gin.Context) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.GetHeader(HeaderMerchant))
	if raw == "" {
		merchant, err := s.tenantSvc.EnsureMerchant(c.Request.Context(), 0)
		if err != nil {
			AbortWithError(c, err)
			return 0, false
		}
		return merchant.ID, true
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed <= 0 {
		AbortWithError(c, newValidationError("merchant_id", "invalid_merchant_id", "invalid merchant id header"))
		return 0, false
	}
	return snowflake.ID(parsed), true
}

func pathID(c *gin.Context, name string) (snowflake.ID, bool) {
	parsed, err := strconv.ParseInt(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || parsed <= 0 {
		AbortWithError(c, newValidationError(name, "invalid_"+name, "invalid "+name))
		return 0, false
	}
	return snowflake.ID(parsed), true
}

func queryID(c *gin.Context, name string) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, true
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed <= 0 {
		AbortWithError(c, newValidationError(name, "invalid_"+name, "invalid "+name))
		return 0, false
	}
	return snowflake.ID(parsed), true
}

func queryInt(c *gin.Context, name string) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(c.Query(name)))
	if err != nil {
		return 0
	}
	return parsed
}

func parseOptionalTime(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	parsed = parsed.UTC()
	if endOfDay {
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return parsed, nil
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
