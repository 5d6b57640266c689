package server

import (
	"github.com/gin-gonic/gin"

	"github.com/aspirepayments/aspire-payments-web/internal/idempotency"
)

// RegisterAPIRoutes wires the HTTP surface. Back-office routes live under
// /api; webhook and pay-link endpoints stay top-level because providers and
// customers call them directly.
func (s *Server) RegisterAPIRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.Health)

	engine.POST("/webhooks/:provider", s.IngestProviderWebhook)

	public := engine.Group("/public", s.publicRateLimit())
	public.GET("/invoices/:token", s.PublicInvoice)
	public.POST("/invoices/:token/refresh", s.RefreshPayLink)

	api := engine.Group("/api")

	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers", s.ListCustomers)
	api.GET("/customers/:id", s.GetCustomer)
	api.PATCH("/customers/:id", s.PatchCustomer)

	api.POST("/items", s.CreateItem)
	api.GET("/items", s.ListItems)
	api.GET("/items/:id", s.GetItem)
	api.PUT("/items/:id", s.UpdateItem)
	api.DELETE("/items/:id", s.DeleteItem)

	settings := api.Group("/settings")
	settings.POST("/fee-plans", s.CreateFeePlan)
	settings.GET("/fee-plans", s.ListFeePlans)
	settings.PUT("/fee-plans/:id", s.UpdateFeePlan)
	settings.DELETE("/fee-plans/:id", s.DeleteFeePlan)
	settings.POST("/fee-plans/:id/default", s.SetDefaultFeePlan)
	settings.POST("/tax-rates", s.CreateTaxRate)
	settings.GET("/tax-rates", s.ListTaxRates)
	settings.PUT("/tax-rates/:id", s.UpdateTaxRate)
	settings.DELETE("/tax-rates/:id", s.DeleteTaxRate)
	settings.POST("/tax-rates/:id/default", s.SetDefaultTaxRate)
	settings.POST("/payment-terms", s.CreatePaymentTerm)
	settings.GET("/payment-terms", s.ListPaymentTerms)
	settings.PUT("/payment-terms/:id", s.UpdatePaymentTerm)
	settings.DELETE("/payment-terms/:id", s.DeletePaymentTerm)
	settings.POST("/payment-terms/:id/default", s.SetDefaultPaymentTerm)

	api.POST("/invoices", s.CreateInvoice)
	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:id", s.GetInvoice)
	api.PUT("/invoices/:id", s.UpdateInvoice)
	api.PATCH("/invoices/:id", s.PatchInvoice)
	api.POST("/invoices/:id/void", s.VoidInvoice)
	api.POST("/invoices/:id/link", s.CreatePayLink)

	api.GET("/reports/summary", s.ReportsSummary)
	api.POST("/admin/repair/fees", s.RepairInvoiceFees)

	api.POST("/payments", idempotency.Middleware(s.idemStore, s.log), s.CreatePayment)
	api.GET("/payments", s.ListPayments)
	api.GET("/payments/:id", s.GetPayment)
	api.POST("/payments/:id/refunds", s.RefundPayment)
	api.POST("/payment-methods", s.VaultPaymentMethod)

	api.POST("/gateways", s.ConnectGateway)
}
