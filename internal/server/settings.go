package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	settingsdomain "github.com/aspirepayments/aspire-payments-web/internal/settings/domain"
)

type feePlanRequest struct {
	Name                string `json:"name"`
	Mode                string `json:"mode"`
	ConvenienceFeeCents int64  `json:"convenience_fee_cents"`
	ServiceFeeBps       int64  `json:"service_fee_bps"`
	IsDefault           bool   `json:"is_default"`
}

func (r feePlanRequest) toInput() settingsdomain.FeePlanInput {
	return settingsdomain.FeePlanInput{
		Name:                r.Name,
		Mode:                r.Mode,
		ConvenienceFeeCents: r.ConvenienceFeeCents,
		ServiceFeeBps:       r.ServiceFeeBps,
		IsDefault:           r.IsDefault,
	}
}

func (s *Server) CreateFeePlan(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	var req feePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	resp, err := s.settingsSvc.CreateFeePlan(c.Request.Context(), merchantID, req.toInput())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateFeePlan(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req feePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	resp, err := s.settingsSvc.UpdateFeePlan(c.Request.Context(), merchantID, id, req.toInput())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteFeePlan(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.settingsSvc.DeleteFeePlan(c.Request.Context(), merchantID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ListFeePlans(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	resp, err := s.settingsSvc.ListFeePlans(c.Request.Context(), merchantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetDefaultFeePlan(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.settingsSvc.SetDefaultFeePlan(c.Request.Context(), merchantID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type taxRateRequest struct {
	Name      string `json:"name"`
	RateBps   int64  `json:"rate_bps"`
	IsDefault bool   `json:"is_default"`
}

func (r taxRateRequest) toInput() settingsdomain.TaxRateInput {
	return settingsdomain.TaxRateInput{Name: r.Name, RateBps: r.RateBps, IsDefault: r.IsDefault}
}

func (s *Server) CreateTaxRate(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	var req taxRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	resp, err := s.settingsSvc.CreateTaxRate(c.Request.Context(), merchantID, req.toInput())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateTaxRate(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req taxRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	resp, err := s.settingsSvc.UpdateTaxRate(c.Request.Context(), merchantID, id, req.toInput())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteTaxRate(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.settingsSvc.DeleteTaxRate(c.Request.Context(), merchantID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ListTaxRates(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	resp, err := s.settingsSvc.ListTaxRates(c.Request.Context(), merchantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetDefaultTaxRate(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.settingsSvc.SetDefaultTaxRate(c.Request.Context(), merchantID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type paymentTermRequest struct {
	Name      string `json:"name"`
	Days      int    `json:"days"`
	IsDefault bool   `json:"is_default"`
}

func (r paymentTermRequest) toInput() settingsdomain.PaymentTermInput {
	return settingsdomain.PaymentTermInput{Name: r.Name, Days: r.Days, IsDefault: r.IsDefault}
}

func (s *Server) CreatePaymentTerm(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	var req paymentTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	resp, err := s.settingsSvc.CreatePaymentTerm(c.Request.Context(), merchantID, req.toInput())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdatePaymentTerm(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req paymentTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	resp, err := s.settingsSvc.UpdatePaymentTerm(c.Request.Context(), merchantID, id, req.toInput())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeletePaymentTerm(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.settingsSvc.DeletePaymentTerm(c.Request.Context(), merchantID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ListPaymentTerms(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	resp, err := s.settingsSvc.ListPaymentTerms(c.Request.Context(), merchantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetDefaultPaymentTerm(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.settingsSvc.SetDefaultPaymentTerm(c.Request.Context(), merchantID, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
