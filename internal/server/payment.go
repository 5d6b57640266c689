package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/aspirepayments/aspire-payments-web/internal/idempotency"
	paymentdomain "github.com/aspirepayments/aspire-payments-web/internal/payment/domain"
)

type createPaymentRequest struct {
	InvoiceID  *snowflake.ID `json:"invoice_id"`
	Amount     int64         `json:"amount"`
	Currency   string        `json:"currency"`
	Method     string        `json:"method"`
	Rail       string        `json:"rail"`
	Provider   string        `json:"provider"`
	Token      string        `json:"token"`
	AccountRef string        `json:"account_ref"`
	ClientIP   string        `json:"client_ip"`
	Capture    *bool         `json:"capture"`
}

// @Summary      Create Payment
// @Description  Charge a card or initiate a bank debit for an invoice
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body createPaymentRequest true "Create Payment Request"
// @Success      200  {object}  paymentdomain.CreatePaymentResult
// @Router       /payments [post]
func (s *Server) CreatePayment(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}

	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	clientIP := strings.TrimSpace(req.ClientIP)
	if clientIP == "" {
		clientIP = c.ClientIP()
	}
	capture := true
	if req.Capture != nil {
		capture = *req.Capture
	}

	resp, err := s.paymentSvc.CreatePayment(c.Request.Context(), merchantID, paymentdomain.CreatePaymentInput{
		InvoiceID:      req.InvoiceID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Method:         req.Method,
		Rail:           req.Rail,
		ProviderPref:   req.Provider,
		Token:          req.Token,
		AccountRef:     req.AccountRef,
		ClientIP:       clientIP,
		Capture:        capture,
		IdempotencyKey: c.GetHeader(idempotency.HeaderKey),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type refundRequest struct {
	Amount *int64 `json:"amount"`
}

// @Summary      Refund Payment
// @Description  Create a refund; omitted amount refunds in full
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id      path  string         true  "Payment ID"
// @Param        request body  refundRequest  true  "Refund Request"
// @Success      200  {object}  paymentdomain.Refund
// @Router       /payments/{id}/refunds [post]
func (s *Server) RefundPayment(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req refundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.paymentSvc.Refund(c.Request.Context(), merchantID, id, req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Payment
// @Tags         payments
// @Produce      json
// @Param        id  path  string  true  "Payment ID"
// @Success      200  {object}  paymentdomain.Payment
// @Router       /payments/{id} [get]
func (s *Server) GetPayment(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.paymentSvc.Get(c.Request.Context(), merchantID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Payments
// @Tags         payments
// @Produce      json
// @Param        limit  query  int  false  "Limit"
// @Success      200  {object}  []paymentdomain.Payment
// @Router       /payments [get]
func (s *Server) ListPayments(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}

	resp, err := s.paymentSvc.List(c.Request.Context(), merchantID, queryInt(c, "limit"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type vaultMethodRequest struct {
	CustomerID snowflake.ID `json:"customer_id"`
	Provider   string       `json:"provider"`
	Token      string       `json:"token"`
}

// @Summary      Vault Payment Method
// @Description  Store a card with the vault provider and save the reference
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body vaultMethodRequest true "Vault Method Request"
// @Success      200  {object}  paymentdomain.PaymentMethod
// @Router       /payment-methods [post]
func (s *Server) VaultPaymentMethod(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}

	var req vaultMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.VaultPaymentMethod(c.Request.Context(), merchantID, paymentdomain.VaultMethodInput{
		CustomerID: req.CustomerID,
		Provider:   req.Provider,
		Token:      req.Token,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
