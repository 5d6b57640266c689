package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	invoicedomain "github.com/aspirepayments/aspire-payments-web/internal/invoice/domain"
)

// @Summary      Create Pay Link
// @Description  Mint a signed public payment link for an invoice
// @Tags         invoices
// @Produce      json
// @Param        id  path  string  true  "Invoice ID"
// @Success      200  {object}  map[string]string
// @Router       /invoices/{id}/link [post]
func (s *Server) CreatePayLink(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	// The link is mintable for any existing invoice; payability is checked
	// when the customer opens it, so a drafted invoice can be shared early.
	if _, err := s.invoiceSvc.Get(c.Request.Context(), merchantID, id); err != nil {
		AbortWithError(c, err)
		return
	}

	token, err := s.signer.Sign(id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"token":       token,
		"url":         s.cfg.PublicBaseURL + "/pay/" + token,
		"ttl_minutes": s.cfg.PayLinkTTLMinutes,
	}})
}

// publicInvoiceView is the customer-facing projection; internal notes and
// merchant-only fields stay out.
type publicInvoiceView struct {
	Number     string                      `json:"number"`
	Status     string                      `json:"status"`
	Currency   string                      `json:"currency"`
	IssueDate  time.Time                   `json:"issue_date"`
	DueDate    time.Time                   `json:"due_date"`
	Subtotal   int64                       `json:"subtotal"`
	FeeCents   int64                       `json:"fee_cents"`
	TaxTotal   int64                       `json:"tax_total"`
	Total      int64                       `json:"total"`
	AmountPaid int64                       `json:"amount_paid"`
	Message    *string                     `json:"message,omitempty"`
	Payable    bool                        `json:"payable"`
	Items      []invoicedomain.InvoiceItem `json:"items"`
}

// PublicInvoice serves the invoice behind a valid pay-link token.
func (s *Server) PublicInvoice(c *gin.Context) {
	invoiceID, err := s.signer.Verify(c.Param("token"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.loadInvoiceByID(c.Request.Context(), invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": publicInvoiceView{
		Number:     invoice.Number,
		Status:     invoice.Status,
		Currency:   invoice.Currency,
		IssueDate:  invoice.IssueDate,
		DueDate:    invoice.DueDate,
		Subtotal:   invoice.Subtotal,
		FeeCents:   invoice.FeeCents,
		TaxTotal:   invoice.TaxTotal,
		Total:      invoice.Total,
		AmountPaid: invoice.AmountPaid,
		Message:    invoice.Message,
		Payable:    invoice.Payable(),
		Items:      invoice.Items,
	}})
}

// RefreshPayLink re-issues a token for a stale link. The signature must
// still verify and the invoice must still be collectible.
func (s *Server) RefreshPayLink(c *gin.Context) {
	token, err := s.signer.Refresh(c.Request.Context(), c.Param("token"), s.invoicePayable)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"token":       token,
		"url":         s.cfg.PublicBaseURL + "/pay/" + token,
		"ttl_minutes": s.cfg.PayLinkTTLMinutes,
	}})
}

func (s *Server) invoicePayable(ctx context.Context, invoiceID snowflake.ID) (bool, error) {
	invoice, err := s.loadInvoiceByID(ctx, invoiceID)
	if err != nil {
		return false, err
	}
	return invoice.Payable(), nil
}

// loadInvoiceByID reads an invoice without merchant scoping. Public pay-link
// access authorizes by token signature, not by tenant header.
func (s *Server) loadInvoiceByID(ctx context.Context, id snowflake.ID) (invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invoice, invoicedomain.ErrInvoiceNotFound
		}
		return invoice, err
	}
	if err := s.db.WithContext(ctx).
		Where("invoice_id = ?", id).
		Order("id").
		Find(&invoice.Items).Error; err != nil {
		return invoice, err
	}
	return invoice, nil
}
