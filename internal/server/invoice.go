package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	invoicedomain "github.com/aspirepayments/aspire-payments-web/internal/invoice/domain"
)

type invoiceLineRequest struct {
	ItemID      *snowflake.ID `json:"item_id"`
	Description string        `json:"description"`
	Quantity    int64         `json:"quantity"`
	UnitPrice   int64         `json:"unit_price"`
	Taxable     bool          `json:"taxable"`
}

func toLineInputs(lines []invoiceLineRequest) []invoicedomain.LineInput {
	out := make([]invoicedomain.LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, invoicedomain.LineInput{
			ItemID:      line.ItemID,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Taxable:     line.Taxable,
		})
	}
	return out
}

type createInvoiceRequest struct {
	CustomerID   snowflake.ID         `json:"customer_id"`
	IssueDate    *time.Time           `json:"issue_date"`
	Term         *string              `json:"term"`
	DueDate      *time.Time           `json:"due_date"`
	Currency     *string              `json:"currency"`
	FeePlanID    *snowflake.ID        `json:"fee_plan_id"`
	TaxRateID    *snowflake.ID        `json:"tax_rate_id"`
	Items        []invoiceLineRequest `json:"items"`
	Message      *string              `json:"message"`
	InternalNote *string              `json:"internal_note"`
	Send         bool                 `json:"send"`
}

// @Summary      Create Invoice
// @Description  Create a draft (or sent) invoice with computed totals
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body createInvoiceRequest true "Create Invoice Request"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices [post]
func (s *Server) CreateInvoice(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}

	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), merchantID, invoicedomain.CreateInput{
		CustomerID:   req.CustomerID,
		IssueDate:    req.IssueDate,
		Term:         req.Term,
		DueDate:      req.DueDate,
		Currency:     req.Currency,
		FeePlanID:    req.FeePlanID,
		TaxRateID:    req.TaxRateID,
		Items:        toLineInputs(req.Items),
		Message:      req.Message,
		InternalNote: req.InternalNote,
		Send:         req.Send,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateInvoiceRequest struct {
	CustomerID   *snowflake.ID         `json:"customer_id"`
	IssueDate    *time.Time            `json:"issue_date"`
	Term         *string               `json:"term"`
	DueDate      *time.Time            `json:"due_date"`
	Currency     *string               `json:"currency"`
	FeePlanID    *snowflake.ID         `json:"fee_plan_id"`
	ClearFeePlan bool                  `json:"clear_fee_plan"`
	TaxRateID    *snowflake.ID         `json:"tax_rate_id"`
	ClearTaxRate bool                  `json:"clear_tax_rate"`
	Items        *[]invoiceLineRequest `json:"items"`
	Message      *string               `json:"message"`
	InternalNote *string               `json:"internal_note"`
	Status       *string               `json:"status"`
}

// @Summary      Update Invoice
// @Description  Update invoice scalars; a present items array replaces all lines
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id      path  string                true  "Invoice ID"
// @Param        request body  updateInvoiceRequest  true  "Update Invoice Request"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices/{id} [put]
func (s *Server) UpdateInvoice(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req updateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	input := invoicedomain.UpdateInput{
		CustomerID:   req.CustomerID,
		IssueDate:    req.IssueDate,
		Term:         req.Term,
		DueDate:      req.DueDate,
		Currency:     req.Currency,
		FeePlanID:    req.FeePlanID,
		ClearFeePlan: req.ClearFeePlan,
		TaxRateID:    req.TaxRateID,
		ClearTaxRate: req.ClearTaxRate,
		Message:      req.Message,
		InternalNote: req.InternalNote,
		Status:       req.Status,
	}
	if req.Items != nil {
		input.Items = toLineInputs(*req.Items)
	}

	resp, err := s.invoiceSvc.Update(c.Request.Context(), merchantID, id, input)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type patchInvoiceRequest struct {
	Status     *string `json:"status"`
	AmountPaid *int64  `json:"amount_paid"`
}

// @Summary      Patch Invoice
// @Description  Adjust invoice status or amount paid
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id      path  string               true  "Invoice ID"
// @Param        request body  patchInvoiceRequest  true  "Patch Invoice Request"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices/{id} [patch]
func (s *Server) PatchInvoice(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req patchInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.Patch(c.Request.Context(), merchantID, id, invoicedomain.PatchInput{
		Status:     req.Status,
		AmountPaid: req.AmountPaid,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Void Invoice
// @Description  Void an invoice; terminal
// @Tags         invoices
// @Produce      json
// @Param        id  path  string  true  "Invoice ID"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices/{id}/void [post]
func (s *Server) VoidInvoice(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.invoiceSvc.Void(c.Request.Context(), merchantID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Invoice
// @Tags         invoices
// @Produce      json
// @Param        id  path  string  true  "Invoice ID"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices/{id} [get]
func (s *Server) GetInvoice(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	resp, err := s.invoiceSvc.Get(c.Request.Context(), merchantID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Invoices
// @Tags         invoices
// @Produce      json
// @Param        status       query  string  false  "Status"
// @Param        customer_id  query  string  false  "Customer ID"
// @Param        cursor       query  string  false  "Cursor"
// @Param        limit        query  int     false  "Limit"
// @Success      200  {object}  invoicedomain.ListResult
// @Router       /invoices [get]
func (s *Server) ListInvoices(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}
	customerID, ok := queryID(c, "customer_id")
	if !ok {
		return
	}
	cursor, ok := queryID(c, "cursor")
	if !ok {
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), merchantID, invoicedomain.ListInput{
		Status:     c.Query("status"),
		CustomerID: customerID,
		Cursor:     cursor,
		Limit:      queryInt(c, "limit"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Reports Summary
// @Description  Revenue series, open receivables, transaction count and aging
// @Tags         reports
// @Produce      json
// @Param        from  query  string  false  "From date"
// @Param        to    query  string  false  "To date"
// @Success      200  {object}  invoicedomain.ReportSummary
// @Router       /reports/summary [get]
func (s *Server) ReportsSummary(c *gin.Context) {
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}

	from, err := parseOptionalTime(c.Query("from"), false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from date"))
		return
	}
	to, err := parseOptionalTime(c.Query("to"), true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to date"))
		return
	}

	resp, err := s.invoiceSvc.Reports(c.Request.Context(), merchantID, from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// RepairInvoiceFees strips legacy fee line items and rebuilds totals.
// Dev tooling; hidden in production.
func (s *Server) RepairInvoiceFees(c *gin.Context) {
	if s.cfg.IsProduction() {
		AbortWithError(c, ErrNotFound)
		return
	}
	merchantID, ok := s.resolveMerchant(c)
	if !ok {
		return
	}

	repaired, err := s.invoiceSvc.RepairFees(c.Request.Context(), merchantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"repaired": repaired}})
}
