package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	catalogdomain "github.com/aspirepayments/aspire-payments-web/internal/catalog/domain"
	customerdomain "github.com/aspirepayments/aspire-payments-web/internal/customer/domain"
	invoicedomain "github.com/aspirepayments/aspire-payments-web/internal/invoice/domain"
	"github.com/aspirepayments/aspire-payments-web/internal/invoice/paylink"
	paymentdomain "github.com/aspirepayments/aspire-payments-web/internal/payment/domain"
	settingsdomain "github.com/aspirepayments/aspire-payments-web/internal/settings/domain"
	tenantdomain "github.com/aspirepayments/aspire-payments-web/internal/tenant/domain"
	"github.com/aspirepayments/aspire-payments-web/internal/validation"
)

type apiError struct {
	status  int
	code    string
	message string
	fields  map[string]string
}

func (e *apiError) Error() string { return e.code }

var (
	ErrNotFound     = &apiError{status: http.StatusNotFound, code: "not_found", message: "resource not found"}
	ErrUnauthorized = &apiError{status: http.StatusUnauthorized, code: "unauthorized", message: "unauthorized"}

	errRateLimited = &apiError{status: http.StatusTooManyRequests, code: "rate_limited", message: "too many requests"}
)

func invalidRequestError() error {
	return &apiError{status: http.StatusBadRequest, code: "invalid_request", message: "malformed request body"}
}

func newValidationError(field, code, message string) error {
	return &apiError{
		status:  http.StatusBadRequest,
		code:    code,
		message: message,
		fields:  map[string]string{field: message},
	}
}

// domainErrorStatus maps domain sentinels to HTTP statuses. The sentinel's
// snake_case text doubles as the wire error code.
var domainErrorStatus = []struct {
	err    error
	status int
}{
	{invoicedomain.ErrInvoiceNotFound, http.StatusNotFound},
	{customerdomain.ErrCustomerNotFound, http.StatusNotFound},
	{catalogdomain.ErrItemNotFound, http.StatusNotFound},
	{paymentdomain.ErrPaymentNotFound, http.StatusNotFound},
	{settingsdomain.ErrNotFound, http.StatusNotFound},

	{invoicedomain.ErrInvoiceVoid, http.StatusConflict},
	{paylink.ErrNotPayable, http.StatusConflict},

	{paylink.ErrExpired, http.StatusUnauthorized},
	{paylink.ErrInvalidSignature, http.StatusUnauthorized},
	{paymentdomain.ErrInvalidSignature, http.StatusUnauthorized},

	{paylink.ErrMalformed, http.StatusBadRequest},
	{invoicedomain.ErrInvalidStatus, http.StatusBadRequest},
	{invoicedomain.ErrMissingCustomer, http.StatusBadRequest},
	{invoicedomain.ErrMissingItems, http.StatusBadRequest},
	{customerdomain.ErrInvalidCustomer, http.StatusBadRequest},
	{customerdomain.ErrInvalidEmail, http.StatusBadRequest},
	{catalogdomain.ErrInvalidItem, http.StatusBadRequest},
	{settingsdomain.ErrInvalidFeePlan, http.StatusBadRequest},
	{settingsdomain.ErrInvalidTaxRate, http.StatusBadRequest},
	{settingsdomain.ErrInvalidTerm, http.StatusBadRequest},
	{paymentdomain.ErrInvalidAmount, http.StatusBadRequest},
	{paymentdomain.ErrInvalidMethod, http.StatusBadRequest},
	{paymentdomain.ErrInvalidProvider, http.StatusBadRequest},
	{paymentdomain.ErrInvalidPayload, http.StatusBadRequest},
	{paymentdomain.ErrMissingClientIP, http.StatusBadRequest},
	{paymentdomain.ErrMissingToken, http.StatusBadRequest},
	{paymentdomain.ErrVaultNotSupported, http.StatusBadRequest},
	{tenantdomain.ErrInvalidGateway, http.StatusBadRequest},
	{tenantdomain.ErrInvalidAPIKey, http.StatusBadRequest},

	{paymentdomain.ErrProviderFailure, http.StatusBadGateway},
}

// AbortWithError writes the structured error envelope and stops the chain.
func AbortWithError(c *gin.Context, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "validation_failed",
				"message": "validation failed",
				"fields":  verr.Fields,
			},
		})
		return
	}

	var aerr *apiError
	if errors.As(err, &aerr) {
		body := gin.H{"code": aerr.code, "message": aerr.message}
		if len(aerr.fields) > 0 {
			body["fields"] = aerr.fields
		}
		c.AbortWithStatusJSON(aerr.status, gin.H{"error": body})
		return
	}

	for _, entry := range domainErrorStatus {
		if errors.Is(err, entry.err) {
			c.AbortWithStatusJSON(entry.status, gin.H{
				"error": gin.H{"code": entry.err.Error(), "message": entry.err.Error()},
			})
			return
		}
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{"code": "internal", "message": "internal server error"},
	})
}
