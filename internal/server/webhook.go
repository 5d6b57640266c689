package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	paymentdomain "github.com/aspirepayments/aspire-payments-web/internal/payment/domain"
)

const maxWebhookBody = 1 << 20

// IngestProviderWebhook receives a provider event, verifies it, and applies
// the status transition. Signature failures are always 401; other processing
// failures honor the ack-on-failure toggle so provider retry storms can be
// damped without hiding the error from the logs.
func (s *Server) IngestProviderWebhook(c *gin.Context) {
	provider := c.Param("provider")

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err = s.paymentSvc.IngestWebhook(c.Request.Context(), provider, payload, c.Request.Header)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, paymentdomain.ErrInvalidProvider),
		errors.Is(err, paymentdomain.ErrInvalidPayload):
		AbortWithError(c, err)
	default:
		s.log.Error("webhook processing failed",
			zap.String("provider", provider),
			zap.Error(err),
		)
		if s.cfg.WebhookAckOnFailure {
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		AbortWithError(c, err)
	}
}
