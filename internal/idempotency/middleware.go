package idempotency

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// HeaderKey carries the client-supplied idempotency key.
	HeaderKey = "Idempotency-Key"
	// HeaderReplay marks a response served from the stored canonical body.
	HeaderReplay = "X-Idempotent-Replay"
)

type bodyCapture struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyCapture) Write(data []byte) (int, error) {
	w.buf.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *bodyCapture) WriteString(data string) (int, error) {
	w.buf.WriteString(data)
	return w.ResponseWriter.WriteString(data)
}

// Middleware guards mutating handlers with at-most-one execution per key.
// Requests without a key pass through untouched.
func Middleware(store *Store, log *zap.Logger) gin.HandlerFunc {
	log = log.Named("idempotency")
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderKey)
		if key == "" {
			c.Next()
			return
		}

		reservation, err := store.Reserve(c.Request.Context(), key)
		if err != nil {
			log.Error("reserve failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{"code": "internal", "message": "idempotency reservation failed"},
			})
			return
		}

		switch reservation.State {
		case StateReplay:
			c.Header(HeaderReplay, "true")
			c.Data(http.StatusOK, "application/json", reservation.Response)
			c.Abort()
			return
		case StateInFlight:
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error": gin.H{"code": "conflict", "message": "request with this idempotency key is in flight"},
			})
			return
		}

		capture := &bodyCapture{ResponseWriter: c.Writer}
		c.Writer = capture
		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusOK && status < http.StatusMultipleChoices {
			if err := store.StoreResponse(c.Request.Context(), key, capture.buf.Bytes()); err != nil {
				log.Error("store canonical response failed", zap.Error(err))
			}
			return
		}
		// Failed executions free the key so the client may retry.
		if err := store.Release(c.Request.Context(), key); err != nil {
			log.Error("release reservation failed", zap.Error(err))
		}
	}
}
