package service

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/aspirepayments/aspire-payments-web/internal/payment/adapters"
	paymentdomain "github.com/aspirepayments/aspire-payments-web/internal/payment/domain"
)

const (
	headerWebhookSecret  = "X-Webhook-Secret"
	headerAuthNetDigest  = "X-ANET-Signature"
	headerWebhookEventID = "X-Event-Id"
)

// verifyWebhook authenticates an inbound event. Signature mismatches are
// always rejected; the ack-on-failure toggle never applies here.
func (s *Service) verifyWebhook(provider string, payload []byte, headers http.Header) error {
	switch provider {
	case adapters.ProviderStraddle:
		secret := s.cfg.StraddleWebhookSecret
		if secret == "" {
			s.log.Warn("straddle webhook secret not configured, accepting event")
			return nil
		}
		presented := headers.Get(headerWebhookSecret)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			return paymentdomain.ErrInvalidSignature
		}
		return nil

	case adapters.ProviderAuthorizeNet:
		keyHex := s.cfg.AuthNetSignatureKeyHex
		if keyHex == "" {
			s.log.Warn("authorizenet signature key not configured, accepting event")
			return nil
		}
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			s.log.Error("authorizenet signature key is not valid hex", zap.Error(err))
			return paymentdomain.ErrInvalidSignature
		}
		presented := strings.TrimPrefix(strings.ToLower(headers.Get(headerAuthNetDigest)), "sha512=")
		mac := hmac.New(sha512.New, key)
		mac.Write(payload)
		expected := hex.EncodeToString(mac.Sum(nil))
		if subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
			return paymentdomain.ErrInvalidSignature
		}
		return nil
	}

	// NMI and Plaid events carry no shared-secret scheme here; dedup plus
	// idempotent upsert bound the damage of a spoofed event.
	return nil
}
