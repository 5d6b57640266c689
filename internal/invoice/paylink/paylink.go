package paylink

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"

	"github.com/aspirepayments/aspire-payments-web/internal/clock"
)

var (
	ErrExpired          = errors.New("paylink_expired")
	ErrMalformed        = errors.New("paylink_malformed")
	ErrInvalidSignature = errors.New("paylink_invalid_signature")
	ErrNotPayable       = errors.New("invoice_not_payable")
)

// PayableFunc reports whether the invoice may still collect money.
type PayableFunc func(ctx context.Context, invoiceID snowflake.ID) (bool, error)

type linkClaims struct {
	InvoiceID string `json:"invoice_id"`
	jwt.RegisteredClaims
}

// Signer mints and validates HS256 pay-link tokens scoped to one invoice.
type Signer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewSigner(secret string, ttl time.Duration, clk clock.Clock) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("paylink secret is required")
	}
	if ttl <= 0 {
		ttl = 60 * time.Minute
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Signer{secret: []byte(secret), ttl: ttl, clock: clk}, nil
}

// Sign mints a token for the invoice using the configured TTL.
func (s *Signer) Sign(invoiceID snowflake.ID) (string, error) {
	return s.SignWithTTL(invoiceID, s.ttl)
}

func (s *Signer) SignWithTTL(invoiceID snowflake.ID, ttl time.Duration) (string, error) {
	if invoiceID == 0 {
		return "", ErrMalformed
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.clock.Now().UTC()
	claims := linkClaims{
		InvoiceID: invoiceID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature and expiry and returns the invoice id.
func (s *Signer) Verify(token string) (snowflake.ID, error) {
	return s.parse(token, false)
}

// VerifyIgnoringExpiry trusts the signature of a stale token. Used only by
// Refresh; an expired link stays refreshable as long as it was never forged.
func (s *Signer) VerifyIgnoringExpiry(token string) (snowflake.ID, error) {
	return s.parse(token, true)
}

// Refresh re-validates a token ignoring expiry, checks the invoice is still
// payable and mints a fresh token.
func (s *Signer) Refresh(ctx context.Context, token string, payable PayableFunc) (string, error) {
	invoiceID, err := s.VerifyIgnoringExpiry(token)
	if err != nil {
		return "", err
	}
	if payable != nil {
		ok, err := payable(ctx, invoiceID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrNotPayable
		}
	}
	return s.Sign(invoiceID)
}

func (s *Signer) parse(token string, ignoreExpiry bool) (snowflake.ID, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return s.clock.Now().UTC() }),
	}
	if ignoreExpiry {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	var claims linkClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, options...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return 0, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return 0, ErrInvalidSignature
		default:
			return 0, ErrMalformed
		}
	}

	raw, parseErr := strconv.ParseInt(claims.InvoiceID, 10, 64)
	if parseErr != nil || raw == 0 {
		return 0, ErrMalformed
	}
	return snowflake.ID(raw), nil
}
