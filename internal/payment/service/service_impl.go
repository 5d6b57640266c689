package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aspirepayments/aspire-payments-web/internal/clock"
	"github.com/aspirepayments/aspire-payments-web/internal/config"
	"github.com/aspirepayments/aspire-payments-web/internal/events"
	invoicedomain "github.com/aspirepayments/aspire-payments-web/internal/invoice/domain"
	"github.com/aspirepayments/aspire-payments-web/internal/observability/logger"
	"github.com/aspirepayments/aspire-payments-web/internal/payment/adapters"
	paymentdomain "github.com/aspirepayments/aspire-payments-web/internal/payment/domain"
	tenantdomain "github.com/aspirepayments/aspire-payments-web/internal/tenant/domain"
	"github.com/aspirepayments/aspire-payments-web/internal/validation"
)

// sandboxClientIP substitutes for loopback addresses in sandbox testing.
const sandboxClientIP = "1.1.1.1"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Cfg      config.Config
	Clock    clock.Clock
	Tenant   tenantdomain.Provisioner
	Invoices invoicedomain.Service
	Adapters *adapters.Registry
	Outbox   *events.Outbox
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	cfg      config.Config
	clock    clock.Clock
	tenant   tenantdomain.Provisioner
	invoices invoicedomain.Service
	adapters *adapters.Registry
	outbox   *events.Outbox
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		cfg:      p.Cfg,
		clock:    p.Clock,
		tenant:   p.Tenant,
		invoices: p.Invoices,
		adapters: p.Adapters,
		outbox:   p.Outbox,
	}
}

func (s *Service) CreatePayment(ctx context.Context, merchantID snowflake.ID, input paymentdomain.CreatePaymentInput) (paymentdomain.CreatePaymentResult, error) {
	var out paymentdomain.CreatePaymentResult

	input.Method = strings.ToLower(strings.TrimSpace(input.Method))
	input.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))
	if input.Currency == "" {
		input.Currency = "USD"
	}
	if input.Method == paymentdomain.MethodBank && input.Rail == "" {
		input.Rail = paymentdomain.RailACH
	}
	input.ClientIP = s.resolveClientIP(input.ClientIP)

	if err := validateCreatePayment(input); err != nil {
		return out, err
	}

	adapter, err := s.adapters.ForMethod(input.Method, input.ProviderPref)
	if err != nil {
		return out, err
	}

	merchant, err := s.tenant.EnsureMerchant(ctx, merchantID)
	if err != nil {
		return out, err
	}

	now := s.clock.Now().UTC()
	payment := paymentdomain.Payment{
		ID:         s.genID.Generate(),
		MerchantID: merchant.ID,
		InvoiceID:  input.InvoiceID,
		Amount:     input.Amount,
		Currency:   input.Currency,
		Method:     input.Method,
		Provider:   adapter.Name(),
		Status:     paymentdomain.StatusCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if input.Rail != "" {
		rail := input.Rail
		payment.Rail = &rail
	}
	if err := s.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return out, err
	}

	chargeInput := paymentdomain.ChargeInput{
		MerchantID: merchant.ID,
		Amount:     input.Amount,
		Currency:   input.Currency,
		Method:     input.Method,
		Rail:       input.Rail,
		Token:      input.Token,
		AccountRef: input.AccountRef,
		ClientIP:   input.ClientIP,
		Capture:    input.Capture,
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	result, chargeErr := adapter.Charge(callCtx, chargeInput)
	cancel()

	finalStatus := s.outcomeStatus(input.Method, result, chargeErr)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempt := paymentdomain.PaymentAttempt{
			ID:           s.genID.Generate(),
			PaymentID:    payment.ID,
			Status:       finalStatus,
			RequestJSON:  marshalJSON(attemptRequest(chargeInput)),
			ResponseJSON: marshalJSON(attemptResponse(result, chargeErr)),
			CreatedAt:    s.clock.Now().UTC(),
		}
		if input.IdempotencyKey != "" {
			key := input.IdempotencyKey
			attempt.IdempotencyKey = &key
		}
		if err := tx.WithContext(ctx).Create(&attempt).Error; err != nil {
			return err
		}

		updates := map[string]any{
			"status":     finalStatus,
			"updated_at": s.clock.Now().UTC(),
		}
		if result.ProviderTransactionID != "" {
			updates["provider_ref"] = result.ProviderTransactionID
		}
		if result.InstrumentMask != "" {
			updates["instrument_mask"] = result.InstrumentMask
		}
		if finalStatus == paymentdomain.StatusCaptured {
			updates["posted_at"] = s.clock.Now().UTC()
		}
		if err := tx.WithContext(ctx).
			Model(&paymentdomain.Payment{}).
			Where("id = ?", payment.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		if finalStatus == paymentdomain.StatusCaptured && payment.InvoiceID != nil {
			if err := s.invoices.ApplySettlement(ctx, tx, *payment.InvoiceID, payment.Amount); err != nil {
				return err
			}
		}

		return s.outbox.PublishTx(ctx, tx, events.Event{
			MerchantID: merchant.ID,
			Type:       outboxType(finalStatus),
			Payload: map[string]any{
				"payment_id": payment.ID.String(),
				"provider":   adapter.Name(),
				"amount":     payment.Amount,
				"currency":   payment.Currency,
				"status":     finalStatus,
			},
			DedupeKey: "payment:" + payment.ID.String() + ":create",
		})
	})
	if err != nil {
		return out, err
	}

	s.log.Info("payment processed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("provider", adapter.Name()),
		zap.String("status", finalStatus),
		zap.Int64("amount", payment.Amount),
	)

	// Declines come back as Approved=false with no error and stay
	// payment-level failures. An error here means the call could not be
	// attempted at all, which surfaces as a retryable server failure.
	if chargeErr != nil {
		return out, paymentdomain.ErrProviderFailure
	}

	out = paymentdomain.CreatePaymentResult{
		PaymentID: payment.ID,
		Status:    finalStatus,
		Provider:  adapter.Name(),
	}
	return out, nil
}

func (s *Service) outcomeStatus(method string, result paymentdomain.ChargeResult, chargeErr error) string {
	if chargeErr != nil {
		return paymentdomain.StatusFailed
	}
	if method == paymentdomain.MethodBank {
		if result.Approved {
			return paymentdomain.StatusPending
		}
		return paymentdomain.StatusFailed
	}
	if result.Approved {
		return paymentdomain.StatusCaptured
	}
	return paymentdomain.StatusFailed
}

func (s *Service) resolveClientIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if !s.cfg.StraddleSandboxIP {
		return ip
	}
	if ip == "" {
		return sandboxClientIP
	}
	if parsed := net.ParseIP(ip); parsed != nil && (parsed.IsLoopback() || parsed.IsPrivate()) {
		return sandboxClientIP
	}
	return ip
}

func (s *Service) Refund(ctx context.Context, merchantID snowflake.ID, paymentID snowflake.ID, amount *int64) (paymentdomain.Refund, error) {
	var refund paymentdomain.Refund

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment paymentdomain.Payment
		err := tx.WithContext(ctx).
			Where("merchant_id = ? AND id = ?", merchantID, paymentID).
			First(&payment).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return paymentdomain.ErrPaymentNotFound
			}
			return err
		}

		value := payment.Amount
		if amount != nil {
			value = *amount
		}
		if value <= 0 || value > payment.Amount {
			return paymentdomain.ErrInvalidAmount
		}

		now := s.clock.Now().UTC()
		refund = paymentdomain.Refund{
			ID:        s.genID.Generate(),
			PaymentID: payment.ID,
			Amount:    value,
			Status:    paymentdomain.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&refund).Error; err != nil {
			return err
		}

		return s.outbox.PublishTx(ctx, tx, events.Event{
			MerchantID: payment.MerchantID,
			Type:       events.TypeRefundCreated,
			Payload: map[string]any{
				"refund_id":  refund.ID.String(),
				"payment_id": payment.ID.String(),
				"amount":     value,
			},
			DedupeKey: "refund:" + refund.ID.String(),
		})
	})
	return refund, err
}

func (s *Service) Get(ctx context.Context, merchantID snowflake.ID, id snowflake.ID) (paymentdomain.Payment, error) {
	var payment paymentdomain.Payment
	err := s.db.WithContext(ctx).
		Where("merchant_id = ? AND id = ?", merchantID, id).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return payment, paymentdomain.ErrPaymentNotFound
		}
		return payment, err
	}
	return payment, nil
}

func (s *Service) List(ctx context.Context, merchantID snowflake.ID, limit int) ([]paymentdomain.Payment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []paymentdomain.Payment
	err := s.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (s *Service) VaultPaymentMethod(ctx context.Context, merchantID snowflake.ID, input paymentdomain.VaultMethodInput) (paymentdomain.PaymentMethod, error) {
	var method paymentdomain.PaymentMethod

	if input.CustomerID == 0 || strings.TrimSpace(input.Token) == "" {
		var violations validation.Collector
		if input.CustomerID == 0 {
			violations.Add("customer_id", "customer is required")
		}
		if strings.TrimSpace(input.Token) == "" {
			violations.Add("token", "payment token is required")
		}
		return method, violations.Err()
	}

	provider := input.Provider
	if provider == "" {
		provider = adapters.ProviderNMI
	}
	adapter, err := s.adapters.Get(provider)
	if err != nil {
		return method, err
	}
	vault, ok := adapter.(paymentdomain.CardVaultAdapter)
	if !ok {
		return method, paymentdomain.ErrVaultNotSupported
	}

	merchant, err := s.tenant.EnsureMerchant(ctx, merchantID)
	if err != nil {
		return method, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	result, err := vault.VaultPaymentMethod(callCtx, paymentdomain.VaultInput{
		MerchantID: merchant.ID,
		CustomerID: input.CustomerID,
		Token:      input.Token,
	})
	cancel()
	if err != nil {
		return method, err
	}

	now := s.clock.Now().UTC()
	method = paymentdomain.PaymentMethod{
		ID:            s.genID.Generate(),
		MerchantID:    merchant.ID,
		CustomerID:    input.CustomerID,
		Type:          paymentdomain.MethodCard,
		VaultProvider: adapter.Name(),
		ProviderRef:   result.VaultRef,
		Status:        "active",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if result.Brand != "" {
		brand := result.Brand
		method.Brand = &brand
	}
	if result.Last4 != "" {
		last4 := result.Last4
		method.Last4 = &last4
	}
	if err := s.db.WithContext(ctx).Create(&method).Error; err != nil {
		return method, err
	}
	return method, nil
}

// providerStatusMap translates provider vocabulary to local statuses.
var providerStatusMap = map[string]string{
	"created":   paymentdomain.StatusPending,
	"scheduled": paymentdomain.StatusPending,
	"on_hold":   paymentdomain.StatusPending,
	"pending":   paymentdomain.StatusPending,
	"posted":    paymentdomain.StatusCaptured,
	"captured":  paymentdomain.StatusCaptured,
	"settled":   paymentdomain.StatusSettled,
	"paid":      paymentdomain.StatusSettled,
	"returned":  paymentdomain.StatusReturned,
	"reversed":  paymentdomain.StatusReturned,
	"failed":    paymentdomain.StatusFailed,
	"cancelled": paymentdomain.StatusFailed,
}

type webhookEnvelope struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Data      struct {
		ID           string            `json:"id"`
		Status       string            `json:"status"`
		Amount       int64             `json:"amount"`
		Currency     string            `json:"currency"`
		PaymentRail  string            `json:"payment_rail"`
		FailureCode  string            `json:"failure_code"`
		StatusReason string            `json:"status_reason"`
		Metadata     map[string]string `json:"metadata"`
	} `json:"data"`
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" || !s.adapters.ProviderExists(provider) {
		return paymentdomain.ErrInvalidProvider
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}
	if err := s.verifyWebhook(provider, payload, headers); err != nil {
		return err
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return paymentdomain.ErrInvalidPayload
	}
	if envelope.Data.ID == "" {
		return paymentdomain.ErrInvalidPayload
	}

	externalID := strings.TrimSpace(envelope.EventID)
	if externalID == "" {
		externalID = strings.TrimSpace(headers.Get(headerWebhookEventID))
	}
	if externalID == "" {
		sum := sha256.Sum256(payload)
		externalID = hex.EncodeToString(sum[:])
	}

	rawStatus := strings.ToLower(strings.TrimSpace(envelope.Data.Status))
	localStatus, known := providerStatusMap[rawStatus]
	if !known {
		s.log.Info("ignoring webhook with unmapped status",
			zap.String("provider", provider),
			zap.String("status", rawStatus),
		)
		return nil
	}

	now := s.clock.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sum := sha256.Sum256(payload)
		event := paymentdomain.WebhookEvent{
			ID:          s.genID.Generate(),
			Provider:    provider,
			EventType:   envelope.EventType,
			ExternalID:  externalID,
			PayloadHash: hex.EncodeToString(sum[:]),
			Processed:   true,
			ReceivedAt:  now,
			ProcessedAt: &now,
		}
		inserted := tx.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&event)
		if inserted.Error != nil {
			return inserted.Error
		}
		if inserted.RowsAffected == 0 {
			// Duplicate delivery; effects already applied.
			return nil
		}

		return s.applyWebhook(ctx, tx, provider, localStatus, envelope, now)
	})
}

func (s *Service) applyWebhook(ctx context.Context, tx *gorm.DB, provider, localStatus string, envelope webhookEnvelope, now time.Time) error {
	var payment paymentdomain.Payment
	err := tx.WithContext(ctx).
		Where("provider = ? AND provider_ref = ?", provider, envelope.Data.ID).
		First(&payment).Error
	missing := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !missing {
		return err
	}

	if missing {
		// Events may arrive for payments this system never initiated.
		merchant, err := s.tenant.EnsureMerchantTx(ctx, tx, 0)
		if err != nil {
			return err
		}
		ref := envelope.Data.ID
		payment = paymentdomain.Payment{
			ID:          s.genID.Generate(),
			MerchantID:  merchant.ID,
			Amount:      envelope.Data.Amount,
			Currency:    currencyOr(envelope.Data.Currency),
			Method:      paymentdomain.MethodBank,
			Provider:    provider,
			ProviderRef: &ref,
			Status:      localStatus,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if envelope.Data.PaymentRail != "" {
			rail := strings.ToLower(envelope.Data.PaymentRail)
			payment.Rail = &rail
		}
		if invoiceID := invoiceIDFromEnvelope(envelope); invoiceID != 0 {
			payment.InvoiceID = &invoiceID
		}
		applyStatusTimestamps(&payment, localStatus, now, envelope)
		if err := tx.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&payment).Error; err != nil {
			return err
		}
	} else {
		// Merge status and timestamps only; user-entered fields stay.
		updates := map[string]any{
			"status":        localStatus,
			"last_event_at": now,
			"updated_at":    now,
		}
		switch localStatus {
		case paymentdomain.StatusCaptured:
			updates["posted_at"] = now
		case paymentdomain.StatusSettled:
			updates["settled_at"] = now
		case paymentdomain.StatusReturned:
			if envelope.Data.FailureCode != "" {
				updates["return_code"] = envelope.Data.FailureCode
			}
			if envelope.Data.StatusReason != "" {
				updates["return_reason"] = envelope.Data.StatusReason
			}
		}
		if err := tx.WithContext(ctx).
			Model(&paymentdomain.Payment{}).
			Where("id = ?", payment.ID).
			Updates(updates).Error; err != nil {
			return err
		}
	}

	if payment.InvoiceID != nil {
		delta := settlementDelta(payment.Status, localStatus, missing, payment.Amount)
		if delta != 0 {
			if err := s.invoices.ApplySettlement(ctx, tx, *payment.InvoiceID, delta); err != nil {
				return err
			}
		}
	}

	return s.outbox.PublishTx(ctx, tx, events.Event{
		MerchantID: payment.MerchantID,
		Type:       outboxType(localStatus),
		Payload: map[string]any{
			"payment_id":   payment.ID.String(),
			"provider":     provider,
			"provider_ref": envelope.Data.ID,
			"status":       localStatus,
		},
		DedupeKey: "payment:" + provider + ":" + envelope.Data.ID + ":" + localStatus,
	})
}

// settlementDelta decides how a status transition moves an invoice's paid
// amount. Money counts once across posted and settled; returns give it back.
func settlementDelta(oldStatus, newStatus string, created bool, amount int64) int64 {
	wasApplied := !created &&
		(oldStatus == paymentdomain.StatusCaptured || oldStatus == paymentdomain.StatusSettled)
	nowApplied := newStatus == paymentdomain.StatusCaptured || newStatus == paymentdomain.StatusSettled

	switch {
	case !wasApplied && nowApplied:
		return amount
	case wasApplied && newStatus == paymentdomain.StatusReturned:
		return -amount
	}
	return 0
}

func applyStatusTimestamps(payment *paymentdomain.Payment, status string, now time.Time, envelope webhookEnvelope) {
	lastEvent := now
	payment.LastEventAt = &lastEvent
	switch status {
	case paymentdomain.StatusCaptured:
		payment.PostedAt = &lastEvent
	case paymentdomain.StatusSettled:
		payment.SettledAt = &lastEvent
	case paymentdomain.StatusReturned:
		if envelope.Data.FailureCode != "" {
			code := envelope.Data.FailureCode
			payment.ReturnCode = &code
		}
		if envelope.Data.StatusReason != "" {
			reason := envelope.Data.StatusReason
			payment.ReturnReason = &reason
		}
	}
}

func invoiceIDFromEnvelope(envelope webhookEnvelope) snowflake.ID {
	raw := envelope.Data.Metadata["invoice_id"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return snowflake.ID(parsed)
}

func validateCreatePayment(input paymentdomain.CreatePaymentInput) error {
	var violations validation.Collector
	if input.Amount <= 0 {
		violations.Add("amount", "amount must be positive")
	}
	switch input.Method {
	case paymentdomain.MethodCard, paymentdomain.MethodBank:
	default:
		violations.Add("method", "method must be card or bank")
	}
	if input.Token == "" && input.AccountRef == "" {
		violations.Add("token", "a payment token or account reference is required")
	}
	if input.Method == paymentdomain.MethodBank {
		switch input.Rail {
		case paymentdomain.RailACH, paymentdomain.RailRTP, paymentdomain.RailFedNow:
		default:
			violations.Add("rail", "rail must be ach, rtp or fednow")
		}
		if input.ClientIP == "" {
			violations.Add("client_ip", "client ip is required for bank payments")
		}
	}
	return violations.Err()
}

func attemptRequest(input paymentdomain.ChargeInput) map[string]any {
	return logger.MaskJSON(map[string]any{
		"merchant_id": input.MerchantID.String(),
		"amount":      input.Amount,
		"currency":    input.Currency,
		"method":      input.Method,
		"rail":        input.Rail,
		"token":       input.Token,
		"account_ref": input.AccountRef,
		"client_ip":   input.ClientIP,
		"capture":     input.Capture,
	})
}

func attemptResponse(result paymentdomain.ChargeResult, chargeErr error) map[string]any {
	out := map[string]any{
		"approved": result.Approved,
	}
	if result.ProviderTransactionID != "" {
		out["provider_transaction_id"] = result.ProviderTransactionID
	}
	if result.AuthCode != "" {
		out["auth_code"] = result.AuthCode
	}
	if len(result.Raw) > 0 {
		out["raw"] = logger.MaskJSON(result.Raw)
	}
	if chargeErr != nil {
		out["error"] = chargeErr.Error()
	}
	return out
}

func marshalJSON(value map[string]any) datatypes.JSON {
	raw, err := json.Marshal(value)
	if err != nil {
		return datatypes.JSON(`{}`)
	}
	return datatypes.JSON(raw)
}

func outboxType(status string) string {
	switch status {
	case paymentdomain.StatusCaptured:
		return events.TypePaymentCaptured
	case paymentdomain.StatusSettled:
		return events.TypePaymentSettled
	case paymentdomain.StatusReturned:
		return events.TypePaymentReturned
	case paymentdomain.StatusFailed:
		return events.TypePaymentFailed
	default:
		return events.TypePaymentPending
	}
}

func currencyOr(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return "USD"
	}
	return currency
}
