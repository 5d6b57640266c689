package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aspirepayments/aspire-payments-web/internal/config"
	"github.com/aspirepayments/aspire-payments-web/internal/invoice/paylink"
	paymentdomain "github.com/aspirepayments/aspire-payments-web/internal/payment/domain"
)

type movableClock struct {
	at time.Time
}

func (c *movableClock) Now() time.Time { return c.at }

type stubPaymentService struct {
	paymentdomain.Service
	ingestErr error
}

func (s *stubPaymentService) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	return s.ingestErr
}

func setupServerTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS invoices (
			id BIGINT PRIMARY KEY,
			merchant_id BIGINT NOT NULL,
			customer_id BIGINT NOT NULL,
			number TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'draft',
			issue_date TIMESTAMP NOT NULL,
			due_date TIMESTAMP NOT NULL,
			term TEXT,
			currency TEXT NOT NULL DEFAULT 'USD',
			fee_plan_id BIGINT,
			tax_rate_id BIGINT,
			subtotal BIGINT NOT NULL DEFAULT 0,
			fee_cents BIGINT NOT NULL DEFAULT 0,
			tax_total BIGINT NOT NULL DEFAULT 0,
			total BIGINT NOT NULL DEFAULT 0,
			amount_paid BIGINT NOT NULL DEFAULT 0,
			message TEXT, internal_note TEXT,
			paid_at TIMESTAMP, voided_at TIMESTAMP,
			created_at TIMESTAMP, updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS invoice_items (
			id BIGINT PRIMARY KEY,
			invoice_id BIGINT NOT NULL,
			item_id BIGINT,
			description TEXT NOT NULL DEFAULT 'Item',
			quantity BIGINT NOT NULL,
			unit_price BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			taxable BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP
		)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

type serverTestEnv struct {
	srv    *Server
	engine *gin.Engine
	db     *gorm.DB
	clock  *movableClock
	node   *snowflake.Node
}

func setupServerEnv(t *testing.T, name string) *serverTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupServerTestDB(t, name)
	node, err := snowflake.NewNode(3)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	clk := &movableClock{at: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	signer, err := paylink.NewSigner("test-secret", time.Hour, clk)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}

	srv := &Server{
		cfg: config.Config{
			PublicBaseURL:     "http://pay.example.com",
			PayLinkTTLMinutes: 60,
		},
		log:           zap.NewNop(),
		db:            db,
		paymentSvc:    &stubPaymentService{},
		signer:        signer,
		publicLimiter: newRateLimiter(100, time.Minute),
	}

	engine := gin.New()
	engine.GET("/public/invoices/:token", srv.publicRateLimit(), srv.PublicInvoice)
	engine.POST("/public/invoices/:token/refresh", srv.publicRateLimit(), srv.RefreshPayLink)
	engine.POST("/webhooks/:provider", srv.IngestProviderWebhook)

	return &serverTestEnv{srv: srv, engine: engine, db: db, clock: clk, node: node}
}

func (env *serverTestEnv) seedInvoice(t *testing.T, status string) snowflake.ID {
	t.Helper()
	id := env.node.Generate()
	if err := env.db.Exec(
		`INSERT INTO invoices (id, merchant_id, customer_id, number, status, issue_date, due_date, total, amount_paid)
		 VALUES (?, 1, 1, 'INV-PUB', ?, ?, ?, 2070, 0)`,
		id, status,
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	).Error; err != nil {
		t.Fatalf("insert invoice: %v", err)
	}
	return id
}

func (env *serverTestEnv) do(method, path string, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	env.engine.ServeHTTP(recorder, req)
	return recorder
}

func TestPublicInvoiceByToken(t *testing.T) {
	env := setupServerEnv(t, "server_public")
	invoiceID := env.seedInvoice(t, "open")

	token, err := env.srv.signer.Sign(invoiceID)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	resp := env.do(http.MethodGet, "/public/invoices/"+token, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body struct {
		Data publicInvoiceView `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Number != "INV-PUB" || body.Data.Total != 2070 || !body.Data.Payable {
		t.Fatalf("unexpected view %+v", body.Data)
	}
}

func TestPublicInvoiceRejectsTamperedToken(t *testing.T) {
	env := setupServerEnv(t, "server_tampered")
	invoiceID := env.seedInvoice(t, "open")

	other, err := paylink.NewSigner("other-secret", time.Hour, env.clock)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	token, err := other.Sign(invoiceID)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	resp := env.do(http.MethodGet, "/public/invoices/"+token, "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestRefreshExpiredPayLink(t *testing.T) {
	env := setupServerEnv(t, "server_refresh")
	invoiceID := env.seedInvoice(t, "open")

	token, err := env.srv.signer.Sign(invoiceID)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	env.clock.at = env.clock.at.Add(2 * time.Hour)

	if resp := env.do(http.MethodGet, "/public/invoices/"+token, ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected expired link rejected, got %d", resp.Code)
	}

	resp := env.do(http.MethodPost, "/public/invoices/"+token+"/refresh", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected refresh 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Data struct {
			Token string `json:"token"`
			URL   string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Token == "" || body.Data.Token == token {
		t.Fatalf("expected a fresh token")
	}
	if !strings.HasPrefix(body.Data.URL, "http://pay.example.com/pay/") {
		t.Fatalf("unexpected url %q", body.Data.URL)
	}

	if resp := env.do(http.MethodGet, "/public/invoices/"+body.Data.Token, ""); resp.Code != http.StatusOK {
		t.Fatalf("expected refreshed token valid, got %d", resp.Code)
	}
}

func TestRefreshRejectsUnpayableInvoice(t *testing.T) {
	env := setupServerEnv(t, "server_refresh_void")
	invoiceID := env.seedInvoice(t, "void")

	token, err := env.srv.signer.Sign(invoiceID)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	resp := env.do(http.MethodPost, "/public/invoices/"+token+"/refresh", "")
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for void invoice, got %d", resp.Code)
	}
}

func TestWebhookSignatureFailureIsNeverAcked(t *testing.T) {
	env := setupServerEnv(t, "server_webhook_sig")
	env.srv.cfg.WebhookAckOnFailure = true
	env.srv.paymentSvc = &stubPaymentService{ingestErr: paymentdomain.ErrInvalidSignature}

	resp := env.do(http.MethodPost, "/webhooks/straddle", `{"data":{"id":"x"}}`)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 despite ack flag, got %d", resp.Code)
	}
}

func TestWebhookAckOnFailureToggle(t *testing.T) {
	env := setupServerEnv(t, "server_webhook_ack")
	env.srv.paymentSvc = &stubPaymentService{ingestErr: context.DeadlineExceeded}

	resp := env.do(http.MethodPost, "/webhooks/straddle", `{"data":{"id":"x"}}`)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without ack flag, got %d", resp.Code)
	}

	env.srv.cfg.WebhookAckOnFailure = true
	resp = env.do(http.MethodPost, "/webhooks/straddle", `{"data":{"id":"x"}}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with ack flag, got %d", resp.Code)
	}
}

func TestPublicRateLimit(t *testing.T) {
	env := setupServerEnv(t, "server_ratelimit")
	env.srv.publicLimiter = newRateLimiter(2, time.Minute)
	invoiceID := env.seedInvoice(t, "open")

	token, err := env.srv.signer.Sign(invoiceID)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	for i := 0; i < 2; i++ {
		if resp := env.do(http.MethodGet, "/public/invoices/"+token, ""); resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, resp.Code)
		}
	}
	if resp := env.do(http.MethodGet, "/public/invoices/"+token, ""); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", resp.Code)
	}
}
