package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/aspirepayments/aspire-payments-web/internal/config"
	paymentdomain "github.com/aspirepayments/aspire-payments-web/internal/payment/domain"
)

// Straddle creates bank charges (ACH/RTP) through the Straddle API. Bank
// rails settle asynchronously, so an accepted charge is always pending
// until webhooks advance it.
type Straddle struct {
	apiBase  string
	apiKey   string
	simulate bool
	client   *http.Client
	log      *zap.Logger
}

func NewStraddle(cfg config.Config, client *http.Client, log *zap.Logger) *Straddle {
	return &Straddle{
		apiBase:  cfg.StraddleAPIBase,
		apiKey:   cfg.StraddleAPIKey,
		simulate: cfg.StraddleSimulate || cfg.StraddleAPIKey == "",
		client:   client,
		log:      log.Named("straddle"),
	}
}

func (a *Straddle) Name() string { return ProviderStraddle }

type straddleChargeReply struct {
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

func (a *Straddle) Charge(ctx context.Context, input paymentdomain.ChargeInput) (paymentdomain.ChargeResult, error) {
	if input.Token == "" && input.AccountRef == "" {
		return paymentdomain.ChargeResult{}, paymentdomain.ErrMissingToken
	}
	// Straddle requires the end-customer device IP on every charge.
	if input.ClientIP == "" {
		return paymentdomain.ChargeResult{}, paymentdomain.ErrMissingClientIP
	}

	if a.simulate {
		ref := simulatedRef(ProviderStraddle, input)
		return paymentdomain.ChargeResult{
			Approved:              true,
			ProviderTransactionID: ref,
			Raw: map[string]any{
				"data":      map[string]any{"id": ref, "status": "created"},
				"simulated": true,
			},
		}, nil
	}

	paykey := input.Token
	if paykey == "" {
		paykey = input.AccountRef
	}
	request := map[string]any{
		"amount":         input.Amount,
		"currency":       input.Currency,
		"paykey":         paykey,
		"payment_rail":   input.Rail,
		"consent_type":   "internet",
		"device":         map[string]any{"ip_address": input.ClientIP},
		"capture_method": "automatic",
	}
	body, err := json.Marshal(request)
	if err != nil {
		return paymentdomain.ChargeResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiBase+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return paymentdomain.ChargeResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return paymentdomain.ChargeResult{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return paymentdomain.ChargeResult{}, err
	}

	rawMap := map[string]any{}
	_ = json.Unmarshal(raw, &rawMap)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return paymentdomain.ChargeResult{Raw: rawMap}, nil
	}

	var reply straddleChargeReply
	if err := json.Unmarshal(raw, &reply); err != nil || reply.Data.ID == "" {
		return paymentdomain.ChargeResult{Raw: rawMap}, nil
	}
	return paymentdomain.ChargeResult{
		Approved:              true,
		ProviderTransactionID: reply.Data.ID,
		Raw:                   rawMap,
	}, nil
}
