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

const plaidEndpoint = "https://sandbox.plaid.com/transfer/create"

// Plaid initiates bank transfers through Plaid Transfer. Like all bank
// rails, accepted transfers stay pending until settlement webhooks arrive.
type Plaid struct {
	clientID string
	secret   string
	simulate bool
	client   *http.Client
	log      *zap.Logger
}

func NewPlaid(cfg config.Config, client *http.Client, log *zap.Logger) *Plaid {
	return &Plaid{
		clientID: cfg.PlaidClientID,
		secret:   cfg.PlaidSecret,
		simulate: cfg.PlaidSimulate || cfg.PlaidClientID == "" || cfg.PlaidSecret == "",
		client:   client,
		log:      log.Named("plaid"),
	}
}

func (a *Plaid) Name() string { return ProviderPlaid }

type plaidTransferReply struct {
	Transfer struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"transfer"`
}

func (a *Plaid) Charge(ctx context.Context, input paymentdomain.ChargeInput) (paymentdomain.ChargeResult, error) {
	if input.AccountRef == "" && input.Token == "" {
		return paymentdomain.ChargeResult{}, paymentdomain.ErrMissingToken
	}

	if a.simulate {
		ref := simulatedRef(ProviderPlaid, input)
		return paymentdomain.ChargeResult{
			Approved:              true,
			ProviderTransactionID: ref,
			Raw: map[string]any{
				"transfer":  map[string]any{"id": ref, "status": "pending"},
				"simulated": true,
			},
		}, nil
	}

	accountRef := input.AccountRef
	if accountRef == "" {
		accountRef = input.Token
	}
	request := map[string]any{
		"client_id":           a.clientID,
		"secret":              a.secret,
		"access_token":        accountRef,
		"amount":              centsToDecimal(input.Amount),
		"iso_currency_code":   input.Currency,
		"type":                "debit",
		"network":             input.Rail,
		"ach_class":           "ppd",
		"idempotency_key_ref": input.MerchantID.String(),
		"description":         "invoice payment",
	}
	body, err := json.Marshal(request)
	if err != nil {
		return paymentdomain.ChargeResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, plaidEndpoint, bytes.NewReader(body))
	if err != nil {
		return paymentdomain.ChargeResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

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

	var reply plaidTransferReply
	if err := json.Unmarshal(raw, &reply); err != nil || reply.Transfer.ID == "" {
		return paymentdomain.ChargeResult{Raw: rawMap}, nil
	}
	return paymentdomain.ChargeResult{
		Approved:              true,
		ProviderTransactionID: reply.Transfer.ID,
		Raw:                   rawMap,
	}, nil
}
