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

const authNetEndpoint = "https://api.authorize.net/xml/v1/request.api"

// AuthorizeNet charges cards through the Authorize.Net JSON API.
type AuthorizeNet struct {
	apiKey   string
	simulate bool
	client   *http.Client
	log      *zap.Logger
}

func NewAuthorizeNet(cfg config.Config, client *http.Client, log *zap.Logger) *AuthorizeNet {
	return &AuthorizeNet{
		apiKey:   cfg.AuthNetAPIKey,
		simulate: cfg.AuthNetSimulate || cfg.AuthNetAPIKey == "",
		client:   client,
		log:      log.Named("authorizenet"),
	}
}

func (a *AuthorizeNet) Name() string { return ProviderAuthorizeNet }

type authNetTransactionResponse struct {
	ResponseCode  string `json:"responseCode"`
	TransID       string `json:"transId"`
	AuthCode      string `json:"authCode"`
	AccountNumber string `json:"accountNumber"`
}

type authNetReply struct {
	TransactionResponse authNetTransactionResponse `json:"transactionResponse"`
	Messages            struct {
		ResultCode string `json:"resultCode"`
	} `json:"messages"`
}

func (a *AuthorizeNet) Charge(ctx context.Context, input paymentdomain.ChargeInput) (paymentdomain.ChargeResult, error) {
	if input.Token == "" {
		return paymentdomain.ChargeResult{}, paymentdomain.ErrMissingToken
	}
	if a.simulate {
		ref := simulatedRef(ProviderAuthorizeNet, input)
		return paymentdomain.ChargeResult{
			Approved:              true,
			ProviderTransactionID: ref,
			AuthCode:              "SIM000",
			InstrumentMask:        "XXXX4242",
			Raw: map[string]any{
				"responseCode": "1",
				"transId":      ref,
				"simulated":    true,
			},
		}, nil
	}

	request := map[string]any{
		"createTransactionRequest": map[string]any{
			"merchantAuthentication": map[string]any{"name": a.apiKey},
			"transactionRequest": map[string]any{
				"transactionType": authNetTransactionType(input.Capture),
				"amount":          centsToDecimal(input.Amount),
				"payment": map[string]any{
					"opaqueData": map[string]any{
						"dataDescriptor": "COMMON.ACCEPT.INAPP.PAYMENT",
						"dataValue":      input.Token,
					},
				},
			},
		},
	}
	body, err := json.Marshal(request)
	if err != nil {
		return paymentdomain.ChargeResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authNetEndpoint, bytes.NewReader(body))
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

	var reply authNetReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		// A malformed reply is a decline, not a request-level failure.
		return paymentdomain.ChargeResult{Raw: map[string]any{"body": string(raw)}}, nil
	}

	rawMap := map[string]any{}
	_ = json.Unmarshal(raw, &rawMap)
	return paymentdomain.ChargeResult{
		Approved:              reply.TransactionResponse.ResponseCode == "1",
		ProviderTransactionID: reply.TransactionResponse.TransID,
		AuthCode:              reply.TransactionResponse.AuthCode,
		InstrumentMask:        reply.TransactionResponse.AccountNumber,
		Raw:                   rawMap,
	}, nil
}

func authNetTransactionType(capture bool) string {
	if capture {
		return "authCaptureTransaction"
	}
	return "authOnlyTransaction"
}
