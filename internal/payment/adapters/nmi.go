package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/aspirepayments/aspire-payments-web/internal/config"
	paymentdomain "github.com/aspirepayments/aspire-payments-web/internal/payment/domain"
)

const nmiEndpoint = "https://secure.networkmerchants.com/api/transact.php"

// NMI charges against the NMI gateway. The wire format is form-encoded
// key/value pairs in both directions.
type NMI struct {
	securityKey string
	simulate    bool
	client      *http.Client
	log         *zap.Logger
}

func NewNMI(cfg config.Config, client *http.Client, log *zap.Logger) *NMI {
	return &NMI{
		securityKey: cfg.NMISecurityKey,
		simulate:    cfg.NMISimulate || cfg.NMISecurityKey == "",
		client:      client,
		log:         log.Named("nmi"),
	}
}

func (a *NMI) Name() string { return ProviderNMI }

func (a *NMI) Charge(ctx context.Context, input paymentdomain.ChargeInput) (paymentdomain.ChargeResult, error) {
	if input.Token == "" {
		return paymentdomain.ChargeResult{}, paymentdomain.ErrMissingToken
	}
	if a.simulate {
		ref := simulatedRef(ProviderNMI, input)
		return paymentdomain.ChargeResult{
			Approved:              true,
			ProviderTransactionID: ref,
			AuthCode:              "SIM000",
			Raw: map[string]any{
				"response":      "1",
				"responsetext":  "SUCCESS",
				"transactionid": ref,
				"simulated":     true,
			},
		}, nil
	}

	form := url.Values{}
	form.Set("security_key", a.securityKey)
	form.Set("type", chargeType(input.Capture))
	form.Set("amount", centsToDecimal(input.Amount))
	form.Set("currency", input.Currency)
	form.Set("customer_vault_id", input.Token)

	reply, err := a.post(ctx, form)
	if err != nil {
		return paymentdomain.ChargeResult{}, err
	}

	result := paymentdomain.ChargeResult{
		Approved:              reply["response"] == "1",
		ProviderTransactionID: reply["transactionid"],
		AuthCode:              reply["authcode"],
		Raw:                   kvToMap(reply),
	}
	return result, nil
}

func (a *NMI) VaultPaymentMethod(ctx context.Context, input paymentdomain.VaultInput) (paymentdomain.VaultResult, error) {
	if input.Token == "" {
		return paymentdomain.VaultResult{}, paymentdomain.ErrMissingToken
	}
	if a.simulate {
		ref := fmt.Sprintf("vault_sim_%d_%d", input.MerchantID, input.CustomerID)
		return paymentdomain.VaultResult{
			VaultRef: ref,
			Brand:    "visa",
			Last4:    "4242",
			Raw:      map[string]any{"response": "1", "customer_vault_id": ref, "simulated": true},
		}, nil
	}

	form := url.Values{}
	form.Set("security_key", a.securityKey)
	form.Set("customer_vault", "add_customer")
	form.Set("payment_token", input.Token)

	reply, err := a.post(ctx, form)
	if err != nil {
		return paymentdomain.VaultResult{}, err
	}
	if reply["response"] != "1" {
		return paymentdomain.VaultResult{Raw: kvToMap(reply)}, paymentdomain.ErrProviderFailure
	}
	return paymentdomain.VaultResult{
		VaultRef: reply["customer_vault_id"],
		Raw:      kvToMap(reply),
	}, nil
}

func (a *NMI) post(ctx context.Context, form url.Values) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, nmiEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return parseKVReply(string(body)), nil
}

// parseKVReply decodes NMI's k=v&k=v reply. Values are percent-encoded;
// undecodable values are kept raw rather than dropped.
func parseKVReply(body string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(strings.TrimSpace(body), "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		out[key] = value
	}
	return out
}

func kvToMap(kv map[string]string) map[string]any {
	out := make(map[string]any, len(kv))
	for key, value := range kv {
		out[key] = value
	}
	return out
}

func chargeType(capture bool) string {
	if capture {
		return "sale"
	}
	return "auth"
}

func centsToDecimal(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
