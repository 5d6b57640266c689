package adapters

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aspirepayments/aspire-payments-web/internal/config"
	paymentdomain "github.com/aspirepayments/aspire-payments-web/internal/payment/domain"
)

func TestParseKVReply(t *testing.T) {
	body := "response=1&responsetext=SUCCESS&authcode=123456&transactionid=987654321&avsresponse=N&response_code=100"
	reply := parseKVReply(body)

	if reply["response"] != "1" {
		t.Fatalf("expected response 1, got %q", reply["response"])
	}
	if reply["responsetext"] != "SUCCESS" {
		t.Fatalf("expected SUCCESS, got %q", reply["responsetext"])
	}
	if reply["transactionid"] != "987654321" {
		t.Fatalf("expected transaction id, got %q", reply["transactionid"])
	}
}

func TestParseKVReplyDecodesValues(t *testing.T) {
	reply := parseKVReply("responsetext=DECLINED%3A+insufficient+funds&response=2")
	if reply["responsetext"] != "DECLINED: insufficient funds" {
		t.Fatalf("expected decoded text, got %q", reply["responsetext"])
	}
	if reply["response"] != "2" {
		t.Fatalf("expected response 2, got %q", reply["response"])
	}
}

func TestParseKVReplyEmptyAndDangling(t *testing.T) {
	reply := parseKVReply("")
	if len(reply) != 0 {
		t.Fatalf("expected empty map, got %v", reply)
	}
	reply = parseKVReply("flag&key=value")
	if reply["flag"] != "" {
		t.Fatalf("expected empty value for bare key, got %q", reply["flag"])
	}
	if reply["key"] != "value" {
		t.Fatalf("expected value, got %q", reply["key"])
	}
}

func TestNMISimulatedChargeIsDeterministic(t *testing.T) {
	cfg := config.Config{NMISimulate: true, ProviderTimeout: time.Second}
	adapter := NewNMI(cfg, &http.Client{}, zap.NewNop())

	input := paymentdomain.ChargeInput{
		MerchantID: 1,
		Amount:     2070,
		Currency:   "USD",
		Method:     paymentdomain.MethodCard,
		Token:      "vault-123",
		Capture:    true,
	}
	first, err := adapter.Charge(context.Background(), input)
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if !first.Approved {
		t.Fatalf("expected simulated approval")
	}
	second, err := adapter.Charge(context.Background(), input)
	if err != nil {
		t.Fatalf("charge again: %v", err)
	}
	if first.ProviderTransactionID != second.ProviderTransactionID {
		t.Fatalf("expected deterministic simulated ref, got %q vs %q",
			first.ProviderTransactionID, second.ProviderTransactionID)
	}
}

func TestNMIChargeRequiresToken(t *testing.T) {
	cfg := config.Config{NMISimulate: true}
	adapter := NewNMI(cfg, &http.Client{}, zap.NewNop())

	_, err := adapter.Charge(context.Background(), paymentdomain.ChargeInput{Amount: 100})
	if err != paymentdomain.ErrMissingToken {
		t.Fatalf("expected missing token, got %v", err)
	}
}

func TestCentsToDecimal(t *testing.T) {
	cases := map[int64]string{
		2070:   "20.70",
		5:      "0.05",
		100:    "1.00",
		123456: "1234.56",
	}
	for cents, want := range cases {
		if got := centsToDecimal(cents); got != want {
			t.Fatalf("centsToDecimal(%d) = %q, want %q", cents, got, want)
		}
	}
}
