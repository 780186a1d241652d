package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/adapter/repo"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/infra"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/ledger"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/observability"
)

const testWebhookSecret = "whsec-test"

func newWebhookApp() (*App, *repo.MemoryLedgerStore) {
	store := repo.NewMemoryLedgerStore()
	metrics := observability.NewMetrics()
	return &App{
		Ledger:  ledger.NewService(store, zerolog.Nop(), metrics),
		Config:  &infra.Config{PaymentWebhookSecret: testWebhookSecret},
		Logger:  zerolog.Nop(),
		Metrics: metrics,
	}, store
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(app *App, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(webhookSignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	app.PaymentWebhook(rec, req)
	return rec
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	app, store := newWebhookApp()
	body := []byte(`{"type":"checkout.completed","data":{"user_id":"u1","transaction_id":"tx-1","credits":100}}`)

	if rec := postWebhook(app, body, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing signature: status = %d, want 400", rec.Code)
	}
	if rec := postWebhook(app, body, signBody("wrong-secret", body)); rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong signature: status = %d, want 400", rec.Code)
	}
	if sum := store.TransactionSum("u1"); sum != 0 {
		t.Fatalf("rejected webhook must not touch the ledger, sum = %d", sum)
	}
}

func TestWebhookGrantsPurchase(t *testing.T) {
	app, store := newWebhookApp()
	body := []byte(`{"type":"checkout.completed","data":{"user_id":"u1","transaction_id":"tx-1","credits":100}}`)

	rec := postWebhook(app, body, signBody(testWebhookSecret, body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if sum := store.TransactionSum("u1"); sum != 100 {
		t.Fatalf("ledger sum = %d, want 100", sum)
	}
}

func TestWebhookDuplicateDeliveryGrantsOnce(t *testing.T) {
	app, store := newWebhookApp()
	body := []byte(`{"type":"checkout.completed","data":{"user_id":"u1","transaction_id":"tx-1","credits":100}}`)
	sig := signBody(testWebhookSecret, body)

	for i := 0; i < 3; i++ {
		if rec := postWebhook(app, body, sig); rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d, want 200", i, rec.Code)
		}
	}
	if sum := store.TransactionSum("u1"); sum != 100 {
		t.Fatalf("ledger sum = %d, want 100 (credited once)", sum)
	}
}

func TestWebhookAcknowledgesUnhandledEvents(t *testing.T) {
	app, store := newWebhookApp()
	body := []byte(`{"type":"checkout.expired","data":{"user_id":"u1","transaction_id":"tx-1","credits":100}}`)

	rec := postWebhook(app, body, signBody(testWebhookSecret, body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if sum := store.TransactionSum("u1"); sum != 0 {
		t.Fatalf("unhandled event must not credit, sum = %d", sum)
	}
}

func TestWebhookRejectsIncompleteCheckoutEvent(t *testing.T) {
	app, _ := newWebhookApp()
	body := []byte(`{"type":"checkout.completed","data":{"user_id":"","transaction_id":"tx-1","credits":100}}`)

	rec := postWebhook(app, body, signBody(testWebhookSecret, body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
