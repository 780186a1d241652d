package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/domain"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/middleware"
)

const webhookSignatureHeader = "X-Webhook-Signature"

type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		UserID        string `json:"user_id"`
		TransactionID string `json:"transaction_id"`
		Credits       int64  `json:"credits"`
	} `json:"data"`
}

// PaymentWebhook ingests purchase confirmations from the payment processor.
// The grant deduplicates on the external transaction id, so repeated
// delivery of the same event cannot double-credit a user.
func (a *App) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable body")
		return
	}
	if !verifySignature(a.Config.PaymentWebhookSecret, body, r.Header.Get(webhookSignatureHeader)) {
		a.error(w, http.StatusBadRequest, "bad_signature", "signature verification failed")
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid event payload")
		return
	}

	// Events this engine does not act on are acknowledged so the processor
	// stops redelivering them.
	if event.Type != "checkout.completed" {
		a.json(w, http.StatusOK, map[string]any{"received": true})
		return
	}
	if event.Data.UserID == "" || event.Data.TransactionID == "" || event.Data.Credits <= 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "incomplete checkout event")
		return
	}

	country := a.purchaseCountry(r)
	if _, err := a.Ledger.Grant(r.Context(), event.Data.UserID, event.Data.Credits, domain.ReasonPurchase, event.Data.TransactionID, country); err != nil {
		a.Logger.Error().Err(err).Str("external_ref", event.Data.TransactionID).Msg("webhook: grant failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to apply purchase")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"received": true})
}

func (a *App) purchaseCountry(r *http.Request) string {
	if a.Geo == nil {
		return ""
	}
	ip := middleware.ClientIP(r)
	if ip == "" {
		return ""
	}
	country, err := a.Geo.CountryCode(ip)
	if err != nil {
		return ""
	}
	return strings.ToUpper(country)
}

func verifySignature(secret string, body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
