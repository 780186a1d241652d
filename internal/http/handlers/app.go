package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/infra"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/infra/geoip"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/ledger"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/middleware"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/observability"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/service"
)

// App bundles the dependencies route handlers need.
type App struct {
	Orchestrator *service.Orchestrator
	Ledger       *ledger.Service
	Config       *infra.Config
	Logger       infra.Logger
	Metrics      *observability.Metrics
	Geo          geoip.CountryResolver
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{"error": errCode, "message": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// User-visible failure messages, localized. Every failure states whether
// credits were affected; they never are outside the settlement path.
var messages = map[string]map[string]string{
	"en": {
		"insufficient_credits": "not enough credits; your balance was not charged",
		"provider_unavailable": "the compute provider is temporarily unavailable, try again shortly; your balance was not charged",
		"provider_rejected":    "the compute provider rejected this job; your balance was not charged",
	},
	"id": {
		"insufficient_credits": "kredit tidak cukup; saldo Anda tidak terpotong",
		"provider_unavailable": "penyedia komputasi sedang tidak tersedia, coba lagi sebentar; saldo Anda tidak terpotong",
		"provider_rejected":    "penyedia komputasi menolak pekerjaan ini; saldo Anda tidak terpotong",
	},
}

func (a *App) localized(r *http.Request, key string) string {
	locale := middleware.LocaleFromContext(r.Context())
	if byLocale, ok := messages[locale]; ok {
		if msg, ok := byLocale[key]; ok {
			return msg
		}
	}
	return messages["en"][key]
}

// Health reports liveness.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
