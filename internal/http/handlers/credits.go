package handlers

import (
	"net/http"
	"time"
)

type transactionView struct {
	ID           string    `json:"id"`
	Amount       int64     `json:"amount"`
	Reason       string    `json:"reason"`
	RelatedJobID string    `json:"relatedJobId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CreditBalance returns the user's current balance.
func (a *App) CreditBalance(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	balance, err := a.Ledger.Balance(r.Context(), userID)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load balance")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"totalCredits": balance})
}

// CreditTransactions returns the user's recent ledger rows.
func (a *App) CreditTransactions(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	txs, err := a.Ledger.Transactions(r.Context(), userID, 50)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load transactions")
		return
	}
	items := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		items = append(items, transactionView{
			ID:           tx.ID,
			Amount:       tx.Amount,
			Reason:       string(tx.Reason),
			RelatedJobID: tx.RelatedJobID,
			CreatedAt:    tx.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
