package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/ariefcatur/go-order-settlement/internal/payment"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CardConfirmer interface {
	ConfirmCard(ctx context.Context, req payment.CardRequest) (*payment.CardResult, error)
}

type SettlementTrigger interface {
	Settle(ctx context.Context, paymentID string) orders.Outcome
}

type PaymentsHandler struct {
	Cards   CardConfirmer
	Settler SettlementTrigger
	Auth    *Authenticator
}

// Notification is the webhook body. data.id arrives as a string or a number
// depending on the notification version.
type Notification struct {
	Type   string `json:"type"`
	Action string `json:"action,omitempty"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

func (n Notification) PaymentID() string {
	raw := bytes.TrimSpace(n.Data.ID)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var num json.Number
	if json.Unmarshal(raw, &num) == nil {
		return num.String()
	}
	return ""
}

func (h *PaymentsHandler) Register(r chi.Router) {
	r.With(h.Auth.Middleware).Post("/payments/card", h.confirmCard)
	r.Post("/webhooks/mercadopago", h.webhook)
}

func (h *PaymentsHandler) confirmCard(w http.ResponseWriter, r *http.Request) {
	var req payment.CardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Cards.ConfirmCard(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// webhook always acknowledges. Settlement runs only for payment
// notifications carrying an id, and its outcome is never reported back.
func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	ack := map[string]bool{"received": true}

	var n Notification
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if len(bytes.TrimSpace(body)) > 0 {
		_ = json.Unmarshal(body, &n)
	}
	// older notifications only use the query string
	if n.Type == "" {
		n.Type = r.URL.Query().Get("type")
	}
	id := n.PaymentID()
	if id == "" {
		id = r.URL.Query().Get("data.id")
	}

	if n.Type != "payment" || id == "" {
		writeJSON(w, http.StatusOK, ack)
		return
	}

	outcome := h.Settler.Settle(context.WithoutCancel(r.Context()), id)
	logger(r).Info("payment notification handled",
		zap.String("payment_id", id), zap.String("outcome", string(outcome)))
	writeJSON(w, http.StatusOK, ack)
}
