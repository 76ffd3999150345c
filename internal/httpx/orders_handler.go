package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// readTimeout bounds the store-only routes.
const readTimeout = 10 * time.Second

// StatusCache is the read side of the order status cache.
type StatusCache interface {
	Get(ctx context.Context, orderID string) (orders.Status, bool)
	Set(ctx context.Context, orderID string, status orders.Status)
}

type OrdersHandler struct {
	Creator   *orders.Creator
	Canceller *orders.Canceller
	Store     orders.Store
	Cache     StatusCache
	Auth      *Authenticator
}

type statusResp struct {
	OrderID string        `json:"orderId"`
	Status  orders.Status `json:"status"`
	Cached  bool          `json:"cached"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(h.Auth.Middleware)
		r.Post("/", h.createOrder)
		r.Patch("/{id}/cancel", h.cancelOrder)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(readTimeout))
			r.Get("/", h.listOrders)
			r.Get("/{id}", h.getOrder)
			r.Get("/{id}/status", h.getStatus)
		})
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())

	var req orders.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if _, err := orders.ValidateCreate(req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.Creator.Create(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusCreated
	if res.Idempotent {
		code = http.StatusOK
	}
	writeJSON(w, code, res)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	list, err := h.Store.ListOrdersByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	o, err := h.Store.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if o.UserID != userID {
		writeError(w, r, orders.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getStatus reads through the cache; a miss falls back to the store and
// fills the cache.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if h.Cache != nil {
		if st, ok := h.Cache.Get(r.Context(), orderID); ok {
			writeJSON(w, http.StatusOK, statusResp{OrderID: orderID, Status: st, Cached: true})
			return
		}
	}

	o, err := h.Store.GetOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.Cache != nil {
		h.Cache.Set(r.Context(), o.ID, o.Status)
	}
	writeJSON(w, http.StatusOK, statusResp{OrderID: o.ID, Status: o.Status})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Canceller.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
