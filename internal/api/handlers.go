package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/marketplace/internal/api/middleware"
	"github.com/example/marketplace/internal/domain/catalog"
	"github.com/example/marketplace/internal/domain/order"
	"github.com/example/marketplace/internal/domain/payment"
	"github.com/example/marketplace/internal/infrastructure/gateway"
	"github.com/example/marketplace/internal/infrastructure/session"
)

const maxWebhookBody = 64 << 10

type Handlers struct {
	sessions   *session.Store
	locker     *session.Locker
	catalog    catalog.Catalog
	assembler  *order.Assembler
	orders     order.Repository
	broker     *payment.Broker
	reconciler *payment.Reconciler
	db         *sql.DB
}

func NewHandlers(
	sessions *session.Store,
	locker *session.Locker,
	cat catalog.Catalog,
	assembler *order.Assembler,
	orders order.Repository,
	broker *payment.Broker,
	reconciler *payment.Reconciler,
	db *sql.DB,
) *Handlers {
	return &Handlers{
		sessions:   sessions,
		locker:     locker,
		catalog:    cat,
		assembler:  assembler,
		orders:     orders,
		broker:     broker,
		reconciler: reconciler,
		db:         db,
	}
}

// Cart Handlers

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	productID := extractPathParam(r.URL.Path, "/cart/add/")
	if productID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "product id is required"})
		return
	}

	var req struct {
		Quantity int  `json:"quantity"`
		Override bool `json:"override"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid request body"})
		return
	}

	unlock := h.locker.Lock(h.cartKey(w, r))
	defer unlock()

	p, err := h.catalog.GetProduct(r.Context(), productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondJSON(w, http.StatusNotFound, map[string]string{"detail": "product not found"})
			return
		}
		respondJSON(w, http.StatusInternalServerError, map[string]string{"detail": "failed to load product"})
		return
	}

	c := h.sessions.Load(r)
	if err := c.Add(p, req.Quantity, req.Override); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"detail":          err.Error(),
			"product_id":      p.ID,
			"product_name":    p.Name,
			"available_stock": p.Stock,
		})
		return
	}
	if err := h.sessions.Save(w, c); err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"detail": "failed to save cart"})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"detail":          "added to cart",
		"product_id":      p.ID,
		"product_name":    p.Name,
		"quantity":        c.Quantity(p.ID),
		"available_stock": p.Stock,
	})
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	productID := extractPathParam(r.URL.Path, "/cart/remove/")
	if productID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "product id is required"})
		return
	}

	unlock := h.locker.Lock(h.cartKey(w, r))
	defer unlock()

	c := h.sessions.Load(r)
	if !c.Remove(productID) {
		respondJSON(w, http.StatusNotFound, map[string]string{"detail": "product not in cart"})
		return
	}
	if err := h.sessions.Save(w, c); err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"detail": "failed to save cart"})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"detail":      "removed from cart",
		"product_id":  productID,
		"items":       c.Lines(r.Context(), h.catalog),
		"total_items": c.Len(),
		"total_price": c.TotalPrice(),
	})
}

func (h *Handlers) GetCartDetails(w http.ResponseWriter, r *http.Request) {
	c := h.sessions.Load(r)
	respondJSON(w, http.StatusOK, map[string]any{
		"items":       c.Lines(r.Context(), h.catalog),
		"total_items": c.Len(),
		"total_price": c.TotalPrice(),
	})
}

// Order Handlers

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	buyerEmail := middleware.GetUserEmail(r.Context())

	unlock := h.locker.Lock(h.cartKey(w, r))
	defer unlock()

	c := h.sessions.Load(r)
	o, err := h.assembler.CreateOrder(r.Context(), userID, buyerEmail, c)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrEmptyCart):
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "cart empty"})
		case errors.Is(err, order.ErrStockConflict):
			respondJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("[API] Failed to create order for user %s: %v", userID, err)
			respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create order"})
		}
		return
	}

	// The assembler emptied the cart; persist that before responding.
	if err := h.sessions.Save(w, c); err != nil {
		log.Printf("[API] Failed to clear cart cookie for order %s: %v", o.ID, err)
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"order_id":    o.ID,
		"status":      o.Status,
		"total_price": o.TotalPrice,
	})
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	page, pageSize := paginationParams(r)

	orders, err := h.orders.ListByUser(r.Context(), userID, pageSize, (page-1)*pageSize)
	if err != nil {
		log.Printf("[API] Failed to list orders for user %s: %v", userID, err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list orders"})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"orders":    orders,
		"page":      page,
		"page_size": pageSize,
	})
}

// Payment Handlers

func (h *Handlers) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "order_id is required"})
		return
	}

	sess, err := h.broker.CreateCheckoutSession(r.Context(), req.OrderID, userID)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			respondJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, payment.ErrAlreadyPaid):
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "order has already been paid"})
		case errors.Is(err, gateway.ErrProviderUnavailable):
			respondJSON(w, http.StatusBadGateway, map[string]string{"error": "payment provider unavailable"})
		default:
			log.Printf("[API] Failed to create checkout session for order %s: %v", req.OrderID, err)
			respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create checkout session"})
		}
		return
	}

	respondJSON(w, http.StatusCreated, sess)
}

func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	signature := r.Header.Get(gateway.SignatureHeader)

	if err := h.reconciler.HandleEvent(r.Context(), payload, signature); err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid signature"})
			return
		}
		// Storage failure: signal the provider to redeliver.
		log.Printf("[API] Webhook processing error: %v", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "webhook processing failed"})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (h *Handlers) PaymentCompleted(w http.ResponseWriter, r *http.Request) {
	// Landing page for the provider's success redirect. The order is
	// marked paid by the webhook, not by this request.
	respondJSON(w, http.StatusOK, map[string]string{"detail": "payment completed, your order is being processed"})
}

func (h *Handlers) PaymentCanceled(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"detail": "payment canceled, your order is still awaiting payment"})
}

// Health

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

// cartKey picks the lock key for cart mutations: the authenticated
// buyer's ID when present, otherwise the session cookie.
func (h *Handlers) cartKey(w http.ResponseWriter, r *http.Request) string {
	if userID := middleware.GetUserID(r.Context()); userID != "" {
		return userID
	}
	return h.sessions.SessionID(w, r)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractPathParam(path, prefix string) string {
	return strings.Trim(strings.TrimPrefix(path, prefix), "/")
}

func paginationParams(r *http.Request) (page, pageSize int) {
	page, pageSize = 1, 20
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pageSize = n
		}
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
