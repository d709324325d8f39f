package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mahabub-bd/purepac-storefront/internal/cart"
	"github.com/mahabub-bd/purepac-storefront/internal/domain"
	"github.com/sirupsen/logrus"
)

// ProductLookup supplies the product snapshot stored with a guest cart item.
type ProductLookup interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type CartHandler struct {
	sessions *Sessions
	products ProductLookup
	timeout  time.Duration
	log      logrus.FieldLogger
}

func NewCartHandler(sessions *Sessions, products ProductLookup, timeout time.Duration, log logrus.FieldLogger) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		products: products,
		timeout:  timeout,
		log:      log,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CouponRequestDTO struct {
	Code string `json:"code"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, ok := h.provider(ctx, w, r)
	if !ok {
		return
	}
	// the server cart may have changed from another session of the same user
	if p.User() != nil {
		if err := p.Refresh(ctx); err != nil {
			h.log.WithError(err).WithField("session_id", p.SessionID()).Warn("cart refresh failed, serving last known cart")
		}
	}
	respondJSON(w, http.StatusOK, p.View())
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at least 1")
		return
	}

	p, ok := h.provider(ctx, w, r)
	if !ok {
		return
	}

	product := domain.Product{ID: req.ProductID}
	if p.User() == nil {
		found, err := h.products.GetProduct(ctx, req.ProductID)
		if err != nil {
			handleError(w, err)
			return
		}
		product = *found
	}

	if err := p.AddItem(ctx, product, req.Quantity); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p.View())
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	p, ok := h.provider(ctx, w, r)
	if !ok {
		return
	}
	if err := p.UpdateItemQuantity(ctx, productID, req.Quantity); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p.View())
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	p, ok := h.provider(ctx, w, r)
	if !ok {
		return
	}
	if err := p.RemoveItem(ctx, productID); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p.View())
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, ok := h.provider(ctx, w, r)
	if !ok {
		return
	}
	if err := p.ClearCart(ctx); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p.View())
}

// POST /api/v1/cart/coupon/validate
func (h *CartHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CouponRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	p, ok := h.provider(ctx, w, r)
	if !ok {
		return
	}
	res, err := p.ValidateCoupon(ctx, req.Code)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// POST /api/v1/cart/coupon
func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CouponRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	p, ok := h.provider(ctx, w, r)
	if !ok {
		return
	}
	if _, err := p.ApplyCoupon(ctx, req.Code); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p.View())
}

// DELETE /api/v1/cart/coupon
func (h *CartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, ok := h.provider(ctx, w, r)
	if !ok {
		return
	}
	if err := p.RemoveCoupon(ctx); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p.View())
}

func (h *CartHandler) provider(ctx context.Context, w http.ResponseWriter, r *http.Request) (*cart.Provider, bool) {
	return sessionProvider(ctx, w, r, h.sessions, h.log)
}

// sessionProvider looks up the session's provider and applies the request's authentication state.
// A failed merge is logged and retried on the next request; the provider still holds a
// consistent cart.
func sessionProvider(ctx context.Context, w http.ResponseWriter, r *http.Request, sessions *Sessions, log logrus.FieldLogger) (*cart.Provider, bool) {
	sid := sessionID(r)
	if sid == "" {
		respondError(w, http.StatusBadRequest, "missing_session", "no session")
		return nil, false
	}

	p, err := sessions.Get(ctx, sid)
	if err != nil {
		handleError(w, err)
		return nil, false
	}
	if err := p.SetUser(ctx, userFromContext(r.Context())); err != nil {
		log.WithError(err).WithField("session_id", sid).Warn("auth transition incomplete")
	}
	return p, true
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
