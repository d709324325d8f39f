package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mahabub-bd/purepac-storefront/internal/checkout"
	"github.com/mahabub-bd/purepac-storefront/internal/domain"
	"github.com/sirupsen/logrus"
)

type CheckoutHandler struct {
	sessions     *Sessions
	orchestrator *checkout.Orchestrator
	timeout      time.Duration
	log          logrus.FieldLogger
}

func NewCheckoutHandler(sessions *Sessions, orchestrator *checkout.Orchestrator, timeout time.Duration, log logrus.FieldLogger) *CheckoutHandler {
	return &CheckoutHandler{
		sessions:     sessions,
		orchestrator: orchestrator,
		timeout:      timeout,
		log:          log,
	}
}

type CheckoutRequestDTO struct {
	SelectedAddress   *domain.Address      `json:"selected_address"`
	ShowAddressForm   bool                 `json:"show_address_form"`
	AddressForm       checkout.AddressForm `json:"address_form"`
	ShippingMethodID  string               `json:"shipping_method_id"`
	PaymentMethodCode string               `json:"payment_method_code"`
	IdempotencyKey    string               `json:"idempotency_key"`
}

type CheckoutErrorResponse struct {
	ErrorResponse
	Attempt *checkout.Attempt `json:"attempt,omitempty"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	p, ok := sessionProvider(ctx, w, r, h.sessions, h.log)
	if !ok {
		return
	}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		key = req.IdempotencyKey
	}

	attempt, err := h.orchestrator.Checkout(ctx, p, checkout.Request{
		SelectedAddress:   req.SelectedAddress,
		ShowAddressForm:   req.ShowAddressForm,
		AddressForm:       req.AddressForm,
		ShippingMethodID:  req.ShippingMethodID,
		PaymentMethodCode: req.PaymentMethodCode,
		IdempotencyKey:    key,
	})
	if err != nil {
		status, code := classify(err)
		respondJSON(w, status, CheckoutErrorResponse{
			ErrorResponse: ErrorResponse{Error: err.Error(), Code: code},
			Attempt:       attempt,
		})
		return
	}

	w.Header().Set("Idempotency-Key", attempt.IdempotencyKey)
	respondJSON(w, http.StatusCreated, attempt)
}
