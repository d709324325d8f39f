package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mahabub-bd/purepac-storefront/internal/api"
	"github.com/mahabub-bd/purepac-storefront/internal/cart"
	"github.com/mahabub-bd/purepac-storefront/internal/cartsync"
	"github.com/mahabub-bd/purepac-storefront/internal/checkout"
	"github.com/mahabub-bd/purepac-storefront/internal/coupon"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError is the only place domain and backend errors become HTTP statuses.
func handleError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	respondError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, cartsync.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, cartsync.ErrItemNotInCart):
		return http.StatusNotFound, "item_not_found"
	case errors.Is(err, coupon.ErrEmptyCode):
		return http.StatusBadRequest, "invalid_coupon_code"
	case errors.Is(err, cart.ErrEmptyCart), errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(err, checkout.ErrNoAddressSelected):
		return http.StatusUnprocessableEntity, "no_address_selected"
	case errors.Is(err, checkout.ErrInvalidShippingMethod):
		return http.StatusBadRequest, "invalid_shipping_method"
	case errors.Is(err, checkout.ErrUnknownPaymentMethod):
		return http.StatusUnprocessableEntity, "unknown_payment_method"
	case errors.Is(err, checkout.ErrUnknownShippingMethod):
		return http.StatusUnprocessableEntity, "unknown_shipping_method"
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		return http.StatusConflict, "checkout_in_progress"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 {
		return apiErr.StatusCode, statusCode(apiErr.StatusCode)
	}
	return http.StatusBadGateway, "upstream_error"
}

// statusCode turns 404 into "not_found".
func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "upstream_error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}
