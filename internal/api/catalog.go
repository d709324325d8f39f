package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/mahabub-bd/purepac-storefront/internal/domain"
)

func (c *Client) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var product domain.Product
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "products/" + strconv.FormatInt(id, 10)}, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	var methods []domain.PaymentMethod
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "payment-methods"}, &methods); err != nil {
		return nil, err
	}
	return methods, nil
}

func (c *Client) ListShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error) {
	var methods []domain.ShippingMethod
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "shipping-methods"}, &methods); err != nil {
		return nil, err
	}
	return methods, nil
}
