package api

import (
	"context"
	"net/http"

	"github.com/mahabub-bd/purepac-storefront/internal/domain"
)

const idempotencyHeader = "Idempotency-Key"

func (c *Client) CreateAddress(ctx context.Context, address domain.NewAddress) (*domain.Address, error) {
	var created domain.Address
	if _, err := c.do(ctx, request{method: http.MethodPost, path: "addresses", body: address}, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// PlaceOrder submits order. An empty idempotencyKey sends no key header.
func (c *Client) PlaceOrder(ctx context.Context, order domain.OrderData, idempotencyKey string) (*domain.Order, error) {
	req := request{method: http.MethodPost, path: "orders", body: order}
	if idempotencyKey != "" {
		req.headers = map[string]string{idempotencyHeader: idempotencyKey}
	}
	var placed domain.Order
	if _, err := c.do(ctx, req, &placed); err != nil {
		return nil, err
	}
	return &placed, nil
}
