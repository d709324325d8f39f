package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/mahabub-bd/purepac-storefront/internal/domain"
)

// GetCart fetches the authenticated user's server cart.
func (c *Client) GetCart(ctx context.Context) (*domain.Cart, error) {
	var cart domain.Cart
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "cart"}, &cart); err != nil {
		return nil, err
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return &cart, nil
}

// The mutation calls return nil, nil when the backend answers without a body.

func (c *Client) AddCartItem(ctx context.Context, productID int64, quantity int) (*domain.Cart, error) {
	return c.mutateCart(ctx, request{
		method: http.MethodPost,
		path:   "cart/items",
		body:   domain.LineItem{ProductID: productID, Quantity: quantity},
	})
}

func (c *Client) UpdateCartItem(ctx context.Context, productID int64, quantity int) (*domain.Cart, error) {
	return c.mutateCart(ctx, request{
		method: http.MethodPut,
		path:   "cart/items/" + strconv.FormatInt(productID, 10),
		body:   quantityBody{Quantity: quantity},
	})
}

type quantityBody struct {
	Quantity int `json:"quantity"`
}

func (c *Client) RemoveCartItem(ctx context.Context, productID int64) (*domain.Cart, error) {
	return c.mutateCart(ctx, request{
		method: http.MethodDelete,
		path:   "cart/items/" + strconv.FormatInt(productID, 10),
	})
}

func (c *Client) ClearCart(ctx context.Context) (*domain.Cart, error) {
	return c.mutateCart(ctx, request{method: http.MethodDelete, path: "cart"})
}

func (c *Client) mutateCart(ctx context.Context, req request) (*domain.Cart, error) {
	var cart domain.Cart
	decoded, err := c.do(ctx, req, &cart)
	if err != nil {
		return nil, err
	}
	if !decoded || cart.Items == nil {
		return nil, nil
	}
	return &cart, nil
}
