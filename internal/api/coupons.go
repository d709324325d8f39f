package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mahabub-bd/purepac-storefront/internal/domain"
)

func (c *Client) ValidateCoupon(ctx context.Context, code string) (*domain.CouponValidation, error) {
	var res domain.CouponValidation
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "coupons/validate",
		query:  url.Values{"code": {code}},
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ApplyCoupon(ctx context.Context, code string, amount float64) (*domain.CouponApplication, error) {
	var res domain.CouponApplication
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "coupons/apply",
		query: url.Values{
			"code":   {code},
			"amount": {strconv.FormatFloat(amount, 'f', 2, 64)},
		},
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
