package cart

import (
	"time"

	"github.com/mahabub-bd/purepac-storefront/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Totals are derived from the cart on every read and never stored.
type Totals struct {
	ItemCount          int     `json:"itemCount"`
	Subtotal           float64 `json:"subtotal"`
	DiscountedSubtotal float64 `json:"discountedSubtotal"`
	Discount           float64 `json:"discount"`
}

// DiscountedPrice applies the product's discount if it is active at t.
func DiscountedPrice(product domain.Product, at time.Time) float64 {
	return discounted(product, at).Round(2).InexactFloat64()
}

func discounted(product domain.Product, at time.Time) decimal.Decimal {
	price := decimal.NewFromFloat(product.Price)
	d := product.Discount
	if !d.ActiveAt(at) {
		return price
	}

	value := decimal.NewFromFloat(d.Value)
	var off decimal.Decimal
	switch d.Type {
	case domain.DiscountPercentage:
		off = price.Mul(decimal.Min(value, hundred)).Div(hundred)
	case domain.DiscountFixed:
		off = decimal.Min(value, price)
	default:
		return price
	}
	return price.Sub(off)
}

func ComputeTotals(cart domain.Cart, at time.Time) Totals {
	var (
		count    int
		subtotal = decimal.Zero
		net      = decimal.Zero
	)
	for _, item := range cart.Items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		count += item.Quantity
		subtotal = subtotal.Add(decimal.NewFromFloat(item.Product.Price).Mul(qty))
		net = net.Add(discounted(item.Product, at).Round(2).Mul(qty))
	}
	return Totals{
		ItemCount:          count,
		Subtotal:           subtotal.Round(2).InexactFloat64(),
		DiscountedSubtotal: net.Round(2).InexactFloat64(),
		Discount:           subtotal.Sub(net).Round(2).InexactFloat64(),
	}
}

// FinalTotal is what an order is placed for: discounted subtotal minus the coupon (never below
// zero) plus shipping.
func FinalTotal(totals Totals, coupon *domain.LocalCoupon, shipping float64) float64 {
	total := decimal.NewFromFloat(totals.DiscountedSubtotal)
	if coupon != nil {
		total = total.Sub(decimal.NewFromFloat(coupon.Discount))
	}
	if total.IsNegative() {
		total = decimal.Zero
	}
	return total.Add(decimal.NewFromFloat(shipping)).Round(2).InexactFloat64()
}
