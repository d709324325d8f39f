package domain

// LocalCoupon is the single applied coupon. AppliedAt is epoch milliseconds.
type LocalCoupon struct {
	ID        int64   `json:"id"`
	Code      string  `json:"code"`
	Discount  float64 `json:"discount"`
	AppliedAt int64   `json:"appliedAt"`
}

type CouponValidation struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

type CouponApplication struct {
	DiscountedAmount float64 `json:"discountedAmount"`
	DiscountValue    float64 `json:"discountValue"`
	CouponID         int64   `json:"couponId"`
}
