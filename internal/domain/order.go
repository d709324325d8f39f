package domain

// OrderData is built right before submission and never stored.
type OrderData struct {
	AddressID        int64      `json:"addressId"`
	UserID           *int64     `json:"userId"`
	ShippingMethodID int64      `json:"shippingMethodId"`
	PaymentMethodID  int64      `json:"paymentMethodId"`
	Items            []LineItem `json:"items"`
	CouponID         *int64     `json:"couponId"`
	TotalValue       float64    `json:"totalValue"`
}

type Order struct {
	ID         int64   `json:"id"`
	OrderNo    string  `json:"orderNo,omitempty"`
	Status     string  `json:"status,omitempty"`
	TotalValue float64 `json:"totalValue"`
}

type PaymentMethod struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type ShippingMethod struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}
