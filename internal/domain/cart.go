package domain

type CartItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Cart is the server-authoritative cart. Items hold at most one entry per product id.
type Cart struct {
	Items []CartItem `json:"items"`
}

// EmptyCart never returns a nil item slice so callers can range and encode it safely.
func EmptyCart() Cart {
	return Cart{Items: []CartItem{}}
}

// Find returns the index of the item for productID, or -1.
func (c Cart) Find(productID int64) int {
	for i := range c.Items {
		if c.Items[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Clone copies the item slice so the caller can't mutate shared state.
func (c Cart) Clone() Cart {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}

// LineItem is the productId + quantity pair the backend accepts for cart mutations and orders.
type LineItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type LocalCartItem struct {
	ProductID int64   `json:"productId"`
	Quantity  int     `json:"quantity"`
	Product   Product `json:"product"`
}

// LocalCart is the guest cart persisted in the session storage slot.
// LastUpdated is epoch milliseconds.
type LocalCart struct {
	Items       []LocalCartItem `json:"items"`
	LastUpdated int64           `json:"lastUpdated"`
}

func (l *LocalCart) HasItems() bool {
	return l != nil && len(l.Items) > 0
}
