package localcart

import "github.com/mahabub-bd/purepac-storefront/internal/domain"

// FromCart projects a server cart into the guest representation, keeping product snapshots.
func FromCart(cart domain.Cart, updatedAt int64) domain.LocalCart {
	items := make([]domain.LocalCartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, domain.LocalCartItem{
			ProductID: item.Product.ID,
			Quantity:  item.Quantity,
			Product:   item.Product,
		})
	}
	return domain.LocalCart{Items: items, LastUpdated: updatedAt}
}

// ToCart is the inverse of FromCart. A nil local cart yields an empty cart.
func ToCart(local *domain.LocalCart) domain.Cart {
	cart := domain.EmptyCart()
	if local == nil {
		return cart
	}
	for _, item := range local.Items {
		product := item.Product
		product.ID = item.ProductID
		cart.Items = append(cart.Items, domain.CartItem{
			Product:  product,
			Quantity: item.Quantity,
		})
	}
	return cart
}

// ToLineItems drops the snapshots and keeps what the backend mutation endpoints accept.
func ToLineItems(local *domain.LocalCart) []domain.LineItem {
	if local == nil {
		return []domain.LineItem{}
	}
	items := make([]domain.LineItem, len(local.Items))
	for i, item := range local.Items {
		items[i] = domain.LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}
	return items
}
