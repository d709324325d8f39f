package cartsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mahabub-bd/purepac-storefront/internal/domain"
	"github.com/mahabub-bd/purepac-storefront/internal/localcart"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var (
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrItemNotInCart    = errors.New("item not in cart")
	ErrNotAuthenticated = errors.New("merge requires an authenticated user")
)

// RemoteCart is the server cart API. Mutations return nil, nil when the server sends no cart back.
type RemoteCart interface {
	GetCart(ctx context.Context) (*domain.Cart, error)
	AddCartItem(ctx context.Context, productID int64, quantity int) (*domain.Cart, error)
	UpdateCartItem(ctx context.Context, productID int64, quantity int) (*domain.Cart, error)
	RemoveCartItem(ctx context.Context, productID int64) (*domain.Cart, error)
	ClearCart(ctx context.Context) (*domain.Cart, error)
}

// LocalStore is the guest cart slot of one session.
type LocalStore interface {
	Load(ctx context.Context) *domain.LocalCart
	Save(ctx context.Context, cart domain.LocalCart) error
	Clear(ctx context.Context) error
}

// Identity names the cart an operation targets: the user's server cart once authenticated,
// otherwise the session's guest cart.
type Identity struct {
	UserID    int64
	SessionID string
}

func (i Identity) Authenticated() bool {
	return i.UserID != 0
}

func (i Identity) Key() string {
	if i.Authenticated() {
		return fmt.Sprintf("user:%d", i.UserID)
	}
	return "guest:" + i.SessionID
}

// Engine decides which store is authoritative and keeps writes to one cart in order.
// It is shared by all sessions; a user logged in from two browsers shares one queue lane.
//
// Every mutation returns the cart as the authoritative store now holds it. A nil cart with an
// error means the state could not be determined and the caller should keep what it had.
type Engine struct {
	remote RemoteCart
	lanes  *queue
	sfg    singleflight.Group // coalesces concurrent fetches of the same server cart
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewEngine(remote RemoteCart, log logrus.FieldLogger) *Engine {
	return &Engine{
		remote: remote,
		lanes:  newQueue(),
		log:    log,
		now:    time.Now,
	}
}

// Resolve returns the authoritative cart without taking the writer slot. Concurrent reads of the
// same server cart share one request.
func (e *Engine) Resolve(ctx context.Context, id Identity, local LocalStore) (*domain.Cart, error) {
	if !id.Authenticated() {
		cart := localcart.ToCart(local.Load(ctx))
		return &cart, nil
	}
	return e.fetch(ctx, id)
}

// Merge moves the guest cart into the user's server cart: quantities of products present on
// both sides are summed, the rest is added. The guest cart is cleared afterwards. Items that
// could not be merged stay in the guest cart so a later merge only retries those.
func (e *Engine) Merge(ctx context.Context, id Identity, local LocalStore) (*domain.Cart, error) {
	if !id.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	release, err := e.lanes.acquire(ctx, id.Key())
	if err != nil {
		return nil, err
	}
	defer release()

	guest := local.Load(ctx)
	if !guest.HasItems() {
		return e.reload(ctx)
	}

	server, err := e.reload(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get server cart: %w", err)
	}

	log := e.log.WithFields(logrus.Fields{"cart": id.Key(), "session_id": id.SessionID})
	for i, item := range guest.Items {
		var merged *domain.Cart
		if idx := server.Find(item.ProductID); idx >= 0 {
			merged, err = e.remote.UpdateCartItem(ctx, item.ProductID, server.Items[idx].Quantity+item.Quantity)
		} else {
			merged, err = e.remote.AddCartItem(ctx, item.ProductID, item.Quantity)
		}
		if err != nil {
			rest := domain.LocalCart{Items: guest.Items[i:], LastUpdated: e.now().UnixMilli()}
			if saveErr := local.Save(ctx, rest); saveErr != nil {
				log.WithError(saveErr).Warn("failed to keep unmerged guest items")
			}
			cart, _ := e.reload(ctx)
			return cart, fmt.Errorf("failed to merge product %d: %w", item.ProductID, err)
		}
		if merged != nil {
			server = merged
		}
	}

	if err := local.Clear(ctx); err != nil {
		log.WithError(err).Warn("guest cart merged but not cleared")
	}
	log.WithField("items", len(guest.Items)).Info("guest cart merged")

	// the server's product snapshots replace the guest ones from here on
	return e.reload(ctx)
}

func (e *Engine) AddItem(ctx context.Context, id Identity, local LocalStore, product domain.Product, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	release, err := e.lanes.acquire(ctx, id.Key())
	if err != nil {
		return nil, err
	}
	defer release()

	if !id.Authenticated() {
		return e.mutateLocal(ctx, local, func(guest *domain.LocalCart) error {
			for i := range guest.Items {
				if guest.Items[i].ProductID == product.ID {
					guest.Items[i].Quantity += quantity
					guest.Items[i].Product = product
					return nil
				}
			}
			guest.Items = append(guest.Items, domain.LocalCartItem{
				ProductID: product.ID,
				Quantity:  quantity,
				Product:   product,
			})
			return nil
		})
	}

	cart, err := e.remote.AddCartItem(ctx, product.ID, quantity)
	return e.settle(ctx, id, cart, err)
}

// UpdateQuantity sets the quantity of a cart line; below 1 removes the line.
func (e *Engine) UpdateQuantity(ctx context.Context, id Identity, local LocalStore, productID int64, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return e.RemoveItem(ctx, id, local, productID)
	}
	release, err := e.lanes.acquire(ctx, id.Key())
	if err != nil {
		return nil, err
	}
	defer release()

	if !id.Authenticated() {
		return e.mutateLocal(ctx, local, func(guest *domain.LocalCart) error {
			for i := range guest.Items {
				if guest.Items[i].ProductID == productID {
					guest.Items[i].Quantity = quantity
					return nil
				}
			}
			return ErrItemNotInCart
		})
	}

	cart, err := e.remote.UpdateCartItem(ctx, productID, quantity)
	return e.settle(ctx, id, cart, err)
}

func (e *Engine) RemoveItem(ctx context.Context, id Identity, local LocalStore, productID int64) (*domain.Cart, error) {
	release, err := e.lanes.acquire(ctx, id.Key())
	if err != nil {
		return nil, err
	}
	defer release()

	if !id.Authenticated() {
		return e.mutateLocal(ctx, local, func(guest *domain.LocalCart) error {
			for i := range guest.Items {
				if guest.Items[i].ProductID == productID {
					guest.Items = append(guest.Items[:i], guest.Items[i+1:]...)
					return nil
				}
			}
			return ErrItemNotInCart
		})
	}

	cart, err := e.remote.RemoveCartItem(ctx, productID)
	return e.settle(ctx, id, cart, err)
}

func (e *Engine) Clear(ctx context.Context, id Identity, local LocalStore) (*domain.Cart, error) {
	release, err := e.lanes.acquire(ctx, id.Key())
	if err != nil {
		return nil, err
	}
	defer release()

	if !id.Authenticated() {
		if err := local.Clear(ctx); err != nil {
			cart := localcart.ToCart(local.Load(ctx))
			return &cart, err
		}
		cart := domain.EmptyCart()
		return &cart, nil
	}

	cart, err := e.remote.ClearCart(ctx)
	return e.settle(ctx, id, cart, err)
}

// mutateLocal is a read-modify-write of the guest cart. On any failure the stored cart is
// returned unchanged together with the error.
func (e *Engine) mutateLocal(ctx context.Context, local LocalStore, fn func(guest *domain.LocalCart) error) (*domain.Cart, error) {
	stored := local.Load(ctx)
	before := localcart.ToCart(stored)

	guest := domain.LocalCart{Items: []domain.LocalCartItem{}}
	if stored != nil {
		guest.Items = append(guest.Items, stored.Items...)
	}
	if err := fn(&guest); err != nil {
		return &before, err
	}
	guest.LastUpdated = e.now().UnixMilli()

	if err := local.Save(ctx, guest); err != nil {
		return &before, err
	}
	cart := localcart.ToCart(&guest)
	return &cart, nil
}

// settle turns a remote mutation result into the cart the server now holds.
func (e *Engine) settle(ctx context.Context, id Identity, cart *domain.Cart, err error) (*domain.Cart, error) {
	if err != nil {
		fresh, fetchErr := e.reload(ctx)
		if fetchErr != nil {
			e.log.WithError(fetchErr).WithField("cart", id.Key()).Warn("resync after failed mutation failed")
			return nil, err
		}
		return fresh, err
	}
	if cart == nil {
		return e.reload(ctx)
	}
	c := cart.Clone()
	return &c, nil
}

// fetch joins a read of the same server cart that is already in flight.
func (e *Engine) fetch(ctx context.Context, id Identity) (*domain.Cart, error) {
	v, err, _ := e.sfg.Do(id.Key(), func() (interface{}, error) {
		return e.reload(ctx)
	})
	if err != nil {
		return nil, err
	}
	c := v.(*domain.Cart).Clone()
	return &c, nil
}

// reload always issues its own read. Writers holding the lane use it: a shared read may have
// started before their write.
func (e *Engine) reload(ctx context.Context) (*domain.Cart, error) {
	cart, err := e.remote.GetCart(ctx)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		empty := domain.EmptyCart()
		return &empty, nil
	}
	return cart, nil
}
