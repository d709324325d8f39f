// Package cart holds the per-session cart state: the authoritative cart, the applied coupon and
// the current user. All mutations go through a Provider.
package cart

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mahabub-bd/purepac-storefront/internal/api"
	"github.com/mahabub-bd/purepac-storefront/internal/cartsync"
	"github.com/mahabub-bd/purepac-storefront/internal/domain"
	"github.com/mahabub-bd/purepac-storefront/internal/localcart"
	"github.com/sirupsen/logrus"
)

var ErrEmptyCart = errors.New("cart is empty")

// CouponService is what the provider needs from the coupon package.
type CouponService interface {
	Validate(ctx context.Context, code string) (*domain.CouponValidation, error)
	Apply(ctx context.Context, code string, subtotal float64) (*domain.LocalCoupon, error)
}

// View is a consistent snapshot of the provider state.
type View struct {
	Cart    domain.Cart         `json:"cart"`
	Totals  Totals              `json:"totals"`
	Coupon  *domain.LocalCoupon `json:"coupon"`
	Loading bool                `json:"loading"`
}

// Provider owns one session's cart. Operations on one provider run one at a time in call order;
// the engine additionally orders writes to a server cart shared by several sessions.
type Provider struct {
	sessionID string
	engine    *cartsync.Engine
	coupons   CouponService
	store     *localcart.Store
	log       logrus.FieldLogger
	now       func() time.Time

	ops     chan struct{}
	loading atomic.Int32

	mu     sync.RWMutex
	user   *domain.User
	cart   domain.Cart
	coupon *domain.LocalCoupon
	merged bool
}

func NewProvider(sessionID string, engine *cartsync.Engine, coupons CouponService, store *localcart.Store, log logrus.FieldLogger) *Provider {
	return &Provider{
		sessionID: sessionID,
		engine:    engine,
		coupons:   coupons,
		store:     store,
		log:       log.WithField("session_id", sessionID),
		now:       time.Now,
		ops:       make(chan struct{}, 1),
		cart:      domain.EmptyCart(),
	}
}

func (p *Provider) SessionID() string {
	return p.sessionID
}

// Init loads the stored coupon and the guest cart.
func (p *Provider) Init(ctx context.Context) error {
	return p.run(ctx, func(ctx context.Context, id cartsync.Identity) error {
		coupon := p.store.LoadCoupon(ctx)
		p.mu.Lock()
		p.coupon = coupon
		p.mu.Unlock()

		cart, err := p.engine.Resolve(ctx, id, p.store)
		p.setCart(cart)
		return err
	})
}

func (p *Provider) Cart() domain.Cart {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cart.Clone()
}

func (p *Provider) Loading() bool {
	return p.loading.Load() > 0
}

func (p *Provider) Coupon() *domain.LocalCoupon {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.coupon == nil {
		return nil
	}
	c := *p.coupon
	return &c
}

func (p *Provider) User() *domain.User {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.user == nil {
		return nil
	}
	u := *p.user
	return &u
}

func (p *Provider) View() View {
	p.mu.RLock()
	cart := p.cart.Clone()
	var coupon *domain.LocalCoupon
	if p.coupon != nil {
		c := *p.coupon
		coupon = &c
	}
	p.mu.RUnlock()

	return View{
		Cart:    cart,
		Totals:  ComputeTotals(cart, p.now()),
		Coupon:  coupon,
		Loading: p.Loading(),
	}
}

// SetUser applies an authentication change. The first time a user is seen the guest cart is
// merged into the server cart; a failed merge is retried on the next call. Logging out makes the
// guest cart authoritative again and re-arms the merge.
func (p *Provider) SetUser(ctx context.Context, user *domain.User) error {
	p.mu.RLock()
	prev, merged := p.user, p.merged
	p.mu.RUnlock()

	switch {
	case user == nil && prev == nil:
		return nil
	case user != nil && prev != nil && user.ID == prev.ID && merged:
		if user.Token != prev.Token {
			p.mu.Lock()
			p.user = copyUser(user)
			p.mu.Unlock()
		}
		return nil
	}

	return p.lock(ctx, func(ctx context.Context) error {
		p.mu.Lock()
		switchedUser := user == nil || p.user == nil || p.user.ID != user.ID
		dropCoupon := switchedUser && p.user != nil
		p.user = copyUser(user)
		if switchedUser {
			p.merged = false
		}
		merged := p.merged
		p.mu.Unlock()

		id := p.identity()
		ctx = p.withToken(ctx)

		// a coupon belongs to the cart of the user who applied it
		if dropCoupon {
			if err := p.setCoupon(ctx, nil); err != nil {
				p.log.WithError(err).Warn("failed to drop coupon of previous user")
			}
		}

		if user == nil {
			p.log.Info("user logged out, guest cart restored")
			cart, err := p.engine.Resolve(ctx, id, p.store)
			p.setCart(cart)
			return err
		}
		if merged {
			return nil
		}

		cart, err := p.engine.Merge(ctx, id, p.store)
		p.setCart(cart)
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.merged = true
		p.mu.Unlock()
		p.log.WithField("user_id", user.ID).Info("login transition complete")
		return nil
	})
}

// Refresh re-reads the authoritative cart.
func (p *Provider) Refresh(ctx context.Context) error {
	return p.run(ctx, func(ctx context.Context, id cartsync.Identity) error {
		cart, err := p.engine.Resolve(ctx, id, p.store)
		p.setCart(cart)
		return err
	})
}

func (p *Provider) AddItem(ctx context.Context, product domain.Product, quantity int) error {
	if quantity < 1 {
		return cartsync.ErrInvalidQuantity
	}
	return p.run(ctx, func(ctx context.Context, id cartsync.Identity) error {
		cart, err := p.engine.AddItem(ctx, id, p.store, product, quantity)
		p.setCart(cart)
		return err
	})
}

func (p *Provider) UpdateItemQuantity(ctx context.Context, productID int64, quantity int) error {
	return p.run(ctx, func(ctx context.Context, id cartsync.Identity) error {
		cart, err := p.engine.UpdateQuantity(ctx, id, p.store, productID, quantity)
		p.setCart(cart)
		return err
	})
}

func (p *Provider) RemoveItem(ctx context.Context, productID int64) error {
	return p.run(ctx, func(ctx context.Context, id cartsync.Identity) error {
		cart, err := p.engine.RemoveItem(ctx, id, p.store, productID)
		p.setCart(cart)
		return err
	})
}

// ClearCart empties the cart and drops the applied coupon.
func (p *Provider) ClearCart(ctx context.Context) error {
	return p.run(ctx, p.clear)
}

// Session is the provider state seen from inside Checkout. The session stays held until place
// returns, so the cart it reports is the cart that gets cleared.
type Session interface {
	Cart() domain.Cart
	Coupon() *domain.LocalCoupon
	User() *domain.User
	Clear(ctx context.Context) error
}

// Checkout runs place as a single operation of this provider. Mutations issued while it runs wait
// until it returns.
func (p *Provider) Checkout(ctx context.Context, place func(ctx context.Context, s Session) error) error {
	return p.run(ctx, func(ctx context.Context, id cartsync.Identity) error {
		return place(ctx, heldSession{p: p, id: id})
	})
}

type heldSession struct {
	p  *Provider
	id cartsync.Identity
}

func (s heldSession) Cart() domain.Cart { return s.p.Cart() }

func (s heldSession) Coupon() *domain.LocalCoupon { return s.p.Coupon() }

func (s heldSession) User() *domain.User { return s.p.User() }

func (s heldSession) Clear(ctx context.Context) error {
	return s.p.clear(ctx, s.id)
}

func (p *Provider) clear(ctx context.Context, id cartsync.Identity) error {
	cart, err := p.engine.Clear(ctx, id, p.store)
	p.setCart(cart)
	if err != nil {
		return err
	}
	return p.setCoupon(ctx, nil)
}

// ApplyCoupon applies code against the discounted subtotal and replaces any coupon already
// applied. The backend is called once per invocation.
func (p *Provider) ApplyCoupon(ctx context.Context, code string) (*domain.LocalCoupon, error) {
	var applied *domain.LocalCoupon
	err := p.run(ctx, func(ctx context.Context, _ cartsync.Identity) error {
		p.mu.RLock()
		cart := p.cart.Clone()
		p.mu.RUnlock()
		if cart.IsEmpty() {
			return ErrEmptyCart
		}

		subtotal := ComputeTotals(cart, p.now()).DiscountedSubtotal
		coupon, err := p.coupons.Apply(ctx, code, subtotal)
		if err != nil {
			return err
		}
		applied = coupon
		return p.setCoupon(ctx, coupon)
	})
	if err != nil {
		return nil, err
	}
	c := *applied
	return &c, nil
}

func (p *Provider) RemoveCoupon(ctx context.Context) error {
	return p.run(ctx, func(ctx context.Context, _ cartsync.Identity) error {
		return p.setCoupon(ctx, nil)
	})
}

// ValidateCoupon does not touch provider state.
func (p *Provider) ValidateCoupon(ctx context.Context, code string) (*domain.CouponValidation, error) {
	return p.coupons.Validate(p.withToken(ctx), code)
}

func (p *Provider) Totals() Totals {
	return ComputeTotals(p.Cart(), p.now())
}

func (p *Provider) DiscountedPrice(product domain.Product) float64 {
	return DiscountedPrice(product, p.now())
}

// run executes fn as the provider's only in-flight operation, with the loading flag raised.
func (p *Provider) run(ctx context.Context, fn func(ctx context.Context, id cartsync.Identity) error) error {
	return p.lock(ctx, func(ctx context.Context) error {
		return fn(p.withToken(ctx), p.identity())
	})
}

func (p *Provider) lock(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case p.ops <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.ops }()

	p.loading.Add(1)
	defer p.loading.Add(-1)
	return fn(ctx)
}

func (p *Provider) identity() cartsync.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id := cartsync.Identity{SessionID: p.sessionID}
	if p.user != nil {
		id.UserID = p.user.ID
	}
	return id
}

func (p *Provider) withToken(ctx context.Context) context.Context {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.user == nil || p.user.Token == "" {
		return ctx
	}
	return api.WithToken(ctx, p.user.Token)
}

// setCart keeps the current cart when the engine could not tell what the store holds.
func (p *Provider) setCart(cart *domain.Cart) {
	if cart == nil {
		return
	}
	p.mu.Lock()
	p.cart = cart.Clone()
	p.mu.Unlock()
}

func (p *Provider) setCoupon(ctx context.Context, coupon *domain.LocalCoupon) error {
	p.mu.Lock()
	p.coupon = coupon
	p.mu.Unlock()
	return p.store.SaveCoupon(ctx, coupon)
}

func copyUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
