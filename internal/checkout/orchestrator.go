// Package checkout turns a cart, an address and the payment and shipping selections into a
// placed order.
package checkout

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mahabub-bd/purepac-storefront/internal/cart"
	"github.com/mahabub-bd/purepac-storefront/internal/domain"
	"github.com/sirupsen/logrus"
)

// CartView is the session cart as the orchestrator sees it. Checkout holds the session for the
// whole run of place, so the cart that is ordered is the cart that is cleared.
type CartView interface {
	SessionID() string
	Checkout(ctx context.Context, place func(ctx context.Context, s cart.Session) error) error
}

// Backend is the part of the REST client used during checkout.
type Backend interface {
	CreateAddress(ctx context.Context, address domain.NewAddress) (*domain.Address, error)
	ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error)
	ListShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error)
	PlaceOrder(ctx context.Context, order domain.OrderData, idempotencyKey string) (*domain.Order, error)
}

type AddressForm struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	Division string `json:"division"`
}

func (f AddressForm) complete() bool {
	return strings.TrimSpace(f.Street) != "" &&
		strings.TrimSpace(f.City) != "" &&
		strings.TrimSpace(f.Division) != ""
}

type Request struct {
	SelectedAddress   *domain.Address
	ShowAddressForm   bool
	AddressForm       AddressForm
	ShippingMethodID  string
	PaymentMethodCode string
	// IdempotencyKey is sent with the order. One is generated when empty.
	IdempotencyKey string
}

// Attempt records one checkout run. It is returned even when the run fails.
type Attempt struct {
	Status         Status            `json:"status"`
	History        []Status          `json:"history"`
	AddressID      int64             `json:"addressId,omitempty"`
	AddressCreated bool              `json:"addressCreated"`
	IdempotencyKey string            `json:"idempotencyKey"`
	Order          *domain.Order     `json:"order,omitempty"`
	Payload        *domain.OrderData `json:"payload,omitempty"`
	CartCleared    bool              `json:"cartCleared"`
}

func newAttempt(key string) *Attempt {
	return &Attempt{
		Status:         StatusCollectingAddress,
		History:        []Status{StatusCollectingAddress},
		IdempotencyKey: key,
	}
}

func (a *Attempt) transition(to Status) error {
	if !CanTransitionTo(a.Status, to) {
		return &IllegalTransitionError{From: a.Status, To: to}
	}
	a.Status = to
	a.History = append(a.History, to)
	return nil
}

type Orchestrator struct {
	backend Backend
	log     logrus.FieldLogger
	now     func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewOrchestrator(backend Backend, log logrus.FieldLogger) *Orchestrator {
	return &Orchestrator{
		backend:  backend,
		log:      log,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
	}
}

// Checkout runs one attempt to completion. Nothing done before a failure is undone: an address
// created for a failed order stays on file, and a cart that cannot be cleared after a placed order
// is only logged.
func (o *Orchestrator) Checkout(ctx context.Context, view CartView, req Request) (*Attempt, error) {
	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	attempt := newAttempt(key)

	if !o.begin(view.SessionID()) {
		return attempt, ErrCheckoutInProgress
	}
	defer o.end(view.SessionID())

	log := o.log.WithFields(logrus.Fields{
		"session_id":      view.SessionID(),
		"idempotency_key": key,
	})

	err := view.Checkout(ctx, func(ctx context.Context, s cart.Session) error {
		return o.place(ctx, log, attempt, s, req)
	})
	if err != nil && !attempt.Status.IsTerminal() {
		return attempt, o.fail(log, attempt, err)
	}
	return attempt, err
}

func (o *Orchestrator) place(ctx context.Context, log logrus.FieldLogger, attempt *Attempt, s cart.Session, req Request) error {
	user := s.User()
	snapshot := s.Cart()

	// preconditions, no I/O
	if req.SelectedAddress == nil && !(req.ShowAddressForm && user != nil && req.AddressForm.complete()) {
		return o.fail(log, attempt, ErrNoAddressSelected)
	}
	if snapshot.IsEmpty() {
		return o.fail(log, attempt, ErrEmptyCart)
	}
	shippingID, err := strconv.ParseInt(strings.TrimSpace(req.ShippingMethodID), 10, 64)
	if err != nil || shippingID <= 0 {
		return o.fail(log, attempt, fmt.Errorf("%w: %q", ErrInvalidShippingMethod, req.ShippingMethodID))
	}

	// catalogs first, so a bad selection never leaves a new address behind
	paymentID, shipping, err := o.resolveMethods(ctx, req.PaymentMethodCode, shippingID)
	if err != nil {
		return o.fail(log, attempt, err)
	}

	if req.SelectedAddress != nil {
		attempt.AddressID = req.SelectedAddress.ID
	} else {
		if err := attempt.transition(StatusResolvingAddress); err != nil {
			return err
		}
		address, err := o.backend.CreateAddress(ctx, domain.NewAddress{
			UserID:    user.ID,
			Street:    strings.TrimSpace(req.AddressForm.Street),
			City:      strings.TrimSpace(req.AddressForm.City),
			Division:  strings.TrimSpace(req.AddressForm.Division),
			Type:      domain.AddressTypeShipping,
			IsDefault: false,
		})
		if err != nil {
			return o.fail(log, attempt, err)
		}
		attempt.AddressID = address.ID
		attempt.AddressCreated = true
		log = log.WithField("address_id", address.ID)
	}

	if err := attempt.transition(StatusPlacingOrder); err != nil {
		return err
	}

	payload := o.buildOrder(snapshot, s.Coupon(), attempt.AddressID, user, shipping, paymentID)
	attempt.Payload = payload

	order, err := o.backend.PlaceOrder(ctx, *payload, attempt.IdempotencyKey)
	if err != nil {
		return o.failOrder(log, attempt, err)
	}
	attempt.Order = order
	if err := attempt.transition(StatusCompleted); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"order_id":        order.ID,
		"checkout_status": attempt.Status,
	}).Info("order placed")

	if err := s.Clear(ctx); err != nil {
		log.WithError(err).Warn("order placed but cart could not be cleared")
		return nil
	}
	attempt.CartCleared = true
	return nil
}

func (o *Orchestrator) resolveMethods(ctx context.Context, paymentCode string, shippingID int64) (int64, domain.ShippingMethod, error) {
	payments, err := o.backend.ListPaymentMethods(ctx)
	if err != nil {
		return 0, domain.ShippingMethod{}, fmt.Errorf("failed to load payment methods: %w", err)
	}
	paymentID, ok := findPayment(payments, paymentCode)
	if !ok {
		return 0, domain.ShippingMethod{}, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, paymentCode)
	}

	shippings, err := o.backend.ListShippingMethods(ctx)
	if err != nil {
		return 0, domain.ShippingMethod{}, fmt.Errorf("failed to load shipping methods: %w", err)
	}
	shipping, ok := findShipping(shippings, shippingID)
	if !ok {
		return 0, domain.ShippingMethod{}, fmt.Errorf("%w: %d", ErrUnknownShippingMethod, shippingID)
	}
	return paymentID, shipping, nil
}

func (o *Orchestrator) buildOrder(snapshot domain.Cart, coupon *domain.LocalCoupon, addressID int64, user *domain.User, shipping domain.ShippingMethod, paymentID int64) *domain.OrderData {
	order := &domain.OrderData{
		AddressID:        addressID,
		ShippingMethodID: shipping.ID,
		PaymentMethodID:  paymentID,
		Items:            lineItems(snapshot),
	}
	if user != nil {
		id := user.ID
		order.UserID = &id
	}
	if coupon != nil {
		id := coupon.ID
		order.CouponID = &id
	}
	order.TotalValue = cart.FinalTotal(cart.ComputeTotals(snapshot, o.now()), coupon, shipping.Price)
	return order
}

func (o *Orchestrator) fail(log logrus.FieldLogger, attempt *Attempt, err error) error {
	if terr := attempt.transition(StatusFailed); terr != nil {
		return terr
	}
	entry := log.WithError(err).WithField("checkout_status", attempt.Status)
	if IsPrecondition(err) {
		entry.Debug("checkout rejected before any backend call")
		return err
	}
	entry.Info("checkout failed")
	return err
}

func (o *Orchestrator) failOrder(log logrus.FieldLogger, attempt *Attempt, err error) error {
	if attempt.AddressCreated {
		log.WithError(err).Warn("order failed after address creation, address kept")
	}
	return o.fail(log, attempt, err)
}

func (o *Orchestrator) begin(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[sessionID]; busy {
		return false
	}
	o.inFlight[sessionID] = struct{}{}
	return true
}

func (o *Orchestrator) end(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, sessionID)
}

func findPayment(methods []domain.PaymentMethod, code string) (int64, bool) {
	for _, m := range methods {
		if strings.EqualFold(m.Code, code) {
			return m.ID, true
		}
	}
	return 0, false
}

func findShipping(methods []domain.ShippingMethod, id int64) (domain.ShippingMethod, bool) {
	for _, m := range methods {
		if m.ID == id {
			return m, true
		}
	}
	return domain.ShippingMethod{}, false
}

func lineItems(c domain.Cart) []domain.LineItem {
	items := make([]domain.LineItem, len(c.Items))
	for i, item := range c.Items {
		items[i] = domain.LineItem{ProductID: item.Product.ID, Quantity: item.Quantity}
	}
	return items
}
