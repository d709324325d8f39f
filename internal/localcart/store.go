// Package localcart persists the guest cart and the applied coupon in a session's storage slot.
// Reads never fail: a missing or damaged value degrades to "no cart".
package localcart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mahabub-bd/purepac-storefront/internal/domain"
	"github.com/mahabub-bd/purepac-storefront/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	cartKey   = "guest_cart"
	couponKey = "applied_coupon"
)

// Store owns no cart state, only the two storage keys of one session.
// Two requests writing the same session race with last-write-wins semantics.
type Store struct {
	kv        storage.Storage
	cartKey   string
	couponKey string
	log       logrus.FieldLogger
}

// New returns a store scoped to sessionID. A nil kv makes every write a no-op and every read empty.
func New(kv storage.Storage, sessionID string, log logrus.FieldLogger) *Store {
	return &Store{
		kv:        kv,
		cartKey:   fmt.Sprintf("session:%s:%s", sessionID, cartKey),
		couponKey: fmt.Sprintf("session:%s:%s", sessionID, couponKey),
		log:       log.WithField("session_id", sessionID),
	}
}

func (s *Store) Save(ctx context.Context, cart domain.LocalCart) error {
	if s.kv == nil {
		return nil
	}
	return s.put(ctx, s.cartKey, cart)
}

// Load returns nil when there is no stored cart or it cannot be decoded.
func (s *Store) Load(ctx context.Context) *domain.LocalCart {
	var cart domain.LocalCart
	if !s.get(ctx, s.cartKey, &cart) {
		return nil
	}
	return &cart
}

func (s *Store) Clear(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	if err := s.kv.Remove(ctx, s.cartKey); err != nil {
		return fmt.Errorf("clear guest cart: %w", err)
	}
	return nil
}

// SaveCoupon overwrites the stored coupon; nil removes it.
func (s *Store) SaveCoupon(ctx context.Context, coupon *domain.LocalCoupon) error {
	if s.kv == nil {
		return nil
	}
	if coupon == nil {
		if err := s.kv.Remove(ctx, s.couponKey); err != nil {
			return fmt.Errorf("clear coupon: %w", err)
		}
		return nil
	}
	return s.put(ctx, s.couponKey, coupon)
}

func (s *Store) LoadCoupon(ctx context.Context) *domain.LocalCoupon {
	var coupon domain.LocalCoupon
	if !s.get(ctx, s.couponKey, &coupon) {
		return nil
	}
	return &coupon
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string, v any) bool {
	if s.kv == nil {
		return false
	}
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("storage read failed, treating as empty")
		return false
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("stored value is corrupt, treating as empty")
		return false
	}
	return true
}

// Now is the epoch-millisecond timestamp stored in LastUpdated and AppliedAt.
func Now() int64 {
	return time.Now().UnixMilli()
}
