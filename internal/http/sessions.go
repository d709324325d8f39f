package http

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/mahabub-bd/purepac-storefront/internal/cart"
	"github.com/mahabub-bd/purepac-storefront/internal/cartsync"
	"github.com/mahabub-bd/purepac-storefront/internal/localcart"
	"github.com/mahabub-bd/purepac-storefront/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Sessions keeps the live cart providers, one per browser session. Evicted sessions lose only
// their in-memory view; the guest cart and coupon are reloaded from storage on the next request.
type Sessions struct {
	cache   *lru.Cache
	inits   singleflight.Group // one Init per session id; other sessions never wait on it
	kv      storage.Storage
	engine  *cartsync.Engine
	coupons cart.CouponService
	log     logrus.FieldLogger
}

func NewSessions(size int, kv storage.Storage, engine *cartsync.Engine, coupons cart.CouponService, log logrus.FieldLogger) (*Sessions, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	return &Sessions{
		cache:   cache,
		kv:      kv,
		engine:  engine,
		coupons: coupons,
		log:     log,
	}, nil
}

// Get returns the provider of sessionID, creating and initializing it on first use.
func (s *Sessions) Get(ctx context.Context, sessionID string) (*cart.Provider, error) {
	if v, ok := s.cache.Get(sessionID); ok {
		return v.(*cart.Provider), nil
	}

	v, err, _ := s.inits.Do(sessionID, func() (interface{}, error) {
		if v, ok := s.cache.Get(sessionID); ok {
			return v, nil
		}
		store := localcart.New(s.kv, sessionID, s.log)
		p := cart.NewProvider(sessionID, s.engine, s.coupons, store, s.log)
		if err := p.Init(ctx); err != nil {
			return nil, fmt.Errorf("failed to init session cart: %w", err)
		}
		s.cache.Add(sessionID, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cart.Provider), nil
}

func (s *Sessions) Len() int {
	return s.cache.Len()
}
