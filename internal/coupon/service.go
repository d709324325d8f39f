package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mahabub-bd/purepac-storefront/internal/domain"
)

var ErrEmptyCode = errors.New("coupon code is required")

// Remote is the part of the backend client the service needs.
type Remote interface {
	ValidateCoupon(ctx context.Context, code string) (*domain.CouponValidation, error)
	ApplyCoupon(ctx context.Context, code string, amount float64) (*domain.CouponApplication, error)
}

type Service struct {
	remote Remote
	now    func() time.Time
}

func NewService(remote Remote) *Service {
	return &Service{remote: remote, now: time.Now}
}

// Validate is read-only and safe to call for early feedback. Backend errors come back verbatim.
func (s *Service) Validate(ctx context.Context, code string) (*domain.CouponValidation, error) {
	code = normalize(code)
	if code == "" {
		return nil, ErrEmptyCode
	}
	return s.remote.ValidateCoupon(ctx, code)
}

// Apply asks the backend to apply code against subtotal and returns the coupon to cache.
// The backend may count every call as a use, so callers must invoke it once per user action
// and keep the result instead of calling again.
func (s *Service) Apply(ctx context.Context, code string, subtotal float64) (*domain.LocalCoupon, error) {
	code = normalize(code)
	if code == "" {
		return nil, ErrEmptyCode
	}
	res, err := s.remote.ApplyCoupon(ctx, code, subtotal)
	if err != nil {
		return nil, err
	}
	return &domain.LocalCoupon{
		ID:        res.CouponID,
		Code:      code,
		Discount:  res.DiscountValue,
		AppliedAt: s.now().UnixMilli(),
	}, nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
