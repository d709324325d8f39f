package domain

import "time"

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Discount is the per-product promotion carried by the catalog.
type Discount struct {
	Type      DiscountType `json:"type"`
	Value     float64      `json:"value"`
	StartDate *time.Time   `json:"startDate,omitempty"`
	EndDate   *time.Time   `json:"endDate,omitempty"`
}

// ActiveAt reports whether the discount applies at t. Open-ended windows are allowed.
func (d *Discount) ActiveAt(t time.Time) bool {
	if d == nil || d.Value <= 0 {
		return false
	}
	if d.StartDate != nil && t.Before(*d.StartDate) {
		return false
	}
	if d.EndDate != nil && t.After(*d.EndDate) {
		return false
	}
	return true
}

type Product struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	Attachment string    `json:"attachment,omitempty"`
	Discount   *Discount `json:"discount,omitempty"`
}
