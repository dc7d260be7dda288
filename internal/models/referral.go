package models

import "time"

// Referral is a discount token tied to a percentage reduction.
type Referral struct {
	ID              string     `db:"id" json:"id"`
	Code            string     `db:"code" json:"code"`
	DiscountPercent float64    `db:"discount_percent" json:"discount_percent"`
	Active          bool       `db:"active" json:"active"`
	UsageCount      int        `db:"usage_count" json:"usage_count"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	DeletedAt       *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}
