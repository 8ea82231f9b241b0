package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Package is a purchasable hotspot plan.
type Package struct {
	bun.BaseModel `bun:"table:packages,alias:p"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Name          string    `bun:"name,notnull,unique" json:"name"`
	Price         int64     `bun:"price,notnull" json:"price"`
	DataLimit     string    `bun:"data_limit,notnull" json:"data_limit"`
	DurationHours int       `bun:"duration_hours,notnull" json:"duration_hours"`
	ValidityHours int       `bun:"validity_hours,notnull" json:"validity_hours"`
	Speed         string    `bun:"speed,notnull" json:"speed"`
	IsActive      bool      `bun:"is_active,notnull" json:"is_active"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}
