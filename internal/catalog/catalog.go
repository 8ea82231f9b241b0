package catalog

import (
	"context"

	"github.com/uptrace/bun"

	"wifihub/internal/models"
)

// Catalog serves the purchasable packages.
type Catalog struct {
	Bun *bun.DB
}

func New(db *bun.DB) *Catalog {
	return &Catalog{Bun: db}
}

// ListActive returns active packages, cheapest first.
func (c *Catalog) ListActive(ctx context.Context) ([]models.Package, error) {
	packages := []models.Package{}
	err := c.Bun.NewSelect().
		Model(&packages).
		Where("p.is_active = ?", true).
		OrderExpr("p.price ASC").
		OrderExpr("p.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return packages, nil
}
