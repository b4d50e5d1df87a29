package store

import (
	"context"
	"errors"
	"fmt"

	"labelcheck/api/internal/compliance"
	"labelcheck/api/internal/entity"
	"labelcheck/api/internal/ocr"
)

// Compliance serves the orchestrator from the product and validation repos.
type Compliance struct {
	Products    *ProductRepo
	Validations *ValidationRepo
}

var _ compliance.Storage = Compliance{}

func (c Compliance) GetProduct(ctx context.Context, productID string) (*compliance.Product, error) {
	p, err := c.Products.Get(ctx, productID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("product %s: %w", productID, compliance.ErrNotFound)
	}
	return p, err
}

func (c Compliance) ListImages(ctx context.Context, productID string) ([]ocr.Image, error) {
	return c.Products.ListImages(ctx, productID)
}

func (c Compliance) SaveValidation(ctx context.Context, run compliance.Run) error {
	return c.Validations.Save(ctx, run)
}

// Entities serves the aggregator.
type Entities struct {
	Products *ProductRepo
	Entities *EntityRepo
}

var _ entity.Store = Entities{}

func (e Entities) ListParties(ctx context.Context, t entity.Type) ([]entity.Party, error) {
	return e.Products.ListParties(ctx, t)
}

func (e Entities) ReplaceEntities(ctx context.Context, es []entity.Entity) (int, error) {
	return e.Entities.Replace(ctx, es)
}

// Reports serves the read side of the HTTP surface. Report status is judged
// against Threshold.
type Reports struct {
	*ValidationRepo
	Products  *ProductRepo
	Threshold float64
}

func (r Reports) ProductReport(ctx context.Context, productID string) (*Report, error) {
	return r.Report(ctx, r.Products, productID, r.Threshold)
}
