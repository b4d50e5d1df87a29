package store

import (
	"context"
	"database/sql"
	"fmt"

	"labelcheck/api/internal/compliance"
	"labelcheck/api/internal/entity"
	"labelcheck/api/internal/ocr"
)

type ProductRepo struct{ DB *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{DB: db} }

const productCols = `product_id, url, title, listed_price, currency, seller, category, marketplace,
       description, manufacturer, packer, importer, importer_email, importer_phone,
       country_of_origin, generic_name, compliance_score, compliance_grade,
       last_validated_at, crawled_at`

func scanProduct(s scanner) (*compliance.Product, error) {
	var (
		p         compliance.Product
		price     sql.NullFloat64
		score     sql.NullFloat64
		grade     sql.NullString
		validated sql.NullTime
	)
	if err := s.Scan(&p.ID, &p.URL, &p.Title, &price, &p.Currency, &p.Seller, &p.Category, &p.Marketplace,
		&p.Description, &p.Manufacturer, &p.Packer, &p.Importer, &p.ImporterEmail, &p.ImporterPhone,
		&p.Country, &p.GenericName, &score, &grade, &validated, &p.CrawledAt); err != nil {
		return nil, err
	}
	p.Price = floatPtr(price)
	p.Score = floatPtr(score)
	p.Grade = grade.String
	p.ValidatedAt = timePtr(validated)
	return &p, nil
}

func (r *ProductRepo) Get(ctx context.Context, productID string) (*compliance.Product, error) {
	q := `select ` + productCols + ` from products where product_id = $1`
	return scanProduct(r.DB.QueryRowContext(ctx, q, productID))
}

// List returns the most recently crawled products first.
func (r *ProductRepo) List(ctx context.Context, limit int) ([]compliance.Product, error) {
	q := `select ` + productCols + ` from products order by crawled_at desc, id desc limit $1`
	rows, err := r.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []compliance.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Upsert stores listing data keyed by product_id. Compliance columns are
// owned by validation runs and left untouched.
func (r *ProductRepo) Upsert(ctx context.Context, p compliance.Product) error {
	const q = `
insert into products (
  product_id, url, title, listed_price, currency, seller, category, marketplace,
  description, manufacturer, packer, importer, importer_email, importer_phone,
  country_of_origin, generic_name
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
on conflict (product_id) do update
set url = excluded.url,
    title = excluded.title,
    listed_price = excluded.listed_price,
    currency = excluded.currency,
    seller = excluded.seller,
    category = excluded.category,
    marketplace = excluded.marketplace,
    description = excluded.description,
    manufacturer = excluded.manufacturer,
    packer = excluded.packer,
    importer = excluded.importer,
    importer_email = excluded.importer_email,
    importer_phone = excluded.importer_phone,
    country_of_origin = excluded.country_of_origin,
    generic_name = excluded.generic_name`
	currency := p.Currency
	if currency == "" {
		currency = "INR"
	}
	_, err := r.DB.ExecContext(ctx, q,
		p.ID, p.URL, p.Title, nullFloat(p.Price), currency, p.Seller, p.Category, p.Marketplace,
		p.Description, p.Manufacturer, p.Packer, p.Importer, p.ImporterEmail, p.ImporterPhone,
		p.Country, p.GenericName,
	)
	return err
}

// Delete removes a product; images, OCR results and verdicts cascade.
func (r *ProductRepo) Delete(ctx context.Context, productID string) error {
	res, err := r.DB.ExecContext(ctx, `delete from products where product_id = $1`, productID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListImages returns a product's images in insertion order.
func (r *ProductRepo) ListImages(ctx context.Context, productID string) ([]ocr.Image, error) {
	const q = `select id, image_url, storage_path from images where product_id = $1 order by id`
	rows, err := r.DB.QueryContext(ctx, q, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ocr.Image{}
	for rows.Next() {
		var im ocr.Image
		if err := rows.Scan(&im.ID, &im.URL, &im.Path); err != nil {
			return nil, err
		}
		out = append(out, im)
	}
	return out, rows.Err()
}

func (r *ProductRepo) AddImage(ctx context.Context, productID, imageURL, storagePath, imageType string) (int64, error) {
	if imageType == "" {
		imageType = "product"
	}
	const q = `insert into images (product_id, image_url, storage_path, image_type) values ($1,$2,$3,$4) returning id`
	var id int64
	err := r.DB.QueryRowContext(ctx, q, productID, imageURL, storagePath, imageType).Scan(&id)
	return id, err
}

func partyColumn(t entity.Type) (string, error) {
	switch t {
	case entity.Manufacturer:
		return "manufacturer", nil
	case entity.Importer:
		return "importer", nil
	case entity.Packer:
		return "packer", nil
	}
	return "", fmt.Errorf("unknown entity type %q", t)
}

// ListParties returns every product declaring an entity of type t, in
// product insertion order.
func (r *ProductRepo) ListParties(ctx context.Context, t entity.Type) ([]entity.Party, error) {
	col, err := partyColumn(t)
	if err != nil {
		return nil, err
	}
	q := `select product_id, ` + col + `, importer_email, importer_phone, compliance_score, coalesce(compliance_grade,'')
from products
where ` + col + ` <> ''
order by id`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []entity.Party
	for rows.Next() {
		var (
			p     entity.Party
			score sql.NullFloat64
		)
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Email, &p.Phone, &score, &p.Grade); err != nil {
			return nil, err
		}
		p.Score = floatPtr(score)
		out = append(out, p)
	}
	return out, rows.Err()
}
