package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"labelcheck/api/internal/entity"
)

type EntityRepo struct{ DB *sql.DB }

func NewEntityRepo(db *sql.DB) *EntityRepo { return &EntityRepo{DB: db} }

// Replace swaps the entity table for es in one transaction.
func (r *EntityRepo) Replace(ctx context.Context, es []entity.Entity) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from entities`); err != nil {
		return 0, err
	}
	const ins = `
insert into entities (entity_type, name, address, email, phone,
                      avg_compliance_score, avg_compliance_grade,
                      total_products, compliant_products, non_compliant_products)
values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	for _, e := range es {
		if _, err := tx.ExecContext(ctx, ins,
			string(e.Type), e.Name, nullString(e.Address), nullString(e.Email), nullString(e.Phone),
			nullFloat(e.AvgScore), nullString(e.ModalGrade),
			e.Total, e.Compliant, e.NonCompliant,
		); err != nil {
			return 0, fmt.Errorf("insert %s %q: %w", e.Type, e.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(es), nil
}

const entityCols = `id, entity_type, name, coalesce(address,''), coalesce(email,''), coalesce(phone,''),
       avg_compliance_score, coalesce(avg_compliance_grade,''),
       total_products, compliant_products, non_compliant_products`

func scanEntity(s scanner) (entity.Entity, error) {
	var (
		e     entity.Entity
		typ   string
		score sql.NullFloat64
	)
	if err := s.Scan(&e.ID, &typ, &e.Name, &e.Address, &e.Email, &e.Phone,
		&score, &e.ModalGrade, &e.Total, &e.Compliant, &e.NonCompliant); err != nil {
		return entity.Entity{}, err
	}
	e.Type = entity.Type(typ)
	e.AvgScore = floatPtr(score)
	return e, nil
}

func (r *EntityRepo) query(ctx context.Context, q string, args ...any) ([]entity.Entity, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []entity.Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const byScore = ` order by avg_compliance_score desc nulls last, name`

// List returns entities best score first; an empty type lists all.
func (r *EntityRepo) List(ctx context.Context, t entity.Type) ([]entity.Entity, error) {
	if t == "" {
		return r.query(ctx, `select `+entityCols+` from entities`+byScore)
	}
	return r.query(ctx, `select `+entityCols+` from entities where entity_type = $1`+byScore, string(t))
}

// Search matches q anywhere in the name, case-insensitively.
func (r *EntityRepo) Search(ctx context.Context, q string, t entity.Type) ([]entity.Entity, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(q)) + "%"
	if t == "" {
		return r.query(ctx, `select `+entityCols+` from entities where name ilike $1`+byScore, pattern)
	}
	return r.query(ctx, `select `+entityCols+` from entities where name ilike $1 and entity_type = $2`+byScore, pattern, string(t))
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type ProductSummary struct {
	ProductID       string     `json:"product_id"`
	Title           string     `json:"title"`
	Grade           string     `json:"compliance_grade,omitempty"`
	Score           *float64   `json:"compliance_score"`
	Price           *float64   `json:"listed_price,omitempty"`
	Marketplace     string     `json:"marketplace"`
	LastValidatedAt *time.Time `json:"last_validated_at,omitempty"`
}

type EntityDetail struct {
	Entity        entity.Entity    `json:"entity"`
	Products      []ProductSummary `json:"products"`
	TotalProducts int              `json:"total_products"`
}

// Get returns an entity with the products whose declared party contains its
// name.
func (r *EntityRepo) Get(ctx context.Context, id int64) (*EntityDetail, error) {
	e, err := scanEntity(r.DB.QueryRowContext(ctx, `select `+entityCols+` from entities where id = $1`, id))
	if err != nil {
		return nil, err
	}
	col, err := partyColumn(e.Type)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, `
select product_id, title, coalesce(compliance_grade,''), compliance_score, listed_price, marketplace, last_validated_at
from products
where `+col+` ilike $1
order by last_validated_at desc nulls last, id`, "%"+escapeLike(e.Name)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	d := &EntityDetail{Entity: e, Products: []ProductSummary{}}
	for rows.Next() {
		var (
			p            ProductSummary
			score, price sql.NullFloat64
			validated    sql.NullTime
		)
		if err := rows.Scan(&p.ProductID, &p.Title, &p.Grade, &score, &price, &p.Marketplace, &validated); err != nil {
			return nil, err
		}
		p.Score, p.Price, p.LastValidatedAt = floatPtr(score), floatPtr(price), timePtr(validated)
		d.Products = append(d.Products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	d.TotalProducts = len(d.Products)
	return d, nil
}
