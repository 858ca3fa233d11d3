package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pilyang/jwp-shopping-order/internal/domain/money"
	"github.com/pilyang/jwp-shopping-order/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, price, image_url FROM product ORDER BY id`

	getProductByIDSQL = `SELECT id, name, price, image_url FROM product WHERE id = $1`

	createProductSQL = `INSERT INTO product (name, price, image_url) VALUES ($1, $2, $3) RETURNING id`

	updateProductSQL = `UPDATE product SET name = $2, price = $3, image_url = $4 WHERE id = $1`

	deleteProductSQL = `DELETE FROM product WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	q querier
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{q: pool}
}

// List returns all products ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.q.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// FindByID returns a single product, or product.ErrNotFound.
func (r *ProductRepository) FindByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.q.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %d: %w", id, product.ErrNotFound)
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// Create inserts a product and returns its id.
func (r *ProductRepository) Create(ctx context.Context, p product.Product) (int64, error) {
	var id int64
	if err := r.q.QueryRow(ctx, createProductSQL, p.Name, p.Price.Decimal(), p.ImageURL).Scan(&id); err != nil {
		return 0, fmt.Errorf("creating product: %w", err)
	}
	return id, nil
}

// Update overwrites a product.
func (r *ProductRepository) Update(ctx context.Context, p product.Product) error {
	tag, err := r.q.Exec(ctx, updateProductSQL, p.ID, p.Name, p.Price.Decimal(), p.ImageURL)
	if err != nil {
		return fmt.Errorf("updating product %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", p.ID, product.ErrNotFound)
	}
	return nil
}

// Delete removes a product along with the cart lines referencing it.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, product.ErrNotFound)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		price decimal.Decimal
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.ImageURL); err != nil {
		return p, err
	}
	m, err := money.FromDecimal(price)
	if err != nil {
		return p, fmt.Errorf("product %d price: %w", p.ID, err)
	}
	p.Price = m
	return p, nil
}
