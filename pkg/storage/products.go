package storage

import (
	"context"
	"database/sql"
	"errors"

	apperrors "hunter-compare/pkg/errors"
	"hunter-compare/pkg/models"

	"github.com/shopspring/decimal"
)

const productColumns = `id, category_id, name_a, name_b, price_a, price_b, updated_at`

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	if err := row.Scan(&p.ID, &p.CategoryID, &p.NameA, &p.NameB, &p.PriceA, &p.PriceB, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// GetOrCreateProduct returns the product of a category identified by its
// two side names. Singles leave the other name empty.
func (s *Store) GetOrCreateProduct(ctx context.Context, categoryID int64, nameA, nameB string) (*models.Product, bool, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO products (category_id, name_a, name_b, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (category_id, name_a, name_b) DO NOTHING
		RETURNING `+productColumns), categoryID, nameA, nameB, s.now())

	p, err := scanProduct(row)
	switch {
	case err == nil:
		return p, true, nil
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, false, apperrors.NewStorage("create product", err)
	}

	row = s.db.QueryRowContext(ctx, s.q(`
		SELECT `+productColumns+` FROM products
		WHERE category_id = ? AND name_a = ? AND name_b = ?`), categoryID, nameA, nameB)
	p, err = scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, models.ErrProductNotFound
	}
	if err != nil {
		return nil, false, apperrors.NewStorage("load product", err)
	}
	return p, false, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+productColumns+` FROM products WHERE id = ?`), id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrProductNotFound
	}
	if err != nil {
		return nil, apperrors.NewStorage("load product", err)
	}
	return p, nil
}

// UpdateProductPrices stores new side prices. A nil price leaves that side
// alone. Each changed side gets a price history row. It reports whether
// anything changed; product is updated in place.
func (s *Store) UpdateProductPrices(ctx context.Context, product *models.Product, priceA, priceB *decimal.Decimal) (bool, error) {
	newA, changedA := nextPrice(product.PriceA, priceA)
	newB, changedB := nextPrice(product.PriceB, priceB)
	if !changedA && !changedB {
		return false, nil
	}

	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, apperrors.NewStorage("begin price update", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`
		UPDATE products SET price_a = ?, price_b = ?, updated_at = ? WHERE id = ?`),
		newA, newB, now, product.ID); err != nil {
		return false, apperrors.NewStorage("update product prices", err)
	}

	history := []struct {
		changed bool
		source  models.Source
		price   decimal.NullDecimal
	}{
		{changedA, models.SourcePyaterochka, newA},
		{changedB, models.SourceMagnit, newB},
	}
	for _, h := range history {
		if !h.changed {
			continue
		}
		if _, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO price_history (product_id, source, price, recorded_at)
			VALUES (?, ?, ?, ?)`),
			product.ID, string(h.source), h.price.Decimal.StringFixed(2), now); err != nil {
			return false, apperrors.NewStorage("record price history", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, apperrors.NewStorage("commit price update", err)
	}

	product.PriceA, product.PriceB, product.UpdatedAt = newA, newB, now
	return true, nil
}

func nextPrice(current decimal.NullDecimal, next *decimal.Decimal) (decimal.NullDecimal, bool) {
	if next == nil {
		return current, false
	}
	if current.Valid && current.Decimal.Equal(*next) {
		return current, false
	}
	return decimal.NullDecimal{Decimal: next.Round(2), Valid: true}, true
}

// ListProducts returns the products of a category in creation order.
func (s *Store) ListProducts(ctx context.Context, categoryID int64) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+productColumns+` FROM products WHERE category_id = ? ORDER BY id`), categoryID)
	if err != nil {
		return nil, apperrors.NewStorage("list products", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, apperrors.NewStorage("scan product", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorage("list products", err)
	}
	return products, nil
}

// PriceHistory returns the recorded prices of a product, oldest first.
func (s *Store) PriceHistory(ctx context.Context, productID int64) ([]models.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT product_id, source, price, recorded_at FROM price_history
		WHERE product_id = ? ORDER BY recorded_at, id`), productID)
	if err != nil {
		return nil, apperrors.NewStorage("list price history", err)
	}
	defer rows.Close()

	points := []models.PricePoint{}
	for rows.Next() {
		var (
			pt     models.PricePoint
			source string
		)
		if err := rows.Scan(&pt.ProductID, &source, &pt.Price, &pt.RecordedAt); err != nil {
			return nil, apperrors.NewStorage("scan price history", err)
		}
		pt.Source = models.Source(source)
		pt.RecordedAt = pt.RecordedAt.UTC()
		points = append(points, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorage("list price history", err)
	}
	return points, nil
}
