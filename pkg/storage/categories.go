package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "hunter-compare/pkg/errors"
	"hunter-compare/pkg/models"
)

const categoryColumns = `id, name, last_scraped_at, in_progress, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (*models.Category, error) {
	var (
		c       models.Category
		scraped sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.Name, &scraped, &c.InProgress, &c.CreatedAt); err != nil {
		return nil, err
	}
	if scraped.Valid {
		t := scraped.Time.UTC()
		c.LastScrapedAt = &t
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// GetOrCreateCategory returns the category called name, creating it when
// missing. created reports whether this call inserted it.
func (s *Store) GetOrCreateCategory(ctx context.Context, name string) (*models.Category, bool, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO categories (name, in_progress, created_at)
		VALUES (?, FALSE, ?)
		ON CONFLICT (name) DO NOTHING
		RETURNING `+categoryColumns), name, s.now())

	c, err := scanCategory(row)
	switch {
	case err == nil:
		s.log.Info().Str("category", name).Int64("id", c.ID).Msg("Category created")
		return c, true, nil
	case errors.Is(err, sql.ErrNoRows):
		c, err := s.GetCategoryByName(ctx, name)
		return c, false, err
	default:
		return nil, false, apperrors.NewStorage("create category "+name, err)
	}
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+categoryColumns+` FROM categories WHERE id = ?`), id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCategoryNotFound
	}
	if err != nil {
		return nil, apperrors.NewStorage("load category", err)
	}
	return c, nil
}

func (s *Store) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+categoryColumns+` FROM categories WHERE name = ?`), name)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCategoryNotFound
	}
	if err != nil {
		return nil, apperrors.NewStorage("load category "+name, err)
	}
	return c, nil
}

// ClaimCategory flips in_progress from false to true. It reports false when
// another job already holds the category.
func (s *Store) ClaimCategory(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE categories SET in_progress = TRUE
		WHERE id = ? AND in_progress = FALSE`), id)
	if err != nil {
		return false, apperrors.NewStorage("claim category", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewStorage("claim category", err)
	}
	return n == 1, nil
}

// SetCategoryStatus sets in_progress and, when lastScrapedAt is not nil,
// the last successful scrape time.
func (s *Store) SetCategoryStatus(ctx context.Context, id int64, inProgress bool, lastScrapedAt *time.Time) error {
	var (
		res sql.Result
		err error
	)
	if lastScrapedAt != nil {
		res, err = s.db.ExecContext(ctx, s.q(`
			UPDATE categories SET in_progress = ?, last_scraped_at = ? WHERE id = ?`),
			inProgress, lastScrapedAt.UTC(), id)
	} else {
		res, err = s.db.ExecContext(ctx, s.q(`
			UPDATE categories SET in_progress = ? WHERE id = ?`),
			inProgress, id)
	}
	if err != nil {
		return apperrors.NewStorage("update category status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStorage("update category status", err)
	}
	if n == 0 {
		return models.ErrCategoryNotFound
	}
	return nil
}

// ResetStaleClaims clears in_progress on every category. Run at startup,
// when no job of this process can hold a claim.
func (s *Store) ResetStaleClaims(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE categories SET in_progress = FALSE WHERE in_progress = TRUE`)
	if err != nil {
		return 0, apperrors.NewStorage("reset category claims", err)
	}
	return res.RowsAffected()
}
