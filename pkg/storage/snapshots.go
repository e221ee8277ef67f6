package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "hunter-compare/pkg/errors"
	"hunter-compare/pkg/models"
)

// LoadSnapshot returns the last serialized match result of a category.
func (s *Store) LoadSnapshot(ctx context.Context, categoryID int64) ([]byte, time.Time, error) {
	var (
		data      string
		scrapedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT data, scraped_at FROM result_snapshots WHERE category_id = ?`), categoryID,
	).Scan(&data, &scrapedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, models.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, time.Time{}, apperrors.NewStorage("load result snapshot", err)
	}
	return []byte(data), scrapedAt.UTC(), nil
}

// SaveSnapshot replaces the serialized match result of a category.
func (s *Store) SaveSnapshot(ctx context.Context, categoryID int64, data []byte, scrapedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO result_snapshots (category_id, data, scraped_at)
		VALUES (?, ?, ?)
		ON CONFLICT (category_id)
		DO UPDATE SET data = excluded.data, scraped_at = excluded.scraped_at`),
		categoryID, string(data), scrapedAt.UTC())
	if err != nil {
		return apperrors.NewStorage("save result snapshot", err)
	}
	return nil
}
