package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shortyhq/shorty/internal/models"
)

// ClickRepository appends click events and maintains the per-link aggregate
// counter. Both writes happen in a single transaction so the aggregate can
// never run ahead of the event log.
type ClickRepository struct {
	db *sqlx.DB
}

func NewClickRepository(db *sqlx.DB) *ClickRepository {
	return &ClickRepository{
		db: db,
	}
}

func (r *ClickRepository) RecordClick(ctx context.Context, event models.ClickEvent) error {
	const op = "database.postgres.ClickRepository.RecordClick"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	insertQuery := `INSERT INTO click_events(id, code, occurred_at, ip_address, user_agent, referer)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = tx.ExecContext(ctx, insertQuery,
		event.ID, event.Code, event.OccurredAt,
		nullString(event.IPAddress), nullString(event.UserAgent), nullString(event.Referer))
	if err != nil {
		return fmt.Errorf("%s: failed to insert click event: %w", op, err)
	}

	updateQuery := `UPDATE links
		SET click_count = click_count + 1
		WHERE code = $1`

	if _, err := tx.ExecContext(ctx, updateQuery, event.Code); err != nil {
		return fmt.Errorf("%s: failed to increment click count: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
