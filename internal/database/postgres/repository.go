package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shortyhq/shorty/internal/database"
	"github.com/shortyhq/shorty/internal/models"
)

type linkRecord struct {
	ID         int64        `db:"id"`
	Code       string       `db:"code"`
	TargetURL  string       `db:"target_url"`
	Owner      string       `db:"owner"`
	ClickCount int64        `db:"click_count"`
	CreatedAt  time.Time    `db:"created_at"`
	ExpiresAt  sql.NullTime `db:"expires_at"`
}

func (r *linkRecord) ToLink() *models.Link {
	link := &models.Link{
		ID:         r.ID,
		Code:       r.Code,
		TargetURL:  r.TargetURL,
		Owner:      r.Owner,
		ClickCount: r.ClickCount,
		CreatedAt:  r.CreatedAt,
	}

	if r.ExpiresAt.Valid {
		t := r.ExpiresAt.Time
		link.ExpiresAt = &t
	}

	return link
}

// LinkRepository persists links in PostgreSQL. The UNIQUE constraint on the
// code column is the final arbiter for short code collisions: concurrent
// inserts racing on the same code are resolved by the database, surfaced
// here as database.ErrLinkExists.
type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{
		db: db,
	}
}

func (r *LinkRepository) Create(ctx context.Context, link *models.Link) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.Create"

	rec := new(linkRecord)
	query := `INSERT INTO links(code, target_url, owner, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *`

	var expiresAt sql.NullTime
	if link.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *link.ExpiresAt, Valid: true}
	}

	err := r.db.GetContext(ctx, rec, query, link.Code, link.TargetURL, link.Owner, expiresAt)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkExists)
		}

		return nil, fmt.Errorf("%s: failed to create link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

func (r *LinkRepository) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.GetByCode"

	rec := new(linkRecord)
	query := `SELECT * FROM links WHERE code = $1`

	err := r.db.GetContext(ctx, rec, query, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

func (r *LinkRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	const op = "database.postgres.LinkRepository.CodeExists"

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM links WHERE code = $1)`

	err := r.db.GetContext(ctx, &exists, query, code)
	if err != nil {
		return false, fmt.Errorf("%s: failed to check code existence: %w", op, err)
	}

	return exists, nil
}

func (r *LinkRepository) Delete(ctx context.Context, code string) error {
	const op = "database.postgres.LinkRepository.Delete"

	query := `DELETE FROM links WHERE code = $1`

	res, err := r.db.ExecContext(ctx, query, code)
	if err != nil {
		return fmt.Errorf("%s: failed to delete link record: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
	}

	return nil
}

func (r *LinkRepository) ListByOwner(ctx context.Context, owner string, limit, offset int) ([]models.Link, int64, error) {
	const op = "database.postgres.LinkRepository.ListByOwner"

	var total int64
	countQuery := `SELECT COUNT(*) FROM links WHERE owner = $1`

	if err := r.db.GetContext(ctx, &total, countQuery, owner); err != nil {
		return nil, 0, fmt.Errorf("%s: failed to count link records: %w", op, err)
	}

	var recs []linkRecord
	query := `SELECT * FROM links
		WHERE owner = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	if err := r.db.SelectContext(ctx, &recs, query, owner, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("%s: failed to list link records: %w", op, err)
	}

	links := make([]models.Link, 0, len(recs))
	for i := range recs {
		links = append(links, *recs[i].ToLink())
	}

	return links, total, nil
}
