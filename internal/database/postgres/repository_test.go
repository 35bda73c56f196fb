package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/shortyhq/shorty/internal/database"
	"github.com/shortyhq/shorty/internal/models"
)

var (
	errUnknown      = errors.New("unknown error")
	errAffectedRows = errors.New("affected rows error")
)

var columns = []string{"id", "code", "target_url", "owner", "click_count", "created_at", "expires_at"}

func setupLinkRepository(t testing.TB) (*LinkRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}

	db := sqlx.NewDb(mockDB, "sqlmock")
	repo := NewLinkRepository(db)

	t.Cleanup(func() {
		mockDB.Close()
		db.Close()
	})

	return repo, mock
}

func TestLinkRepository_Create(t *testing.T) {
	t.Run("code exists", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`INSERT INTO links`).
			WithArgs("abc1234", "https://example.com", "alice", nil).
			WillReturnError(&pgconn.PgError{Code: uniqueViolationErrCode})

		link, err := repo.Create(context.TODO(), &models.Link{
			Code:      "abc1234",
			TargetURL: "https://example.com",
			Owner:     "alice",
		})

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrLinkExists)
		assert.Nil(t, link)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`INSERT INTO links`).
			WithArgs("abc1234", "https://example.com", "alice", nil).
			WillReturnError(errUnknown)

		link, err := repo.Create(context.TODO(), &models.Link{
			Code:      "abc1234",
			TargetURL: "https://example.com",
			Owner:     "alice",
		})

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, link)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		rows := sqlmock.NewRows(columns).
			AddRow(1, "abc1234", "https://example.com", "alice", 0, time.Time{}, nil)

		mock.ExpectQuery(`INSERT INTO links`).
			WithArgs("abc1234", "https://example.com", "alice", nil).
			WillReturnRows(rows)

		link, err := repo.Create(context.TODO(), &models.Link{
			Code:      "abc1234",
			TargetURL: "https://example.com",
			Owner:     "alice",
		})

		assert.NoError(t, err)
		assert.NotNil(t, link)
		assert.Equal(t, int64(1), link.ID)
		assert.Equal(t, "abc1234", link.Code)
		assert.Equal(t, "https://example.com", link.TargetURL)
		assert.Nil(t, link.ExpiresAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success with expiry", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		expiresAt := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)

		rows := sqlmock.NewRows(columns).
			AddRow(1, "abc1234", "https://example.com", "alice", 0, time.Time{}, expiresAt)

		mock.ExpectQuery(`INSERT INTO links`).
			WithArgs("abc1234", "https://example.com", "alice", expiresAt).
			WillReturnRows(rows)

		link, err := repo.Create(context.TODO(), &models.Link{
			Code:      "abc1234",
			TargetURL: "https://example.com",
			Owner:     "alice",
			ExpiresAt: &expiresAt,
		})

		assert.NoError(t, err)
		assert.NotNil(t, link)
		assert.NotNil(t, link.ExpiresAt)
		assert.True(t, link.ExpiresAt.Equal(expiresAt))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLinkRepository_GetByCode(t *testing.T) {
	t.Run("link not found", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`SELECT \* FROM links`).
			WithArgs("abc1234").
			WillReturnRows(sqlmock.NewRows(columns))

		link, err := repo.GetByCode(context.TODO(), "abc1234")

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrLinkNotFound)
		assert.Nil(t, link)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`SELECT \* FROM links`).
			WithArgs("abc1234").
			WillReturnError(errUnknown)

		link, err := repo.GetByCode(context.TODO(), "abc1234")

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, link)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		rows := sqlmock.NewRows(columns).
			AddRow(1, "abc1234", "https://example.com", "alice", 42, time.Time{}, nil)

		mock.ExpectQuery(`SELECT \* FROM links`).
			WithArgs("abc1234").
			WillReturnRows(rows)

		link, err := repo.GetByCode(context.TODO(), "abc1234")

		assert.NoError(t, err)
		assert.NotNil(t, link)
		assert.Equal(t, "abc1234", link.Code)
		assert.Equal(t, int64(42), link.ClickCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLinkRepository_CodeExists(t *testing.T) {
	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("abc1234").
			WillReturnError(errUnknown)

		exists, err := repo.CodeExists(context.TODO(), "abc1234")

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.False(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exists", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("abc1234").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		exists, err := repo.CodeExists(context.TODO(), "abc1234")

		assert.NoError(t, err)
		assert.True(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("does not exist", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("abc1234").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		exists, err := repo.CodeExists(context.TODO(), "abc1234")

		assert.NoError(t, err)
		assert.False(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLinkRepository_Delete(t *testing.T) {
	t.Run("link not found", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectExec(`DELETE FROM links`).
			WithArgs("abc1234").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(context.TODO(), "abc1234")

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrLinkNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectExec(`DELETE FROM links`).
			WithArgs("abc1234").
			WillReturnError(errUnknown)

		err := repo.Delete(context.TODO(), "abc1234")

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("affected rows error", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectExec(`DELETE FROM links`).
			WithArgs("abc1234").
			WillReturnResult(sqlmock.NewErrorResult(errAffectedRows))

		err := repo.Delete(context.TODO(), "abc1234")

		assert.Error(t, err)
		assert.ErrorIs(t, err, errAffectedRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectExec(`DELETE FROM links`).
			WithArgs("abc1234").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Delete(context.TODO(), "abc1234")

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLinkRepository_ListByOwner(t *testing.T) {
	t.Run("count error", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM links`).
			WithArgs("alice").
			WillReturnError(errUnknown)

		links, total, err := repo.ListByOwner(context.TODO(), "alice", 10, 0)

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, links)
		assert.Zero(t, total)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupLinkRepository(t)

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM links`).
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

		rows := sqlmock.NewRows(columns).
			AddRow(2, "def5678", "https://example.org", "alice", 3, time.Time{}, nil).
			AddRow(1, "abc1234", "https://example.com", "alice", 42, time.Time{}, nil)

		mock.ExpectQuery(`SELECT \* FROM links`).
			WithArgs("alice", 10, 0).
			WillReturnRows(rows)

		links, total, err := repo.ListByOwner(context.TODO(), "alice", 10, 0)

		assert.NoError(t, err)
		assert.Equal(t, int64(12), total)
		assert.Len(t, links, 2)
		assert.Equal(t, "def5678", links[0].Code)
		assert.Equal(t, "abc1234", links[1].Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
