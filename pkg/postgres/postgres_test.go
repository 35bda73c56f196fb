package postgres

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
)

func TestPool_withDefaults(t *testing.T) {
	t.Run("zero values fall back to defaults", func(t *testing.T) {
		got := Pool{}.withDefaults()

		assert.Equal(t, 5*time.Minute, got.ConnMaxIdleTime)
		assert.Equal(t, 30*time.Minute, got.ConnMaxLifetime)
		assert.Equal(t, 5, got.MaxIdleConns)
		assert.Equal(t, 25, got.MaxOpenConns)
	})

	t.Run("explicit values are kept", func(t *testing.T) {
		pool := Pool{
			ConnMaxIdleTime: time.Minute,
			ConnMaxLifetime: time.Hour,
			MaxIdleConns:    2,
			MaxOpenConns:    50,
		}

		assert.Equal(t, pool, pool.withDefaults())
	})
}

func TestApplyPool(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}

	db := sqlx.NewDb(mockDB, "sqlmock")
	t.Cleanup(func() {
		db.Close()
	})

	applyPool(db, Pool{MaxOpenConns: 7}.withDefaults())

	assert.Equal(t, 7, db.Stats().MaxOpenConnections)
}
