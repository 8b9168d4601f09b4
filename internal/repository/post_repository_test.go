package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "library_id", "content", "status",
		"scheduled_time", "last_published_at", "created_at", "updated_at",
	})
}

func TestNextEvergreenOrdersOldestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY last_published_at ASC NULLS FIRST, id ASC`)).
		WithArgs(int64(5)).
		WillReturnRows(postRows().AddRow(
			int64(42), int64(7), int64(5), "evergreen tip", "scheduled",
			nil, nil, now, now,
		))

	repo := NewPostRepository(db)
	post, err := repo.NextEvergreen(context.Background(), 5)
	require.NoError(t, err)
	require.NotNil(t, post)

	assert.Equal(t, int64(42), post.ID)
	assert.False(t, post.LastPublishedAt.Valid, "a never-published item sorts first")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNextEvergreenEmptyLibrary(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY last_published_at ASC NULLS FIRST, id ASC`)).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	repo := NewPostRepository(db)
	post, err := repo.NextEvergreen(context.Background(), 9)

	assert.NoError(t, err)
	assert.Nil(t, post)
	assert.NoError(t, mock.ExpectationsWereMet())
}
