package magiclinks

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/snapboard/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

const consumeQ = `(?s)UPDATE\s+magic_links\s+SET\s+used_at\s*=\s*now\(\)\s+WHERE\s+token\s*=\s*\$1\s+AND\s+used_at\s+IS\s+NULL\s+RETURNING`

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT\s+INTO\s+magic_links\s*\(email,\s*token,\s*expires_at\)`).
		WithArgs("a@example.com", "tok", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), "a@example.com", "tok", time.Minute))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsume(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(consumeQ).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "token", "expires_at", "used_at", "created_at"}).
			AddRow("ml-1", "a@example.com", "tok", now.Add(time.Minute), now, now))

	got, err := repo.Consume(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Email)
	require.NotNil(t, got.UsedAt)
}

func TestConsume_UsedOrUnknown(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(consumeQ).WithArgs("tok").WillReturnError(sql.ErrNoRows)

	_, err := repo.Consume(context.Background(), "tok")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestConsume_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(consumeQ).WithArgs("tok").WillReturnError(errors.New("db down"))

	_, err := repo.Consume(context.Background(), "tok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}

func TestDeleteExpired(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`DELETE\s+FROM\s+magic_links\s+WHERE\s+expires_at\s*<\s*\$1`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
