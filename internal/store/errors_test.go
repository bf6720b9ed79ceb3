package store

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Failures from the database must surface to the caller unchanged; nothing in
// the store retries or swallows them.
func TestUserStats_QueryError(t *testing.T) {
	d, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer d.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(1) FROM messages WHERE user_id = $1`)).
		WithArgs(int64(1)).
		WillReturnError(errors.New("connection reset"))

	_, err = UserStats(d, 1)
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleLike_RollsBackOnError(t *testing.T) {
	d, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer d.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(1) FROM likes WHERE user_id = $1 AND message_id = $2`)).
		WithArgs(int64(7), int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO likes (user_id, message_id) VALUES ($1, $2)`)).
		WithArgs(int64(7), int64(42)).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err = ToggleLike(d, 7, 42)
	assert.ErrorContains(t, err, "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}
