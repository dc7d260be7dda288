package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterNextSeedsAtStart(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCounterRepository(db)

	mock.ExpectQuery("INSERT INTO counters").
		WithArgs(CounterStudentID, int64(1001)).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(1001)))

	value, err := repo.Next(context.Background(), CounterStudentID, 1001)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCounterNextTxIncrements(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCounterRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO counters").
		WithArgs(CounterInvoiceNo, int64(1001)).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(1042)))

	tx, err := db.Beginx()
	require.NoError(t, err)
	value, err := repo.NextTx(context.Background(), tx, CounterInvoiceNo, 1001)
	require.NoError(t, err)
	assert.Equal(t, int64(1042), value)
	assert.NoError(t, mock.ExpectationsWereMet())
}
