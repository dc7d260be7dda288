package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proedge/enrollment-api/internal/models"
)

func TestReferralFindByCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReferralRepository(db)

	rows := sqlmock.NewRows([]string{"id", "code", "discount_percent", "active", "usage_count", "created_at", "deleted_at"}).
		AddRow("r1", "WELCOME10", 10.0, true, 4, time.Now(), nil)
	mock.ExpectQuery("SELECT (.+) FROM referrals WHERE code = \\$1 LIMIT 1").
		WithArgs("WELCOME10").
		WillReturnRows(rows)

	referral, err := repo.FindByCode(context.Background(), "WELCOME10")
	require.NoError(t, err)
	assert.Equal(t, 10.0, referral.DiscountPercent)
	assert.True(t, referral.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralFindByCodeUnknown(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReferralRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM referrals WHERE code = \\$1 LIMIT 1").
		WithArgs("NOPE").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByCode(context.Background(), "NOPE")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReferralRepository(db)

	rows := sqlmock.NewRows([]string{"id", "code", "discount_percent", "active", "usage_count", "created_at", "deleted_at"}).
		AddRow("r1", "WELCOME10", 10.0, true, 4, time.Now(), nil)
	mock.ExpectQuery("SELECT (.+) FROM referrals WHERE id = \\$1 LIMIT 1").
		WithArgs("r1").
		WillReturnRows(rows)

	referral, err := repo.FindByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", referral.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralIncrementUsage(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReferralRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE referrals SET usage_count = usage_count + 1 WHERE id = $1")).
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.IncrementUsage(context.Background(), "r1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralSoftDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReferralRepository(db)

	mock.ExpectExec("UPDATE referrals SET deleted_at").
		WithArgs("r1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SoftDelete(context.Background(), "r1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReferralRepository(db)

	rows := sqlmock.NewRows([]string{"id", "code", "discount_percent", "active", "usage_count", "created_at", "deleted_at"}).
		AddRow("r1", "WELCOME10", 10.0, true, 4, time.Now(), nil).
		AddRow("r2", "FRIEND15", 15.0, false, 0, time.Now(), nil)
	mock.ExpectQuery("SELECT (.+) FROM referrals WHERE deleted_at IS NULL").
		WillReturnRows(rows)

	referrals, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, referrals, 2)
	assert.Equal(t, "FRIEND15", referrals[1].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReferralRepository(db)

	mock.ExpectExec("INSERT INTO referrals").WillReturnResult(sqlmock.NewResult(1, 1))

	referral := &models.Referral{Code: "WELCOME10", DiscountPercent: 10, Active: true}
	err := repo.Create(context.Background(), referral)
	require.NoError(t, err)
	assert.NotEmpty(t, referral.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
