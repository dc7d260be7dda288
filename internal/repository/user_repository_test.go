package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proedge/enrollment-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestUserFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	studentID := "S1001"
	rows := sqlmock.NewRows([]string{"id", "student_id", "email", "password_hash", "full_name", "contact", "role", "status", "created_at", "updated_at"}).
		AddRow("u1", studentID, "student@example.com", "hash", "Asha Rao", "9800000001", string(models.RoleStudent), string(models.UserStatusActive), now, now)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = \\$1 LIMIT 1").
		WithArgs("student@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "student@example.com")
	require.NoError(t, err)
	assert.Equal(t, "student@example.com", user.Email)
	require.NotNil(t, user.StudentID)
	assert.Equal(t, "S1001", *user.StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserFindByEmailNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = \\$1 LIMIT 1").
		WithArgs("missing@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{
		Email:        "new@example.com",
		PasswordHash: "hash",
		FullName:     "New Student",
		Contact:      "9800000002",
		Role:         models.RoleStudent,
		Status:       models.UserStatusActive,
	}
	err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	err := repo.Create(context.Background(), &models.User{Email: "dup@example.com", FullName: "Dup"})
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserSetStatusTx(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("u1", models.UserStatusActive, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Beginx()
	require.NoError(t, err)
	err = repo.SetStatusTx(context.Background(), tx, "u1", models.UserStatusActive)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
