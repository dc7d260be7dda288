package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proedge/enrollment-api/internal/models"
)

func TestEnrollmentExistsActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2 AND status = $3 LIMIT 1")).
		WithArgs("u1", "c1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsActive(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentExistsActiveNone(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2 AND status = $3 LIMIT 1")).
		WithArgs("u1", "c1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsActive(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{UserID: "u1", CourseID: "c1"}
	err := repo.Create(context.Background(), enrollment)
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.False(t, enrollment.EnrolledAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentCreateDuplicateActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "enrollments_active_pair_idx"})

	err := repo.Create(context.Background(), &models.Enrollment{UserID: "u1", CourseID: "c1", Status: models.EnrollmentStatusActive})
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentUpdateStatusTxStampsActivation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, activated_at = COALESCE($3, activated_at) WHERE id = $1")).
		WithArgs("e1", models.EnrollmentStatusActive, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Beginx()
	require.NoError(t, err)
	err = repo.UpdateStatusTx(context.Background(), tx, "e1", models.EnrollmentStatusActive)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	code := "S1001"
	rows := sqlmock.NewRows([]string{"id", "user_id", "course_id", "batch_id", "status", "enrolled_at", "activated_at",
		"student_name", "student_email", "student_code", "course_title", "batch_name"}).
		AddRow("e1", "u1", "c1", nil, string(models.EnrollmentStatusActive), now, now,
			"Asha Rao", "asha@example.com", code, "Physics Foundation", nil)
	mock.ExpectQuery("SELECT e.id, (.+) FROM enrollments e").
		WithArgs(models.EnrollmentStatusActive).
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM enrollments e").
		WithArgs(models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.EnrollmentFilter{Status: models.EnrollmentStatusActive})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Physics Foundation", list[0].CourseTitle)
	assert.NoError(t, mock.ExpectationsWereMet())
}
