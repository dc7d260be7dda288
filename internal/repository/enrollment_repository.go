package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/proedge/enrollment-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments. The uniqueness of
// an ACTIVE (user, course) pair is additionally backed by a partial unique
// index so the check-then-insert window cannot admit duplicates.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ExistsActive checks whether the user already holds an active enrollment
// for the course.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, userID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, userID, courseID, models.EnrollmentStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record. A violation of the active-pair
// index is reported as ErrDuplicate.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPending
	}
	const query = `INSERT INTO enrollments (id, user_id, course_id, batch_id, status, enrolled_at, activated_at)
        VALUES (:id, :user_id, :course_id, :batch_id, :status, :enrolled_at, :activated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create enrollment: %w", ErrDuplicate)
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, user_id, course_id, batch_id, status, enrolled_at, activated_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// UpdateStatus updates the enrollment status, stamping activated_at on
// transitions to ACTIVE.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	return updateEnrollmentStatus(ctx, r.db, id, status)
}

// UpdateStatusTx updates the enrollment status inside the caller's transaction.
func (r *EnrollmentRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.EnrollmentStatus) error {
	return updateEnrollmentStatus(ctx, tx, id, status)
}

func updateEnrollmentStatus(ctx context.Context, execer sqlx.ExecerContext, id string, status models.EnrollmentStatus) error {
	var activatedAt *time.Time
	if status == models.EnrollmentStatusActive {
		now := time.Now().UTC()
		activatedAt = &now
	}
	const query = `UPDATE enrollments SET status = $2, activated_at = COALESCE($3, activated_at) WHERE id = $1`
	if _, err := execer.ExecContext(ctx, query, id, status, activatedAt); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN users u ON u.id = e.user_id
LEFT JOIN courses c ON c.id = e.course_id
LEFT JOIN batches b ON b.id = e.batch_id`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("e.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "u.full_name",
		"course_title": "c.title",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "enrolled_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.user_id, e.course_id, e.batch_id, e.status, e.enrolled_at, e.activated_at,
        u.full_name AS student_name, u.email AS student_email, u.student_id AS student_code,
        c.title AS course_title, b.name AS batch_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}
