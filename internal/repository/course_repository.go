package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/proedge/enrollment-api/internal/models"
)

// CourseRepository exposes read access to the course catalog.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, title, slug, price, active, created_at, updated_at FROM courses WHERE id = $1 LIMIT 1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course by id: %w", err)
	}
	return &course, nil
}

// BatchRepository exposes read access to course batches.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository constructs the repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// FindByID returns a batch by its ID.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	const query = `SELECT id, course_id, name, tutor_name, start_date, end_date, created_at FROM batches WHERE id = $1 LIMIT 1`
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find batch by id: %w", err)
	}
	return &batch, nil
}
