package models

import "time"

// Course is a catalog entry. Read-only input to the enrollment workflow.
type Course struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Slug      string    `db:"slug" json:"slug"`
	Price     int64     `db:"price" json:"price"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Batch groups enrolled students of a course under a schedule and tutor.
type Batch struct {
	ID        string     `db:"id" json:"id"`
	CourseID  string     `db:"course_id" json:"course_id"`
	Name      string     `db:"name" json:"name"`
	TutorName *string    `db:"tutor_name" json:"tutor_name,omitempty"`
	StartDate *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate   *time.Time `db:"end_date" json:"end_date,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
