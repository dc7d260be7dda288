package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// An enrollment progresses PENDING -> ACTIVE or PENDING -> CANCELLED. It
// never reverts from ACTIVE except by administrative restore.
const (
	EnrollmentStatusPending   EnrollmentStatus = "PENDING"
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// Enrollment links a user to a course and optionally a batch.
type Enrollment struct {
	ID          string           `db:"id" json:"id"`
	UserID      string           `db:"user_id" json:"user_id"`
	CourseID    string           `db:"course_id" json:"course_id"`
	BatchID     *string          `db:"batch_id" json:"batch_id,omitempty"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt  time.Time        `db:"enrolled_at" json:"enrolled_at"`
	ActivatedAt *time.Time       `db:"activated_at" json:"activated_at,omitempty"`
}

// EnrollmentDetail enriches Enrollment with user and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string  `db:"student_name" json:"student_name"`
	StudentEmail string  `db:"student_email" json:"student_email"`
	StudentCode  *string `db:"student_code" json:"student_code,omitempty"`
	CourseTitle  string  `db:"course_title" json:"course_title"`
	BatchName    *string `db:"batch_name" json:"batch_name,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	UserID    string
	CourseID  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
