package models

import "time"

// UserRole represents the available roles.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleStudent UserRole = "STUDENT"
)

// UserStatus represents the account lifecycle.
type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
)

// User represents an application user stored in the users table. For
// students it also carries the admission profile and fee snapshot captured
// at enrollment time.
type User struct {
	ID           string     `db:"id" json:"id"`
	StudentID    *string    `db:"student_id" json:"student_id,omitempty"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Contact      string     `db:"contact" json:"contact"`
	Role         UserRole   `db:"role" json:"role"`
	Status       UserStatus `db:"status" json:"status"`

	DOB            *string `db:"dob" json:"dob,omitempty"`
	Gender         *string `db:"gender" json:"gender,omitempty"`
	Address        *string `db:"address" json:"address,omitempty"`
	ParentName     *string `db:"parent_name" json:"parent_name,omitempty"`
	ParentContact  *string `db:"parent_contact" json:"parent_contact,omitempty"`
	CurrentSchool  *string `db:"current_school" json:"current_school,omitempty"`
	ClassYear      *string `db:"class_year" json:"class_year,omitempty"`
	EducationLevel *string `db:"education_level" json:"education_level,omitempty"`
	Board          *string `db:"board" json:"board,omitempty"`

	CourseName    *string `db:"course_name" json:"course_name,omitempty"`
	BatchTiming   *string `db:"batch_timing" json:"batch_timing,omitempty"`
	TotalFees     *int64  `db:"total_fees" json:"total_fees,omitempty"`
	OriginalFees  *int64  `db:"original_fees" json:"original_fees,omitempty"`
	PaymentMode   *string `db:"payment_mode" json:"payment_mode,omitempty"`
	PaymentOption *string `db:"payment_option" json:"payment_option,omitempty"`

	Installment1Amount *int64  `db:"installment1_amount" json:"installment1_amount,omitempty"`
	Installment1Date   *string `db:"installment1_date" json:"installment1_date,omitempty"`
	Installment2Amount *int64  `db:"installment2_amount" json:"installment2_amount,omitempty"`
	Installment2Date   *string `db:"installment2_date" json:"installment2_date,omitempty"`
	Installment3Amount *int64  `db:"installment3_amount" json:"installment3_amount,omitempty"`
	Installment3Date   *string `db:"installment3_date" json:"installment3_date,omitempty"`

	ReferralCode   *string `db:"referral_code" json:"referral_code,omitempty"`
	ReferralAmount *int64  `db:"referral_amount" json:"referral_amount,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
