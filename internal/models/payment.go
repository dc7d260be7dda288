package models

import "time"

// PaymentProvider identifies how a payment was taken.
const (
	PaymentProviderRazorpay = "razorpay"
	PaymentProviderManual   = "manual"
)

// PaymentStatus represents the lifecycle of a payment attempt.
type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "INITIATED"
	PaymentStatusSuccess   PaymentStatus = "SUCCESS"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// Payment records one payment attempt, linked to at most one enrollment.
type Payment struct {
	ID                string        `db:"id" json:"id"`
	EnrollmentID      *string       `db:"enrollment_id" json:"enrollment_id,omitempty"`
	Provider          string        `db:"provider" json:"provider"`
	OrderID           string        `db:"order_id" json:"order_id"`
	ProviderPaymentID *string       `db:"provider_payment_id" json:"provider_payment_id,omitempty"`
	Signature         *string       `db:"signature" json:"-"`
	Amount            int64         `db:"amount" json:"amount"`
	Currency          string        `db:"currency" json:"currency"`
	Status            PaymentStatus `db:"status" json:"status"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentDetail enriches Payment with enrollment context for listings.
type PaymentDetail struct {
	Payment
	StudentName  *string `db:"student_name" json:"student_name,omitempty"`
	StudentEmail *string `db:"student_email" json:"student_email,omitempty"`
	CourseTitle  *string `db:"course_title" json:"course_title,omitempty"`
	InvoiceNo    *string `db:"invoice_no" json:"invoice_no,omitempty"`
}

// PaymentFilter provides filters for listing payments.
type PaymentFilter struct {
	UserID   string
	Status   PaymentStatus
	Provider string
	Page     int
	PageSize int
}
