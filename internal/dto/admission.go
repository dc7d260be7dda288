package dto

// AdmissionRequest is the inbound enrollment payload. Unknown fields are
// rejected at the HTTP boundary; every optional profile field is explicit.
type AdmissionRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Contact  string `json:"contact" validate:"required"`

	CourseID string  `json:"course_id" validate:"required"`
	BatchID  *string `json:"batch_id,omitempty"`

	PaymentMode   string `json:"payment_mode" validate:"required"`
	PaymentOption string `json:"payment_option,omitempty"`

	ReferralCode string `json:"referral_code,omitempty"`

	DOB            *string `json:"dob,omitempty"`
	Gender         *string `json:"gender,omitempty"`
	Address        *string `json:"address,omitempty"`
	ParentName     *string `json:"parent_name,omitempty"`
	ParentContact  *string `json:"parent_contact,omitempty"`
	CurrentSchool  *string `json:"current_school,omitempty"`
	ClassYear      *string `json:"class_year,omitempty"`
	EducationLevel *string `json:"education_level,omitempty"`
	Board          *string `json:"board,omitempty"`

	BatchTiming  *string `json:"batch_timing,omitempty"`
	TotalFees    *int64  `json:"total_fees,omitempty"`
	OriginalFees *int64  `json:"original_fees,omitempty"`

	AdvanceAmount *int64 `json:"advance_amount,omitempty"`

	Installment1Amount *int64  `json:"installment1_amount,omitempty"`
	Installment1Date   *string `json:"installment1_date,omitempty"`
	Installment2Amount *int64  `json:"installment2_amount,omitempty"`
	Installment2Date   *string `json:"installment2_date,omitempty"`
	Installment3Amount *int64  `json:"installment3_amount,omitempty"`
	Installment3Date   *string `json:"installment3_date,omitempty"`
}

// AdmissionResult is returned from the initiate endpoint. Online flows carry
// an order id for the client-side checkout; offline flows carry the invoice
// number issued synchronously.
type AdmissionResult struct {
	EnrollmentID string  `json:"enrollment_id"`
	UserID       string  `json:"user_id"`
	StudentID    string  `json:"student_id"`
	Amount       int64   `json:"amount"`
	Currency     string  `json:"currency"`
	OrderID      *string `json:"order_id,omitempty"`
	GatewayKeyID *string `json:"gateway_key_id,omitempty"`
	InvoiceNo    *string `json:"invoice_no,omitempty"`
}

// VerifyPaymentRequest is the client-side confirmation payload.
type VerifyPaymentRequest struct {
	OrderID   string `json:"order_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// ConfirmationResult is returned once a payment is confirmed.
type ConfirmationResult struct {
	InvoiceNo    string `json:"invoice_no"`
	Amount       int64  `json:"amount"`
	EnrollmentID string `json:"enrollment_id,omitempty"`
	StudentName  string `json:"student_name,omitempty"`
	StudentEmail string `json:"student_email,omitempty"`
	CourseTitle  string `json:"course_title,omitempty"`
}

// WebhookPayload mirrors the gateway notification body.
type WebhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ReferralPreview is the public discount preview for a referral code.
type ReferralPreview struct {
	Code            string  `json:"code"`
	DiscountPercent float64 `json:"discount_percent"`
}

// CreateReferralRequest creates a new referral code.
type CreateReferralRequest struct {
	Code            string  `json:"code" validate:"required,min=3,max=32"`
	DiscountPercent float64 `json:"discount_percent" validate:"required,gt=0,lte=100"`
	Active          *bool   `json:"active,omitempty"`
}
