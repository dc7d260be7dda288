package models

import "time"

// Invoice is an immutable financial record issued once a payment succeeds.
type Invoice struct {
	ID        string    `db:"id" json:"id"`
	PaymentID string    `db:"payment_id" json:"payment_id"`
	InvoiceNo string    `db:"invoice_no" json:"invoice_no"`
	Amount    int64     `db:"amount" json:"amount"`
	Tax       int64     `db:"tax" json:"tax"`
	Total     int64     `db:"total" json:"total"`
	PDFPath   *string   `db:"pdf_path" json:"pdf_path,omitempty"`
	IssuedAt  time.Time `db:"issued_at" json:"issued_at"`
}
