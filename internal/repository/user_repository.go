package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/proedge/enrollment-api/internal/models"
)

const userColumns = `id, student_id, email, password_hash, full_name, contact, role, status,
        dob, gender, address, parent_name, parent_contact, current_school, class_year, education_level, board,
        course_name, batch_timing, total_fees, original_fees, payment_mode, payment_option,
        installment1_amount, installment1_date, installment2_amount, installment2_date, installment3_amount, installment3_date,
        referral_code, referral_amount, created_at, updated_at`

// UserRepository provides database access for users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE email = $1 LIMIT 1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1 LIMIT 1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// Create inserts a new user. A unique-constraint violation on email is
// reported as ErrDuplicate so the identity resolver can fall back to a merge.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, student_id, email, password_hash, full_name, contact, role, status,
        dob, gender, address, parent_name, parent_contact, current_school, class_year, education_level, board,
        course_name, batch_timing, total_fees, original_fees, payment_mode, payment_option,
        installment1_amount, installment1_date, installment2_amount, installment2_date, installment3_amount, installment3_date,
        referral_code, referral_amount, created_at, updated_at)
        VALUES (:id, :student_id, :email, :password_hash, :full_name, :contact, :role, :status,
        :dob, :gender, :address, :parent_name, :parent_contact, :current_school, :class_year, :education_level, :board,
        :course_name, :batch_timing, :total_fees, :original_fees, :payment_mode, :payment_option,
        :installment1_amount, :installment1_date, :installment2_amount, :installment2_date, :installment3_amount, :installment3_date,
        :referral_code, :referral_amount, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user %s: %w", user.Email, ErrDuplicate)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update persists the merged profile fields of an existing user.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET student_id = :student_id, full_name = :full_name, contact = :contact,
        dob = :dob, gender = :gender, address = :address, parent_name = :parent_name, parent_contact = :parent_contact,
        current_school = :current_school, class_year = :class_year, education_level = :education_level, board = :board,
        course_name = :course_name, batch_timing = :batch_timing, total_fees = :total_fees, original_fees = :original_fees,
        payment_mode = :payment_mode, payment_option = :payment_option,
        installment1_amount = :installment1_amount, installment1_date = :installment1_date,
        installment2_amount = :installment2_amount, installment2_date = :installment2_date,
        installment3_amount = :installment3_amount, installment3_date = :installment3_date,
        referral_code = :referral_code, referral_amount = :referral_amount, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// SetStatus updates the account status.
func (r *UserRepository) SetStatus(ctx context.Context, id string, status models.UserStatus) error {
	const query = `UPDATE users SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set user status: %w", err)
	}
	return nil
}

// SetStatusTx updates the account status inside the caller's transaction.
func (r *UserRepository) SetStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status models.UserStatus) error {
	const query = `UPDATE users SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set user status: %w", err)
	}
	return nil
}
