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

const referralColumns = `id, code, discount_percent, active, usage_count, created_at, deleted_at`

// ReferralRepository handles persistence of referral codes.
type ReferralRepository struct {
	db *sqlx.DB
}

// NewReferralRepository constructs the repository.
func NewReferralRepository(db *sqlx.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// FindByCode returns a referral by its code. Callers normalise the code to
// uppercase before lookup.
func (r *ReferralRepository) FindByCode(ctx context.Context, code string) (*models.Referral, error) {
	query := fmt.Sprintf("SELECT %s FROM referrals WHERE code = $1 LIMIT 1", referralColumns)
	var referral models.Referral
	if err := r.db.GetContext(ctx, &referral, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find referral by code: %w", err)
	}
	return &referral, nil
}

// FindByID returns a referral by its primary key.
func (r *ReferralRepository) FindByID(ctx context.Context, id string) (*models.Referral, error) {
	query := fmt.Sprintf("SELECT %s FROM referrals WHERE id = $1 LIMIT 1", referralColumns)
	var referral models.Referral
	if err := r.db.GetContext(ctx, &referral, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find referral by id: %w", err)
	}
	return &referral, nil
}

// IncrementUsage bumps the usage counter atomically.
func (r *ReferralRepository) IncrementUsage(ctx context.Context, id string) error {
	const query = `UPDATE referrals SET usage_count = usage_count + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("increment referral usage: %w", err)
	}
	return nil
}

// Create persists a new referral code.
func (r *ReferralRepository) Create(ctx context.Context, referral *models.Referral) error {
	if referral.ID == "" {
		referral.ID = uuid.NewString()
	}
	if referral.CreatedAt.IsZero() {
		referral.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO referrals (id, code, discount_percent, active, usage_count, created_at, deleted_at)
        VALUES (:id, :code, :discount_percent, :active, :usage_count, :created_at, :deleted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, referral); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create referral: %w", ErrDuplicate)
		}
		return fmt.Errorf("create referral: %w", err)
	}
	return nil
}

// List returns all referral codes that are not soft-deleted.
func (r *ReferralRepository) List(ctx context.Context) ([]models.Referral, error) {
	query := fmt.Sprintf("SELECT %s FROM referrals WHERE deleted_at IS NULL ORDER BY created_at DESC", referralColumns)
	var referrals []models.Referral
	if err := r.db.SelectContext(ctx, &referrals, query); err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	return referrals, nil
}

// SoftDelete marks a referral as deleted without removing the row.
func (r *ReferralRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE referrals SET deleted_at = $2, active = FALSE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete referral: %w", err)
	}
	return nil
}
