package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/proedge/enrollment-api/internal/dto"
	"github.com/proedge/enrollment-api/internal/models"
	"github.com/proedge/enrollment-api/internal/repository"
	"github.com/proedge/enrollment-api/pkg/config"
	appErrors "github.com/proedge/enrollment-api/pkg/errors"
)

type referralRepository interface {
	FindByCode(ctx context.Context, code string) (*models.Referral, error)
	FindByID(ctx context.Context, id string) (*models.Referral, error)
	IncrementUsage(ctx context.Context, id string) error
	Create(ctx context.Context, referral *models.Referral) error
	List(ctx context.Context) ([]models.Referral, error)
	SoftDelete(ctx context.Context, id string) error
}

type referralCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Discount is the outcome of applying a referral code to a price.
type Discount struct {
	ReferralID      string
	Code            string
	DiscountPercent float64
	Amount          int64
	AdjustedFee     int64
}

// ReferralService validates referral codes and computes discounts. Lookups
// are cached in Redis; mutations invalidate the cached entry.
type ReferralService struct {
	repo      referralRepository
	cache     referralCache
	validator *validator.Validate
	logger    *zap.Logger
	config    config.ReferralConfig
}

// NewReferralService constructs a ReferralService instance.
func NewReferralService(repo referralRepository, cache referralCache, validate *validator.Validate, logger *zap.Logger, cfg config.ReferralConfig) *ReferralService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReferralService{repo: repo, cache: cache, validator: validate, logger: logger, config: cfg}
}

// NormalizeCode canonicalises a referral code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func referralCacheKey(code string) string {
	return "referral:" + code
}

// Preview returns the discount a code would grant without consuming it.
func (s *ReferralService) Preview(ctx context.Context, code string) (*dto.ReferralPreview, error) {
	referral, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	return &dto.ReferralPreview{Code: referral.Code, DiscountPercent: referral.DiscountPercent}, nil
}

// Apply computes the discount a valid code grants on the given price. The
// discount amount rounds half up to the nearest whole currency unit and is
// capped at the price itself.
func (s *ReferralService) Apply(ctx context.Context, code string, price int64) (*Discount, error) {
	referral, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	amount := int64(math.Round(float64(price) * referral.DiscountPercent / 100))
	if amount > price {
		amount = price
	}
	return &Discount{
		ReferralID:      referral.ID,
		Code:            referral.Code,
		DiscountPercent: referral.DiscountPercent,
		Amount:          amount,
		AdjustedFee:     price - amount,
	}, nil
}

// RecordUse bumps the usage counter once a discounted enrollment completes.
func (s *ReferralService) RecordUse(ctx context.Context, referralID string) error {
	if err := s.repo.IncrementUsage(ctx, referralID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record referral usage")
	}
	return nil
}

func (s *ReferralService) lookup(ctx context.Context, code string) (*models.Referral, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidReferral, "referral code is empty")
	}

	var referral models.Referral
	if s.cache != nil && s.config.CacheEnabled {
		if err := s.cache.Get(ctx, referralCacheKey(normalized), &referral); err == nil {
			return s.check(&referral, normalized)
		}
	}

	found, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidReferral, "unknown referral code")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up referral")
	}

	if s.cache != nil && s.config.CacheEnabled {
		if err := s.cache.Set(ctx, referralCacheKey(normalized), found, s.config.CacheTTL); err != nil {
			s.logger.Warn("failed to cache referral", zap.String("code", normalized), zap.Error(err))
		}
	}
	return s.check(found, normalized)
}

func (s *ReferralService) check(referral *models.Referral, code string) (*models.Referral, error) {
	if !referral.Active || referral.DeletedAt != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidReferral, "referral code is no longer active")
	}
	if referral.DiscountPercent <= 0 || referral.DiscountPercent > 100 {
		s.logger.Error("referral carries out-of-range discount", zap.String("code", code), zap.Float64("percent", referral.DiscountPercent))
		return nil, appErrors.Clone(appErrors.ErrInvalidReferral, "referral code is misconfigured")
	}
	return referral, nil
}

// CreateReferral registers a new code for the admin console.
func (s *ReferralService) CreateReferral(ctx context.Context, req dto.CreateReferralRequest) (*models.Referral, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid referral payload")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	referral := &models.Referral{
		Code:            NormalizeCode(req.Code),
		DiscountPercent: req.DiscountPercent,
		Active:          active,
	}
	if err := s.repo.Create(ctx, referral); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "referral code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create referral")
	}
	return referral, nil
}

// ListReferrals returns all live referral codes.
func (s *ReferralService) ListReferrals(ctx context.Context) ([]models.Referral, error) {
	referrals, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list referrals")
	}
	return referrals, nil
}

// DeleteReferral retires a code. The row is kept for audit. The cached
// entry is invalidated so a retired code stops applying immediately.
func (s *ReferralService) DeleteReferral(ctx context.Context, id string) error {
	referral, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "referral not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch referral")
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete referral")
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, referralCacheKey(NormalizeCode(referral.Code))); err != nil {
			s.logger.Warn("failed to invalidate referral cache", zap.String("code", referral.Code), zap.Error(err))
		}
	}
	return nil
}
