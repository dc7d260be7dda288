package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proedge/enrollment-api/internal/dto"
	"github.com/proedge/enrollment-api/internal/models"
	"github.com/proedge/enrollment-api/internal/repository"
	"github.com/proedge/enrollment-api/pkg/config"
	appErrors "github.com/proedge/enrollment-api/pkg/errors"
)

type mockReferralRepo struct {
	byCode    map[string]models.Referral
	usage     map[string]int
	created   *models.Referral
	createErr error
	deleted   []string
}

func (m *mockReferralRepo) FindByCode(ctx context.Context, code string) (*models.Referral, error) {
	if r, ok := m.byCode[code]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReferralRepo) FindByID(ctx context.Context, id string) (*models.Referral, error) {
	for _, r := range m.byCode {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockReferralRepo) IncrementUsage(ctx context.Context, id string) error {
	if m.usage == nil {
		m.usage = make(map[string]int)
	}
	m.usage[id]++
	return nil
}

func (m *mockReferralRepo) Create(ctx context.Context, referral *models.Referral) error {
	if m.createErr != nil {
		return m.createErr
	}
	referral.ID = "new-referral"
	m.created = referral
	return nil
}

func (m *mockReferralRepo) List(ctx context.Context) ([]models.Referral, error) {
	var out []models.Referral
	for _, r := range m.byCode {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockReferralRepo) SoftDelete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type nopCache struct{}

func (nopCache) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}
func (nopCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}
func (nopCache) Delete(ctx context.Context, key string) error { return nil }

func newReferralFixture(referrals ...models.Referral) (*ReferralService, *mockReferralRepo) {
	repo := &mockReferralRepo{byCode: make(map[string]models.Referral)}
	for _, r := range referrals {
		repo.byCode[r.Code] = r
	}
	svc := NewReferralService(repo, nopCache{}, nil, nil, config.ReferralConfig{})
	return svc, repo
}

func TestReferralApplyRoundsHalfUp(t *testing.T) {
	cases := []struct {
		price    int64
		percent  float64
		discount int64
		adjusted int64
	}{
		{999, 10, 100, 899},
		{1000, 10, 100, 900},
		{45000, 15, 6750, 38250},
		{333, 7.5, 25, 308},
		{1, 100, 1, 0},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d_at_%v", tc.price, tc.percent), func(t *testing.T) {
			svc, _ := newReferralFixture(models.Referral{ID: "r1", Code: "CODE", DiscountPercent: tc.percent, Active: true})
			discount, err := svc.Apply(context.Background(), "CODE", tc.price)
			require.NoError(t, err)
			assert.Equal(t, tc.discount, discount.Amount)
			assert.Equal(t, tc.adjusted, discount.AdjustedFee)
		})
	}
}

func TestReferralApplyNormalizesCode(t *testing.T) {
	svc, _ := newReferralFixture(models.Referral{ID: "r1", Code: "WELCOME10", DiscountPercent: 10, Active: true})

	discount, err := svc.Apply(context.Background(), "  welcome10 ", 1000)
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", discount.Code)
	assert.Equal(t, int64(100), discount.Amount)
}

func TestReferralApplyUnknownCode(t *testing.T) {
	svc, _ := newReferralFixture()

	_, err := svc.Apply(context.Background(), "NOPE", 1000)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidReferral.Code, appErr.Code)
}

func TestReferralApplyInactiveCode(t *testing.T) {
	svc, _ := newReferralFixture(models.Referral{ID: "r1", Code: "OLD", DiscountPercent: 10, Active: false})

	_, err := svc.Apply(context.Background(), "OLD", 1000)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidReferral.Code, appErr.Code)
}

func TestReferralApplySoftDeletedCode(t *testing.T) {
	deletedAt := time.Now()
	svc, _ := newReferralFixture(models.Referral{ID: "r1", Code: "GONE", DiscountPercent: 10, Active: true, DeletedAt: &deletedAt})

	_, err := svc.Apply(context.Background(), "GONE", 1000)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidReferral.Code, appErr.Code)
}

func TestReferralRecordUseIncrementsOnce(t *testing.T) {
	svc, repo := newReferralFixture(models.Referral{ID: "r1", Code: "CODE", DiscountPercent: 10, Active: true})

	require.NoError(t, svc.RecordUse(context.Background(), "r1"))
	assert.Equal(t, 1, repo.usage["r1"])
}

func TestReferralCreateNormalizesAndDefaultsActive(t *testing.T) {
	svc, repo := newReferralFixture()

	referral, err := svc.CreateReferral(context.Background(), dto.CreateReferralRequest{Code: "spring24", DiscountPercent: 12.5})
	require.NoError(t, err)
	assert.Equal(t, "SPRING24", referral.Code)
	assert.True(t, referral.Active)
	require.NotNil(t, repo.created)
}

func TestReferralCreateDuplicate(t *testing.T) {
	svc, repo := newReferralFixture()
	repo.createErr = fmt.Errorf("create referral: %w", repository.ErrDuplicate)

	_, err := svc.CreateReferral(context.Background(), dto.CreateReferralRequest{Code: "SPRING24", DiscountPercent: 10})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestReferralCreateRejectsBadPercent(t *testing.T) {
	svc, _ := newReferralFixture()

	_, err := svc.CreateReferral(context.Background(), dto.CreateReferralRequest{Code: "BAD", DiscountPercent: 150})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

type recordingCache struct {
	nopCache
	deletedKeys []string
}

func (c *recordingCache) Delete(ctx context.Context, key string) error {
	c.deletedKeys = append(c.deletedKeys, key)
	return nil
}

func TestReferralDeleteInvalidatesCacheByID(t *testing.T) {
	repo := &mockReferralRepo{byCode: map[string]models.Referral{
		"WELCOME10": {ID: "r1", Code: "WELCOME10", DiscountPercent: 10, Active: true},
	}}
	cache := &recordingCache{}
	svc := NewReferralService(repo, cache, nil, nil, config.ReferralConfig{})

	require.NoError(t, svc.DeleteReferral(context.Background(), "r1"))
	assert.Equal(t, []string{"r1"}, repo.deleted)
	assert.Equal(t, []string{"referral:WELCOME10"}, cache.deletedKeys)
}

func TestReferralDeleteUnknownID(t *testing.T) {
	svc, repo := newReferralFixture()

	err := svc.DeleteReferral(context.Background(), "missing")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Empty(t, repo.deleted)
}
