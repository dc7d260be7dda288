package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proedge/enrollment-api/internal/dto"
	"github.com/proedge/enrollment-api/internal/models"
	appErrors "github.com/proedge/enrollment-api/pkg/errors"
)

type referralServiceMock struct {
	preview     *dto.ReferralPreview
	previewErr  error
	created     *models.Referral
	createErr   error
	lastCreate  dto.CreateReferralRequest
	list        []models.Referral
	deletedID   string
}

func (m *referralServiceMock) Preview(ctx context.Context, code string) (*dto.ReferralPreview, error) {
	return m.preview, m.previewErr
}

func (m *referralServiceMock) CreateReferral(ctx context.Context, req dto.CreateReferralRequest) (*models.Referral, error) {
	m.lastCreate = req
	return m.created, m.createErr
}

func (m *referralServiceMock) ListReferrals(ctx context.Context) ([]models.Referral, error) {
	return m.list, nil
}

func (m *referralServiceMock) DeleteReferral(ctx context.Context, id string) error {
	m.deletedID = id
	return nil
}

func TestReferralHandlerPreview(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &referralServiceMock{
		preview: &dto.ReferralPreview{Code: "WELCOME10", DiscountPercent: 10},
	}
	h := NewReferralHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/referrals/WELCOME10", nil)
	c.Params = gin.Params{{Key: "code", Value: "WELCOME10"}}

	h.Preview(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "WELCOME10")
}

func TestReferralHandlerPreviewUnknownCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &referralServiceMock{
		previewErr: appErrors.Clone(appErrors.ErrInvalidReferral, "referral code is not valid"),
	}
	h := NewReferralHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/referrals/NOPE", nil)
	c.Params = gin.Params{{Key: "code", Value: "NOPE"}}

	h.Preview(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReferralHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &referralServiceMock{
		created: &models.Referral{ID: "r1", Code: "WELCOME10", DiscountPercent: 10, Active: true},
	}
	h := NewReferralHandler(mockSvc)

	body := `{"code":"welcome10","discount_percent":10}`
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/referrals", bytes.NewBufferString(body))

	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "welcome10", mockSvc.lastCreate.Code)
	assert.Contains(t, w.Body.String(), "r1")
}

func TestReferralHandlerCreateDuplicate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &referralServiceMock{
		createErr: appErrors.Clone(appErrors.ErrConflict, "referral code already exists"),
	}
	h := NewReferralHandler(mockSvc)

	body := `{"code":"welcome10","discount_percent":10}`
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/referrals", bytes.NewBufferString(body))

	h.Create(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReferralHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &referralServiceMock{}
	h := NewReferralHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodDelete, "/referrals/r1", nil)
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	h.Delete(c)
	// c.Status alone defers the write; flush it like the router would.
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "r1", mockSvc.deletedID)
}
