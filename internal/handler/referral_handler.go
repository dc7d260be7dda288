package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/proedge/enrollment-api/internal/dto"
	"github.com/proedge/enrollment-api/internal/models"
	appErrors "github.com/proedge/enrollment-api/pkg/errors"
	"github.com/proedge/enrollment-api/pkg/response"
)

type referralService interface {
	Preview(ctx context.Context, code string) (*dto.ReferralPreview, error)
	CreateReferral(ctx context.Context, req dto.CreateReferralRequest) (*models.Referral, error)
	ListReferrals(ctx context.Context) ([]models.Referral, error)
	DeleteReferral(ctx context.Context, id string) error
}

// ReferralHandler exposes referral preview and admin management endpoints.
type ReferralHandler struct {
	referrals referralService
}

// NewReferralHandler constructs ReferralHandler.
func NewReferralHandler(referrals referralService) *ReferralHandler {
	return &ReferralHandler{referrals: referrals}
}

// Preview godoc
// @Summary Preview a referral discount
// @Tags Referrals
// @Produce json
// @Param code path string true "Referral code"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /referrals/{code} [get]
func (h *ReferralHandler) Preview(c *gin.Context) {
	preview, err := h.referrals.Preview(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// Create godoc
// @Summary Create a referral code
// @Tags Referrals
// @Accept json
// @Produce json
// @Param payload body dto.CreateReferralRequest true "Referral payload"
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /referrals [post]
func (h *ReferralHandler) Create(c *gin.Context) {
	var req dto.CreateReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid referral payload"))
		return
	}

	referral, err := h.referrals.CreateReferral(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, referral)
}

// List godoc
// @Summary List referral codes
// @Tags Referrals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /referrals [get]
func (h *ReferralHandler) List(c *gin.Context) {
	referrals, err := h.referrals.ListReferrals(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, referrals, nil)
}

// Delete godoc
// @Summary Retire a referral code
// @Tags Referrals
// @Param id path string true "Referral id"
// @Security BearerAuth
// @Success 204
// @Router /referrals/{id} [delete]
func (h *ReferralHandler) Delete(c *gin.Context) {
	if err := h.referrals.DeleteReferral(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
