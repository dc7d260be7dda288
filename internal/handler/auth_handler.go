package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/proedge/enrollment-api/internal/models"
	"github.com/proedge/enrollment-api/internal/service"
	appErrors "github.com/proedge/enrollment-api/pkg/errors"
	"github.com/proedge/enrollment-api/pkg/response"
)

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Login godoc
// @Summary Authenticate an admin
// @Description Authenticate by email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
