package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/proedge/enrollment-api/internal/dto"
	"github.com/proedge/enrollment-api/internal/models"
	appErrors "github.com/proedge/enrollment-api/pkg/errors"
	"github.com/proedge/enrollment-api/pkg/response"
)

type admissionService interface {
	Initiate(ctx context.Context, req dto.AdmissionRequest) (*dto.AdmissionResult, error)
	ListEnrollments(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

// AdmissionHandler exposes the enrollment endpoints.
type AdmissionHandler struct {
	admissions admissionService
}

// NewAdmissionHandler constructs AdmissionHandler.
func NewAdmissionHandler(admissions admissionService) *AdmissionHandler {
	return &AdmissionHandler{admissions: admissions}
}

// Initiate godoc
// @Summary Initiate an enrollment
// @Description Resolve the student, apply any referral discount and start the payment flow
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.AdmissionRequest true "Admission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /enrollments/initiate [post]
func (h *AdmissionHandler) Initiate(c *gin.Context) {
	var req dto.AdmissionRequest
	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid admission payload"))
		return
	}

	result, err := h.admissions.Initiate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param userId query string false "Filter by user"
// @Param courseId query string false "Filter by course"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *AdmissionHandler) List(c *gin.Context) {
	var filter models.EnrollmentFilter
	filter.UserID = c.Query("userId")
	filter.CourseID = c.Query("courseId")
	if status := c.Query("status"); status != "" {
		filter.Status = models.EnrollmentStatus(strings.ToUpper(status))
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	enrollments, total, err := h.admissions.ListEnrollments(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}
