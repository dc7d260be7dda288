package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/proedge/enrollment-api/internal/dto"
	"github.com/proedge/enrollment-api/internal/models"
	appErrors "github.com/proedge/enrollment-api/pkg/errors"
	"github.com/proedge/enrollment-api/pkg/response"
)

type paymentService interface {
	Confirm(ctx context.Context, req dto.VerifyPaymentRequest) (*dto.ConfirmationResult, error)
	HandleWebhook(ctx context.Context, payload dto.WebhookPayload) error
	ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
}

type invoiceOpener interface {
	OpenByToken(ctx context.Context, token string) (*os.File, string, error)
}

// webhookVerifier authenticates raw webhook bodies.
type webhookVerifier interface {
	VerifyWebhook(body []byte, signature string) bool
}

// PaymentHandler exposes payment verification, webhook and invoice endpoints.
type PaymentHandler struct {
	admissions paymentService
	invoices   invoiceOpener
	verifier   webhookVerifier
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(admissions paymentService, invoices invoiceOpener, verifier webhookVerifier) *PaymentHandler {
	return &PaymentHandler{admissions: admissions, invoices: invoices, verifier: verifier}
}

// Verify godoc
// @Summary Verify a checkout payment
// @Description Confirm a gateway payment using the checkout signature
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body dto.VerifyPaymentRequest true "Verification payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/verify [post]
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req dto.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verification payload"))
		return
	}

	result, err := h.admissions.Confirm(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Webhook godoc
// @Summary Gateway webhook receiver
// @Description Process asynchronous payment notifications from the gateway
// @Tags Payments
// @Accept json
// @Produce json
// @Param X-Razorpay-Signature header string true "Webhook signature"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /payments/webhook [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable webhook body"))
		return
	}

	signature := c.GetHeader("X-Razorpay-Signature")
	if signature == "" || !h.verifier.VerifyWebhook(body, signature) {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidSignature, "webhook signature verification failed"))
		return
	}

	var payload dto.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "malformed webhook payload"))
		return
	}

	if err := h.admissions.HandleWebhook(c.Request.Context(), payload); err != nil {
		// Non-2xx makes the gateway redeliver.
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"received": true}, nil)
}

// DownloadInvoice godoc
// @Summary Download an invoice PDF
// @Description Stream the invoice document referenced by a signed token
// @Tags Payments
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /invoices/download [get]
func (h *PaymentHandler) DownloadInvoice(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	file, filename, err := h.invoices.OpenByToken(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat invoice file"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.DataFromReader(http.StatusOK, info.Size(), "application/pdf", file, nil)
}

// List godoc
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param userId query string false "Filter by user"
// @Param status query string false "Filter by status"
// @Param provider query string false "Filter by provider"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	var filter models.PaymentFilter
	filter.UserID = c.Query("userId")
	if status := c.Query("status"); status != "" {
		filter.Status = models.PaymentStatus(strings.ToUpper(status))
	}
	filter.Provider = c.Query("provider")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	payments, total, err := h.admissions.ListPayments(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, payments, pagination)
}
