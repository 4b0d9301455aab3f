package analysis

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/claimwatch/claim-analysis/pkg/common"
	"github.com/claimwatch/claim-analysis/pkg/models"
	"github.com/claimwatch/claim-analysis/pkg/validation"
)

type attachmentPayload struct {
	MimeType string `json:"mime_type" binding:"required"`
	Data     string `json:"data" binding:"required,base64"`
}

type analyzeRequest struct {
	ClaimID    string             `json:"claim_id"`
	Details    string             `json:"details" binding:"required"`
	Attachment *attachmentPayload `json:"attachment"`
}

type batchRequest struct {
	Claims []analyzeRequest `json:"claims" binding:"required,min=1,dive"`
}

// Handler exposes the claim analysis endpoints.
type Handler struct {
	service  *Service
	maxBatch int
	log      *zap.Logger
}

// NewHandler creates an analysis handler. maxBatch bounds batch size and
// defaults to 50 when non-positive.
func NewHandler(service *Service, maxBatch int, log *zap.Logger) *Handler {
	if maxBatch <= 0 {
		maxBatch = 50
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{service: service, maxBatch: maxBatch, log: log}
}

// RegisterRoutes mounts the analysis endpoints on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	claims := rg.Group("/claims")
	{
		claims.POST("/analyze", h.AnalyzeClaim)
		claims.POST("/analyze/batch", h.AnalyzeBatch)
	}
}

// toInput decodes the wire request into a claim input, decoding the
// attachment payload at the boundary.
func (r *analyzeRequest) toInput() (models.ClaimInput, error) {
	input := models.ClaimInput{
		ClaimID: r.ClaimID,
		Details: r.Details,
	}

	if r.Attachment != nil {
		data, err := base64.StdEncoding.DecodeString(r.Attachment.Data)
		if err != nil {
			return models.ClaimInput{}, fmt.Errorf("attachment data is not valid base64: %w", err)
		}
		input.Attachment = &models.Attachment{
			MimeType: r.Attachment.MimeType,
			Data:     data,
		}
	}

	return input, nil
}

// AnalyzeClaim scores a single claim narrative.
func (h *Handler) AnalyzeClaim(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	input, err := req.toInput()
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.AnalyzeFast(c.Request.Context(), input)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	common.SuccessResponse(c, result)
}

// AnalyzeBatch scores several claims concurrently and returns results in
// request order.
func (h *Handler) AnalyzeBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	if len(req.Claims) > h.maxBatch {
		common.ErrorResponse(c, http.StatusBadRequest, fmt.Sprintf("batch size exceeds the maximum of %d claims", h.maxBatch))
		return
	}

	inputs := make([]models.ClaimInput, 0, len(req.Claims))
	for _, claim := range req.Claims {
		input, err := claim.toInput()
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		inputs = append(inputs, input)
	}

	results, err := h.service.AnalyzeBatch(c.Request.Context(), inputs)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	common.SuccessResponse(c, results)
}

func (h *Handler) bindError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		common.ErrorResponse(c, http.StatusBadRequest, validation.NewValidationError(validationErrs).Error())
		return
	}
	common.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
}

func (h *Handler) serviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.AppErrorResponse(c, common.NewBadRequestError(err.Error(), err))
	case errors.Is(err, ErrBothSourcesFailed):
		common.AppErrorResponse(c, common.NewBadGatewayError("claim analysis is temporarily unavailable", err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		common.ErrorResponse(c, http.StatusRequestTimeout, "request cancelled")
	default:
		h.log.Error("claim analysis failed", zap.Error(err))
		common.AppErrorResponse(c, common.NewInternalServerError("claim analysis failed"))
	}
}
