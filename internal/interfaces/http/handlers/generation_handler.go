package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stylize.backend/internal/domain/entities"
	domainerrors "stylize.backend/internal/domain/errors"
	"stylize.backend/internal/interfaces/http/middleware"
	"stylize.backend/internal/interfaces/http/response"
	"stylize.backend/internal/usecases"
)

type GenerationService interface {
	CreateQuote(ctx context.Context, input usecases.CreateQuoteInput) (*usecases.CreateQuoteOutput, error)
	SubmitPayment(ctx context.Context, input usecases.SubmitPaymentInput) (*usecases.SubmitPaymentOutput, error)
	GetRequest(ctx context.Context, quoteID, ownerID string) (*entities.GenerationRequest, error)
	ListJobs(ctx context.Context, ownerID string, limit, offset int) ([]*entities.GenerationRequest, int, error)
	ListImages(ctx context.Context, ownerID string, limit, offset int) ([]*entities.GenerationRequest, int, error)
	ResetPaymentError(ctx context.Context, quoteID string) error
}

// GenerationHandler handles quote, payment and gallery endpoints
type GenerationHandler struct {
	generationUsecase GenerationService
}

// NewGenerationHandler creates a new generation handler
func NewGenerationHandler(generationUsecase GenerationService) *GenerationHandler {
	return &GenerationHandler{generationUsecase: generationUsecase}
}

type createQuoteRequest struct {
	Prompt         string `json:"prompt" binding:"required"`
	SourceImageURL string `json:"sourceImageUrl" binding:"required,url"`
}

// CreateQuote issues a payment quote for a stylization request
// POST /api/v1/generate
func (h *GenerationHandler) CreateQuote(c *gin.Context) {
	var req createQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("not authenticated"))
		return
	}

	out, err := h.generationUsecase.CreateQuote(c.Request.Context(), usecases.CreateQuoteInput{
		OwnerID:        ownerID,
		Prompt:         req.Prompt,
		SourceImageURL: req.SourceImageURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, out)
}

type submitPaymentRequest struct {
	QuoteID string `json:"quoteId" binding:"required"`
	TxHash  string `json:"transactionHash" binding:"required"`
}

// SubmitPayment verifies a payment proof and admits the stylize job
// POST /api/v1/generate/payment
func (h *GenerationHandler) SubmitPayment(c *gin.Context) {
	var req submitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("not authenticated"))
		return
	}

	out, err := h.generationUsecase.SubmitPayment(c.Request.Context(), usecases.SubmitPaymentInput{
		QuoteID: req.QuoteID,
		TxHash:  req.TxHash,
		OwnerID: ownerID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, out)
}

// GetGeneration returns the caller's request by quote id
// GET /api/v1/generations/:quoteId
func (h *GenerationHandler) GetGeneration(c *gin.Context) {
	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("not authenticated"))
		return
	}

	req, err := h.generationUsecase.GetRequest(c.Request.Context(), c.Param("quoteId"), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"request": req})
}

// ListJobs returns the caller's in-progress requests
// GET /api/v1/jobs
func (h *GenerationHandler) ListJobs(c *gin.Context) {
	h.list(c, h.generationUsecase.ListJobs, "jobs")
}

// ListImages returns the caller's completed requests
// GET /api/v1/images
func (h *GenerationHandler) ListImages(c *gin.Context) {
	h.list(c, h.generationUsecase.ListImages, "images")
}

func (h *GenerationHandler) list(
	c *gin.Context,
	fetch func(ctx context.Context, ownerID string, limit, offset int) ([]*entities.GenerationRequest, int, error),
	field string,
) {
	ownerID, ok := middleware.GetOwnerID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("not authenticated"))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	items, total, err := fetch(c.Request.Context(), ownerID, limit, (page-1)*limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		field:   items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// ResetPaymentError moves a payment_error request back to pending_payment
// POST /api/v1/admin/generations/:quoteId/reset
func (h *GenerationHandler) ResetPaymentError(c *gin.Context) {
	quoteID := c.Param("quoteId")
	if quoteID == "" {
		response.Error(c, domainerrors.BadRequest("quoteId is required"))
		return
	}

	if err := h.generationUsecase.ResetPaymentError(c.Request.Context(), quoteID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"quoteId": quoteID,
		"status":  entities.GenerationStatusPendingPayment,
	})
}
