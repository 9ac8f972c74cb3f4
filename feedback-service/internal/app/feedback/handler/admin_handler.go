package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"safescore/feedback-service/internal/app/feedback/entity"
	"safescore/feedback-service/internal/app/feedback/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type AdminServiceInterface interface {
	Approve(ctx context.Context, id uint, adminID string) (*entity.Feedback, error)
	Reject(ctx context.Context, id uint, adminID, reason string) (*entity.Feedback, error)
	PendingFeedback(ctx context.Context, limit int) ([]entity.Feedback, error)
	Statistics(ctx context.Context) (*entity.FeedbackStatistics, error)
}

type AdminHandler struct {
	feedbackService AdminServiceInterface
	validator       *validator.Validate
}

func NewAdminHandler(feedbackService AdminServiceInterface) *AdminHandler {
	return &AdminHandler{
		feedbackService: feedbackService,
		validator:       validator.New(),
	}
}

// GetPendingFeedback обрабатывает GET /admin/feedback/pending
func (h *AdminHandler) GetPendingFeedback(c *gin.Context) {
	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "limit must be a positive number"})
			return
		}
		limit = parsed
	}

	feedbacks, err := h.feedbackService.PendingFeedback(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Error: "Failed to get pending feedback"})
		return
	}

	c.JSON(http.StatusOK, entity.FeedbackListResponse{
		Feedbacks: feedbacks,
		Total:     len(feedbacks),
	})
}

// ApproveFeedback обрабатывает POST /admin/feedback/:id/approve
func (h *AdminHandler) ApproveFeedback(c *gin.Context) {
	id, ok := parseFeedbackID(c)
	if !ok {
		return
	}

	adminID, ok := adminIDFromContext(c)
	if !ok {
		return
	}

	feedback, err := h.feedbackService.Approve(c.Request.Context(), id, adminID)
	if err != nil {
		writeDecisionError(c, err, "Failed to approve feedback")
		return
	}

	c.JSON(http.StatusOK, entity.SuccessResponse{
		Message: "Feedback approved",
		Data:    feedback,
	})
}

// RejectFeedback обрабатывает POST /admin/feedback/:id/reject
func (h *AdminHandler) RejectFeedback(c *gin.Context) {
	id, ok := parseFeedbackID(c)
	if !ok {
		return
	}

	adminID, ok := adminIDFromContext(c)
	if !ok {
		return
	}

	var req entity.RejectFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: formatValidationError(err)})
		return
	}

	feedback, err := h.feedbackService.Reject(c.Request.Context(), id, adminID, req.Reason)
	if err != nil {
		writeDecisionError(c, err, "Failed to reject feedback")
		return
	}

	c.JSON(http.StatusOK, entity.SuccessResponse{
		Message: "Feedback rejected",
		Data:    feedback,
	})
}

// GetStatistics обрабатывает GET /admin/feedback/statistics
func (h *AdminHandler) GetStatistics(c *gin.Context) {
	stats, err := h.feedbackService.Statistics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Error: "Failed to get statistics"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func parseFeedbackID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Invalid feedback ID"})
		return 0, false
	}
	return uint(id), true
}

func adminIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, entity.ErrorResponse{Error: "Unauthorized"})
		return "", false
	}

	userIDStr, ok := userID.(string)
	if !ok {
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Error: "Invalid user ID"})
		return "", false
	}
	return userIDStr, true
}

func writeDecisionError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrFeedbackNotFound):
		c.JSON(http.StatusNotFound, entity.ErrorResponse{Error: "Feedback not found"})
	case errors.Is(err, service.ErrConflictingDecision):
		c.JSON(http.StatusConflict, entity.ErrorResponse{Error: "Feedback already has a conflicting decision"})
	default:
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Error: fallback})
	}
}
