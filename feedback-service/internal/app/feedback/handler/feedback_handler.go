package handler

import (
	"context"
	"net/http"
	"strconv"

	"safescore/feedback-service/internal/app/feedback/entity"
	"safescore/feedback-service/internal/app/feedback/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type FeedbackServiceInterface interface {
	Submit(ctx context.Context, req *entity.SubmitFeedbackRequest) (*entity.SubmitFeedbackResponse, error)
}

type AggregationServiceInterface interface {
	LocationSummary(ctx context.Context, lat, lon, radiusMeters float64) (*entity.FeedbackSummary, error)
	CollectionProgress(ctx context.Context, lat, lon, radiusMeters float64) (*entity.CollectionProgress, error)
}

type FeedbackHandler struct {
	feedbackService FeedbackServiceInterface
	aggregation     AggregationServiceInterface
	validator       *validator.Validate
}

func NewFeedbackHandler(feedbackService FeedbackServiceInterface, aggregation AggregationServiceInterface) *FeedbackHandler {
	return &FeedbackHandler{
		feedbackService: feedbackService,
		aggregation:     aggregation,
		validator:       validator.New(),
	}
}

// SubmitFeedback обрабатывает POST /feedback
func (h *FeedbackHandler) SubmitFeedback(c *gin.Context) {
	var req entity.SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: formatValidationError(err)})
		return
	}

	response, err := h.feedbackService.Submit(c.Request.Context(), &req)
	if err != nil {
		if ve, ok := service.IsValidationError(err); ok {
			c.JSON(http.StatusBadRequest, entity.ErrorResponse{
				Error:   "Validation failed",
				Details: ve.Reasons,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Error: "Failed to submit feedback"})
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetLocationSummary обрабатывает GET /feedback/location-summary
func (h *FeedbackHandler) GetLocationSummary(c *gin.Context) {
	lat, lon, radius, ok := parseLocationQuery(c)
	if !ok {
		return
	}

	summary, err := h.aggregation.LocationSummary(c.Request.Context(), lat, lon, radius)
	if err != nil {
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Error: "Failed to get location summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetCollectionProgress обрабатывает GET /feedback/collection-progress
func (h *FeedbackHandler) GetCollectionProgress(c *gin.Context) {
	lat, lon, radius, ok := parseLocationQuery(c)
	if !ok {
		return
	}

	progress, err := h.aggregation.CollectionProgress(c.Request.Context(), lat, lon, radius)
	if err != nil {
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Error: "Failed to get collection progress"})
		return
	}

	c.JSON(http.StatusOK, progress)
}

// parseLocationQuery извлекает lat/lon/radius из query-параметров.
// При ошибке пишет 400 в ответ и возвращает ok=false
func parseLocationQuery(c *gin.Context) (lat, lon, radius float64, ok bool) {
	latStr := c.Query("lat")
	lonStr := c.Query("lon")
	if latStr == "" || lonStr == "" {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "lat and lon query parameters are required"})
		return 0, 0, 0, false
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "lat must be a number between -90 and 90"})
		return 0, 0, 0, false
	}

	lon, err = strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "lon must be a number between -180 and 180"})
		return 0, 0, 0, false
	}

	if radiusStr := c.Query("radius"); radiusStr != "" {
		radius, err = strconv.ParseFloat(radiusStr, 64)
		if err != nil || radius <= 0 || radius > 10000 {
			c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "radius must be a number between 0 and 10000"})
			return 0, 0, 0, false
		}
	}

	return lat, lon, radius, true
}

func formatValidationError(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			return fieldError.Field() + " is " + fieldError.Tag()
		}
	}
	return "Validation failed"
}
