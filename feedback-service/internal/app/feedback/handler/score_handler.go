package handler

import (
	"context"
	"net/http"

	"safescore/feedback-service/internal/app/feedback/entity"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type ScoringServiceInterface interface {
	ScoreWithFeedback(ctx context.Context, req *entity.ScoreRequest) (*entity.ScoreResponse, error)
	Weights() map[string]float64
}

type ScoreHandler struct {
	scoringService ScoringServiceInterface
	validator      *validator.Validate
}

func NewScoreHandler(scoringService ScoringServiceInterface) *ScoreHandler {
	return &ScoreHandler{
		scoringService: scoringService,
		validator:      validator.New(),
	}
}

// ComputeScore обрабатывает POST /score
func (h *ScoreHandler) ComputeScore(c *gin.Context) {
	var req entity.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.Latitude == nil || req.Longitude == nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "latitude and longitude are required"})
		return
	}

	if *req.Latitude < -90 || *req.Latitude > 90 || *req.Longitude < -180 || *req.Longitude > 180 {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: "Coordinates are out of range"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, entity.ErrorResponse{Error: formatValidationError(err)})
		return
	}

	response, err := h.scoringService.ScoreWithFeedback(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, entity.ErrorResponse{Error: "Failed to compute score"})
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetWeights обрабатывает GET /score/weights
func (h *ScoreHandler) GetWeights(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"weights": h.scoringService.Weights()})
}
