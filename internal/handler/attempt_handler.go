package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rcplaneboss/gradebook-api/internal/models"
	"github.com/rcplaneboss/gradebook-api/internal/service"
	appErrors "github.com/rcplaneboss/gradebook-api/pkg/errors"
	"github.com/rcplaneboss/gradebook-api/pkg/response"
)

// AttemptHandler exposes the exam attempt lifecycle.
type AttemptHandler struct {
	attempts *service.AttemptService
}

// NewAttemptHandler constructs handler.
func NewAttemptHandler(attempts *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attempts: attempts}
}

// Start godoc
// @Summary Start an attempt on a published exam
// @Tags Attempts
// @Accept json
// @Produce json
// @Param payload body service.StartAttemptRequest true "Attempt payload"
// @Success 201 {object} response.Envelope
// @Router /attempts [post]
func (h *AttemptHandler) Start(c *gin.Context) {
	var req service.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		req.StudentID = claims.UserID
	}
	attempt, err := h.attempts.Start(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, attempt)
}

// Submit godoc
// @Summary Submit an attempt, freezing its answers
// @Tags Attempts
// @Accept json
// @Produce json
// @Param id path string true "Attempt ID"
// @Param payload body service.SubmitAttemptRequest true "Answers payload"
// @Success 200 {object} response.Envelope
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) Submit(c *gin.Context) {
	var req service.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	attempt, err := h.attempts.Submit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attempt)
}

// TabSwitch godoc
// @Summary Record a tab switch on an open attempt
// @Tags Attempts
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 200 {object} response.Envelope
// @Router /attempts/{id}/tab-switch [post]
func (h *AttemptHandler) TabSwitch(c *gin.Context) {
	count, err := h.attempts.RecordTabSwitch(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"tab_switch_count": count})
}
