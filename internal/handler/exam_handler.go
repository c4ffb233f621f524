package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rcplaneboss/gradebook-api/internal/service"
	appErrors "github.com/rcplaneboss/gradebook-api/pkg/errors"
	"github.com/rcplaneboss/gradebook-api/pkg/response"
)

// ExamHandler exposes assessment management endpoints.
type ExamHandler struct {
	exams *service.ExamService
}

// NewExamHandler constructs handler.
func NewExamHandler(exams *service.ExamService) *ExamHandler {
	return &ExamHandler{exams: exams}
}

// Create godoc
// @Summary Create an assessment
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body service.CreateExamRequest true "Exam payload"
// @Success 201 {object} response.Envelope
// @Router /exams [post]
func (h *ExamHandler) Create(c *gin.Context) {
	var req service.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	exam, err := h.exams.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exam)
}

// List godoc
// @Summary List assessments
// @Tags Exams
// @Produce json
// @Param programId query string false "Program ID"
// @Param term query string false "Term"
// @Success 200 {object} response.Envelope
// @Router /exams [get]
func (h *ExamHandler) List(c *gin.Context) {
	exams, err := h.exams.List(c.Request.Context(), c.Query("programId"), c.Query("term"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exams)
}

// ReplaceQuestions godoc
// @Summary Replace the question set of an assessment
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body service.ReplaceQuestionsRequest true "Questions payload"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/questions [put]
func (h *ExamHandler) ReplaceQuestions(c *gin.Context) {
	var req service.ReplaceQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	questions, err := h.exams.ReplaceQuestions(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, questions)
}

// Publish godoc
// @Summary Publish an assessment to students
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/publish [post]
func (h *ExamHandler) Publish(c *gin.Context) {
	if err := h.exams.Publish(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"status": "published"})
}

// Payload godoc
// @Summary Student-facing exam payload without answer keys
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/payload [get]
func (h *ExamHandler) Payload(c *gin.Context) {
	payload, err := h.exams.Payload(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payload)
}
