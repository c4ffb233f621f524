package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rcplaneboss/gradebook-api/internal/models"
	"github.com/rcplaneboss/gradebook-api/internal/service"
	appErrors "github.com/rcplaneboss/gradebook-api/pkg/errors"
	"github.com/rcplaneboss/gradebook-api/pkg/response"
)

// GradeHandler exposes subject grade and question grade endpoints.
type GradeHandler struct {
	subjectGrades *service.SubjectGradeService
	grading       *service.QuestionGradingService
}

// NewGradeHandler constructs handler.
func NewGradeHandler(subjectGrades *service.SubjectGradeService, grading *service.QuestionGradingService) *GradeHandler {
	return &GradeHandler{subjectGrades: subjectGrades, grading: grading}
}

// List godoc
// @Summary List subject grades
// @Tags Grades
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param programId query string false "Filter by program"
// @Param term query string false "Filter by term"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	filter := models.SubjectGradeFilter{
		StudentID: c.Query("studentId"),
		ProgramID: c.Query("programId"),
		Term:      models.Term(c.Query("term")),
	}
	grades, err := h.subjectGrades.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades)
}

// SetComponent godoc
// @Summary Set a CA or exam component score
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.SetComponentRequest true "Component payload"
// @Success 200 {object} response.Envelope
// @Router /grades/component [put]
func (h *GradeHandler) SetComponent(c *gin.Context) {
	var req service.SetComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	grade, err := h.subjectGrades.SetComponent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade)
}

// GradeQuestion godoc
// @Summary Grade a single question of an attempt
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.UpsertQuestionGradeRequest true "Question grade payload"
// @Success 200 {object} response.Envelope
// @Router /grades/questions [put]
func (h *GradeHandler) GradeQuestion(c *gin.Context) {
	var req service.UpsertQuestionGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	grade, err := h.grading.UpsertQuestionGrade(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade)
}

// AttemptBreakdown godoc
// @Summary Question-level breakdown for an attempt
// @Tags Grades
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 200 {object} response.Envelope
// @Router /attempts/{id}/breakdown [get]
func (h *GradeHandler) AttemptBreakdown(c *gin.Context) {
	breakdown, err := h.grading.Breakdown(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, breakdown)
}

// AutoGrade godoc
// @Summary Auto-grade the scorable questions of a submitted attempt
// @Tags Grades
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 200 {object} response.Envelope
// @Router /attempts/{id}/auto-grade [post]
func (h *GradeHandler) AutoGrade(c *gin.Context) {
	graded, err := h.grading.AutoGradeAttempt(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"graded": graded})
}

// FinalizeAttempt godoc
// @Summary Roll a fully graded attempt into its subject grade component
// @Tags Grades
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 200 {object} response.Envelope
// @Router /attempts/{id}/finalize [post]
func (h *GradeHandler) FinalizeAttempt(c *gin.Context) {
	grade, err := h.grading.FinalizeAttempt(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade)
}
