package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rcplaneboss/gradebook-api/internal/models"
	"github.com/rcplaneboss/gradebook-api/internal/service"
	appErrors "github.com/rcplaneboss/gradebook-api/pkg/errors"
	"github.com/rcplaneboss/gradebook-api/pkg/export"
	"github.com/rcplaneboss/gradebook-api/pkg/response"
)

// ReportHandler exposes term reports, annual reports, rankings and exports.
type ReportHandler struct {
	reports  *service.ReportService
	rankings *service.RankingService
	exporter *export.CSVExporter
}

// NewReportHandler constructs handler.
func NewReportHandler(reports *service.ReportService, rankings *service.RankingService, exporter *export.CSVExporter) *ReportHandler {
	if exporter == nil {
		exporter = export.NewCSVExporter()
	}
	return &ReportHandler{reports: reports, rankings: rankings, exporter: exporter}
}

// TermReport godoc
// @Summary Term report card for one student
// @Tags Reports
// @Produce json
// @Param studentId path string true "Student ID"
// @Param programId query string true "Program ID"
// @Param term query string true "Term"
// @Success 200 {object} response.Envelope
// @Router /reports/students/{studentId}/term [get]
func (h *ReportHandler) TermReport(c *gin.Context) {
	term, err := models.ParseTerm(c.Query("term"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	programID := c.Query("programId")
	if programID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "programId is required"))
		return
	}
	report, err := h.reports.BuildTermReport(c.Request.Context(), c.Param("studentId"), programID, term)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// AnnualReport godoc
// @Summary Annual report across the three terms
// @Tags Reports
// @Produce json
// @Param studentId path string true "Student ID"
// @Param programId query string true "Program ID"
// @Success 200 {object} response.Envelope
// @Router /reports/students/{studentId}/annual [get]
func (h *ReportHandler) AnnualReport(c *gin.Context) {
	programID := c.Query("programId")
	if programID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "programId is required"))
		return
	}
	report, err := h.reports.BuildAnnualReport(c.Request.Context(), c.Param("studentId"), programID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// Ranking godoc
// @Summary Class ranking for a program and term
// @Tags Reports
// @Produce json
// @Param programId path string true "Program ID"
// @Param term query string true "Term"
// @Success 200 {object} response.Envelope
// @Router /reports/programs/{programId}/ranking [get]
func (h *ReportHandler) Ranking(c *gin.Context) {
	term, err := models.ParseTerm(c.Query("term"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	ranking, err := h.rankings.RankClass(c.Request.Context(), c.Param("programId"), term)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ranking)
}

// Roster godoc
// @Summary Enrolled students of a program
// @Tags Reports
// @Produce json
// @Param programId path string true "Program ID"
// @Success 200 {object} response.Envelope
// @Router /reports/programs/{programId}/students [get]
func (h *ReportHandler) Roster(c *gin.Context) {
	students, err := h.rankings.ClassRoster(c.Request.Context(), c.Param("programId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students)
}

// GradeSheet godoc
// @Summary Download the class grade sheet as CSV
// @Tags Reports
// @Produce text/csv
// @Param programId path string true "Program ID"
// @Param term query string true "Term"
// @Success 200 {string} string "CSV content"
// @Router /reports/programs/{programId}/grade-sheet.csv [get]
func (h *ReportHandler) GradeSheet(c *gin.Context) {
	term, err := models.ParseTerm(c.Query("term"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	programID := c.Param("programId")
	dataset, err := h.reports.GradeSheet(c.Request.Context(), programID, term)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, err := h.exporter.Render(dataset)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render grade sheet"))
		return
	}
	filename := fmt.Sprintf("grade-sheet-%s-%s.csv", programID, term)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/csv", payload)
}
