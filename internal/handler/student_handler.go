package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stfrancis-sis/enrollment-api/internal/models"
	"github.com/stfrancis-sis/enrollment-api/internal/service"
	"github.com/stfrancis-sis/enrollment-api/pkg/response"
)

// StudentHandler exposes student, guardian and period read endpoints.
type StudentHandler struct {
	students *service.StudentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students *service.StudentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param guardianId query string false "Filter by guardian"
// @Param gradeLevel query string false "Filter by grade level"
// @Param active query bool false "Filter by active flag"
// @Param search query string false "Name or LRN search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	var filter models.StudentFilter
	filter.GuardianID = c.Query("guardianId")
	filter.GradeLevel = models.GradeLevel(c.Query("gradeLevel"))
	if raw := c.Query("active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filter.Active = &active
		}
	}
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Guardian godoc
// @Summary Get guardian
// @Tags Students
// @Produce json
// @Param id path string true "Guardian ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /guardians/{id} [get]
func (h *StudentHandler) Guardian(c *gin.Context) {
	guardian, err := h.students.Guardian(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, guardian, nil)
}

// Periods godoc
// @Summary List enrollment periods
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods [get]
func (h *StudentHandler) Periods(c *gin.Context) {
	periods, err := h.students.Periods(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}

// ActivePeriod godoc
// @Summary Get the active enrollment period
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods/active [get]
func (h *StudentHandler) ActivePeriod(c *gin.Context) {
	period, err := h.students.ActivePeriod(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}
