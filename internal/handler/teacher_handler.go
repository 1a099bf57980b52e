package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	"github.com/kiddohub/kindergarten-admin-api/internal/service"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
	"github.com/kiddohub/kindergarten-admin-api/pkg/response"
)

// TeacherHandler exposes teacher roster endpoints.
type TeacherHandler struct {
	teachers *service.TeacherService
	imports  *service.ImportService
}

// NewTeacherHandler constructs TeacherHandler.
func NewTeacherHandler(teachers *service.TeacherService, imports *service.ImportService) *TeacherHandler {
	return &TeacherHandler{teachers: teachers, imports: imports}
}

// List godoc
// @Summary List teachers
// @Tags Teachers
// @Produce json
// @Param organization_id query string false "Filter by organization"
// @Param position query string false "Filter by position"
// @Param active query bool false "Filter by active state"
// @Param search query string false "Search by name or phone"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *TeacherHandler) List(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.TeacherFilter
	filter.OrganizationID = c.Query("organization_id")
	filter.Position = c.Query("position")
	filter.Active = queryBool(c, "active")
	filter.Search = c.Query("search")
	filter.Page, filter.PageSize = queryPage(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	teachers, pagination, err := h.teachers.List(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, pagination)
}

// Get godoc
// @Summary Get teacher detail
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [get]
func (h *TeacherHandler) Get(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	teacher, err := h.teachers.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Create godoc
// @Summary Create teacher
// @Tags Teachers
// @Accept json
// @Produce json
// @Param payload body service.CreateTeacherRequest true "Teacher payload"
// @Success 201 {object} response.Envelope
// @Router /teachers [post]
func (h *TeacherHandler) Create(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	teacher, err := h.teachers.Create(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, teacher)
}

// Update godoc
// @Summary Update teacher
// @Tags Teachers
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body service.UpdateTeacherRequest true "Teacher payload"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [put]
func (h *TeacherHandler) Update(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	teacher, err := h.teachers.Update(c.Request.Context(), p, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// AssignClasses godoc
// @Summary Replace a teacher's class assignments
// @Tags Teachers
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/classes [put]
func (h *TeacherHandler) AssignClasses(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload struct {
		ClassIDs []string `json:"class_ids"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	teacher, err := h.teachers.AssignClasses(c.Request.Context(), p, c.Param("id"), payload.ClassIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Delete godoc
// @Summary Deactivate teacher
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 204
// @Router /teachers/{id} [delete]
func (h *TeacherHandler) Delete(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.teachers.Deactivate(c.Request.Context(), p, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetActive godoc
// @Summary Toggle a teacher's employment status
// @Description Deactivation clears the teaching-class assignments
// @Tags Teachers
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 204
// @Router /teachers/{id}/active [patch]
func (h *TeacherHandler) SetActive(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "active flag required"))
		return
	}
	if err := h.teachers.SetActive(c.Request.Context(), p, c.Param("id"), *payload.Active); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Download the teacher roster as CSV
// @Description Same scope and filters as the listing
// @Tags Teachers
// @Produce text/csv
// @Param organization_id query string false "Filter by organization"
// @Param position query string false "Filter by position"
// @Param active query bool false "Filter by active state"
// @Param search query string false "Search by name or phone"
// @Success 200
// @Router /teachers/export [get]
func (h *TeacherHandler) Export(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.TeacherFilter
	filter.OrganizationID = c.Query("organization_id")
	filter.Position = c.Query("position")
	filter.Active = queryBool(c, "active")
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	payload, err := h.teachers.ExportCSV(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveCSV(c, "teachers_"+time.Now().UTC().Format("2006-01-02")+".csv", payload)
}

// ImportTemplate godoc
// @Summary Download the teacher import CSV template
// @Tags Teachers
// @Produce text/csv
// @Success 200
// @Router /teachers/import/template [get]
func (h *TeacherHandler) ImportTemplate(c *gin.Context) {
	payload, err := h.imports.Template("teachers")
	if err != nil {
		response.Error(c, err)
		return
	}
	serveCSV(c, "teachers_import_template.csv", payload)
}

// Import godoc
// @Summary Import teachers from CSV
// @Description All rows must be valid; one bad row rejects the whole file
// @Tags Teachers
// @Accept multipart/form-data
// @Produce json
// @Param organization_id query string true "Organization"
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Router /teachers/import [post]
func (h *TeacherHandler) Import(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	orgID := c.Query("organization_id")
	if orgID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "organization_id is required"))
		return
	}
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	defer file.Close()

	result, err := h.imports.ImportTeachers(c.Request.Context(), p, orgID, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
