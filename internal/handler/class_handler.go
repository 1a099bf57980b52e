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

// ClassHandler exposes class endpoints.
type ClassHandler struct {
	classes *service.ClassService
	imports *service.ImportService
}

// NewClassHandler constructs ClassHandler.
func NewClassHandler(classes *service.ClassService, imports *service.ImportService) *ClassHandler {
	return &ClassHandler{classes: classes, imports: imports}
}

// List godoc
// @Summary List classes
// @Tags Classes
// @Produce json
// @Param organization_id query string false "Filter by organization"
// @Param class_type query string false "Filter by class type"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.ClassFilter
	filter.OrganizationID = c.Query("organization_id")
	filter.ClassType = c.Query("class_type")
	filter.Search = c.Query("search")
	filter.Page, filter.PageSize = queryPage(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	classes, pagination, err := h.classes.List(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, pagination)
}

// Get godoc
// @Summary Get class detail
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	class, err := h.classes.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.classes.Create(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.UpdateClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.classes.Update(c.Request.Context(), p, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Delete godoc
// @Summary Delete class
// @Description Children are declassed, areas and their records removed
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 204
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.classes.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Import godoc
// @Summary Import classes from CSV
// @Tags Classes
// @Accept multipart/form-data
// @Produce json
// @Param organization_id query string true "Organization"
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Router /classes/import [post]
func (h *ClassHandler) Import(c *gin.Context) {
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

	result, err := h.imports.ImportClasses(c.Request.Context(), p, orgID, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ImportTemplate godoc
// @Summary Download the class import CSV template
// @Tags Classes
// @Produce text/csv
// @Success 200
// @Router /classes/import/template [get]
func (h *ClassHandler) ImportTemplate(c *gin.Context) {
	payload, err := h.imports.Template("classes")
	if err != nil {
		response.Error(c, err)
		return
	}
	serveCSV(c, "classes_import_template.csv", payload)
}

// Export godoc
// @Summary Download the class listing as CSV
// @Description Same scope and filters as the listing
// @Tags Classes
// @Produce text/csv
// @Param organization_id query string false "Filter by organization"
// @Param class_type query string false "Filter by class type"
// @Param search query string false "Search by name"
// @Success 200
// @Router /classes/export [get]
func (h *ClassHandler) Export(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.ClassFilter
	filter.OrganizationID = c.Query("organization_id")
	filter.ClassType = c.Query("class_type")
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	payload, err := h.classes.ExportCSV(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveCSV(c, "classes_"+time.Now().UTC().Format("2006-01-02")+".csv", payload)
}
