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

// OrganizationHandler exposes organization endpoints.
type OrganizationHandler struct {
	orgs    *service.OrganizationService
	imports *service.ImportService
}

// NewOrganizationHandler constructs OrganizationHandler.
func NewOrganizationHandler(orgs *service.OrganizationService, imports *service.ImportService) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs, imports: imports}
}

// List godoc
// @Summary List organizations
// @Tags Organizations
// @Produce json
// @Param search query string false "Search by name"
// @Param org_type query string false "Filter by type"
// @Param active query bool false "Filter by active state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /organizations [get]
func (h *OrganizationHandler) List(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.OrganizationFilter
	filter.Search = c.Query("search")
	filter.OrgType = c.Query("org_type")
	filter.Region = c.Query("region")
	filter.Active = queryBool(c, "active")
	filter.Page, filter.PageSize = queryPage(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	orgs, pagination, err := h.orgs.List(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orgs, pagination)
}

// Get godoc
// @Summary Get organization detail
// @Tags Organizations
// @Produce json
// @Param id path string true "Organization ID"
// @Success 200 {object} response.Envelope
// @Router /organizations/{id} [get]
func (h *OrganizationHandler) Get(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	org, err := h.orgs.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, org, nil)
}

// Create godoc
// @Summary Create organization
// @Tags Organizations
// @Accept json
// @Produce json
// @Param payload body service.CreateOrganizationRequest true "Organization payload"
// @Success 201 {object} response.Envelope
// @Router /organizations [post]
func (h *OrganizationHandler) Create(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	org, err := h.orgs.Create(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, org)
}

// Update godoc
// @Summary Update organization
// @Tags Organizations
// @Accept json
// @Produce json
// @Param id path string true "Organization ID"
// @Param payload body service.UpdateOrganizationRequest true "Organization payload"
// @Success 200 {object} response.Envelope
// @Router /organizations/{id} [put]
func (h *OrganizationHandler) Update(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	org, err := h.orgs.Update(c.Request.Context(), p, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, org, nil)
}

// SetActive godoc
// @Summary Activate or deactivate an organization
// @Tags Organizations
// @Accept json
// @Produce json
// @Param id path string true "Organization ID"
// @Success 204
// @Router /organizations/{id}/active [patch]
func (h *OrganizationHandler) SetActive(c *gin.Context) {
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
	if err := h.orgs.SetActive(c.Request.Context(), p, c.Param("id"), *payload.Active); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete organization
// @Description Classes cascade; children in them are declassed, not removed
// @Tags Organizations
// @Produce json
// @Param id path string true "Organization ID"
// @Success 204
// @Router /organizations/{id} [delete]
func (h *OrganizationHandler) Delete(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.orgs.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Download the organization listing as CSV
// @Description Same scope and filters as the listing, counts included
// @Tags Organizations
// @Produce text/csv
// @Param search query string false "Search by name"
// @Param org_type query string false "Filter by type"
// @Param active query bool false "Filter by active state"
// @Success 200
// @Router /organizations/export [get]
func (h *OrganizationHandler) Export(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.OrganizationFilter
	filter.Search = c.Query("search")
	filter.OrgType = c.Query("org_type")
	filter.Region = c.Query("region")
	filter.Active = queryBool(c, "active")
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	payload, err := h.orgs.ExportCSV(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveCSV(c, "organizations_"+time.Now().UTC().Format("2006-01-02")+".csv", payload)
}

// ImportTemplate godoc
// @Summary Download the organization import CSV template
// @Tags Organizations
// @Produce text/csv
// @Success 200
// @Router /organizations/import/template [get]
func (h *OrganizationHandler) ImportTemplate(c *gin.Context) {
	payload, err := h.imports.Template("organizations")
	if err != nil {
		response.Error(c, err)
		return
	}
	serveCSV(c, "organizations_import_template.csv", payload)
}

// Import godoc
// @Summary Import organizations from CSV
// @Tags Organizations
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Router /organizations/import [post]
func (h *OrganizationHandler) Import(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	defer file.Close()

	result, err := h.imports.ImportOrganizations(c.Request.Context(), p, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
