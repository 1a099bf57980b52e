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

// ChildHandler exposes child endpoints.
type ChildHandler struct {
	children *service.ChildService
	imports  *service.ImportService
	media    *service.MediaService
}

// NewChildHandler constructs ChildHandler.
func NewChildHandler(children *service.ChildService, imports *service.ImportService, media *service.MediaService) *ChildHandler {
	return &ChildHandler{children: children, imports: imports, media: media}
}

// List godoc
// @Summary List children
// @Tags Children
// @Produce json
// @Param search query string false "Search by name or student ID"
// @Param class_id query string false "Filter by class"
// @Param active query bool false "Filter by active state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /children [get]
func (h *ChildHandler) List(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.ChildFilter
	filter.Search = c.Query("search")
	filter.ClassID = c.Query("class_id")
	filter.Active = queryBool(c, "active")
	filter.Page, filter.PageSize = queryPage(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	children, pagination, err := h.children.List(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, children, pagination)
}

// Get godoc
// @Summary Get child detail
// @Tags Children
// @Produce json
// @Param id path string true "Child ID"
// @Success 200 {object} response.Envelope
// @Router /children/{id} [get]
func (h *ChildHandler) Get(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	child, err := h.children.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, child, nil)
}

// Create godoc
// @Summary Enroll child
// @Tags Children
// @Accept json
// @Produce json
// @Param payload body service.CreateChildRequest true "Child payload"
// @Success 201 {object} response.Envelope
// @Router /children [post]
func (h *ChildHandler) Create(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateChildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	child, err := h.children.Create(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, child)
}

// Update godoc
// @Summary Update child
// @Tags Children
// @Accept json
// @Produce json
// @Param id path string true "Child ID"
// @Param payload body service.UpdateChildRequest true "Child payload"
// @Success 200 {object} response.Envelope
// @Router /children/{id} [put]
func (h *ChildHandler) Update(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateChildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	child, err := h.children.Update(c.Request.Context(), p, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, child, nil)
}

// Delete godoc
// @Summary Withdraw child
// @Tags Children
// @Produce json
// @Param id path string true "Child ID"
// @Success 204
// @Router /children/{id} [delete]
func (h *ChildHandler) Delete(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.children.Deactivate(c.Request.Context(), p, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadAvatar godoc
// @Summary Upload child avatar
// @Tags Children
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Child ID"
// @Param file formData file true "Image file"
// @Success 200 {object} response.Envelope
// @Router /children/{id}/avatar [post]
func (h *ChildHandler) UploadAvatar(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	defer file.Close()

	stored, err := h.media.UploadChildAvatar(c.Request.Context(), p, c.Param("id"), header.Filename, header.Size, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"avatar_path": stored}, nil)
}

// Avatar godoc
// @Summary Download child avatar
// @Tags Children
// @Produce octet-stream
// @Param id path string true "Child ID"
// @Success 200 {file} binary
// @Router /children/{id}/avatar [get]
func (h *ChildHandler) Avatar(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	child, err := h.children.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if child.AvatarPath == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "child has no avatar"))
		return
	}
	serveMediaFile(c, h.media, *child.AvatarPath)
}

// DeleteAvatar godoc
// @Summary Remove child avatar
// @Tags Children
// @Produce json
// @Param id path string true "Child ID"
// @Success 204
// @Router /children/{id}/avatar [delete]
func (h *ChildHandler) DeleteAvatar(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.media.DeleteChildAvatar(c.Request.Context(), p, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetActive godoc
// @Summary Toggle a child's enrollment status
// @Tags Children
// @Accept json
// @Produce json
// @Param id path string true "Child ID"
// @Success 204
// @Router /children/{id}/active [patch]
func (h *ChildHandler) SetActive(c *gin.Context) {
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
	if err := h.children.SetActive(c.Request.Context(), p, c.Param("id"), *payload.Active); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Download the child roster as CSV
// @Description Same scope and filters as the listing
// @Tags Children
// @Produce text/csv
// @Param search query string false "Search by name or student ID"
// @Param class_id query string false "Filter by class"
// @Param active query bool false "Filter by active state"
// @Success 200
// @Router /children/export [get]
func (h *ChildHandler) Export(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.ChildFilter
	filter.Search = c.Query("search")
	filter.ClassID = c.Query("class_id")
	filter.Active = queryBool(c, "active")
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	payload, err := h.children.ExportCSV(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveCSV(c, "children_"+time.Now().UTC().Format("2006-01-02")+".csv", payload)
}

// ImportTemplate godoc
// @Summary Download the child import CSV template
// @Tags Children
// @Produce text/csv
// @Success 200
// @Router /children/import/template [get]
func (h *ChildHandler) ImportTemplate(c *gin.Context) {
	payload, err := h.imports.Template("children")
	if err != nil {
		response.Error(c, err)
		return
	}
	serveCSV(c, "children_import_template.csv", payload)
}

// Import godoc
// @Summary Import children from CSV
// @Tags Children
// @Accept multipart/form-data
// @Produce json
// @Param organization_id query string true "Organization"
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Router /children/import [post]
func (h *ChildHandler) Import(c *gin.Context) {
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

	result, err := h.imports.ImportChildren(c.Request.Context(), p, orgID, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
