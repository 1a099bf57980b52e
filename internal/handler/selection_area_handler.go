package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	"github.com/kiddohub/kindergarten-admin-api/internal/service"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
	"github.com/kiddohub/kindergarten-admin-api/pkg/response"
)

// SelectionAreaHandler exposes activity-area endpoints.
type SelectionAreaHandler struct {
	areas *service.SelectionAreaService
	media *service.MediaService
}

// NewSelectionAreaHandler constructs SelectionAreaHandler.
func NewSelectionAreaHandler(areas *service.SelectionAreaService, media *service.MediaService) *SelectionAreaHandler {
	return &SelectionAreaHandler{areas: areas, media: media}
}

// List godoc
// @Summary List selection areas
// @Tags SelectionAreas
// @Produce json
// @Param class_id query string false "Filter by class"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /selection-areas [get]
func (h *SelectionAreaHandler) List(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.SelectionAreaFilter
	filter.ClassID = c.Query("class_id")
	filter.Search = c.Query("search")
	filter.Page, filter.PageSize = queryPage(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	areas, pagination, err := h.areas.List(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, areas, pagination)
}

// Get godoc
// @Summary Get selection area detail
// @Tags SelectionAreas
// @Produce json
// @Param id path string true "Area ID"
// @Success 200 {object} response.Envelope
// @Router /selection-areas/{id} [get]
func (h *SelectionAreaHandler) Get(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	area, err := h.areas.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, area, nil)
}

// Create godoc
// @Summary Create selection area
// @Tags SelectionAreas
// @Accept json
// @Produce json
// @Param payload body service.CreateSelectionAreaRequest true "Area payload"
// @Success 201 {object} response.Envelope
// @Router /selection-areas [post]
func (h *SelectionAreaHandler) Create(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateSelectionAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	area, err := h.areas.Create(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, area)
}

// Update godoc
// @Summary Update selection area
// @Tags SelectionAreas
// @Accept json
// @Produce json
// @Param id path string true "Area ID"
// @Param payload body service.UpdateSelectionAreaRequest true "Area payload"
// @Success 200 {object} response.Envelope
// @Router /selection-areas/{id} [put]
func (h *SelectionAreaHandler) Update(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateSelectionAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	area, err := h.areas.Update(c.Request.Context(), p, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, area, nil)
}

// Delete godoc
// @Summary Delete selection area
// @Description Selection history recorded against the area goes with it
// @Tags SelectionAreas
// @Produce json
// @Param id path string true "Area ID"
// @Success 204
// @Router /selection-areas/{id} [delete]
func (h *SelectionAreaHandler) Delete(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.areas.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadImage godoc
// @Summary Upload area illustration
// @Tags SelectionAreas
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Area ID"
// @Param file formData file true "Image file"
// @Success 200 {object} response.Envelope
// @Router /selection-areas/{id}/image [post]
func (h *SelectionAreaHandler) UploadImage(c *gin.Context) {
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

	stored, err := h.media.UploadAreaImage(c.Request.Context(), p, c.Param("id"), header.Filename, header.Size, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"image_path": stored}, nil)
}

// Image godoc
// @Summary Download area illustration
// @Tags SelectionAreas
// @Produce octet-stream
// @Param id path string true "Area ID"
// @Success 200 {file} binary
// @Router /selection-areas/{id}/image [get]
func (h *SelectionAreaHandler) Image(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	area, err := h.areas.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if area.ImagePath == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "area has no image"))
		return
	}
	serveMediaFile(c, h.media, *area.ImagePath)
}

// DeleteImage godoc
// @Summary Remove area illustration
// @Tags SelectionAreas
// @Produce json
// @Param id path string true "Area ID"
// @Success 204
// @Router /selection-areas/{id}/image [delete]
func (h *SelectionAreaHandler) DeleteImage(c *gin.Context) {
	p, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.media.DeleteAreaImage(c.Request.Context(), p, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
