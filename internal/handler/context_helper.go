package handler

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/middleware"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	"github.com/kiddohub/kindergarten-admin-api/internal/service"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
	"github.com/kiddohub/kindergarten-admin-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func principalFromContext(c *gin.Context) (authz.Principal, bool) {
	value, exists := c.Get(middleware.ContextPrincipalKey)
	if !exists {
		return authz.Principal{}, false
	}
	p, ok := value.(authz.Principal)
	return p, ok
}

func queryBool(c *gin.Context, name string) *bool {
	switch c.Query(name) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	}
	return nil
}

func queryPage(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, size
}

func serveCSV(c *gin.Context, filename string, payload []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", payload)
}

func serveMediaFile(c *gin.Context, media *service.MediaService, storedPath string) {
	file, err := media.Open(storedPath)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	contentType := mime.TypeByExtension(filepath.Ext(storedPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
