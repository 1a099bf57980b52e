package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/middleware"
)

type responseEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func testContext(t *testing.T, method, target string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, nil)
	return c, rec
}

func setPrincipal(c *gin.Context, p authz.Principal) {
	c.Set(middleware.ContextPrincipalKey, p)
}

func ownerPrincipal() authz.Principal {
	return authz.Principal{UserID: "user-1", Role: authz.RoleOwner}
}

func TestSelectionRecordListRequiresPrincipal(t *testing.T) {
	handler := NewSelectionRecordHandler(nil, nil, nil, nil)

	c, rec := testContext(t, http.MethodGet, "/selection-records")
	handler.List(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSelectionRecordListRejectsBadDateFilter(t *testing.T) {
	handler := NewSelectionRecordHandler(nil, nil, nil, nil)

	c, rec := testContext(t, http.MethodGet, "/selection-records?date_from=31-12-2025")
	setPrincipal(c, ownerPrincipal())
	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	if assert.NotNil(t, envelope.Error) {
		assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
	}
}

func TestSelectionRecordBoardRequiresClassID(t *testing.T) {
	handler := NewSelectionRecordHandler(nil, nil, nil, nil)

	c, rec := testContext(t, http.MethodGet, "/selection-records/board")
	setPrincipal(c, ownerPrincipal())
	handler.Board(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelectionRecordBoardRejectsBadDate(t *testing.T) {
	handler := NewSelectionRecordHandler(nil, nil, nil, nil)

	c, rec := testContext(t, http.MethodGet, "/selection-records/board?class_id=class-1&date=not-a-date")
	setPrincipal(c, ownerPrincipal())
	handler.Board(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelectionRecordAssignRejectsMalformedPayload(t *testing.T) {
	handler := NewSelectionRecordHandler(nil, nil, nil, nil)

	c, rec := testContext(t, http.MethodPost, "/selection-records")
	c.Request.Header.Set("Content-Type", "application/json")
	setPrincipal(c, ownerPrincipal())
	handler.Assign(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
