package service

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
)

type mockMediaFiles struct {
	saved   map[string][]byte
	deleted []string
}

func (m *mockMediaFiles) SaveStream(filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = data
	return filename, nil
}

func (m *mockMediaFiles) Open(filename string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func (m *mockMediaFiles) Delete(filename string) error {
	m.deleted = append(m.deleted, filename)
	return nil
}

type mockMediaChildAccess struct {
	children map[string]*models.ChildDetail
}

func (m *mockMediaChildAccess) Get(ctx context.Context, p authz.Principal, id string) (*models.ChildDetail, error) {
	child, ok := m.children[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
	}
	return child, nil
}

type mockMediaChildWriter struct {
	paths map[string]*string
}

func (m *mockMediaChildWriter) SetAvatarPath(ctx context.Context, id string, path *string) error {
	if m.paths == nil {
		m.paths = make(map[string]*string)
	}
	m.paths[id] = path
	return nil
}

type mockMediaAreaAccess struct {
	areas map[string]*models.SelectionAreaDetail
}

func (m *mockMediaAreaAccess) Get(ctx context.Context, p authz.Principal, id string) (*models.SelectionAreaDetail, error) {
	area, ok := m.areas[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "selection area not found")
	}
	return area, nil
}

type mockMediaAreaWriter struct {
	paths map[string]*string
}

func (m *mockMediaAreaWriter) SetImagePath(ctx context.Context, id string, path *string) error {
	if m.paths == nil {
		m.paths = make(map[string]*string)
	}
	m.paths[id] = path
	return nil
}

func newMediaFixture() (*mockMediaFiles, *mockMediaChildAccess, *mockMediaChildWriter, *mockMediaAreaAccess, *mockMediaAreaWriter, *MediaService) {
	files := &mockMediaFiles{}
	children := &mockMediaChildAccess{children: map[string]*models.ChildDetail{
		"child-1": {Child: models.Child{ID: "child-1", Name: "Mia", Active: true}},
		"child-2": {Child: models.Child{ID: "child-2", Name: "Noah", AvatarPath: strptr("children/child-2/old.png"), Active: true}},
	}}
	childWriter := &mockMediaChildWriter{}
	areas := &mockMediaAreaAccess{areas: map[string]*models.SelectionAreaDetail{
		"area-1": {SelectionArea: models.SelectionArea{ID: "area-1", ClassID: "class-1", Name: "Building Blocks"}},
	}}
	areaWriter := &mockMediaAreaWriter{}
	svc := NewMediaService(files, children, childWriter, areas, areaWriter, zap.NewNop(), 1024)
	return files, children, childWriter, areas, areaWriter, svc
}

func TestUploadChildAvatar(t *testing.T) {
	files, _, childWriter, _, _, svc := newMediaFixture()

	stored, err := svc.UploadChildAvatar(context.Background(), principalOwner(), "child-1", "portrait.png", 64, strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored, "children/child-1/"))
	assert.True(t, strings.HasSuffix(stored, ".png"))

	require.Contains(t, files.saved, stored)
	require.Contains(t, childWriter.paths, "child-1")
	require.NotNil(t, childWriter.paths["child-1"])
	assert.Equal(t, stored, *childWriter.paths["child-1"])
	assert.Empty(t, files.deleted)
}

func TestUploadChildAvatarReplacesOldFile(t *testing.T) {
	files, _, childWriter, _, _, svc := newMediaFixture()

	stored, err := svc.UploadChildAvatar(context.Background(), principalOwner(), "child-2", "new.jpg", 64, strings.NewReader("jpg-bytes"))
	require.NoError(t, err)

	require.NotNil(t, childWriter.paths["child-2"])
	assert.Equal(t, stored, *childWriter.paths["child-2"])
	assert.Equal(t, []string{"children/child-2/old.png"}, files.deleted)
}

func TestUploadChildAvatarRejectsUnsupportedType(t *testing.T) {
	files, _, childWriter, _, _, svc := newMediaFixture()

	_, err := svc.UploadChildAvatar(context.Background(), principalOwner(), "child-1", "clip.gif", 64, strings.NewReader("gif-bytes"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, files.saved)
	assert.Empty(t, childWriter.paths)
}

func TestUploadChildAvatarRejectsOversizedFile(t *testing.T) {
	files, _, _, _, _, svc := newMediaFixture()

	_, err := svc.UploadChildAvatar(context.Background(), principalOwner(), "child-1", "huge.png", 4096, strings.NewReader("whatever"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, files.saved)
}

func TestUploadChildAvatarForbiddenForTeacherRole(t *testing.T) {
	files, _, _, _, _, svc := newMediaFixture()

	_, err := svc.UploadChildAvatar(context.Background(), teacherPrincipal(), "child-1", "portrait.png", 64, strings.NewReader("png-bytes"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, files.saved)
}

func TestDeleteChildAvatar(t *testing.T) {
	files, _, childWriter, _, _, svc := newMediaFixture()

	require.NoError(t, svc.DeleteChildAvatar(context.Background(), principalOwner(), "child-2"))
	require.Contains(t, childWriter.paths, "child-2")
	assert.Nil(t, childWriter.paths["child-2"])
	assert.Equal(t, []string{"children/child-2/old.png"}, files.deleted)

	// A child without an avatar is a no-op, not an error.
	require.NoError(t, svc.DeleteChildAvatar(context.Background(), principalOwner(), "child-1"))
	assert.NotContains(t, childWriter.paths, "child-1")
}

func TestUploadAreaImage(t *testing.T) {
	files, _, _, _, areaWriter, svc := newMediaFixture()

	stored, err := svc.UploadAreaImage(context.Background(), principalOwner(), "area-1", "blocks.webp", 64, strings.NewReader("webp-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored, "areas/area-1/"))
	require.Contains(t, files.saved, stored)
	require.NotNil(t, areaWriter.paths["area-1"])
	assert.Equal(t, stored, *areaWriter.paths["area-1"])
}

func TestUploadAreaImageUnknownArea(t *testing.T) {
	files, _, _, _, _, svc := newMediaFixture()

	_, err := svc.UploadAreaImage(context.Background(), principalOwner(), "area-9", "blocks.png", 64, strings.NewReader("png-bytes"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, files.saved)
}
