package service

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
)

type mediaFileStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type mediaChildAccess interface {
	Get(ctx context.Context, p authz.Principal, id string) (*models.ChildDetail, error)
}

type mediaChildWriter interface {
	SetAvatarPath(ctx context.Context, id string, path *string) error
}

type mediaAreaAccess interface {
	Get(ctx context.Context, p authz.Principal, id string) (*models.SelectionAreaDetail, error)
}

type mediaAreaWriter interface {
	SetImagePath(ctx context.Context, id string, path *string) error
}

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// MediaService stores child avatars and selection-area illustrations on the
// media file store and keeps the referencing rows in sync.
type MediaService struct {
	files     mediaFileStore
	children  mediaChildAccess
	childRepo mediaChildWriter
	areas     mediaAreaAccess
	areaRepo  mediaAreaWriter
	logger    *zap.Logger
	maxSize   int64
}

func NewMediaService(files mediaFileStore, children mediaChildAccess, childRepo mediaChildWriter, areas mediaAreaAccess, areaRepo mediaAreaWriter, logger *zap.Logger, maxSize int64) *MediaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSize <= 0 {
		maxSize = 5 * 1024 * 1024
	}
	return &MediaService{
		files:     files,
		children:  children,
		childRepo: childRepo,
		areas:     areas,
		areaRepo:  areaRepo,
		logger:    logger,
		maxSize:   maxSize,
	}
}

// UploadChildAvatar replaces the avatar of a visible child and returns the
// stored path. Any previous avatar file is removed.
func (s *MediaService) UploadChildAvatar(ctx context.Context, p authz.Principal, childID, filename string, size int64, r io.Reader) (string, error) {
	if p.Role == authz.RoleTeacher {
		return "", appErrors.Clone(appErrors.ErrForbidden, "teachers cannot change avatars")
	}
	child, err := s.children.Get(ctx, p, childID)
	if err != nil {
		return "", err
	}
	stored, err := s.store(path.Join("children", childID), filename, size, r)
	if err != nil {
		return "", err
	}
	if err := s.childRepo.SetAvatarPath(ctx, childID, &stored); err != nil {
		if cleanupErr := s.files.Delete(stored); cleanupErr != nil {
			s.logger.Warn("orphaned avatar file left behind", zap.String("path", stored), zap.Error(cleanupErr))
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save avatar")
	}
	if child.AvatarPath != nil && *child.AvatarPath != stored {
		if err := s.files.Delete(*child.AvatarPath); err != nil {
			s.logger.Warn("stale avatar file left behind", zap.String("path", *child.AvatarPath), zap.Error(err))
		}
	}
	return stored, nil
}

// DeleteChildAvatar clears the avatar of a visible child.
func (s *MediaService) DeleteChildAvatar(ctx context.Context, p authz.Principal, childID string) error {
	if p.Role == authz.RoleTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "teachers cannot change avatars")
	}
	child, err := s.children.Get(ctx, p, childID)
	if err != nil {
		return err
	}
	if child.AvatarPath == nil {
		return nil
	}
	if err := s.childRepo.SetAvatarPath(ctx, childID, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear avatar")
	}
	if err := s.files.Delete(*child.AvatarPath); err != nil {
		s.logger.Warn("stale avatar file left behind", zap.String("path", *child.AvatarPath), zap.Error(err))
	}
	return nil
}

// UploadAreaImage replaces the illustration of a visible selection area.
func (s *MediaService) UploadAreaImage(ctx context.Context, p authz.Principal, areaID, filename string, size int64, r io.Reader) (string, error) {
	if p.Role == authz.RoleTeacher {
		return "", appErrors.Clone(appErrors.ErrForbidden, "teachers cannot change area images")
	}
	area, err := s.areas.Get(ctx, p, areaID)
	if err != nil {
		return "", err
	}
	stored, err := s.store(path.Join("areas", areaID), filename, size, r)
	if err != nil {
		return "", err
	}
	if err := s.areaRepo.SetImagePath(ctx, areaID, &stored); err != nil {
		if cleanupErr := s.files.Delete(stored); cleanupErr != nil {
			s.logger.Warn("orphaned area image left behind", zap.String("path", stored), zap.Error(cleanupErr))
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save area image")
	}
	if area.ImagePath != nil && *area.ImagePath != stored {
		if err := s.files.Delete(*area.ImagePath); err != nil {
			s.logger.Warn("stale area image left behind", zap.String("path", *area.ImagePath), zap.Error(err))
		}
	}
	return stored, nil
}

// DeleteAreaImage clears the illustration of a visible selection area.
func (s *MediaService) DeleteAreaImage(ctx context.Context, p authz.Principal, areaID string) error {
	if p.Role == authz.RoleTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "teachers cannot change area images")
	}
	area, err := s.areas.Get(ctx, p, areaID)
	if err != nil {
		return err
	}
	if area.ImagePath == nil {
		return nil
	}
	if err := s.areaRepo.SetImagePath(ctx, areaID, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear area image")
	}
	if err := s.files.Delete(*area.ImagePath); err != nil {
		s.logger.Warn("stale area image left behind", zap.String("path", *area.ImagePath), zap.Error(err))
	}
	return nil
}

// Open returns a read handle for a stored media file.
func (s *MediaService) Open(storedPath string) (*os.File, error) {
	if storedPath == "" || strings.Contains(storedPath, "..") {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	file, err := s.files.Open(storedPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	return file, nil
}

func (s *MediaService) store(dir, filename string, size int64, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := imageExtensions[ext]; !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, "unsupported image type")
	}
	if size > s.maxSize {
		return "", appErrors.Clone(appErrors.ErrValidation, "file too large")
	}
	stored := path.Join(dir, uuid.NewString()+ext)
	if _, err := s.files.SaveStream(stored, io.LimitReader(r, s.maxSize)); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}
	return stored, nil
}
