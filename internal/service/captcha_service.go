package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
)

type captchaStore interface {
	SetCaptcha(ctx context.Context, key, code string, ttl time.Duration) error
	GetCaptcha(ctx context.Context, key string) (string, error)
	DeleteCaptcha(ctx context.Context, key string) error
}

// CaptchaService issues and verifies short-lived login verification codes.
// Codes are single use and stored in Redis keyed by an opaque UUID.
type CaptchaService struct {
	store  captchaStore
	logger *zap.Logger
	length int
	ttl    time.Duration
}

// NewCaptchaService constructs a CaptchaService.
func NewCaptchaService(store captchaStore, logger *zap.Logger, length int, ttl time.Duration) *CaptchaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if length <= 0 {
		length = 4
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CaptchaService{store: store, logger: logger, length: length, ttl: ttl}
}

// Generate creates a new code and stores it under a fresh key.
func (s *CaptchaService) Generate(ctx context.Context) (*models.CaptchaResponse, error) {
	code, err := randomDigits(s.length)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate captcha")
	}
	key := uuid.NewString()
	if err := s.store.SetCaptcha(ctx, key, code, s.ttl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store captcha")
	}
	return &models.CaptchaResponse{
		Key:       key,
		Code:      code,
		ExpiresAt: time.Now().UTC().Add(s.ttl),
	}, nil
}

// Verify checks a submitted code against the stored one and consumes the key
// regardless of the outcome.
func (s *CaptchaService) Verify(ctx context.Context, key, code string) error {
	stored, err := s.store.GetCaptcha(ctx, key)
	if err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrCacheMiss.Code {
			return appErrors.Clone(appErrors.ErrInvalidCaptcha, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load captcha")
	}
	if err := s.store.DeleteCaptcha(ctx, key); err != nil {
		s.logger.Warn("failed to consume captcha", zap.Error(err))
	}
	if !strings.EqualFold(strings.TrimSpace(code), stored) {
		return appErrors.Clone(appErrors.ErrInvalidCaptcha, "")
	}
	return nil
}

func randomDigits(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		digit, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%d", digit.Int64())
	}
	return b.String(), nil
}
