package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
)

type mockCaptchaStore struct {
	codes   map[string]string
	deleted []string
}

func newMockCaptchaStore() *mockCaptchaStore {
	return &mockCaptchaStore{codes: make(map[string]string)}
}

func (m *mockCaptchaStore) SetCaptcha(ctx context.Context, key, code string, ttl time.Duration) error {
	m.codes[key] = code
	return nil
}

func (m *mockCaptchaStore) GetCaptcha(ctx context.Context, key string) (string, error) {
	if code, ok := m.codes[key]; ok {
		return code, nil
	}
	return "", appErrors.Clone(appErrors.ErrCacheMiss, "")
}

func (m *mockCaptchaStore) DeleteCaptcha(ctx context.Context, key string) error {
	delete(m.codes, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func TestCaptchaServiceGenerateAndVerify(t *testing.T) {
	store := newMockCaptchaStore()
	svc := NewCaptchaService(store, zap.NewNop(), 4, time.Minute)

	resp, err := svc.Generate(context.Background())
	require.NoError(t, err)
	assert.Len(t, resp.Code, 4)
	assert.NotEmpty(t, resp.Key)

	require.NoError(t, svc.Verify(context.Background(), resp.Key, resp.Code))

	// Codes are single use.
	err = svc.Verify(context.Background(), resp.Key, resp.Code)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCaptcha.Code, appErrors.FromError(err).Code)
}

func TestCaptchaServiceVerifyWrongCodeConsumesKey(t *testing.T) {
	store := newMockCaptchaStore()
	svc := NewCaptchaService(store, zap.NewNop(), 4, time.Minute)

	resp, err := svc.Generate(context.Background())
	require.NoError(t, err)

	err = svc.Verify(context.Background(), resp.Key, "0000")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCaptcha.Code, appErrors.FromError(err).Code)
	assert.Contains(t, store.deleted, resp.Key)
}

func TestCaptchaServiceVerifyUnknownKey(t *testing.T) {
	svc := NewCaptchaService(newMockCaptchaStore(), zap.NewNop(), 0, 0)

	err := svc.Verify(context.Background(), "no-such-key", "1234")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCaptcha.Code, appErrors.FromError(err).Code)
}
