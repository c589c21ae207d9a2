package totp

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/driplo/twofa/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	cfg := testutils.GetTestConfig()
	db := testutils.SetupTestDB(t, &UsedCode{})
	return NewService(cfg, db, nil)
}

func TestService_GenerateSecret(t *testing.T) {
	service := newTestService(t)

	t.Run("returns base32 secret and provisioning uri", func(t *testing.T) {
		key, err := service.GenerateSecret("seller@example.com")

		require.NoError(t, err)
		assert.Len(t, key.Secret, 32)
		assert.Equal(t, strings.ToUpper(key.Secret), key.Secret)

		u, err := url.Parse(key.URI)
		require.NoError(t, err)
		assert.Equal(t, "otpauth", u.Scheme)
		assert.Equal(t, "totp", u.Host)
		assert.Contains(t, u.Path, "seller@example.com")

		q := u.Query()
		assert.Equal(t, key.Secret, q.Get("secret"))
		assert.Equal(t, "Test Marketplace", q.Get("issuer"))
		assert.Equal(t, "6", q.Get("digits"))
		assert.Equal(t, "30", q.Get("period"))
		assert.Equal(t, "SHA1", q.Get("algorithm"))
	})

	t.Run("secrets are unique", func(t *testing.T) {
		first, err := service.GenerateSecret("a@example.com")
		require.NoError(t, err)
		second, err := service.GenerateSecret("a@example.com")
		require.NoError(t, err)

		assert.NotEqual(t, first.Secret, second.Secret)
	})

	t.Run("empty label", func(t *testing.T) {
		key, err := service.GenerateSecret("")

		assert.Nil(t, key)
		testutils.AssertErrorType(t, ErrEmptyLabel, err)
	})

	t.Run("default issuer", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.TOTP.Issuer = ""
		key, err := NewService(cfg, nil, nil).GenerateSecret("a@example.com")

		require.NoError(t, err)
		u, err := url.Parse(key.URI)
		require.NoError(t, err)
		assert.Equal(t, DefaultIssuer, u.Query().Get("issuer"))
	})
}

func TestService_QRCode(t *testing.T) {
	service := newTestService(t)

	key, err := service.GenerateSecret("seller@example.com")
	require.NoError(t, err)

	t.Run("png data url", func(t *testing.T) {
		qr, err := service.QRCode(key.URI)

		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(qr, "data:image/png;base64,"))
		assert.Greater(t, len(qr), 100)
	})

	t.Run("invalid uri", func(t *testing.T) {
		_, err := service.QRCode("://not a uri")

		assert.Error(t, err)
	})
}

func TestService_VerifyAt_Window(t *testing.T) {
	service := newTestService(t)

	key, err := service.GenerateSecret("seller@example.com")
	require.NoError(t, err)

	// middle of a 30s step
	issuedAt := time.Unix(1700000025, 0)
	code, err := GenerateCode(key.Secret, issuedAt)
	require.NoError(t, err)

	tests := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"previous step", -30 * time.Second, true},
		{"same step", 0, true},
		{"next step", 30 * time.Second, true},
		{"two steps early", -60 * time.Second, false},
		{"two steps late", 60 * time.Second, false},
		{"far future", 10 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.VerifyAt(key.Secret, code, issuedAt.Add(tt.offset)))
		})
	}
}

func TestService_Verify_MalformedInput(t *testing.T) {
	service := newTestService(t)

	key, err := service.GenerateSecret("seller@example.com")
	require.NoError(t, err)
	code, err := GenerateCode(key.Secret, time.Now())
	require.NoError(t, err)

	assert.True(t, service.Verify(key.Secret, code))

	assert.NotPanics(t, func() {
		assert.False(t, service.Verify("not base32 !!", code))
		assert.False(t, service.Verify("", code))
		assert.False(t, service.Verify(key.Secret, ""))
		assert.False(t, service.Verify(key.Secret, "12345"))
		assert.False(t, service.Verify(key.Secret, "abcdef"))
	})
}

func TestService_ClaimCode(t *testing.T) {
	ctx := context.Background()

	t.Run("second claim inside window is rejected", func(t *testing.T) {
		service := newTestService(t)

		require.NoError(t, service.ClaimCode(ctx, 1, "123456"))

		err := service.ClaimCode(ctx, 1, "123456")
		testutils.AssertErrorType(t, ErrCodeAlreadyUsed, err)
	})

	t.Run("codes are scoped per user", func(t *testing.T) {
		service := newTestService(t)

		require.NoError(t, service.ClaimCode(ctx, 1, "654321"))
		assert.NoError(t, service.ClaimCode(ctx, 2, "654321"))
	})

	t.Run("stale claim does not block", func(t *testing.T) {
		service := newTestService(t)

		stale := &UsedCode{UserID: 3, Code: "111111", UsedAt: time.Now().Add(-2 * ReplayWindow).Unix()}
		require.NoError(t, service.db.Create(stale).Error)

		assert.NoError(t, service.ClaimCode(ctx, 3, "111111"))
	})

	t.Run("disabled replay protection", func(t *testing.T) {
		cfg := testutils.GetTestConfig()
		cfg.TOTP.ReplayProtection = false
		service := NewService(cfg, nil, nil)

		assert.NoError(t, service.ClaimCode(ctx, 1, "123456"))
		assert.NoError(t, service.ClaimCode(ctx, 1, "123456"))
	})
}

func TestService_VerifyAndClaim(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	key, err := service.GenerateSecret("seller@example.com")
	require.NoError(t, err)
	code, err := GenerateCode(key.Secret, time.Now())
	require.NoError(t, err)

	testutils.AssertErrorType(t, ErrInvalidCode, service.VerifyAndClaim(ctx, 9, key.Secret, "000000x"))
	require.NoError(t, service.VerifyAndClaim(ctx, 9, key.Secret, code))
	testutils.AssertErrorType(t, ErrCodeAlreadyUsed, service.VerifyAndClaim(ctx, 9, key.Secret, code))
}

func TestService_CleanupUsedCodes(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	require.NoError(t, service.db.Create(&UsedCode{UserID: 1, Code: "111111", UsedAt: time.Now().Add(-time.Hour).Unix()}).Error)
	require.NoError(t, service.db.Create(&UsedCode{UserID: 1, Code: "222222", UsedAt: time.Now().Unix()}).Error)

	removed, err := service.CleanupUsedCodes(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	var remaining int64
	require.NoError(t, service.db.Model(&UsedCode{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}
