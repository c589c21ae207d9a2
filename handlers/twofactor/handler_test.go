package twofactor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/server"
	"github.com/driplo/twofa/services/audit"
	"github.com/driplo/twofa/services/auth"
	"github.com/driplo/twofa/services/enrollment"
	"github.com/driplo/twofa/services/mail"
	"github.com/driplo/twofa/services/marker"
	"github.com/driplo/twofa/services/totp"
	"github.com/driplo/twofa/testutils"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	t          *testing.T
	cfg        *config.Config
	db         *gorm.DB
	echo       *echo.Echo
	users      *auth.Service
	enrollment *enrollment.Service
	totp       *totp.Service
	markers    *marker.Service
	audit      *audit.Service
	mailer     *testutils.MockMailService
	user       *auth.User
	userID     uint
	cookies    map[string]*http.Cookie
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := testutils.GetTestConfig()
	cfg.TOTP.ReplayProtection = false
	for _, m := range mutate {
		m(cfg)
	}

	db := testutils.SetupTestDB(t, &auth.User{}, &enrollment.Enrollment{}, &totp.UsedCode{}, &audit.AuthEvent{})

	f := &fixture{
		t:          t,
		cfg:        cfg,
		db:         db,
		users:      auth.NewService(cfg, db, nil),
		enrollment: enrollment.NewService(enrollment.NewGormStore(db), nil),
		totp:       totp.NewService(cfg, db, nil),
		markers:    marker.NewService(cfg, nil),
		audit:      audit.NewService(db, nil),
		mailer:     &testutils.MockMailService{},
		cookies:    make(map[string]*http.Cookie),
	}
	f.mailer.On("SendSecurityNotice", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	f.user = f.createUser(testutils.TestUsers.Personal)
	f.userID = f.user.ID

	srv := server.New(cfg, nil)
	f.echo = srv.Echo()

	handler := NewHandler(Deps{
		Config:     cfg,
		Enrollment: f.enrollment,
		TOTP:       f.totp,
		Markers:    f.markers,
		Users:      f.users,
		Audit:      f.audit,
		Notifier:   f.mailer,
		Identity: func(c echo.Context) (uint, bool) {
			return f.userID, f.userID != 0
		},
	})
	handler.Register(f.echo)

	return f
}

func (f *fixture) createUser(u testutils.TestUser) *auth.User {
	f.t.Helper()
	user := &auth.User{Email: u.Email, Username: u.Username, AccountType: u.AccountType, Role: u.Role}
	require.NoError(f.t, f.users.CreateUser(context.Background(), user, u.Password))
	return user
}

type response struct {
	*httptest.ResponseRecorder
}

func (r response) json(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Body.Bytes(), v), r.Body.String())
}

func (r response) errorMessage(t *testing.T) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	r.json(t, &body)
	return body.Error
}

func (r response) cookie(name string) *http.Cookie {
	for _, cookie := range r.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

// do sends the request with the fixture's cookies and stores any cookies the response sets.
func (f *fixture) do(method, path, body string) response {
	f.t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0")
	for _, cookie := range f.cookies {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}

	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge < 0 || cookie.Value == "" {
			delete(f.cookies, cookie.Name)
			continue
		}
		f.cookies[cookie.Name] = cookie
	}

	return response{rec}
}

func (f *fixture) code(secret string) string {
	f.t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(f.t, err)
	return code
}

// enable enrolls the fixture user directly in storage.
func (f *fixture) enable() (string, []string) {
	f.t.Helper()
	key, err := f.totp.GenerateSecret(f.user.Email)
	require.NoError(f.t, err)
	codes, err := totp.GenerateBackupCodes()
	require.NoError(f.t, err)
	require.NoError(f.t, f.enrollment.Enable(context.Background(), f.userID, key.Secret, codes))
	return key.Secret, codes
}

func (f *fixture) record() *enrollment.Enrollment {
	f.t.Helper()
	record, err := f.enrollment.Get(context.Background(), f.userID)
	require.NoError(f.t, err)
	return record
}

func (f *fixture) events(typ audit.EventType) int {
	f.t.Helper()
	var count int64
	require.NoError(f.t, f.db.Model(&audit.AuthEvent{}).Where("user_id = ? AND type = ?", f.userID, typ).Count(&count).Error)
	return int(count)
}

func TestEnable_Start(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/auth/2fa/enable", `{"action":"start"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body EnableStartResponse
	rec.json(t, &body)

	assert.True(t, body.Success)
	assert.Len(t, body.Secret, 32)
	assert.True(t, strings.HasPrefix(body.QRCode, "data:image/png;base64,"))
	assert.Equal(t, body.Secret, strings.ReplaceAll(body.ManualEntryKey, " ", ""))
	assert.False(t, body.Required)

	setup := rec.cookie("2fa_setup_secret")
	require.NotNil(t, setup)
	assert.True(t, setup.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, setup.SameSite)
	assert.NotContains(t, setup.Value, body.Secret)

	assert.False(t, f.record().Enabled)
}

func TestEnable_StartReportsMandatoryAccounts(t *testing.T) {
	f := newFixture(t)
	brand := f.createUser(testutils.TestUsers.Brand)
	f.userID = brand.ID

	rec := f.do(http.MethodPost, "/api/auth/2fa/enable", `{"action":"start"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body EnableStartResponse
	rec.json(t, &body)
	assert.True(t, body.Required)
}

func TestEnable_FullFlow(t *testing.T) {
	f := newFixture(t)

	var start EnableStartResponse
	f.do(http.MethodPost, "/api/auth/2fa/enable", `{"action":"start"}`).json(t, &start)

	rec := f.do(http.MethodPost, "/api/auth/2fa/enable", `{"action":"verify","code":"`+f.code(start.Secret)+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body BackupCodesResponse
	rec.json(t, &body)
	assert.True(t, body.Success)
	assert.Len(t, body.BackupCodes, totp.BackupCodeCount)

	record := f.record()
	assert.True(t, record.Enabled)
	assert.Equal(t, start.Secret, record.Secret)
	assert.Equal(t, body.BackupCodes, []string(record.BackupCodes))

	assert.NotNil(t, rec.cookie("2fa_verified"))
	setup := rec.cookie("2fa_setup_secret")
	require.NotNil(t, setup)
	assert.Less(t, setup.MaxAge, 0)

	assert.Equal(t, 1, f.events(audit.EventTwoFactorEnabled))
	f.mailer.AssertCalled(t, "SendSecurityNotice", f.user.Email, mail.EventTwoFactorEnabled, mock.Anything)
}

func TestEnable_VerifyRequiresPriorStart(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/auth/2fa/enable", `{"action":"verify","code":"123456"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgNoPendingSetup, rec.errorMessage(t))
	assert.False(t, f.record().Enabled)
}

func TestEnable_VerifyFailures(t *testing.T) {
	t.Run("missing code", func(t *testing.T) {
		f := newFixture(t)
		f.do(http.MethodPost, "/api/auth/2fa/enable", `{"action":"start"}`)

		rec := f.do(http.MethodPost, "/api/auth/2fa/enable", `{"action":"verify"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgCodeRequired, rec.errorMessage(t))
	})

	t.Run("wrong code", func(t *testing.T) {
		f := newFixture(t)
		var start EnableStartResponse
		f.do(http.MethodPost, "/api/auth/2fa/enable", `{"action":"start"}`).json(t, &start)

		wrong, err := totp.GenerateCode(start.Secret, time.Now().Add(-10*time.Minute))
		require.NoError(t, err)

		rec := f.do(http.MethodPost, "/api/auth/2fa/enable", `{"action":"verify","code":"`+wrong+`"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgInvalidCode, rec.errorMessage(t))
		assert.False(t, f.record().Enabled)
	})

	t.Run("setup token from another user", func(t *testing.T) {
		f := newFixture(t)
		var start EnableStartResponse
		f.do(http.MethodPost, "/api/auth/2fa/enable", `{"action":"start"}`).json(t, &start)

		other := f.createUser(testutils.TestUsers.Admin)
		f.userID = other.ID

		rec := f.do(http.MethodPost, "/api/auth/2fa/enable", `{"action":"verify","code":"`+f.code(start.Secret)+`"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgNoPendingSetup, rec.errorMessage(t))
		assert.False(t, f.record().Enabled)
	})

	t.Run("invalid action", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodPost, "/api/auth/2fa/enable", `{"action":"finish"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Validation failed", rec.errorMessage(t))
	})

	t.Run("start when already enabled", func(t *testing.T) {
		f := newFixture(t)
		f.enable()

		rec := f.do(http.MethodPost, "/api/auth/2fa/enable", `{"action":"start"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgAlreadyEnabled, rec.errorMessage(t))
	})
}

func TestVerify_TOTP(t *testing.T) {
	f := newFixture(t)
	secret, _ := f.enable()
	f.cookies["2fa_redirect"] = &http.Cookie{Name: "2fa_redirect", Value: "/orders/42?tab=history"}

	rec := f.do(http.MethodPost, "/api/auth/2fa/verify", `{"code":"`+f.code(secret)+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body VerifyResponse
	rec.json(t, &body)
	assert.True(t, body.Success)
	assert.Equal(t, "/orders/42?tab=history", body.Redirect)

	verified := rec.cookie("2fa_verified")
	require.NotNil(t, verified)
	assert.True(t, verified.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, verified.SameSite)
	assert.InDelta(t, 86400, verified.MaxAge, 1)
	_, err := f.markers.ValidateVerified(verified.Value, f.userID)
	assert.NoError(t, err)

	redirect := rec.cookie("2fa_redirect")
	require.NotNil(t, redirect)
	assert.Less(t, redirect.MaxAge, 0)

	assert.Equal(t, 1, f.events(audit.EventTwoFactorVerified))
}

func TestVerify_DefaultsAndUnsafeRedirects(t *testing.T) {
	f := newFixture(t)
	secret, _ := f.enable()

	var body VerifyResponse
	f.do(http.MethodPost, "/api/auth/2fa/verify", `{"code":"`+f.code(secret)+`","type":"totp"}`).json(t, &body)
	assert.Equal(t, "/", body.Redirect)

	f.cookies["2fa_redirect"] = &http.Cookie{Name: "2fa_redirect", Value: "//evil.example/phish"}
	f.do(http.MethodPost, "/api/auth/2fa/verify", `{"code":"`+f.code(secret)+`"}`).json(t, &body)
	assert.Equal(t, "/", body.Redirect)
}

func TestVerify_BackupCode(t *testing.T) {
	f := newFixture(t)
	_, codes := f.enable()

	submitted := strings.ToLower(strings.ReplaceAll(codes[3], "-", ""))
	rec := f.do(http.MethodPost, "/api/auth/2fa/verify", `{"code":"`+submitted+`","type":"backup"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotNil(t, rec.cookie("2fa_verified"))

	record := f.record()
	assert.Len(t, record.BackupCodes, len(codes)-1)
	assert.NotContains(t, record.BackupCodes, codes[3])
	assert.Equal(t, 1, f.events(audit.EventBackupCodeUsed))

	rec = f.do(http.MethodPost, "/api/auth/2fa/verify", `{"code":"`+codes[3]+`","type":"backup"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInvalidCode, rec.errorMessage(t))
}

func TestVerify_FailuresShareOneMessage(t *testing.T) {
	f := newFixture(t)
	f.enable()

	for _, body := range []string{
		`{"code":"000000"}`,
		`{"code":"000000","type":"totp"}`,
		`{"code":"0000-0000","type":"backup"}`,
	} {
		rec := f.do(http.MethodPost, "/api/auth/2fa/verify", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgInvalidCode, rec.errorMessage(t))
		assert.Nil(t, rec.cookie("2fa_verified"))
	}

	assert.Equal(t, 3, f.events(audit.EventTwoFactorFailed))
}

func TestVerify_NotEnabled(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/auth/2fa/verify", `{"code":"123456"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgNotEnabled, rec.errorMessage(t))
}

func TestVerify_Validation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/auth/2fa/verify", `{"type":"sms"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body server.ErrorResponse
	rec.json(t, &body)
	assert.Equal(t, "Validation failed", body.Error)
	assert.Contains(t, body.Details, "code")
	assert.Contains(t, body.Details, "type")
}

func TestVerify_FailsClosedOnStorageError(t *testing.T) {
	f := newFixture(t)
	secret, _ := f.enable()
	require.NoError(t, f.db.Migrator().DropTable(&enrollment.Enrollment{}))

	rec := f.do(http.MethodPost, "/api/auth/2fa/verify", `{"code":"`+f.code(secret)+`"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body server.ErrorResponse
	rec.json(t, &body)
	assert.Equal(t, "Internal server error", body.Error)
	assert.NotEmpty(t, body.CorrelationID)
	assert.Nil(t, rec.cookie("2fa_verified"))
}

func TestVerify_RejectsReplayedCode(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.TOTP.ReplayProtection = true
	})
	secret, _ := f.enable()
	code := f.code(secret)

	rec := f.do(http.MethodPost, "/api/auth/2fa/verify", `{"code":"`+code+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/api/auth/2fa/verify", `{"code":"`+code+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInvalidCode, rec.errorMessage(t))
}

func TestDisable(t *testing.T) {
	t.Run("clears secret and backup codes", func(t *testing.T) {
		f := newFixture(t)
		secret, _ := f.enable()
		f.cookies["2fa_verified"] = &http.Cookie{Name: "2fa_verified", Value: "marker"}

		rec := f.do(http.MethodPost, "/api/auth/2fa/disable",
			`{"code":"`+f.code(secret)+`","password":"`+testutils.TestPasswords.Valid+`"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		record := f.record()
		assert.False(t, record.Enabled)
		assert.Empty(t, record.Secret)
		assert.Empty(t, record.BackupCodes)

		verified := rec.cookie("2fa_verified")
		require.NotNil(t, verified)
		assert.Less(t, verified.MaxAge, 0)

		assert.Equal(t, 1, f.events(audit.EventTwoFactorDisabled))
		f.mailer.AssertCalled(t, "SendSecurityNotice", f.user.Email, mail.EventTwoFactorDisabled, mock.Anything)
	})

	t.Run("re-enabling needs a fresh secret", func(t *testing.T) {
		f := newFixture(t)
		secret, _ := f.enable()

		rec := f.do(http.MethodPost, "/api/auth/2fa/disable",
			`{"code":"`+f.code(secret)+`","password":"`+testutils.TestPasswords.Valid+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(http.MethodPost, "/api/auth/2fa/enable", `{"action":"verify","code":"`+f.code(secret)+`"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgNoPendingSetup, rec.errorMessage(t))

		var start EnableStartResponse
		f.do(http.MethodPost, "/api/auth/2fa/enable", `{"action":"start"}`).json(t, &start)
		assert.NotEqual(t, secret, start.Secret)
	})

	t.Run("accepts a backup code", func(t *testing.T) {
		f := newFixture(t)
		_, codes := f.enable()

		rec := f.do(http.MethodPost, "/api/auth/2fa/disable",
			`{"code":"`+codes[0]+`","password":"`+testutils.TestPasswords.Valid+`"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newFixture(t)
		secret, _ := f.enable()

		rec := f.do(http.MethodPost, "/api/auth/2fa/disable",
			`{"code":"`+f.code(secret)+`","password":"`+testutils.TestPasswords.Wrong+`"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgInvalidPassword, rec.errorMessage(t))
		assert.True(t, f.record().Enabled)
	})

	t.Run("wrong code", func(t *testing.T) {
		f := newFixture(t)
		f.enable()

		rec := f.do(http.MethodPost, "/api/auth/2fa/disable",
			`{"code":"000000","password":"`+testutils.TestPasswords.Valid+`"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgInvalidCode, rec.errorMessage(t))
		assert.True(t, f.record().Enabled)
	})

	t.Run("not enabled", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(http.MethodPost, "/api/auth/2fa/disable",
			`{"code":"000000","password":"`+testutils.TestPasswords.Valid+`"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgNotEnabled, rec.errorMessage(t))
	})

	t.Run("mandatory for the account", func(t *testing.T) {
		f := newFixture(t)
		admin := f.createUser(testutils.TestUsers.Admin)
		f.userID = admin.ID
		secret, _ := f.enable()

		rec := f.do(http.MethodPost, "/api/auth/2fa/disable",
			`{"code":"`+f.code(secret)+`","password":"`+testutils.TestPasswords.Valid+`"}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, msgMandatory, rec.errorMessage(t))
		assert.True(t, f.record().Enabled)
	})

	t.Run("notification failure does not fail the request", func(t *testing.T) {
		f := newFixture(t)
		f.mailer.ExpectedCalls = nil
		f.mailer.On("SendSecurityNotice", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))
		secret, _ := f.enable()

		rec := f.do(http.MethodPost, "/api/auth/2fa/disable",
			`{"code":"`+f.code(secret)+`","password":"`+testutils.TestPasswords.Valid+`"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		f.mailer.AssertNumberOfCalls(t, "SendSecurityNotice", 1)
	})

	t.Run("account lookup failure keeps 2FA enabled", func(t *testing.T) {
		f := newFixture(t)
		secret, _ := f.enable()
		require.NoError(t, f.db.Migrator().DropTable(&auth.User{}))

		rec := f.do(http.MethodPost, "/api/auth/2fa/disable",
			`{"code":"`+f.code(secret)+`","password":"`+testutils.TestPasswords.Valid+`"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.True(t, f.record().Enabled)
		assert.Zero(t, f.events(audit.EventTwoFactorDisabled))
	})
}

func TestBackupCodes(t *testing.T) {
	t.Run("count", func(t *testing.T) {
		f := newFixture(t)
		_, codes := f.enable()

		var body BackupCodesCountResponse
		rec := f.do(http.MethodGet, "/api/auth/2fa/backup-codes", "")
		require.Equal(t, http.StatusOK, rec.Code)
		rec.json(t, &body)
		assert.Equal(t, len(codes), body.Count)

		_, err := f.enrollment.ConsumeBackupCode(context.Background(), f.userID, codes[0])
		require.NoError(t, err)

		f.do(http.MethodGet, "/api/auth/2fa/backup-codes", "").json(t, &body)
		assert.Equal(t, len(codes)-1, body.Count)
	})

	t.Run("count requires enrollment", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodGet, "/api/auth/2fa/backup-codes", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("regenerate", func(t *testing.T) {
		f := newFixture(t)
		secret, old := f.enable()

		rec := f.do(http.MethodPost, "/api/auth/2fa/backup-codes", `{"code":"`+f.code(secret)+`"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body BackupCodesResponse
		rec.json(t, &body)
		assert.Len(t, body.BackupCodes, totp.BackupCodeCount)
		assert.Equal(t, body.BackupCodes, []string(f.record().BackupCodes))

		_, ok := totp.VerifyBackupCode(old[0], f.record().BackupCodes)
		assert.False(t, ok)

		assert.Equal(t, 1, f.events(audit.EventBackupCodesRegenerated))
		f.mailer.AssertCalled(t, "SendSecurityNotice", f.user.Email, mail.EventBackupCodesRegenerated, mock.Anything)
	})

	t.Run("regenerate with wrong code", func(t *testing.T) {
		f := newFixture(t)
		_, old := f.enable()

		rec := f.do(http.MethodPost, "/api/auth/2fa/backup-codes", `{"code":"000000"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgInvalidCode, rec.errorMessage(t))
		assert.Equal(t, old, []string(f.record().BackupCodes))
	})
}

func TestStatus(t *testing.T) {
	f := newFixture(t)

	var body StatusResponse
	f.do(http.MethodGet, "/api/auth/2fa/status", "").json(t, &body)
	assert.Equal(t, StatusResponse{}, body)

	_, codes := f.enable()
	f.do(http.MethodGet, "/api/auth/2fa/status", "").json(t, &body)
	assert.True(t, body.Enabled)
	assert.False(t, body.Required)
	assert.Equal(t, len(codes), body.BackupCodesCount)

	brand := f.createUser(testutils.TestUsers.Brand)
	f.userID = brand.ID
	f.do(http.MethodGet, "/api/auth/2fa/status", "").json(t, &body)
	assert.False(t, body.Enabled)
	assert.True(t, body.Required)
}

func TestVerifyPage(t *testing.T) {
	f := newFixture(t)

	var body VerifyPageResponse
	f.do(http.MethodGet, "/2fa-verify", "").json(t, &body)
	assert.False(t, body.Required)
	assert.Equal(t, "/", body.Redirect)

	secret, _ := f.enable()
	f.cookies["2fa_redirect"] = &http.Cookie{Name: "2fa_redirect", Value: "/dashboard"}

	f.do(http.MethodGet, "/2fa-verify", "").json(t, &body)
	assert.True(t, body.Required)
	assert.Equal(t, "/dashboard", body.Redirect)

	f.do(http.MethodPost, "/api/auth/2fa/verify", `{"code":"`+f.code(secret)+`"}`)

	f.do(http.MethodGet, "/2fa-verify", "").json(t, &body)
	assert.False(t, body.Required)
	assert.Equal(t, "/", body.Redirect)
}

func TestRequiresIdentity(t *testing.T) {
	f := newFixture(t)
	f.userID = 0

	requests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/api/auth/2fa/enable", `{"action":"start"}`},
		{http.MethodPost, "/api/auth/2fa/verify", `{"code":"123456"}`},
		{http.MethodPost, "/api/auth/2fa/disable", `{"code":"123456","password":"x"}`},
		{http.MethodGet, "/api/auth/2fa/backup-codes", ""},
		{http.MethodPost, "/api/auth/2fa/backup-codes", `{"code":"123456"}`},
		{http.MethodGet, "/api/auth/2fa/status", ""},
		{http.MethodGet, "/2fa-verify", ""},
	}

	for _, r := range requests {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			rec := f.do(r.method, r.path, r.body)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Authentication required", rec.errorMessage(t))
		})
	}
}

func TestSafeRedirect(t *testing.T) {
	tests := map[string]string{
		"":                       "/",
		"/":                      "/",
		"/orders/42?tab=history": "/orders/42?tab=history",
		"//evil.example":         "/",
		"https://evil.example":   "/",
		"/\\evil.example":        "/",
		"dashboard":              "/",
		"/a\r\nSet-Cookie: x=1":  "/",
	}

	for input, expected := range tests {
		assert.Equal(t, expected, safeRedirect(input), input)
	}
}

func TestFormatManualKey(t *testing.T) {
	assert.Equal(t, "ABCD EFGH IJ", formatManualKey("ABCDEFGHIJ"))
	assert.Equal(t, "", formatManualKey(""))
}
