package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-hmac"

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewManager(testSecret, time.Hour, false, rdb), mr
}

func TestManager_IssueAndParse(t *testing.T) {
	m, _ := newTestManager(t)

	token, err := m.Issue(42)
	require.NoError(t, err)

	claims, err := m.Parse(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestManager_ParseRejects(t *testing.T) {
	m, _ := newTestManager(t)
	token, err := m.Issue(1)
	require.NoError(t, err)

	other := NewManager("a-completely-different-secret-value", time.Hour, false, nil)

	second, err := m.Issue(2)
	require.NoError(t, err)
	tampered := token[:strings.LastIndex(token, ".")] + second[strings.LastIndex(second, "."):]

	expired := NewManager(testSecret, time.Hour, false, nil)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	oldToken, err := expired.Issue(1)
	require.NoError(t, err)

	wrongAud := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"iss": issuer,
		"aud": "someone-else",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	wrongAudToken, err := wrongAud.SignedString([]byte(testSecret))
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "1", "iss": issuer, "aud": audience, "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		mgr   *Manager
		token string
	}{
		{"garbage", m, "not-a-token"},
		{"tampered", m, tampered},
		{"wrong secret", other, token},
		{"expired", m, oldToken},
		{"wrong audience", m, wrongAudToken},
		{"alg none", m, noneToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.mgr.Parse(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrInvalidSession)
		})
	}
}

func TestManager_Revoke(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	token, err := m.Issue(7)
	require.NoError(t, err)
	claims, err := m.Parse(ctx, token)
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, claims))

	_, err = m.Parse(ctx, token)
	assert.True(t, errors.Is(err, ErrRevoked))

	ttl := mr.TTL(revokedKey(claims.ID))
	assert.Greater(t, ttl, 50*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)

	mr.FastForward(2 * time.Hour)
	assert.False(t, mr.Exists(revokedKey(claims.ID)))
}

func TestManager_RevokeWithoutRedis(t *testing.T) {
	m := NewManager(testSecret, time.Hour, false, nil)
	token, err := m.Issue(7)
	require.NoError(t, err)
	claims, err := m.Parse(context.Background(), token)
	require.NoError(t, err)

	assert.NoError(t, m.Revoke(context.Background(), claims))
}

func sessionApp(m *Manager) *fiber.App {
	app := fiber.New()
	app.Get("/login", func(c *fiber.Ctx) error {
		return m.Login(c, 5)
	})
	app.Get("/whoami", func(c *fiber.Ctx) error {
		claims, ok := m.Current(c)
		if !ok {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.JSON(fiber.Map{"user": claims.UserID})
	})
	app.Get("/logout", func(c *fiber.Ctx) error {
		return m.Logout(c)
	})
	return app
}

func cookieFrom(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, ck := range resp.Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func TestManager_LoginLogoutCookies(t *testing.T) {
	m, _ := newTestManager(t)
	app := sessionApp(m)

	resp, err := app.Test(httptest.NewRequest("GET", "/login", nil))
	require.NoError(t, err)
	session := cookieFrom(t, resp, CookieName)
	assert.True(t, session.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, session.SameSite)
	assert.False(t, session.Secure)

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: session.Value})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/logout", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: session.Value})
	resp, err = app.Test(req)
	require.NoError(t, err)
	cleared := cookieFrom(t, resp, CookieName)
	assert.Empty(t, cleared.Value)
	assert.True(t, cleared.Expires.Before(time.Now()))

	// The old token is dead even if a client keeps sending it.
	req = httptest.NewRequest("GET", "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: session.Value})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestManager_SecureCookieInProduction(t *testing.T) {
	m := NewManager(testSecret, time.Hour, true, nil)
	app := sessionApp(m)

	resp, err := app.Test(httptest.NewRequest("GET", "/login", nil))
	require.NoError(t, err)
	assert.True(t, cookieFrom(t, resp, CookieName).Secure)
	assert.True(t, strings.Contains(resp.Header.Get("Set-Cookie"), "secure"))
}
