package server

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"warbler/internal/config"
	"warbler/internal/database"
	"warbler/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testHost = "http://warbler.test"

func testConfig() *config.Config {
	return &config.Config{
		Port:            "0",
		Env:             "test",
		DBDriver:        "sqlite",
		SessionSecret:   "server-test-secret-at-least-32-characters",
		SessionTTLHours: 1,
		FeedLimit:       100,
	}
}

// setupTestServer wires a Server against in-memory SQLite and miniredis.
func setupTestServer(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := database.Open(sqlite.Open(database.SQLiteDSN(":memory:")))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s, err := NewServerWithDeps(testConfig(), db, rdb)
	require.NoError(t, err)
	return s.NewApp(), db
}

// browser keeps cookies between requests the way a real client would.
type browser struct {
	t   *testing.T
	app *fiber.App
	jar *cookiejar.Jar
}

func newBrowser(t *testing.T, app *fiber.App) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, app: app, jar: jar}
}

func (b *browser) do(method, path string, body io.Reader, contentType string) *http.Response {
	b.t.Helper()
	req := httptest.NewRequest(method, testHost+path, body)
	if contentType != "" {
		req.Header.Set(fiber.HeaderContentType, contentType)
	}
	if strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) {
		req.Header.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	}
	for _, ck := range b.jar.Cookies(req.URL) {
		req.AddCookie(ck)
	}

	resp, err := b.app.Test(req, -1)
	require.NoError(b.t, err)
	b.jar.SetCookies(req.URL, resp.Cookies())
	return resp
}

// follow chases redirects and returns the final status and body.
func (b *browser) follow(resp *http.Response) (int, string) {
	b.t.Helper()
	for i := 0; i < 5 && resp.StatusCode >= 300 && resp.StatusCode < 400; i++ {
		resp = b.do(fiber.MethodGet, resp.Header.Get(fiber.HeaderLocation), nil, "")
	}
	return resp.StatusCode, readBody(b.t, resp)
}

func (b *browser) get(path string) (int, string) {
	b.t.Helper()
	return b.follow(b.do(fiber.MethodGet, path, nil, ""))
}

func (b *browser) postForm(path string, values url.Values) *http.Response {
	b.t.Helper()
	return b.do(fiber.MethodPost, path, strings.NewReader(values.Encode()), fiber.MIMEApplicationForm)
}

func (b *browser) postJSON(path, body string) *http.Response {
	b.t.Helper()
	return b.do(fiber.MethodPost, path, strings.NewReader(body), fiber.MIMEApplicationJSON)
}

func (b *browser) signup(username string) *http.Response {
	b.t.Helper()
	return b.postForm("/signup", url.Values{
		"username": {username},
		"email":    {username + "@example.com"},
		"password": {"password"},
	})
}

func (b *browser) login(username, password string) *http.Response {
	b.t.Helper()
	return b.postForm("/login", url.Values{
		"username": {username},
		"password": {password},
	})
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func userByName(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	var user models.User
	require.NoError(t, db.Where("username = ?", username).First(&user).Error)
	return &user
}
