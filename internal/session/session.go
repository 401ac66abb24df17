// Package session keeps the logged-in user in a signed cookie and carries
// one-shot flash messages between requests.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"warbler/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/redis/go-redis/v9"
)

const (
	// CookieName holds the session token.
	CookieName = "session"

	issuer   = "warbler"
	audience = "warbler-web"
)

var (
	// ErrInvalidSession is returned for tokens that fail verification.
	ErrInvalidSession = errors.New("invalid session")
	// ErrRevoked is returned for tokens that were logged out.
	ErrRevoked = errors.New("session revoked")
)

// Claims is what a verified session token carries.
type Claims struct {
	UserID    uint
	ID        string
	ExpiresAt time.Time
}

// Manager issues, verifies and revokes session tokens.
type Manager struct {
	secret  []byte
	ttl     time.Duration
	secure  bool
	rdb     *redis.Client
	flashes *securecookie.SecureCookie
	now     func() time.Time
}

// NewManager returns a Manager signing with secret. rdb may be nil, in which
// case logout only clears the cookie.
func NewManager(secret string, ttl time.Duration, secure bool, rdb *redis.Client) *Manager {
	codec := securecookie.New([]byte(secret), nil)
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &Manager{
		secret:  []byte(secret),
		ttl:     ttl,
		secure:  secure,
		rdb:     rdb,
		flashes: codec,
		now:     time.Now,
	}
}

func revokedKey(jti string) string {
	return "session:revoked:" + jti
}

// Issue signs a token for userID.
func (m *Manager) Issue(userID uint) (string, error) {
	now := m.now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": issuer,
		"aud": audience,
		"exp": now.Add(m.ttl).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse verifies raw and checks that it has not been revoked.
func (m *Manager) Parse(ctx context.Context, raw string) (*Claims, error) {
	var registered jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &registered, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	userID, err := strconv.ParseUint(registered.Subject, 10, 32)
	if err != nil || userID == 0 {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidSession)
	}

	claims := &Claims{UserID: uint(userID), ID: registered.ID}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}

	if m.isRevoked(ctx, claims.ID) {
		return nil, ErrRevoked
	}
	return claims, nil
}

func (m *Manager) isRevoked(ctx context.Context, jti string) bool {
	if m.rdb == nil || jti == "" {
		return false
	}
	n, err := m.rdb.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		middleware.Logger.WarnContext(ctx, "session revocation check failed", slog.String("error", err.Error()))
		return false
	}
	return n > 0
}

// Revoke blocks the token until it would have expired anyway.
func (m *Manager) Revoke(ctx context.Context, claims *Claims) error {
	if m.rdb == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	return m.rdb.Set(ctx, revokedKey(claims.ID), "1", ttl).Err()
}

// Login issues a token for userID and stores it in the session cookie.
func (m *Manager) Login(c *fiber.Ctx, userID uint) error {
	token, err := m.Issue(userID)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  m.now().Add(m.ttl),
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

// Current returns the claims of the request's session, if it has a valid one.
func (m *Manager) Current(c *fiber.Ctx) (*Claims, bool) {
	raw := c.Cookies(CookieName)
	if raw == "" {
		return nil, false
	}
	claims, err := m.Parse(c.UserContext(), raw)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// Logout revokes the current token, if any, and clears the cookie.
func (m *Manager) Logout(c *fiber.Ctx) error {
	var err error
	if claims, ok := m.Current(c); ok {
		err = m.Revoke(c.UserContext(), claims)
	}
	m.Clear(c)
	return err
}

// Clear drops the session cookie without revoking it.
func (m *Manager) Clear(c *fiber.Ctx) {
	m.expireCookie(c, CookieName)
}

func (m *Manager) expireCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
