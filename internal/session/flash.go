package session

import (
	"github.com/gofiber/fiber/v2"
)

const (
	// FlashCookieName holds flashes waiting for the next page render.
	FlashCookieName = "flash"

	flashLocals = "session.flashes"
)

// Flash categories used by the templates.
const (
	CategorySuccess = "success"
	CategoryDanger  = "danger"
)

// Flash is a one-shot notice shown on the next rendered page.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// AddFlash queues a flash. It is visible to Flashes on this request and, via
// the flash cookie, on the next one.
func (m *Manager) AddFlash(c *fiber.Ctx, category, message string) {
	pending := append(m.pending(c), Flash{Category: category, Message: message})
	c.Locals(flashLocals, pending)

	encoded, err := m.flashes.Encode(FlashCookieName, pending)
	if err != nil {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     FlashCookieName,
		Value:    encoded,
		Path:     "/",
		HTTPOnly: true,
		Secure:   m.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// pending returns flashes carried in by the request cookie plus any added
// during this request.
func (m *Manager) pending(c *fiber.Ctx) []Flash {
	if queued, ok := c.Locals(flashLocals).([]Flash); ok {
		return queued
	}

	var incoming []Flash
	if raw := c.Cookies(FlashCookieName); raw != "" {
		if err := m.flashes.Decode(FlashCookieName, raw, &incoming); err != nil {
			incoming = nil
		}
	}
	c.Locals(flashLocals, incoming)
	return incoming
}

// Flashes consumes every queued flash.
func (m *Manager) Flashes(c *fiber.Ctx) []Flash {
	out := m.pending(c)
	if len(out) == 0 && c.Cookies(FlashCookieName) == "" {
		return nil
	}
	c.Locals(flashLocals, []Flash{})
	m.expireCookie(c, FlashCookieName)
	return out
}
