package server

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"warbler/internal/middleware"
	"warbler/internal/models"
	"warbler/internal/session"

	"github.com/gofiber/fiber/v2"
)

const localsCurrentUser = "currentUser"

var errAccessUnauthorized = models.NewUnauthorizedError("Access unauthorized.")

// LoadUser resolves the session cookie once per request and stores the user
// in the request locals. A bad or stale cookie is cleared.
func (s *Server) LoadUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if skipUserLookup(c.Path()) || c.Cookies(session.CookieName) == "" {
			return c.Next()
		}

		claims, ok := s.sessions.Current(c)
		if !ok {
			s.sessions.Clear(c)
			return c.Next()
		}

		user, err := s.userService.GetUser(c.UserContext(), claims.UserID)
		if err != nil {
			if models.HasCode(err, models.CodeNotFound) {
				s.sessions.Clear(c)
				return c.Next()
			}
			return err
		}

		c.Locals(localsCurrentUser, user)
		c.Locals("userID", user.ID)
		c.SetUserContext(middleware.WithUserID(c.UserContext(), user.ID))
		return c.Next()
	}
}

// skipUserLookup reports whether path never needs the current user. Health checks
// must keep answering while the users table is unreachable.
func skipUserLookup(path string) bool {
	return strings.HasPrefix(path, "/static/") || strings.HasPrefix(path, "/health/")
}

// AuthRequired stops anonymous requests before they reach the handler.
// Pages get a flash and a redirect home; JSON callers get a 401.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if currentUser(c) != nil {
			return c.Next()
		}
		if wantsJSON(c) {
			return models.RespondWithError(c, fiber.StatusUnauthorized, errAccessUnauthorized)
		}
		s.sessions.AddFlash(c, session.CategoryDanger, errAccessUnauthorized.Message)
		return c.Redirect("/")
	}
}

func currentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(localsCurrentUser).(*models.User)
	return user
}

// actingUser returns the logged-in user or an UNAUTHORIZED error. Protected
// handlers must branch on the error before touching any state.
func actingUser(c *fiber.Ctx) (*models.User, error) {
	if user := currentUser(c); user != nil {
		return user, nil
	}
	return nil, errAccessUnauthorized
}

// parseID reads a positive integer route parameter. Anything else is treated
// as a missing page.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 32)
	if err != nil || id == 0 {
		return 0, fiber.ErrNotFound
	}
	return uint(id), nil
}

func wantsJSON(c *fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON) ||
		strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON)
}

type pageMeta struct {
	title     string
	bodyClass string
}

// pages holds the fixed <title> and body class of each page. Profile and
// message pages set their Title from the data.
var pages = map[string]pageMeta{
	"404":            {title: "Page not found"},
	"error":          {title: "Something went wrong"},
	"home-anon":      {bodyClass: "homepage"},
	"users/signup":   {title: "Sign up", bodyClass: "onboarding"},
	"users/login":    {title: "Log in", bodyClass: "onboarding"},
	"users/index":    {title: "Users"},
	"users/edit":     {title: "Edit profile"},
	"messages/new":   {title: "New message"},
	"messages/liked": {title: "Liked messages"},
}

// render executes a page with the values every layout needs.
func (s *Server) render(c *fiber.Ctx, name string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	meta := pages[name]
	if _, ok := data["Title"]; !ok {
		data["Title"] = meta.title
	}
	data["BodyClass"] = meta.bodyClass
	data["CurrentUser"] = currentUser(c)
	data["Flashes"] = s.sessions.Flashes(c)
	if _, ok := data["Liked"]; !ok {
		data["Liked"] = map[uint]bool{}
	}
	if _, ok := data["FollowingSet"]; !ok {
		data["FollowingSet"] = map[uint]bool{}
	}
	return c.Render(name, data)
}

func (s *Server) flash(c *fiber.Ctx, category, message string) {
	s.sessions.AddFlash(c, category, message)
}

// NotFound renders the 404 page for unmatched routes.
func (s *Server) NotFound(c *fiber.Ctx) error {
	return fiber.ErrNotFound
}

// errorHandler turns handler errors into pages, redirects or JSON.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		if status != fiber.StatusNotFound {
			return c.Status(status).SendString(fe.Message)
		}
	}

	if wantsJSON(c) {
		if status == fiber.StatusNotFound && fe != nil {
			err = models.NewNotFoundError("Resource", c.Path())
		}
		return models.RespondWithError(c, status, err)
	}

	switch status {
	case fiber.StatusNotFound:
		c.Status(fiber.StatusNotFound)
		return s.render(c, "404", nil)
	case fiber.StatusUnauthorized:
		s.flash(c, session.CategoryDanger, errAccessUnauthorized.Message)
		return c.Redirect("/")
	case fiber.StatusBadRequest:
		appErr, _ := models.AsAppError(err)
		s.flash(c, session.CategoryDanger, appErr.Message)
		return c.Redirect(backOr(c, "/"))
	}

	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	c.Status(fiber.StatusInternalServerError)
	if rerr := s.render(c, "error", nil); rerr != nil {
		return c.SendString("Internal Server Error")
	}
	return nil
}

// backOr returns the same-site Referer path, or fallback.
func backOr(c *fiber.Ctx, fallback string) string {
	ref := c.Get(fiber.HeaderReferer)
	if ref == "" {
		return fallback
	}
	host := c.Protocol() + "://" + c.Hostname()
	if strings.HasPrefix(ref, host+"/") {
		return strings.TrimPrefix(ref, host)
	}
	return fallback
}
