package server

import (
	"errors"
	"fmt"
	"log/slog"

	"warbler/internal/middleware"
	"warbler/internal/models"
	"warbler/internal/service"
	"warbler/internal/session"

	"github.com/gofiber/fiber/v2"
)

type loginForm struct {
	Username string
}

// SignupForm renders the signup page.
func (s *Server) SignupForm(c *fiber.Ctx) error {
	return s.render(c, "users/signup", fiber.Map{"Form": service.SignupInput{}})
}

// Signup creates the account and logs the new user in. Form problems
// re-render the page with a flash.
func (s *Server) Signup(c *fiber.Ctx) error {
	form := service.SignupInput{
		Username: c.FormValue("username"),
		Email:    c.FormValue("email"),
		Password: c.FormValue("password"),
		ImageURL: c.FormValue("image_url"),
	}

	user, err := s.authService.Signup(c.UserContext(), form)
	if err != nil {
		if !models.HasCode(err, models.CodeValidation) {
			return err
		}
		appErr, _ := models.AsAppError(err)
		s.flash(c, session.CategoryDanger, appErr.Message)
		form.Password = ""
		return s.render(c, "users/signup", fiber.Map{"Form": form})
	}

	if err := s.sessions.Login(c, user.ID); err != nil {
		return err
	}
	return c.Redirect("/")
}

// LoginForm renders the login page.
func (s *Server) LoginForm(c *fiber.Ctx) error {
	return s.render(c, "users/login", fiber.Map{"Form": loginForm{}})
}

// Login checks the credentials and starts a session.
func (s *Server) Login(c *fiber.Ctx) error {
	username := c.FormValue("username")

	user, err := s.authService.Authenticate(c.UserContext(), username, c.FormValue("password"))
	if errors.Is(err, models.ErrInvalidCredentials) {
		s.flash(c, session.CategoryDanger, models.ErrInvalidCredentials.Message)
		return s.render(c, "users/login", fiber.Map{"Form": loginForm{Username: username}})
	}
	if err != nil {
		return err
	}

	if err := s.sessions.Login(c, user.ID); err != nil {
		return err
	}
	s.flash(c, session.CategorySuccess, fmt.Sprintf("Hello, %s!", user.Username))
	return c.Redirect("/")
}

// Logout ends the session.
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.sessions.Logout(c); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "failed to revoke session", slog.String("error", err.Error()))
	}
	s.flash(c, session.CategorySuccess, "See you later, alligator!!!")
	return c.Redirect("/login")
}
