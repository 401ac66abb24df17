package server

import (
	"fmt"

	"warbler/internal/models"

	"github.com/gofiber/fiber/v2"
)

type messageForm struct {
	Text string `json:"text" form:"text"`
}

// NewMessageForm renders the compose page.
func (s *Server) NewMessageForm(c *fiber.Ctx) error {
	if _, err := actingUser(c); err != nil {
		return err
	}
	return s.render(c, "messages/new", fiber.Map{"Form": messageForm{}})
}

// CreateMessage posts a message from a JSON body or a form and answers with
// the created message as JSON.
func (s *Server) CreateMessage(c *fiber.Ctx) error {
	me, err := actingUser(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized, err)
	}

	var form messageForm
	if err := c.BodyParser(&form); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.messageService.Create(c.UserContext(), me.ID, form.Text)
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

// ShowMessage renders a single message.
func (s *Server) ShowMessage(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	message, err := s.messageService.Get(c.UserContext(), id)
	if err != nil {
		return err
	}

	isLiked := false
	if me := currentUser(c); me != nil {
		liked, err := s.messageService.LikedSet(c.UserContext(), me.ID, []models.Message{*message})
		if err != nil {
			return err
		}
		isLiked = liked[message.ID]
	}

	title := "Message"
	if message.User != nil {
		title = "@" + message.User.Username
	}
	return s.render(c, "messages/show", fiber.Map{
		"Title":   title,
		"Message": message,
		"IsLiked": isLiked,
	})
}

// DeleteMessage removes one of the current user's messages.
func (s *Server) DeleteMessage(c *fiber.Ctx) error {
	me, err := actingUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := s.messageService.Delete(c.UserContext(), me.ID, id); err != nil {
		return err
	}
	return c.Redirect(fmt.Sprintf("/users/%d", me.ID))
}

// ToggleLike likes or unlikes a message for the current user. POST and
// DELETE behave the same; the status code tells the caller which way it went.
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	me, err := actingUser(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Message", c.Params("id")))
	}

	like, liked, err := s.messageService.ToggleLike(c.UserContext(), me.ID, id)
	if err != nil {
		return models.RespondWithError(c, models.StatusFor(err), err)
	}
	if liked {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"like": like})
	}
	return c.JSON(fiber.Map{"message": "Deleted"})
}

// LikedMessages lists every message the current user liked.
func (s *Server) LikedMessages(c *fiber.Ctx) error {
	me, err := actingUser(c)
	if err != nil {
		return err
	}

	messages, err := s.messageService.Liked(c.UserContext(), me.ID)
	if err != nil {
		return err
	}
	liked := make(map[uint]bool, len(messages))
	for _, m := range messages {
		liked[m.ID] = true
	}

	return s.render(c, "messages/liked", fiber.Map{
		"Messages": messages,
		"Liked":    liked,
	})
}
