package server

import (
	"errors"
	"fmt"

	"warbler/internal/models"
	"warbler/internal/service"
	"warbler/internal/session"

	"github.com/gofiber/fiber/v2"
)

// Homepage shows the landing page to visitors and the followee feed to
// logged-in users.
func (s *Server) Homepage(c *fiber.Ctx) error {
	me := currentUser(c)
	if me == nil {
		return s.render(c, "home-anon", nil)
	}

	ctx := c.UserContext()
	feed, err := s.messageService.Feed(ctx, me.ID)
	if err != nil {
		return err
	}
	liked, err := s.messageService.LikedSet(ctx, me.ID, feed)
	if err != nil {
		return err
	}
	stats, err := s.userService.Stats(ctx, me.ID)
	if err != nil {
		return err
	}

	return s.render(c, "home", fiber.Map{
		"Messages": feed,
		"Liked":    liked,
		"Stats":    stats,
	})
}

// ListUsers lists everyone, or the users matching ?q=.
func (s *Server) ListUsers(c *fiber.Ctx) error {
	query := c.Query("q")
	users, err := s.userService.ListUsers(c.UserContext(), query)
	if err != nil {
		return err
	}

	data := fiber.Map{"Users": users, "Query": query}
	if me := currentUser(c); me != nil {
		set, err := s.followService.FollowingSet(c.UserContext(), me.ID)
		if err != nil {
			return err
		}
		data["FollowingSet"] = set
	}
	return s.render(c, "users/index", data)
}

// profileData loads what every profile page shows in its header.
func (s *Server) profileData(c *fiber.Ctx) (fiber.Map, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}

	ctx := c.UserContext()
	user, err := s.userService.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.userService.Stats(ctx, id)
	if err != nil {
		return nil, err
	}

	data := fiber.Map{
		"Title":       "@" + user.Username,
		"User":        user,
		"Stats":       stats,
		"IsSelf":      false,
		"IsFollowing": false,
	}
	if me := currentUser(c); me != nil {
		data["IsSelf"] = me.ID == user.ID
		following, err := s.followService.FollowingSet(ctx, me.ID)
		if err != nil {
			return nil, err
		}
		data["FollowingSet"] = following
		data["IsFollowing"] = following[user.ID]
	}
	return data, nil
}

// ShowUser renders a profile with the user's newest messages.
func (s *Server) ShowUser(c *fiber.Ctx) error {
	data, err := s.profileData(c)
	if err != nil {
		return err
	}
	user := data["User"].(*models.User)

	messages, err := s.messageService.ForUser(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	data["Messages"] = messages

	if me := currentUser(c); me != nil {
		liked, err := s.messageService.LikedSet(c.UserContext(), me.ID, messages)
		if err != nil {
			return err
		}
		data["Liked"] = liked
	}
	return s.render(c, "users/show", data)
}

// ShowFollowing lists the users a profile follows.
func (s *Server) ShowFollowing(c *fiber.Ctx) error {
	if _, err := actingUser(c); err != nil {
		return err
	}
	data, err := s.profileData(c)
	if err != nil {
		return err
	}
	user := data["User"].(*models.User)

	users, err := s.followService.Following(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	data["Users"] = users
	data["Title"] = "@" + user.Username + " is following"
	return s.render(c, "users/following", data)
}

// ShowFollowers lists the users following a profile.
func (s *Server) ShowFollowers(c *fiber.Ctx) error {
	if _, err := actingUser(c); err != nil {
		return err
	}
	data, err := s.profileData(c)
	if err != nil {
		return err
	}
	user := data["User"].(*models.User)

	users, err := s.followService.Followers(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	data["Users"] = users
	data["Title"] = "@" + user.Username + "'s followers"
	return s.render(c, "users/followers", data)
}

// Follow makes the current user follow another user.
func (s *Server) Follow(c *fiber.Ctx) error {
	me, err := actingUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := s.followService.Follow(c.UserContext(), me.ID, id); err != nil {
		return err
	}
	return c.Redirect(fmt.Sprintf("/users/%d/following", me.ID))
}

// StopFollowing removes a follow.
func (s *Server) StopFollowing(c *fiber.Ctx) error {
	me, err := actingUser(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := s.followService.Unfollow(c.UserContext(), me.ID, id); err != nil {
		return err
	}
	return c.Redirect(fmt.Sprintf("/users/%d/following", me.ID))
}

func profileFormFor(user *models.User) service.ProfileInput {
	return service.ProfileInput{
		Username:       user.Username,
		Email:          user.Email,
		ImageURL:       user.ImageURL,
		HeaderImageURL: user.HeaderImageURL,
		Bio:            user.Bio,
		Location:       user.Location,
	}
}

// EditProfileForm renders the profile form filled with the current values.
func (s *Server) EditProfileForm(c *fiber.Ctx) error {
	me, err := actingUser(c)
	if err != nil {
		return err
	}
	return s.render(c, "users/edit", fiber.Map{"Form": profileFormFor(me)})
}

// EditProfile applies the profile form. The current password must match.
func (s *Server) EditProfile(c *fiber.Ctx) error {
	me, err := actingUser(c)
	if err != nil {
		return err
	}

	form := service.ProfileInput{
		Username:       c.FormValue("username"),
		Email:          c.FormValue("email"),
		ImageURL:       c.FormValue("image_url"),
		HeaderImageURL: c.FormValue("header_image_url"),
		Bio:            c.FormValue("bio"),
		Location:       c.FormValue("location"),
		Password:       c.FormValue("password"),
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), me.ID, form)
	switch {
	case errors.Is(err, models.ErrInvalidPassword):
		s.flash(c, session.CategoryDanger, models.ErrInvalidPassword.Message)
		return c.Redirect("/")
	case models.HasCode(err, models.CodeValidation):
		appErr, _ := models.AsAppError(err)
		s.flash(c, session.CategoryDanger, appErr.Message)
		form.Password = ""
		return s.render(c, "users/edit", fiber.Map{"Form": form})
	case err != nil:
		return err
	}

	return c.Redirect(fmt.Sprintf("/users/%d", user.ID))
}

// DeleteAccount removes the current user and logs them out.
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	me, err := actingUser(c)
	if err != nil {
		return err
	}

	if err := s.userService.DeleteAccount(c.UserContext(), me.ID); err != nil {
		return err
	}
	if err := s.sessions.Logout(c); err != nil {
		return err
	}
	return c.Redirect("/signup")
}
