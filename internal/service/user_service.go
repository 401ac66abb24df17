package service

import (
	"context"
	"strings"

	"warbler/internal/cache"
	"warbler/internal/models"
	"warbler/internal/repository"
	"warbler/internal/validation"
)

// ProfileInput is the profile edit form. Password is the account's current
// password and is only used to confirm the edit.
type ProfileInput struct {
	Username       string
	Email          string
	ImageURL       string
	HeaderImageURL string
	Bio            string
	Location       string
	Password       string
}

// UserService provides user-related business logic.
type UserService struct {
	userRepo    repository.UserRepository
	followRepo  repository.FollowRepository
	messageRepo repository.MessageRepository
	likeRepo    repository.LikeRepository
}

// NewUserService returns a new UserService.
func NewUserService(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	messageRepo repository.MessageRepository,
	likeRepo repository.LikeRepository,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		followRepo:  followRepo,
		messageRepo: messageRepo,
		likeRepo:    likeRepo,
	}
}

// GetUser loads a user through the Redis cache. The cached copy carries no
// password hash.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		found, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		user = *found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns all users, or those whose username contains query.
func (s *UserService) ListUsers(ctx context.Context, query string) ([]models.User, error) {
	return s.userRepo.Search(ctx, query, 0)
}

// UpdateProfile applies in to the acting user after re-checking their
// password. The user is reloaded from the repository because cached copies
// omit the password hash.
func (s *UserService) UpdateProfile(ctx context.Context, actorID uint, in ProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !checkPassword(user.Password, in.Password) {
		return nil, models.ErrInvalidPassword
	}

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.HeaderImageURL = strings.TrimSpace(in.HeaderImageURL)

	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateImageURL(in.ImageURL); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateImageURL(in.HeaderImageURL); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	user.Username = in.Username
	user.Email = in.Email
	user.ImageURL = in.ImageURL
	user.HeaderImageURL = in.HeaderImageURL
	user.Bio = strings.TrimSpace(in.Bio)
	user.Location = strings.TrimSpace(in.Location)

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteAccount removes the user and everything attached to them.
func (s *UserService) DeleteAccount(ctx context.Context, userID uint) error {
	return s.userRepo.Delete(ctx, userID)
}

// Stats gathers the profile header counters.
func (s *UserService) Stats(ctx context.Context, userID uint) (*models.UserStats, error) {
	var stats models.UserStats
	var err error

	if stats.Messages, err = s.messageRepo.CountByUser(ctx, userID); err != nil {
		return nil, err
	}
	if stats.Following, err = s.followRepo.CountFollowing(ctx, userID); err != nil {
		return nil, err
	}
	if stats.Followers, err = s.followRepo.CountFollowers(ctx, userID); err != nil {
		return nil, err
	}
	if stats.Likes, err = s.likeRepo.CountByUser(ctx, userID); err != nil {
		return nil, err
	}
	return &stats, nil
}
