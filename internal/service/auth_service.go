// Package service holds Warbler's business logic on top of the repositories.
package service

import (
	"context"
	"strings"
	"sync"

	"warbler/internal/models"
	"warbler/internal/observability"
	"warbler/internal/repository"
	"warbler/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// SignupInput is the signup form.
type SignupInput struct {
	Username string
	Email    string
	Password string

	ImageURL       string
	HeaderImageURL string
	Bio            string
	Location       string
}

// AuthService creates accounts and checks credentials.
type AuthService struct {
	userRepo repository.UserRepository
	cost     int
}

// NewAuthService returns a new AuthService hashing with bcrypt.DefaultCost.
func NewAuthService(userRepo repository.UserRepository) *AuthService {
	return &AuthService{userRepo: userRepo, cost: bcrypt.DefaultCost}
}

// missingUserHash is compared against when the username does not exist so a
// failed login costs the same either way.
var missingUserHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("warbler-missing-user"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return hash
})

// Signup validates the form, hashes the password and stores the user.
// A taken username or email yields models.ErrUsernameTaken.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
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
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateImageURL(in.ImageURL); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateImageURL(in.HeaderImageURL); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username:       in.Username,
		Email:          in.Email,
		Password:       string(hashed),
		ImageURL:       in.ImageURL,
		HeaderImageURL: in.HeaderImageURL,
		Bio:            strings.TrimSpace(in.Bio),
		Location:       strings.TrimSpace(in.Location),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	observability.SignupsTotal.Inc()
	return user, nil
}

// Authenticate returns the user whose password matches. Unknown usernames and
// wrong passwords both yield models.ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}

	if user == nil {
		_ = bcrypt.CompareHashAndPassword(missingUserHash(), []byte(password))
		observability.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, models.ErrInvalidCredentials
	}
	if !checkPassword(user.Password, password) {
		observability.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, models.ErrInvalidCredentials
	}

	observability.LoginsTotal.WithLabelValues("success").Inc()
	return user, nil
}

// checkPassword compares against a hash loaded from the repository. Cached
// users carry no hash and never match.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
