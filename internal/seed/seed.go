package seed

import (
	"fmt"
	"log/slog"

	"warbler/internal/middleware"
	"warbler/internal/models"

	"gorm.io/gorm"
)

// Summary counts the rows a seeding run created.
type Summary struct {
	Users    int
	Messages int
	Follows  int
	Likes    int
}

// Seeder fills a database with demo data.
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a Seeder for db.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// ClearAll removes every row, children first.
func (s *Seeder) ClearAll() error {
	tx := s.db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{&models.Like{}, &models.Follow{}, &models.Message{}, &models.User{}} {
		if err := tx.Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	middleware.Logger.Info("Cleared existing data")
	return nil
}

// SeedGraph creates opts.Users fake users, their messages, a random follow
// graph and random likes.
func (s *Seeder) SeedGraph(opts Options) (Summary, error) {
	var sum Summary
	factory, err := NewFactory(s.db, opts)
	if err != nil {
		return sum, err
	}

	users := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		u, err := factory.CreateUser()
		if err != nil {
			return sum, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	sum.Users = len(users)

	var messages []*models.Message
	for _, u := range users {
		for i := 0; i < opts.MessagesPerUser; i++ {
			m, err := factory.CreateMessage(u)
			if err != nil {
				return sum, fmt.Errorf("create message: %w", err)
			}
			messages = append(messages, m)
		}
	}
	sum.Messages = len(messages)

	for i, u := range users {
		for _, j := range factory.pick(len(users), opts.FollowsPerUser, i) {
			if err := factory.CreateFollow(u, users[j]); err != nil {
				return sum, fmt.Errorf("create follow: %w", err)
			}
			sum.Follows++
		}
	}

	for _, u := range users {
		for _, j := range factory.pick(len(messages), opts.LikesPerUser, -1) {
			if err := factory.CreateLike(u, messages[j]); err != nil {
				return sum, fmt.Errorf("create like: %w", err)
			}
			sum.Likes++
		}
	}

	middleware.Logger.Info("Seeded social graph",
		slog.Int("users", sum.Users),
		slog.Int("messages", sum.Messages),
		slog.Int("follows", sum.Follows),
		slog.Int("likes", sum.Likes),
	)
	return sum, nil
}
