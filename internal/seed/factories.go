// Package seed creates demo and test data for the warbler database. These
// helpers are meant for development and tests only.
package seed

import (
	"fmt"
	"strings"
	"time"

	"warbler/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is the password of every generated account.
const DefaultPassword = "password123"

// Options tunes the generated social graph.
type Options struct {
	Users           int
	MessagesPerUser int
	FollowsPerUser  int
	LikesPerUser    int
	// MaxDays spreads message timestamps over this many past days.
	MaxDays int
	// Seed makes the fake data reproducible when non-zero.
	Seed int64
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Factory builds domain entities and persists them.
type Factory struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
	hash  string
	taken map[string]bool
}

// NewFactory creates a Factory bound to db. The shared password hash is
// computed once.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 30
	}
	return &Factory{
		db:    db,
		opts:  opts,
		faker: gofakeit.New(opts.Seed),
		hash:  string(hash),
		taken: make(map[string]bool),
	}, nil
}

// CreateUser persists a fake user. Overrides run before the insert.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	username := f.username()
	user := &models.User{
		Username: username,
		Email:    username + "@" + f.faker.DomainName(),
		Password: f.hash,
		Bio:      f.faker.HipsterSentence(8),
		Location: fmt.Sprintf("%s, %s", f.faker.City(), f.faker.StateAbr()),
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateMessage persists a fake message by author with a timestamp in the
// last MaxDays days.
func (f *Factory) CreateMessage(author *models.User, overrides ...func(*models.Message)) (*models.Message, error) {
	msg := &models.Message{
		Text:      truncate(f.faker.HipsterSentence(f.faker.Number(4, 18)), models.MaxMessageLength),
		UserID:    author.ID,
		Timestamp: f.pastTime(),
	}
	for _, override := range overrides {
		override(msg)
	}
	if err := f.db.Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// CreateFollow makes follower follow followed. Existing edges are kept.
func (f *Factory) CreateFollow(follower, followed *models.User) error {
	return f.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Follow{
		UserFollowingID:     follower.ID,
		UserBeingFollowedID: followed.ID,
	}).Error
}

// CreateLike records that user likes msg. Existing likes are kept.
func (f *Factory) CreateLike(user *models.User, msg *models.Message) error {
	return f.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Like{
		UserID:    user.ID,
		MessageID: msg.ID,
	}).Error
}

// username returns a fake username not handed out before by this factory.
func (f *Factory) username() string {
	for {
		name := strings.ToLower(truncate(f.faker.Username(), 26))
		name = fmt.Sprintf("%s%d", name, f.faker.Number(100, 999))
		if !f.taken[name] {
			f.taken[name] = true
			return name
		}
	}
}

func (f *Factory) pastTime() time.Time {
	back := time.Duration(f.faker.Number(0, f.opts.MaxDays*24*60)) * time.Minute
	return time.Now().UTC().Add(-back)
}

// pick returns n distinct indexes in [0, size) other than skip.
func (f *Factory) pick(size, n, skip int) []int {
	candidates := make([]int, 0, size)
	for i := 0; i < size; i++ {
		if i != skip {
			candidates = append(candidates, i)
		}
	}
	f.faker.ShuffleInts(candidates)
	if n > len(candidates) {
		n = len(candidates)
	}
	return candidates[:n]
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}
