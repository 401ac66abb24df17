package seed

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"time"

	"warbler/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed fixtures/demo.yml
var demoFixture []byte

// Fixture is a hand-written social graph. Users are referenced by username
// and messages by their Key.
type Fixture struct {
	Users    []FixtureUser    `yaml:"users"`
	Messages []FixtureMessage `yaml:"messages"`
	Follows  []FixtureFollow  `yaml:"follows"`
	Likes    []FixtureLike    `yaml:"likes"`
}

type FixtureUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Bio      string `yaml:"bio"`
	Location string `yaml:"location"`
	ImageURL string `yaml:"image_url"`
}

type FixtureMessage struct {
	Key        string `yaml:"key"`
	Author     string `yaml:"author"`
	Text       string `yaml:"text"`
	MinutesAgo int    `yaml:"minutes_ago"`
}

type FixtureFollow struct {
	Follower string `yaml:"follower"`
	Followed string `yaml:"followed"`
}

type FixtureLike struct {
	User    string `yaml:"user"`
	Message string `yaml:"message"`
}

// DemoFixture returns the built-in demo graph.
func DemoFixture() (*Fixture, error) {
	return ParseFixture(demoFixture)
}

// LoadFixture reads a YAML fixture from path.
func LoadFixture(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(raw)
}

// ParseFixture decodes and checks a YAML fixture.
func ParseFixture(raw []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

func (fx *Fixture) validate() error {
	users := make(map[string]bool, len(fx.Users))
	for _, u := range fx.Users {
		if u.Username == "" || u.Email == "" || u.Password == "" {
			return fmt.Errorf("fixture user %q needs username, email and password", u.Username)
		}
		if users[u.Username] {
			return fmt.Errorf("fixture user %q listed twice", u.Username)
		}
		users[u.Username] = true
	}

	keys := make(map[string]bool, len(fx.Messages))
	for _, m := range fx.Messages {
		if !users[m.Author] {
			return fmt.Errorf("fixture message %q: unknown author %q", m.Key, m.Author)
		}
		if m.Text == "" || len([]rune(m.Text)) > models.MaxMessageLength {
			return fmt.Errorf("fixture message %q: text must be 1-%d characters", m.Key, models.MaxMessageLength)
		}
		if m.Key != "" {
			if keys[m.Key] {
				return fmt.Errorf("fixture message key %q listed twice", m.Key)
			}
			keys[m.Key] = true
		}
	}

	for _, f := range fx.Follows {
		if !users[f.Follower] || !users[f.Followed] {
			return fmt.Errorf("fixture follow %s -> %s: unknown user", f.Follower, f.Followed)
		}
		if f.Follower == f.Followed {
			return fmt.Errorf("fixture follow: %s cannot follow themselves", f.Follower)
		}
	}

	for _, l := range fx.Likes {
		if !users[l.User] {
			return fmt.Errorf("fixture like: unknown user %q", l.User)
		}
		if !keys[l.Message] {
			return fmt.Errorf("fixture like: unknown message %q", l.Message)
		}
	}
	return nil
}

// ApplyFixture inserts fx in a single transaction. cost is the bcrypt cost
// used for fixture passwords; zero means bcrypt.DefaultCost.
func (s *Seeder) ApplyFixture(fx *Fixture, cost int) (Summary, error) {
	var sum Summary
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	now := time.Now().UTC()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		factory := &Factory{db: tx}
		users := make(map[string]*models.User, len(fx.Users))
		for _, fu := range fx.Users {
			hash, err := bcrypt.GenerateFromPassword([]byte(fu.Password), cost)
			if err != nil {
				return fmt.Errorf("hash password for %s: %w", fu.Username, err)
			}
			u := &models.User{
				Username: fu.Username,
				Email:    fu.Email,
				Password: string(hash),
				Bio:      fu.Bio,
				Location: fu.Location,
				ImageURL: fu.ImageURL,
			}
			if err := tx.Create(u).Error; err != nil {
				return fmt.Errorf("create user %s: %w", fu.Username, err)
			}
			users[fu.Username] = u
		}

		messages := make(map[string]*models.Message, len(fx.Messages))
		for _, fm := range fx.Messages {
			m := &models.Message{
				Text:      fm.Text,
				UserID:    users[fm.Author].ID,
				Timestamp: now.Add(-time.Duration(fm.MinutesAgo) * time.Minute),
			}
			if err := tx.Create(m).Error; err != nil {
				return fmt.Errorf("create message %q: %w", fm.Key, err)
			}
			if fm.Key != "" {
				messages[fm.Key] = m
			}
		}

		for _, ff := range fx.Follows {
			if err := factory.CreateFollow(users[ff.Follower], users[ff.Followed]); err != nil {
				return fmt.Errorf("create follow: %w", err)
			}
		}
		for _, fl := range fx.Likes {
			if err := factory.CreateLike(users[fl.User], messages[fl.Message]); err != nil {
				return fmt.Errorf("create like: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return sum, err
	}

	sum = Summary{
		Users:    len(fx.Users),
		Messages: len(fx.Messages),
		Follows:  len(fx.Follows),
		Likes:    len(fx.Likes),
	}
	return sum, nil
}
