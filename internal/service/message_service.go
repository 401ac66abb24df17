package service

import (
	"context"

	"warbler/internal/models"
	"warbler/internal/observability"
	"warbler/internal/repository"
	"warbler/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultFeedLimit is how many messages the home feed shows.
const DefaultFeedLimit = 100

// MessageService provides message, feed and like logic.
type MessageService struct {
	messageRepo repository.MessageRepository
	likeRepo    repository.LikeRepository
	feedLimit   int
}

// NewMessageService returns a new MessageService. A non-positive feedLimit
// falls back to DefaultFeedLimit.
func NewMessageService(messageRepo repository.MessageRepository, likeRepo repository.LikeRepository, feedLimit int) *MessageService {
	if feedLimit <= 0 {
		feedLimit = DefaultFeedLimit
	}
	return &MessageService{
		messageRepo: messageRepo,
		likeRepo:    likeRepo,
		feedLimit:   feedLimit,
	}
}

// Create posts a message for userID.
func (s *MessageService) Create(ctx context.Context, userID uint, text string) (*models.Message, error) {
	text, err := validation.NormalizeMessage(text)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	message := &models.Message{Text: text, UserID: userID}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}
	observability.MessagesPosted.Inc()
	return message, nil
}

// Get returns the message with its author.
func (s *MessageService) Get(ctx context.Context, id uint) (*models.Message, error) {
	return s.messageRepo.GetByID(ctx, id)
}

// Delete removes a message owned by actorID.
func (s *MessageService) Delete(ctx context.Context, actorID, messageID uint) error {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if message.UserID != actorID {
		return models.NewUnauthorizedError("Access unauthorized.")
	}
	return s.messageRepo.Delete(ctx, messageID)
}

// ForUser returns userID's newest messages.
func (s *MessageService) ForUser(ctx context.Context, userID uint) ([]models.Message, error) {
	return s.messageRepo.ListByUser(ctx, userID, s.feedLimit)
}

// Feed returns the newest messages from the users userID follows.
func (s *MessageService) Feed(ctx context.Context, userID uint) (messages []models.Message, err error) {
	ctx, end := observability.StartSpan(ctx, "messages.feed", attribute.Int("user.id", int(userID)))
	defer func() { end(err) }()

	return s.messageRepo.Feed(ctx, userID, s.feedLimit)
}

// ToggleLike likes the message if userID has not liked it yet, otherwise
// removes the like. The returned bool is true when the message is now liked.
func (s *MessageService) ToggleLike(ctx context.Context, userID, messageID uint) (like *models.Like, liked bool, err error) {
	ctx, end := observability.StartSpan(ctx, "messages.toggle_like", attribute.Int("message.id", int(messageID)))
	defer func() { end(err) }()

	if _, err = s.messageRepo.GetByID(ctx, messageID); err != nil {
		return nil, false, err
	}
	like, liked, err = s.likeRepo.Toggle(ctx, userID, messageID)
	if err != nil {
		return nil, false, err
	}

	action := "unliked"
	if liked {
		action = "liked"
	}
	observability.LikeToggles.WithLabelValues(action).Inc()
	return like, liked, nil
}

// Liked returns every message userID has liked.
func (s *MessageService) Liked(ctx context.Context, userID uint) ([]models.Message, error) {
	return s.messageRepo.LikedBy(ctx, userID)
}

// LikedSet reports which of messages userID has liked.
func (s *MessageService) LikedSet(ctx context.Context, userID uint, messages []models.Message) (map[uint]bool, error) {
	ids := make([]uint, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	liked, err := s.likeRepo.LikedIDs(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	set := make(map[uint]bool, len(liked))
	for _, id := range liked {
		set[id] = true
	}
	return set, nil
}
