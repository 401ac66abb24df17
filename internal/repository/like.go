package repository

import (
	"context"

	"warbler/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository defines persistence operations for likes.
type LikeRepository interface {
	Toggle(ctx context.Context, userID, messageID uint) (*models.Like, bool, error)
	LikedIDs(ctx context.Context, userID uint, messageIDs []uint) ([]uint, error)
	CountByUser(ctx context.Context, userID uint) (int64, error)
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository returns a new LikeRepository implementation.
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

// Toggle flips the (userID, messageID) like inside one transaction. It
// deletes first: a removed row means the message was liked and is now
// unliked. Otherwise the like is inserted with ON CONFLICT DO NOTHING, so two
// concurrent toggles can never leave duplicate edges behind. The returned
// bool is true when the message ends up liked.
func (r *likeRepository) Toggle(ctx context.Context, userID, messageID uint) (*models.Like, bool, error) {
	var like models.Like
	liked := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND message_id = ?", userID, messageID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		insert := models.Like{UserID: userID, MessageID: messageID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Omit(clause.Associations).
			Create(&insert).Error; err != nil {
			return err
		}
		liked = true
		return tx.Where("user_id = ? AND message_id = ?", userID, messageID).First(&like).Error
	})
	if err != nil {
		// The message was deleted after the caller looked it up.
		if isForeignKeyError(err) {
			return nil, false, models.NewNotFoundError("Message", messageID)
		}
		return nil, false, models.NewInternalError(err)
	}
	if !liked {
		return nil, false, nil
	}
	return &like, true, nil
}

// LikedIDs returns the subset of messageIDs that userID has liked.
func (r *likeRepository) LikedIDs(ctx context.Context, userID uint, messageIDs []uint) ([]uint, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var liked []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND message_id IN ?", userID, messageIDs).
		Pluck("message_id", &liked).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return liked, nil
}

func (r *likeRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
