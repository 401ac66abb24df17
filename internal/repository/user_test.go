package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"warbler/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := createUser(t, db, "alice")
	assert.NotZero(t, user.ID)
	assert.Equal(t, models.DefaultImageURL, user.ImageURL)
	assert.Equal(t, models.DefaultHeaderImageURL, user.HeaderImageURL)

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	byName, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, user.ID, byName.ID)

	missing, err := repo.GetByUsername(ctx, "nobody")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	_, err = repo.GetByID(ctx, 9999)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	createUser(t, db, "alice")

	err := repo.Create(ctx, &models.User{Username: "alice", Email: "other@example.com", Password: "hash"})
	assert.ErrorIs(t, err, models.ErrUsernameTaken)

	err = repo.Create(ctx, &models.User{Username: "alice2", Email: "alice@example.com", Password: "hash"})
	assert.ErrorIs(t, err, models.ErrUsernameTaken)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUserRepository_CreateDuplicatePostgres(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: `duplicate key value violates unique constraint "idx_users_username"`})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.User{Username: "alice", Email: "a@example.com", Password: "hash"})
	assert.ErrorIs(t, err, models.ErrUsernameTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateInternalError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.User{Username: "alice", Email: "a@example.com", Password: "hash"})
	assert.True(t, models.HasCode(err, models.CodeInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateDuplicate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	bob.Username = "alice"
	assert.ErrorIs(t, repo.Update(ctx, bob), models.ErrUsernameTaken)

	bob.Username = "robert"
	bob.Bio = "hi"
	require.NoError(t, repo.Update(ctx, bob))

	got, err := repo.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "robert", got.Username)
	assert.Equal(t, "hi", got.Bio)
}

func TestUserRepository_Search(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	createUser(t, db, "carol")
	createUser(t, db, "Alice")
	createUser(t, db, "malice_x")
	createUser(t, db, "bob")

	all, err := repo.Search(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	found, err := repo.Search(ctx, "ALIC", 0)
	require.NoError(t, err)
	names := []string{}
	for _, u := range found {
		names = append(names, u.Username)
	}
	assert.ElementsMatch(t, []string{"Alice", "malice_x"}, names)

	// Wildcards in the query are matched literally.
	found, err = repo.Search(ctx, "_", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "malice_x", found[0].Username)

	found, err = repo.Search(ctx, "%", 0)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestUserRepository_DeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	follow(t, db, alice, bob)
	follow(t, db, bob, alice)

	aliceMsg := createMessage(t, db, alice, "from alice", time.Now())
	bobMsg := createMessage(t, db, bob, "from bob", time.Now())

	likes := NewLikeRepository(db)
	_, _, err := likes.Toggle(ctx, bob.ID, aliceMsg.ID)
	require.NoError(t, err)
	_, _, err = likes.Toggle(ctx, alice.ID, bobMsg.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, alice.ID))

	var count int64
	db.Model(&models.User{}).Count(&count)
	assert.Equal(t, int64(1), count)
	db.Model(&models.Message{}).Count(&count)
	assert.Equal(t, int64(1), count)
	db.Model(&models.Follow{}).Count(&count)
	assert.Equal(t, int64(0), count)
	db.Model(&models.Like{}).Count(&count)
	assert.Equal(t, int64(0), count)

	err = repo.Delete(ctx, alice.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}
