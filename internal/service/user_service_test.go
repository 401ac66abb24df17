package service

import (
	"context"
	"errors"
	"testing"

	"warbler/internal/cache"
	"warbler/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopFollowRepo() *followRepoStub {
	return &followRepoStub{
		countFollowingFn: func(context.Context, uint) (int64, error) { return 0, nil },
		countFollowersFn: func(context.Context, uint) (int64, error) { return 0, nil },
	}
}

func noopMessageRepo() *messageRepoStub {
	return &messageRepoStub{
		countByUserFn: func(context.Context, uint) (int64, error) { return 0, nil },
	}
}

func noopLikeRepo() *likeRepoStub {
	return &likeRepoStub{
		countByUserFn: func(context.Context, uint) (int64, error) { return 0, nil },
	}
}

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })
	return mr
}

func TestUserService_GetUserUsesCache(t *testing.T) {
	mr := withMiniredis(t)

	calls := 0
	repo := &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			calls++
			return &models.User{ID: id, Username: "alice", Password: "hash"}, nil
		},
	}
	svc := NewUserService(repo, noopFollowRepo(), noopMessageRepo(), noopLikeRepo())

	first, err := svc.GetUser(context.Background(), 3)
	require.NoError(t, err)
	second, err := svc.GetUser(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, "alice", first.Username)
	assert.Equal(t, "alice", second.Username)
	assert.Empty(t, second.Password, "password hash must not be cached")
	assert.True(t, mr.Exists(cache.UserKey(3)))
}

func TestUserService_GetUserNotFound(t *testing.T) {
	repo := &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return nil, models.NewNotFoundError("User", id)
		},
	}
	svc := NewUserService(repo, noopFollowRepo(), noopMessageRepo(), noopLikeRepo())

	_, err := svc.GetUser(context.Background(), 99)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestUserService_UpdateProfile(t *testing.T) {
	current := &models.User{ID: 1, Username: "alice", Email: "alice@example.com", Password: hashFor(t, "password")}
	var saved *models.User
	repo := &userRepoStub{
		getByIDFn: func(context.Context, uint) (*models.User, error) {
			copied := *current
			return &copied, nil
		},
		updateFn: func(_ context.Context, u *models.User) error {
			saved = u
			return nil
		},
	}
	svc := NewUserService(repo, noopFollowRepo(), noopMessageRepo(), noopLikeRepo())

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.UpdateProfile(context.Background(), 1, ProfileInput{Username: "alice2", Email: "a@example.com", Password: "nope"})
		assert.ErrorIs(t, err, models.ErrInvalidPassword)
		assert.Nil(t, saved)
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := svc.UpdateProfile(context.Background(), 1, ProfileInput{Username: "alice", Email: "bad", Password: "password"})
		assert.True(t, models.HasCode(err, models.CodeValidation))
	})

	t.Run("success", func(t *testing.T) {
		user, err := svc.UpdateProfile(context.Background(), 1, ProfileInput{
			Username: "alice2",
			Email:    "alice2@example.com",
			Bio:      "  hello  ",
			Location: "Berlin",
			Password: "password",
		})
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Equal(t, "alice2", user.Username)
		assert.Equal(t, "hello", saved.Bio)
		assert.Equal(t, "Berlin", saved.Location)
	})
}

func TestUserService_UpdateProfileWithWarmCache(t *testing.T) {
	withMiniredis(t)

	stored := &models.User{ID: 4, Username: "alice", Email: "alice@example.com", Password: hashFor(t, "password")}
	repo := &userRepoStub{
		getByIDFn: func(context.Context, uint) (*models.User, error) {
			copied := *stored
			return &copied, nil
		},
		updateFn: func(context.Context, *models.User) error { return nil },
	}
	svc := NewUserService(repo, noopFollowRepo(), noopMessageRepo(), noopLikeRepo())

	cached, err := svc.GetUser(context.Background(), 4)
	require.NoError(t, err)
	require.Empty(t, cached.Password)

	user, err := svc.UpdateProfile(context.Background(), 4, ProfileInput{
		Username: "alice",
		Email:    "alice@example.com",
		Bio:      "still me",
		Password: "password",
	})
	require.NoError(t, err)
	assert.Equal(t, "still me", user.Bio)

	_, err = svc.UpdateProfile(context.Background(), 4, ProfileInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "",
	})
	assert.ErrorIs(t, err, models.ErrInvalidPassword)
}

func TestUserService_UpdateProfileTaken(t *testing.T) {
	repo := &userRepoStub{
		getByIDFn: func(context.Context, uint) (*models.User, error) {
			return &models.User{ID: 1, Username: "alice", Password: hashFor(t, "password")}, nil
		},
		updateFn: func(context.Context, *models.User) error { return models.ErrUsernameTaken },
	}
	svc := NewUserService(repo, noopFollowRepo(), noopMessageRepo(), noopLikeRepo())

	_, err := svc.UpdateProfile(context.Background(), 1, ProfileInput{Username: "bob", Email: "b@example.com", Password: "password"})
	assert.ErrorIs(t, err, models.ErrUsernameTaken)
}

func TestUserService_Stats(t *testing.T) {
	follows := noopFollowRepo()
	follows.countFollowingFn = func(context.Context, uint) (int64, error) { return 2, nil }
	follows.countFollowersFn = func(context.Context, uint) (int64, error) { return 5, nil }
	messages := noopMessageRepo()
	messages.countByUserFn = func(context.Context, uint) (int64, error) { return 9, nil }
	likes := noopLikeRepo()
	likes.countByUserFn = func(context.Context, uint) (int64, error) { return 4, nil }

	svc := NewUserService(&userRepoStub{}, follows, messages, likes)
	stats, err := svc.Stats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.UserStats{Messages: 9, Following: 2, Followers: 5, Likes: 4}, *stats)

	boom := errors.New("boom")
	likes.countByUserFn = func(context.Context, uint) (int64, error) { return 0, boom }
	_, err = svc.Stats(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}

func TestUserService_ListUsersPassesQuery(t *testing.T) {
	var gotQuery string
	repo := &userRepoStub{
		searchFn: func(_ context.Context, q string, _ int) ([]models.User, error) {
			gotQuery = q
			return []models.User{{Username: "alice"}}, nil
		},
	}
	svc := NewUserService(repo, noopFollowRepo(), noopMessageRepo(), noopLikeRepo())

	users, err := svc.ListUsers(context.Background(), "ali")
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, "ali", gotQuery)
}

func TestUserService_DeleteAccount(t *testing.T) {
	var deleted uint
	repo := &userRepoStub{
		deleteFn: func(_ context.Context, id uint) error {
			deleted = id
			return nil
		},
	}
	svc := NewUserService(repo, noopFollowRepo(), noopMessageRepo(), noopLikeRepo())

	require.NoError(t, svc.DeleteAccount(context.Background(), 4))
	assert.Equal(t, uint(4), deleted)
}
