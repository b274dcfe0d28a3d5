package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"sportclub/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, id int64) (*models.Facility, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Facility), args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, f *models.Facility) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func TestFailoverFacilityCache(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverFacilityCache(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		f := &models.Facility{ID: 1}
		primary.On("Get", ctx, int64(1)).Return(f, nil).Once()

		got, err := repo.Get(ctx, 1)
		assert.NoError(t, err)
		assert.Equal(t, f, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		f := &models.Facility{ID: 2}
		primary.On("Get", ctx, int64(2)).Return(nil, errors.New("fail")).Once()
		fallback.On("Get", ctx, int64(2)).Return(f, nil).Once()

		got, err := repo.Get(ctx, 2)
		assert.NoError(t, err)
		assert.Equal(t, f, got)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("Get", ctx, int64(3)).Return(nil, nil).Once()

		got, err := repo.Get(ctx, 3)
		assert.NoError(t, err)
		assert.Nil(t, got)
		primary.AssertNotCalled(t, "Get", ctx, int64(3))
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now().Add(-2 * time.Minute)

		f := &models.Facility{ID: 4}
		primary.On("Get", ctx, int64(4)).Return(f, nil).Once()

		got, err := repo.Get(ctx, 4)
		assert.NoError(t, err)
		assert.Equal(t, f, got)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now().Add(-2 * time.Minute)

		primary.On("Get", ctx, int64(44)).Return(nil, errors.New("still fail")).Once()
		fallback.On("Get", ctx, int64(44)).Return(nil, nil).Once()

		_, err := repo.Get(ctx, 44)
		assert.NoError(t, err)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("SetFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		f := &models.Facility{ID: 5}
		primary.On("Set", ctx, f).Return(errors.New("fail")).Once()
		fallback.On("Set", ctx, f).Return(nil).Once()

		assert.NoError(t, repo.Set(ctx, f))
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("InvalidateBothTiers", func(t *testing.T) {
		primary.On("Invalidate", ctx, int64(6)).Return(nil).Once()
		fallback.On("Invalidate", ctx, int64(6)).Return(nil).Once()

		assert.NoError(t, repo.Invalidate(ctx, 6))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}

func TestFailoverFacilityCache_RetriesFailedInvalidate(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverFacilityCache(primary, fallback, &logger)
	ctx := context.Background()

	fallback.On("Invalidate", ctx, int64(7)).Return(nil).Once()
	primary.On("Invalidate", ctx, int64(7)).Return(errors.New("down")).Once()
	assert.NoError(t, repo.Invalidate(ctx, 7))
	assert.True(t, repo.isDown.Load())

	repo.lastCheck = time.Now().Add(-2 * time.Minute)
	primary.On("Invalidate", ctx, int64(7)).Return(nil).Once()
	primary.On("Get", ctx, int64(7)).Return(nil, nil).Once()

	got, err := repo.Get(ctx, 7)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, repo.stale)
	primary.AssertExpectations(t)
	fallback.AssertExpectations(t)
}

func TestFailoverFacilityCache_RedisRecoveryDropsReplacedEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	logger := zerolog.New(io.Discard)
	repo := NewFailoverFacilityCache(NewRedisFacilityCache(client, time.Minute), NewMemoryFacilityCache(time.Minute), &logger)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, &models.Facility{ID: 5, ClubID: 1, Name: "Hall", MaxConcurrentBookings: 1}))

	// capacity changes while redis is unreachable
	mr.Close()
	require.NoError(t, repo.Invalidate(ctx, 5))
	require.NoError(t, mr.Restart())
	assert.True(t, mr.Exists("facility:5"))

	repo.lastCheck = time.Now().Add(-2 * time.Minute)
	got, err := repo.Get(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists("facility:5"))
}
