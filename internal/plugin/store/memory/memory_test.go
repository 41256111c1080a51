package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tourplanner/travel-service/internal/model"
	registrystore "github.com/tourplanner/travel-service/internal/registry/store"
)

func message(owner, content string, occurred time.Time, ttl time.Duration) model.Message {
	return model.Message{
		OwnerKey:   owner,
		Role:       model.RoleUser,
		Content:    content,
		OccurredAt: occurred,
		ExpiresAt:  occurred.Add(ttl),
	}
}

func TestRecentMessages(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.AppendMessage(ctx, message("a@b.com", "first", now.Add(-3*time.Minute), 30*time.Minute)))
	require.NoError(t, store.AppendMessage(ctx, message("a@b.com", "second", now.Add(-2*time.Minute), 30*time.Minute)))
	require.NoError(t, store.AppendMessage(ctx, message("a@b.com", "expired", now.Add(-40*time.Minute), 30*time.Minute)))
	require.NoError(t, store.AppendMessage(ctx, message("c@d.com", "other owner", now, 30*time.Minute)))

	t.Run("oldest first, expired and foreign records excluded", func(t *testing.T) {
		msgs, err := store.RecentMessages(ctx, registrystore.HistoryQuery{OwnerKey: "a@b.com", Limit: 10, Now: now})
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		require.Equal(t, "first", msgs[0].Content)
		require.Equal(t, "second", msgs[1].Content)
	})

	t.Run("limit keeps the newest records", func(t *testing.T) {
		msgs, err := store.RecentMessages(ctx, registrystore.HistoryQuery{OwnerKey: "a@b.com", Limit: 1, Now: now})
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		require.Equal(t, "second", msgs[0].Content)
	})

	t.Run("unknown owner yields empty", func(t *testing.T) {
		msgs, err := store.RecentMessages(ctx, registrystore.HistoryQuery{OwnerKey: "nobody@b.com", Limit: 10, Now: now})
		require.NoError(t, err)
		require.Empty(t, msgs)
	})
}

func TestClearMessages(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	store.AppendMessage(ctx, message("a@b.com", "one", now, 30*time.Minute))
	store.AppendMessage(ctx, message("a@b.com", "two", now.Add(-40*time.Minute), 30*time.Minute))

	// Clear removes expired records too.
	n, err := store.ClearMessages(ctx, "a@b.com")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	n, err = store.ClearMessages(ctx, "a@b.com")
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}

func TestDeleteExpired(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	store.AppendMessage(ctx, message("a@b.com", "live", now, 30*time.Minute))
	store.AppendMessage(ctx, message("a@b.com", "dead", now.Add(-31*time.Minute), 30*time.Minute))
	store.AppendMessage(ctx, message("c@d.com", "dead", now.Add(-time.Hour), 30*time.Minute))

	n, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	msgs, err := store.RecentMessages(ctx, registrystore.HistoryQuery{OwnerKey: "a@b.com", Limit: 10, Now: now})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestMessageStats(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	stats, err := store.MessageStats(ctx, "a@b.com", now)
	require.NoError(t, err)
	require.EqualValues(t, 0, stats.Count)

	oldest := now.Add(-5 * time.Minute)
	store.AppendMessage(ctx, message("a@b.com", "one", oldest, 30*time.Minute))
	store.AppendMessage(ctx, message("a@b.com", "two", now, 30*time.Minute))
	store.AppendMessage(ctx, message("a@b.com", "gone", now.Add(-time.Hour), 30*time.Minute))

	stats, err = store.MessageStats(ctx, "a@b.com", now)
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.Count)
	require.True(t, stats.Oldest.Equal(oldest))
	require.True(t, stats.Newest.Equal(now))
}

func TestUsers(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, err := store.CreateUser(ctx, model.User{Email: "a@b.com", Name: "Ada", PasswordHash: "x"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.False(t, created.CreatedAt.IsZero())

	_, err = store.CreateUser(ctx, model.User{Email: "a@b.com", Name: "Dup"})
	var conflict *registrystore.ConflictError
	require.True(t, errors.As(err, &conflict))

	user, err := store.GetUserByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	require.Equal(t, "Ada", user.Name)

	_, err = store.GetUserByEmail(ctx, "missing@b.com")
	var notFound *registrystore.NotFoundError
	require.True(t, errors.As(err, &notFound))
}
