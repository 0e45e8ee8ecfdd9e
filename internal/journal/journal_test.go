package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/AnshRaj112/bookjournal-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dates(entries []models.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.DateRead)
	}
	return out
}

// Ordering is byte-wise, not calendar-aware: '9' > '1' so September lands ahead of October.
func TestSortByDateRead_Lexicographic(t *testing.T) {
	entries := []models.Entry{
		{ID: "a", DateRead: "2023/10/1"},
		{ID: "b", DateRead: "2023/9/1"},
		{ID: "c", DateRead: "2022/12/31"},
		{ID: "d", DateRead: "1990/1/1"},
	}

	SortByDateRead(entries)

	assert.Equal(t, []string{"2023/9/1", "2023/10/1", "2022/12/31", "1990/1/1"}, dates(entries))
}

func TestSortByDateRead_StableForTies(t *testing.T) {
	entries := []models.Entry{
		{ID: "first", DateRead: "2024/1/1"},
		{ID: "second", DateRead: "2024/1/1"},
	}
	SortByDateRead(entries)
	assert.Equal(t, "first", entries[0].ID)
	assert.Equal(t, "second", entries[1].ID)
}

func comments(s string) *string { return &s }

func TestMemoryRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	in := models.Entry{ID: "id-1", UserID: "u1", Title: "Dune", Author: "Herbert", Rating: "5", DateRead: "2023/1/1", Comments: comments("great")}
	require.NoError(t, repo.Add(ctx, in))

	got, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, in, got[0])
}

func TestMemoryRepository_EmptyPartition(t *testing.T) {
	got, err := NewMemoryRepository().List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMemoryRepository_ListIsPartitionScoped(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Add(ctx, models.Entry{ID: "a", UserID: "u1", DateRead: "2023/10/1"}))
	require.NoError(t, repo.Add(ctx, models.Entry{ID: "b", UserID: "u1", DateRead: "2023/9/1"}))
	require.NoError(t, repo.Add(ctx, models.Entry{ID: "c", UserID: "u2", DateRead: "2024/1/1"}))

	got, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2023/9/1", "2023/10/1"}, dates(got))
}

func TestMemoryRepository_AddUpsertsByID(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Add(ctx, models.Entry{ID: "a", UserID: "u1", Title: "Old"}))
	require.NoError(t, repo.Add(ctx, models.Entry{ID: "a", UserID: "u1", Title: "New"}))

	got, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "New", got[0].Title)
}

func TestMemoryRepository_AddKeepsPartition(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Add(ctx, models.Entry{ID: "a", UserID: "u1", Title: "Mine"}))

	err := repo.Add(ctx, models.Entry{ID: "a", UserID: "u2", Title: "Theirs"})
	assert.True(t, errors.Is(err, ErrDuplicateID))

	got, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Mine", got[0].Title)
}

func TestMemoryRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Add(ctx, models.Entry{ID: "a", UserID: "u1"}))
	require.NoError(t, repo.Add(ctx, models.Entry{ID: "b", UserID: "u1"}))

	t.Run("non-matching pair is a no-op", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "a", "u2"))
		require.NoError(t, repo.Delete(ctx, "zzz", "u1"))
		got, err := repo.List(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("matching pair removes exactly one", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "a", "u1"))
		got, err := repo.List(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "b", got[0].ID)
	})
}

func TestMemoryRepository_IsAlive(t *testing.T) {
	ok, err := NewMemoryRepository().IsAlive(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}
