package store

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewpaige1/nodebook-flashcards/errs"
	"github.com/andrewpaige1/nodebook-flashcards/models"
)

func TestJSONStore(t *testing.T) {
	repositoryContract(t, func(t *testing.T) Repository {
		s, err := NewJSONStore(t.TempDir(), WithSeed(nil))
		require.NoError(t, err)
		return s
	})
}

func TestJSONStore_SeedsOnFirstAccess(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewJSONStore(dir)
	require.NoError(t, err)
	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "nothing is written before first access")

	cards, err := s.List(ctx, models.ListFilter{})
	require.NoError(t, err)
	require.Len(t, cards, 8)
	for i := 1; i < len(cards); i++ {
		assert.False(t, cards[i].CreatedAt.After(cards[i-1].CreatedAt), "newest first")
	}

	// Edits survive reopening and the seed is not applied again.
	require.NoError(t, s.Delete(ctx, cards[0].ID))
	reopened, err := NewJSONStore(dir)
	require.NoError(t, err)
	again, err := reopened.List(ctx, models.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, again, 7)
}

func TestJSONStore_CustomKeyAndSeed(t *testing.T) {
	ctx := context.Background()
	seed := []byte(`[{"id":"only","question":"q?","answer":"a","category":"X","masteryLevel":1,"createdAt":"2024-01-01T00:00:00Z","updatedAt":"2024-01-01T00:00:00Z"}]`)

	s, err := NewJSONStore(t.TempDir(), WithKey("deck"), WithSeed(seed))
	require.NoError(t, err)
	assert.Equal(t, "deck.json", filepath.Base(s.Path()))

	got, err := s.Get(ctx, "only")
	require.NoError(t, err)
	assert.Equal(t, 1, got.MasteryLevel)
}

func TestJSONStore_CorruptBlob(t *testing.T) {
	s, err := NewJSONStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))

	_, err = s.List(context.Background(), models.ListFilter{})
	assert.ErrorIs(t, err, errs.ErrStorage)
}

func TestJSONStore_WatchSeesExternalWrites(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir, WithSeed(nil))
	require.NoError(t, err)
	_, err = s.List(context.Background(), models.ListFilter{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var changes atomic.Int32
	require.NoError(t, s.Watch(ctx, func() { changes.Add(1) }))

	// A second handle on the same directory plays the other process.
	other, err := NewJSONStore(dir, WithSeed(nil))
	require.NoError(t, err)
	require.NoError(t, other.Insert(context.Background(), sampleCard("x", "Math", time.Now())))

	assert.Eventually(t, func() bool { return changes.Load() > 0 }, 2*time.Second, 10*time.Millisecond)
}
