package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewpaige1/nodebook-flashcards/errs"
	"github.com/andrewpaige1/nodebook-flashcards/models"
	"github.com/andrewpaige1/nodebook-flashcards/store"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestService(t *testing.T) (*Flashcards, store.Repository) {
	t.Helper()
	repo, err := store.NewJSONStore(t.TempDir(), store.WithSeed(nil))
	require.NoError(t, err)

	clock := &fakeClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	n := 0
	svc := NewFlashcards(repo,
		WithClock(clock.now),
		WithIDGenerator(func() (string, error) {
			n++
			return fmt.Sprintf("card-%d", n), nil
		}),
	)
	return svc, repo
}

func TestFlashcards_Create(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	card, err := svc.Create(ctx, models.NewFlashcard{Question: "2+2?", Answer: "4", Category: "Math"})
	require.NoError(t, err)
	assert.NotEmpty(t, card.ID)
	assert.Equal(t, 0, card.MasteryLevel)
	assert.True(t, card.CreatedAt.Equal(card.UpdatedAt))

	stored, err := svc.Get(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, "2+2?", stored.Question)
}

func TestFlashcards_Create_DefaultIDGenerator(t *testing.T) {
	repo, err := store.NewJSONStore(t.TempDir(), store.WithSeed(nil))
	require.NoError(t, err)
	svc := NewFlashcards(repo)

	a, err := svc.Create(context.Background(), models.NewFlashcard{Question: "q1", Answer: "a", Category: "c"})
	require.NoError(t, err)
	b, err := svc.Create(context.Background(), models.NewFlashcard{Question: "q2", Answer: "a", Category: "c"})
	require.NoError(t, err)
	assert.Len(t, a.ID, 21)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestFlashcards_Create_Validation(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)

	_, err := svc.Create(ctx, models.NewFlashcard{Question: "", Answer: "4", Category: "Math"})
	assert.ErrorIs(t, err, errs.ErrValidation)

	cards, err := repo.List(ctx, models.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, cards, "nothing persisted")
}

func TestFlashcards_Create_IDFailure(t *testing.T) {
	repo, err := store.NewJSONStore(t.TempDir(), store.WithSeed(nil))
	require.NoError(t, err)
	svc := NewFlashcards(repo, WithIDGenerator(func() (string, error) { return "", errors.New("no entropy") }))

	_, err = svc.Create(context.Background(), models.NewFlashcard{Question: "q", Answer: "a", Category: "c"})
	assert.Error(t, err)
}

func TestFlashcards_Update(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	card, err := svc.Create(ctx, models.NewFlashcard{Question: "q", Answer: "a", Category: "c"})
	require.NoError(t, err)

	answer := "better answer"
	updated, err := svc.Update(ctx, card.ID, models.FlashcardPatch{Answer: &answer})
	require.NoError(t, err)
	assert.Equal(t, "better answer", updated.Answer)
	assert.Equal(t, "q", updated.Question)
	assert.True(t, updated.UpdatedAt.After(card.UpdatedAt))
	assert.True(t, updated.CreatedAt.Equal(card.CreatedAt))

	_, err = svc.Update(ctx, "missing", models.FlashcardPatch{Answer: &answer})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	blank := " "
	_, err = svc.Update(ctx, card.ID, models.FlashcardPatch{Question: &blank})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestFlashcards_IncrementMastery_CapsAtFive(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	card, err := svc.Create(ctx, models.NewFlashcard{Question: "q", Answer: "a", Category: "c"})
	require.NoError(t, err)

	prev := card
	for i := 0; i < 6; i++ {
		card, err = svc.IncrementMastery(ctx, card.ID)
		require.NoError(t, err)
		assert.True(t, card.UpdatedAt.After(prev.UpdatedAt), "mastery changes refresh updatedAt")
		prev = card
	}
	assert.Equal(t, models.MaxMasteryLevel, card.MasteryLevel)

	_, err = svc.IncrementMastery(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestFlashcards_ResetMastery(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	card, err := svc.Create(ctx, models.NewFlashcard{Question: "q", Answer: "a", Category: "c"})
	require.NoError(t, err)

	for level := 0; level <= models.MaxMasteryLevel; level++ {
		l := level
		_, err := svc.Update(ctx, card.ID, models.FlashcardPatch{MasteryLevel: &l})
		require.NoError(t, err)

		reset, err := svc.ResetMastery(ctx, card.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, reset.MasteryLevel)
	}

	_, err = svc.ResetMastery(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestFlashcards_Delete(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)

	card, err := svc.Create(ctx, models.NewFlashcard{Question: "q", Answer: "a", Category: "c"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "missing"), errs.ErrNotFound)
	cards, err := repo.List(ctx, models.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, cards, 1, "store unchanged")

	require.NoError(t, svc.Delete(ctx, card.ID))
	_, err = svc.Get(ctx, card.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestFlashcards_ListCategoriesStatistics(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for _, in := range []models.NewFlashcard{
		{Question: "q1", Answer: "a", Category: "Math"},
		{Question: "q2", Answer: "a", Category: "Science"},
		{Question: "q3", Answer: "a", Category: "Math"},
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}
	master := models.MaxMasteryLevel
	_, err := svc.Update(ctx, "card-1", models.FlashcardPatch{MasteryLevel: &master})
	require.NoError(t, err)
	_, err = svc.IncrementMastery(ctx, "card-2")
	require.NoError(t, err)

	math, err := svc.List(ctx, models.ListFilter{Category: "Math"})
	require.NoError(t, err)
	require.Len(t, math, 2)
	assert.Equal(t, "card-3", math[0].ID, "newest first")

	cats, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.CategoryCount{{Name: "Math", Count: 2}, {Name: "Science", Count: 1}}, cats)

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StudyStatistics{Total: 3, Mastered: 1, InProgress: 1, NotStarted: 1}, stats)
}
