package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/andrewpaige1/nodebook-flashcards/errs"
	"github.com/andrewpaige1/nodebook-flashcards/models"
)

// setupTestDB opens a throwaway SQLite file with the flashcard table migrated.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "flashcards.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Flashcard{}))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func sampleCard(id, category string, created time.Time) models.Flashcard {
	return models.Flashcard{
		ID:        id,
		Question:  "question " + id,
		Answer:    "answer " + id,
		Category:  category,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// repositoryContract runs the same behaviour checks against any Repository.
func repositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("List newest first with category filter", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Insert(ctx, sampleCard("old", "Math", base)))
		require.NoError(t, repo.Insert(ctx, sampleCard("new", "Math", base.Add(2*time.Minute))))
		require.NoError(t, repo.Insert(ctx, sampleCard("mid", "Science", base.Add(time.Minute))))

		all, err := repo.List(ctx, models.ListFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"new", "mid", "old"}, []string{all[0].ID, all[1].ID, all[2].ID})

		math, err := repo.List(ctx, models.ListFilter{Category: "Math"})
		require.NoError(t, err)
		require.Len(t, math, 2)
		assert.Equal(t, "new", math[0].ID)
		assert.Equal(t, "old", math[1].ID)

		none, err := repo.List(ctx, models.ListFilter{Category: "History"})
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("Get", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Insert(ctx, sampleCard("a", "Math", base)))

		got, err := repo.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "question a", got.Question)
		assert.True(t, got.CreatedAt.Equal(base))

		_, err = repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("Replace keeps zero mastery", func(t *testing.T) {
		repo := newRepo(t)
		card := sampleCard("a", "Math", base)
		card.MasteryLevel = 4
		require.NoError(t, repo.Insert(ctx, card))

		card.MasteryLevel = 0
		card.Answer = "changed"
		card.UpdatedAt = base.Add(time.Hour)
		require.NoError(t, repo.Replace(ctx, card))

		got, err := repo.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 0, got.MasteryLevel)
		assert.Equal(t, "changed", got.Answer)
		assert.True(t, got.UpdatedAt.Equal(base.Add(time.Hour)))
		assert.True(t, got.CreatedAt.Equal(base))

		err = repo.Replace(ctx, sampleCard("missing", "Math", base))
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Insert(ctx, sampleCard("a", "Math", base)))

		assert.ErrorIs(t, repo.Delete(ctx, "missing"), errs.ErrNotFound)
		all, err := repo.List(ctx, models.ListFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 1)

		require.NoError(t, repo.Delete(ctx, "a"))
		_, err = repo.Get(ctx, "a")
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestGormStore(t *testing.T) {
	repositoryContract(t, func(t *testing.T) Repository {
		return NewGormStore(setupTestDB(t))
	})
}

func TestGormStore_DuplicateInsert(t *testing.T) {
	ctx := context.Background()
	repo := NewGormStore(setupTestDB(t))
	card := sampleCard("a", "Math", time.Now())

	require.NoError(t, repo.Insert(ctx, card))
	assert.ErrorIs(t, repo.Insert(ctx, card), errs.ErrStorage)
}
