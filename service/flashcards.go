// Package service implements the mutation gateway: typed create, update, delete and
// mastery operations over a store.Repository.
package service

import (
	"context"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/andrewpaige1/nodebook-flashcards/models"
	"github.com/andrewpaige1/nodebook-flashcards/query"
	"github.com/andrewpaige1/nodebook-flashcards/store"
)

// Gateway is the set of operations the cache layer and the REST surface drive.
// Every call may block on storage or network I/O.
type Gateway interface {
	List(ctx context.Context, filter models.ListFilter) ([]models.Flashcard, error)
	Get(ctx context.Context, id string) (models.Flashcard, error)
	Create(ctx context.Context, in models.NewFlashcard) (models.Flashcard, error)
	Update(ctx context.Context, id string, patch models.FlashcardPatch) (models.Flashcard, error)
	Delete(ctx context.Context, id string) error
	IncrementMastery(ctx context.Context, id string) (models.Flashcard, error)
	ResetMastery(ctx context.Context, id string) (models.Flashcard, error)
}

// Flashcards is the Gateway backed directly by a Record Store.
type Flashcards struct {
	repo  store.Repository
	log   *zap.Logger
	now   func() time.Time
	newID func() (string, error)
}

var _ Gateway = (*Flashcards)(nil)

// Option configures Flashcards.
type Option func(*Flashcards)

func WithLogger(log *zap.Logger) Option {
	return func(f *Flashcards) { f.log = log }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(f *Flashcards) { f.now = now }
}

// WithIDGenerator replaces the nanoid generator.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(f *Flashcards) { f.newID = newID }
}

func NewFlashcards(repo store.Repository, opts ...Option) *Flashcards {
	f := &Flashcards{
		repo:  repo,
		log:   zap.NewNop(),
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() (string, error) { return gonanoid.New() },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flashcards) List(ctx context.Context, filter models.ListFilter) ([]models.Flashcard, error) {
	return f.repo.List(ctx, filter)
}

func (f *Flashcards) Get(ctx context.Context, id string) (models.Flashcard, error) {
	return f.repo.Get(ctx, id)
}

// Create validates the input, assigns id and timestamps, and persists a card at
// mastery level 0.
func (f *Flashcards) Create(ctx context.Context, in models.NewFlashcard) (models.Flashcard, error) {
	if err := in.Validate(); err != nil {
		return models.Flashcard{}, err
	}

	id, err := f.newID()
	if err != nil {
		f.log.Error("generate flashcard id", zap.Error(err))
		return models.Flashcard{}, err
	}

	now := f.now()
	card := models.Flashcard{
		ID:           id,
		Question:     strings.TrimSpace(in.Question),
		Answer:       strings.TrimSpace(in.Answer),
		Category:     strings.TrimSpace(in.Category),
		MasteryLevel: models.MinMasteryLevel,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := f.repo.Insert(ctx, card); err != nil {
		f.log.Error("create flashcard", zap.Error(err))
		return models.Flashcard{}, err
	}

	f.log.Debug("created flashcard", zap.String("id", card.ID), zap.String("category", card.Category))
	return card, nil
}

// Update merges patch into the stored card and refreshes UpdatedAt.
func (f *Flashcards) Update(ctx context.Context, id string, patch models.FlashcardPatch) (models.Flashcard, error) {
	if err := patch.Validate(); err != nil {
		return models.Flashcard{}, err
	}

	current, err := f.repo.Get(ctx, id)
	if err != nil {
		return models.Flashcard{}, err
	}

	updated := patch.Apply(current)
	updated.UpdatedAt = f.now()
	if err := f.repo.Replace(ctx, updated); err != nil {
		f.log.Error("update flashcard", zap.String("id", id), zap.Error(err))
		return models.Flashcard{}, err
	}

	f.log.Debug("updated flashcard", zap.String("id", id))
	return updated, nil
}

func (f *Flashcards) Delete(ctx context.Context, id string) error {
	if err := f.repo.Delete(ctx, id); err != nil {
		return err
	}
	f.log.Debug("deleted flashcard", zap.String("id", id))
	return nil
}

// IncrementMastery raises the level by one, stopping at models.MaxMasteryLevel.
func (f *Flashcards) IncrementMastery(ctx context.Context, id string) (models.Flashcard, error) {
	current, err := f.repo.Get(ctx, id)
	if err != nil {
		return models.Flashcard{}, err
	}
	return f.Update(ctx, id, models.MasteryPatch(current.MasteryLevel+1))
}

func (f *Flashcards) ResetMastery(ctx context.Context, id string) (models.Flashcard, error) {
	return f.Update(ctx, id, models.MasteryPatch(models.MinMasteryLevel))
}

// Categories groups every stored card by category.
func (f *Flashcards) Categories(ctx context.Context) ([]models.CategoryCount, error) {
	cards, err := f.repo.List(ctx, models.ListFilter{})
	if err != nil {
		return nil, err
	}
	return query.CategoriesWithCounts(cards), nil
}

// Statistics partitions every stored card by mastery.
func (f *Flashcards) Statistics(ctx context.Context) (models.StudyStatistics, error) {
	cards, err := f.repo.List(ctx, models.ListFilter{})
	if err != nil {
		return models.StudyStatistics{}, err
	}
	return query.Statistics(cards), nil
}
