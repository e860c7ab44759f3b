package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/andrewpaige1/nodebook-flashcards/errs"
	"github.com/andrewpaige1/nodebook-flashcards/models"
)

// GormStore keeps flashcards in a single table.
type GormStore struct {
	db *gorm.DB
}

var _ Repository = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) List(ctx context.Context, filter models.ListFilter) ([]models.Flashcard, error) {
	q := s.db.WithContext(ctx).Order("created_at desc")
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}

	var flashcards []models.Flashcard
	if err := q.Find(&flashcards).Error; err != nil {
		return nil, fmt.Errorf("%w: list flashcards: %w", errs.ErrStorage, err)
	}

	// Return an empty array instead of null
	if flashcards == nil {
		flashcards = []models.Flashcard{}
	}
	return flashcards, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (models.Flashcard, error) {
	var flashcard models.Flashcard
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&flashcard).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Flashcard{}, fmt.Errorf("%w: %s", errs.ErrNotFound, id)
	}
	if err != nil {
		return models.Flashcard{}, fmt.Errorf("%w: get flashcard %s: %w", errs.ErrStorage, id, err)
	}
	return flashcard, nil
}

func (s *GormStore) Insert(ctx context.Context, card models.Flashcard) error {
	if err := s.db.WithContext(ctx).Create(&card).Error; err != nil {
		return fmt.Errorf("%w: create flashcard: %w", errs.ErrStorage, err)
	}
	return nil
}

func (s *GormStore) Replace(ctx context.Context, card models.Flashcard) error {
	// A map keeps zero values such as mastery level 0 in the update.
	result := s.db.WithContext(ctx).
		Model(&models.Flashcard{}).
		Where("id = ?", card.ID).
		Updates(map[string]any{
			"question":      card.Question,
			"answer":        card.Answer,
			"category":      card.Category,
			"mastery_level": card.MasteryLevel,
			"updated_at":    card.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("%w: update flashcard %s: %w", errs.ErrStorage, card.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", errs.ErrNotFound, card.ID)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Flashcard{})
	if result.Error != nil {
		return fmt.Errorf("%w: delete flashcard %s: %w", errs.ErrStorage, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", errs.ErrNotFound, id)
	}
	return nil
}
