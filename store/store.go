// Package store holds the authoritative flashcard records. Two backings are provided:
// a relational table through gorm and a single JSON array kept under one key of a
// file-backed key-value area.
package store

import (
	"context"

	"github.com/andrewpaige1/nodebook-flashcards/models"
)

// Repository is the Record Store contract. Implementations return errs.ErrNotFound
// for absent ids and wrap backend failures in errs.ErrStorage.
type Repository interface {
	// List returns the cards matching filter, newest first by CreatedAt.
	List(ctx context.Context, filter models.ListFilter) ([]models.Flashcard, error)
	Get(ctx context.Context, id string) (models.Flashcard, error)
	Insert(ctx context.Context, card models.Flashcard) error
	// Replace overwrites every mutable field of an existing card.
	Replace(ctx context.Context, card models.Flashcard) error
	Delete(ctx context.Context, id string) error
}
