package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/andrewpaige1/nodebook-flashcards/errs"
)

const (
	MinMasteryLevel = 0
	MaxMasteryLevel = 5
)

// Flashcard represents an individual flashcard
type Flashcard struct {
	ID           string    `gorm:"primaryKey;size:32" json:"id"`
	Question     string    `gorm:"not null;size:1000" json:"question"`
	Answer       string    `gorm:"not null;size:1000" json:"answer"`
	Category     string    `gorm:"not null;size:100;index" json:"category"`
	MasteryLevel int       `gorm:"not null;default:0" json:"masteryLevel"`
	CreatedAt    time.Time `gorm:"not null;index;autoCreateTime:false" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime:false" json:"updatedAt"`
}

// IsMastered reports whether the card reached the top mastery level.
func (f Flashcard) IsMastered() bool {
	return f.MasteryLevel == MaxMasteryLevel
}

// ClampMastery bounds a mastery level to [MinMasteryLevel, MaxMasteryLevel].
func ClampMastery(level int) int {
	return min(max(level, MinMasteryLevel), MaxMasteryLevel)
}

// NewFlashcard holds the fields a user supplies when creating a card.
type NewFlashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

// Validate rejects blank fields.
func (n NewFlashcard) Validate() error {
	if err := requireText("question", n.Question); err != nil {
		return err
	}
	if err := requireText("answer", n.Answer); err != nil {
		return err
	}
	return requireText("category", n.Category)
}

// FlashcardPatch is a field mask for updates: a nil field is left untouched.
type FlashcardPatch struct {
	Question     *string `json:"question,omitempty"`
	Answer       *string `json:"answer,omitempty"`
	Category     *string `json:"category,omitempty"`
	MasteryLevel *int    `json:"masteryLevel,omitempty"`
}

// Validate rejects text fields that are present but blank. Mastery levels are
// clamped on Apply rather than rejected.
func (p FlashcardPatch) Validate() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"question", p.Question},
		{"answer", p.Answer},
		{"category", p.Category},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		if err := requireText(f.name, *f.value); err != nil {
			return err
		}
	}
	return nil
}

// Apply returns a copy of f with the patch merged in. It does not touch timestamps.
func (p FlashcardPatch) Apply(f Flashcard) Flashcard {
	if p.Question != nil {
		f.Question = strings.TrimSpace(*p.Question)
	}
	if p.Answer != nil {
		f.Answer = strings.TrimSpace(*p.Answer)
	}
	if p.Category != nil {
		f.Category = strings.TrimSpace(*p.Category)
	}
	if p.MasteryLevel != nil {
		f.MasteryLevel = ClampMastery(*p.MasteryLevel)
	}
	return f
}

// MasteryPatch builds a patch that only sets the mastery level.
func MasteryPatch(level int) FlashcardPatch {
	level = ClampMastery(level)
	return FlashcardPatch{MasteryLevel: &level}
}

// ListFilter narrows a listing. An empty Category matches every card.
type ListFilter struct {
	Category string
}

// Matches reports whether f passes the filter.
func (lf ListFilter) Matches(f Flashcard) bool {
	return lf.Category == "" || f.Category == lf.Category
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", errs.ErrValidation, field)
	}
	return nil
}
