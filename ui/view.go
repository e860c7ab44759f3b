package ui

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/andrewpaige1/nodebook-flashcards/errs"
	"github.com/andrewpaige1/nodebook-flashcards/models"
	"github.com/andrewpaige1/nodebook-flashcards/query"
)

// MinFieldLength is the shortest trimmed text the card form accepts.
const MinFieldLength = 3

// View is everything a renderer needs for one frame.
type View struct {
	Categories []models.CategoryCount
	Stats      models.StudyStatistics
	// Deck is the filtered, sorted (and in study mode possibly shuffled) list.
	Deck []models.Flashcard
	// Page is the visible window of Deck in ViewAll mode.
	Page query.Page
	// Current is the card under the study cursor, if any.
	Current    *models.Flashcard
	Flipped    bool
	Position   int
	DeckSize   int
	Filtering  bool
	EditTarget *models.Flashcard
}

// Render derives the view for s from the full record list. Categories and Stats
// always describe the unfiltered list.
func Render(s State, cards []models.Flashcard) View {
	deck := query.Filter(query.Sort(cards, s.Sort), s.Filter)
	if s.Mode == ViewStudy && s.Study.Shuffled {
		seed := s.Study.ShuffleSeed
		deck = query.ShuffleWith(deck, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
	}

	v := View{
		Categories: query.CategoriesWithCounts(cards),
		Stats:      query.Statistics(cards),
		Deck:       deck,
		Page:       query.Paginate(deck, s.Pagination.Page, s.Pagination.PageSize),
		DeckSize:   len(deck),
		Filtering:  s.Filter.Active(),
	}

	if len(deck) > 0 {
		idx := min(max(s.Study.Index, 0), len(deck)-1)
		current := deck[idx]
		v.Current = &current
		v.Position = idx
		v.Flipped = s.Study.Flipped
	}

	if s.Modal.Open && s.Modal.EditingID != "" {
		for i := range cards {
			if cards[i].ID == s.Modal.EditingID {
				target := cards[i]
				v.EditTarget = &target
				break
			}
		}
	}
	return v
}

// ValidateForm applies the card form rules before anything is sent to the gateway.
func ValidateForm(in models.NewFlashcard) error {
	fields := []struct{ name, value string }{
		{"question", in.Question},
		{"answer", in.Answer},
		{"category", in.Category},
	}
	for _, f := range fields {
		if len([]rune(strings.TrimSpace(f.value))) < MinFieldLength {
			return fmt.Errorf("%w: %s must be at least %d characters", errs.ErrValidation, f.name, MinFieldLength)
		}
	}
	return nil
}
