// Package query derives views from a flashcard list: category counts, mastery
// statistics, filtered, sorted, shuffled and paginated subsets. Every function is
// pure and leaves its input untouched.
package query

import (
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/andrewpaige1/nodebook-flashcards/models"
)

// Criteria are the filter predicates. Zero-value fields are inactive.
type Criteria struct {
	Categories   []string
	HideMastered bool
	SearchQuery  string
}

// Active reports whether any predicate is set.
func (f Criteria) Active() bool {
	return len(f.Categories) > 0 || f.HideMastered || f.SearchQuery != ""
}

// CategoriesWithCounts groups cards by exact category, sorted by name ascending.
func CategoriesWithCounts(cards []models.Flashcard) []models.CategoryCount {
	counts := make(map[string]int)
	for _, c := range cards {
		counts[c.Category]++
	}

	out := make([]models.CategoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, models.CategoryCount{Name: name, Count: n})
	}
	slices.SortFunc(out, func(a, b models.CategoryCount) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Filter keeps the cards matching every active predicate, in input order.
func Filter(cards []models.Flashcard, f Criteria) []models.Flashcard {
	var categories map[string]struct{}
	if len(f.Categories) > 0 {
		categories = make(map[string]struct{}, len(f.Categories))
		for _, c := range f.Categories {
			categories[c] = struct{}{}
		}
	}
	// The query is matched verbatim; surrounding whitespace is part of it.
	needle := strings.ToLower(f.SearchQuery)

	out := make([]models.Flashcard, 0, len(cards))
	for _, c := range cards {
		if categories != nil {
			if _, ok := categories[c.Category]; !ok {
				continue
			}
		}
		if f.HideMastered && c.IsMastered() {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(c.Question), needle) &&
			!strings.Contains(strings.ToLower(c.Answer), needle) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Statistics partitions cards into mastered (level 5), not started (level 0) and
// in progress (everything else).
func Statistics(cards []models.Flashcard) models.StudyStatistics {
	stats := models.StudyStatistics{Total: len(cards)}
	for _, c := range cards {
		switch {
		case c.MasteryLevel >= models.MaxMasteryLevel:
			stats.Mastered++
		case c.MasteryLevel <= models.MinMasteryLevel:
			stats.NotStarted++
		default:
			stats.InProgress++
		}
	}
	return stats
}

// Shuffle returns a uniformly random permutation of cards.
func Shuffle(cards []models.Flashcard) []models.Flashcard {
	return ShuffleWith(cards, nil)
}

// ShuffleWith is Shuffle with an explicit source; nil uses the global one.
func ShuffleWith(cards []models.Flashcard, r *rand.Rand) []models.Flashcard {
	out := slices.Clone(cards)
	// Fisher-Yates from the back.
	for i := len(out) - 1; i > 0; i-- {
		var j int
		if r != nil {
			j = r.IntN(i + 1)
		} else {
			j = rand.IntN(i + 1)
		}
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// SortOrder names a listing order.
type SortOrder string

const (
	SortNewest   SortOrder = "newest"
	SortOldest   SortOrder = "oldest"
	SortQuestion SortOrder = "question"
	SortMastery  SortOrder = "mastery"
)

// Sort returns a stably sorted copy of cards. Unknown orders keep input order.
func Sort(cards []models.Flashcard, order SortOrder) []models.Flashcard {
	out := slices.Clone(cards)
	var cmp func(a, b models.Flashcard) int
	switch order {
	case SortNewest:
		cmp = func(a, b models.Flashcard) int { return b.CreatedAt.Compare(a.CreatedAt) }
	case SortOldest:
		cmp = func(a, b models.Flashcard) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case SortQuestion:
		cmp = func(a, b models.Flashcard) int {
			return strings.Compare(strings.ToLower(a.Question), strings.ToLower(b.Question))
		}
	case SortMastery:
		cmp = func(a, b models.Flashcard) int { return a.MasteryLevel - b.MasteryLevel }
	default:
		return out
	}
	slices.SortStableFunc(out, cmp)
	return out
}

// Page is one window of a paginated list.
type Page struct {
	Items      []models.Flashcard
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// Paginate returns the 1-based page of cards. Out-of-range pages are clamped.
func Paginate(cards []models.Flashcard, page, size int) Page {
	if size <= 0 {
		size = len(cards)
		if size == 0 {
			size = 1
		}
	}
	totalPages := max((len(cards)+size-1)/size, 1)
	page = min(max(page, 1), totalPages)

	start := min((page-1)*size, len(cards))
	end := min(start+size, len(cards))
	return Page{
		Items:      slices.Clone(cards[start:end]),
		Page:       page,
		PageSize:   size,
		TotalItems: len(cards),
		TotalPages: totalPages,
	}
}
