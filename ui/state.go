// Package ui holds the presentation controller: ephemeral view state that is
// independent of record data, changed only through the pure Reduce function.
package ui

import (
	"slices"

	"github.com/andrewpaige1/nodebook-flashcards/query"
)

// ViewMode selects between browsing every card and studying one at a time.
type ViewMode string

const (
	ViewAll   ViewMode = "all"
	ViewStudy ViewMode = "study"
)

const DefaultPageSize = 12

// StudyCursor is the position inside the study deck.
type StudyCursor struct {
	Index       int
	Flipped     bool
	Shuffled    bool
	ShuffleSeed uint64
}

// Modal is the create/edit dialog. EditingID is empty when creating.
type Modal struct {
	Open      bool
	EditingID string
}

// Pagination is the all-cards grid cursor; Page is 1-based.
type Pagination struct {
	Page     int
	PageSize int
}

// State is the whole presentation state. It is a value: copy freely.
type State struct {
	Mode       ViewMode
	Filter     query.Criteria
	Sort       query.SortOrder
	Study      StudyCursor
	Modal      Modal
	Pagination Pagination
}

// NewState returns the initial state.
func NewState() State {
	return State{
		Mode:       ViewAll,
		Sort:       query.SortNewest,
		Pagination: Pagination{Page: 1, PageSize: DefaultPageSize},
	}
}

// Action is a state transition request.
type Action interface {
	apply(s State) State
}

type (
	SetViewMode     struct{ Mode ViewMode }
	ToggleCategory  struct{ Category string }
	SetCategories   struct{ Categories []string }
	SetHideMastered struct{ Hide bool }
	SetSearchQuery  struct{ Query string }
	ClearFilters    struct{}
	SetSortOrder    struct{ Order query.SortOrder }
	FlipCard        struct{}
	NextCard        struct{ Total int }
	PreviousCard    struct{ Total int }
	JumpToCard      struct{ Index, Total int }
	ToggleShuffle   struct{ Seed uint64 }
	OpenCreateModal struct{}
	OpenEditModal   struct{ ID string }
	CloseModal      struct{}
	SetPage         struct{ Page int }
	SetPageSize     struct{ Size int }
)

// CardRemoved reports a deletion; Total is the deck size after it.
type CardRemoved struct {
	ID    string
	Total int
}

// Reduce applies a to s and returns the new state. s is not modified.
func Reduce(s State, a Action) State {
	s.Filter.Categories = slices.Clone(s.Filter.Categories)
	return a.apply(s)
}

func (a SetViewMode) apply(s State) State {
	if s.Mode != a.Mode {
		s.Mode = a.Mode
		s.Study = StudyCursor{Shuffled: s.Study.Shuffled, ShuffleSeed: s.Study.ShuffleSeed}
	}
	return s
}

func (a ToggleCategory) apply(s State) State {
	if i := slices.Index(s.Filter.Categories, a.Category); i >= 0 {
		s.Filter.Categories = slices.Delete(s.Filter.Categories, i, i+1)
	} else {
		s.Filter.Categories = append(s.Filter.Categories, a.Category)
	}
	return filtersChanged(s)
}

func (a SetCategories) apply(s State) State {
	s.Filter.Categories = slices.Clone(a.Categories)
	return filtersChanged(s)
}

func (a SetHideMastered) apply(s State) State {
	s.Filter.HideMastered = a.Hide
	return filtersChanged(s)
}

func (a SetSearchQuery) apply(s State) State {
	s.Filter.SearchQuery = a.Query
	return filtersChanged(s)
}

func (ClearFilters) apply(s State) State {
	s.Filter = query.Criteria{}
	return filtersChanged(s)
}

func (a SetSortOrder) apply(s State) State {
	s.Sort = a.Order
	return filtersChanged(s)
}

func (FlipCard) apply(s State) State {
	s.Study.Flipped = !s.Study.Flipped
	return s
}

// NextCard and PreviousCard clamp to [0, Total-1]; there is no wraparound.
func (a NextCard) apply(s State) State {
	return moveTo(s, s.Study.Index+1, a.Total)
}

func (a PreviousCard) apply(s State) State {
	return moveTo(s, s.Study.Index-1, a.Total)
}

func (a JumpToCard) apply(s State) State {
	return moveTo(s, a.Index, a.Total)
}

func (a ToggleShuffle) apply(s State) State {
	s.Study.Shuffled = !s.Study.Shuffled
	s.Study.ShuffleSeed = a.Seed
	s.Study.Index = 0
	s.Study.Flipped = false
	return s
}

func (OpenCreateModal) apply(s State) State {
	s.Modal = Modal{Open: true}
	return s
}

func (a OpenEditModal) apply(s State) State {
	s.Modal = Modal{Open: true, EditingID: a.ID}
	return s
}

func (CloseModal) apply(s State) State {
	s.Modal = Modal{}
	return s
}

func (a SetPage) apply(s State) State {
	s.Pagination.Page = max(a.Page, 1)
	return s
}

func (a SetPageSize) apply(s State) State {
	if a.Size > 0 {
		s.Pagination.PageSize = a.Size
		s.Pagination.Page = 1
	}
	return s
}

// CardRemoved keeps the cursor in range after a delete and closes a modal editing
// the removed card.
func (a CardRemoved) apply(s State) State {
	if s.Modal.EditingID == a.ID {
		s.Modal = Modal{}
	}
	idx := s.Study.Index
	if idx >= a.Total {
		idx = a.Total - 1
	}
	s.Study.Index = max(idx, 0)
	return s
}

// filtersChanged restarts the deck and the grid: the old positions index a
// different list.
func filtersChanged(s State) State {
	s.Study.Index = 0
	s.Study.Flipped = false
	s.Pagination.Page = 1
	return s
}

func moveTo(s State, idx, total int) State {
	if total <= 0 {
		s.Study.Index = 0
		s.Study.Flipped = false
		return s
	}
	idx = min(max(idx, 0), total-1)
	if idx != s.Study.Index {
		s.Study.Flipped = false
	}
	s.Study.Index = idx
	return s
}
