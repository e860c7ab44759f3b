package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/andrewpaige1/nodebook-flashcards/errs"
	"github.com/andrewpaige1/nodebook-flashcards/models"
)

// DefaultKey is the well-known key the card array is stored under.
const DefaultKey = "flashcards"

//go:embed seed.json
var seedData []byte

// SeedData returns a copy of the bundled starter dataset.
func SeedData() []byte {
	return slices.Clone(seedData)
}

// JSONStore keeps every card in one serialized JSON array under a single key of a
// directory-backed key-value area. Each write rewrites the whole array, so it is
// only safe for one writer process at a time.
type JSONStore struct {
	mu   sync.Mutex
	dir  string
	key  string
	seed []byte
	log  *zap.Logger
}

var _ Repository = (*JSONStore)(nil)

// JSONOption configures a JSONStore.
type JSONOption func(*JSONStore)

// WithKey overrides DefaultKey.
func WithKey(key string) JSONOption {
	return func(s *JSONStore) { s.key = key }
}

// WithSeed replaces the bundled dataset used on first access. nil disables seeding.
func WithSeed(data []byte) JSONOption {
	return func(s *JSONStore) { s.seed = data }
}

func WithLogger(log *zap.Logger) JSONOption {
	return func(s *JSONStore) { s.log = log }
}

// NewJSONStore opens (creating if needed) the key-value directory at dir.
func NewJSONStore(dir string, opts ...JSONOption) (*JSONStore, error) {
	s := &JSONStore{
		dir:  dir,
		key:  DefaultKey,
		seed: seedData,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create store dir: %w", errs.ErrStorage, err)
	}
	return s, nil
}

// Path is the file holding the serialized array.
func (s *JSONStore) Path() string {
	return filepath.Join(s.dir, s.key+".json")
}

func (s *JSONStore) List(_ context.Context, filter models.ListFilter) ([]models.Flashcard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards, err := s.load()
	if err != nil {
		return nil, err
	}

	out := make([]models.Flashcard, 0, len(cards))
	for _, c := range cards {
		if filter.Matches(c) {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Flashcard) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *JSONStore) Get(_ context.Context, id string) (models.Flashcard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards, err := s.load()
	if err != nil {
		return models.Flashcard{}, err
	}
	i := indexOf(cards, id)
	if i < 0 {
		return models.Flashcard{}, fmt.Errorf("%w: %s", errs.ErrNotFound, id)
	}
	return cards[i], nil
}

func (s *JSONStore) Insert(_ context.Context, card models.Flashcard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards, err := s.load()
	if err != nil {
		return err
	}
	if indexOf(cards, card.ID) >= 0 {
		return fmt.Errorf("%w: duplicate id %s", errs.ErrStorage, card.ID)
	}
	return s.persist(append(cards, card))
}

func (s *JSONStore) Replace(_ context.Context, card models.Flashcard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards, err := s.load()
	if err != nil {
		return err
	}
	i := indexOf(cards, card.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", errs.ErrNotFound, card.ID)
	}
	card.CreatedAt = cards[i].CreatedAt
	cards[i] = card
	return s.persist(cards)
}

func (s *JSONStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards, err := s.load()
	if err != nil {
		return err
	}
	i := indexOf(cards, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", errs.ErrNotFound, id)
	}
	return s.persist(slices.Delete(cards, i, i+1))
}

// Watch calls onChange whenever the backing file is rewritten, including by another
// process, until ctx is cancelled.
func (s *JSONStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: create watcher: %w", errs.ErrStorage, err)
	}
	// Watch the directory: persist replaces the file via rename.
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("%w: watch %s: %w", errs.ErrStorage, s.dir, err)
	}

	target := filepath.Clean(s.Path())
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn("flashcard store watcher", zap.Error(err))
			}
		}
	}()
	return nil
}

// load reads the array, seeding it on first access. Callers hold s.mu.
func (s *JSONStore) load() ([]models.Flashcard, error) {
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return s.seedLocked()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", errs.ErrStorage, s.Path(), err)
	}

	var cards []models.Flashcard
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", errs.ErrStorage, s.Path(), err)
	}
	return cards, nil
}

func (s *JSONStore) seedLocked() ([]models.Flashcard, error) {
	cards := []models.Flashcard{}
	if len(s.seed) > 0 {
		if err := json.Unmarshal(s.seed, &cards); err != nil {
			return nil, fmt.Errorf("%w: decode seed data: %w", errs.ErrStorage, err)
		}
	}
	if err := s.persist(cards); err != nil {
		return nil, err
	}
	s.log.Info("seeded flashcard store", zap.String("path", s.Path()), zap.Int("count", len(cards)))
	return cards, nil
}

// persist writes the full array to a temp file and renames it into place.
func (s *JSONStore) persist(cards []models.Flashcard) error {
	data, err := json.MarshalIndent(cards, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode flashcards: %w", errs.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(s.dir, s.key+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", errs.ErrStorage, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write temp file: %w", errs.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %w", errs.ErrStorage, err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("%w: replace %s: %w", errs.ErrStorage, s.Path(), err)
	}
	return nil
}

func indexOf(cards []models.Flashcard, id string) int {
	return slices.IndexFunc(cards, func(c models.Flashcard) bool { return c.ID == id })
}
