// Package cache keeps a client-side copy of the flashcard list and drives mutations
// through a service.Gateway with optimistic writes, snapshot rollback and
// refetch-based reconciliation.
//
// Two keyed views are held: the full list and per-id details. Every optimistic write
// or rollback that touches an id updates both.
package cache

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/andrewpaige1/nodebook-flashcards/models"
	"github.com/andrewpaige1/nodebook-flashcards/service"
)

const listKey = "list"

// Cache is safe for concurrent use.
type Cache struct {
	gw     service.Gateway
	log    *zap.Logger
	notify Notifier

	mu      sync.Mutex
	list    []models.Flashcard
	loaded  bool
	stale   bool
	details map[string]models.Flashcard
	pending map[string]*pendingWrite
	seq     uint64

	fetches singleflight.Group
}

// pendingWrite is the latest unsettled optimistic write for one id. base is the
// cached state from before the oldest write still in flight for that id, so a
// failure rolls back past every overlapping optimistic value. overlapped marks a
// write issued while another one on the same id was pending.
type pendingWrite struct {
	seq        uint64
	value      models.Flashcard
	deleted    bool
	base       snapshot
	overlapped bool
}

// snapshot is a value copy of everything cached for one id before a write.
type snapshot struct {
	listIndex int
	listEntry models.Flashcard
	detail    models.Flashcard
	hasDetail bool
}

// Option configures a Cache.
type Option func(*Cache)

func WithLogger(log *zap.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// WithNotifier sets where failure notices go. Defaults to a LogNotifier.
func WithNotifier(n Notifier) Option {
	return func(c *Cache) { c.notify = n }
}

func New(gw service.Gateway, opts ...Option) *Cache {
	c := &Cache{
		gw:      gw,
		log:     zap.NewNop(),
		details: make(map[string]models.Flashcard),
		pending: make(map[string]*pendingWrite),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notify == nil {
		c.notify = LogNotifier{Log: c.log}
	}
	return c
}

// List serves the cached list, fetching it first when it is missing or stale.
func (c *Cache) List(ctx context.Context) ([]models.Flashcard, error) {
	c.mu.Lock()
	if c.loaded && !c.stale {
		out := slices.Clone(c.list)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()
	return c.Refetch(ctx)
}

// Cached returns the cached list without I/O. ok is false before the first fetch.
func (c *Cache) Cached() (cards []models.Flashcard, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.list), c.loaded
}

// CachedDetail returns the single-record cache entry for id without I/O.
func (c *Cache) CachedDetail(id string) (models.Flashcard, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	card, ok := c.details[id]
	return card, ok
}

// Stale reports whether the list must be refetched before it is served.
func (c *Cache) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.loaded || c.stale
}

// Invalidate marks the list stale; the next List call refetches.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
}

// Refetch replaces the cached list with the gateway's. Concurrent calls share one
// request. Unsettled optimistic writes are laid over the fetched list.
func (c *Cache) Refetch(ctx context.Context) ([]models.Flashcard, error) {
	v, err, _ := c.fetches.Do(listKey, func() (any, error) {
		cards, err := c.gw.List(ctx, models.ListFilter{})
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		c.list = c.overlayPending(cards)
		c.loaded = true
		c.stale = false
		c.syncDetails()
		return slices.Clone(c.list), nil
	})
	if err != nil {
		c.log.Warn("refetch flashcards", zap.Error(err))
		return nil, err
	}
	return slices.Clone(v.([]models.Flashcard)), nil
}

// Detail serves the single-record cache for id, fetching it when absent.
func (c *Cache) Detail(ctx context.Context, id string) (models.Flashcard, error) {
	if card, ok := c.CachedDetail(id); ok {
		return card, nil
	}

	card, err := c.gw.Get(ctx, id)
	if err != nil {
		return models.Flashcard{}, err
	}

	c.mu.Lock()
	if p, ok := c.pending[id]; ok && !p.deleted {
		card = p.value
	}
	c.details[id] = card
	c.mu.Unlock()
	return card, nil
}

// Create is not optimistic: the confirmed card is merged and the list refetched.
func (c *Cache) Create(ctx context.Context, in models.NewFlashcard) (models.Flashcard, error) {
	card, err := c.gw.Create(ctx, in)
	if err != nil {
		c.notify.Notify(Notice{Operation: "create", Err: err})
		return models.Flashcard{}, err
	}

	c.mu.Lock()
	c.mergeConfirmed(card)
	c.stale = true
	c.mu.Unlock()

	c.reconcile(ctx)
	return card, nil
}

// Update applies patch to the cached card before the gateway call returns.
func (c *Cache) Update(ctx context.Context, id string, patch models.FlashcardPatch) (models.Flashcard, error) {
	if err := patch.Validate(); err != nil {
		c.notify.Notify(Notice{Operation: "update", ID: id, Err: err})
		return models.Flashcard{}, err
	}
	return c.mutate(ctx, "update", id, func(models.Flashcard) models.FlashcardPatch { return patch },
		func(ctx context.Context) (models.Flashcard, error) { return c.gw.Update(ctx, id, patch) })
}

// IncrementMastery optimistically raises the cached level by one, capped at the max.
func (c *Cache) IncrementMastery(ctx context.Context, id string) (models.Flashcard, error) {
	return c.mutate(ctx, "increment mastery of", id,
		func(cur models.Flashcard) models.FlashcardPatch { return models.MasteryPatch(cur.MasteryLevel + 1) },
		func(ctx context.Context) (models.Flashcard, error) { return c.gw.IncrementMastery(ctx, id) })
}

// ResetMastery optimistically sets the cached level to 0.
func (c *Cache) ResetMastery(ctx context.Context, id string) (models.Flashcard, error) {
	return c.mutate(ctx, "reset mastery of", id,
		func(models.Flashcard) models.FlashcardPatch { return models.MasteryPatch(models.MinMasteryLevel) },
		func(ctx context.Context) (models.Flashcard, error) { return c.gw.ResetMastery(ctx, id) })
}

// Delete removes the card from both caches before the gateway call returns.
func (c *Cache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	seq := c.track(id, models.Flashcard{ID: id}, true)
	c.removeLocked(id)
	c.mu.Unlock()

	if err := c.gw.Delete(ctx, id); err != nil {
		c.fail(ctx, "delete", id, seq, err)
		return err
	}

	c.mu.Lock()
	c.settle(id, seq)
	c.stale = true
	c.mu.Unlock()

	c.reconcile(ctx)
	return nil
}

// mutate runs the shared optimistic flow for update-like operations.
func (c *Cache) mutate(
	ctx context.Context,
	op, id string,
	expected func(models.Flashcard) models.FlashcardPatch,
	call func(context.Context) (models.Flashcard, error),
) (models.Flashcard, error) {
	c.mu.Lock()
	var seq uint64
	if current, ok := c.currentLocked(id); ok {
		optimistic := expected(current).Apply(current)
		seq = c.track(id, optimistic, false)
		c.putLocked(optimistic)
	}
	c.mu.Unlock()

	confirmed, err := call(ctx)
	if err != nil {
		c.fail(ctx, op, id, seq, err)
		return models.Flashcard{}, err
	}

	c.mu.Lock()
	if seq != 0 {
		c.settle(id, seq)
	}
	c.mergeConfirmed(confirmed)
	c.stale = true
	c.mu.Unlock()

	c.reconcile(ctx)
	return confirmed, nil
}

// reconcile refetches after a settled write. A failure leaves the list stale so the
// next List call retries; the write itself already succeeded.
func (c *Cache) reconcile(ctx context.Context) {
	if _, err := c.Refetch(ctx); err != nil {
		c.log.Debug("reconcile after write deferred", zap.Error(err))
	}
}

// fail rolls back a rejected write and surfaces the notice. seq 0 means the write
// was never applied optimistically.
func (c *Cache) fail(ctx context.Context, op, id string, seq uint64, err error) {
	if seq != 0 && c.rollback(id, seq) {
		c.reconcile(ctx)
	}
	c.notify.Notify(Notice{Operation: op, ID: id, Err: err})
}

// rollback restores the cached state from before the oldest overlapping write on
// id. It does nothing while a newer write on the same id is pending: that write
// inherited the base and rolls back for both. It reports whether the store may
// hold a value the base does not reflect, because an overlapping write on the same
// id could have settled in between; the list is then marked stale.
func (c *Cache) rollback(id string, seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[id]
	if !ok || p.seq != seq {
		return false
	}
	delete(c.pending, id)
	snap := p.base

	if snap.listIndex >= 0 {
		if i := c.indexLocked(id); i >= 0 {
			c.list[i] = snap.listEntry
		} else {
			at := min(snap.listIndex, len(c.list))
			c.list = slices.Insert(c.list, at, snap.listEntry)
		}
	} else {
		c.list = slices.DeleteFunc(c.list, func(f models.Flashcard) bool { return f.ID == id })
	}

	if snap.hasDetail {
		c.details[id] = snap.detail
	} else {
		delete(c.details, id)
	}

	if p.overlapped {
		c.stale = true
	}
	return p.overlapped
}

// The helpers below expect c.mu to be held.

func (c *Cache) capture(id string) snapshot {
	snap := snapshot{listIndex: c.indexLocked(id)}
	if snap.listIndex >= 0 {
		snap.listEntry = c.list[snap.listIndex]
	}
	snap.detail, snap.hasDetail = c.details[id]
	return snap
}

// track registers a write on id as the latest pending one. The base snapshot is
// captured here, or inherited when an earlier write on id is still in flight.
func (c *Cache) track(id string, value models.Flashcard, deleted bool) uint64 {
	c.seq++
	w := &pendingWrite{seq: c.seq, value: value, deleted: deleted}
	if prev, ok := c.pending[id]; ok {
		w.base = prev.base
		w.overlapped = true
	} else {
		w.base = c.capture(id)
	}
	c.pending[id] = w
	return c.seq
}

func (c *Cache) settle(id string, seq uint64) {
	if p, ok := c.pending[id]; ok && p.seq == seq {
		delete(c.pending, id)
	}
}

func (c *Cache) currentLocked(id string) (models.Flashcard, bool) {
	if card, ok := c.details[id]; ok {
		return card, true
	}
	if i := c.indexLocked(id); i >= 0 {
		return c.list[i], true
	}
	return models.Flashcard{}, false
}

func (c *Cache) indexLocked(id string) int {
	return slices.IndexFunc(c.list, func(f models.Flashcard) bool { return f.ID == id })
}

// putLocked writes card into the list entry (if listed) and the detail entry.
func (c *Cache) putLocked(card models.Flashcard) {
	if i := c.indexLocked(card.ID); i >= 0 {
		c.list[i] = card
	}
	c.details[card.ID] = card
}

func (c *Cache) removeLocked(id string) {
	c.list = slices.DeleteFunc(c.list, func(f models.Flashcard) bool { return f.ID == id })
	delete(c.details, id)
}

// mergeConfirmed stores a server-confirmed card, prepending it when it is new.
// A newer pending optimistic write for the same id keeps precedence.
func (c *Cache) mergeConfirmed(card models.Flashcard) {
	if p, ok := c.pending[card.ID]; ok {
		if p.deleted {
			return
		}
		card = p.value
	}
	if i := c.indexLocked(card.ID); i >= 0 {
		c.list[i] = card
	} else if c.loaded {
		c.list = slices.Insert(c.list, 0, card)
	}
	c.details[card.ID] = card
}

func (c *Cache) overlayPending(cards []models.Flashcard) []models.Flashcard {
	out := slices.Clone(cards)
	for id, p := range c.pending {
		if p.deleted {
			out = slices.DeleteFunc(out, func(f models.Flashcard) bool { return f.ID == id })
			continue
		}
		for i := range out {
			if out[i].ID == id {
				out[i] = p.value
			}
		}
	}
	return out
}

// syncDetails brings every detail entry in line with the freshly fetched list and
// drops entries for cards that no longer exist.
func (c *Cache) syncDetails() {
	for id := range c.details {
		if i := c.indexLocked(id); i >= 0 {
			c.details[id] = c.list[i]
		} else if _, ok := c.pending[id]; !ok {
			delete(c.details, id)
		}
	}
}
