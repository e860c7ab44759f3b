package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewpaige1/nodebook-flashcards/errs"
	"github.com/andrewpaige1/nodebook-flashcards/handlers"
	"github.com/andrewpaige1/nodebook-flashcards/models"
	"github.com/andrewpaige1/nodebook-flashcards/service"
	"github.com/andrewpaige1/nodebook-flashcards/store"
)

func apiHandler(t *testing.T) http.Handler {
	t.Helper()
	repo, err := store.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	return handlers.NewFlashcardHandler(service.NewFlashcards(repo), nil).Routes(nil)
}

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", opts...)
}

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, apiHandler(t))

	cards, err := c.List(ctx, models.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, cards, 8)

	created, err := c.Create(ctx, models.NewFlashcard{Question: "What is H2O?", Answer: "Water", Category: "Science"})
	require.NoError(t, err)
	assert.Zero(t, created.MasteryLevel)

	got, err := c.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Question, got.Question)

	answer := "Water (dihydrogen monoxide)"
	updated, err := c.Update(ctx, created.ID, models.FlashcardPatch{Answer: &answer})
	require.NoError(t, err)
	assert.Equal(t, answer, updated.Answer)

	inc, err := c.IncrementMastery(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, inc.MasteryLevel)

	reset, err := c.ResetMastery(ctx, created.ID)
	require.NoError(t, err)
	assert.Zero(t, reset.MasteryLevel)

	science, err := c.List(ctx, models.ListFilter{Category: "Science"})
	require.NoError(t, err)
	for _, card := range science {
		assert.Equal(t, "Science", card.Category)
	}

	categories, err := c.Categories(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, categories)

	stats, err := c.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, stats.Total)

	require.NoError(t, c.Delete(ctx, created.ID))
	_, err = c.Get(ctx, created.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestClient_ErrorMapping(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, apiHandler(t))

	_, err := c.Create(ctx, models.NewFlashcard{Question: " ", Answer: "a", Category: "c"})
	assert.ErrorIs(t, err, errs.ErrValidation)

	err = c.Delete(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = c.IncrementMastery(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestClient_Unauthorized(t *testing.T) {
	var gotAuth string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Failed to validate JWT."}`))
	})
	c := newTestClient(t, h, WithToken("abc"))

	_, err := c.Create(context.Background(), models.NewFlashcard{Question: "q", Answer: "a", Category: "c"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "Failed to validate JWT.")
	assert.Equal(t, "Bearer abc", gotAuth)
}

func TestClient_TransportFailureIsStorageError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, WithRetries(0, 0))
	_, err := c.List(context.Background(), models.ListFilter{})
	assert.ErrorIs(t, err, errs.ErrStorage)
}

// flaky answers the first request to each method with 503.
func flaky(next http.Handler, hits *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func TestClient_RetriesIdempotentRequests(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, flaky(apiHandler(t), &hits), WithRetries(1, time.Millisecond))

	cards, err := c.List(context.Background(), models.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, cards, 8)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_DoesNotRetryPost(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, flaky(apiHandler(t), &hits), WithRetries(1, time.Millisecond))

	_, err := c.IncrementMastery(context.Background(), "seed-math-pi")
	assert.ErrorIs(t, err, errs.ErrStorage)
	assert.Equal(t, int32(1), hits.Load())
}
