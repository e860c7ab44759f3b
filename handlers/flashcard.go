package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/andrewpaige1/nodebook-flashcards/auth"
	"github.com/andrewpaige1/nodebook-flashcards/errs"
	"github.com/andrewpaige1/nodebook-flashcards/middleware"
	"github.com/andrewpaige1/nodebook-flashcards/models"
	"github.com/andrewpaige1/nodebook-flashcards/service"
)

// FlashcardService is what the REST surface needs from the gateway.
type FlashcardService interface {
	service.Gateway
	Categories(ctx context.Context) ([]models.CategoryCount, error)
	Statistics(ctx context.Context) (models.StudyStatistics, error)
}

type FlashcardHandler struct {
	Cards FlashcardService
	Log   *zap.Logger
}

func NewFlashcardHandler(cards FlashcardService, log *zap.Logger) *FlashcardHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &FlashcardHandler{Cards: cards, Log: log}
}

// Routes registers the REST surface. protect wraps write routes; nil leaves them open.
func (h *FlashcardHandler) Routes(protect func(http.Handler) http.Handler) *http.ServeMux {
	if protect == nil {
		protect = func(next http.Handler) http.Handler { return next }
	}
	write := func(fn http.HandlerFunc) http.Handler { return protect(withSubject(fn)) }

	mux := http.NewServeMux()

	// Flashcard
	mux.HandleFunc("GET /api/flashcards", h.ListFlashcards)
	mux.HandleFunc("GET /api/flashcards/{flashcardID}", h.GetFlashcardByID)
	mux.Handle("POST /api/flashcards", write(h.CreateFlashcard))
	mux.Handle("PUT /api/flashcards/{flashcardID}", write(h.UpdateFlashcardByID))
	mux.Handle("DELETE /api/flashcards/{flashcardID}", write(h.DeleteFlashcardByID))
	mux.Handle("POST /api/flashcards/{flashcardID}/increment", write(h.IncrementMastery))
	mux.Handle("POST /api/flashcards/{flashcardID}/reset", write(h.ResetMastery))

	// Derived views
	mux.HandleFunc("GET /api/categories", h.GetCategories)
	mux.HandleFunc("GET /api/stats", h.GetStatistics)

	mux.HandleFunc("GET /health", h.Health)
	return mux
}

func (h *FlashcardHandler) ListFlashcards(w http.ResponseWriter, r *http.Request) {
	filter := models.ListFilter{Category: r.URL.Query().Get("category")}

	flashcards, err := h.Cards.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "ListFlashcards", err)
		return
	}
	writeJSON(w, http.StatusOK, flashcards)
}

func (h *FlashcardHandler) GetFlashcardByID(w http.ResponseWriter, r *http.Request) {
	flashcard, err := h.Cards.Get(r.Context(), r.PathValue("flashcardID"))
	if err != nil {
		h.fail(w, r, "GetFlashcardByID", err)
		return
	}
	writeJSON(w, http.StatusOK, flashcard)
}

func (h *FlashcardHandler) CreateFlashcard(w http.ResponseWriter, r *http.Request) {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var req models.NewFlashcard
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	flashcard, err := h.Cards.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, "CreateFlashcard", err)
		return
	}

	h.logWrite(r, "CreateFlashcard", flashcard.ID)
	writeJSON(w, http.StatusCreated, flashcard)
}

func (h *FlashcardHandler) UpdateFlashcardByID(w http.ResponseWriter, r *http.Request) {
	flashcardID := r.PathValue("flashcardID")

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var patch models.FlashcardPatch
	if err := decoder.Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	flashcard, err := h.Cards.Update(r.Context(), flashcardID, patch)
	if err != nil {
		h.fail(w, r, "UpdateFlashcardByID", err)
		return
	}

	h.logWrite(r, "UpdateFlashcardByID", flashcardID)
	writeJSON(w, http.StatusOK, flashcard)
}

func (h *FlashcardHandler) DeleteFlashcardByID(w http.ResponseWriter, r *http.Request) {
	flashcardID := r.PathValue("flashcardID")

	if err := h.Cards.Delete(r.Context(), flashcardID); err != nil {
		h.fail(w, r, "DeleteFlashcardByID", err)
		return
	}

	h.logWrite(r, "DeleteFlashcardByID", flashcardID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *FlashcardHandler) IncrementMastery(w http.ResponseWriter, r *http.Request) {
	flashcardID := r.PathValue("flashcardID")

	flashcard, err := h.Cards.IncrementMastery(r.Context(), flashcardID)
	if err != nil {
		h.fail(w, r, "IncrementMastery", err)
		return
	}

	h.logWrite(r, "IncrementMastery", flashcardID)
	writeJSON(w, http.StatusOK, flashcard)
}

func (h *FlashcardHandler) ResetMastery(w http.ResponseWriter, r *http.Request) {
	flashcardID := r.PathValue("flashcardID")

	flashcard, err := h.Cards.ResetMastery(r.Context(), flashcardID)
	if err != nil {
		h.fail(w, r, "ResetMastery", err)
		return
	}

	h.logWrite(r, "ResetMastery", flashcardID)
	writeJSON(w, http.StatusOK, flashcard)
}

func (h *FlashcardHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Cards.Categories(r.Context())
	if err != nil {
		h.fail(w, r, "GetCategories", err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *FlashcardHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Cards.Statistics(r.Context())
	if err != nil {
		h.fail(w, r, "GetStatistics", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *FlashcardHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// fail maps the error taxonomy onto status codes. Storage details stay in the log.
func (h *FlashcardHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, "Flashcard not found")
	default:
		h.Log.Error(op,
			zap.String("requestID", middleware.RequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// withSubject hands the validated token subject to the access log.
func withSubject(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if subject, ok := auth.Subject(r); ok {
			middleware.SetSubject(r.Context(), subject)
		}
		next(w, r)
	}
}

func (h *FlashcardHandler) logWrite(r *http.Request, op, id string) {
	subject, _ := auth.Subject(r)
	h.Log.Info(op,
		zap.String("id", id),
		zap.String("subject", subject),
		zap.String("requestID", middleware.RequestID(r.Context())),
	)
}
