package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/andrewpaige1/nodebook-flashcards/auth"
	"github.com/andrewpaige1/nodebook-flashcards/config"
	"github.com/andrewpaige1/nodebook-flashcards/handlers"
	"github.com/andrewpaige1/nodebook-flashcards/middleware"
	"github.com/andrewpaige1/nodebook-flashcards/service"
	"github.com/andrewpaige1/nodebook-flashcards/store"
)

func serveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the flashcard REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg, a.log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	db, err := config.Connect(cfg.Database)
	if err != nil {
		return err
	}

	cards := service.NewFlashcards(store.NewGormStore(db), service.WithLogger(log))
	h := handlers.NewFlashcardHandler(cards, log)

	var protect func(http.Handler) http.Handler
	if cfg.Auth.Enabled() {
		protect, err = auth.EnsureValidToken(cfg.Auth, log)
		if err != nil {
			return err
		}
		log.Info("bearer-token auth enabled for write routes")
	}

	// Configure CORS with specific options
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler(h.Routes(protect))

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           middleware.RequestLogger(log)(middleware.Recover(log)(corsHandler)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", zap.Error(err))
			return err
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	log.Info("shutdown complete")
	return nil
}
