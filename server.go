package main

import (
	"context"
	"io"
	"net/http"

	"github.com/nijaru/yt-summary/config"
	"github.com/nijaru/yt-summary/db"
	"github.com/nijaru/yt-summary/handlers"
	"github.com/nijaru/yt-summary/middleware"
	"github.com/nijaru/yt-summary/pipeline"
	"github.com/nijaru/yt-summary/retry"
	"github.com/nijaru/yt-summary/scheduler"
	"github.com/nijaru/yt-summary/summary"
	"github.com/nijaru/yt-summary/transcription"
	"github.com/nijaru/yt-summary/validation"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type application struct {
	cfg       *config.Config
	extractor *validation.Extractor
	pipeline  *pipeline.Pipeline
	model     string
	store     *db.Store
	scheduler *scheduler.Scheduler
	closers   []io.Closer
}

// buildApp wires the pipeline stages. Run history is only opened when
// withHistory is set and DB_PATH is not empty.
func buildApp(ctx context.Context, cfg *config.Config, withHistory bool) (*application, error) {
	app := &application{cfg: cfg}

	if cfg.APIKey() == "" {
		logrus.WithField("provider", cfg.Summary.Provider).
			Warn("No API key configured, summary requests will fail until one is set")
	}

	generator, err := summary.NewGenerator(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create summary generator")
	}
	if c, ok := generator.(io.Closer); ok {
		app.closers = append(app.closers, c)
	}

	retryCfg := retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		InitialWait: cfg.Retry.InitialBackoff,
		MaxWait:     cfg.Retry.MaxBackoff,
		Multiplier:  retry.DefaultConfig.Multiplier,
	}

	fetcher := transcription.NewYouTubeFetcher(
		cfg.Transcript.Languages,
		cfg.Transcript.UserAgent,
		transcription.WithRetry(retryCfg),
	)
	summaries := summary.NewSummaryService(generator, summary.Config{
		MaxInputChars: cfg.Summary.MaxInputChars,
		Chunking:      cfg.Summary.Chunking,
		ChunkChars:    cfg.Summary.ChunkChars,
		Timeout:       cfg.Summary.Timeout,
		Retry:         retryCfg,
	})

	opts := []pipeline.Option{pipeline.WithTranscriptTimeout(cfg.Transcript.Timeout)}
	if withHistory && cfg.DBPath != "" {
		store, err := db.Open(ctx, cfg.DBPath)
		if err != nil {
			app.Close()
			return nil, errors.Wrap(err, "open run history")
		}
		app.store = store
		app.closers = append(app.closers, store)
		opts = append(opts, pipeline.WithHistory(store))

		app.scheduler = scheduler.New(ctx, store, cfg.HistoryPruneSpec, cfg.HistoryRetention)
		if err := app.scheduler.Start(); err != nil {
			app.scheduler = nil
			app.Close()
			return nil, errors.Wrap(err, "start history pruning")
		}
	}

	app.extractor = validation.NewExtractor(cfg.RequireYouTubeDomain)
	app.pipeline = pipeline.New(app.extractor, transcription.NewTranscriptionService(fetcher), summaries, opts...)
	app.model = summaries.Model()
	return app, nil
}

func (a *application) serve(ctx context.Context) error {
	// A nil *db.Store must not become a non-nil RunLister.
	var runs handlers.RunLister
	if a.store != nil {
		runs = a.store
	}

	h, err := handlers.New(a.pipeline, a.extractor, runs, a.model)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	h.Register(mux)

	server := &http.Server{
		Addr:         ":" + a.cfg.ServerPort,
		Handler:      middleware.Chain(mux, middleware.LoggingMiddleware, middleware.SecurityHeaders),
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"port":     a.cfg.ServerPort,
			"provider": a.cfg.Summary.Provider,
			"model":    a.model,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logrus.WithError(err).Error("Server failed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logrus.Info("Shutting down the server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
		return err
	}
	logrus.Info("Server exited properly")
	return nil
}

func (a *application) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logrus.WithError(err).Error("Failed to close resource")
		}
	}
	a.closers = nil
}
