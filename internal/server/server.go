// Package server wires configuration, storage and handlers into a running
// HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/course-assistant/internal/assistant"
	"github.com/ayush/course-assistant/internal/auth"
	"github.com/ayush/course-assistant/internal/config"
	"github.com/ayush/course-assistant/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Server owns the HTTP server and every connection opened for it.
type Server struct {
	http    *http.Server
	log     zerolog.Logger
	closers []func(context.Context)
}

// New connects to the configured backends and builds the router. Optional
// infrastructure (Redis, MongoDB, MinIO) is only contacted when configured.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Server, error) {
	s := &Server{log: log}
	d := Deps{CORSOrigins: cfg.CORSAllowedOrigins, Log: log}

	// ── Relational store ─────────────────────────────────────
	if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func(context.Context) { db.Close() })
	d.Store = db

	// ── Sessions ─────────────────────────────────────────────
	if cfg.RedisAddr != "" {
		rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) { _ = rdb.Close() })
		d.Sessions = auth.NewRedisSessionStore(rdb)
		log.Info().Str("addr", cfg.RedisAddr).Msg("sessions stored in redis")
	} else {
		d.Sessions = auth.NewTokenSessionStore(cfg.SecretKey)
	}
	if cfg.UsesDefaultSecret() {
		log.Warn().Msg("SECRET_KEY not set, using the development default")
	}

	// ── AI history (MongoDB) ─────────────────────────────────
	if cfg.MongoURI != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		s.closers = append(s.closers, func(ctx context.Context) { _ = client.Disconnect(ctx) })
		d.History = store.NewMongoHistoryStore(client.Database(cfg.MongoDB))
	}

	// ── Saved summaries (MinIO) ──────────────────────────────
	if cfg.MinioEndpoint != "" {
		archive, err := store.NewMinioArchive(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
			cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			s.Close(ctx)
			return nil, err
		}
		d.Archive = archive
	}

	// ── AI backend ───────────────────────────────────────────
	d.Backend = assistant.NewBackend(cfg, log)
	log.Info().Str("backend", d.Backend.Name()).Msg("ai backend selected")

	handler, err := NewRouter(d)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}

	s.http = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      5 * time.Minute,
	}
	return s, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.http.Addr).Msg("listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close(context.Background())
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.http.Shutdown(shutCtx)
	s.Close(shutCtx)
	return err
}

// Close releases every backend connection in reverse order of opening.
func (s *Server) Close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i](ctx)
	}
	s.closers = nil
}
