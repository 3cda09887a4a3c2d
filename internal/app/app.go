// Package app wires configuration into a running Distributor. Both binaries
// share it.
package app

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/DoyleJ11/esports-livescore/internal/archive"
	"github.com/DoyleJ11/esports-livescore/internal/config"
	"github.com/DoyleJ11/esports-livescore/internal/hltv"
	"github.com/DoyleJ11/esports-livescore/internal/livescore"
	"github.com/DoyleJ11/esports-livescore/internal/push"
)

// Options maps cfg onto distributor options with the HLTV fetcher and the
// WebSocket dialer plugged in.
func Options(cfg config.Config, logger *zap.Logger) livescore.Options {
	fetcher := hltv.NewClient(hltv.Config{
		BaseURL:           cfg.PollURL,
		RequestsPerMinute: cfg.UpstreamRPM,
		Timeout:           cfg.HTTPTimeout,
		Logger:            logger,
		MaxRound:          cfg.MaxRound,
	})
	dialer := push.NewDialer(push.Config{
		BaseURL:    cfg.PushURL,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Logger:     logger,
	})

	return livescore.Options{
		Dialer:               dialer,
		Fetcher:              fetcher,
		PushSupported:        func() bool { return cfg.PushEnabled && dialer.Supported() },
		Logger:               logger,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnects,
		PollInterval:         cfg.PollInterval,
		MaxRound:             cfg.MaxRound,
	}
}

// Service is what the HTTP layer serves from: the distributor, optionally
// decorated with the archive.
type Service interface {
	archive.Scores
}

// Stack is a started distributor plus the optional archive behind it.
type Stack struct {
	Distributor *livescore.Distributor
	Service     Service

	store *archive.Store
}

// Build starts a distributor for cfg. When cfg.DatabaseURL is set the
// archive is opened and migrated, and Service records every watched match.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Stack, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := livescore.NewDistributor(ctx, Options(cfg, logger))
	s := &Stack{Distributor: d, Service: d}

	if cfg.DatabaseURL == "" {
		return s, nil
	}

	db, err := archive.Open(cfg.DatabaseURL)
	if err != nil {
		d.ShutdownAll()
		return nil, err
	}
	store := archive.NewStore(db, logger)
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		d.ShutdownAll()
		return nil, err
	}
	s.store = store
	s.Service = archive.NewRecorder(d, store, logger)
	logger.Info("score archive enabled")
	return s, nil
}

// Close stops the distributor first so no snapshot arrives after the
// archive queue is closed.
func (s *Stack) Close() {
	s.Distributor.ShutdownAll()
	if s.store != nil {
		s.store.Close()
	}
}
