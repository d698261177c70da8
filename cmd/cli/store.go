package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/and161185/slotguard/internal/config"
	"github.com/and161185/slotguard/internal/migrate"
	"github.com/and161185/slotguard/internal/repository"
	"github.com/and161185/slotguard/internal/repository/boltkv"
	"github.com/and161185/slotguard/internal/repository/file"
	"github.com/and161185/slotguard/internal/repository/memory"
	"github.com/and161185/slotguard/internal/repository/postgres"
)

// openStore builds the configured session store and a func releasing it.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repository.Store, func(), error) {
	noop := func() {}
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), noop, nil

	case config.StoreFile:
		dir := cfg.StorePath
		if dir == "" {
			dir = file.DefaultDir()
		}
		s, err := file.New(dir, cfg.StoreKey)
		if err != nil {
			return nil, nil, fmt.Errorf("file store: %w", err)
		}
		return s, noop, nil

	case config.StoreBolt:
		p := cfg.StorePath
		if p == "" {
			p = filepath.Join(file.DefaultDir(), "session.db")
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return nil, nil, err
		}
		s, err := boltkv.Open(p)
		if err != nil {
			return nil, nil, fmt.Errorf("bolt store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil

	case config.StorePostgres:
		n, err := migrate.Up(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, nil, err
		}
		if n > 0 {
			log.Info("migrations applied", zap.Int("count", n))
		}
		db, err := postgres.New(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres store: %w", err)
		}
		return postgres.NewKVRepo(db, cfg.Namespace), db.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}
