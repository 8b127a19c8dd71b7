package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/fishonbid/fishbid/internal/config"
	"github.com/fishonbid/fishbid/internal/marketsync"
	"github.com/fishonbid/fishbid/internal/store"
	"github.com/fishonbid/fishbid/internal/vision"
)

// openStore selects the storage backend from config, runs migrations, and
// returns the store with its closer.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func() error, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "memory":
		st = store.NewMemory()
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, err
	}
	return st, st.Close, nil
}

// newSyncService builds the government feed import from config. The primary
// feed gets the longer timeout; the secondary fans out per state and is kept
// on a tighter budget.
func newSyncService(cfg *config.Config, st store.Store, onSynced func(context.Context)) (*marketsync.Service, error) {
	aliases, err := marketsync.LoadAliases(cfg.Sync.AliasFile)
	if err != nil {
		return nil, err
	}
	norm := marketsync.NewNormalizer(aliases, cfg.Sync.QuintalDivisor)

	rps := rate.Limit(cfg.Sync.RatePerSecond)
	primary := marketsync.NewClient(cfg.Sync.PrimaryURL, cfg.Sync.APIKey, 30*time.Second, rps, 2)
	secondary := marketsync.NewClient(cfg.Sync.SecondaryURL, cfg.Sync.APIKey, 20*time.Second, rps, 2)

	return marketsync.NewService(st, primary, secondary, norm, onSynced), nil
}

func newAnalyzer(cfg *config.Config) vision.Analyzer {
	if cfg.Anthropic.Key != "" {
		return vision.NewClaudeAnalyzer(cfg.Anthropic.Key)
	}
	return vision.NewMockAnalyzer()
}
