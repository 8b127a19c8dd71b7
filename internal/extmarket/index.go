// Package extmarket maintains a per-species reference price index used to
// blend external market signal into price suggestions.
package extmarket

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fishonbid/fishbid/internal/model"
	"github.com/fishonbid/fishbid/internal/store"
)

const (
	keyPrefix = "fishbid:index:"
	entryTTL  = 24 * time.Hour

	// refreshLookback is how far back the hourly refresh looks for
	// government records when recomputing index entries.
	refreshLookback = 7 * 24 * time.Hour
)

// seedPrices are baseline reference prices used until real data arrives.
var seedPrices = map[string]float64{
	"Tuna":    510,
	"Salmon":  690,
	"Pomfret": 610,
}

// Index caches one reference price per species. With a Redis client it is
// shared across processes; without one it degrades to an in-process map.
// Redis failures fall through to the local map rather than failing lookups.
type Index struct {
	rdb *redis.Client
	log *zap.Logger

	mu    sync.RWMutex
	local map[string]float64
}

// NewIndex creates an index. rdb may be nil for in-process-only mode. The
// seed prices are loaded into the local map either way.
func NewIndex(rdb *redis.Client) *Index {
	local := make(map[string]float64, len(seedPrices))
	for fish, price := range seedPrices {
		local[fish] = price
	}
	return &Index{
		rdb:   rdb,
		log:   zap.L().Named("extmarket"),
		local: local,
	}
}

// NewIndexFromAddr connects to Redis and verifies the connection. An empty
// addr yields an in-process-only index.
func NewIndexFromAddr(ctx context.Context, addr string) (*Index, error) {
	if addr == "" {
		return NewIndex(nil), nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, eris.Wrapf(err, "extmarket: ping redis %s", addr)
	}
	return NewIndex(rdb), nil
}

// Price returns the reference price for a species and whether one is known.
func (x *Index) Price(ctx context.Context, fishName string) (float64, bool) {
	if x.rdb != nil {
		val, err := x.rdb.Get(ctx, keyPrefix+fishName).Result()
		if err == nil {
			if p, perr := strconv.ParseFloat(val, 64); perr == nil {
				return p, true
			}
		} else if err != redis.Nil {
			x.log.Warn("redis lookup failed, using local index",
				zap.String("fish_name", fishName), zap.Error(err))
		}
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	p, ok := x.local[fishName]
	return p, ok
}

// Update stores a new reference price for a species.
func (x *Index) Update(ctx context.Context, fishName string, price float64) {
	x.mu.Lock()
	x.local[fishName] = price
	x.mu.Unlock()

	if x.rdb != nil {
		err := x.rdb.Set(ctx, keyPrefix+fishName,
			strconv.FormatFloat(price, 'f', 2, 64), entryTTL).Err()
		if err != nil {
			x.log.Warn("redis update failed",
				zap.String("fish_name", fishName), zap.Error(err))
		}
	}
}

// Refresh recomputes index entries from recent government records. It is
// run hourly by the scheduler and after each market sync.
func (x *Index) Refresh(ctx context.Context, st store.Store) error {
	auctions, err := st.ListAuctions(ctx, store.AuctionFilter{Source: model.SourceGovtAPI})
	if err != nil {
		return eris.Wrap(err, "extmarket: load govt records")
	}

	cutoff := time.Now().UTC().Add(-refreshLookback)
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i := range auctions {
		a := &auctions[i]
		if a.StartTime.Before(cutoff) || a.FishName == "" {
			continue
		}
		sums[a.FishName] += a.CurrentPrice
		counts[a.FishName]++
	}

	for fish, n := range counts {
		x.Update(ctx, fish, sums[fish]/float64(n))
	}
	x.log.Info("market index refreshed", zap.Int("species", len(counts)))
	return nil
}
