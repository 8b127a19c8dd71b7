package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fishonbid/fishbid/internal/model"
)

// MemoryStore is an in-process Store used by tests and demo mode. It applies
// the same ordering and monotonic-price rules as the SQL drivers.
type MemoryStore struct {
	mu       sync.RWMutex
	auctions map[string]model.Auction
	bids     map[string][]model.Bid
	logs     []model.DecisionLog
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		auctions: make(map[string]model.Auction),
		bids:     make(map[string][]model.Bid),
	}
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                      { return nil }

func (s *MemoryStore) CreateAuction(ctx context.Context, a *model.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[a.ID] = *a
	return nil
}

func (s *MemoryStore) UpdateAuction(ctx context.Context, a *model.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.auctions[a.ID]
	if !ok {
		return ErrNotFound
	}
	if a.CurrentPrice < existing.CurrentPrice {
		return ErrPriceRegression
	}
	s.auctions[a.ID] = *a
	return nil
}

func (s *MemoryStore) GetAuction(ctx context.Context, id string) (*model.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) ListAuctions(ctx context.Context, filter AuctionFilter) ([]model.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Auction
	for _, a := range s.auctions {
		if filter.Active != nil && a.Active != *filter.Active {
			continue
		}
		if filter.Source != "" && a.DataSource != filter.Source {
			continue
		}
		if filter.FishName != "" && a.FishName != filter.FishName {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CreateBid(ctx context.Context, b *model.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids[b.AuctionID] = append(s.bids[b.AuctionID], *b)
	return nil
}

func (s *MemoryStore) DeleteBid(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for auctionID, bids := range s.bids {
		for i := range bids {
			if bids[i].ID == id {
				s.bids[auctionID] = append(bids[:i], bids[i+1:]...)
				return nil
			}
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) BidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bids := make([]model.Bid, len(s.bids[auctionID]))
	copy(bids, s.bids[auctionID])
	sort.SliceStable(bids, func(i, j int) bool {
		if bids[i].Amount != bids[j].Amount {
			return bids[i].Amount > bids[j].Amount
		}
		return bids[i].PlacedAt.Before(bids[j].PlacedAt)
	})
	return bids, nil
}

func (s *MemoryStore) TopBid(ctx context.Context, auctionID string) (*model.Bid, error) {
	bids, err := s.BidsForAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if len(bids) == 0 {
		return nil, ErrNotFound
	}
	return &bids[0], nil
}

func (s *MemoryStore) CountBids(ctx context.Context, auctionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bids[auctionID]), nil
}

func (s *MemoryStore) FindRecentAuctions(ctx context.Context, fishName string, since time.Time) ([]model.Auction, error) {
	return s.filterAuctions(func(a model.Auction) bool {
		return a.FishName == fishName && !a.StartTime.Before(since)
	}, 0), nil
}

func (s *MemoryStore) FindRecentAuctionsByLocation(ctx context.Context, fishName, location string, since time.Time) ([]model.Auction, error) {
	return s.filterAuctions(func(a model.Auction) bool {
		return a.FishName == fishName && a.Location == location && !a.StartTime.Before(since)
	}, 0), nil
}

func (s *MemoryStore) FindGenericFishGovtRecords(ctx context.Context, location string, since time.Time, limit int) ([]model.Auction, error) {
	return s.filterAuctions(func(a model.Auction) bool {
		if a.FishName != "Fish" || a.DataSource != model.SourceGovtAPI || a.StartTime.Before(since) {
			return false
		}
		return location == "" || a.Location == location
	}, limit), nil
}

func (s *MemoryStore) SaveDecisionLog(ctx context.Context, d *model.DecisionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *d)
	return nil
}

// DecisionLogs returns recorded decision logs, for test assertions.
func (s *MemoryStore) DecisionLogs() []model.DecisionLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.DecisionLog, len(s.logs))
	copy(out, s.logs)
	return out
}

func (s *MemoryStore) filterAuctions(keep func(model.Auction) bool, limit int) []model.Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Auction
	for _, a := range s.auctions {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
