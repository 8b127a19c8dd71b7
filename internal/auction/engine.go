// Package auction implements bid admission and auction lifecycle rules.
package auction

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fishonbid/fishbid/internal/event"
	"github.com/fishonbid/fishbid/internal/model"
	"github.com/fishonbid/fishbid/internal/store"
)

var (
	// ErrAuctionNotFound is returned when the auction does not exist.
	ErrAuctionNotFound = eris.New("auction: not found")
	// ErrAuctionClosed is returned when bidding on an already closed auction.
	ErrAuctionClosed = eris.New("auction: closed")
	// ErrAuctionExpired is returned when a bid arrives after the end time.
	// The auction is closed as a side effect before this is returned.
	ErrAuctionExpired = eris.New("auction: expired")
	// ErrBidTooLow is returned when a bid does not exceed the current price.
	ErrBidTooLow = eris.New("auction: bid must exceed current price")
	// ErrNoBids is returned when closing resolves no winner.
	ErrNoBids = eris.New("auction: no bids placed")
)

// Engine serializes bid admission per auction and publishes lifecycle events.
type Engine struct {
	store store.Store
	bus   *event.Bus
	log   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	nowFunc func() time.Time
}

// NewEngine creates a bid admission engine backed by the given store.
func NewEngine(st store.Store, bus *event.Bus) *Engine {
	return &Engine{
		store:   st,
		bus:     bus,
		log:     zap.L().Named("auction"),
		locks:   make(map[string]*sync.Mutex),
		nowFunc: time.Now,
	}
}

// lockFor returns the mutex guarding one auction's admission path. Bids on
// different auctions never contend with each other.
func (e *Engine) lockFor(auctionID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[auctionID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[auctionID] = l
	}
	return l
}

// evictLock drops a closed auction's mutex so the map does not grow without
// bound. Safe after close: any straggler holding the old mutex re-reads the
// auction, sees it inactive, and is rejected regardless of which mutex it
// serialized on.
func (e *Engine) evictLock(auctionID string) {
	e.mu.Lock()
	delete(e.locks, auctionID)
	e.mu.Unlock()
}

// CreateParams holds seller input for a new auction listing.
type CreateParams struct {
	FishName       string           `json:"fish_name"`
	Location       string           `json:"location"`
	StartPrice     float64          `json:"start_price"`
	Duration       time.Duration    `json:"-"`
	QuantityKg     *float64         `json:"quantity_kg,omitempty"`
	FreshnessScore *int             `json:"freshness_score,omitempty"`
	SellerNotes    string           `json:"seller_notes,omitempty"`
	DataSource     model.DataSource `json:"data_source,omitempty"`
}

// Create opens a new auction and publishes an AUCTION_CREATED event.
func (e *Engine) Create(ctx context.Context, p CreateParams) (*model.Auction, error) {
	if p.FishName == "" {
		return nil, eris.New("auction: fish name is required")
	}
	if p.StartPrice <= 0 {
		return nil, eris.New("auction: start price must be positive")
	}
	if p.Duration <= 0 {
		p.Duration = 24 * time.Hour
	}
	source := p.DataSource
	if source == "" {
		source = model.SourceUserManual
	}

	now := e.nowFunc().UTC()
	a := &model.Auction{
		ID:             uuid.NewString(),
		FishName:       p.FishName,
		Location:       p.Location,
		StartPrice:     p.StartPrice,
		CurrentPrice:   p.StartPrice,
		StartTime:      now,
		EndTime:        now.Add(p.Duration),
		Active:         true,
		QuantityKg:     p.QuantityKg,
		FreshnessScore: p.FreshnessScore,
		SellerNotes:    p.SellerNotes,
		DataSource:     source,
	}
	if err := e.store.CreateAuction(ctx, a); err != nil {
		return nil, eris.Wrap(err, "auction: create")
	}

	e.bus.Publish(event.NewAuctionCreated(event.AuctionCreated{
		AuctionID:  a.ID,
		FishName:   a.FishName,
		StartPrice: a.StartPrice,
		Location:   a.Location,
		CreatedBy:  string(source),
	}))
	e.log.Info("auction created",
		zap.String("auction_id", a.ID),
		zap.String("fish_name", a.FishName),
		zap.Float64("start_price", a.StartPrice),
	)
	return a, nil
}

// PlaceBid admits a bid against an auction. Admission is serialized per
// auction: the expiry check, the price comparison, and the writes happen
// under the auction's lock so concurrent bidders observe a consistent
// current price.
func (e *Engine) PlaceBid(ctx context.Context, auctionID, bidderEmail string, amount float64) (*model.Bid, error) {
	if bidderEmail == "" {
		return nil, eris.New("auction: bidder email is required")
	}
	if amount <= 0 {
		return nil, eris.New("auction: bid amount must be positive")
	}

	l := e.lockFor(auctionID)
	l.Lock()
	defer l.Unlock()

	a, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return nil, ErrAuctionNotFound
		}
		return nil, eris.Wrap(err, "auction: load for bid")
	}
	if !a.Active {
		return nil, ErrAuctionClosed
	}

	now := e.nowFunc().UTC()
	if a.Expired(now) {
		// A late bid settles the auction instead of being admitted.
		if _, closeErr := e.closeLocked(ctx, a); closeErr != nil && !eris.Is(closeErr, ErrNoBids) {
			return nil, closeErr
		}
		return nil, ErrAuctionExpired
	}

	if amount <= a.CurrentPrice {
		return nil, ErrBidTooLow
	}

	b := &model.Bid{
		ID:          uuid.NewString(),
		AuctionID:   a.ID,
		Amount:      amount,
		BidderEmail: bidderEmail,
		PlacedAt:    now,
	}
	if err := e.store.CreateBid(ctx, b); err != nil {
		return nil, eris.Wrap(err, "auction: record bid")
	}

	previous := a.CurrentPrice
	a.CurrentPrice = amount
	if err := e.store.UpdateAuction(ctx, a); err != nil {
		// The bid is only admitted once the price advances. Take it back
		// out so a failed update cannot leave an orphaned bid behind.
		if delErr := e.store.DeleteBid(ctx, b.ID); delErr != nil {
			e.log.Warn("failed to remove bid after price update failure",
				zap.String("bid_id", b.ID), zap.Error(delErr))
		}
		return nil, eris.Wrap(err, "auction: advance price")
	}

	e.bus.Publish(event.NewBidPlaced(event.BidPlaced{
		AuctionID:     a.ID,
		BidID:         b.ID,
		Amount:        b.Amount,
		PreviousPrice: previous,
		BidderEmail:   b.BidderEmail,
		FishName:      a.FishName,
	}))
	e.log.Info("bid placed",
		zap.String("auction_id", a.ID),
		zap.Float64("amount", amount),
		zap.Float64("previous_price", previous),
	)
	return b, nil
}

// Close settles an auction. The winner is the highest bid; ties go to the
// earliest bid. Closing an auction with no bids succeeds and publishes an
// AUCTION_CLOSED event without a winner.
func (e *Engine) Close(ctx context.Context, auctionID string) (*model.Auction, error) {
	l := e.lockFor(auctionID)
	l.Lock()
	defer l.Unlock()

	a, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return nil, ErrAuctionNotFound
		}
		return nil, eris.Wrap(err, "auction: load for close")
	}
	if !a.Active {
		return nil, ErrAuctionClosed
	}

	if _, err := e.closeLocked(ctx, a); err != nil && !eris.Is(err, ErrNoBids) {
		return nil, err
	}
	return a, nil
}

// closeLocked marks the auction inactive and resolves the winner. Callers
// must hold the auction's lock.
func (e *Engine) closeLocked(ctx context.Context, a *model.Auction) (*model.Bid, error) {
	a.Active = false
	if err := e.store.UpdateAuction(ctx, a); err != nil {
		return nil, eris.Wrap(err, "auction: mark closed")
	}
	e.evictLock(a.ID)

	bids, err := e.store.BidsForAuction(ctx, a.ID)
	if err != nil {
		return nil, eris.Wrap(err, "auction: resolve winner")
	}

	var winner *model.Bid
	if len(bids) > 0 {
		winner = &bids[0]
	}
	closed := event.AuctionClosed{
		AuctionID:  a.ID,
		FishName:   a.FishName,
		FinalPrice: a.CurrentPrice,
		TotalBids:  len(bids),
	}
	if winner != nil {
		closed.WinnerEmail = winner.BidderEmail
	}
	e.bus.Publish(event.NewAuctionClosed(closed))
	e.log.Info("auction closed",
		zap.String("auction_id", a.ID),
		zap.Int("total_bids", len(bids)),
		zap.Bool("has_winner", winner != nil),
	)
	if winner == nil {
		return nil, ErrNoBids
	}
	return winner, nil
}

// CloseExpired settles every active auction whose end time has passed.
// It is invoked by the scheduler and before listing reads.
func (e *Engine) CloseExpired(ctx context.Context) (int, error) {
	active := true
	auctions, err := e.store.ListAuctions(ctx, store.AuctionFilter{Active: &active})
	if err != nil {
		return 0, eris.Wrap(err, "auction: list active")
	}

	now := e.nowFunc().UTC()
	closed := 0
	for i := range auctions {
		if !auctions[i].Expired(now) {
			continue
		}
		if _, err := e.Close(ctx, auctions[i].ID); err != nil && !eris.Is(err, ErrAuctionClosed) {
			e.log.Warn("failed to close expired auction",
				zap.String("auction_id", auctions[i].ID), zap.Error(err))
			continue
		}
		closed++
	}
	return closed, nil
}

// Summary describes an auction together with its settlement state.
type Summary struct {
	Auction     model.Auction `json:"auction"`
	TotalBids   int           `json:"total_bids"`
	WinnerEmail string        `json:"winner_email,omitempty"`
	WinnerBid   *model.Bid    `json:"winner_bid,omitempty"`
}

// Get returns one auction with its bid count and, once closed, its winner.
func (e *Engine) Get(ctx context.Context, auctionID string) (*Summary, error) {
	a, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return nil, ErrAuctionNotFound
		}
		return nil, eris.Wrap(err, "auction: get")
	}

	n, err := e.store.CountBids(ctx, auctionID)
	if err != nil {
		return nil, eris.Wrap(err, "auction: count bids")
	}

	s := &Summary{Auction: *a, TotalBids: n}
	if !a.Active && n > 0 {
		top, err := e.store.TopBid(ctx, auctionID)
		if err != nil {
			return nil, eris.Wrap(err, "auction: winner lookup")
		}
		s.WinnerBid = top
		s.WinnerEmail = top.BidderEmail
	}
	return s, nil
}

// List returns auctions matching the filter, settling any expired listings
// first so callers never observe an active auction past its end time.
func (e *Engine) List(ctx context.Context, filter store.AuctionFilter) ([]model.Auction, error) {
	if _, err := e.CloseExpired(ctx); err != nil {
		e.log.Warn("expiry sweep before listing failed", zap.Error(err))
	}
	return e.store.ListAuctions(ctx, filter)
}

// Bids returns the bid history for an auction, highest first.
func (e *Engine) Bids(ctx context.Context, auctionID string) ([]model.Bid, error) {
	if _, err := e.store.GetAuction(ctx, auctionID); err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return nil, ErrAuctionNotFound
		}
		return nil, eris.Wrap(err, "auction: load for bids")
	}
	return e.store.BidsForAuction(ctx, auctionID)
}
