// Package store persists auctions, bids, and pricing decision logs.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fishonbid/fishbid/internal/model"
)

// ErrNotFound is returned when a referenced auction or bid does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrPriceRegression is returned when an auction update would lower the
// current price. The bid engine never produces such an update; this guards
// against callers violating the monotonic-price invariant.
var ErrPriceRegression = eris.New("store: current price may not decrease")

// AuctionFilter specifies criteria for listing auctions.
type AuctionFilter struct {
	Active   *bool            `json:"active,omitempty"`
	Source   model.DataSource `json:"source,omitempty"`
	FishName string           `json:"fish_name,omitempty"`
	Limit    int              `json:"limit,omitempty"`
}

// Store defines the persistence interface for the auction marketplace.
// Implementations must apply the monotonic-price guard in UpdateAuction and
// return bids ordered by amount descending, then placed-at ascending, so the
// first bid is always the deterministic winner.
type Store interface {
	// Auctions
	CreateAuction(ctx context.Context, a *model.Auction) error
	UpdateAuction(ctx context.Context, a *model.Auction) error
	GetAuction(ctx context.Context, id string) (*model.Auction, error)
	ListAuctions(ctx context.Context, filter AuctionFilter) ([]model.Auction, error)

	// Bids
	CreateBid(ctx context.Context, b *model.Bid) error
	DeleteBid(ctx context.Context, id string) error
	BidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	TopBid(ctx context.Context, auctionID string) (*model.Bid, error)
	CountBids(ctx context.Context, auctionID string) (int, error)

	// Pricing retrieval
	FindRecentAuctions(ctx context.Context, fishName string, since time.Time) ([]model.Auction, error)
	FindRecentAuctionsByLocation(ctx context.Context, fishName, location string, since time.Time) ([]model.Auction, error)
	FindGenericFishGovtRecords(ctx context.Context, location string, since time.Time, limit int) ([]model.Auction, error)

	// Audit
	SaveDecisionLog(ctx context.Context, d *model.DecisionLog) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
