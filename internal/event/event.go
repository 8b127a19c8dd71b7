// Package event carries auction lifecycle events between the bid engine and
// its subscribers over an in-process bus.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Type discriminates the closed set of domain events.
type Type string

const (
	TypeAuctionCreated Type = "AUCTION_CREATED"
	TypeBidPlaced      Type = "BID_PLACED"
	TypeAuctionClosed  Type = "AUCTION_CLOSED"
)

// Event is the common envelope. Exactly one of the payload fields is set,
// matching Kind. Events are immutable snapshots, not a source of truth.
type Event struct {
	ID        string    `json:"id"`
	Kind      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	AuctionCreated *AuctionCreated `json:"auction_created,omitempty"`
	BidPlaced      *BidPlaced      `json:"bid_placed,omitempty"`
	AuctionClosed  *AuctionClosed  `json:"auction_closed,omitempty"`
}

// AuctionCreated is emitted when a seller opens a new auction.
type AuctionCreated struct {
	AuctionID  string  `json:"auction_id"`
	FishName   string  `json:"fish_name"`
	StartPrice float64 `json:"start_price"`
	Location   string  `json:"location"`
	CreatedBy  string  `json:"created_by"`
}

// BidPlaced is emitted after a bid has been admitted and persisted.
type BidPlaced struct {
	AuctionID     string  `json:"auction_id"`
	BidID         string  `json:"bid_id"`
	Amount        float64 `json:"amount"`
	PreviousPrice float64 `json:"previous_price"`
	BidderEmail   string  `json:"bidder_email"`
	FishName      string  `json:"fish_name"`
}

// AuctionClosed is emitted when an auction reaches its terminal state.
// WinnerEmail is empty when the auction closed with zero bids.
type AuctionClosed struct {
	AuctionID   string  `json:"auction_id"`
	FishName    string  `json:"fish_name"`
	FinalPrice  float64 `json:"final_price"`
	WinnerEmail string  `json:"winner_email,omitempty"`
	TotalBids   int     `json:"total_bids"`
}

func newEnvelope(kind Type) Event {
	return Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuctionCreated builds an AuctionCreated event with a fresh envelope.
func NewAuctionCreated(p AuctionCreated) Event {
	e := newEnvelope(TypeAuctionCreated)
	e.AuctionCreated = &p
	return e
}

// NewBidPlaced builds a BidPlaced event with a fresh envelope.
func NewBidPlaced(p BidPlaced) Event {
	e := newEnvelope(TypeBidPlaced)
	e.BidPlaced = &p
	return e
}

// NewAuctionClosed builds an AuctionClosed event with a fresh envelope.
func NewAuctionClosed(p AuctionClosed) Event {
	e := newEnvelope(TypeAuctionClosed)
	e.AuctionClosed = &p
	return e
}
