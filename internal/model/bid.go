package model

import "time"

// Bid is an immutable offer on an auction. At admission time Amount strictly
// exceeded the auction's current price.
type Bid struct {
	ID          string    `json:"id"`
	AuctionID   string    `json:"auction_id"`
	Amount      float64   `json:"amount"`
	BidderEmail string    `json:"bidder_email"`
	PlacedAt    time.Time `json:"placed_at"`
}
