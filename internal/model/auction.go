package model

import (
	"time"
)

// DataSource identifies where an auction record came from. The pricing engine
// weights records differently by source.
type DataSource string

const (
	SourceUserManual DataSource = "USER_MANUAL"
	SourceSystem     DataSource = "SYSTEM_GENERATED"
	SourceGovtAPI    DataSource = "GOVT_INSTITUTIONAL_API"
	SourceDemo       DataSource = "SIMULATED_DEMO"
)

// Valid reports whether s is one of the known data sources.
func (s DataSource) Valid() bool {
	switch s {
	case SourceUserManual, SourceSystem, SourceGovtAPI, SourceDemo:
		return true
	}
	return false
}

// AuctionStatus is the lifecycle state of an auction. The only transition is
// ACTIVE → CLOSED, exactly once.
type AuctionStatus string

const (
	StatusActive AuctionStatus = "ACTIVE"
	StatusClosed AuctionStatus = "CLOSED"
)

// Auction is a timed sale of one fish lot. CurrentPrice never decreases and
// never drops below StartPrice. Once Active flips to false the record is
// immutable.
type Auction struct {
	ID           string     `json:"id"`
	FishName     string     `json:"fish_name"`
	Location     string     `json:"location"`
	StartPrice   float64    `json:"start_price"`
	CurrentPrice float64    `json:"current_price"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	Active       bool       `json:"active"`
	QuantityKg   *float64   `json:"quantity_kg,omitempty"`
	// FreshnessScore is an opaque 0-100 quality indicator from the vision
	// collaborator.
	FreshnessScore   *int       `json:"freshness_score,omitempty"`
	AISuggestedPrice *float64   `json:"ai_suggested_price,omitempty"`
	SellerNotes      string     `json:"seller_notes,omitempty"`
	DataSource       DataSource `json:"data_source"`
}

// Status derives the lifecycle state from the active flag.
func (a *Auction) Status() AuctionStatus {
	if a.Active {
		return StatusActive
	}
	return StatusClosed
}

// Expired reports whether the auction's end time has passed at now.
func (a *Auction) Expired(now time.Time) bool {
	return !now.Before(a.EndTime)
}
