package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/fishonbid/fishbid/internal/model"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_CreateAuction(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	a := &model.Auction{
		ID:           "a1",
		FishName:     "Tuna",
		Location:     "Kochi",
		StartPrice:   520,
		CurrentPrice: 520,
		StartTime:    time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC),
		EndTime:      time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC),
		Active:       true,
		DataSource:   model.SourceUserManual,
	}

	mock.ExpectExec(`INSERT INTO auctions`).
		WithArgs(a.ID, a.FishName, a.Location, a.StartPrice, a.CurrentPrice,
			a.StartTime, a.EndTime, a.Active, a.QuantityKg, a.FreshnessScore,
			a.AISuggestedPrice, a.SellerNotes, string(a.DataSource)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.CreateAuction(context.Background(), a))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateAuctionPriceRegression(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	a := &model.Auction{ID: "a1", CurrentPrice: 400, Active: true}

	// Conditional update matches no row, then the follow-up lookup finds the
	// auction, so the failure is classified as a price regression.
	mock.ExpectExec(`UPDATE auctions`).
		WithArgs(a.CurrentPrice, a.Active, a.FreshnessScore,
			a.AISuggestedPrice, a.SellerNotes, a.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT .+ FROM auctions WHERE id`).
		WithArgs(a.ID).
		WillReturnRows(auctionRows(mock, "a1", "Tuna", "Kochi", 500, true))

	err := s.UpdateAuction(context.Background(), a)
	require.True(t, eris.Is(err, ErrPriceRegression))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAuctionNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM auctions WHERE id`).
		WithArgs("missing").
		WillReturnRows(emptyAuctionRows(mock))

	_, err := s.GetAuction(context.Background(), "missing")
	require.True(t, eris.Is(err, ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BidsForAuction(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	placed := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "auction_id", "amount", "bidder_email", "placed_at"}).
		AddRow("b2", "a1", 480.0, "two@example.com", placed.Add(time.Minute)).
		AddRow("b1", "a1", 450.0, "one@example.com", placed)

	mock.ExpectQuery(`SELECT .+ FROM bids WHERE auction_id`).
		WithArgs("a1").
		WillReturnRows(rows)

	bids, err := s.BidsForAuction(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Equal(t, 480.0, bids[0].Amount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteBid(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM bids WHERE id`).
		WithArgs("b1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, s.DeleteBid(context.Background(), "b1"))

	mock.ExpectExec(`DELETE FROM bids WHERE id`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	err := s.DeleteBid(context.Background(), "missing")
	require.True(t, eris.Is(err, ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindGenericFishGovtRecords(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	since := time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM auctions`).
		WithArgs(string(model.SourceGovtAPI), since, "Kochi", 20).
		WillReturnRows(auctionRows(mock, "g1", "Fish", "Kochi", 300, false))

	got, err := s.FindGenericFishGovtRecords(context.Background(), "Kochi", since, 20)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Fish", got[0].FishName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func auctionRows(mock pgxmock.PgxPoolIface, id, fish, location string, price float64, active bool) *pgxmock.Rows {
	start := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	return emptyAuctionRows(mock).AddRow(
		id, fish, location, price, price, start, start.Add(24*time.Hour),
		active, (*float64)(nil), (*int)(nil), (*float64)(nil), "",
		string(model.SourceGovtAPI),
	)
}

func emptyAuctionRows(mock pgxmock.PgxPoolIface) *pgxmock.Rows {
	return mock.NewRows([]string{
		"id", "fish_name", "location", "start_price", "current_price",
		"start_time", "end_time", "active", "quantity_kg", "freshness_score",
		"ai_suggested_price", "seller_notes", "data_source",
	})
}
