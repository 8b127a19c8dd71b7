package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/fishonbid/fishbid/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS auctions (
	id                 TEXT PRIMARY KEY,
	fish_name          TEXT NOT NULL,
	location           TEXT NOT NULL DEFAULT '',
	start_price        REAL NOT NULL,
	current_price      REAL NOT NULL,
	start_time         DATETIME NOT NULL,
	end_time           DATETIME NOT NULL,
	active             INTEGER NOT NULL DEFAULT 1,
	quantity_kg        REAL,
	freshness_score    INTEGER,
	ai_suggested_price REAL,
	seller_notes       TEXT NOT NULL DEFAULT '',
	data_source        TEXT NOT NULL DEFAULT 'USER_MANUAL'
);

CREATE TABLE IF NOT EXISTS bids (
	id           TEXT PRIMARY KEY,
	auction_id   TEXT NOT NULL REFERENCES auctions(id),
	amount       REAL NOT NULL,
	bidder_email TEXT NOT NULL,
	placed_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS decision_logs (
	id               TEXT PRIMARY KEY,
	request_type     TEXT NOT NULL,
	input            TEXT NOT NULL,
	output           TEXT NOT NULL,
	data_points_used INTEGER NOT NULL DEFAULT 0,
	processing_ms    INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_auctions_fish_name ON auctions(fish_name);
CREATE INDEX IF NOT EXISTS idx_auctions_fish_location ON auctions(fish_name, location);
CREATE INDEX IF NOT EXISTS idx_auctions_source ON auctions(data_source);
CREATE INDEX IF NOT EXISTS idx_auctions_active ON auctions(active);
CREATE INDEX IF NOT EXISTS idx_bids_auction ON bids(auction_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteAuctionCols = `id, fish_name, location, start_price, current_price,
	start_time, end_time, active, quantity_kg, freshness_score,
	ai_suggested_price, seller_notes, data_source`

func (s *SQLiteStore) CreateAuction(ctx context.Context, a *model.Auction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO auctions (`+sqliteAuctionCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.FishName, a.Location, a.StartPrice, a.CurrentPrice,
		a.StartTime.UTC(), a.EndTime.UTC(), boolToInt(a.Active),
		a.QuantityKg, a.FreshnessScore, a.AISuggestedPrice, a.SellerNotes,
		string(a.DataSource),
	)
	return eris.Wrap(err, "sqlite: insert auction")
}

func (s *SQLiteStore) UpdateAuction(ctx context.Context, a *model.Auction) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE auctions
		 SET current_price = ?, active = ?, freshness_score = ?,
		     ai_suggested_price = ?, seller_notes = ?
		 WHERE id = ? AND current_price <= ?`,
		a.CurrentPrice, boolToInt(a.Active), a.FreshnessScore,
		a.AISuggestedPrice, a.SellerNotes, a.ID, a.CurrentPrice,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: update auction")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: update auction rows affected")
	}
	if n == 0 {
		// Either the row is missing or the update would lower the price.
		if _, getErr := s.GetAuction(ctx, a.ID); getErr != nil {
			return getErr
		}
		return ErrPriceRegression
	}
	return nil
}

func (s *SQLiteStore) GetAuction(ctx context.Context, id string) (*model.Auction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteAuctionCols+` FROM auctions WHERE id = ?`, id)
	a, err := scanSQLiteAuction(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get auction")
	}
	return a, nil
}

func (s *SQLiteStore) ListAuctions(ctx context.Context, filter AuctionFilter) ([]model.Auction, error) {
	query := `SELECT ` + sqliteAuctionCols + ` FROM auctions WHERE 1=1`
	var args []any
	if filter.Active != nil {
		query += ` AND active = ?`
		args = append(args, boolToInt(*filter.Active))
	}
	if filter.Source != "" {
		query += ` AND data_source = ?`
		args = append(args, string(filter.Source))
	}
	if filter.FishName != "" {
		query += ` AND fish_name = ?`
		args = append(args, filter.FishName)
	}
	query += ` ORDER BY start_time DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list auctions")
	}
	defer rows.Close()
	return collectSQLiteAuctions(rows)
}

func (s *SQLiteStore) CreateBid(ctx context.Context, b *model.Bid) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bids (id, auction_id, amount, bidder_email, placed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.AuctionID, b.Amount, b.BidderEmail, b.PlacedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert bid")
}

func (s *SQLiteStore) DeleteBid(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bids WHERE id = ?`, id)
	if err != nil {
		return eris.Wrap(err, "sqlite: delete bid")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) BidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, auction_id, amount, bidder_email, placed_at
		 FROM bids WHERE auction_id = ?
		 ORDER BY amount DESC, placed_at ASC`, auctionID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: bids for auction")
	}
	defer rows.Close()

	var bids []model.Bid
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.Amount, &b.BidderEmail, &b.PlacedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan bid")
		}
		bids = append(bids, b)
	}
	return bids, eris.Wrap(rows.Err(), "sqlite: iterate bids")
}

func (s *SQLiteStore) TopBid(ctx context.Context, auctionID string) (*model.Bid, error) {
	var b model.Bid
	err := s.db.QueryRowContext(ctx,
		`SELECT id, auction_id, amount, bidder_email, placed_at
		 FROM bids WHERE auction_id = ?
		 ORDER BY amount DESC, placed_at ASC LIMIT 1`, auctionID).
		Scan(&b.ID, &b.AuctionID, &b.Amount, &b.BidderEmail, &b.PlacedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: top bid")
	}
	return &b, nil
}

func (s *SQLiteStore) CountBids(ctx context.Context, auctionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bids WHERE auction_id = ?`, auctionID).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count bids")
}

func (s *SQLiteStore) FindRecentAuctions(ctx context.Context, fishName string, since time.Time) ([]model.Auction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteAuctionCols+` FROM auctions
		 WHERE fish_name = ? AND start_time >= ?
		 ORDER BY start_time DESC`,
		fishName, since.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find recent auctions")
	}
	defer rows.Close()
	return collectSQLiteAuctions(rows)
}

func (s *SQLiteStore) FindRecentAuctionsByLocation(ctx context.Context, fishName, location string, since time.Time) ([]model.Auction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteAuctionCols+` FROM auctions
		 WHERE fish_name = ? AND location = ? AND start_time >= ?
		 ORDER BY start_time DESC`,
		fishName, location, since.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find recent auctions by location")
	}
	defer rows.Close()
	return collectSQLiteAuctions(rows)
}

func (s *SQLiteStore) FindGenericFishGovtRecords(ctx context.Context, location string, since time.Time, limit int) ([]model.Auction, error) {
	query := `SELECT ` + sqliteAuctionCols + ` FROM auctions
		 WHERE fish_name = 'Fish' AND data_source = ? AND start_time >= ?`
	args := []any{string(model.SourceGovtAPI), since.UTC()}
	if location != "" {
		query += ` AND location = ?`
		args = append(args, location)
	}
	query += ` ORDER BY start_time DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find generic govt records")
	}
	defer rows.Close()
	return collectSQLiteAuctions(rows)
}

func (s *SQLiteStore) SaveDecisionLog(ctx context.Context, d *model.DecisionLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decision_logs (id, request_type, input, output, data_points_used, processing_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.RequestType, d.Input, d.Output, d.DataPointsUsed, d.ProcessingMs, d.Timestamp.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert decision log")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAuction(row rowScanner) (*model.Auction, error) {
	var (
		a      model.Auction
		active int
		source string
	)
	err := row.Scan(
		&a.ID, &a.FishName, &a.Location, &a.StartPrice, &a.CurrentPrice,
		&a.StartTime, &a.EndTime, &active, &a.QuantityKg, &a.FreshnessScore,
		&a.AISuggestedPrice, &a.SellerNotes, &source,
	)
	if err != nil {
		return nil, err
	}
	a.Active = active != 0
	a.DataSource = model.DataSource(source)
	return &a, nil
}

func collectSQLiteAuctions(rows *sql.Rows) ([]model.Auction, error) {
	var auctions []model.Auction
	for rows.Next() {
		a, err := scanSQLiteAuction(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan auction")
		}
		auctions = append(auctions, *a)
	}
	return auctions, eris.Wrap(rows.Err(), "sqlite: iterate auctions")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
