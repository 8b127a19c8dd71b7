package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/fishonbid/fishbid/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it,
// which keeps the driver unit-testable without a live database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS auctions (
	id                 TEXT PRIMARY KEY,
	fish_name          TEXT NOT NULL,
	location           TEXT NOT NULL DEFAULT '',
	start_price        DOUBLE PRECISION NOT NULL,
	current_price      DOUBLE PRECISION NOT NULL,
	start_time         TIMESTAMPTZ NOT NULL,
	end_time           TIMESTAMPTZ NOT NULL,
	active             BOOLEAN NOT NULL DEFAULT true,
	quantity_kg        DOUBLE PRECISION,
	freshness_score    INTEGER,
	ai_suggested_price DOUBLE PRECISION,
	seller_notes       TEXT NOT NULL DEFAULT '',
	data_source        TEXT NOT NULL DEFAULT 'USER_MANUAL'
);

CREATE TABLE IF NOT EXISTS bids (
	id           TEXT PRIMARY KEY,
	auction_id   TEXT NOT NULL REFERENCES auctions(id),
	amount       DOUBLE PRECISION NOT NULL,
	bidder_email TEXT NOT NULL,
	placed_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS decision_logs (
	id               TEXT PRIMARY KEY,
	request_type     TEXT NOT NULL,
	input            TEXT NOT NULL,
	output           TEXT NOT NULL,
	data_points_used INTEGER NOT NULL DEFAULT 0,
	processing_ms    BIGINT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_auctions_fish_name ON auctions(fish_name);
CREATE INDEX IF NOT EXISTS idx_auctions_fish_location ON auctions(fish_name, location);
CREATE INDEX IF NOT EXISTS idx_auctions_source ON auctions(data_source);
CREATE INDEX IF NOT EXISTS idx_auctions_active ON auctions(active);
CREATE INDEX IF NOT EXISTS idx_bids_auction ON bids(auction_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const pgAuctionCols = `id, fish_name, location, start_price, current_price,
	start_time, end_time, active, quantity_kg, freshness_score,
	ai_suggested_price, seller_notes, data_source`

func (s *PostgresStore) CreateAuction(ctx context.Context, a *model.Auction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO auctions (`+pgAuctionCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.FishName, a.Location, a.StartPrice, a.CurrentPrice,
		a.StartTime.UTC(), a.EndTime.UTC(), a.Active, a.QuantityKg,
		a.FreshnessScore, a.AISuggestedPrice, a.SellerNotes, string(a.DataSource),
	)
	return eris.Wrap(err, "postgres: insert auction")
}

func (s *PostgresStore) UpdateAuction(ctx context.Context, a *model.Auction) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE auctions
		 SET current_price = $1, active = $2, freshness_score = $3,
		     ai_suggested_price = $4, seller_notes = $5
		 WHERE id = $6 AND current_price <= $1`,
		a.CurrentPrice, a.Active, a.FreshnessScore,
		a.AISuggestedPrice, a.SellerNotes, a.ID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update auction")
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetAuction(ctx, a.ID); getErr != nil {
			return getErr
		}
		return ErrPriceRegression
	}
	return nil
}

func (s *PostgresStore) GetAuction(ctx context.Context, id string) (*model.Auction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgAuctionCols+` FROM auctions WHERE id = $1`, id)
	a, err := scanPGAuction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get auction")
	}
	return a, nil
}

func (s *PostgresStore) ListAuctions(ctx context.Context, filter AuctionFilter) ([]model.Auction, error) {
	query := `SELECT ` + pgAuctionCols + ` FROM auctions WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.Active != nil {
		query += ` AND active = ` + arg(*filter.Active)
	}
	if filter.Source != "" {
		query += ` AND data_source = ` + arg(string(filter.Source))
	}
	if filter.FishName != "" {
		query += ` AND fish_name = ` + arg(filter.FishName)
	}
	query += ` ORDER BY start_time DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list auctions")
	}
	defer rows.Close()
	return collectPGAuctions(rows)
}

func (s *PostgresStore) CreateBid(ctx context.Context, b *model.Bid) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bids (id, auction_id, amount, bidder_email, placed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		b.ID, b.AuctionID, b.Amount, b.BidderEmail, b.PlacedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: insert bid")
}

func (s *PostgresStore) DeleteBid(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bids WHERE id = $1`, id)
	if err != nil {
		return eris.Wrap(err, "postgres: delete bid")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) BidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, auction_id, amount, bidder_email, placed_at
		 FROM bids WHERE auction_id = $1
		 ORDER BY amount DESC, placed_at ASC`, auctionID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: bids for auction")
	}
	defer rows.Close()

	var bids []model.Bid
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.Amount, &b.BidderEmail, &b.PlacedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan bid")
		}
		bids = append(bids, b)
	}
	return bids, eris.Wrap(rows.Err(), "postgres: iterate bids")
}

func (s *PostgresStore) TopBid(ctx context.Context, auctionID string) (*model.Bid, error) {
	var b model.Bid
	err := s.pool.QueryRow(ctx,
		`SELECT id, auction_id, amount, bidder_email, placed_at
		 FROM bids WHERE auction_id = $1
		 ORDER BY amount DESC, placed_at ASC LIMIT 1`, auctionID).
		Scan(&b.ID, &b.AuctionID, &b.Amount, &b.BidderEmail, &b.PlacedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: top bid")
	}
	return &b, nil
}

func (s *PostgresStore) CountBids(ctx context.Context, auctionID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM bids WHERE auction_id = $1`, auctionID).Scan(&n)
	return n, eris.Wrap(err, "postgres: count bids")
}

func (s *PostgresStore) FindRecentAuctions(ctx context.Context, fishName string, since time.Time) ([]model.Auction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgAuctionCols+` FROM auctions
		 WHERE fish_name = $1 AND start_time >= $2
		 ORDER BY start_time DESC`,
		fishName, since.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find recent auctions")
	}
	defer rows.Close()
	return collectPGAuctions(rows)
}

func (s *PostgresStore) FindRecentAuctionsByLocation(ctx context.Context, fishName, location string, since time.Time) ([]model.Auction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgAuctionCols+` FROM auctions
		 WHERE fish_name = $1 AND location = $2 AND start_time >= $3
		 ORDER BY start_time DESC`,
		fishName, location, since.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find recent auctions by location")
	}
	defer rows.Close()
	return collectPGAuctions(rows)
}

func (s *PostgresStore) FindGenericFishGovtRecords(ctx context.Context, location string, since time.Time, limit int) ([]model.Auction, error) {
	query := `SELECT ` + pgAuctionCols + ` FROM auctions
		 WHERE fish_name = 'Fish' AND data_source = $1 AND start_time >= $2`
	args := []any{string(model.SourceGovtAPI), since.UTC()}
	if location != "" {
		args = append(args, location)
		query += ` AND location = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY start_time DESC`
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find generic govt records")
	}
	defer rows.Close()
	return collectPGAuctions(rows)
}

func (s *PostgresStore) SaveDecisionLog(ctx context.Context, d *model.DecisionLog) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO decision_logs (id, request_type, input, output, data_points_used, processing_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.RequestType, d.Input, d.Output, d.DataPointsUsed, d.ProcessingMs, d.Timestamp.UTC(),
	)
	return eris.Wrap(err, "postgres: insert decision log")
}

func scanPGAuction(row pgx.Row) (*model.Auction, error) {
	var (
		a      model.Auction
		source string
	)
	err := row.Scan(
		&a.ID, &a.FishName, &a.Location, &a.StartPrice, &a.CurrentPrice,
		&a.StartTime, &a.EndTime, &a.Active, &a.QuantityKg, &a.FreshnessScore,
		&a.AISuggestedPrice, &a.SellerNotes, &source,
	)
	if err != nil {
		return nil, err
	}
	a.DataSource = model.DataSource(source)
	return &a, nil
}

func collectPGAuctions(rows pgx.Rows) ([]model.Auction, error) {
	var auctions []model.Auction
	for rows.Next() {
		a, err := scanPGAuction(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan auction")
		}
		auctions = append(auctions, *a)
	}
	return auctions, eris.Wrap(rows.Err(), "postgres: iterate auctions")
}

