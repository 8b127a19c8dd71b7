package marketsync

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fishonbid/fishbid/internal/model"
	"github.com/fishonbid/fishbid/internal/resilience"
	"github.com/fishonbid/fishbid/internal/store"
)

// coastalStates are queried one by one against the variety-wise feed.
var coastalStates = []string{
	"Kerala", "Tamil Nadu", "Karnataka", "Goa", "Maharashtra",
	"Gujarat", "Andhra Pradesh", "Odisha", "West Bengal",
}

const (
	primaryLimit   = 100
	secondaryLimit = 50

	// Imported records are backdated so they read as recently settled
	// market activity rather than open auctions.
	importBackdate  = 12 * time.Hour
	importDefaultKg = 100.0
)

// Sync status values.
const (
	StatusSuccess = "SUCCESS"
	StatusPartial = "PARTIAL"
	StatusFailed  = "FAILED"
)

// Result summarizes one sync run.
type Result struct {
	Status           string    `json:"status"`
	PrimaryRecords   int       `json:"primary_records"`
	SecondaryRecords int       `json:"secondary_records"`
	TotalRecords     int       `json:"total_records"`
	SkippedRecords   int       `json:"skipped_records"`
	DurationMs       int64     `json:"duration_ms"`
	Timestamp        time.Time `json:"timestamp"`
	CircuitState     string    `json:"circuit_state"`
	DataFreshness    string    `json:"data_freshness"`
}

// Status reports the sync state without running one.
type Status struct {
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
	LastStatus    string     `json:"last_status,omitempty"`
	CircuitState  string     `json:"circuit_state"`
	DataFreshness string     `json:"data_freshness"`
}

// Service orchestrates the dual-feed import. Both feeds share one circuit
// breaker; a failing source contributes zero records without aborting its
// sibling.
type Service struct {
	store     store.Store
	primary   *Client
	secondary *Client
	breaker   *resilience.CircuitBreaker
	norm      *Normalizer
	log       *zap.Logger

	primaryRetry   resilience.RetryConfig
	secondaryRetry resilience.RetryConfig

	// onSynced runs after a sync that imported records, e.g. to refresh
	// the external market index.
	onSynced func(context.Context)

	// lastSuccessAt tracks the last run that reached at least one feed.
	// Freshness is graded against it, so failed runs never make stale
	// data look fresh.
	mu            sync.Mutex
	lastSuccessAt time.Time
	lastStatus    string

	nowFunc func() time.Time
}

// NewService wires the sync service. onSynced may be nil.
func NewService(st store.Store, primary, secondary *Client, norm *Normalizer, onSynced func(context.Context)) *Service {
	secondaryRetry := resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
	return &Service{
		store:          st,
		primary:        primary,
		secondary:      secondary,
		breaker:        resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		norm:           norm,
		log:            zap.L().Named("marketsync"),
		primaryRetry:   resilience.DefaultRetryConfig(),
		secondaryRetry: secondaryRetry,
		onSynced:       onSynced,
		nowFunc:        time.Now,
	}
}

// Sync runs both feeds in parallel and imports what they return. It only
// returns an error for local failures; feed failures degrade the Status
// field instead.
func (s *Service) Sync(ctx context.Context) (*Result, error) {
	started := s.nowFunc()
	s.log.Info("market sync started")

	var (
		primaryRecs   []Record
		secondaryRecs []Record
		skipped       int
		countMu       sync.Mutex
		primaryOK     = true
		secondaryOK   = true
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, sk, err := s.fetchPrimary(gctx)
		countMu.Lock()
		defer countMu.Unlock()
		if err != nil {
			s.log.Warn("primary feed failed", zap.Error(err))
			primaryOK = false
			return nil
		}
		primaryRecs = recs
		skipped += sk
		return nil
	})
	g.Go(func() error {
		recs, sk, failed := s.fetchSecondary(gctx)
		countMu.Lock()
		defer countMu.Unlock()
		if failed {
			secondaryOK = false
		}
		secondaryRecs = recs
		skipped += sk
		return nil
	})
	_ = g.Wait()

	now := s.nowFunc().UTC()
	imported := 0
	for _, rec := range append(primaryRecs, secondaryRecs...) {
		if err := s.persist(ctx, rec, now); err != nil {
			s.log.Warn("failed to persist imported record",
				zap.String("fish_name", rec.FishName), zap.Error(err))
			skipped++
			continue
		}
		imported++
	}

	status := StatusSuccess
	switch {
	case !primaryOK && !secondaryOK:
		status = StatusFailed
	case !primaryOK || !secondaryOK:
		status = StatusPartial
	}

	s.mu.Lock()
	if status != StatusFailed {
		s.lastSuccessAt = now
	}
	s.lastStatus = status
	lastSuccess := s.lastSuccessAt
	s.mu.Unlock()

	if imported > 0 && s.onSynced != nil {
		s.onSynced(ctx)
	}

	res := &Result{
		Status:           status,
		PrimaryRecords:   len(primaryRecs),
		SecondaryRecords: len(secondaryRecs),
		TotalRecords:     imported,
		SkippedRecords:   skipped,
		DurationMs:       s.nowFunc().Sub(started).Milliseconds(),
		Timestamp:        now,
		CircuitState:     s.breaker.State().String(),
		DataFreshness:    FreshnessLabel(lastSuccess, now),
	}
	s.log.Info("market sync finished",
		zap.String("status", res.Status),
		zap.Int("imported", res.TotalRecords),
		zap.Int("skipped", res.SkippedRecords),
		zap.Int64("duration_ms", res.DurationMs),
	)
	return res, nil
}

func (s *Service) fetchPrimary(ctx context.Context) ([]Record, int, error) {
	params := url.Values{}
	params.Set("filters[commodity]", "Fish")
	params.Set("limit", strconv.Itoa(primaryLimit))

	raw, err := resilience.DoVal(ctx, s.primaryRetry, func(ctx context.Context) ([]RawRecord, error) {
		return resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) ([]RawRecord, error) {
			return s.primary.FetchRecords(ctx, params)
		})
	})
	if err != nil {
		return nil, 0, eris.Wrap(err, "marketsync: primary feed")
	}
	recs, skipped := s.normalizeAll(raw)
	return recs, skipped, nil
}

// fetchSecondary queries the variety-wise feed once per coastal state. A
// state that keeps failing is dropped; the boolean reports whether every
// state failed.
func (s *Service) fetchSecondary(ctx context.Context) ([]Record, int, bool) {
	var (
		mu      sync.Mutex
		all     []Record
		skipped int
		failed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for _, state := range coastalStates {
		g.Go(func() error {
			params := url.Values{}
			params.Set("filters[state]", state)
			params.Set("limit", strconv.Itoa(secondaryLimit))

			raw, err := resilience.DoVal(gctx, s.secondaryRetry, func(ctx context.Context) ([]RawRecord, error) {
				return resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) ([]RawRecord, error) {
					return s.secondary.FetchRecords(ctx, params)
				})
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warn("secondary feed state failed",
					zap.String("state", state), zap.Error(err))
				failed++
				return nil
			}
			recs, sk := s.normalizeAll(raw)
			all = append(all, recs...)
			skipped += sk
			return nil
		})
	}
	_ = g.Wait()
	return all, skipped, failed == len(coastalStates)
}

func (s *Service) normalizeAll(raw []RawRecord) ([]Record, int) {
	var (
		recs    []Record
		skipped int
	)
	for _, r := range raw {
		rec, err := s.norm.Normalize(r)
		if err != nil {
			skipped++
			continue
		}
		recs = append(recs, *rec)
	}
	return recs, skipped
}

func (s *Service) persist(ctx context.Context, rec Record, now time.Time) error {
	qty := importDefaultKg
	a := &model.Auction{
		ID:           uuid.NewString(),
		FishName:     rec.FishName,
		Location:     rec.Location,
		StartPrice:   rec.PricePerKg,
		CurrentPrice: rec.PricePerKg,
		StartTime:    now.Add(-importBackdate),
		EndTime:      now,
		Active:       false,
		QuantityKg:   &qty,
		SellerNotes:  rec.Variety,
		DataSource:   model.SourceGovtAPI,
	}
	return s.store.CreateAuction(ctx, a)
}

// Status reports the current sync state.
func (s *Service) Status() Status {
	s.mu.Lock()
	lastAt := s.lastSuccessAt
	lastStatus := s.lastStatus
	s.mu.Unlock()

	st := Status{
		LastStatus:    lastStatus,
		CircuitState:  s.breaker.State().String(),
		DataFreshness: FreshnessLabel(lastAt, s.nowFunc().UTC()),
	}
	if !lastAt.IsZero() {
		st.LastSyncAt = &lastAt
	}
	return st
}

// FreshnessLabel grades how stale the imported data is.
func FreshnessLabel(lastSync, now time.Time) string {
	if lastSync.IsZero() {
		return "never synced"
	}
	age := now.Sub(lastSync)
	switch {
	case age < time.Hour:
		return "fresh (synced within the last hour)"
	case age < 24*time.Hour:
		return "fresh (synced within 24 hours)"
	case age < 48*time.Hour:
		return "aging (synced within 48 hours)"
	default:
		return "stale (last sync 48 hours or more ago)"
	}
}
