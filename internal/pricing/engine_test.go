package pricing

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fishonbid/fishbid/internal/model"
	"github.com/fishonbid/fishbid/internal/store"
)

var testNow = time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)

func record(fish, location string, price float64, source model.DataSource, daysOld int) *model.Auction {
	start := testNow.AddDate(0, 0, -daysOld)
	return &model.Auction{
		ID:           uuid.NewString(),
		FishName:     fish,
		Location:     location,
		StartPrice:   price,
		CurrentPrice: price,
		StartTime:    start,
		EndTime:      start.Add(12 * time.Hour),
		DataSource:   source,
	}
}

func seedStore(t *testing.T, records ...*model.Auction) store.Store {
	t.Helper()
	st := store.NewMemory()
	for _, r := range records {
		require.NoError(t, st.CreateAuction(context.Background(), r))
	}
	return st
}

func newTestEngine(st store.Store) *Engine {
	e := NewEngine(st, nil, nil, nil)
	e.nowFunc = func() time.Time { return testNow }
	return e
}

type fixedIndex struct{ price float64 }

func (f fixedIndex) Price(ctx context.Context, fish string) (float64, bool) {
	return f.price, f.price > 0
}

func TestTrustScore_GovtOutweighsDemo(t *testing.T) {
	govt := record("Tuna", "Kochi", 600, model.SourceGovtAPI, 0)
	demo := record("Tuna", "Kochi", 600, model.SourceDemo, 0)

	require.Greater(t, TrustScore(govt, testNow, 50), TrustScore(demo, testNow, 50))
	require.InDelta(t, 1.5, TrustScore(govt, testNow, 50), 1e-9)
	require.InDelta(t, 0.5, TrustScore(demo, testNow, 50), 1e-9)
}

func TestTrustScore_DecaysWithAge(t *testing.T) {
	fresh := record("Tuna", "Kochi", 600, model.SourceUserManual, 0)
	old := record("Tuna", "Kochi", 600, model.SourceUserManual, 30)

	wFresh := TrustScore(fresh, testNow, 50)
	wOld := TrustScore(old, testNow, 50)
	require.Greater(t, wFresh, wOld)
	require.InDelta(t, math.Exp(-0.05*30), wOld, 1e-9)
}

func TestAggregateRecords_Empty(t *testing.T) {
	agg := AggregateRecords(nil, testNow)
	require.Equal(t, 0, agg.RecordCount)
	require.Equal(t, 0.0, agg.WeightedAvg)
	require.False(t, math.IsNaN(agg.WeightedAvg))
}

func TestAggregateRecords_GovtPullsAverage(t *testing.T) {
	records := []model.Auction{
		*record("Tuna", "Kochi", 600, model.SourceGovtAPI, 1),
		*record("Tuna", "Kochi", 400, model.SourceDemo, 1),
		*record("Tuna", "Kochi", 400, model.SourceDemo, 1),
	}
	agg := AggregateRecords(records, testNow)

	// Equal-weight mean would be 466.67; the govt record drags it higher.
	require.Greater(t, agg.WeightedAvg, 480.0)
	require.Equal(t, 1, agg.GovtCount)
	require.Equal(t, 600.0, agg.GovtAvg)
	require.Equal(t, 2, agg.PlatformCount)
	require.Equal(t, 400.0, agg.MinPrice)
	require.Equal(t, 600.0, agg.MaxPrice)
	require.Len(t, agg.Weights, 3)
}

func TestFormatDateRange(t *testing.T) {
	from := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "Jan 2 – Apr 2, 2026", formatDateRange(from, to))
}

func TestSuggest_BaselineWhenNoData(t *testing.T) {
	e := newTestEngine(seedStore(t))

	s, err := e.Suggest(context.Background(), Request{FishName: "Tuna"})
	require.NoError(t, err)
	require.Equal(t, BaselinePrice, s.SuggestedPrice)
	require.Equal(t, ConfidenceInsufficient, s.Breakdown.Confidence)
	require.Equal(t, TierInsufficient, s.Breakdown.Tier)
	require.True(t, s.Breakdown.UsedBaseline)
	require.Equal(t, 450.0, s.MinPrice)
	require.Equal(t, 550.0, s.MaxPrice)
	require.Equal(t, 10.0, s.BidIncrement)
}

func TestSuggest_WeightedAverageWithEnoughRecords(t *testing.T) {
	st := seedStore(t,
		record("Tuna", "", 500, model.SourceUserManual, 1),
		record("Tuna", "", 520, model.SourceUserManual, 2),
		record("Tuna", "", 540, model.SourceUserManual, 3),
		record("Tuna", "", 560, model.SourceUserManual, 4),
		record("Tuna", "", 580, model.SourceUserManual, 5),
	)
	e := newTestEngine(st)

	s, err := e.Suggest(context.Background(), Request{FishName: "Tuna"})
	require.NoError(t, err)
	require.False(t, s.Breakdown.UsedBaseline)
	require.Equal(t, ConfidenceMedium, s.Breakdown.Confidence)
	require.Equal(t, TierLocationAny, s.Breakdown.Tier)
	require.Greater(t, s.SuggestedPrice, 500.0)
	require.Less(t, s.SuggestedPrice, 580.0)
	require.InDelta(t, s.SuggestedPrice*0.9, s.MinPrice, 0.01)
	require.InDelta(t, s.SuggestedPrice*1.1, s.MaxPrice, 0.01)
	require.InDelta(t, 0.02*s.SuggestedPrice, s.BidIncrement, 0.01)
}

func TestSuggest_BlendsExternalIndex(t *testing.T) {
	st := seedStore(t,
		record("Tuna", "", 500, model.SourceUserManual, 1),
		record("Tuna", "", 500, model.SourceUserManual, 1),
		record("Tuna", "", 500, model.SourceUserManual, 1),
	)
	e := NewEngine(st, fixedIndex{price: 1000}, nil, nil)
	e.nowFunc = func() time.Time { return testNow }

	s, err := e.Suggest(context.Background(), Request{FishName: "Tuna"})
	require.NoError(t, err)
	// 0.7×500 + 0.3×1000 = 650.
	require.InDelta(t, 650.0, s.SuggestedPrice, 0.01)
	require.NotNil(t, s.Breakdown.ExternalPrice)
}

func TestSuggest_ExternalAloneWhenNoHistory(t *testing.T) {
	e := NewEngine(seedStore(t), fixedIndex{price: 800}, nil, nil)
	e.nowFunc = func() time.Time { return testNow }

	s, err := e.Suggest(context.Background(), Request{FishName: "Pomfret"})
	require.NoError(t, err)
	require.InDelta(t, 800.0, s.SuggestedPrice, 0.01)
}

func TestSuggest_FreshnessMultiplier(t *testing.T) {
	st := seedStore(t,
		record("Tuna", "", 500, model.SourceUserManual, 1),
		record("Tuna", "", 500, model.SourceUserManual, 1),
		record("Tuna", "", 500, model.SourceUserManual, 1),
	)
	e := newTestEngine(st)

	perfect := 100
	s, err := e.Suggest(context.Background(), Request{FishName: "Tuna", FreshnessScore: &perfect})
	require.NoError(t, err)
	// 0.8 + 100/100×0.4 = 1.2 multiplier.
	require.InDelta(t, 600.0, s.SuggestedPrice, 0.01)
	require.True(t, s.Breakdown.FreshnessApplied)

	zero := 0
	s, err = e.Suggest(context.Background(), Request{FishName: "Tuna", FreshnessScore: &zero})
	require.NoError(t, err)
	require.InDelta(t, 400.0, s.SuggestedPrice, 0.01)
}

func TestSuggest_QuantityDiscount(t *testing.T) {
	qty := 100.0
	recs := []*model.Auction{
		record("Tuna", "", 500, model.SourceUserManual, 1),
		record("Tuna", "", 500, model.SourceUserManual, 1),
		record("Tuna", "", 500, model.SourceUserManual, 1),
	}
	for _, r := range recs {
		q := qty
		r.QuantityKg = &q
	}
	e := newTestEngine(seedStore(t, recs...))

	big := 200.0
	s, err := e.Suggest(context.Background(), Request{FishName: "Tuna", QuantityKg: &big})
	require.NoError(t, err)
	require.InDelta(t, 475.0, s.SuggestedPrice, 0.01)
	require.True(t, s.Breakdown.QuantityDiscount)

	small := 120.0
	s, err = e.Suggest(context.Background(), Request{FishName: "Tuna", QuantityKg: &small})
	require.NoError(t, err)
	require.InDelta(t, 500.0, s.SuggestedPrice, 0.01)
	require.False(t, s.Breakdown.QuantityDiscount)
}

func TestRetrieve_GenericGovtLocalFallback(t *testing.T) {
	st := seedStore(t,
		record("Tuna", "Kochi", 500, model.SourceUserManual, 1),
		record("Fish", "Kochi", 300, model.SourceGovtAPI, 2),
	)
	r := NewRetriever(st)

	ds, err := r.Retrieve(context.Background(), "Tuna", "Kochi", testNow)
	require.NoError(t, err)
	require.Equal(t, TierGenericLocal, ds.Tier)
	require.Len(t, ds.Records, 2)
}

func TestRetrieve_NationalGenericWhenNoLocalGovt(t *testing.T) {
	st := seedStore(t,
		record("Tuna", "Kochi", 500, model.SourceUserManual, 1),
		record("Fish", "Mumbai", 300, model.SourceGovtAPI, 2),
		record("Fish", "Chennai", 320, model.SourceGovtAPI, 2),
	)
	r := NewRetriever(st)

	// No govt signal at Kochi, generic or specific: the nationwide generic
	// records back the dataset.
	ds, err := r.Retrieve(context.Background(), "Tuna", "Kochi", testNow)
	require.NoError(t, err)
	require.Equal(t, TierGenericNational, ds.Tier)
	require.Len(t, ds.Records, 3)
}

func TestRetrieve_LocalGovtSuppressesGenericFallback(t *testing.T) {
	st := seedStore(t,
		record("Tuna", "Kochi", 500, model.SourceGovtAPI, 1),
		record("Fish", "Mumbai", 300, model.SourceGovtAPI, 2),
		record("Fish", "Chennai", 320, model.SourceGovtAPI, 2),
	)
	r := NewRetriever(st)

	// Govt data for the species at the location: generic records from other
	// markets stay out of the dataset.
	ds, err := r.Retrieve(context.Background(), "Tuna", "Kochi", testNow)
	require.NoError(t, err)
	require.Equal(t, TierLocationExact, ds.Tier)
	require.Len(t, ds.Records, 1)
	require.Equal(t, "Kochi", ds.Records[0].Location)
}

func TestRetrieve_LocalGenericPreferredOverNational(t *testing.T) {
	st := seedStore(t,
		record("Tuna", "Kochi", 500, model.SourceUserManual, 1),
		record("Fish", "Kochi", 310, model.SourceGovtAPI, 2),
		record("Fish", "Mumbai", 300, model.SourceGovtAPI, 2),
	)
	r := NewRetriever(st)

	ds, err := r.Retrieve(context.Background(), "Tuna", "Kochi", testNow)
	require.NoError(t, err)
	require.Equal(t, TierGenericLocal, ds.Tier)
	require.Len(t, ds.Records, 2)
	for _, rec := range ds.Records {
		require.Equal(t, "Kochi", rec.Location)
	}
}

func TestRetrieve_LocationAgnosticLastResort(t *testing.T) {
	st := seedStore(t,
		record("Tuna", "Mumbai", 500, model.SourceUserManual, 1),
	)
	r := NewRetriever(st)

	ds, err := r.Retrieve(context.Background(), "Tuna", "Kochi", testNow)
	require.NoError(t, err)
	require.Equal(t, TierLocationAny, ds.Tier)
	require.Len(t, ds.Records, 1)
}

func TestRetrieve_IgnoresRecordsOutsideLookback(t *testing.T) {
	st := seedStore(t,
		record("Tuna", "", 500, model.SourceUserManual, LookbackDays+10),
	)
	r := NewRetriever(st)

	ds, err := r.Retrieve(context.Background(), "Tuna", "", testNow)
	require.NoError(t, err)
	require.Equal(t, TierInsufficient, ds.Tier)
	require.Empty(t, ds.Records)
}

type captureAudit struct {
	calls      int
	dataPoints int
}

func (c *captureAudit) RecordPriceSuggestion(ctx context.Context, input, output any, dataPoints int, elapsed time.Duration) {
	c.calls++
	c.dataPoints = dataPoints
}

func TestSuggest_RecordsAuditTrail(t *testing.T) {
	st := seedStore(t,
		record("Tuna", "", 500, model.SourceUserManual, 1),
		record("Tuna", "", 510, model.SourceUserManual, 1),
		record("Tuna", "", 520, model.SourceUserManual, 1),
	)
	audit := &captureAudit{}
	e := NewEngine(st, nil, nil, audit)
	e.nowFunc = func() time.Time { return testNow }

	_, err := e.Suggest(context.Background(), Request{FishName: "Tuna"})
	require.NoError(t, err)
	require.Equal(t, 1, audit.calls)
	require.Equal(t, 3, audit.dataPoints)
}
