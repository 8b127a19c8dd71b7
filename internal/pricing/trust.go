// Package pricing produces starting-price suggestions from historical auction
// data, external market indices, and freshness scores.
package pricing

import (
	"math"
	"time"

	"github.com/fishonbid/fishbid/internal/model"
)

// Trust scoring constants. Older records decay exponentially and sparse
// datasets are discounted until they reach volumeSaturation records.
const (
	decayLambda      = 0.05
	volumeSaturation = 50.0

	weightGovt     = 1.5
	weightPlatform = 1.0
	weightDemo     = 0.5
)

// BaseWeight returns the source credibility multiplier. Government feeds are
// trusted above platform activity; demo data counts for half.
func BaseWeight(source model.DataSource) float64 {
	switch source {
	case model.SourceGovtAPI:
		return weightGovt
	case model.SourceDemo:
		return weightDemo
	default:
		return weightPlatform
	}
}

// TrustScore computes the weight of a single record at evaluation time.
// totalRecords is the size of the whole retrieved set; small sets are
// penalized as a group so one lucky record cannot dominate.
func TrustScore(a *model.Auction, now time.Time, totalRecords int) float64 {
	daysOld := now.Sub(a.StartTime).Hours() / 24
	if daysOld < 0 {
		daysOld = 0
	}
	recency := math.Exp(-decayLambda * daysOld)
	volume := math.Min(1, float64(totalRecords)/volumeSaturation)
	return BaseWeight(a.DataSource) * recency * volume
}

// SourceWeight is one row of the per-record weight table in the breakdown.
type SourceWeight struct {
	Source     model.DataSource `json:"source"`
	Price      float64          `json:"price"`
	DaysOld    int              `json:"days_old"`
	TrustScore float64          `json:"trust_score"`
}

// Aggregate is the trust-weighted summary of the retrieved records.
type Aggregate struct {
	RecordCount   int     `json:"record_count"`
	WeightedAvg   float64 `json:"weighted_avg_price"`
	MinPrice      float64 `json:"min_price"`
	MaxPrice      float64 `json:"max_price"`
	AvgQuantityKg float64 `json:"avg_quantity_kg"`

	GovtCount     int     `json:"govt_count"`
	GovtAvg       float64 `json:"govt_avg_price"`
	PlatformCount int     `json:"platform_count"`
	PlatformAvg   float64 `json:"platform_avg_price"`

	DateRange string         `json:"date_range"`
	Weights   []SourceWeight `json:"source_weights"`

	newest time.Time
}

// AggregateRecords folds the records into a trust-weighted summary. A zero
// total weight yields a zero average, never NaN.
func AggregateRecords(records []model.Auction, now time.Time) Aggregate {
	agg := Aggregate{RecordCount: len(records)}
	if len(records) == 0 {
		return agg
	}

	var (
		weightedSum float64
		totalWeight float64
		govtSum     float64
		platformSum float64
		qtySum      float64
		qtyCount    int
		oldest      = records[0].StartTime
	)
	agg.MinPrice = records[0].CurrentPrice
	agg.MaxPrice = records[0].CurrentPrice
	agg.newest = records[0].StartTime

	for i := range records {
		r := &records[i]
		w := TrustScore(r, now, len(records))
		weightedSum += r.CurrentPrice * w
		totalWeight += w

		agg.MinPrice = math.Min(agg.MinPrice, r.CurrentPrice)
		agg.MaxPrice = math.Max(agg.MaxPrice, r.CurrentPrice)
		if r.StartTime.Before(oldest) {
			oldest = r.StartTime
		}
		if r.StartTime.After(agg.newest) {
			agg.newest = r.StartTime
		}
		if r.QuantityKg != nil {
			qtySum += *r.QuantityKg
			qtyCount++
		}

		if r.DataSource == model.SourceGovtAPI {
			agg.GovtCount++
			govtSum += r.CurrentPrice
		} else {
			agg.PlatformCount++
			platformSum += r.CurrentPrice
		}

		agg.Weights = append(agg.Weights, SourceWeight{
			Source:     r.DataSource,
			Price:      r.CurrentPrice,
			DaysOld:    int(now.Sub(r.StartTime).Hours() / 24),
			TrustScore: round2(w),
		})
	}

	if totalWeight > 0 {
		agg.WeightedAvg = weightedSum / totalWeight
	}
	if agg.GovtCount > 0 {
		agg.GovtAvg = govtSum / float64(agg.GovtCount)
	}
	if agg.PlatformCount > 0 {
		agg.PlatformAvg = platformSum / float64(agg.PlatformCount)
	}
	if qtyCount > 0 {
		agg.AvgQuantityKg = qtySum / float64(qtyCount)
	}
	agg.DateRange = formatDateRange(oldest, agg.newest)
	return agg
}

// formatDateRange renders the record span as "Jan 2 – Apr 2, 2026".
func formatDateRange(from, to time.Time) string {
	return from.Format("Jan 2") + " – " + to.Format("Jan 2, 2006")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
