package pricing

import (
	"fmt"
	"math"
	"time"
)

// Suggestion tuning constants.
const (
	// BaselinePrice anchors the suggestion when history is too thin to
	// average.
	BaselinePrice = 500.0
	// minRecordsForAverage is how many records the weighted average needs
	// before it is preferred over the baseline.
	minRecordsForAverage = 3

	externalBlendWeight = 0.30
	internalBlendWeight = 0.70

	quantityDiscountRatio  = 1.5
	quantityDiscountFactor = 0.95

	priceBandPct    = 0.10
	minBidIncrement = 10.0
	bidIncrementPct = 0.02
)

// Confidence grades how much data backs a suggestion.
type Confidence string

const (
	ConfidenceInsufficient Confidence = "INSUFFICIENT"
	ConfidenceLow          Confidence = "LOW"
	ConfidenceMedium       Confidence = "MEDIUM"
	ConfidenceHigh         Confidence = "HIGH"
)

func confidenceFor(recordCount int) Confidence {
	switch {
	case recordCount < minRecordsForAverage:
		return ConfidenceInsufficient
	case recordCount < 5:
		return ConfidenceLow
	case recordCount < 10:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}

// Request asks for a starting-price suggestion.
type Request struct {
	FishName       string   `json:"fish_name"`
	Location       string   `json:"location,omitempty"`
	QuantityKg     *float64 `json:"quantity_kg,omitempty"`
	FreshnessScore *int     `json:"freshness_score,omitempty"`
	ImageData      []string `json:"image_data,omitempty"`
}

// Breakdown explains how the suggestion was assembled.
type Breakdown struct {
	Aggregate

	Tier             RetrievalTier `json:"retrieval_tier"`
	Confidence       Confidence    `json:"confidence"`
	LocationContext  string        `json:"location_context,omitempty"`
	DataFreshness    string        `json:"data_freshness"`
	InternalBase     float64       `json:"internal_base_price"`
	ExternalPrice    *float64      `json:"external_index_price,omitempty"`
	UsedBaseline     bool          `json:"used_baseline"`
	FreshnessApplied bool          `json:"freshness_applied"`
	QuantityDiscount bool          `json:"quantity_discount_applied"`
}

// Suggestion is the pricing engine's answer.
type Suggestion struct {
	FishName       string    `json:"fish_name"`
	SuggestedPrice float64   `json:"suggested_price"`
	MinPrice       float64   `json:"min_price"`
	MaxPrice       float64   `json:"max_price"`
	BidIncrement   float64   `json:"bid_increment"`
	Explanation    string    `json:"explanation"`
	Breakdown      Breakdown `json:"breakdown"`
}

// computeSuggestion turns a retrieved dataset plus optional external and
// freshness signals into a final suggestion.
func computeSuggestion(req Request, ds *Dataset, externalPrice *float64, freshness *int, now time.Time) *Suggestion {
	agg := AggregateRecords(ds.Records, now)

	internal := agg.WeightedAvg
	usedBaseline := false
	if agg.RecordCount < minRecordsForAverage || internal <= 0 {
		internal = BaselinePrice
		usedBaseline = true
	}

	price := internal
	if externalPrice != nil && *externalPrice > 0 {
		if usedBaseline && agg.RecordCount == 0 {
			// With no history at all the external index is the only real
			// signal, so it is used alone.
			price = *externalPrice
		} else {
			price = internal*internalBlendWeight + *externalPrice*externalBlendWeight
		}
	}

	freshnessApplied := false
	if freshness != nil {
		price *= 0.8 + float64(*freshness)/100*0.4
		freshnessApplied = true
	}

	quantityDiscount := false
	if req.QuantityKg != nil && agg.AvgQuantityKg > 0 &&
		*req.QuantityKg > quantityDiscountRatio*agg.AvgQuantityKg {
		price *= quantityDiscountFactor
		quantityDiscount = true
	}

	suggested := round2(price)
	s := &Suggestion{
		FishName:       req.FishName,
		SuggestedPrice: suggested,
		MinPrice:       round2(price * (1 - priceBandPct)),
		MaxPrice:       round2(price * (1 + priceBandPct)),
		BidIncrement:   math.Max(minBidIncrement, round2(bidIncrementPct*suggested)),
		Breakdown: Breakdown{
			Aggregate:        agg,
			Tier:             ds.Tier,
			Confidence:       confidenceFor(agg.RecordCount),
			LocationContext:  ds.Location,
			DataFreshness:    datasetFreshness(agg, now),
			InternalBase:     round2(internal),
			ExternalPrice:    externalPrice,
			UsedBaseline:     usedBaseline,
			FreshnessApplied: freshnessApplied,
			QuantityDiscount: quantityDiscount,
		},
	}
	s.Explanation = explain(s, req)
	return s
}

func datasetFreshness(agg Aggregate, now time.Time) string {
	if agg.RecordCount == 0 {
		return "no data"
	}
	age := now.Sub(agg.newest)
	switch {
	case age < time.Hour:
		return "fresh (under 1 hour old)"
	case age < 24*time.Hour:
		return "fresh (under 24 hours old)"
	case age < 48*time.Hour:
		return "aging (under 48 hours old)"
	default:
		return "stale (48 hours or older)"
	}
}

func explain(s *Suggestion, req Request) string {
	b := s.Breakdown
	if b.RecordCount == 0 {
		msg := fmt.Sprintf("No recent market data for %s", req.FishName)
		if req.Location != "" {
			msg += " near " + req.Location
		}
		if b.ExternalPrice != nil {
			return msg + "; suggestion follows the external market index."
		}
		return msg + "; suggestion uses the platform baseline price."
	}

	msg := fmt.Sprintf("Based on %d records (%s)", b.RecordCount, b.DateRange)
	if b.GovtCount > 0 {
		msg += fmt.Sprintf(", %d from government feeds", b.GovtCount)
	}
	if b.UsedBaseline {
		msg += "; too few records for a weighted average, baseline applied"
	}
	if b.ExternalPrice != nil {
		msg += "; blended with the external market index"
	}
	if b.FreshnessApplied {
		msg += "; adjusted for catch freshness"
	}
	if b.QuantityDiscount {
		msg += "; bulk quantity discount applied"
	}
	return msg + "."
}
