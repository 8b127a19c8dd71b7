package pricing

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fishonbid/fishbid/internal/store"
)

// MarketIndex exposes the external commodity index. The boolean reports
// whether the index has a price for the species.
type MarketIndex interface {
	Price(ctx context.Context, fishName string) (float64, bool)
}

// FreshnessAnalyzer scores catch freshness from seller-supplied images.
type FreshnessAnalyzer interface {
	FreshnessFromImages(ctx context.Context, images []string) (int, error)
}

// DecisionRecorder persists an audit trail of pricing decisions. Recording
// must never fail a request; implementations swallow their own errors.
type DecisionRecorder interface {
	RecordPriceSuggestion(ctx context.Context, input, output any, dataPoints int, elapsed time.Duration)
}

// Engine answers price-suggestion requests.
type Engine struct {
	retriever *Retriever
	index     MarketIndex
	vision    FreshnessAnalyzer
	audit     DecisionRecorder
	log       *zap.Logger

	nowFunc func() time.Time
}

// NewEngine builds a pricing engine. index, vision, and audit may be nil,
// in which case the corresponding signal is skipped.
func NewEngine(st store.Store, index MarketIndex, vision FreshnessAnalyzer, audit DecisionRecorder) *Engine {
	return &Engine{
		retriever: NewRetriever(st),
		index:     index,
		vision:    vision,
		audit:     audit,
		log:       zap.L().Named("pricing"),
		nowFunc:   time.Now,
	}
}

// Suggest runs the full pipeline: image analysis when the request carries
// images but no score, retrieval, aggregation, blending, and an audit record
// of the decision.
func (e *Engine) Suggest(ctx context.Context, req Request) (*Suggestion, error) {
	if req.FishName == "" {
		return nil, eris.New("pricing: fish name is required")
	}
	started := e.nowFunc()
	now := started.UTC()

	freshness := req.FreshnessScore
	if freshness == nil && len(req.ImageData) > 0 && e.vision != nil {
		score, err := e.vision.FreshnessFromImages(ctx, req.ImageData)
		if err != nil {
			// Vision is advisory. The suggestion proceeds without it.
			e.log.Warn("freshness analysis failed", zap.Error(err))
		} else {
			freshness = &score
		}
	}

	ds, err := e.retriever.Retrieve(ctx, req.FishName, req.Location, now)
	if err != nil {
		return nil, err
	}

	var externalPrice *float64
	if e.index != nil {
		if p, ok := e.index.Price(ctx, req.FishName); ok {
			externalPrice = &p
		}
	}

	s := computeSuggestion(req, ds, externalPrice, freshness, now)

	if e.audit != nil {
		e.audit.RecordPriceSuggestion(ctx, req, s, s.Breakdown.RecordCount, e.nowFunc().Sub(started))
	}
	e.log.Info("price suggested",
		zap.String("fish_name", req.FishName),
		zap.Float64("suggested_price", s.SuggestedPrice),
		zap.String("confidence", string(s.Breakdown.Confidence)),
		zap.Int("records", s.Breakdown.RecordCount),
	)
	return s, nil
}
