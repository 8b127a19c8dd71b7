// Package audit records pricing-engine decisions for later inspection.
// Recording is strictly best effort: a failed write is logged and dropped so
// the decision path never fails on its audit trail.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fishonbid/fishbid/internal/model"
	"github.com/fishonbid/fishbid/internal/store"
)

// Request type tags stored with each decision log.
const (
	RequestPriceSuggestion = "PRICE_SUGGESTION"
	RequestVisionAnalysis  = "VISION_ANALYSIS"
)

// Recorder writes decision logs to the store.
type Recorder struct {
	store store.Store
	log   *zap.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(st store.Store) *Recorder {
	return &Recorder{store: st, log: zap.L().Named("audit")}
}

// RecordPriceSuggestion stores one pricing decision.
func (r *Recorder) RecordPriceSuggestion(ctx context.Context, input, output any, dataPoints int, elapsed time.Duration) {
	r.record(ctx, RequestPriceSuggestion, input, output, dataPoints, elapsed)
}

// RecordVisionAnalysis stores one vision decision.
func (r *Recorder) RecordVisionAnalysis(ctx context.Context, input, output any, elapsed time.Duration) {
	r.record(ctx, RequestVisionAnalysis, input, output, 0, elapsed)
}

func (r *Recorder) record(ctx context.Context, kind string, input, output any, dataPoints int, elapsed time.Duration) {
	entry := &model.DecisionLog{
		ID:             uuid.NewString(),
		RequestType:    kind,
		Input:          mustJSON(input),
		Output:         mustJSON(output),
		DataPointsUsed: dataPoints,
		ProcessingMs:   elapsed.Milliseconds(),
		Timestamp:      time.Now().UTC(),
	}
	if err := r.store.SaveDecisionLog(ctx, entry); err != nil {
		r.log.Warn("failed to persist decision log",
			zap.String("request_type", kind), zap.Error(err))
	}
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return `{"marshal_error":true}`
	}
	return string(data)
}
