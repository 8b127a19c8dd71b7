package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fishonbid/fishbid/internal/model"
	"github.com/fishonbid/fishbid/internal/store"
)

func TestRecorder_PersistsDecision(t *testing.T) {
	st := store.NewMemory()
	r := NewRecorder(st)

	input := map[string]string{"fish_name": "Tuna"}
	output := map[string]float64{"suggested_price": 512.4}
	r.RecordPriceSuggestion(context.Background(), input, output, 7, 42*time.Millisecond)

	logs := st.DecisionLogs()
	require.Len(t, logs, 1)
	require.Equal(t, RequestPriceSuggestion, logs[0].RequestType)
	require.JSONEq(t, `{"fish_name":"Tuna"}`, logs[0].Input)
	require.JSONEq(t, `{"suggested_price":512.4}`, logs[0].Output)
	require.Equal(t, 7, logs[0].DataPointsUsed)
	require.Equal(t, int64(42), logs[0].ProcessingMs)
}

type failingStore struct{ store.Store }

func (failingStore) SaveDecisionLog(ctx context.Context, d *model.DecisionLog) error {
	return context.DeadlineExceeded
}

func TestRecorder_SwallowsStoreFailure(t *testing.T) {
	r := NewRecorder(failingStore{store.NewMemory()})
	// Must not panic or propagate the error.
	r.RecordVisionAnalysis(context.Background(), "in", "out", time.Millisecond)
}
