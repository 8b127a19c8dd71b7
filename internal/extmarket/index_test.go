package extmarket

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fishonbid/fishbid/internal/model"
	"github.com/fishonbid/fishbid/internal/store"
)

func TestIndex_SeedPrices(t *testing.T) {
	x := NewIndex(nil)
	ctx := context.Background()

	p, ok := x.Price(ctx, "Tuna")
	require.True(t, ok)
	require.Equal(t, 510.0, p)

	p, ok = x.Price(ctx, "Salmon")
	require.True(t, ok)
	require.Equal(t, 690.0, p)

	_, ok = x.Price(ctx, "Anchovy")
	require.False(t, ok)
}

func TestIndex_Update(t *testing.T) {
	x := NewIndex(nil)
	ctx := context.Background()

	x.Update(ctx, "Tuna", 530)
	p, ok := x.Price(ctx, "Tuna")
	require.True(t, ok)
	require.Equal(t, 530.0, p)

	x.Update(ctx, "Anchovy", 120)
	p, ok = x.Price(ctx, "Anchovy")
	require.True(t, ok)
	require.Equal(t, 120.0, p)
}

func TestIndex_RefreshFromGovtRecords(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	now := time.Now().UTC()
	for _, price := range []float64{600, 640} {
		require.NoError(t, st.CreateAuction(ctx, &model.Auction{
			ID:           uuid.NewString(),
			FishName:     "Mackerel",
			CurrentPrice: price,
			StartPrice:   price,
			StartTime:    now.Add(-2 * time.Hour),
			EndTime:      now.Add(-time.Hour),
			DataSource:   model.SourceGovtAPI,
		}))
	}
	// Manual records do not feed the index.
	require.NoError(t, st.CreateAuction(ctx, &model.Auction{
		ID:           uuid.NewString(),
		FishName:     "Mackerel",
		CurrentPrice: 100,
		StartPrice:   100,
		StartTime:    now.Add(-time.Hour),
		EndTime:      now,
		DataSource:   model.SourceUserManual,
	}))

	x := NewIndex(nil)
	require.NoError(t, x.Refresh(ctx, st))

	p, ok := x.Price(ctx, "Mackerel")
	require.True(t, ok)
	require.Equal(t, 620.0, p)
}
