package pricing

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fishonbid/fishbid/internal/model"
	"github.com/fishonbid/fishbid/internal/store"
)

const (
	// LookbackDays bounds how far retrieval reaches into history.
	LookbackDays = 90
	// genericFallbackCap limits how many nationwide generic records can be
	// mixed into a location-specific dataset.
	genericFallbackCap = 20
	// genericFishName is the catch-all commodity name used by government
	// feeds when the species is not broken out.
	genericFishName = "Fish"
)

// RetrievalTier names which cascade step produced the dataset.
type RetrievalTier string

const (
	TierLocationExact   RetrievalTier = "LOCATION_EXACT"
	TierGenericLocal    RetrievalTier = "GENERIC_GOVT_LOCAL"
	TierGenericNational RetrievalTier = "GENERIC_GOVT_NATIONAL"
	TierLocationAny     RetrievalTier = "LOCATION_AGNOSTIC"
	TierInsufficient    RetrievalTier = "INSUFFICIENT"
)

// Dataset is the outcome of the retrieval cascade.
type Dataset struct {
	Records  []model.Auction
	Tier     RetrievalTier
	Location string
}

// Retriever walks the fallback cascade against the store.
type Retriever struct {
	store store.Store
	log   *zap.Logger
}

// NewRetriever creates a Retriever.
func NewRetriever(st store.Store) *Retriever {
	return &Retriever{store: st, log: zap.L().Named("pricing")}
}

// Retrieve gathers comparable records for a fish at a location. With a
// location it starts from (fish, location) matches and pads thin datasets
// with generic government records; without one it queries by fish alone.
func (r *Retriever) Retrieve(ctx context.Context, fishName, location string, now time.Time) (*Dataset, error) {
	since := now.AddDate(0, 0, -LookbackDays)

	if location == "" {
		records, err := r.store.FindRecentAuctions(ctx, fishName, since)
		if err != nil {
			return nil, eris.Wrap(err, "pricing: location-agnostic retrieval")
		}
		if len(records) == 0 {
			return &Dataset{Tier: TierInsufficient}, nil
		}
		return &Dataset{Records: records, Tier: TierLocationAny}, nil
	}

	records, err := r.store.FindRecentAuctionsByLocation(ctx, fishName, location, since)
	if err != nil {
		return nil, eris.Wrap(err, "pricing: location retrieval")
	}

	govtCount := 0
	for i := range records {
		if records[i].DataSource == model.SourceGovtAPI {
			govtCount++
		}
	}

	tier := TierLocationExact
	if govtCount == 0 && fishName != genericFishName {
		// No institutional signal at this location. Borrow the generic
		// commodity records reported there; only when the location has none
		// of those either, reach for the nationwide baseline.
		generic, err := r.store.FindGenericFishGovtRecords(ctx, location, since, 0)
		if err != nil {
			return nil, eris.Wrap(err, "pricing: generic local retrieval")
		}
		switch {
		case len(generic) > 0:
			records = append(records, generic...)
			tier = TierGenericLocal
		default:
			national, err := r.store.FindGenericFishGovtRecords(ctx, "", since, genericFallbackCap)
			if err != nil {
				return nil, eris.Wrap(err, "pricing: generic national retrieval")
			}
			if len(national) > 0 {
				records = append(records, national...)
				tier = TierGenericNational
			}
		}
	}

	if len(records) == 0 {
		// Last resort before giving up: drop the location constraint.
		records, err = r.store.FindRecentAuctions(ctx, fishName, since)
		if err != nil {
			return nil, eris.Wrap(err, "pricing: fallback retrieval")
		}
		if len(records) == 0 {
			return &Dataset{Tier: TierInsufficient, Location: location}, nil
		}
		tier = TierLocationAny
	}

	r.log.Debug("retrieved pricing dataset",
		zap.String("fish_name", fishName),
		zap.String("location", location),
		zap.String("tier", string(tier)),
		zap.Int("records", len(records)),
	)
	return &Dataset{Records: records, Tier: tier, Location: location}, nil
}
