package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fishonbid/fishbid/internal/model"
	"github.com/fishonbid/fishbid/internal/store"
)

var (
	auctionsActiveOnly bool
	auctionsSource     string
	auctionsFish       string
	auctionsLimit      int
)

var auctionsCmd = &cobra.Command{
	Use:   "auctions",
	Short: "List auctions from the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer closeStore()

		filter := store.AuctionFilter{
			Source:   model.DataSource(auctionsSource),
			FishName: auctionsFish,
			Limit:    auctionsLimit,
		}
		if auctionsActiveOnly {
			active := true
			filter.Active = &active
		}

		auctions, err := st.ListAuctions(ctx, filter)
		if err != nil {
			return fmt.Errorf("list auctions: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(auctions)
	},
}

func init() {
	auctionsCmd.Flags().BoolVar(&auctionsActiveOnly, "active", false, "only active auctions")
	auctionsCmd.Flags().StringVar(&auctionsSource, "source", "", "filter by data source")
	auctionsCmd.Flags().StringVar(&auctionsFish, "fish", "", "filter by species")
	auctionsCmd.Flags().IntVar(&auctionsLimit, "limit", 0, "maximum results")
	rootCmd.AddCommand(auctionsCmd)
}
