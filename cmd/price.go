package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fishonbid/fishbid/internal/extmarket"
	"github.com/fishonbid/fishbid/internal/pricing"
)

var (
	priceLocation  string
	priceQuantity  float64
	priceFreshness int
)

var priceCmd = &cobra.Command{
	Use:   "price <fish-name>",
	Short: "Print a price suggestion for one species",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer closeStore()

		index, err := extmarket.NewIndexFromAddr(ctx, cfg.Redis.Addr)
		if err != nil {
			return fmt.Errorf("market index: %w", err)
		}

		req := pricing.Request{FishName: args[0], Location: priceLocation}
		if priceQuantity > 0 {
			req.QuantityKg = &priceQuantity
		}
		if cmd.Flags().Changed("freshness") {
			req.FreshnessScore = &priceFreshness
		}

		engine := pricing.NewEngine(st, index, nil, nil)
		suggestion, err := engine.Suggest(ctx, req)
		if err != nil {
			return fmt.Errorf("suggest: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(suggestion)
	},
}

func init() {
	priceCmd.Flags().StringVar(&priceLocation, "location", "", "harbor or landing site")
	priceCmd.Flags().Float64Var(&priceQuantity, "quantity", 0, "catch quantity in kg")
	priceCmd.Flags().IntVar(&priceFreshness, "freshness", 0, "freshness score 0-100")
	rootCmd.AddCommand(priceCmd)
}
