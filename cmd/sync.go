package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fishonbid/fishbid/internal/extmarket"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one market data import and exit",
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

		svc, err := newSyncService(cfg, st, nil)
		if err != nil {
			return fmt.Errorf("sync service: %w", err)
		}

		res, err := svc.Sync(ctx)
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		if res.TotalRecords > 0 {
			if err := index.Refresh(ctx, st); err != nil {
				return fmt.Errorf("index refresh: %w", err)
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
