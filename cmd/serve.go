package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fishonbid/fishbid/internal/api"
	"github.com/fishonbid/fishbid/internal/auction"
	"github.com/fishonbid/fishbid/internal/audit"
	"github.com/fishonbid/fishbid/internal/event"
	"github.com/fishonbid/fishbid/internal/extmarket"
	"github.com/fishonbid/fishbid/internal/live"
	"github.com/fishonbid/fishbid/internal/pricing"
	"github.com/fishonbid/fishbid/internal/sched"
	"github.com/fishonbid/fishbid/internal/vision"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the marketplace HTTP server",
	Long:  "Serves the auction API and WebSocket feed, and runs the scheduled market sync and index refresh in the background.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer closeStore()

		bus := event.NewBus(cfg.Auction.EventHistorySize)
		hub := live.NewHub()
		live.NewBroadcaster(bus, hub)

		index, err := extmarket.NewIndexFromAddr(ctx, cfg.Redis.Addr)
		if err != nil {
			return fmt.Errorf("market index: %w", err)
		}

		analyzer := newAnalyzer(cfg)
		recorder := audit.NewRecorder(st)
		auctions := auction.NewEngine(st, bus)
		prices := pricing.NewEngine(st, index, vision.Scorer{Analyzer: analyzer}, recorder)

		syncSvc, err := newSyncService(cfg, st, func(ctx context.Context) {
			if err := index.Refresh(ctx, st); err != nil {
				zap.L().Warn("index refresh after sync failed", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("sync service: %w", err)
		}

		scheduler, err := sched.New(
			sched.Task{Name: "market-sync", Spec: cfg.Sched.SyncSpec, Run: func(ctx context.Context) error {
				_, err := syncSvc.Sync(ctx)
				return err
			}},
			sched.Task{Name: "index-refresh", Spec: cfg.Sched.RefreshSpec, Run: func(ctx context.Context) error {
				return index.Refresh(ctx, st)
			}},
			sched.Task{Name: "expire-auctions", Spec: "* * * * *", Run: func(ctx context.Context) error {
				_, err := auctions.CloseExpired(ctx)
				return err
			}},
		)
		if err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		go scheduler.Start(ctx)

		server := api.NewServer(api.Deps{
			Engine:   auctions,
			Pricing:  prices,
			Analyzer: analyzer,
			Audit:    recorder,
			Sync:     syncSvc,
			Bus:      bus,
			Hub:      hub,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           server.Router(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("server listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
		zap.L().Info("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (defaults to config)")
	rootCmd.AddCommand(serveCmd)
}
