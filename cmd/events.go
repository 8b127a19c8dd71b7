package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	eventsServer string
	eventsType   string
	eventsStats  bool
)

// Events live in the server process, so this command queries a running
// instance instead of opening the store.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent domain events from a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/api/events"
		if eventsStats {
			path = "/api/events/stats"
		}
		u, err := url.Parse(eventsServer + path)
		if err != nil {
			return fmt.Errorf("server url: %w", err)
		}
		if eventsType != "" && !eventsStats {
			q := u.Query()
			q.Set("type", eventsType)
			u.RawQuery = q.Encode()
		}

		client := &http.Client{Timeout: 10 * time.Second}
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, u.String(), nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("query server: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
		}
		_, err = io.Copy(os.Stdout, resp.Body)
		return err
	},
}

func init() {
	eventsCmd.Flags().StringVar(&eventsServer, "server", "http://localhost:8080", "base URL of a running server")
	eventsCmd.Flags().StringVar(&eventsType, "type", "", "filter by event type")
	eventsCmd.Flags().BoolVar(&eventsStats, "stats", false, "show per-type counts instead of events")
	rootCmd.AddCommand(eventsCmd)
}
