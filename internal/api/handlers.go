package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fishonbid/fishbid/internal/auction"
	"github.com/fishonbid/fishbid/internal/event"
	"github.com/fishonbid/fishbid/internal/marketsync"
	"github.com/fishonbid/fishbid/internal/model"
	"github.com/fishonbid/fishbid/internal/pricing"
	"github.com/fishonbid/fishbid/internal/store"
	"github.com/fishonbid/fishbid/internal/vision"
)

type createAuctionRequest struct {
	auction.CreateParams
	DurationHours int `json:"duration_hours,omitempty"`
}

func (s *Server) handleCreateAuction(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DurationHours > 0 {
		req.Duration = time.Duration(req.DurationHours) * time.Hour
	}
	if req.FishName == "" {
		writeError(w, http.StatusBadRequest, "fish_name is required")
		return
	}
	if req.StartPrice <= 0 {
		writeError(w, http.StatusBadRequest, "start_price must be positive")
		return
	}

	a, err := s.engine.Create(r.Context(), req.CreateParams)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleListAuctions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AuctionFilter{
		FishName: q.Get("fish"),
		Source:   model.DataSource(q.Get("source")),
	}
	switch q.Get("active") {
	case "true":
		active := true
		filter.Active = &active
	case "false":
		active := false
		filter.Active = &active
	}

	auctions, err := s.engine.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if auctions == nil {
		auctions = []model.Auction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"auctions": auctions,
		"count":    len(auctions),
	})
}

func (s *Server) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type placeBidRequest struct {
	BidderEmail string  `json:"bidder_email"`
	Amount      float64 `json:"amount"`
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BidderEmail == "" || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "bidder_email and a positive amount are required")
		return
	}

	b, err := s.engine.PlaceBid(r.Context(), chi.URLParam(r, "id"), req.BidderEmail, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleBidHistory(w http.ResponseWriter, r *http.Request) {
	bids, err := s.engine.Bids(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if bids == nil {
		bids = []model.Bid{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bids":  bids,
		"count": len(bids),
	})
}

func (s *Server) handleCloseAuction(w http.ResponseWriter, r *http.Request) {
	a, err := s.engine.Close(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	summary, err := s.engine.Get(r.Context(), a.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSuggestPrice(w http.ResponseWriter, r *http.Request) {
	var req pricing.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FishName == "" {
		writeError(w, http.StatusBadRequest, "fish_name is required")
		return
	}

	suggestion, err := s.pricing.Suggest(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

func (s *Server) handleVisionAnalyze(w http.ResponseWriter, r *http.Request) {
	var req vision.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	started := time.Now()
	res, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if s.audit != nil {
		s.audit.RecordVisionAnalysis(r.Context(), req, res, time.Since(started))
	}
	writeJSON(w, http.StatusOK, res)
}

// syncResponse is the manual-sync trigger payload. The same shape is used
// for success and failure; failures additionally carry an error message.
type syncResponse struct {
	Status          string    `json:"status"`
	RecordsImported int       `json:"recordsImported"`
	DurationMs      int64     `json:"durationMs"`
	Timestamp       time.Time `json:"timestamp"`
	CircuitState    string    `json:"circuitState"`
	DataFreshness   string    `json:"dataFreshness"`
	Error           string    `json:"error,omitempty"`
}

func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.sync.Sync(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, syncResponse{
			Status:        "failed",
			Timestamp:     time.Now().UTC(),
			CircuitState:  s.sync.Status().CircuitState,
			DataFreshness: s.sync.Status().DataFreshness,
			Error:         err.Error(),
		})
		return
	}

	resp := syncResponse{
		Status:          "success",
		RecordsImported: res.TotalRecords,
		DurationMs:      res.DurationMs,
		Timestamp:       res.Timestamp,
		CircuitState:    res.CircuitState,
		DataFreshness:   res.DataFreshness,
	}
	status := http.StatusOK
	if res.Status == marketsync.StatusFailed {
		resp.Status = "failed"
		resp.Error = "both market data sources are unavailable"
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sync.Status())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var events []event.Event
	if kind := r.URL.Query().Get("type"); kind != "" {
		events = s.bus.RecentByType(event.Type(kind))
	} else {
		events = s.bus.Recent()
	}
	if events == nil {
		events = []event.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func (s *Server) handleEventStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bus.HistoryStats())
}
