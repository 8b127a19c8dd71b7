package event

import (
	"sync"

	"go.uber.org/zap"
)

// Handler receives a published event. Handlers run on the publisher's
// goroutine and must not block; anything slow should queue internally.
type Handler func(Event)

// Stats summarizes the retained event history for monitoring.
type Stats struct {
	Total          int `json:"total_events"`
	AuctionCreated int `json:"auction_created_count"`
	BidPlaced      int `json:"bid_placed_count"`
	AuctionClosed  int `json:"auction_closed_count"`
}

// Bus is an explicitly constructed in-process publish/subscribe bus. Ordering
// is preserved per publishing goroutine; there is no global order across
// auctions. A bounded ring of recent events is retained for introspection
// only; events are lost on restart.
type Bus struct {
	mu       sync.RWMutex
	byType   map[Type][]Handler
	all      []Handler
	history  []Event
	capacity int
}

// DefaultHistorySize is how many recent events the bus retains.
const DefaultHistorySize = 100

// NewBus creates a bus retaining up to historySize recent events. A
// non-positive size falls back to DefaultHistorySize.
func NewBus(historySize int) *Bus {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Bus{
		byType:   make(map[Type][]Handler),
		capacity: historySize,
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(kind Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byType[kind] = append(b.byType[kind], h)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish records the event in the history ring and invokes subscribers.
// Fire-and-forget: there is no delivery acknowledgement.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	b.history = append(b.history, e)
	if len(b.history) > b.capacity {
		b.history = b.history[len(b.history)-b.capacity:]
	}
	handlers := make([]Handler, 0, len(b.byType[e.Kind])+len(b.all))
	handlers = append(handlers, b.byType[e.Kind]...)
	handlers = append(handlers, b.all...)
	b.mu.Unlock()

	zap.L().Debug("event published",
		zap.String("event_id", e.ID),
		zap.String("type", string(e.Kind)),
		zap.Int("handlers", len(handlers)),
	)

	for _, h := range handlers {
		h(e)
	}
}

// Recent returns a copy of the retained history, oldest first.
func (b *Bus) Recent() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}

// RecentByType returns retained events of one type, oldest first.
func (b *Bus) RecentByType(kind Type) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Event
	for _, e := range b.history {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// HistoryStats counts retained events by type.
func (b *Bus) HistoryStats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Stats{Total: len(b.history)}
	for _, e := range b.history {
		switch e.Kind {
		case TypeAuctionCreated:
			s.AuctionCreated++
		case TypeBidPlaced:
			s.BidPlaced++
		case TypeAuctionClosed:
			s.AuctionClosed++
		}
	}
	return s
}
