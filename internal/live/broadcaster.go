package live

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/fishonbid/fishbid/internal/event"
)

// Topic names. Per-auction updates go to "auction/{id}"; the coarser topics
// let dashboards follow all activity of one kind.
const (
	TopicFirehose = "events"
	TopicAuctions = "auctions"
	TopicBids     = "bids"
	topicAuction  = "auction/"
)

// AuctionTopic returns the per-auction topic name.
func AuctionTopic(auctionID string) string {
	return topicAuction + auctionID
}

// Broadcaster subscribes to the event bus and pushes each event to the hub,
// masking bidder emails before anything reaches a socket.
type Broadcaster struct {
	hub *Hub
	log *zap.Logger
}

// NewBroadcaster wires the hub to the bus. It returns after subscribing;
// delivery happens on the publisher's goroutine.
func NewBroadcaster(bus *event.Bus, hub *Hub) *Broadcaster {
	b := &Broadcaster{hub: hub, log: zap.L().Named("live")}
	bus.SubscribeAll(b.handle)
	return b
}

func (b *Broadcaster) handle(e event.Event) {
	masked := maskEvent(e)
	payload, err := json.Marshal(masked)
	if err != nil {
		b.log.Error("failed to encode event", zap.String("event_id", e.ID), zap.Error(err))
		return
	}

	b.hub.Broadcast(TopicFirehose, payload)

	var auctionID string
	switch e.Kind {
	case event.TypeAuctionCreated:
		auctionID = e.AuctionCreated.AuctionID
		b.hub.Broadcast(TopicAuctions, payload)
	case event.TypeBidPlaced:
		auctionID = e.BidPlaced.AuctionID
		b.hub.Broadcast(TopicBids, payload)
	case event.TypeAuctionClosed:
		auctionID = e.AuctionClosed.AuctionID
		b.hub.Broadcast(TopicAuctions, payload)
	}
	if auctionID != "" {
		b.hub.Broadcast(AuctionTopic(auctionID), payload)
	}
}

// maskEvent returns a copy of the event with bidder identities masked.
// Payloads are copied so the retained bus history keeps the full emails.
func maskEvent(e event.Event) event.Event {
	switch e.Kind {
	case event.TypeBidPlaced:
		p := *e.BidPlaced
		p.BidderEmail = MaskEmail(p.BidderEmail)
		e.BidPlaced = &p
	case event.TypeAuctionClosed:
		p := *e.AuctionClosed
		p.WinnerEmail = MaskEmail(p.WinnerEmail)
		e.AuctionClosed = &p
	}
	return e
}

// MaskEmail hides most of an email's local part: "alice@example.com" becomes
// "al***@example.com". Values without an "@" are masked entirely.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	at := strings.Index(email, "@")
	if at < 0 {
		return "***"
	}
	visible := at
	if visible > 2 {
		visible = 2
	}
	return email[:visible] + "***" + email[at:]
}
