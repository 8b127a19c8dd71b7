package event

import (
	"fmt"
	"sync"
	"testing"
)

func TestBus_SubscribeByType(t *testing.T) {
	bus := NewBus(10)

	var created, placed int
	bus.Subscribe(TypeAuctionCreated, func(e Event) { created++ })
	bus.Subscribe(TypeBidPlaced, func(e Event) { placed++ })

	bus.Publish(NewAuctionCreated(AuctionCreated{AuctionID: "a1", FishName: "Tuna"}))
	bus.Publish(NewBidPlaced(BidPlaced{AuctionID: "a1", Amount: 120}))
	bus.Publish(NewBidPlaced(BidPlaced{AuctionID: "a1", Amount: 130}))

	if created != 1 {
		t.Errorf("expected 1 created delivery, got %d", created)
	}
	if placed != 2 {
		t.Errorf("expected 2 bid deliveries, got %d", placed)
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus(10)

	var got []Type
	bus.SubscribeAll(func(e Event) { got = append(got, e.Kind) })

	bus.Publish(NewAuctionCreated(AuctionCreated{AuctionID: "a1"}))
	bus.Publish(NewBidPlaced(BidPlaced{AuctionID: "a1"}))
	bus.Publish(NewAuctionClosed(AuctionClosed{AuctionID: "a1"}))

	want := []Type{TypeAuctionCreated, TypeBidPlaced, TypeAuctionClosed}
	if len(got) != len(want) {
		t.Fatalf("expected %d deliveries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestBus_HistoryEvictsOldest(t *testing.T) {
	bus := NewBus(100)

	for i := 0; i < 150; i++ {
		bus.Publish(NewBidPlaced(BidPlaced{AuctionID: fmt.Sprintf("a%d", i)}))
	}

	recent := bus.Recent()
	if len(recent) != 100 {
		t.Fatalf("expected history capped at 100, got %d", len(recent))
	}
	// Oldest 50 evicted: first retained event is a50.
	if recent[0].BidPlaced.AuctionID != "a50" {
		t.Errorf("expected oldest retained event a50, got %s", recent[0].BidPlaced.AuctionID)
	}
	if recent[99].BidPlaced.AuctionID != "a149" {
		t.Errorf("expected newest retained event a149, got %s", recent[99].BidPlaced.AuctionID)
	}
}

func TestBus_HistoryStats(t *testing.T) {
	bus := NewBus(50)

	bus.Publish(NewAuctionCreated(AuctionCreated{AuctionID: "a1"}))
	bus.Publish(NewBidPlaced(BidPlaced{AuctionID: "a1"}))
	bus.Publish(NewBidPlaced(BidPlaced{AuctionID: "a1"}))
	bus.Publish(NewAuctionClosed(AuctionClosed{AuctionID: "a1"}))

	s := bus.HistoryStats()
	if s.Total != 4 || s.AuctionCreated != 1 || s.BidPlaced != 2 || s.AuctionClosed != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(1000)

	var mu sync.Mutex
	var delivered int
	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish(NewBidPlaced(BidPlaced{AuctionID: "a1"}))
			}
		}()
	}
	wg.Wait()

	if delivered != 500 {
		t.Errorf("expected 500 deliveries, got %d", delivered)
	}
	if got := len(bus.Recent()); got != 500 {
		t.Errorf("expected 500 retained events, got %d", got)
	}
}

func TestBus_RecentByType(t *testing.T) {
	bus := NewBus(50)

	bus.Publish(NewAuctionCreated(AuctionCreated{AuctionID: "a1"}))
	bus.Publish(NewBidPlaced(BidPlaced{AuctionID: "a1"}))
	bus.Publish(NewAuctionCreated(AuctionCreated{AuctionID: "a2"}))

	got := bus.RecentByType(TypeAuctionCreated)
	if len(got) != 2 {
		t.Fatalf("expected 2 created events, got %d", len(got))
	}
	if got[0].AuctionCreated.AuctionID != "a1" || got[1].AuctionCreated.AuctionID != "a2" {
		t.Errorf("unexpected order: %s, %s", got[0].AuctionCreated.AuctionID, got[1].AuctionCreated.AuctionID)
	}
}
