package bus

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"relay/internal/relay"
	"relay/internal/relay/metrics"
)

// recordingSub collects every event it receives.
type recordingSub struct {
	id string

	mu     sync.Mutex
	events []relay.Event

	failAfter int // fail sends once this many events were accepted; 0 = never
}

func newRecordingSub(id string) *recordingSub {
	return &recordingSub{id: id}
}

func (s *recordingSub) ID() string { return s.id }

func (s *recordingSub) Send(event relay.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter > 0 && len(s.events) >= s.failAfter {
		return errors.New("send failed")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSub) Close() error { return nil }

func (s *recordingSub) received() []relay.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]relay.Event, len(s.events))
	copy(out, s.events)
	return out
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h, err := NewHub(zap.NewNop(), metrics.NewRegistry())
	if err != nil {
		t.Fatalf("NewHub: %v", err)
	}
	return h
}

func phEvent(v float64) relay.Event {
	return relay.Event{Kind: relay.KindPHReading, Payload: v, OccurredAt: time.Now()}
}

func TestPublishDeliversToAllConnected(t *testing.T) {
	h := newTestHub(t)

	subs := make([]*recordingSub, 3)
	for i := range subs {
		subs[i] = newRecordingSub(fmt.Sprintf("sub-%d", i))
		h.Subscribe(subs[i])
	}

	h.Publish(phEvent(7.2))

	for _, s := range subs {
		got := s.received()
		if len(got) != 1 {
			t.Fatalf("subscriber %s received %d events, want 1", s.id, len(got))
		}
		if got[0].Payload != 7.2 {
			t.Errorf("subscriber %s got payload %v, want 7.2", s.id, got[0].Payload)
		}
	}
}

func TestPublishSkipsUnsubscribed(t *testing.T) {
	h := newTestHub(t)

	stay := newRecordingSub("stay")
	leave := newRecordingSub("leave")
	h.Subscribe(stay)
	h.Subscribe(leave)

	h.Publish(phEvent(6.8))
	h.Unsubscribe("leave")
	h.Publish(phEvent(7.0))

	if got := len(leave.received()); got != 1 {
		t.Errorf("unsubscribed subscriber received %d events, want 1", got)
	}
	if got := len(stay.received()); got != 2 {
		t.Errorf("connected subscriber received %d events, want 2", got)
	}
}

func TestFailedSendEvictsOnlyFailingSubscriber(t *testing.T) {
	h := newTestHub(t)

	healthy := newRecordingSub("healthy")
	broken := newRecordingSub("broken")
	broken.failAfter = 1

	h.Subscribe(healthy)
	h.Subscribe(broken)

	h.Publish(phEvent(7.0))
	h.Publish(phEvent(7.1)) // broken fails here and is evicted
	h.Publish(phEvent(7.2))

	if got := len(healthy.received()); got != 3 {
		t.Errorf("healthy subscriber received %d events, want 3", got)
	}
	if got := h.SubscriberCount(); got != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", got)
	}
}

func TestPerSubscriberOrdering(t *testing.T) {
	h := newTestHub(t)

	sub := newRecordingSub("ordered")
	h.Subscribe(sub)

	const n = 100
	for i := 0; i < n; i++ {
		h.Publish(phEvent(float64(i)))
	}

	got := sub.received()
	if len(got) != n {
		t.Fatalf("received %d events, want %d", len(got), n)
	}
	for i, e := range got {
		if e.Payload != float64(i) {
			t.Fatalf("event %d has payload %v, want %v", i, e.Payload, float64(i))
		}
	}
}

func TestConcurrentSubscribeUnsubscribePublish(t *testing.T) {
	h := newTestHub(t)

	stable := newRecordingSub("stable")
	h.Subscribe(stable)

	const publishes = 200
	var wg sync.WaitGroup

	// churn: subscribers connecting and disconnecting during broadcasts
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s := newRecordingSub(fmt.Sprintf("churn-%d-%d", i, j))
				h.Subscribe(s)
				h.Unsubscribe(s.ID())
			}
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < publishes; i++ {
			h.Publish(phEvent(float64(i)))
		}
	}()

	wg.Wait()

	// The subscriber that stayed connected for the whole run received
	// every publish, in order, regardless of the churn around it.
	got := stable.received()
	if len(got) != publishes {
		t.Fatalf("stable subscriber received %d events, want %d", len(got), publishes)
	}
	for i, e := range got {
		if e.Payload != float64(i) {
			t.Fatalf("event %d has payload %v, want %v", i, e.Payload, float64(i))
		}
	}
}

func TestUnsubscribeUnknownIDIsNoop(t *testing.T) {
	h := newTestHub(t)
	h.Unsubscribe("never-seen")
	if got := h.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", got)
	}
}
