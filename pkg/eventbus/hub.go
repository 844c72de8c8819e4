// Package eventbus fans domain events out to in-process observers such as the
// live websocket stream. Delivery is best effort: slow subscribers drop events.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventVoteCast                EventType = "VoteCast"
	EventOrderCaptured           EventType = "OrderCaptured"
	EventTierAchieved            EventType = "TierAchieved"
	EventSettlementCompleted     EventType = "SettlementCompleted"
	EventSubmissionStatusChanged EventType = "SubmissionStatusChanged"
)

const defaultBuffer = 32

// Event is one domain notification scoped to a design.
type Event struct {
	Type       EventType `json:"type"`
	DesignID   uuid.UUID `json:"designId"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data,omitempty"`
}

// Publisher is what domain services depend on.
type Publisher interface {
	Publish(evt Event)
}

// Hub routes events to subscribers of a design, or of every design.
type Hub struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]map[*Subscription]struct{}
	all     map[*Subscription]struct{}
	buffer  int
	dropped atomic.Int64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		byID:   make(map[uuid.UUID]map[*Subscription]struct{}),
		all:    make(map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscription is a single observer's event stream.
type Subscription struct {
	hub      *Hub
	designID uuid.UUID
	ch       chan Event
	once     sync.Once
}

// Subscribe registers an observer. uuid.Nil subscribes to every design.
func (h *Hub) Subscribe(designID uuid.UUID) *Subscription {
	sub := &Subscription{hub: h, designID: designID, ch: make(chan Event, h.buffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if designID == uuid.Nil {
		h.all[sub] = struct{}{}
		return sub
	}
	set, ok := h.byID[designID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.byID[designID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Events returns the receive side; it is closed by Close.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		if s.designID == uuid.Nil {
			delete(h.all, s)
		} else if set, ok := h.byID[s.designID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.byID, s.designID)
			}
		}
		close(s.ch)
		h.mu.Unlock()
	})
}

// Publish never blocks; an event is dropped for any subscriber whose buffer is full.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.byID[evt.DesignID] {
		h.deliver(sub, evt)
	}
	for sub := range h.all {
		h.deliver(sub, evt)
	}
}

func (h *Hub) deliver(sub *Subscription, evt Event) {
	select {
	case sub.ch <- evt:
	default:
		h.dropped.Add(1)
	}
}

// Dropped reports how many deliveries were skipped because a subscriber lagged.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := len(h.all)
	for _, set := range h.byID {
		count += len(set)
	}
	return count
}

// Nop discards events; used where no observers are wired.
type Nop struct{}

func (Nop) Publish(Event) {}
