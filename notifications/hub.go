package notifications

import (
	"context"
	"sync"

	"quest-progression-system/logger"
	"quest-progression-system/models"
	"quest-progression-system/services"
)

var _ services.Notifier = (*Hub)(nil)

// Hub fans events out to the SSE streams connected to this instance. A slow
// stream loses events instead of blocking the sender.
type Hub struct {
	log    *logger.Logger
	buffer int

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

type Subscription struct {
	C      <-chan models.Event
	ch     chan models.Event
	userID string
	hub    *Hub
	once   sync.Once
}

func NewHub(buffer int, log *logger.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		log:    log.With("service", "EventHub"),
		buffer: buffer,
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

func (h *Hub) Subscribe(userID string) *Subscription {
	ch := make(chan models.Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch, userID: userID, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	return sub
}

// Close detaches the subscription and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		delete(h.subs[s.userID], s)
		if len(h.subs[s.userID]) == 0 {
			delete(h.subs, s.userID)
		}
		close(s.ch)
		h.mu.Unlock()
	})
}

// Subscribers returns how many streams are open for a user.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Notify delivers events to every open stream of userID. It never blocks
// and never fails; users without streams are simply skipped.
func (h *Hub) Notify(_ context.Context, userID string, events []models.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[userID] {
		for _, ev := range events {
			select {
			case sub.ch <- ev:
			default:
				h.log.Warn("event stream full, dropping event", "user_id", userID, "type", ev.Type)
			}
		}
	}
	return nil
}
