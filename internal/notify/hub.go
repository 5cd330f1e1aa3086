package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/emilythestrangee/campus-events/backend/internal/metrics"
	"github.com/emilythestrangee/campus-events/backend/internal/models"
)

const subscriptionBuffer = 16

// Hub fans notifications out to the stream subscribers of each recipient.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]map[*Subscription]struct{}
}

// Subscription receives the notifications of one user.
type Subscription struct {
	userID int
	ch     chan models.Notification
}

func (s *Subscription) C() <-chan models.Notification {
	return s.ch
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]map[*Subscription]struct{})}
}

// Subscribe registers a subscriber for userID. The returned func removes it
// and closes its channel; it is safe to call more than once.
func (h *Hub) Subscribe(userID int) (*Subscription, func()) {
	sub := &Subscription{userID: userID, ch: make(chan models.Notification, subscriptionBuffer)}

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()
	metrics.NotificationSubscribers.Inc()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], sub)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			close(sub.ch)
			h.mu.Unlock()
			metrics.NotificationSubscribers.Dec()
		})
	}
}

// Publish hands n to every subscriber of its recipient and returns how many
// took it. Slow subscribers whose buffer is full miss it.
func (h *Hub) Publish(n models.Notification) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.subs[n.UserID] {
		select {
		case sub.ch <- n:
			delivered++
		default:
			log.Warn().Int("user_id", n.UserID).Msg("notification subscriber buffer full, dropping")
		}
	}
	return delivered
}

// Subscribers returns the number of open subscriptions for userID.
func (h *Hub) Subscribers(userID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Listen relays NOTIFY payloads on Channel into Publish until ctx is done.
func (h *Hub) Listen(ctx context.Context, dsn string) error {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			log.Info().Str("channel", Channel).Msg("notification listener connected")
		case pq.ListenerEventDisconnected:
			log.Warn().Err(err).Msg("notification listener disconnected")
		case pq.ListenerEventReconnected:
			log.Info().Msg("notification listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			log.Warn().Err(err).Msg("notification listener connection attempt failed")
		}
	})
	defer listener.Close()

	if err := listener.Listen(Channel); err != nil {
		return fmt.Errorf("listen on %s: %w", Channel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect; anything sent meanwhile is lost
			if n == nil {
				continue
			}
			h.relay(n.Extra)
		case <-time.After(90 * time.Second):
			go func() {
				if err := listener.Ping(); err != nil {
					log.Warn().Err(err).Msg("notification listener ping failed")
				}
			}()
		}
	}
}

func (h *Hub) relay(payload string) {
	var n models.Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		log.Warn().Err(err).Msg("malformed notification payload")
		return
	}
	h.Publish(n)
}
