// Package notify records notifications and pushes them to the recipient over
// Postgres NOTIFY, server-sent events and, when configured, SMS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/emilythestrangee/campus-events/backend/internal/logging"
	"github.com/emilythestrangee/campus-events/backend/internal/metrics"
	"github.com/emilythestrangee/campus-events/backend/internal/models"
)

// Channel is the Postgres NOTIFY channel the Hub listens on.
const Channel = "notifications"

// Dispatcher delivers notifications in the background. Failures are logged
// and never reach the request that caused them.
type Dispatcher struct {
	db      *gorm.DB
	sms     SMSSender
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher returns a dispatcher. sms may be nil.
func NewDispatcher(db *gorm.DB, sms SMSSender) *Dispatcher {
	return &Dispatcher{db: db, sms: sms, timeout: 10 * time.Second}
}

// Notify queues n for delivery. Notifications about the recipient's own
// actions are dropped.
func (d *Dispatcher) Notify(n models.Notification) {
	if n.UserID == n.ActorID {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.Deliver(ctx, n); err != nil {
			logger := logging.WithUser(n.UserID)
			logger.Warn().Err(err).
				Str("kind", n.Kind).
				Msg("notification delivery failed")
		}
	}()
}

// Wait blocks until queued deliveries finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver stores n, announces it on Channel and texts the recipient.
func (d *Dispatcher) Deliver(ctx context.Context, n models.Notification) error {
	if n.UserID == n.ActorID {
		return nil
	}
	db := d.db.WithContext(ctx)

	n.ID = 0
	if err := db.Omit("Actor").Create(&n).Error; err != nil {
		metrics.NotificationsDispatchedTotal.WithLabelValues("db", "error").Inc()
		return fmt.Errorf("store notification: %w", err)
	}
	metrics.NotificationsDispatchedTotal.WithLabelValues("db", "ok").Inc()

	if err := db.Take(&n.Actor, n.ActorID).Error; err != nil {
		log.Debug().Err(err).Int("actor_id", n.ActorID).Msg("notification actor not loaded")
	}

	if err := d.publish(db, n); err != nil {
		metrics.NotificationsDispatchedTotal.WithLabelValues("stream", "error").Inc()
		log.Warn().Err(err).Int("notification_id", n.ID).Msg("pg_notify failed")
	} else {
		metrics.NotificationsDispatchedTotal.WithLabelValues("stream", "ok").Inc()
	}

	if d.sms != nil {
		d.text(ctx, db, n)
	}
	return nil
}

func (d *Dispatcher) publish(db *gorm.DB, n models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return db.Exec("SELECT pg_notify(?, ?)", Channel, string(payload)).Error
}

func (d *Dispatcher) text(ctx context.Context, db *gorm.DB, n models.Notification) {
	logger := logging.WithUser(n.UserID)

	var recipient models.User
	if err := db.Select("id", "phone").Take(&recipient, n.UserID).Error; err != nil {
		logger.Debug().Err(err).Msg("sms recipient not loaded")
		return
	}
	if recipient.Phone == "" {
		return
	}

	if err := d.sms.Send(ctx, recipient.Phone, n.Message); err != nil {
		metrics.NotificationsDispatchedTotal.WithLabelValues("sms", "error").Inc()
		logger.Warn().Err(err).Msg("sms delivery failed")
		return
	}
	metrics.NotificationsDispatchedTotal.WithLabelValues("sms", "ok").Inc()
}
