package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/emilythestrangee/campus-events/backend/internal/config"
	"github.com/emilythestrangee/campus-events/backend/internal/metrics"
)

// SMSSender delivers a text message to an E.164 number.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends through the Twilio Messages API.
type TwilioSender struct {
	api  messageCreator
	from string
}

func NewTwilioSender(cfg config.TwilioConfig) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioSender{api: client.Api, from: cfg.FromNumber}
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	msg, err := s.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	if msg != nil && msg.Sid != nil {
		log.Debug().Str("sid", *msg.Sid).Msg("sms queued")
	}
	return nil
}

// BreakerSender stops calling next after sustained failures and retries it
// once the breaker half-opens.
type BreakerSender struct {
	cb   *gobreaker.CircuitBreaker
	next SMSSender
}

func NewBreakerSender(next SMSSender) *BreakerSender {
	settings := gobreaker.Settings{
		Name:        "sms",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			metrics.CircuitBreakerStateChanges.WithLabelValues(name, to.String()).Inc()
		},
	}
	return &BreakerSender{cb: gobreaker.NewCircuitBreaker(settings), next: next}
}

func (b *BreakerSender) Send(ctx context.Context, to, body string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Send(ctx, to, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("sms unavailable: %w", err)
	}
	return err
}

// State reports the breaker state.
func (b *BreakerSender) State() gobreaker.State {
	return b.cb.State()
}
