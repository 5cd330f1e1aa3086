package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeMessages struct {
	params []*twilioApi.CreateMessageParams
	err    error
}

func (f *fakeMessages) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, p)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioSender(t *testing.T) {
	api := &fakeMessages{}
	s := &TwilioSender{api: api, from: "+15550000000"}

	require.NoError(t, s.Send(context.Background(), "+15551234567", "ada is going to Robotics night"))
	require.Len(t, api.params, 1)
	assert.Equal(t, "+15551234567", *api.params[0].To)
	assert.Equal(t, "+15550000000", *api.params[0].From)
	assert.Equal(t, "ada is going to Robotics night", *api.params[0].Body)

	api.err = errors.New("20003 authenticate")
	assert.Error(t, s.Send(context.Background(), "+15551234567", "x"))
}

type countingSender struct {
	calls int
	err   error
}

func (c *countingSender) Send(context.Context, string, string) error {
	c.calls++
	return c.err
}

func TestBreakerSender_OpensAfterFailures(t *testing.T) {
	next := &countingSender{err: errors.New("timeout")}
	b := NewBreakerSender(next)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.Error(t, b.Send(ctx, "+1", "x"))
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.Send(ctx, "+1", "x")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 5, next.calls, "open breaker does not call through")
}

func TestBreakerSender_StaysClosedOnSuccess(t *testing.T) {
	next := &countingSender{}
	b := NewBreakerSender(next)

	for i := 0; i < 10; i++ {
		assert.NoError(t, b.Send(context.Background(), "+1", "x"))
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 10, next.calls)
}
