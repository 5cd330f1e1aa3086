package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestChildLoggersTagIDs(t *testing.T) {
	saved := log.Logger
	t.Cleanup(func() { log.Logger = saved })

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)

	userLogger := WithUser(42)
	userLogger.Info().Msg("delivered")
	assert.Contains(t, buf.String(), `"user_id":42`)

	buf.Reset()
	commentLogger := WithComment(7)
	commentLogger.Warn().Msg("drift")
	assert.Contains(t, buf.String(), `"comment_id":7`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}
