package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
}

func TestNop_NoEscribe(t *testing.T) {
	l := Nop()
	assert.NotPanics(t, func() {
		l.Info().Str("k", "v").Msg("descartado")
		l.WithSession("s-1").Warn().Msg("descartado")
	})
}
