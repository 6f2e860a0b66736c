package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, levelFromString("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, levelFromString("warning"))
	assert.Equal(t, zerolog.ErrorLevel, levelFromString(" error "))
	assert.Equal(t, zerolog.InfoLevel, levelFromString("bogus"))
}

func TestJSONLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "warn", "json")
	l.Info().Msg("hidden")
	l.Warn().Str("bed_id", "b1").Msg("shown")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var ev map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &ev))
	assert.Equal(t, "shown", ev["message"])
	assert.Equal(t, "b1", ev["bed_id"])
	assert.Equal(t, "hospital-availability", ev["service"])
}
