package logging_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Tiliavir/psp/internal/logging"
)

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, logging.Level(false), "check")

	logger.Debug("hidden")
	logger.Warn("shown", "kind", "unknown-key")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "kind=unknown-key")
	assert.Contains(t, out, "component=check")
	assert.Contains(t, out, "session="+logging.SessionID())
	assert.False(t, strings.HasPrefix(out, "time="))
}

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logging.Level(true))
	assert.Equal(t, slog.LevelWarn, logging.Level(false))
}
