package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

var (
	_ sqlexplorer.Logger = (*ConsoleLogger)(nil)
	_ sqlexplorer.Logger = (*NullLogger)(nil)
	_ sqlexplorer.Logger = (*SlogLogger)(nil)
)

func TestSlogLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(NewStructured(&buf, "json", "info"))

	l.Verbose("hidden %d", 1)
	l.Info("pool warmed with %d sessions", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "pool warmed with 2 sessions", rec["msg"])
}

func TestSlogLogger_DebugLevelShowsVerbose(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(NewStructured(&buf, "text", "debug"))

	l.Verbose("retrying attempt %d", 2)
	l.Error("gave up")

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, `msg="retrying attempt 2"`)
	assert.Contains(t, out, "level=ERROR")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"VERBOSE": slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestStatement(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t WHERE a = 1", Statement("SELECT *\n  FROM t\n\tWHERE a = 1  "))

	long := "SELECT " + strings.Repeat("x", 200)
	got := Statement(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Len(t, got, sqlexplorer.MaxLoggedStatementLength+3)

	exact := strings.Repeat("y", sqlexplorer.MaxLoggedStatementLength)
	assert.Equal(t, exact, Statement(exact))
}
