package eventlogger

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func (c fixedClock) NewTicker(d time.Duration) *time.Ticker { return time.NewTicker(d) }

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		severity string
		want     zapcore.Level
	}{
		{"alert", zapcore.ErrorLevel},
		{"ERROR", zapcore.ErrorLevel},
		{"warning", zapcore.WarnLevel},
		{"notice", zapcore.InfoLevel},
		{"log", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"whatever", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			assert.Equal(t, tt.want, LevelFor(tt.severity))
		})
	}
}

func TestFileSink_AppendJSON(t *testing.T) {
	loc, err := time.LoadLocation("America/Bogota")
	require.NoError(t, err)
	at := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "logs", "incident.log")

	sink, err := OpenFile(path, Options{Location: loc, Clock: fixedClock{at}})
	require.NoError(t, err)
	require.NoError(t, sink.Append("alert", "db down"))
	require.NoError(t, sink.Append("log", "trace: frame 1"))
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, jsoniter.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "error", first["level"])
	assert.Equal(t, "alert", first["severity"])
	assert.Equal(t, "db down", first["message"])
	assert.Equal(t, "2024-03-01T10:00:00-05:00", first["time"])

	var second map[string]any
	require.NoError(t, jsoniter.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "log", second["severity"])
}

func TestFileSink_AppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.log")
	for _, msg := range []string{"one", "two"} {
		sink, err := OpenFile(path, Options{Format: FormatConsole})
		require.NoError(t, err)
		require.NoError(t, sink.Append("info", msg))
		require.NoError(t, sink.Close())
	}
	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.True(t, strings.Contains(lines[0], "INFO"))
	assert.True(t, strings.Contains(lines[1], "two"))
}

func TestFileSink_Closed(t *testing.T) {
	sink, err := OpenFile(filepath.Join(t.TempDir(), "a.log"), Options{})
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.Append("info", "late"), ErrSinkClosed)
}

func TestOpenDaily(t *testing.T) {
	dir := t.TempDir()
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	open, err := OpenDaily(dir, Options{Location: tokyo})
	require.NoError(t, err)

	// 20:00 UTC on the 1st is already the 2nd in Tokyo.
	sink, err := open(time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, sink.Append("error", "boom"))
	require.NoError(t, sink.Close())

	_, err = os.Stat(filepath.Join(dir, "20240302.log"))
	assert.NoError(t, err)
}

func TestOpenDaily_Invalid(t *testing.T) {
	_, err := OpenDaily("", Options{})
	assert.ErrorIs(t, err, ErrMissingDir)
	_, err = OpenDaily(t.TempDir(), Options{Format: "xml"})
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
