package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/logtap/logtap/diag"
	"github.com/logtap/logtap/services/logging"
)

func newTestService(t *testing.T, c logging.Config, buf *bytes.Buffer) *logging.Service {
	t.Helper()
	ws := zapcore.AddSync(buf)
	s := logging.NewService(c, ws, ws)
	require.NoError(t, s.Open())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLogRendersJSON(t *testing.T) {
	var buf bytes.Buffer
	c := logging.Config{File: "STDERR", Level: "INFO", Encoding: "json"}
	s := newTestService(t, c, &buf)

	s.Log(diag.Event{
		Level:  diag.Error,
		File:   "net.c",
		Line:   42,
		Format: "dropped %d packets",
		Args:   []interface{}{3},
	})

	var entry struct {
		Level string `json:"level"`
		Msg   string `json:"msg"`
		File  string `json:"file"`
		Line  int    `json:"line"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "error", entry.Level)
	require.Equal(t, "dropped 3 packets", entry.Msg)
	require.Equal(t, "net.c", entry.File)
	require.Equal(t, 42, entry.Line)
}

func TestLogHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	c := logging.Config{File: "STDERR", Level: "WARN", Encoding: "json"}
	s := newTestService(t, c, &buf)

	s.Log(diag.Event{Level: diag.Info, File: "net.c", Line: 1, Format: "quiet"})
	require.Zero(t, buf.Len(), "INFO filtered out at WARN")

	s.Log(diag.Event{Level: diag.Warn, File: "net.c", Line: 2, Format: "loud"})
	require.NotZero(t, buf.Len())
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	c := logging.Config{File: "STDERR", Level: "ERROR", Encoding: "json"}
	s := newTestService(t, c, &buf)

	s.Log(diag.Event{Level: diag.Debug, File: "net.c", Line: 1, Format: "hidden"})
	require.Zero(t, buf.Len())

	require.NoError(t, s.SetLevel("DEBUG"))
	s.Log(diag.Event{Level: diag.Debug, File: "net.c", Line: 2, Format: "visible"})
	require.NotZero(t, buf.Len())

	require.Error(t, s.SetLevel("LOUD"))
}

func TestOpenRejectsUnknownEncoding(t *testing.T) {
	var buf bytes.Buffer
	ws := zapcore.AddSync(&buf)
	s := logging.NewService(logging.Config{File: "STDERR", Level: "INFO", Encoding: "yaml"}, ws, ws)
	require.Error(t, s.Open())
}
