package adminlog

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/logtap/logtap/diag"
)

func TestStreamID_FormatParseRoundTrip(t *testing.T) {
	for _, id := range []uint64{0, 1, 0xdeadbeefcafef00d, ^uint64(0)} {
		s := formatStreamID(id)
		require.Len(t, s, streamIDHexLen)
		got, err := parseStreamID(s)
		require.NoError(t, err)
		require.Equal(t, id, got)
	}
}

func TestStreamID_ParseRejectsMalformed(t *testing.T) {
	for _, bad := range []string{
		"",
		"0011223344556677889900",
		"00112233445566",
		"g0112233445566zz",
		"00112233 4455667",
	} {
		_, err := parseStreamID(bad)
		require.Error(t, err, "streamId %q", bad)
	}
}

func TestStreamID_Uniqueness(t *testing.T) {
	const trials = 10000
	seen := make(map[uint64]struct{}, trials)
	for i := 0; i < trials; i++ {
		id, err := newStreamID()
		require.NoError(t, err)
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate stream id after %d trials", i)
		}
		seen[id] = struct{}{}
	}
}

func TestEncodeEvent(t *testing.T) {
	s := NewService(newTestTransport(), nopDiag{})
	mock := clock.NewMock()
	mock.Set(time.Unix(1600000000, 0))
	s.clock = mock

	d := s.encodeEvent(diag.Event{
		Level:  diag.Warn,
		File:   "net.c",
		Line:   42,
		Format: "dropped %d of %d",
		Args:   []interface{}{3, 10},
	})

	ts, _ := d.GetInt("time")
	require.Equal(t, int64(1600000000), ts)
	level, _ := d.GetString("level")
	require.Equal(t, "WARN", level)
	file, _ := d.GetString("file")
	require.Equal(t, "net.c", file)
	line, _ := d.GetInt("line")
	require.Equal(t, int64(42), line)
	msg, _ := d.GetString("message")
	require.Equal(t, "dropped 3 of 10", msg)
}

func TestEncodeEvent_NoArgsKeepsFormatVerbatim(t *testing.T) {
	s := NewService(newTestTransport(), nopDiag{})
	s.clock = clock.NewMock()

	d := s.encodeEvent(diag.Event{Level: diag.Info, File: "a.c", Line: 1, Format: "100% done"})
	msg, _ := d.GetString("message")
	require.Equal(t, "100% done", msg)
}
