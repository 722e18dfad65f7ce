package adminlog

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"

	"github.com/logtap/logtap/diag"
	"github.com/logtap/logtap/wire"
)

// streamIDHexLen is the fixed width of a stream id on the wire: 8 bytes
// as lowercase hex.
const streamIDHexLen = 16

var errMalformedStreamID = errors.New("malformed stream id")

// encodeEvent builds the push message for one log event. It is built once
// per log call and reused for every matching subscription with only the
// streamId varying.
func (s *Service) encodeEvent(e diag.Event) wire.Dict {
	buf := s.pool.Get()
	if len(e.Args) == 0 {
		buf.WriteString(e.Format)
	} else {
		fmt.Fprintf(buf, e.Format, e.Args...)
	}
	msg := buf.String()
	buf.Close()

	return wire.Dict{
		"time":    s.clock.Now().Unix(),
		"level":   e.Level.Name(),
		"file":    e.File,
		"line":    int64(e.Line),
		"message": msg,
	}
}

func newStreamID() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, errors.Wrap(err, "generate stream id")
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// formatStreamID renders id as fixed-width lowercase hex.
func formatStreamID(id uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return hex.EncodeToString(b[:])
}

// parseStreamID decodes the fixed-width hex form produced by
// formatStreamID.
func parseStreamID(s string) (uint64, error) {
	if len(s) != streamIDHexLen {
		return 0, errMalformedStreamID
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, errMalformedStreamID
	}
	return binary.BigEndian.Uint64(b), nil
}
