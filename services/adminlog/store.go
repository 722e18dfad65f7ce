package adminlog

import "github.com/logtap/logtap/diag"

const (
	// MaxSubscriptions bounds the number of concurrent log streams.
	MaxSubscriptions = 64

	// fileNameCount is the capacity of the interned file name ring.
	fileNameCount = 32
)

type subscription struct {
	// level is the minimum severity to match, all higher levels also match.
	level diag.Level

	// interned is true when file is a canonical interner entry sharing its
	// backing with event file names, so equality hits the pointer fast path.
	interned bool

	// line to match exactly, 0 matches all lines.
	line int

	// file name to match, empty matches any file.
	file string

	// txid of the request which solicited this stream of logs.
	txid string

	// streamID identifies this stream to the subscriber.
	streamID uint64
}

// store holds the live subscriptions. All access happens under the
// service mutex.
type store struct {
	subs [MaxSubscriptions]subscription
	n    int
}

func (st *store) add(sub subscription) bool {
	if st.n >= MaxSubscriptions {
		return false
	}
	st.subs[st.n] = sub
	st.n++
	return true
}

// removeAt drops slot i by overwriting it with the last live entry.
// Iteration order is not preserved. The vacated slot is zeroed so the
// removed subscription's strings are released.
func (st *store) removeAt(i int) {
	st.n--
	if i != st.n {
		st.subs[i] = st.subs[st.n]
	}
	st.subs[st.n] = subscription{}
}

func (st *store) indexOf(streamID uint64) int {
	for i := 0; i < st.n; i++ {
		if st.subs[i].streamID == streamID {
			return i
		}
	}
	return -1
}

// interner keeps a small ring of file names seen in matching filters so
// repeated matches against the same file reuse one canonical string.
type interner struct {
	names [fileNameCount]string
}

// lookup scans for a content-equal entry and returns the canonical string.
func (in *interner) lookup(name string) (string, bool) {
	for i := range in.names {
		if in.names[i] == name {
			return in.names[i], true
		}
	}
	return "", false
}

// intern returns the canonical entry for name, caching it if the ring
// still has a free slot. A full ring reports false and skips caching;
// matching then stays on content comparison, which is slower but correct.
func (in *interner) intern(name string) (string, bool) {
	for i := range in.names {
		if in.names[i] == name {
			return in.names[i], true
		}
		if in.names[i] == "" {
			in.names[i] = name
			return in.names[i], true
		}
	}
	return "", false
}
