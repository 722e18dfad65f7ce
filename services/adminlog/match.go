package adminlog

import "github.com/logtap/logtap/diag"

// match reports whether an event fits sub's filter. On the first content
// match of a non-interned file filter the subscription is promoted: its
// filter is swapped for the event's file name, whose backing is stable for
// the process lifetime, so later comparisons short-circuit on identity.
// Must be called with the service mutex held.
func (s *Service) match(sub *subscription, level diag.Level, file string, line int) bool {
	if sub.file != "" {
		if file != sub.file {
			return false
		}
		if !sub.interned {
			if canonical, ok := s.names.intern(file); ok {
				sub.file = canonical
				sub.interned = true
			}
		}
	}

	if level < sub.level {
		return false
	}
	if sub.line != 0 && line != sub.line {
		return false
	}
	return true
}
