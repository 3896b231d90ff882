package queue

import "time"

// SetClock overrides the store's timestamp source in tests.
func SetClock(s *Store, now func() time.Time) {
	s.now = now
}
