package scrollsync

import (
	"sync/atomic"
	"time"
)

// Suppression is a monotonically-extending deadline. While it is active
// the document-to-preview direction ignores scroll events, so programmatic
// scrolls cannot echo back as sync messages.
type Suppression struct {
	deadline atomic.Int64 // unix milliseconds
}

// Extend moves the deadline to now+d unless it already lies further out.
func (s *Suppression) Extend(d time.Duration) {
	target := time.Now().Add(d).UnixMilli()
	for {
		cur := s.deadline.Load()
		if cur >= target || s.deadline.CompareAndSwap(cur, target) {
			return
		}
	}
}

// Active reports whether the deadline has not yet passed.
func (s *Suppression) Active() bool {
	return time.Now().UnixMilli() < s.deadline.Load()
}
