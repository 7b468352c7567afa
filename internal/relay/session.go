package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultName is the display name assigned to sessions that never
// supplied one.
const DefaultName = "Anonymous"

// Session is the server-side state for one connected client. It is
// created at connect, mutated only by the hub goroutine, and destroyed
// with the connection; the rate-limit clocks die with it.
type Session struct {
	id     uuid.UUID
	name   string
	room   string
	joined bool

	messageGate intervalLimiter
	typingGate  intervalLimiter
}

func newSession(cfg Config) Session {
	return Session{
		id:          uuid.New(),
		name:        DefaultName,
		room:        cfg.DefaultRoom,
		messageGate: intervalLimiter{min: cfg.MessageMinInterval},
		typingGate:  intervalLimiter{min: cfg.TypingMinInterval},
	}
}

// ID returns the session identifier carried on user messages.
func (s *Session) ID() string {
	return s.id.String()
}

// intervalLimiter drops events that arrive sooner than min after the
// last accepted event. The first event is always accepted. There is no
// queueing or refill; a denied event leaves the clock untouched so the
// window is measured from the last acceptance.
type intervalLimiter struct {
	mu   sync.Mutex
	min  time.Duration
	last time.Time
}

func (l *intervalLimiter) allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() && now.Sub(l.last) < l.min {
		return false
	}
	l.last = now
	return true
}
