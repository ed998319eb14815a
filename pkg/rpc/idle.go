package rpc

import (
	"sync/atomic"
	"time"
)

// IdleMonitor tracks two independent idle timers per Connection (§4.7):
// write-idle, which triggers an outbound ping, and read-idle, which
// declares the connection dead. A zero period disables the corresponding
// timer — useful only in tests.
type IdleMonitor struct {
	writePeriod time.Duration
	readPeriod  time.Duration

	lastWrite int64 // unix nanos, atomic
	lastRead  int64 // unix nanos, atomic
}

// NewIdleMonitor builds a monitor with the given periods. Pass 0 to disable
// either timer.
func NewIdleMonitor(writePeriod, readPeriod time.Duration) *IdleMonitor {
	now := time.Now().UnixNano()
	return &IdleMonitor{
		writePeriod: writePeriod,
		readPeriod:  readPeriod,
		lastWrite:   now,
		lastRead:    now,
	}
}

// MarkWrite records outbound traffic (data frames, not pong responses to
// the monitor's own pings).
func (m *IdleMonitor) MarkWrite() {
	atomic.StoreInt64(&m.lastWrite, time.Now().UnixNano())
}

// MarkRead records inbound traffic. Pongs are handled internally by the
// connection's read pump and, per §4.7, do not count as received traffic
// for correlator purposes — but they DO count here, since a pong is
// exactly the liveness signal read-idle exists to detect.
func (m *IdleMonitor) MarkRead() {
	atomic.StoreInt64(&m.lastRead, time.Now().UnixNano())
}

// WriteIdleExpired reports whether no outbound traffic has been marked for
// at least the write-idle period. Always false when the timer is disabled.
func (m *IdleMonitor) WriteIdleExpired(now time.Time) bool {
	if m.writePeriod <= 0 {
		return false
	}
	last := time.Unix(0, atomic.LoadInt64(&m.lastWrite))
	return now.Sub(last) >= m.writePeriod
}

// ReadIdleExpired reports whether no inbound traffic has been marked for at
// least the read-idle period. Always false when the timer is disabled.
func (m *IdleMonitor) ReadIdleExpired(now time.Time) bool {
	if m.readPeriod <= 0 {
		return false
	}
	last := time.Unix(0, atomic.LoadInt64(&m.lastRead))
	return now.Sub(last) >= m.readPeriod
}

// TickInterval is the granularity at which the connection's event loop
// should check both timers: a quarter of the shorter enabled period,
// floored at 250ms, but never longer than that period itself, so a very
// small configured period still gets timely detection. One second when
// both timers are disabled.
func (m *IdleMonitor) TickInterval() time.Duration {
	const floor = 250 * time.Millisecond
	shortest := time.Duration(0)
	for _, p := range []time.Duration{m.writePeriod, m.readPeriod} {
		if p <= 0 {
			continue
		}
		if shortest == 0 || p < shortest {
			shortest = p
		}
	}
	if shortest == 0 {
		return time.Second
	}
	interval := shortest / 4
	if interval < floor {
		interval = floor
	}
	if interval > shortest {
		interval = shortest
	}
	return interval
}
