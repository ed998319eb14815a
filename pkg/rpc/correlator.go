package rpc

import (
	"encoding/json"
	"sync"
	"time"
)

// PendingEntry is the correlator's record of an in-flight request: its
// result slot, the method name (for error messages and metrics), the
// scheduled timeout, and when it was created (§3.2).
type PendingEntry struct {
	ID        int64
	Method    string
	Result    chan *Result
	CreatedAt time.Time
	timer     *time.Timer
}

// CorrelatorMetrics receives the orphaned-response, timeout, and
// pending-limit callbacks named in §4.5/§6; nil disables them.
type CorrelatorMetrics interface {
	OnOrphanedResponse(id int64)
	OnTimeout(method string, id int64)
	OnPendingLimitReached(method string)
}

// RequestCorrelator maps JSON-RPC request ids to pending result slots.
// Exactly one of {completion, timeout, connection failure} ever resolves a
// given entry — every removal path uses remove-if-present so a response
// racing a timeout can never double-resolve the same slot (§9).
type RequestCorrelator struct {
	mu         sync.Mutex
	pending    map[int64]*PendingEntry
	nextID     int64
	maxPending int
	metrics    CorrelatorMetrics
}

// NewRequestCorrelator returns an empty correlator. maxPending is the §6
// soft cap on simultaneously pending entries — Register rejects further
// submissions with a backpressure error once it's reached. Pass 0 for no
// cap.
func NewRequestCorrelator(metrics CorrelatorMetrics, maxPending int) *RequestCorrelator {
	return &RequestCorrelator{
		pending:    make(map[int64]*PendingEntry),
		maxPending: maxPending,
		metrics:    metrics,
	}
}

// NextID returns a fresh monotonically increasing request id. Ids are never
// reused while a slot for a prior id may still be pending (§3.2).
func (c *RequestCorrelator) NextID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return c.nextID
}

// Register inserts entry, arming its timeout so that if no response arrives
// within timeout, the entry is removed and its result slot completed with a
// transport timeout error. Once maxPending entries are already pending, Register rejects the
// new entry with a backpressure error instead of inserting it (§6).
func (c *RequestCorrelator) Register(entry *PendingEntry, timeout time.Duration) error {
	timer := time.AfterFunc(timeout, func() {
		c.timeoutEntry(entry.ID)
	})
	entry.timer = timer

	c.mu.Lock()
	if c.maxPending > 0 && len(c.pending) >= c.maxPending {
		c.mu.Unlock()
		timer.Stop()
		if c.metrics != nil {
			c.metrics.OnPendingLimitReached(entry.Method)
		}
		return transportErr(entry.Method, "request correlator at capacity: %d requests already pending", c.maxPending)
	}
	c.pending[entry.ID] = entry
	c.mu.Unlock()
	return nil
}

func (c *RequestCorrelator) removeIfPresent(id int64) (*PendingEntry, bool) {
	c.mu.Lock()
	entry, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	return entry, ok
}

// Resolve completes the pending entry for id with either raw (a successful
// result) or rpcErrObj (a non-null JSON-RPC error object), and returns
// whether an entry was found. A miss means the frame is orphaned (§4.5).
func (c *RequestCorrelator) Resolve(id int64, raw json.RawMessage, rpcErrObj *rpcErrorObject) bool {
	entry, ok := c.removeIfPresent(id)
	if !ok {
		if c.metrics != nil {
			c.metrics.OnOrphanedResponse(id)
		}
		return false
	}
	entry.timer.Stop()
	if rpcErrObj != nil {
		entry.Result <- &Result{Err: rpcErr(entry.Method, rpcErrObj.Code, rpcErrObj.Message, rpcErrObj.Data)}
		return true
	}
	entry.Result <- &Result{Raw: raw}
	return true
}

func (c *RequestCorrelator) timeoutEntry(id int64) {
	entry, ok := c.removeIfPresent(id)
	if !ok {
		return
	}
	if c.metrics != nil {
		c.metrics.OnTimeout(entry.Method, entry.ID)
	}
	entry.Result <- &Result{Err: transportErr(entry.Method, "request %d timed out waiting for a response", entry.ID)}
}

// FailAll completes every currently pending entry with err and clears the
// map — used when the connection drops or is explicitly closed (§4.4, §5).
func (c *RequestCorrelator) FailAll(err error) {
	c.mu.Lock()
	entries := make([]*PendingEntry, 0, len(c.pending))
	for id, entry := range c.pending {
		entries = append(entries, entry)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	for _, entry := range entries {
		entry.timer.Stop()
		entry.Result <- &Result{Err: err}
	}
}

// Cancel removes and silently drops the pending entry for id, stopping its
// timer, without sending a Result. Used when the caller abandons a request
// (e.g. ctx cancellation or a failed enqueue) before any response or
// timeout has resolved it — the result channel is never read again, so
// resolving it would leak a stuck send.
func (c *RequestCorrelator) Cancel(id int64) {
	entry, ok := c.removeIfPresent(id)
	if !ok {
		return
	}
	entry.timer.Stop()
}

// Len reports the number of currently pending entries.
func (c *RequestCorrelator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
