package rpc

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Listener receives every notification payload delivered for a
// subscription, synchronously on the reader goroutine (§4.6). A listener
// that needs to do real work should hand off to its own goroutine; the
// router does not enforce this.
type Listener func(payload json.RawMessage)

// SubscriptionEntry records what the router needs to support optional
// manual replay after a reconnect (§9): the server-assigned id, the
// listener, and the original method/params that produced it.
type SubscriptionEntry struct {
	SubscriptionID string
	Method         string
	Params         json.RawMessage
	Listener       Listener
}

// SubscriptionRouter dispatches eth_subscription-style notification frames
// to per-subscription listeners (§4.6). The map survives reconnection —
// only the server-side subscriptions are lost, per §3.2.
type SubscriptionRouter struct {
	mu      sync.RWMutex
	byID    map[string]*SubscriptionEntry
	logger  *zap.Logger
	metrics RouterMetrics
}

// RouterMetrics receives the listener-panic counter named in §4.5's
// "Listener exceptions are caught, logged, and counted" requirement.
type RouterMetrics interface {
	OnListenerPanic(subscriptionID string)
}

// NewSubscriptionRouter returns an empty router.
func NewSubscriptionRouter(logger *zap.Logger, metrics RouterMetrics) *SubscriptionRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionRouter{
		byID:    make(map[string]*SubscriptionEntry),
		logger:  logger,
		metrics: metrics,
	}
}

// Add registers a listener under its server-assigned subscription id.
func (r *SubscriptionRouter) Add(entry *SubscriptionEntry) {
	r.mu.Lock()
	r.byID[entry.SubscriptionID] = entry
	r.mu.Unlock()
}

// Remove drops the listener for subscriptionID, regardless of whether the
// matching eth_unsubscribe call ever succeeds (§4.6).
func (r *SubscriptionRouter) Remove(subscriptionID string) {
	r.mu.Lock()
	delete(r.byID, subscriptionID)
	r.mu.Unlock()
}

// Dispatch looks up the listener for subscriptionID and invokes it with
// payload, recovering from and counting a panicking listener rather than
// letting it reach the reader goroutine (§4.6).
func (r *SubscriptionRouter) Dispatch(subscriptionID string, payload json.RawMessage) {
	r.mu.RLock()
	entry, ok := r.byID[subscriptionID]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn("notification for unknown subscription", zap.String("subscription_id", subscriptionID))
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("subscription listener panicked", zap.String("subscription_id", subscriptionID), zap.Any("recover", rec))
			if r.metrics != nil {
				r.metrics.OnListenerPanic(subscriptionID)
			}
		}
	}()
	entry.Listener(payload)
}

// Len reports the number of active subscriptions.
func (r *SubscriptionRouter) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Entries returns a snapshot of (method, params) for every active
// subscription, letting a caller replay them manually after a reconnect —
// the router itself never resubscribes automatically (§9).
func (r *SubscriptionRouter) Entries() []*SubscriptionEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*SubscriptionEntry, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	return out
}
