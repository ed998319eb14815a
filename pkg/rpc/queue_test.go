package rpc

import (
	"testing"
	"time"
)

type fakeQueueMetrics struct {
	backpressure int
	saturated    int
}

func (f *fakeQueueMetrics) OnBackpressure(method string)                   { f.backpressure++ }
func (f *fakeQueueMetrics) OnSaturation(occupancy, capacity uint64)         { f.saturated++ }

func newTestRequest(id int64, method string) *Request {
	return &Request{ID: id, Method: method, Params: []byte("[]"), Result: make(chan *Result, 1)}
}

func TestSubmissionQueuePushPopPreservesOrder(t *testing.T) {
	q := NewSubmissionQueue(4, 0.5, nil)
	for i := int64(1); i <= 4; i++ {
		if err := q.Push(newTestRequest(i, "m"), time.Second); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	for i := int64(1); i <= 4; i++ {
		req, ok := q.Pop()
		if !ok {
			t.Fatalf("expected request %d, queue empty", i)
		}
		if req.ID != i {
			t.Fatalf("expected FIFO order: got id %d at position %d", req.ID, i)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("expected empty queue after draining all pushes")
	}
}

func TestSubmissionQueueBackpressureWhenFull(t *testing.T) {
	metrics := &fakeQueueMetrics{}
	q := NewSubmissionQueue(2, 0.5, metrics)
	if err := q.Push(newTestRequest(1, "a"), time.Second); err != nil {
		t.Fatalf("push 1: %v", err)
	}
	if err := q.Push(newTestRequest(2, "b"), time.Second); err != nil {
		t.Fatalf("push 2: %v", err)
	}
	err := q.Push(newTestRequest(3, "c"), 20*time.Millisecond)
	if err == nil {
		t.Fatalf("expected backpressure error when queue is full")
	}
	rpcErr, ok := err.(*Error)
	if !ok || rpcErr.Kind != ErrTransport {
		t.Fatalf("expected transport error, got %v (%T)", err, err)
	}
	if metrics.backpressure != 1 {
		t.Fatalf("expected one backpressure callback, got %d", metrics.backpressure)
	}
}

func TestSubmissionQueueReportsSaturation(t *testing.T) {
	metrics := &fakeQueueMetrics{}
	q := NewSubmissionQueue(8, 0.5, metrics)
	for i := int64(1); i <= 5; i++ {
		if err := q.Push(newTestRequest(i, "m"), time.Second); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if metrics.saturated == 0 {
		t.Fatalf("expected at least one saturation callback once occupancy crossed the threshold")
	}
}

func TestSubmissionQueueDrainFailsEveryOutstandingRequest(t *testing.T) {
	q := NewSubmissionQueue(4, 0.5, nil)
	reqs := []*Request{newTestRequest(1, "a"), newTestRequest(2, "b")}
	for _, r := range reqs {
		if err := q.Push(r, time.Second); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	drainErr := transportErr("", "closed")
	q.Drain(drainErr)
	for _, r := range reqs {
		select {
		case res := <-r.Result:
			if res.Err != drainErr {
				t.Fatalf("expected drain error on result channel, got %v", res.Err)
			}
		default:
			t.Fatalf("expected request %d to be resolved by Drain", r.ID)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("expected queue empty after drain, got len %d", q.Len())
	}
}

func TestSubmissionQueueDefaultsToPowerOfTwoWhenSizeInvalid(t *testing.T) {
	q := NewSubmissionQueue(3, 0.5, nil)
	if q.capacity != 4096 {
		t.Fatalf("expected fallback capacity 4096 for non-power-of-two size, got %d", q.capacity)
	}
}
