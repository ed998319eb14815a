package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ConnectionState is the four-state lifecycle of §4.4.
type ConnectionState int32

const (
	StateConnecting ConnectionState = iota
	StateConnected
	StateReconnecting
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var errClosedByCaller = errors.New("rpc: connection closed by caller")

// Connection is a single logical WebSocket carrying JSON-RPC traffic: a
// supervising goroutine (run) dials and redials the socket, and while a
// socket is up it is served by three goroutines: a writer draining the
// submission queue, a frame reader, and an idle-timer loop. Callers submit
// through Submit, Subscribe, and Unsubscribe from any goroutine.
type Connection struct {
	cfg     Config
	logger  *zap.Logger
	metrics *Metrics
	dialer  *websocket.Dialer
	connID  string

	state    int32 // atomic ConnectionState
	attempts int32 // atomic, reconnect attempts since the last successful handshake

	connMu sync.Mutex
	conn   *websocket.Conn

	queue      *SubmissionQueue
	correlator *RequestCorrelator
	router     *SubscriptionRouter
	idle       *IdleMonitor

	closeCh   chan struct{}
	closeOnce sync.Once
	doneCh    chan struct{}
}

// Dial validates cfg, builds the supporting components, and starts the
// connection's event loop in the background. The returned Connection
// begins in Connecting and transitions to Connected or Reconnecting as
// soon as the first handshake settles.
func Dial(cfg Config, logger *zap.Logger, metrics *Metrics) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Connection{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.ConnectTimeout,
			TLSClientConfig:  cfg.TLSConfig,
		},
		connID:  uuid.NewString(),
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	c.correlator = NewRequestCorrelator(metrics, cfg.MaxPendingRequests)
	c.router = NewSubscriptionRouter(logger, metrics)
	c.queue = NewSubmissionQueue(cfg.RingBufferSize, cfg.RingBufferSaturationThreshold, metrics)
	c.idle = NewIdleMonitor(cfg.WriteIdleTimeout, cfg.ReadIdleTimeout)
	c.setState(StateConnecting)

	go c.run()
	return c, nil
}

func (c *Connection) setState(s ConnectionState) {
	atomic.StoreInt32(&c.state, int32(s))
	if c.metrics != nil {
		c.metrics.SetState(s)
	}
}

// State returns the current lifecycle state.
func (c *Connection) State() ConnectionState {
	return ConnectionState(atomic.LoadInt32(&c.state))
}

func (c *Connection) setConn(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
}

func (c *Connection) clearConn() {
	c.connMu.Lock()
	c.conn = nil
	c.connMu.Unlock()
}

// run is the connection's supervising loop: dial, serve until failure,
// back off, repeat — until the attempt budget is exhausted or Close is
// called (§4.4).
func (c *Connection) run() {
	defer close(c.doneCh)

	for {
		select {
		case <-c.closeCh:
			c.transitionClosed()
			return
		default:
		}

		conn, err := c.dial()
		if err != nil {
			c.logger.Warn("dial failed", zap.Error(err), zap.String("conn_id", c.connID))
			c.correlator.FailAll(transportErrWrap("", err, "dial failed"))
			if !c.enterReconnecting() {
				c.transitionClosed()
				return
			}
			continue
		}

		atomic.StoreInt32(&c.attempts, 0)
		c.setConn(conn)
		c.setState(StateConnected)
		c.logger.Info("connection established", zap.String("conn_id", c.connID), zap.String("url", c.cfg.URL))

		reason := c.serve(conn)
		c.clearConn()

		if errors.Is(reason, errClosedByCaller) {
			c.transitionClosed()
			return
		}

		c.logger.Warn("connection lost", zap.Error(reason), zap.String("conn_id", c.connID))
		c.correlator.FailAll(transportErrWrap("", reason, "connection lost"))
		if !c.enterReconnecting() {
			c.transitionClosed()
			return
		}
	}
}

// enterReconnecting bumps the attempt counter, transitions to
// Reconnecting, and sleeps the backoff delay of §4.4
// (min(1000·2^(k-1), 32000) ms). Returns false once the attempt budget is
// exhausted or Close fires during the wait.
func (c *Connection) enterReconnecting() bool {
	attempt := atomic.AddInt32(&c.attempts, 1)
	c.setState(StateReconnecting)
	if c.metrics != nil {
		c.metrics.OnReconnectAttempt()
	}
	if int(attempt) > c.cfg.MaxReconnectAttempts {
		c.logger.Error("reconnect attempts exhausted, giving up", zap.String("conn_id", c.connID), zap.Int32("attempts", attempt))
		if c.metrics != nil {
			c.metrics.OnReconnectGivenUp()
		}
		if c.cfg.OnReconnectExhausted != nil {
			c.cfg.OnReconnectExhausted()
		}
		return false
	}

	delay := backoffDelay(int(attempt))
	select {
	case <-time.After(delay):
		return true
	case <-c.closeCh:
		return false
	}
}

// backoffDelay implements min(1000*2^(k-1), 32000) ms for 1-indexed attempt k.
func backoffDelay(k int) time.Duration {
	if k < 1 {
		k = 1
	}
	if k > 6 {
		// 1000*2^5 already reaches 32000; avoid overflowing the shift for
		// pathologically high attempt counts.
		return 32000 * time.Millisecond
	}
	ms := 1000 * (1 << uint(k-1))
	if ms > 32000 {
		ms = 32000
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Connection) dial() (*websocket.Conn, error) {
	header := http.Header{}
	if err := applyAuth(header, c.cfg.Auth); err != nil {
		return nil, err
	}
	conn, _, err := c.dialer.Dial(c.cfg.URL, header)
	if err != nil {
		return nil, transportErrWrap("dial", err, "failed to connect to %s", c.cfg.URL)
	}
	return conn, nil
}

// serve runs the writer, reader, and idle-monitor loops for one physical
// socket until one of them fails or Close is requested, then tears the
// socket down and returns the reason.
func (c *Connection) serve(conn *websocket.Conn) error {
	writerDone := make(chan error, 1)
	readerDone := make(chan error, 1)
	stop := make(chan struct{})

	go func() { writerDone <- c.writerLoop(conn, stop) }()
	go func() { readerDone <- c.readerLoop(conn, stop) }()
	go c.idleLoop(conn, stop)

	var reason error
	select {
	case reason = <-writerDone:
	case reason = <-readerDone:
	case <-c.closeCh:
		reason = errClosedByCaller
	}
	close(stop)
	conn.Close()
	return reason
}

func (c *Connection) writerLoop(conn *websocket.Conn, stop <-chan struct{}) error {
	sig := c.queue.Signal()
	for {
		select {
		case <-stop:
			return nil
		case <-sig:
		case <-time.After(200 * time.Millisecond):
		}

		for {
			req, ok := c.queue.Pop()
			if !ok {
				break
			}
			if c.metrics != nil {
				c.metrics.SetQueueDepth(c.queue.Len())
			}
			frame, err := buildRequestFrame(req.ID, req.Method, req.Params)
			if err != nil {
				if entry, ok := c.correlator.removeIfPresent(req.ID); ok {
					entry.timer.Stop()
					entry.Result <- &Result{Err: protocolErr("failed to build request frame for %s: %v", req.Method, err)}
				}
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				if entry, ok := c.correlator.removeIfPresent(req.ID); ok {
					entry.timer.Stop()
					entry.Result <- &Result{Err: transportErrWrap(req.Method, err, "write failed")}
				}
				return err
			}
			c.idle.MarkWrite()
		}
	}
}

func (c *Connection) readerLoop(conn *websocket.Conn, stop <-chan struct{}) error {
	conn.SetPongHandler(func(string) error {
		c.idle.MarkRead()
		return nil
	})
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage {
			continue // binary frames ignored, per §6
		}
		if int64(len(data)) > c.cfg.MaxFrameSize {
			c.logger.Warn("dropping frame exceeding max_frame_size", zap.Int("size", len(data)), zap.Int64("limit", c.cfg.MaxFrameSize))
			continue
		}
		c.idle.MarkRead()
		c.dispatch(data)
	}
}

func (c *Connection) idleLoop(conn *websocket.Conn, stop <-chan struct{}) {
	interval := c.idle.TickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			if c.idle.ReadIdleExpired(now) {
				c.logger.Warn("read idle timeout exceeded, closing connection", zap.String("conn_id", c.connID))
				conn.Close()
				return
			}
			if c.idle.WriteIdleExpired(now) {
				if err := conn.WriteControl(websocket.PingMessage, nil, now.Add(5*time.Second)); err == nil {
					c.idle.MarkWrite()
				}
			}
		}
	}
}

// dispatch classifies an inbound text frame and routes it to the
// correlator (responses) or the subscription router (notifications), per
// §4.5. Frames that fail to parse are logged and counted, never fatal.
func (c *Connection) dispatch(data []byte) {
	isResponse, isNotification, err := classifyFrame(data)
	if err != nil {
		c.logger.Warn("unparseable frame", zap.Error(err))
		if c.metrics != nil {
			c.metrics.OnProtocolError()
		}
		return
	}

	switch {
	case isResponse:
		var resp responseFrame
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Warn("malformed response frame", zap.Error(err))
			if c.metrics != nil {
				c.metrics.OnProtocolError()
			}
			return
		}
		id, err := strconv.ParseInt(resp.ID, 10, 64)
		if err != nil {
			c.logger.Warn("response id is not numeric", zap.String("id", resp.ID))
			if c.metrics != nil {
				c.metrics.OnProtocolError()
			}
			return
		}
		c.correlator.Resolve(id, resp.Result, resp.Error)

	case isNotification:
		var note notificationFrame
		if err := json.Unmarshal(data, &note); err != nil {
			c.logger.Warn("malformed notification frame", zap.Error(err))
			if c.metrics != nil {
				c.metrics.OnProtocolError()
			}
			return
		}
		c.router.Dispatch(note.Params.Subscription, note.Params.Result)

	default:
		c.logger.Warn("frame is neither a response nor a notification")
		if c.metrics != nil {
			c.metrics.OnProtocolError()
		}
	}
}

func (c *Connection) transitionClosed() {
	c.setState(StateClosed)
	c.correlator.FailAll(transportErr("", "provider closed"))
	c.queue.Drain(transportErr("", "provider closed"))
}

// Submit accepts method/params onto the submission queue and blocks until
// the result slot resolves, the request times out, the connection fails,
// or ctx is cancelled. Caller-side cancellation via ctx is not a
// protocol-level cancel (JSON-RPC has none); the eventual server response,
// if any, is counted as orphaned (§5).
func (c *Connection) Submit(ctx context.Context, method string, params []byte, timeout time.Duration) (json.RawMessage, error) {
	switch c.State() {
	case StateReconnecting, StateClosed:
		return nil, transportErr(method, "cannot submit while connection is %s", c.State())
	}

	id := c.correlator.NextID()
	resultCh := make(chan *Result, 1)
	entry := &PendingEntry{ID: id, Method: method, Result: resultCh, CreatedAt: time.Now()}
	if err := c.correlator.Register(entry, timeout); err != nil {
		return nil, err
	}

	req := &Request{ID: id, Method: method, Params: params, Result: resultCh}
	if err := c.queue.Push(req, c.cfg.BackpressureTimeout); err != nil {
		c.correlator.Cancel(id)
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.OnRequestSubmitted()
	}

	start := time.Now()
	select {
	case res := <-resultCh:
		if c.metrics != nil {
			c.metrics.OnRequestLatency(time.Since(start))
		}
		return res.Raw, res.Err
	case <-ctx.Done():
		c.correlator.Cancel(id)
		return nil, ctx.Err()
	}
}

// Subscribe sends an eth_subscribe-style request, waits for the scalar
// subscription id, registers listener under it, and returns the id (§4.6).
func (c *Connection) Subscribe(ctx context.Context, method string, params []byte, listener Listener) (string, error) {
	raw, err := c.Submit(ctx, method, params, c.cfg.DefaultRequestTimeout)
	if err != nil {
		return "", err
	}
	var subID string
	if err := json.Unmarshal(raw, &subID); err != nil {
		return "", protocolErr("subscribe response for %s is not a scalar subscription id: %v", method, err)
	}
	c.router.Add(&SubscriptionEntry{SubscriptionID: subID, Method: method, Params: params, Listener: listener})
	return subID, nil
}

// Unsubscribe sends unsubscribeMethod with subscriptionID as its sole
// parameter and removes the listener regardless of the response outcome.
func (c *Connection) Unsubscribe(ctx context.Context, unsubscribeMethod, subscriptionID string) error {
	params, _ := json.Marshal([]string{subscriptionID})
	_, err := c.Submit(ctx, unsubscribeMethod, params, c.cfg.DefaultRequestTimeout)
	c.router.Remove(subscriptionID)
	return err
}

// Close transitions the connection to Closed, failing every pending
// request and queued submission, and blocks until the event loop exits.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() { close(c.closeCh) })
	<-c.doneCh
	return nil
}

// ConnectionStats is a point-in-time snapshot of the connection's internal
// counters, exposed through Client.Stats().
type ConnectionStats struct {
	State               ConnectionState
	PendingRequests     int
	ActiveSubscriptions int
	QueueDepth          int
	ReconnectAttempts   int
}

// Stats returns a snapshot of the connection's current counters.
func (c *Connection) Stats() ConnectionStats {
	return ConnectionStats{
		State:               c.State(),
		PendingRequests:     c.correlator.Len(),
		ActiveSubscriptions: c.router.Len(),
		QueueDepth:          c.queue.Len(),
		ReconnectAttempts:   int(atomic.LoadInt32(&c.attempts)),
	}
}
