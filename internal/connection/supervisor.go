package connection

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wailsapp/wails/v2/pkg/logger"

	"kharazmi/internal/models"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultProbeTimeout     = 5 * time.Second
	DefaultPingInterval     = 30 * time.Second
	closeGracePeriod        = time.Second
)

var (
	ErrClosed       = errors.New("connection supervisor is closed")
	ErrNotConnected = errors.New("websocket is not connected")
)

// ConnectionError describes a failed connect, reconnect or probe.
type ConnectionError struct {
	Op       string
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("websocket %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

type Options struct {
	// HandshakeTimeout bounds a connect or reconnect attempt.
	HandshakeTimeout time.Duration
	// ProbeTimeout bounds TestConnection.
	ProbeTimeout time.Duration
	// PingInterval is the keep-alive period; zero uses the default, negative disables pings.
	PingInterval time.Duration
	Logger       logger.Logger
	// OnMessage receives inbound frames. It runs on the read goroutine.
	OnMessage func(data []byte)
}

// Supervisor owns the single outbound WebSocket connection and its state
// machine. Network I/O runs on background goroutines; callers observe
// progress through Status or Subscribe.
type Supervisor struct {
	opts   Options
	dialer *websocket.Dialer
	log    logger.Logger

	mu       sync.Mutex
	status   models.ConnectionStatus
	endpoint models.Endpoint
	conn     *websocket.Conn
	attempt  uint64
	cancel   context.CancelFunc
	closed   bool
	pending  []models.ConnectionStatus

	writeMu sync.Mutex

	subsMu  sync.Mutex
	subs    map[int]func(models.ConnectionStatus)
	nextSub int

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wake       chan struct{}
	dispatched chan struct{}
	wg         sync.WaitGroup
}

func NewSupervisor(opts Options) *Supervisor {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = DefaultPingInterval
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewDefaultLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		log:        log,
		status:     models.ConnectionStatus{State: models.StateDisconnected, Since: time.Now()},
		subs:       make(map[int]func(models.ConnectionStatus)),
		baseCtx:    ctx,
		baseCancel: cancel,
		wake:       make(chan struct{}, 1),
		dispatched: make(chan struct{}),
	}
	go s.dispatch()
	return s
}

// Status returns the current state. Safe for concurrent use.
func (s *Supervisor) Status() models.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// currentEndpoint returns the endpoint of the latest accepted connect or reconnect.
func (s *Supervisor) currentEndpoint() models.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

// Subscribe registers fn for every state transition, delivered in order on a
// dedicated goroutine. The returned func removes the subscription.
func (s *Supervisor) Subscribe(fn func(models.ConnectionStatus)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

// Connect starts connecting to endpoint. It is a no-op when the supervisor is
// already connected or connecting there; a different live endpoint is
// handled like Reconnect.
func (s *Supervisor) Connect(endpoint models.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.status.Live() {
		if s.endpoint == endpoint {
			return nil
		}
		s.disconnectLocked("switching to " + endpoint.URL())
		s.startAttemptLocked(endpoint, models.StateReconnecting)
		return nil
	}
	s.startAttemptLocked(endpoint, models.StateConnecting)
	return nil
}

// Reconnect moves the connection to endpoint. A live connection to another
// endpoint is closed first (Disconnected), then the new attempt runs as
// Reconnecting. Any older in-flight attempt is superseded.
func (s *Supervisor) Reconnect(endpoint models.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.status.Live() {
		if s.endpoint == endpoint {
			return nil
		}
		s.disconnectLocked("switching to " + endpoint.URL())
	}
	s.startAttemptLocked(endpoint, models.StateReconnecting)
	return nil
}

// Disconnect closes the connection or cancels a pending attempt.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.State == models.StateDisconnected && s.conn == nil && s.cancel == nil {
		return
	}
	s.disconnectLocked("")
}

// TestConnection dials endpoint with a separate dialer and reports the
// handshake latency. It never changes Status.
func (s *Supervisor) TestConnection(ctx context.Context, endpoint models.Endpoint) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ProbeTimeout)
	defer cancel()

	probe := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: s.opts.ProbeTimeout,
	}

	start := time.Now()
	conn, resp, err := probe.DialContext(ctx, endpoint.URL(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", s.opts.ProbeTimeout, err)
		}
		return 0, &ConnectionError{Op: "test", Endpoint: endpoint.URL(), Err: err}
	}
	latency := time.Since(start)

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "probe"),
		time.Now().Add(closeGracePeriod))
	conn.Close()

	s.log.Debug(fmt.Sprintf("websocket probe %s ok in %s", endpoint.URL(), latency))
	return latency, nil
}

// Send writes a text frame on the live connection.
func (s *Supervisor) Send(data []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Close disconnects, stops all goroutines and flushes pending notifications.
func (s *Supervisor) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.status.State != models.StateDisconnected || s.conn != nil || s.cancel != nil {
		s.disconnectLocked("")
	}
	s.closed = true
	s.mu.Unlock()

	s.baseCancel()
	s.wg.Wait()
	<-s.dispatched
}

// startAttemptLocked bumps the generation so results of older attempts are
// discarded, then dials in the background.
func (s *Supervisor) startAttemptLocked(endpoint models.Endpoint, state models.ConnectionState) {
	s.stopLocked()
	s.attempt++
	id := s.attempt
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.cancel = cancel
	s.endpoint = endpoint
	s.setStatusLocked(state, "")

	s.log.Info(fmt.Sprintf("websocket %s %s", state, endpoint.URL()))

	s.wg.Add(1)
	go s.dial(ctx, id, endpoint)
}

func (s *Supervisor) disconnectLocked(reason string) {
	s.stopLocked()
	s.attempt++
	s.setStatusLocked(models.StateDisconnected, reason)
	s.log.Info("websocket disconnected from " + s.endpoint.URL())
}

// stopLocked cancels the running attempt and closes the connection with a
// normal closure frame. The frame is written off the lock; WriteControl and
// Close are safe to call concurrently with the read loop.
func (s *Supervisor) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.conn != nil {
		conn := s.conn
		s.conn = nil
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(closeGracePeriod))
			conn.Close()
		}()
	}
}

func (s *Supervisor) dial(ctx context.Context, id uint64, endpoint models.Endpoint) {
	defer s.wg.Done()

	dialCtx, cancel := context.WithTimeout(ctx, s.opts.HandshakeTimeout)
	defer cancel()

	conn, resp, err := s.dialer.DialContext(dialCtx, endpoint.URL(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id != s.attempt {
		// superseded by a newer attempt or a disconnect
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		s.cancel = nil
		cerr := &ConnectionError{Op: "connect", Endpoint: endpoint.URL(), Err: err}
		s.setStatusLocked(models.StateFailed, cerr.Error())
		s.log.Error(cerr.Error())
		return
	}

	s.conn = conn
	s.setStatusLocked(models.StateConnected, "")
	s.log.Info("websocket connected to " + endpoint.URL())

	s.wg.Add(1)
	go s.readLoop(ctx, id, conn)
	if s.opts.PingInterval > 0 {
		s.wg.Add(1)
		go s.pingLoop(ctx, conn)
	}
}

func (s *Supervisor) readLoop(ctx context.Context, id uint64, conn *websocket.Conn) {
	defer s.wg.Done()

	if s.opts.PingInterval > 0 {
		deadline := 2 * s.opts.PingInterval
		_ = conn.SetReadDeadline(time.Now().Add(deadline))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(deadline))
		})
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.connectionLost(ctx, id, conn, err)
			return
		}
		if s.opts.OnMessage != nil {
			s.opts.OnMessage(data)
		}
	}
}

func (s *Supervisor) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(closeGracePeriod)); err != nil {
				return
			}
		}
	}
}

// connectionLost reports a dropped connection once. There is no automatic
// retry; the next settings commit or an explicit user action reconnects.
func (s *Supervisor) connectionLost(ctx context.Context, id uint64, conn *websocket.Conn, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != s.attempt || s.conn != conn || ctx.Err() != nil {
		return
	}
	s.stopLocked()

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.setStatusLocked(models.StateDisconnected, "closed by server")
		s.log.Info("websocket closed by server " + s.endpoint.URL())
		return
	}
	cerr := &ConnectionError{Op: "read", Endpoint: s.endpoint.URL(), Err: err}
	s.setStatusLocked(models.StateFailed, "connection lost: "+cerr.Error())
	s.log.Warning(cerr.Error())
}

func (s *Supervisor) setStatusLocked(state models.ConnectionState, reason string) {
	s.status = models.ConnectionStatus{
		State:    state,
		Reason:   reason,
		Endpoint: s.endpoint.URL(),
		Since:    time.Now(),
	}
	if s.endpoint == (models.Endpoint{}) {
		s.status.Endpoint = ""
	}
	s.pending = append(s.pending, s.status)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// dispatch delivers transitions in order without holding the state lock, so
// subscribers may call back into the supervisor.
func (s *Supervisor) dispatch() {
	defer close(s.dispatched)
	for {
		select {
		case <-s.wake:
			s.flush()
		case <-s.baseCtx.Done():
			s.flush()
			return
		}
	}
}

func (s *Supervisor) flush() {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, st := range batch {
		s.subsMu.Lock()
		fns := make([]func(models.ConnectionStatus), 0, len(s.subs))
		for _, fn := range s.subs {
			fns = append(fns, fn)
		}
		s.subsMu.Unlock()
		for _, fn := range fns {
			fn(st)
		}
	}
}
