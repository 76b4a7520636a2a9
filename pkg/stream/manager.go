// Package stream manages websocket streaming sessions: connection lifecycle,
// authentication, subscription tracking, liveness, and reconnection with
// resubscribe.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/lxzan/gws"
	"github.com/rs/zerolog"

	"krakenx/internal/ws"
	"krakenx/pkg/core"
)

// TokenFunc obtains a fresh session token for the authenticated endpoint.
// It is called on every connect, including reconnects, since a token must be
// presented within its validity window.
type TokenFunc func(ctx context.Context) (string, error)

// Config holds the settings for a SessionManager.
type Config struct {
	// URL is the websocket endpoint.
	URL string
	// TokenFunc authenticates the session. Nil means a public session.
	TokenFunc TokenFunc
	// BufferSize is the per-subscription update buffer.
	BufferSize int
	// ReconnectBaseWait is the first reconnect backoff step.
	ReconnectBaseWait time.Duration
	// ReconnectMaxWait caps the reconnect backoff.
	ReconnectMaxWait time.Duration
	// MaxResubAttempts bounds resubscribe retries per subscription after a
	// reconnect before the subscription is marked failed.
	MaxResubAttempts int
	// AckTimeout bounds the wait for a request's reply frame.
	AckTimeout time.Duration
	// PingInterval is the keepalive ping cadence.
	PingInterval time.Duration
	// LivenessTimeout forces a reconnect when no frame at all arrives for
	// this long.
	LivenessTimeout time.Duration
}

// DefaultConfig returns a session config for the given endpoint.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		BufferSize:        256,
		ReconnectBaseWait: 1 * time.Second,
		ReconnectMaxWait:  30 * time.Second,
		MaxResubAttempts:  3,
		AckTimeout:        10 * time.Second,
		PingInterval:      10 * time.Second,
		LivenessTimeout:   30 * time.Second,
	}
}

// SessionManager owns one streaming session. It tracks the connection
// lifecycle, keeps the subscription table, routes updates, and transparently
// reconnects and resubscribes after transport failures. Safe for concurrent
// use.
type SessionManager struct {
	cfg     Config
	state   *ws.State
	handler *sessionHandler
	logger  zerolog.Logger
	subs    *table

	mu                sync.RWMutex
	conn              *gws.Conn
	writeFn           func([]byte) error
	dialFn            func(context.Context) error
	pingFn            func() error
	forceCloseFn      func() error
	dialFailCh        chan error
	token             string
	connectedCh       chan struct{}
	reconnectAttempts int

	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	reqID     atomic.Int64
	pendingMu sync.Mutex
	pending   map[int64]chan *frame

	lastFrame    atomic.Int64
	watchdogOnce sync.Once
}

type sessionHandler struct {
	m *SessionManager
}

// NewSessionManager creates a manager for the configured endpoint. Zero
// config fields fall back to the defaults.
func NewSessionManager(cfg Config) *SessionManager {
	def := DefaultConfig(cfg.URL)
	if cfg.BufferSize == 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.ReconnectBaseWait == 0 {
		cfg.ReconnectBaseWait = def.ReconnectBaseWait
	}
	if cfg.ReconnectMaxWait == 0 {
		cfg.ReconnectMaxWait = def.ReconnectMaxWait
	}
	if cfg.MaxResubAttempts == 0 {
		cfg.MaxResubAttempts = def.MaxResubAttempts
	}
	if cfg.AckTimeout == 0 {
		cfg.AckTimeout = def.AckTimeout
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.LivenessTimeout == 0 {
		cfg.LivenessTimeout = def.LivenessTimeout
	}

	m := &SessionManager{
		cfg:         cfg,
		state:       &ws.State{},
		subs:        newTable(),
		connectedCh: make(chan struct{}),
		closeCh:     make(chan struct{}),
		pending:     make(map[int64]chan *frame),
		logger:      zerolog.Nop(),
	}
	m.state.Store(ws.StateDisconnected)
	m.handler = &sessionHandler{m: m}
	m.dialFn = m.dial
	return m
}

// SetLogger configures the session logger. The default is a no-op logger.
func (m *SessionManager) SetLogger(logger zerolog.Logger) {
	m.logger = logger
}

// State returns the current session state.
func (m *SessionManager) State() ws.SessionState {
	return m.state.Load()
}

// Connect dials the endpoint, authenticates when a TokenFunc is configured,
// and brings the session to the ready state. A token failure is terminal:
// the session is torn down and the error returned, with no retry.
func (m *SessionManager) Connect(ctx context.Context) error {
	if !m.state.CompareAndSwap(ws.StateDisconnected, ws.StateConnecting) {
		current := m.state.Load()
		if current == ws.StateReady {
			return nil
		}
		return fmt.Errorf("invalid state for connect: %s", current)
	}

	if err := m.dialFn(ctx); err != nil {
		m.state.Store(ws.StateDisconnected)
		return err
	}

	if err := m.authenticate(ctx); err != nil {
		m.teardownConn()
		m.state.Store(ws.StateDisconnected)
		return err
	}

	m.state.Store(ws.StateReady)
	m.watchdogOnce.Do(func() {
		m.wg.Add(1)
		go m.watchdog()
	})
	m.resubscribeAll()
	return nil
}

func (m *SessionManager) dial(ctx context.Context) error {
	socket, _, err := gws.NewClient(m.handler, &gws.ClientOption{
		Addr: m.cfg.URL,
	})
	if err != nil {
		return fmt.Errorf("connect websocket: %w", err)
	}

	m.mu.Lock()
	m.conn = socket
	m.writeFn = func(data []byte) error {
		return socket.WriteMessage(gws.OpcodeText, data)
	}
	m.pingFn = func() error {
		return socket.WritePing(nil)
	}
	m.forceCloseFn = func() error {
		return socket.NetConn().Close()
	}
	failed := make(chan error, 1)
	m.dialFailCh = failed
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		socket.ReadLoop()
	}()

	m.mu.RLock()
	connected := m.connectedCh
	m.mu.RUnlock()

	select {
	case <-connected:
		return nil
	case err := <-failed:
		if err == nil {
			err = core.ErrNotConnected
		}
		return fmt.Errorf("connect websocket: %w", err)
	case <-ctx.Done():
		_ = socket.NetConn().Close()
		return ctx.Err()
	case <-m.closeCh:
		_ = socket.NetConn().Close()
		return core.ErrSessionClosed
	}
}

// authenticate fetches a session token when the session is private.
func (m *SessionManager) authenticate(ctx context.Context) error {
	if m.cfg.TokenFunc == nil {
		return nil
	}
	m.state.Store(ws.StateAuthenticating)

	token, err := m.cfg.TokenFunc(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("session token fetch failed")
		return core.NewVenueError(core.ErrorTypeAuthRejected, 0,
			fmt.Sprintf("session token: %v", err))
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *SessionManager) teardownConn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		_ = m.conn.NetConn().Close()
		m.conn = nil
		m.writeFn = nil
		m.pingFn = nil
		m.forceCloseFn = nil
	}
}

// Close shuts the session down. Pending requests fail, subscription channels
// close, and the manager ends in the disconnected state.
func (m *SessionManager) Close() error {
	m.closeOnce.Do(func() {
		m.state.Store(ws.StateClosing)
		close(m.closeCh)
		m.teardownConn()

		m.pendingMu.Lock()
		for id, ch := range m.pending {
			close(ch)
			delete(m.pending, id)
		}
		m.pendingMu.Unlock()

		for _, sub := range m.subs.all() {
			sub.close()
		}

		m.wg.Wait()
		m.state.Store(ws.StateDisconnected)
	})
	return nil
}

// Subscribe opens one (channel, symbol) stream. Symbol may be empty for
// channels without per-symbol fan-out. On a ready session the call blocks
// until the venue acks the subscription or the context expires. Before the
// session is ready the subscription is queued pending and sent automatically
// once ready. Subscribing to an already tracked stream returns the existing
// subscription.
func (m *SessionManager) Subscribe(ctx context.Context, channel, symbol string) (*Subscription, error) {
	if sub, ok := m.subs.get(channel, symbol); ok && sub.State() != SubFailed {
		return sub, nil
	}

	sub := newSubscription(channel, symbol, m.cfg.BufferSize)
	m.subs.put(sub)

	if m.state.Load() != ws.StateReady {
		m.logger.Debug().
			Str("channel", channel).
			Str("symbol", symbol).
			Msg("subscription queued until session is ready")
		return sub, nil
	}

	if err := m.requestSubscribe(ctx, sub); err != nil {
		sub.setState(SubFailed, err)
		m.subs.remove(channel, symbol)
		return nil, err
	}

	sub.setState(SubActive, nil)
	m.logger.Debug().
		Str("channel", channel).
		Str("symbol", symbol).
		Msg("subscription active")
	return sub, nil
}

// Unsubscribe tears one stream down and closes its update channel.
func (m *SessionManager) Unsubscribe(ctx context.Context, channel, symbol string) error {
	sub, ok := m.subs.remove(channel, symbol)
	if !ok {
		return nil
	}
	defer sub.close()

	if m.state.Load() != ws.StateReady {
		return nil
	}

	params := subscribeParams{Channel: channel, Token: m.currentToken()}
	if symbol != "" {
		params.Symbols = []string{symbol}
	}
	_, err := m.call(ctx, "unsubscribe", params)
	return err
}

// Subscriptions returns all current subscriptions.
func (m *SessionManager) Subscriptions() []*Subscription {
	return m.subs.all()
}

func (m *SessionManager) requestSubscribe(ctx context.Context, sub *Subscription) error {
	params := subscribeParams{Channel: sub.Channel, Token: m.currentToken()}
	if sub.Symbol != "" {
		params.Symbols = []string{sub.Symbol}
	}
	_, err := m.call(ctx, "subscribe", params)
	return err
}

// call sends one request frame and waits for its reply.
func (m *SessionManager) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := m.reqID.Add(1)
	replyCh := make(chan *frame, 1)

	m.pendingMu.Lock()
	m.pending[id] = replyCh
	m.pendingMu.Unlock()

	defer func() {
		m.pendingMu.Lock()
		delete(m.pending, id)
		m.pendingMu.Unlock()
	}()

	data, err := sonic.Marshal(request{Method: method, Params: params, ReqID: id})
	if err != nil {
		return nil, err
	}
	if err := m.write(data); err != nil {
		return nil, err
	}

	timer := time.NewTimer(m.cfg.AckTimeout)
	defer timer.Stop()

	select {
	case reply, ok := <-replyCh:
		if !ok {
			return nil, core.ErrSessionClosed
		}
		if reply.Error != "" || (reply.Success != nil && !*reply.Success) {
			msg := reply.Error
			if msg == "" {
				msg = method + " rejected"
			}
			return nil, core.NewVenueError(core.ErrorTypeProtocol, 0, msg)
		}
		return reply.Result, nil
	case <-timer.C:
		return nil, core.NewVenueError(core.ErrorTypeTransport, 0, method+" ack timeout")
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.closeCh:
		return nil, core.ErrSessionClosed
	}
}

func (m *SessionManager) write(data []byte) error {
	m.mu.RLock()
	writeFn := m.writeFn
	m.mu.RUnlock()
	if writeFn == nil {
		return core.ErrNotConnected
	}
	return writeFn(data)
}

func (m *SessionManager) currentToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// handleFrame routes one inbound frame: replies to their waiting callers,
// data to the matching subscription.
func (m *SessionManager) handleFrame(data []byte) {
	m.lastFrame.Store(time.Now().UnixNano())

	f, err := parseFrame(data)
	if err != nil {
		m.logger.Warn().Err(err).Msg("unparseable frame")
		return
	}

	switch {
	case f.isReply():
		m.pendingMu.Lock()
		replyCh, ok := m.pending[f.ReqID]
		if ok {
			delete(m.pending, f.ReqID)
		}
		m.pendingMu.Unlock()
		if ok {
			replyCh <- f
		}
	case f.isHeartbeat():
		// Liveness already recorded above.
	case f.isStatus():
		var entries []statusData
		if err := sonic.Unmarshal(f.Data, &entries); err == nil && len(entries) > 0 {
			m.logger.Info().
				Str("system", entries[0].System).
				Str("api_version", entries[0].APIVersion).
				Msg("venue status")
		}
	case f.Error != "":
		// An unsolicited error frame. When it names a channel the matching
		// subscription fails in isolation; the session itself stays up.
		symbol := dataSymbol(f.Data)
		if sub, ok := m.subs.route(f.Channel, symbol); ok {
			sub.fail(core.NewVenueError(core.ErrorTypeProtocol, 0, f.Error))
			return
		}
		m.logger.Warn().Str("error", f.Error).Msg("venue error frame")
	case f.Channel != "":
		symbol := dataSymbol(f.Data)
		sub, ok := m.subs.route(f.Channel, symbol)
		if !ok {
			m.logger.Debug().
				Str("channel", f.Channel).
				Str("symbol", symbol).
				Msg("update without subscriber")
			return
		}
		if !sub.deliver(f.Data) {
			m.logger.Warn().
				Str("channel", f.Channel).
				Str("symbol", symbol).
				Msg("subscriber buffer full, dropping update")
		}
	}
}

func (h *sessionHandler) OnOpen(socket *gws.Conn) {
	h.m.state.CompareAndSwap(ws.StateConnecting, ws.StateConnected)
	h.m.lastFrame.Store(time.Now().UnixNano())

	h.m.mu.Lock()
	h.m.reconnectAttempts = 0
	h.m.dialFailCh = nil
	select {
	case <-h.m.connectedCh:
	default:
		close(h.m.connectedCh)
	}
	h.m.mu.Unlock()

	h.m.logger.Info().Str("url", h.m.cfg.URL).Msg("websocket connected")
	_ = socket.SetDeadline(time.Now().Add(h.m.cfg.PingInterval + h.m.cfg.LivenessTimeout))
}

func (h *sessionHandler) OnClose(socket *gws.Conn, err error) {
	prev := h.m.state.Load()
	if prev == ws.StateClosing {
		return
	}
	h.m.state.Store(ws.StateDisconnected)

	h.m.mu.Lock()
	h.m.connectedCh = make(chan struct{})
	h.m.writeFn = nil
	h.m.pingFn = nil
	h.m.forceCloseFn = nil
	// A drop before OnOpen wakes the pending dial instead of leaving it
	// waiting on a channel nobody will close.
	if h.m.dialFailCh != nil {
		select {
		case h.m.dialFailCh <- err:
		default:
		}
		h.m.dialFailCh = nil
	}
	h.m.mu.Unlock()

	h.m.logger.Warn().Err(err).Str("url", h.m.cfg.URL).Msg("websocket disconnected")

	// Only an established session reconnects. Drops during connect or
	// authentication surface through the caller instead.
	if prev != ws.StateReady && prev != ws.StateConnected {
		return
	}
	select {
	case <-h.m.closeCh:
	default:
		go h.m.reconnectLoop()
	}
}

func (h *sessionHandler) OnPing(socket *gws.Conn, payload []byte) {
	h.m.lastFrame.Store(time.Now().UnixNano())
	_ = socket.SetDeadline(time.Now().Add(h.m.cfg.PingInterval + h.m.cfg.LivenessTimeout))
	_ = socket.WritePong(nil)
}

func (h *sessionHandler) OnPong(socket *gws.Conn, payload []byte) {
	h.m.lastFrame.Store(time.Now().UnixNano())
	_ = socket.SetDeadline(time.Now().Add(h.m.cfg.PingInterval + h.m.cfg.LivenessTimeout))
}

func (h *sessionHandler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	raw := message.Bytes()
	if len(raw) == 0 {
		return
	}
	// The frame outlives this callback once routed to a subscriber.
	data := make([]byte, len(raw))
	copy(data, raw)

	h.m.handleFrame(data)
}

// reconnectLoop redials with jittered exponential backoff, re-authenticates,
// and replays the subscription table.
func (m *SessionManager) reconnectLoop() {
	if !m.state.CompareAndSwap(ws.StateDisconnected, ws.StateConnecting) {
		return
	}

	for {
		select {
		case <-m.closeCh:
			return
		default:
		}

		m.mu.Lock()
		attempt := m.reconnectAttempts
		m.reconnectAttempts++
		m.mu.Unlock()

		wait := m.backoff(attempt)
		m.logger.Info().
			Dur("wait", wait).
			Int("attempt", attempt+1).
			Msg("reconnecting")

		select {
		case <-time.After(wait):
		case <-m.closeCh:
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := m.dialFn(ctx)
		if err == nil {
			err = m.authenticate(ctx)
			if err != nil {
				cancel()
				// Token failure is terminal: reconnecting cannot help a
				// revoked credential.
				m.teardownConn()
				m.state.Store(ws.StateDisconnected)
				m.logger.Error().Err(err).Msg("reconnect authentication failed, giving up")
				m.failAllSubscriptions(err)
				return
			}
		}
		cancel()

		if err != nil {
			m.logger.Error().Err(err).Int("attempt", attempt+1).Msg("reconnect failed")
			m.state.CompareAndSwap(ws.StateConnected, ws.StateConnecting)
			continue
		}

		m.state.Store(ws.StateReady)
		m.logger.Info().Msg("reconnected")
		m.resubscribeAll()
		return
	}
}

// backoff returns base*2^attempt capped at the maximum, with jitter in the
// upper half of the interval so simultaneous clients spread out.
func (m *SessionManager) backoff(attempt int) time.Duration {
	wait := min(m.cfg.ReconnectBaseWait*time.Duration(1<<uint(attempt)), m.cfg.ReconnectMaxWait)
	half := wait / 2
	if half <= 0 {
		return wait
	}
	return half + time.Duration(rand.Int63n(int64(half)))
}

// resubscribeAll replays every subscription after a reconnect. Each gets a
// bounded number of attempts before it is marked failed; other subscriptions
// proceed regardless.
// failAllSubscriptions marks every tracked subscription failed and closes
// its streams so blocked consumers wake up. Used when the session dies for
// good and no resubscription will follow.
func (m *SessionManager) failAllSubscriptions(err error) {
	for _, sub := range m.subs.all() {
		sub.fail(err)
		sub.close()
	}
}

func (m *SessionManager) resubscribeAll() {
	for _, sub := range m.subs.all() {
		sub.setState(SubPending, nil)

		var err error
		for attempt := 0; attempt < m.cfg.MaxResubAttempts; attempt++ {
			ctx, cancel := context.WithTimeout(context.Background(), m.cfg.AckTimeout)
			err = m.requestSubscribe(ctx, sub)
			cancel()
			if err == nil {
				break
			}
			m.logger.Warn().Err(err).
				Str("channel", sub.Channel).
				Str("symbol", sub.Symbol).
				Int("attempt", attempt+1).
				Msg("resubscribe failed")
		}

		if err != nil {
			sub.setState(SubFailed, err)
			continue
		}
		sub.setState(SubActive, nil)
	}
}

// watchdog enforces liveness: it pings on a fixed cadence and forces a
// reconnect when no frame has arrived within the timeout.
func (m *SessionManager) watchdog() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.closeCh:
			return
		case <-ticker.C:
		}

		state := m.state.Load()
		if state != ws.StateReady && state != ws.StateConnected {
			continue
		}

		m.mu.RLock()
		ping, forceClose := m.pingFn, m.forceCloseFn
		m.mu.RUnlock()
		if ping == nil {
			continue
		}

		last := time.Unix(0, m.lastFrame.Load())
		if time.Since(last) > m.cfg.LivenessTimeout {
			m.logger.Warn().
				Time("last_frame", last).
				Msg("liveness timeout, forcing reconnect")
			_ = forceClose()
			continue
		}

		_ = ping()
	}
}
