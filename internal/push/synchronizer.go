package push

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"linkgrid/go-client/pkg/models"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

var ErrNotConnected = errors.New("push channel is not connected")

const (
	DefaultBackoffBase = time.Second
	DefaultBackoffMax  = 30 * time.Second
	defaultPingPeriod  = 25 * time.Second
	writeTimeout       = 10 * time.Second
)

// Conn is the slice of a websocket connection the synchronizer uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc opens one push channel connection.
type DialFunc func(ctx context.Context, url string, header http.Header) (Conn, error)

func GorillaDialer(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type Config struct {
	URL   string
	Token func() string
	// BackoffBase is the first reconnect delay; each consecutive failure
	// doubles it up to BackoffMax. One successful connection resets the
	// schedule to the base.
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// MaxAttempts caps consecutive failed connection attempts; zero means
	// retry forever.
	MaxAttempts uint64
	PingPeriod  time.Duration
	Dial        DialFunc
	Logger      *slog.Logger
}

type Deps struct {
	// Handle is invoked for every decoded inbound event.
	Handle func(models.PushEvent)
	// OnConnected runs after every successful (re)connect, before events
	// flow. This is where the session schedules a resync for the gap.
	OnConnected func(ctx context.Context)
	// OnStateChange observes the connection state machine.
	OnStateChange func(state State)
	// OnReconnectAttempt counts dial attempts.
	OnReconnectAttempt func()
}

// Synchronizer owns the persistent push channel. It runs one background
// loop per Start, reconnects with exponential backoff, and feeds every
// inbound event through Deps.Handle. Outbound traffic is limited to the
// ephemeral typing events.
type Synchronizer struct {
	cfg  Config
	deps Deps

	state  atomic.Int32
	connMu sync.Mutex
	conn   Conn

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewSynchronizer(cfg Config, deps Deps) (*Synchronizer, error) {
	if cfg.URL == "" {
		return nil, errors.New("push channel url is required")
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = DefaultBackoffMax
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = defaultPingPeriod
	}
	if cfg.Dial == nil {
		cfg.Dial = GorillaDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Token == nil {
		cfg.Token = func() string { return "" }
	}
	if deps.Handle == nil {
		return nil, errors.New("push event handler is required")
	}
	if deps.OnConnected == nil {
		deps.OnConnected = func(context.Context) {}
	}
	if deps.OnStateChange == nil {
		deps.OnStateChange = func(State) {}
	}
	if deps.OnReconnectAttempt == nil {
		deps.OnReconnectAttempt = func() {}
	}
	return &Synchronizer{cfg: cfg, deps: deps, done: make(chan struct{})}, nil
}

func (s *Synchronizer) State() State {
	return State(s.state.Load())
}

// Start launches the connection loop. It returns immediately; lifecycle is
// bound to ctx and Close.
func (s *Synchronizer) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// Close tears the channel down and waits for the loop to exit. Calling
// Close on a synchronizer that was never started is a no-op.
func (s *Synchronizer) Close() {
	if s.cancel == nil {
		return
	}
	s.once.Do(func() {
		s.cancel()
		s.closeConn()
	})
	<-s.done
}

// SendTyping publishes the local typing state for a chat. Best effort: when
// the channel is down the event is dropped, never queued.
func (s *Synchronizer) SendTyping(chatID, userID string, typing bool) error {
	eventType := models.PushEventTypingStart
	if !typing {
		eventType = models.PushEventTypingStop
	}
	payload, err := json.Marshal(models.PushEvent{
		Type:      eventType,
		ChatID:    chatID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if s.State() != StateConnected {
		return ErrNotConnected
	}
	return s.writeFrame(websocket.TextMessage, payload)
}

// writeFrame is the single outbound path. Gorilla connections tolerate only
// one concurrent writer, so typing events and keepalive pings both serialize
// through connMu.
func (s *Synchronizer) writeFrame(messageType int, payload []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	return s.conn.WriteMessage(messageType, payload)
}

func (s *Synchronizer) run(ctx context.Context) {
	defer close(s.done)
	defer s.setState(StateDisconnected)

	schedule := s.newBackoff()
	var failures uint64

	for {
		if ctx.Err() != nil {
			return
		}
		s.setState(StateConnecting)
		s.deps.OnReconnectAttempt()

		conn, err := s.dial(ctx)
		if err != nil {
			failures++
			if s.cfg.MaxAttempts > 0 && failures >= s.cfg.MaxAttempts {
				s.cfg.Logger.Error("push channel gave up",
					"attempts", failures, "error", err)
				return
			}
			delay := schedule.NextBackOff()
			s.cfg.Logger.Warn("push channel connect failed",
				"attempt", failures, "retry_in", delay, "error", err)
			s.setState(StateDisconnected)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		failures = 0
		schedule.Reset()
		s.setConn(conn)
		s.setState(StateConnected)
		s.cfg.Logger.Info("push channel connected")
		s.deps.OnConnected(ctx)

		s.readLoop(ctx, conn)
		s.closeConn()
		s.setState(StateDisconnected)
		if ctx.Err() != nil {
			return
		}
		s.cfg.Logger.Warn("push channel lost, reconnecting")
	}
}

func (s *Synchronizer) dial(ctx context.Context) (Conn, error) {
	header := http.Header{}
	if token := s.cfg.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return s.cfg.Dial(ctx, s.cfg.URL, header)
}

// readLoop pumps inbound events until the connection breaks or ctx ends.
func (s *Synchronizer) readLoop(ctx context.Context, conn Conn) {
	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go s.pingLoop(pingCtx)

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.cfg.Logger.Debug("push channel read failed", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var event models.PushEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			s.cfg.Logger.Warn("dropping malformed push event", "error", err)
			continue
		}
		s.deps.Handle(event)
	}
}

func (s *Synchronizer) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writeFrame(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Synchronizer) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.BackoffBase
	bo.MaxInterval = s.cfg.BackoffMax
	bo.Multiplier = 2
	// Deterministic doubling; the delay must strictly increase per failure.
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func (s *Synchronizer) setState(state State) {
	if State(s.state.Swap(int32(state))) != state {
		s.deps.OnStateChange(state)
	}
}

func (s *Synchronizer) setConn(conn Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

func (s *Synchronizer) closeConn() {
	s.connMu.Lock()
	if s.conn != nil {
		deadline := time.Now().Add(writeTimeout)
		if wsConn, ok := s.conn.(*websocket.Conn); ok {
			_ = wsConn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		}
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()
}
