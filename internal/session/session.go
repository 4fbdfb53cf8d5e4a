package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"linkgrid/go-client/internal/config"
	"linkgrid/go-client/internal/domains/connections"
	connusecase "linkgrid/go-client/internal/domains/connections/usecase"
	"linkgrid/go-client/internal/domains/inbox"
	"linkgrid/go-client/internal/domains/messaging"
	msgusecase "linkgrid/go-client/internal/domains/messaging/usecase"
	"linkgrid/go-client/internal/domains/privacy"
	"linkgrid/go-client/internal/gateway"
	"linkgrid/go-client/internal/metrics"
	"linkgrid/go-client/internal/platform/ratelimiter"
	"linkgrid/go-client/internal/push"
	"linkgrid/go-client/pkg/models"
)

const (
	blocklistSnapshot = "blocklist.bin"
	inboxSnapshot     = "inbox.bin"
	chatsSnapshot     = "chats.bin"
)

type Options struct {
	UserID  string
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Session is the composition root for one authenticated user. It owns the
// gateway client, the domain stores and services, and the push channel; the
// lifetime of all background work is bound to Start/Close, not to any UI
// surface.
type Session struct {
	userID  string
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	token atomic.Value // string

	client        *gateway.Client
	blocklist     *privacy.Guard
	feed          *inbox.Feed
	feedStore     *inbox.FeedStore
	feedMu        sync.Mutex
	chatStore     *messaging.ChatStore
	chatSnapshots *messaging.SnapshotStore
	typing        *messaging.TypingTracker
	connState     *connections.StateStore
	syncer        *push.Synchronizer

	Connections *connusecase.Service
	Messaging   *msgusecase.Service
	inbound     *msgusecase.InboundService

	started bool
}

func Open(opts Options) (*Session, error) {
	if opts.UserID == "" {
		return nil, fmt.Errorf("session user id is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mtr := opts.Metrics
	if mtr == nil {
		mtr = metrics.New()
	}

	s := &Session{
		userID:  opts.UserID,
		cfg:     opts.Config,
		logger:  logger,
		metrics: mtr,
	}
	s.token.Store("")

	client, err := gateway.NewClient(gateway.Config{
		BaseURL:     opts.Config.Gateway.BaseURL,
		Token:       s.currentToken,
		Timeout:     opts.Config.Gateway.Timeout,
		ReadRetries: opts.Config.Gateway.ReadRetries,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	s.client = client

	if err := s.bootstrapStores(); err != nil {
		return nil, err
	}
	if err := s.buildServices(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) bootstrapStores() error {
	storage := s.cfg.Storage

	blockStore := privacy.NewBlocklistStore()
	blockStore.Configure(storage.SnapshotPath(blocklistSnapshot), storage.Secret)
	blocklist, err := blockStore.Bootstrap()
	if err != nil {
		return fmt.Errorf("bootstrap blocklist: %w", err)
	}
	s.blocklist = privacy.NewGuard(blocklist, blockStore)

	s.feedStore = inbox.NewFeedStore()
	s.feedStore.Configure(storage.SnapshotPath(inboxSnapshot), storage.Secret)
	feed, err := s.feedStore.Bootstrap()
	if err != nil {
		return fmt.Errorf("bootstrap notification feed: %w", err)
	}
	s.feed = feed
	s.metrics.UnreadNotices.Set(float64(feed.UnreadCount()))

	s.chatStore = messaging.NewChatStore(s.userID)
	s.chatSnapshots = messaging.NewSnapshotStore()
	s.chatSnapshots.Configure(storage.SnapshotPath(chatsSnapshot), storage.Secret)
	if err := s.chatSnapshots.Bootstrap(s.chatStore); err != nil {
		return fmt.Errorf("bootstrap chat state: %w", err)
	}

	s.connState = connections.NewStateStore(s.userID)
	return nil
}

func (s *Session) buildServices() error {
	s.typing = messaging.NewTypingTracker(s.cfg.Typing.Expiry, nil)

	s.Connections = connusecase.NewService(connusecase.ServiceDeps{
		LocalUserID: s.userID,
		Gateway:     s.client,
		State:       s.connState,
		Blocklist:   s.blocklist,
		Notify:      s.appendNotification,
		Logger:      s.logger,
	})

	s.inbound = msgusecase.NewInboundService(msgusecase.InboundDeps{
		LocalUserID: s.userID,
		Store:       s.chatStore,
		Typing:      s.typing,
		IsBlocked:   s.blocklist.Contains,
		Persist:     s.persistChats,
		RecordEvent: func(eventType string) {
			s.metrics.EventsApplied.WithLabelValues(eventType).Inc()
		},
		Logger: s.logger,
	})

	syncer, err := push.NewSynchronizer(push.Config{
		URL:         s.cfg.Push.URL,
		Token:       s.currentToken,
		BackoffBase: s.cfg.Push.ReconnectBackoffBase,
		BackoffMax:  s.cfg.Push.ReconnectBackoffMax,
		MaxAttempts: s.cfg.Push.ReconnectMaxAttempts,
		PingPeriod:  s.cfg.Push.PingPeriod,
		Logger:      s.logger,
	}, push.Deps{
		Handle:      s.inbound.HandleEvent,
		OnConnected: s.resyncAfterConnect,
		OnStateChange: func(state push.State) {
			s.metrics.PushState.Set(float64(state))
		},
		OnReconnectAttempt: s.metrics.ReconnectAttempts.Inc,
	})
	if err != nil {
		return err
	}
	s.syncer = syncer

	s.Messaging = msgusecase.NewService(msgusecase.ServiceDeps{
		LocalUserID: s.userID,
		Gateway:     s.client,
		Store:       s.chatStore,
		Typing:      s.typing,
		IsBlocked:   s.blocklist.Contains,
		PublishTyping: func(chatID string, typing bool) error {
			return s.syncer.SendTyping(chatID, s.userID, typing)
		},
		TypingThrottle: ratelimiter.New(
			s.cfg.Typing.PublishRPS, s.cfg.Typing.PublishBurst, 0),
		Persist:           s.persistChats,
		RecordSendFailure: s.metrics.SendFailures.Inc,
		Logger:            s.logger,
	})
	return nil
}

// Start binds the push channel to the authenticated lifetime. The token is
// consulted per dial and per HTTP request, so a later refresh via SetToken
// needs no restart.
func (s *Session) Start(ctx context.Context, token string) {
	if s.started {
		return
	}
	s.started = true
	s.SetToken(token)
	s.syncer.Start(ctx)
}

func (s *Session) SetToken(token string) {
	s.token.Store(token)
}

func (s *Session) currentToken() string {
	v, _ := s.token.Load().(string)
	return v
}

// Close tears down background work and flushes snapshots.
func (s *Session) Close() {
	if s.syncer != nil && s.started {
		s.syncer.Close()
	}
	if s.typing != nil {
		s.typing.Close()
	}
	s.persistChats()
	s.persistFeed()
	s.logger.Info("session closed")
}

func (s *Session) PushState() push.State {
	return s.syncer.State()
}

// resyncAfterConnect runs on every successful (re)connect, before events
// are pumped. Missed push events are not replayed by the server, so both
// domains re-fetch authoritative state to cover the gap.
func (s *Session) resyncAfterConnect(ctx context.Context) {
	s.metrics.Resyncs.Inc()
	if err := s.Connections.Resync(ctx); err != nil {
		s.logger.Warn("connection resync failed", "error", err)
	}
	if err := s.Messaging.Resync(ctx); err != nil {
		s.logger.Warn("messaging resync failed", "error", err)
	}
}

// Notifications is the append-only feed, newest first.
func (s *Session) Notifications() []models.Notification {
	return s.feed.List()
}

func (s *Session) UnreadNotificationCount() int {
	return s.feed.UnreadCount()
}

func (s *Session) MarkNotificationsRead(ids []string) int {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	changed := s.feed.MarkRead(ids)
	if changed > 0 {
		s.persistFeed()
	}
	s.metrics.UnreadNotices.Set(float64(s.feed.UnreadCount()))
	return changed
}

func (s *Session) MarkAllNotificationsRead() int {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	changed := s.feed.MarkAllRead()
	if changed > 0 {
		s.persistFeed()
	}
	s.metrics.UnreadNotices.Set(0)
	return changed
}

func (s *Session) appendNotification(n models.Notification) {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	s.feed.Append(n)
	s.metrics.UnreadNotices.Set(float64(s.feed.UnreadCount()))
	s.persistFeed()
}

func (s *Session) persistFeed() {
	if err := s.feedStore.Persist(s.feed); err != nil {
		s.logger.Warn("notification feed persist failed", "error", err)
	}
}

func (s *Session) persistChats() {
	if err := s.chatSnapshots.Persist(s.chatStore); err != nil {
		s.logger.Warn("chat snapshot persist failed", "error", err)
	}
}
