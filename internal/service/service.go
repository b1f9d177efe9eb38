package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/config"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/kafka"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/registry"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/snapshot"
	pkglog "github.com/weiawesome/wes-io-live/live-room-service/pkg/log"
)

// ErrStopped is returned by operations submitted after Stop.
var ErrStopped = errors.New("live service stopped")

// Notifier delivers events to connections. Delivery is fire-and-forget.
type Notifier interface {
	SendToClient(clientID string, message interface{}) error
	BroadcastToRoom(roomID string, message interface{}, exclude string) error
	BroadcastAll(message interface{}) error
	JoinRoom(clientID, roomID string)
	LeaveRoom(clientID, roomID string)
	IsConnected(clientID string) bool
}

// Config holds live service configuration.
type Config struct {
	GuestCapacity    int
	GracePeriod      time.Duration // Host reconnection window before the session is released
	RestoreGrace     time.Duration // Window for a restored room's host to come back after restart
	ChatInterval     time.Duration
	ReactionInterval time.Duration
	GiftsEnabled     bool
	InitialBalance   int64
	LeaderboardSize  int
	FollowEnabled    bool
	Catalog          domain.GiftCatalog
	SnapshotTimeout  time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		GuestCapacity:    4,
		GracePeriod:      15 * time.Second,
		RestoreGrace:     60 * time.Second,
		ChatInterval:     1200 * time.Millisecond,
		ReactionInterval: 200 * time.Millisecond,
		GiftsEnabled:     true,
		InitialBalance:   1000,
		LeaderboardSize:  5,
		FollowEnabled:    true,
		Catalog:          domain.DefaultGiftCatalog(),
		SnapshotTimeout:  5 * time.Second,
	}
}

// ConfigFrom maps the loaded service configuration.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	c.GuestCapacity = cfg.Room.GuestCapacity
	c.GracePeriod = cfg.Room.GracePeriod
	c.RestoreGrace = cfg.Room.RestoreGrace
	c.ChatInterval = cfg.Chat.MinInterval
	c.ReactionInterval = cfg.Chat.ReactionInterval
	c.GiftsEnabled = cfg.Gifts.Enabled
	c.InitialBalance = cfg.Gifts.InitialBalance
	c.LeaderboardSize = cfg.Gifts.LeaderboardSize
	c.FollowEnabled = cfg.Follow.Enabled
	c.SnapshotTimeout = cfg.Snapshot.Timeout
	if len(cfg.Gifts.Catalog) > 0 {
		c.Catalog = make(domain.GiftCatalog, len(cfg.Gifts.Catalog))
		for _, item := range cfg.Gifts.Catalog {
			giftType := strings.ToLower(strings.TrimSpace(item.Type))
			if giftType == "" || item.UnitCost <= 0 {
				continue
			}
			g := domain.Gift{Type: giftType, UnitCost: item.UnitCost, Symbol: item.Symbol}
			c.Catalog[g.Type] = g
		}
		if len(c.Catalog) == 0 {
			c.Catalog = domain.DefaultGiftCatalog()
		}
	}
	return c
}

type task struct {
	fn   func()
	done chan struct{}
}

// LiveService owns every Room and Participant. All state is touched only by
// the executor goroutine; public methods submit closures and wait for them.
type LiveService struct {
	cfg      Config
	rooms    *registry.Registry
	notifier Notifier
	clock    clock.Clock
	store    snapshot.Store
	persist  *persister

	participants map[string]*domain.Participant
	timers       map[string]*clock.Timer // roomID -> grace timer
	lobbyDirty   bool

	tasks   chan task
	stopCh  chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	started bool
	ctx     context.Context
}

// NewLiveService creates a LiveService. store and producer may be nil.
func NewLiveService(
	cfg Config,
	notifier Notifier,
	store snapshot.Store,
	producer kafka.LiveEventProducer,
	clk clock.Clock,
) *LiveService {
	if clk == nil {
		clk = clock.New()
	}
	if store == nil {
		store = snapshot.NopStore{}
	}
	if cfg.GuestCapacity < 1 {
		cfg.GuestCapacity = 1
	}
	if cfg.Catalog == nil {
		cfg.Catalog = domain.DefaultGiftCatalog()
	}
	return &LiveService{
		cfg:          cfg,
		rooms:        registry.New(),
		notifier:     notifier,
		clock:        clk,
		store:        store,
		persist:      newPersister(store, producer, cfg.SnapshotTimeout),
		participants: make(map[string]*domain.Participant),
		timers:       make(map[string]*clock.Timer),
		tasks:        make(chan task),
		stopCh:       make(chan struct{}),
		ctx:          context.Background(),
	}
}

// Start launches the executor and persister, then restores saved rooms.
func (s *LiveService) Start(ctx context.Context) error {
	s.ctx = pkglog.WithLogger(context.Background(), pkglog.Ctx(ctx))
	s.started = true

	s.wg.Add(1)
	go s.run()
	go s.persist.run()

	if err := s.restore(ctx); err != nil {
		return fmt.Errorf("failed to restore rooms: %w", err)
	}

	l := pkglog.Ctx(ctx)
	l.Info().
		Int("guest_capacity", s.cfg.GuestCapacity).
		Dur("grace_period", s.cfg.GracePeriod).
		Bool("gifts", s.cfg.GiftsEnabled).
		Bool("follow", s.cfg.FollowEnabled).
		Msg("live service started")
	return nil
}

// Stop halts the executor, cancels timers and drains pending persistence.
func (s *LiveService) Stop() error {
	if !s.started {
		return nil
	}
	s.once.Do(func() {
		_ = s.exec(func() {
			for roomID, t := range s.timers {
				t.Stop()
				delete(s.timers, roomID)
			}
		})
		close(s.stopCh)
		s.wg.Wait()
		s.persist.close()
	})
	return nil
}

func (s *LiveService) run() {
	defer s.wg.Done()
	for {
		select {
		case t := <-s.tasks:
			s.runTask(t)
		case <-s.stopCh:
			return
		}
	}
}

func (s *LiveService) runTask(t task) {
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			l := pkglog.Ctx(s.ctx)
			l.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("room task panicked")
		}
	}()
	t.fn()
	s.flushLobby()
}

// exec runs fn on the executor and waits for it to finish.
func (s *LiveService) exec(fn func()) error {
	t := task{fn: fn, done: make(chan struct{})}
	select {
	case s.tasks <- t:
	case <-s.stopCh:
		return ErrStopped
	}
	<-t.done
	return nil
}

func (s *LiveService) nowMs() int64 {
	return s.clock.Now().UnixMilli()
}

// participant returns the record for connID, creating it for unknown connections.
func (s *LiveService) participant(connID string) *domain.Participant {
	p, ok := s.participants[connID]
	if !ok {
		p = domain.NewParticipant(connID, s.cfg.InitialBalance)
		s.participants[connID] = p
	}
	return p
}

// member returns the participant and its room, or false when not in a room.
func (s *LiveService) member(connID string) (*domain.Participant, *domain.Room, bool) {
	p, ok := s.participants[connID]
	if !ok || !p.InRoom() {
		return nil, nil, false
	}
	room, ok := s.rooms.Get(p.RoomID)
	if !ok {
		return nil, nil, false
	}
	return p, room, true
}

// hostOf returns the room only when connID currently holds its host slot.
func (s *LiveService) hostOf(connID string) (*domain.Participant, *domain.Room, bool) {
	p, room, ok := s.member(connID)
	if !ok || room.HostID != connID {
		return nil, nil, false
	}
	return p, room, true
}

// displayRole labels p by its current membership in room.
func displayRole(room *domain.Room, p *domain.Participant) domain.Role {
	switch {
	case room.HostID == p.ID:
		return domain.RoleHost
	case room.IsGuest(p.ID):
		return domain.RoleGuest
	default:
		return domain.RoleViewer
	}
}

func (s *LiveService) send(connID string, msg interface{}) {
	if err := s.notifier.SendToClient(connID, msg); err != nil {
		l := pkglog.Ctx(s.ctx)
		l.Debug().Err(err).Str(pkglog.FieldConnectionID, connID).Msg("send failed")
	}
}

func (s *LiveService) broadcast(roomID string, msg interface{}) {
	if err := s.notifier.BroadcastToRoom(roomID, msg, ""); err != nil {
		l := pkglog.Ctx(s.ctx)
		l.Debug().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("broadcast failed")
	}
}

func (s *LiveService) sendError(connID, code, message string) {
	s.send(connID, domain.NewErrorMessage(code, message))
}

func (s *LiveService) notifyHost(room *domain.Room, msg interface{}) {
	if room.HostOnline() {
		s.send(room.HostID, msg)
	}
}

func (s *LiveService) broadcastViewerCount(room *domain.Room) {
	s.broadcast(room.ID, &domain.ViewerCountMessage{
		Type:   domain.MsgTypeViewerCount,
		RoomID: room.ID,
		Count:  room.ViewerCount(),
	})
	s.lobbyDirty = true
}

func (s *LiveService) maybeEvict(room *domain.Room) {
	if s.rooms.MaybeEvict(room.ID) {
		if t, ok := s.timers[room.ID]; ok {
			t.Stop()
			delete(s.timers, room.ID)
		}
		l := pkglog.Ctx(s.ctx)
		l.Debug().Str(pkglog.FieldRoomID, room.ID).Msg("room evicted")
	}
}

// Connect registers a new connection with a fresh wallet.
func (s *LiveService) Connect(connID string) error {
	return s.exec(func() {
		s.participant(connID)
	})
}

// Disconnect releases everything the connection held.
func (s *LiveService) Disconnect(ctx context.Context, connID string) error {
	return s.exec(func() {
		p, ok := s.participants[connID]
		if !ok {
			return
		}
		if p.InRoom() {
			s.leave(ctx, p)
		}
		delete(s.participants, connID)
	})
}
