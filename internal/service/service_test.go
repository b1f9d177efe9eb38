package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/live-room-service/internal/config"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/kafka"
)

var testStart = time.Unix(1700000000, 0)

type recordingNotifier struct {
	mu        sync.Mutex
	connected map[string]bool
	rooms     map[string]map[string]bool
	inbox     map[string][]map[string]interface{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		connected: make(map[string]bool),
		rooms:     make(map[string]map[string]bool),
		inbox:     make(map[string][]map[string]interface{}),
	}
}

func (n *recordingNotifier) connect(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connected[id] = true
}

func (n *recordingNotifier) disconnect(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.connected, id)
}

func (n *recordingNotifier) deliver(id string, message interface{}) {
	data, _ := json.Marshal(message)
	var m map[string]interface{}
	_ = json.Unmarshal(data, &m)
	n.inbox[id] = append(n.inbox[id], m)
}

func (n *recordingNotifier) SendToClient(clientID string, message interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.connected[clientID] {
		n.deliver(clientID, message)
	}
	return nil
}

func (n *recordingNotifier) BroadcastToRoom(roomID string, message interface{}, exclude string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id := range n.rooms[roomID] {
		if id != exclude && n.connected[id] {
			n.deliver(id, message)
		}
	}
	return nil
}

func (n *recordingNotifier) BroadcastAll(message interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id := range n.connected {
		n.deliver(id, message)
	}
	return nil
}

func (n *recordingNotifier) JoinRoom(clientID, roomID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.rooms[roomID] == nil {
		n.rooms[roomID] = make(map[string]bool)
	}
	n.rooms[roomID][clientID] = true
}

func (n *recordingNotifier) LeaveRoom(clientID, roomID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.rooms[roomID], clientID)
}

func (n *recordingNotifier) IsConnected(clientID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected[clientID]
}

// messages returns every message of msgType delivered to id.
func (n *recordingNotifier) messages(id, msgType string) []map[string]interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []map[string]interface{}
	for _, m := range n.inbox[id] {
		if m["type"] == msgType {
			out = append(out, m)
		}
	}
	return out
}

func (n *recordingNotifier) last(id, msgType string) map[string]interface{} {
	msgs := n.messages(id, msgType)
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func (n *recordingNotifier) reset(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.inbox, id)
}

type memStore struct {
	mu    sync.Mutex
	snaps map[string]*domain.Snapshot
}

func newMemStore() *memStore {
	return &memStore{snaps: make(map[string]*domain.Snapshot)}
}

func (m *memStore) Save(_ context.Context, snap *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.RoomID] = snap
	return nil
}

func (m *memStore) Delete(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, roomID)
	return nil
}

func (m *memStore) LoadAll(context.Context) ([]*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Snapshot, 0, len(m.snaps))
	for _, s := range m.snaps {
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) get(roomID string) (*domain.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[roomID]
	return s, ok
}

type recordingProducer struct {
	mu     sync.Mutex
	events []kafka.LiveEvent
}

func (p *recordingProducer) Produce(_ context.Context, event *kafka.LiveEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func (p *recordingProducer) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type+":"+e.Reason)
	}
	return out
}

type harness struct {
	t        *testing.T
	svc      *LiveService
	notifier *recordingNotifier
	clock    *clock.Mock
	store    *memStore
	producer *recordingProducer
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	return newHarnessWithStore(t, newMemStore(), mutate)
}

func newHarnessWithStore(t *testing.T, store *memStore, mutate func(*Config)) *harness {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	mock := clock.NewMock()
	mock.Set(testStart)

	h := &harness{
		t:        t,
		notifier: newRecordingNotifier(),
		clock:    mock,
		store:    store,
		producer: &recordingProducer{},
	}
	h.svc = NewLiveService(cfg, h.notifier, store, h.producer, mock)
	require.NoError(t, h.svc.Start(context.Background()))
	t.Cleanup(func() { _ = h.svc.Stop() })
	return h
}

func (h *harness) join(id, roomID, role string) {
	h.t.Helper()
	h.notifier.connect(id)
	require.NoError(h.t, h.svc.Connect(id))
	msg := domain.JoinRoomMessage{RoomID: roomID, Role: role, Profile: domain.Profile{Name: id}}
	require.NoError(h.t, msg.Normalize(h.clock.Now().UnixMilli()))
	require.NoError(h.t, h.svc.Join(context.Background(), id, msg))
}

func (h *harness) disconnect(id string) {
	h.t.Helper()
	h.notifier.disconnect(id)
	require.NoError(h.t, h.svc.Disconnect(context.Background(), id))
}

func (h *harness) startLive(id string) {
	h.t.Helper()
	require.NoError(h.t, h.svc.StartLive(context.Background(), id, 0))
}

func (h *harness) gift(id, giftType string, qty int64) {
	h.t.Helper()
	msg := domain.SendGiftMessage{GiftType: giftType, Quantity: json.RawMessage(jsonInt(qty))}
	require.NoError(h.t, msg.Normalize())
	require.NoError(h.t, h.svc.SendGift(context.Background(), id, msg))
}

func (h *harness) chat(id, text string) {
	h.t.Helper()
	msg := domain.ChatMessage{Text: text}
	require.NoError(h.t, msg.Normalize())
	require.NoError(h.t, h.svc.Chat(id, msg))
}

func (h *harness) room(roomID string) *RoomView {
	h.t.Helper()
	view, _, err := h.svc.RoomInfo(roomID)
	require.NoError(h.t, err)
	return view
}

func (h *harness) lobbyRooms() []domain.LobbyEntry {
	h.t.Helper()
	entries, err := h.svc.Lobby()
	require.NoError(h.t, err)
	return entries
}

func (h *harness) balance(id string) int64 {
	h.t.Helper()
	b, ok, err := h.svc.Balance(id)
	require.NoError(h.t, err)
	require.True(h.t, ok)
	return b
}

func jsonInt(v int64) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func TestLiveSessionSurvivesShortHostDisconnect(t *testing.T) {
	h := newHarness(t, nil)

	h.join("host", "r1", "host")
	h.startLive("host")
	h.join("v1", "r1", "viewer")
	h.join("v2", "r1", "viewer")
	h.join("v3", "r1", "viewer")

	lobby := h.lobbyRooms()
	require.Len(t, lobby, 1)
	assert.Equal(t, "r1", lobby[0].RoomID)
	assert.Equal(t, 3, lobby[0].ViewerCount)

	update := h.notifier.last("v1", domain.MsgTypeLobbyUpdate)
	require.NotNil(t, update)
	rooms := update["rooms"].([]interface{})
	require.Len(t, rooms, 1)
	assert.EqualValues(t, 3, rooms[0].(map[string]interface{})["viewer_count"])

	h.disconnect("host")
	assert.NotNil(t, h.notifier.last("v1", domain.MsgTypeHostTemporarilyOffline))

	h.clock.Add(14 * time.Second)
	assert.Len(t, h.lobbyRooms(), 1)

	h.clock.Add(time.Second)
	require.Eventually(t, func() bool {
		return len(h.lobbyRooms()) == 0
	}, time.Second, 5*time.Millisecond)

	for _, v := range []string{"v1", "v2", "v3"} {
		stopped := h.notifier.messages(v, domain.MsgTypeLiveStopped)
		require.Len(t, stopped, 1, v)
		assert.Equal(t, domain.ReasonTimeout, stopped[0]["reason"])
		rooms := h.notifier.last(v, domain.MsgTypeLobbyUpdate)["rooms"].([]interface{})
		assert.Empty(t, rooms)
	}

	view := h.room("r1")
	require.NotNil(t, view)
	assert.False(t, view.IsLive)
	assert.Zero(t, view.LiveStartedAt)
}

func TestHostRejoinKeepsLiveStartedAt(t *testing.T) {
	h := newHarness(t, nil)

	h.join("host", "r1", "host")
	h.startLive("host")
	started := h.room("r1").LiveStartedAt
	require.Equal(t, testStart.UnixMilli(), started)

	h.disconnect("host")
	h.clock.Add(10 * time.Second)
	h.join("host2", "r1", "host")

	view := h.room("r1")
	assert.True(t, view.HostOnline)
	assert.Equal(t, started, view.LiveStartedAt)
	assert.Zero(t, view.GraceDeadline)

	resumed := h.notifier.last("host2", domain.MsgTypeLiveResumed)
	require.NotNil(t, resumed)
	assert.EqualValues(t, started, resumed["started_at"])

	// The cancelled timer must not release the session later.
	h.clock.Add(time.Minute)
	assert.Equal(t, started, h.room("r1").LiveStartedAt)
	assert.Len(t, h.lobbyRooms(), 1)
}

func TestHostRepeatedJoinKeepsSession(t *testing.T) {
	h := newHarness(t, nil)

	h.join("host", "r1", "host")
	h.startLive("host")
	started := h.room("r1").LiveStartedAt
	h.join("v", "r1", "viewer")
	h.notifier.reset("v")

	h.join("host", "r1", "host")

	assert.Nil(t, h.notifier.last("v", domain.MsgTypeHostTemporarilyOffline))
	assert.Nil(t, h.notifier.last("v", domain.MsgTypeLiveResumed))
	assert.Nil(t, h.notifier.last("v", domain.MsgTypeHostOnline))
	assert.Nil(t, h.notifier.last("v", domain.MsgTypeLiveStopped))
	assert.NotNil(t, h.notifier.last("v", domain.MsgTypeHostProfile))

	view := h.room("r1")
	assert.True(t, view.HostOnline)
	assert.True(t, view.IsLive)
	assert.Equal(t, started, view.LiveStartedAt)
	assert.Zero(t, view.GraceDeadline)
	assert.Equal(t, 1, view.ViewerCount)

	h.clock.Add(time.Minute)
	assert.Equal(t, started, h.room("r1").LiveStartedAt)
	assert.Equal(t, []string{"live_started:"}, h.producer.types())
}

func TestHostRejoinAsViewerStopsLiveExplicitly(t *testing.T) {
	h := newHarness(t, nil)

	h.join("host", "r1", "host")
	h.startLive("host")
	h.join("v", "r1", "viewer")

	h.join("host", "r1", "viewer")

	stopped := h.notifier.last("v", domain.MsgTypeLiveStopped)
	require.NotNil(t, stopped)
	assert.Equal(t, domain.ReasonExplicit, stopped["reason"])

	view := h.room("r1")
	assert.False(t, view.HostOnline)
	assert.False(t, view.IsLive)
	assert.Zero(t, view.GraceDeadline)

	h.svc.persist.sync()
	_, ok := h.store.get("r1")
	assert.False(t, ok)
	assert.Equal(t, []string{"live_started:", "live_stopped:explicit"}, h.producer.types())

	// The abandoned grace timer must not fire a second stop.
	h.clock.Add(time.Minute)
	h.svc.persist.sync()
	assert.Equal(t, []string{"live_started:", "live_stopped:explicit"}, h.producer.types())
}

func TestGraceExpiryEvictsEmptyRoom(t *testing.T) {
	h := newHarness(t, nil)

	h.join("host", "r1", "host")
	h.startLive("host")
	h.disconnect("host")
	require.NotNil(t, h.room("r1"))

	h.clock.Add(15 * time.Second)
	require.Eventually(t, func() bool {
		return h.room("r1") == nil
	}, time.Second, 5*time.Millisecond)

	h.svc.persist.sync()
	_, ok := h.store.get("r1")
	assert.False(t, ok)
	assert.Equal(t, []string{"live_started:", "live_stopped:timeout"}, h.producer.types())
}

func TestLastViewerLeavingEvictsRoom(t *testing.T) {
	h := newHarness(t, nil)

	h.join("v1", "lonely", "viewer")
	require.NotNil(t, h.room("lonely"))

	require.NoError(t, h.svc.Leave(context.Background(), "v1"))
	assert.Nil(t, h.room("lonely"))

	require.NoError(t, h.svc.Leave(context.Background(), "v1"))
	errMsg := h.notifier.last("v1", domain.MsgTypeError)
	require.NotNil(t, errMsg)
	assert.Equal(t, domain.ErrCodeNotInRoom, errMsg["code"])
}

func TestHostReplacedByNewHost(t *testing.T) {
	h := newHarness(t, nil)

	h.join("a", "r1", "host")
	h.join("v", "r1", "viewer")
	h.join("b", "r1", "host")

	changed := h.notifier.last("v", domain.MsgTypeHostChanged)
	require.NotNil(t, changed)
	assert.Equal(t, "b", changed["host_id"])
	// The previous host stays as a viewer.
	assert.Equal(t, 2, h.room("r1").ViewerCount)
}

func TestGiftRejectedWhenWalletTooSmall(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.InitialBalance = 40 })

	h.join("host", "r1", "host")
	h.startLive("host")
	h.join("fan", "r1", "viewer")

	h.gift("fan", "star", 1)

	failed := h.notifier.last("fan", domain.MsgTypeGiftFailed)
	require.NotNil(t, failed)
	assert.Equal(t, domain.ReasonInsufficientFunds, failed["reason"])
	assert.EqualValues(t, 50, failed["need"])
	assert.EqualValues(t, 40, failed["have"])

	assert.Equal(t, int64(40), h.balance("fan"))
	view := h.room("r1")
	assert.Zero(t, view.GiftTotal)
	assert.Empty(t, view.Top)
	assert.Empty(t, h.notifier.messages("host", domain.MsgTypeGift))
}

func TestGiftTotalMatchesLedger(t *testing.T) {
	h := newHarness(t, nil)

	h.join("host", "r1", "host")
	h.startLive("host")
	names := []string{"ann", "bob", "cat", "dan", "eve", "fay"}
	for _, n := range names {
		h.join(n, "r1", "viewer")
	}

	h.gift("ann", "heart", 2)   // 20
	h.gift("bob", "rose", 5000) // clamped to 999
	h.gift("cat", "heart", 2)   // 20, ties with ann
	h.gift("dan", "star", 1)    // 50
	h.gift("eve", "rose", 0)    // clamped to 1
	h.gift("fay", "rose", 3)    // 3
	h.gift("ann", "rose", 1)    // ann now 21

	view := h.room("r1")
	var sum int64
	for _, e := range view.Top {
		sum += e.Coins
	}
	assert.Equal(t, int64(999+21+20+50+1+3), view.GiftTotal)
	require.Len(t, view.Top, 5)
	assert.Equal(t, []domain.LedgerEntry{
		{Name: "bob", Coins: 999},
		{Name: "dan", Coins: 50},
		{Name: "ann", Coins: 21},
		{Name: "cat", Coins: 20},
		{Name: "fay", Coins: 3},
	}, view.Top)
	assert.Equal(t, view.GiftTotal, sum+1)

	assert.Equal(t, int64(1000-999), h.balance("bob"))
	wallet := h.notifier.last("bob", domain.MsgTypeWallet)
	assert.EqualValues(t, 1, wallet["balance"])

	gift := h.notifier.last("host", domain.MsgTypeGift)
	require.NotNil(t, gift)
	assert.Equal(t, "ann", gift["from"])
	assert.EqualValues(t, view.GiftTotal, gift["room_total"])

	h.svc.persist.sync()
	snap, ok := h.store.get("r1")
	require.True(t, ok)
	assert.Equal(t, view.GiftTotal, snap.GiftTotal)
}

func TestGiftFailureReasons(t *testing.T) {
	h := newHarness(t, nil)

	h.join("host", "r1", "host")
	h.join("fan", "r1", "viewer")

	h.gift("fan", "rose", 1)
	assert.Equal(t, domain.ReasonNotLive, h.notifier.last("fan", domain.MsgTypeGiftFailed)["reason"])

	h.startLive("host")
	h.gift("fan", "diamond", 1)
	assert.Equal(t, domain.ReasonUnknownGift, h.notifier.last("fan", domain.MsgTypeGiftFailed)["reason"])
	assert.Equal(t, int64(1000), h.balance("fan"))

	h.notifier.connect("outsider")
	h.gift("outsider", "rose", 1)
	assert.Equal(t, domain.ErrCodeNotInRoom, h.notifier.last("outsider", domain.MsgTypeError)["code"])
}

func TestGiftsDisabled(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.GiftsEnabled = false })

	h.join("host", "r1", "host")
	h.startLive("host")
	h.join("fan", "r1", "viewer")
	assert.Empty(t, h.notifier.messages("fan", domain.MsgTypeGiftStats))

	h.gift("fan", "rose", 1)
	assert.Equal(t, domain.ErrCodeFeatureDisabled, h.notifier.last("fan", domain.MsgTypeError)["code"])
	assert.Zero(t, h.room("r1").GiftTotal)
}

func TestChatRateLimit(t *testing.T) {
	h := newHarness(t, nil)

	h.join("host", "r1", "host")
	h.join("v", "r1", "viewer")

	h.chat("v", "hello")
	h.clock.Add(1199 * time.Millisecond)
	h.chat("v", "too soon")

	limited := h.notifier.last("v", domain.MsgTypeRateLimited)
	require.NotNil(t, limited)
	assert.Equal(t, domain.ScopeChat, limited["scope"])
	assert.EqualValues(t, 1, limited["retry_after_ms"])

	h.clock.Add(time.Millisecond)
	h.chat("v", "now ok")

	chats := h.notifier.messages("host", domain.MsgTypeChat)
	require.Len(t, chats, 2)
	assert.Equal(t, "hello", chats[0]["text"])
	assert.Equal(t, "now ok", chats[1]["text"])
	assert.Equal(t, "viewer", chats[0]["role"])
	assert.Equal(t, "v", chats[0]["name"])
	assert.Len(t, h.notifier.messages("host", domain.MsgTypeRateLimited), 0)
}

func TestReactionRateLimit(t *testing.T) {
	h := newHarness(t, nil)
	h.join("v", "r1", "viewer")

	react := func() {
		msg := domain.ReactionMessage{Emoji: "🔥", X: json.RawMessage(`5`), Y: json.RawMessage(`"abc"`)}
		require.NoError(t, msg.Normalize())
		require.NoError(t, h.svc.React("v", msg))
	}

	react()
	h.clock.Add(199 * time.Millisecond)
	react()
	assert.Equal(t, domain.ScopeReaction, h.notifier.last("v", domain.MsgTypeRateLimited)["scope"])

	h.clock.Add(time.Millisecond)
	react()

	reactions := h.notifier.messages("v", domain.MsgTypeReaction)
	require.Len(t, reactions, 2)
	assert.EqualValues(t, 1, reactions[0]["x"])
	assert.EqualValues(t, 0.5, reactions[0]["y"])
}

func TestChatFanBadge(t *testing.T) {
	h := newHarness(t, nil)

	h.join("host", "r1", "host")
	h.join("v", "r1", "viewer")
	require.NoError(t, h.svc.Follow("v"))

	count := h.notifier.last("host", domain.MsgTypeFollowerCount)
	require.NotNil(t, count)
	assert.EqualValues(t, 1, count["count"])

	h.chat("v", "hi")
	h.chat("host", "welcome")

	chats := h.notifier.messages("v", domain.MsgTypeChat)
	require.Len(t, chats, 2)
	assert.Equal(t, domain.BadgeFan, chats[0]["badge"])
	assert.Nil(t, chats[1]["badge"])
	assert.Equal(t, "host", chats[1]["role"])

	require.NoError(t, h.svc.Unfollow("v"))
	assert.Equal(t, 0, h.room("r1").Followers)
}

func TestFollowDisabled(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.FollowEnabled = false })
	h.join("v", "r1", "viewer")

	require.NoError(t, h.svc.Follow("v"))
	assert.Equal(t, domain.ErrCodeFeatureDisabled, h.notifier.last("v", domain.MsgTypeError)["code"])
	assert.Equal(t, 0, h.room("r1").Followers)
}

func TestGuestCapacity(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.GuestCapacity = 1 })
	ctx := context.Background()

	h.join("host", "r1", "host")
	h.join("g1", "r1", "guest")
	h.join("g2", "r1", "viewer")
	require.NoError(t, h.svc.RequestGuest("g2"))

	requests := h.notifier.messages("host", domain.MsgTypeGuestRequest)
	require.Len(t, requests, 2)
	assert.NotNil(t, h.notifier.last("g2", domain.MsgTypeGuestPending))

	require.NoError(t, h.svc.ApproveGuest(ctx, "host", "g1"))
	assert.NotNil(t, h.notifier.last("g1", domain.MsgTypeGuestApproved))
	assert.Equal(t, "g1", h.notifier.last("g2", domain.MsgTypeGuestOnline)["guest_id"])

	require.NoError(t, h.svc.ApproveGuest(ctx, "host", "g2"))
	failed := h.notifier.last("host", domain.MsgTypeGuestApproveFailed)
	require.NotNil(t, failed)
	assert.Equal(t, domain.ReasonRoomFull, failed["reason"])

	view := h.room("r1")
	assert.Equal(t, []string{"g1"}, view.Guests)
	assert.Equal(t, 0, view.ViewerCount)
	assert.Nil(t, h.notifier.last("g2", domain.MsgTypeGuestApproved))

	require.NoError(t, h.svc.ApproveGuest(ctx, "host", "nobody"))
	assert.Equal(t, domain.ReasonNotPending, h.notifier.last("host", domain.MsgTypeGuestApproveFailed)["reason"])
}

func TestPendingGuestLeavesViewerCount(t *testing.T) {
	h := newHarness(t, nil)

	h.join("host", "r1", "host")
	h.join("v1", "r1", "viewer")
	h.join("v2", "r1", "viewer")
	require.Equal(t, 2, h.room("r1").ViewerCount)

	require.NoError(t, h.svc.RequestGuest("v1"))
	assert.Equal(t, 1, h.room("r1").ViewerCount)

	require.NoError(t, h.svc.CancelGuest("v1"))
	assert.Equal(t, 2, h.room("r1").ViewerCount)

	require.NoError(t, h.svc.RequestGuest("v2"))
	assert.Equal(t, 1, h.room("r1").ViewerCount)
	require.NoError(t, h.svc.RejectGuest("host", "v2"))
	assert.Equal(t, 2, h.room("r1").ViewerCount)
}

func TestGuestRejectKickCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.join("host", "r1", "host")
	h.join("g1", "r1", "guest")
	h.join("g2", "r1", "guest")
	h.join("g3", "r1", "guest")

	require.NoError(t, h.svc.RejectGuest("host", "g1"))
	assert.NotNil(t, h.notifier.last("g1", domain.MsgTypeGuestRejected))

	require.NoError(t, h.svc.ApproveGuest(ctx, "host", "g2"))
	require.NoError(t, h.svc.KickGuest(ctx, "host", "g2"))
	assert.NotNil(t, h.notifier.last("g2", domain.MsgTypeGuestKicked))
	assert.Equal(t, "g2", h.notifier.last("g3", domain.MsgTypeGuestOffline)["guest_id"])

	require.NoError(t, h.svc.CancelGuest("g3"))
	assert.Equal(t, "g3", h.notifier.last("host", domain.MsgTypeGuestCancelled)["guest_id"])

	view := h.room("r1")
	assert.Empty(t, view.Guests)
	assert.Equal(t, 3, view.ViewerCount)
}

func TestHostOnlyOperationsIgnoreOthers(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.join("host", "r1", "host")
	h.join("g", "r1", "guest")
	h.join("v", "r1", "viewer")
	h.notifier.reset("v")

	pin := domain.PinNoteMessage{Type: domain.MsgTypePinNoteSet, Text: "hi"}
	require.NoError(t, pin.Normalize())
	require.NoError(t, h.svc.PinSet("v", pin))
	require.NoError(t, h.svc.ApproveGuest(ctx, "v", "g"))
	require.NoError(t, h.svc.StartLive(ctx, "v", 0))
	require.NoError(t, h.svc.StopLive(ctx, "v"))

	view := h.room("r1")
	assert.Nil(t, view.PinnedNote)
	assert.Empty(t, view.Guests)
	assert.False(t, view.IsLive)
	assert.Empty(t, h.notifier.messages("v", domain.MsgTypeError))
	assert.Empty(t, h.notifier.messages("v", domain.MsgTypePinNoteUpdate))
}

func TestPinnedNote(t *testing.T) {
	h := newHarness(t, nil)
	h.join("host", "r1", "host")
	h.join("v", "r1", "viewer")

	move := domain.PinNoteMessage{Type: domain.MsgTypePinNoteMove, X: json.RawMessage(`0.1`), Y: json.RawMessage(`0.1`)}
	require.NoError(t, move.Normalize())
	require.NoError(t, h.svc.PinMove("host", move))
	assert.Nil(t, h.room("r1").PinnedNote)

	set := domain.PinNoteMessage{
		Type: domain.MsgTypePinNoteSet,
		Text: "  welcome  ",
		X:    json.RawMessage(`5`),
		Y:    json.RawMessage(`"abc"`),
	}
	require.NoError(t, set.Normalize())
	require.NoError(t, h.svc.PinSet("host", set))

	note := h.room("r1").PinnedNote
	require.NotNil(t, note)
	assert.Equal(t, "welcome", note.Text)
	assert.Equal(t, 1.0, note.X)
	assert.Equal(t, 0.5, note.Y)

	require.NoError(t, h.svc.PinMove("host", move))
	note = h.room("r1").PinnedNote
	assert.Equal(t, 0.1, note.X)
	assert.Equal(t, "welcome", note.Text)

	require.NoError(t, h.svc.PinClear("host"))
	assert.Nil(t, h.room("r1").PinnedNote)

	last := h.notifier.last("v", domain.MsgTypePinNoteUpdate)
	require.NotNil(t, last)
	assert.Contains(t, last, "note")
	assert.Nil(t, last["note"])
	assert.Len(t, h.notifier.messages("v", domain.MsgTypePinNoteUpdate), 4)
}

func TestLobbyOrdering(t *testing.T) {
	h := newHarness(t, nil)

	h.join("ha", "a", "host")
	h.startLive("ha")
	h.clock.Add(time.Minute)
	h.join("hb", "b", "host")
	h.startLive("hb")
	h.join("hc", "c", "host")
	h.startLive("hc")
	h.join("hidden", "d", "host")

	for i := 0; i < 5; i++ {
		h.join("a"+jsonInt(int64(i)), "a", "viewer")
		h.join("b"+jsonInt(int64(i)), "b", "viewer")
	}
	for i := 0; i < 3; i++ {
		h.join("c"+jsonInt(int64(i)), "c", "viewer")
	}

	lobby := h.lobbyRooms()
	require.Len(t, lobby, 3)
	assert.Equal(t, "b", lobby[0].RoomID)
	assert.Equal(t, "a", lobby[1].RoomID)
	assert.Equal(t, "c", lobby[2].RoomID)
	require.NotNil(t, lobby[0].HostProfile)
	assert.Equal(t, "hb", lobby[0].HostProfile.Name)
}

func TestStopLiveDeletesSnapshot(t *testing.T) {
	h := newHarness(t, nil)

	h.join("host", "r1", "host")
	h.join("v", "r1", "viewer")
	require.NoError(t, h.svc.StartLive(context.Background(), "host", testStart.Add(time.Hour).UnixMilli()))
	assert.Equal(t, testStart.UnixMilli(), h.room("r1").LiveStartedAt)

	h.svc.persist.sync()
	_, ok := h.store.get("r1")
	require.True(t, ok)

	require.NoError(t, h.svc.StopLive(context.Background(), "host"))
	assert.Equal(t, domain.ReasonExplicit, h.notifier.last("v", domain.MsgTypeLiveStopped)["reason"])

	h.svc.persist.sync()
	_, ok = h.store.get("r1")
	assert.False(t, ok)
	assert.Equal(t, []string{"live_started:", "live_stopped:explicit"}, h.producer.types())
	assert.Empty(t, h.lobbyRooms())
}

func TestRestoreFromSnapshot(t *testing.T) {
	store := newMemStore()
	started := testStart.Add(-time.Hour).UnixMilli()
	require.NoError(t, store.Save(context.Background(), &domain.Snapshot{
		RoomID:        "r1",
		LiveStartedAt: started,
		HostProfile:   &domain.Profile{Name: "star"},
		PinnedNote:    &domain.PinnedNote{Text: "hi", X: 0.2, Y: 0.3},
		GiftTotal:     30,
		Ledger:        []domain.LedgerEntry{{Name: "ann", Coins: 10}, {Name: "bob", Coins: 20}},
	}))
	require.NoError(t, store.Save(context.Background(), &domain.Snapshot{RoomID: "stale"}))

	h := newHarnessWithStore(t, store, nil)

	view := h.room("r1")
	require.NotNil(t, view)
	assert.Equal(t, started, view.LiveStartedAt)
	assert.Equal(t, int64(30), view.GiftTotal)
	assert.False(t, view.HostOnline)
	assert.NotZero(t, view.GraceDeadline)
	assert.Empty(t, h.lobbyRooms())
	assert.Nil(t, h.room("stale"))

	h.join("host", "r1", "host")
	assert.Equal(t, started, h.room("r1").LiveStartedAt)
	assert.NotNil(t, h.notifier.last("host", domain.MsgTypeLiveResumed))
	assert.Len(t, h.lobbyRooms(), 1)

	h.svc.persist.sync()
	_, ok := store.get("stale")
	assert.False(t, ok)
}

func TestRestoredRoomReleasedWithoutHost(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Save(context.Background(), &domain.Snapshot{RoomID: "r1", LiveStartedAt: 1}))

	h := newHarnessWithStore(t, store, func(c *Config) { c.RestoreGrace = 5 * time.Second })
	require.NotNil(t, h.room("r1"))

	h.clock.Add(5 * time.Second)
	require.Eventually(t, func() bool {
		return h.room("r1") == nil
	}, time.Second, 5*time.Millisecond)
}

func TestUpdateProfile(t *testing.T) {
	h := newHarness(t, nil)
	h.join("host", "r1", "host")
	h.startLive("host")
	h.join("v", "r1", "viewer")

	prof := domain.NormalizeProfile(domain.Profile{Name: "New Name"}, h.clock.Now().UnixMilli())
	require.NoError(t, h.svc.UpdateProfile(context.Background(), "host", prof))

	hp := h.notifier.last("v", domain.MsgTypeHostProfile)
	require.NotNil(t, hp)
	assert.Equal(t, "New Name", hp["profile"].(map[string]interface{})["name"])
	assert.NotNil(t, h.notifier.last("v", domain.MsgTypeProfileUpdated))
	assert.Equal(t, "New Name", h.lobbyRooms()[0].HostProfile.Name)
}

func TestRelayDropsUnknownRecipient(t *testing.T) {
	n := newRecordingNotifier()
	n.connect("a")
	n.connect("b")
	relay := NewSignalingRelay(n)

	msg := domain.SignalMessage{Type: domain.MsgTypeOffer, To: "b", From: "spoofed", Description: json.RawMessage(`{"sdp":"x"}`)}
	assert.True(t, relay.Relay("a", msg))
	offer := n.last("b", domain.MsgTypeOffer)
	require.NotNil(t, offer)
	assert.Equal(t, "a", offer["from"])

	msg.To = "ghost"
	assert.False(t, relay.Relay("a", msg))
	msg.To = "a"
	assert.False(t, relay.Relay("a", msg))
}

func TestOperationsAfterStop(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.svc.Stop())
	assert.ErrorIs(t, h.svc.Connect("x"), ErrStopped)
	require.NoError(t, h.svc.Stop())
}

func TestConfigFromFallsBackToDefaultCatalog(t *testing.T) {
	cfg := &config.Config{Gifts: config.GiftsConfig{
		Catalog: []config.GiftItem{{Type: " ", UnitCost: 5}, {Type: "kiss", UnitCost: 0}},
	}}
	assert.Len(t, ConfigFrom(cfg).Catalog, len(domain.DefaultGiftCatalog()))

	cfg.Gifts.Catalog = []config.GiftItem{{Type: " Kiss ", UnitCost: 3, Symbol: "x"}}
	catalog := ConfigFrom(cfg).Catalog
	require.Len(t, catalog, 1)
	assert.Equal(t, int64(3), catalog["kiss"].UnitCost)
}
