package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/live-room-service/internal/config"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/hub"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/ice"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/service"
)

type failingBroker struct{}

func (failingBroker) ICEServers(context.Context) ([]domain.ICEServer, error) {
	return nil, errors.New("upstream down")
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newTestServer(t *testing.T, broker ice.Broker) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := hub.NewHub(config.WebSocketConfig{
		PingInterval:   time.Minute,
		PongWait:       2 * time.Minute,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBuffer:     256,
	})
	svc := service.NewLiveService(service.DefaultConfig(), h, nil, nil, nil)
	require.NoError(t, svc.Start(context.Background()))

	ws := NewWSHandler(h, svc, service.NewSignalingRelay(h), broker)
	r := gin.New()
	NewHandler(svc, h, broker, ws).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		_ = svc.Stop()
	})
	return srv
}

func getJSON(t *testing.T, url string) (int, envelope) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// await reads until a message of msgType arrives.
func await(t *testing.T, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var m map[string]interface{}
		require.NoError(t, conn.ReadJSON(&m), "waiting for %s", msgType)
		if m["type"] == msgType {
			return m
		}
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, ice.NewStaticBroker(nil))

	status, env := getJSON(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
}

func TestGiftCatalog(t *testing.T) {
	srv := newTestServer(t, ice.NewStaticBroker(nil))

	status, env := getJSON(t, srv.URL+"/api/v1/gifts")
	require.Equal(t, http.StatusOK, status)

	var data struct {
		Gifts []domain.Gift `json:"gifts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Gifts, 5)
	assert.Equal(t, "rose", data.Gifts[0].Type)
	assert.Equal(t, "supernova", data.Gifts[4].Type)
}

func TestUnknownRoomIsNotCreated(t *testing.T) {
	srv := newTestServer(t, ice.NewStaticBroker(nil))

	status, env := getJSON(t, srv.URL+"/api/v1/rooms/nowhere")
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestICEServers(t *testing.T) {
	srv := newTestServer(t, ice.NewStaticBroker([]domain.ICEServer{
		{URLs: []string{"turn:turn.example.com:3478"}, Username: "u", Credential: "c"},
	}))

	status, env := getJSON(t, srv.URL+"/api/ice-servers")
	require.Equal(t, http.StatusOK, status)

	var data struct {
		Servers []domain.ICEServer `json:"ice_servers"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Servers, 2)
	assert.Equal(t, []string{ice.DefaultSTUN}, data.Servers[0].URLs)
}

func TestICEServersUpstreamFailure(t *testing.T) {
	srv := newTestServer(t, failingBroker{})

	status, env := getJSON(t, srv.URL+"/api/ice-servers")
	assert.Equal(t, http.StatusBadGateway, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, domain.ErrCodeICEUnavailable, env.Error.Code)

	conn := dial(t, srv)
	send(t, conn, map[string]string{"type": domain.MsgTypeICERequest})
	errMsg := await(t, conn, domain.MsgTypeError)
	assert.Equal(t, domain.ErrCodeICEUnavailable, errMsg["code"])
}

func TestWebSocketRoomFlow(t *testing.T) {
	srv := newTestServer(t, ice.NewStaticBroker(nil))

	host := dial(t, srv)
	send(t, host, map[string]interface{}{
		"type":    domain.MsgTypeJoinRoom,
		"room_id": " Studio ",
		"role":    "broadcaster",
		"profile": map[string]string{"name": "Star"},
	})
	joined := await(t, host, domain.MsgTypeJoined)
	assert.Equal(t, "studio", joined["room_id"])
	assert.Equal(t, "host", joined["role"])
	hostID := joined["connection_id"].(string)

	send(t, host, map[string]string{"type": domain.MsgTypeLiveStart})
	live := await(t, host, domain.MsgTypeLiveStart)
	assert.NotZero(t, live["started_at"])

	viewer := dial(t, srv)
	send(t, viewer, map[string]string{"type": domain.MsgTypeJoinRoom, "room_id": "studio", "role": "viewer"})
	vj := await(t, viewer, domain.MsgTypeJoined)
	assert.Equal(t, "viewer", vj["role"])
	assert.Equal(t, true, vj["is_live"])
	viewerID := vj["connection_id"].(string)

	count := await(t, host, domain.MsgTypeViewerCount)
	assert.EqualValues(t, 1, count["count"])

	status, env := getJSON(t, srv.URL+"/api/v1/lobby")
	require.Equal(t, http.StatusOK, status)
	var lobby struct {
		Rooms []domain.LobbyEntry `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &lobby))
	require.Len(t, lobby.Rooms, 1)
	assert.Equal(t, "studio", lobby.Rooms[0].RoomID)
	assert.Equal(t, 1, lobby.Rooms[0].ViewerCount)

	send(t, viewer, map[string]string{"type": domain.MsgTypeChat, "text": "hello"})
	chat := await(t, host, domain.MsgTypeChat)
	assert.Equal(t, "hello", chat["text"])
	assert.Equal(t, "viewer", chat["role"])

	send(t, viewer, map[string]interface{}{
		"type":        domain.MsgTypeOffer,
		"to":          hostID,
		"description": map[string]string{"type": "offer", "sdp": "v=0"},
	})
	offer := await(t, host, domain.MsgTypeOffer)
	assert.Equal(t, viewerID, offer["from"])

	send(t, viewer, map[string]interface{}{"type": domain.MsgTypeSendGift, "gift_type": "heart", "quantity": "2"})
	gift := await(t, host, domain.MsgTypeGift)
	assert.EqualValues(t, 20, gift["total_cost"])
	await(t, viewer, domain.MsgTypeGift)
	wallet := await(t, viewer, domain.MsgTypeWallet)
	assert.EqualValues(t, 980, wallet["balance"])

	status, env = getJSON(t, srv.URL+"/api/v1/rooms/studio")
	require.Equal(t, http.StatusOK, status)
	var room service.RoomView
	require.NoError(t, json.Unmarshal(env.Data, &room))
	assert.True(t, room.IsLive)
	assert.Equal(t, int64(20), room.GiftTotal)
}

func TestWebSocketRejectsMalformedInput(t *testing.T) {
	srv := newTestServer(t, ice.NewStaticBroker(nil))
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, domain.ErrCodeBadRequest, await(t, conn, domain.MsgTypeError)["code"])

	send(t, conn, map[string]string{"type": domain.MsgTypeJoinRoom, "room_id": "   "})
	assert.Equal(t, domain.ErrCodeBadRequest, await(t, conn, domain.MsgTypeError)["code"])

	send(t, conn, map[string]string{"type": domain.MsgTypeJoinRoom, "room_id": "r1"})
	assert.Equal(t, "role is required", await(t, conn, domain.MsgTypeError)["message"])

	send(t, conn, map[string]string{"type": "teleport"})
	assert.Equal(t, domain.ErrCodeBadRequest, await(t, conn, domain.MsgTypeError)["code"])

	send(t, conn, map[string]string{"type": domain.MsgTypeChat, "text": "hi"})
	assert.Equal(t, domain.ErrCodeNotInRoom, await(t, conn, domain.MsgTypeError)["code"])

	send(t, conn, map[string]string{"type": domain.MsgTypePing})
	await(t, conn, domain.MsgTypePong)
}
