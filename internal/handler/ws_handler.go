package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/hub"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/ice"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/service"
	pkglog "github.com/weiawesome/wes-io-live/live-room-service/pkg/log"
)

const iceRequestTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// normalizer is implemented by inbound messages that validate themselves.
type normalizer interface {
	Normalize() error
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub     *hub.Hub
	service *service.LiveService
	relay   *service.SignalingRelay
	broker  ice.Broker
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(h *hub.Hub, svc *service.LiveService, relay *service.SignalingRelay, broker ice.Broker) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		relay:   relay,
		broker:  broker,
	}
}

// HandleWebSocket upgrades the request and starts the client pumps.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	l := pkglog.Ctx(c.Request.Context())

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	// The request context ends with the handler; keep only its logger.
	ctx := pkglog.WithConnection(pkglog.WithLogger(context.Background(), l), clientID, "")

	client := hub.NewClient(clientID, h.hub, conn)
	client.SetDisconnectHandler(func(c *hub.Client) {
		if err := h.service.Disconnect(ctx, c.ID); err != nil {
			cl := pkglog.Ctx(ctx)
			cl.Error().Err(err).Msg("disconnect handler error")
		}
	})

	h.hub.Register(client)
	if err := h.service.Connect(clientID); err != nil {
		l.Error().Err(err).Str(pkglog.FieldConnectionID, clientID).Msg("connect failed")
		h.hub.Unregister(client)
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(func(c *hub.Client, message []byte) {
		h.handleMessage(ctx, c, message)
	})
}

func (h *WSHandler) reply(clientID string, msg interface{}) {
	_ = h.hub.SendToClient(clientID, msg)
}

func (h *WSHandler) badRequest(clientID, message string) {
	h.reply(clientID, domain.NewErrorMessage(domain.ErrCodeBadRequest, message))
}

// decode unmarshals message into msg and validates it when it can normalize itself.
func (h *WSHandler) decode(clientID string, message []byte, msg interface{}) bool {
	if err := json.Unmarshal(message, msg); err != nil {
		h.badRequest(clientID, "Invalid message format")
		return false
	}
	if n, ok := msg.(normalizer); ok {
		if err := n.Normalize(); err != nil {
			h.badRequest(clientID, err.Error())
			return false
		}
	}
	return true
}

func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, message []byte) {
	l := pkglog.Ctx(ctx)
	id := client.ID
	nowMs := time.Now().UnixMilli()

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		h.badRequest(id, "Invalid message format")
		return
	}

	var err error
	switch base.Type {
	case domain.MsgTypeJoinRoom:
		var msg domain.JoinRoomMessage
		if json.Unmarshal(message, &msg) != nil {
			h.badRequest(id, "Invalid join-room message")
			return
		}
		if verr := msg.Normalize(nowMs); verr != nil {
			h.badRequest(id, verr.Error())
			return
		}
		err = h.service.Join(ctx, id, msg)

	case domain.MsgTypeLeaveRoom:
		err = h.service.Leave(ctx, id)

	case domain.MsgTypeLobbyGet:
		err = h.service.LobbyGet(id)

	case domain.MsgTypeUpdateProfile:
		var msg domain.UpdateProfileMessage
		if json.Unmarshal(message, &msg) != nil {
			h.badRequest(id, "Invalid update-profile message")
			return
		}
		_ = msg.Normalize(nowMs)
		err = h.service.UpdateProfile(ctx, id, msg.Profile)

	case domain.MsgTypeLiveStart:
		var msg domain.LiveStartMessage
		if !h.decode(id, message, &msg) {
			return
		}
		err = h.service.StartLive(ctx, id, msg.StartedAt())

	case domain.MsgTypeLiveStop:
		err = h.service.StopLive(ctx, id)

	case domain.MsgTypeChat:
		var msg domain.ChatMessage
		if !h.decode(id, message, &msg) {
			return
		}
		err = h.service.Chat(id, msg)

	case domain.MsgTypeReaction:
		var msg domain.ReactionMessage
		if !h.decode(id, message, &msg) {
			return
		}
		err = h.service.React(id, msg)

	case domain.MsgTypeSendGift:
		var msg domain.SendGiftMessage
		if !h.decode(id, message, &msg) {
			return
		}
		err = h.service.SendGift(ctx, id, msg)

	case domain.MsgTypePinNoteSet, domain.MsgTypePinNoteMove:
		var msg domain.PinNoteMessage
		if !h.decode(id, message, &msg) {
			return
		}
		if msg.Type == domain.MsgTypePinNoteSet {
			err = h.service.PinSet(id, msg)
		} else {
			err = h.service.PinMove(id, msg)
		}

	case domain.MsgTypePinNoteClear:
		err = h.service.PinClear(id)

	case domain.MsgTypeGuestRequest:
		err = h.service.RequestGuest(id)

	case domain.MsgTypeGuestCancel:
		err = h.service.CancelGuest(id)

	case domain.MsgTypeGuestApprove, domain.MsgTypeGuestReject, domain.MsgTypeGuestKick:
		var msg domain.GuestActionMessage
		if !h.decode(id, message, &msg) {
			return
		}
		switch msg.Type {
		case domain.MsgTypeGuestApprove:
			err = h.service.ApproveGuest(ctx, id, msg.GuestID)
		case domain.MsgTypeGuestReject:
			err = h.service.RejectGuest(id, msg.GuestID)
		default:
			err = h.service.KickGuest(ctx, id, msg.GuestID)
		}

	case domain.MsgTypeOffer, domain.MsgTypeAnswer, domain.MsgTypeCandidate, domain.MsgTypeRequestICERestart:
		var msg domain.SignalMessage
		if !h.decode(id, message, &msg) {
			return
		}
		h.relay.Relay(id, msg)

	case domain.MsgTypeFollow:
		err = h.service.Follow(id)

	case domain.MsgTypeUnfollow:
		err = h.service.Unfollow(id)

	case domain.MsgTypeICERequest:
		h.handleICERequest(ctx, id)

	case domain.MsgTypePing:
		h.reply(id, domain.BaseMessage{Type: domain.MsgTypePong})

	default:
		h.badRequest(id, "Unknown message type")
	}

	if err != nil {
		if errors.Is(err, service.ErrStopped) {
			h.reply(id, domain.NewErrorMessage(domain.ErrCodeInternalError, "service is shutting down"))
			return
		}
		l.Error().Err(err).Str("type", base.Type).Msg("message handling failed")
	}
}

// handleICERequest runs on the connection's reader goroutine, never on the room executor.
func (h *WSHandler) handleICERequest(ctx context.Context, clientID string) {
	ctx, cancel := context.WithTimeout(ctx, iceRequestTimeout)
	defer cancel()

	servers, err := h.broker.ICEServers(ctx)
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Msg("ice credentials unavailable")
		h.reply(clientID, domain.NewErrorMessage(domain.ErrCodeICEUnavailable, "relay credentials unavailable"))
		return
	}
	h.reply(clientID, &domain.ICEServersMessage{Type: domain.MsgTypeICEServers, Servers: servers})
}
