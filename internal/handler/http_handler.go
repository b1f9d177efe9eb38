package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/live-room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/hub"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/ice"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/service"
	"github.com/weiawesome/wes-io-live/live-room-service/pkg/log"
	"github.com/weiawesome/wes-io-live/live-room-service/pkg/response"
)

// Handler serves the read-only HTTP API.
type Handler struct {
	service *service.LiveService
	hub     *hub.Hub
	broker  ice.Broker
	ws      *WSHandler
}

// NewHandler creates a new HTTP handler.
func NewHandler(svc *service.LiveService, h *hub.Hub, broker ice.Broker, ws *WSHandler) *Handler {
	return &Handler{
		service: svc,
		hub:     h,
		broker:  broker,
		ws:      ws,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/ws", h.ws.HandleWebSocket)
	r.GET("/api/ice-servers", h.GetICEServers)

	api := r.Group("/api/v1")
	{
		api.GET("/lobby", h.GetLobby)
		api.GET("/rooms/:room_id", h.GetRoom)
		api.GET("/gifts", h.ListGifts)
	}
}

// Health reports liveness and the number of open connections.
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{
		"status":      "ok",
		"connections": h.hub.ClientCount(),
	})
}

// GetLobby returns the live rooms in lobby order.
func (h *Handler) GetLobby(c *gin.Context) {
	l := log.Ctx(c.Request.Context())

	entries, err := h.service.Lobby()
	if err != nil {
		l.Error().Err(err).Msg("failed to read lobby")
		response.InternalError(c, "failed to read lobby")
		return
	}
	response.Success(c, gin.H{"rooms": entries})
}

// GetRoom returns one room. Unknown rooms are not created.
func (h *Handler) GetRoom(c *gin.Context) {
	l := log.Ctx(c.Request.Context())

	roomID := domain.NormalizeRoomID(c.Param("room_id"))
	if roomID == "" {
		response.BadRequest(c, "room_id is required")
		return
	}

	view, ok, err := h.service.RoomInfo(roomID)
	if err != nil {
		l.Error().Err(err).Msg("failed to read room")
		response.InternalError(c, "failed to read room")
		return
	}
	if !ok {
		response.NotFound(c, "room not found")
		return
	}
	response.Success(c, view)
}

// ListGifts returns the gift catalog.
func (h *Handler) ListGifts(c *gin.Context) {
	if !h.service.GiftsEnabled() {
		response.NotFound(c, "gifts are disabled")
		return
	}
	response.Success(c, gin.H{"gifts": h.service.Catalog()})
}

// GetICEServers returns relay-server descriptors from the credential broker.
func (h *Handler) GetICEServers(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), iceRequestTimeout)
	defer cancel()
	l := log.Ctx(ctx)

	servers, err := h.broker.ICEServers(ctx)
	if err != nil {
		l.Warn().Err(err).Msg("failed to fetch ice servers")
		msg := "relay credentials unavailable"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "relay credential request timed out"
		}
		response.BadGateway(c, domain.ErrCodeICEUnavailable, msg)
		return
	}
	response.Success(c, gin.H{"ice_servers": servers})
}
