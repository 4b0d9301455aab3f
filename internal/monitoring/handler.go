package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/claimwatch/claim-analysis/pkg/common"
	"github.com/claimwatch/claim-analysis/pkg/websocket"
)

// Handler exposes the monitoring surface: metrics, alerts, and the live
// alert stream.
type Handler struct {
	service  *Service
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
	log      *zap.Logger
}

// NewHandler creates a monitoring handler. hub may be nil when the live
// stream is disabled.
func NewHandler(service *Service, hub *websocket.Hub, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		service: service,
		hub:     hub,
		upgrader: gorillaws.Upgrader{
			CheckOrigin:      func(r *http.Request) bool { return true },
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// RegisterRoutes mounts the monitoring endpoints on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	fraud := rg.Group("/fraud")
	{
		fraud.GET("/metrics", h.GetMetrics)
		fraud.GET("/alerts", h.GetAlerts)
		fraud.DELETE("/alerts", h.ClearAlerts)
		fraud.GET("/alerts/stream", h.StreamAlerts)
	}
}

// GetMetrics returns the aggregate fraud metrics.
func (h *Handler) GetMetrics(c *gin.Context) {
	common.SuccessResponse(c, h.service.GetMetrics())
}

// GetAlerts returns the most recent alerts, newest first. The optional
// limit query parameter caps the count; it defaults to 10.
func (h *Handler) GetAlerts(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			common.ErrorResponse(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	common.SuccessResponse(c, h.service.GetRecentAlerts(limit))
}

// ClearAlerts drops all retained alerts.
func (h *Handler) ClearAlerts(c *gin.Context) {
	h.service.ClearAlerts()
	common.NoContentResponse(c)
}

// StreamAlerts upgrades the connection and subscribes it to broadcast
// fraud alerts and analysis completion events.
func (h *Handler) StreamAlerts(c *gin.Context) {
	if h.hub == nil {
		common.ErrorResponse(c, http.StatusServiceUnavailable, "alert streaming is not enabled")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := websocket.NewClient(uuid.New().String(), conn, h.hub, h.log)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
