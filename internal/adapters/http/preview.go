package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ralten/Argus/internal/adapters/render"
	"github.com/ralten/Argus/internal/app/preview"
	"github.com/ralten/Argus/internal/domain"
)

// PreviewController exposes the lifecycle controller to the dashboard.
type PreviewController struct {
	Ctrl *preview.Controller
	Hub  *render.Hub
}

type startRequest struct {
	TaskID   string `json:"task_id"`
	Endpoint string `json:"endpoint"`
}

type toggleRequest struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

func (h *PreviewController) HandleStart(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
		return
	}
	task, err := domain.NewTask(req.TaskID, req.Endpoint)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Info().Str("module", "adapters.http").Str("task_id", req.TaskID).Str("endpoint", req.Endpoint).Msg("preview start")
	h.Ctrl.Update(task, true)
	c.JSON(http.StatusOK, h.Ctrl.Snapshot())
}

func (h *PreviewController) HandleStop(c *gin.Context) {
	log.Info().Str("module", "adapters.http").Msg("preview stop")
	h.Ctrl.Stop()
	c.JSON(http.StatusOK, h.Ctrl.Snapshot())
}

func (h *PreviewController) HandleToggle(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
		return
	}
	name := domain.ToggleName(req.Name)
	if !name.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown toggle"})
		return
	}
	h.Ctrl.Toggle(name, req.Value)
	c.JSON(http.StatusOK, h.Ctrl.Snapshot())
}

func (h *PreviewController) HandleState(c *gin.Context) {
	c.JSON(http.StatusOK, h.Ctrl.Snapshot())
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleFeed upgrades to a websocket and streams status events and media
// frames until the client goes away.
func (h *PreviewController) HandleFeed(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ws upgrade")
		return
	}

	sub := render.NewSubscriber(ws)
	h.Hub.Subscribe(sub)

	ctx, cancel := context.WithCancel(ctx)
	go sub.WritePump(ctx)
	go sub.ReadPump(ctx, func() {
		cancel()
		h.Hub.Unsubscribe(sub)
	})
}
