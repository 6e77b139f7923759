package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/cubelink-project/cubelink/internal/events"
	"github.com/cubelink-project/cubelink/internal/protocol"
)

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

// sendError maps a send failure onto an HTTP status.
func sendError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, protocol.ErrPhaseViolation):
		status = http.StatusConflict
	case errors.Is(err, protocol.ErrQueueFull):
		status = http.StatusServiceUnavailable
	case errors.Is(err, protocol.ErrClosed):
		status = http.StatusGone
	case errors.Is(err, protocol.ErrOutOfBounds):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// handleChat routes a chat line through the bus to the session.
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	if len(req.Message) > protocol.MaxChatLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message too long", "max": protocol.MaxChatLength})
		return
	}
	if s.bus.HandlerCount(events.EventSendChat) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no active session"})
		return
	}

	err := s.bus.EmitSync(c.Request.Context(), events.Event{
		Type:    events.EventSendChat,
		Source:  "api",
		Payload: events.SendChatPayload{Message: req.Message},
	})
	if err != nil {
		sendError(c, err)
		return
	}

	log.Info().Str("component", "api").Str("message", req.Message).Msg("chat sent")
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (s *Server) handleRespawn(c *gin.Context) {
	if s.bus.HandlerCount(events.EventRespawn) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no active session"})
		return
	}
	err := s.bus.EmitSync(c.Request.Context(), events.Event{Type: events.EventRespawn, Source: "api"})
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (s *Server) handleCloseWindow(c *gin.Context) {
	sess, ok := s.sessionOr503(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 8)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window id"})
		return
	}
	if err := sess.CloseWindow(uint8(id)); err != nil {
		if id == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sendError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "id": id})
}
