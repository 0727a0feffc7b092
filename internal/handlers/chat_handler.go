package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/harentsoaR/telehealth-api/internal/services"
)

func (h *Handler) SendMessage(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var req services.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	msg, err := h.Chat.Send(c.Request.Context(), who, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) GetConversation(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	messages, err := h.Chat.History(c.Request.Context(), who, c.Param("peerId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// ChatSocket upgrades to a websocket subscribed to the caller's own topic.
// The upgrader writes its own error response on failure.
func (h *Handler) ChatSocket(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	if err := h.Hub.Serve(c.Writer, c.Request, who.ID.Hex()); err != nil {
		zerolog.Ctx(c.Request.Context()).Warn().Err(err).Msg("websocket upgrade failed")
	}
}
