package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ophion/companion/internal/application/services"
	"github.com/ophion/companion/internal/infrastructure/logger"
)

// ChatHandler streams assistant replies
type ChatHandler struct {
	chat   *services.ChatService
	logger *logger.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat *services.ChatService, logger *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: logger,
	}
}

// History godoc
// @Summary Conversation so far
// @Tags chat
// @Produce json
// @Success 200 {array} entities.ChatMessage
// @Security BearerAuth
// @Router /chat/messages [get]
func (h *ChatHandler) History(c echo.Context) error {
	return c.JSON(http.StatusOK, h.chat.History(userIDFromContext(c)))
}

// Send godoc
// @Summary Send a chat message
// @Description Server-Sent Events: delta events while the reply streams, then done with the final message, or error with the apology text
// @Tags chat
// @Accept json
// @Produce text/event-stream
// @Param request body ChatRequest true "Message"
// @Security BearerAuth
// @Router /chat/messages [post]
func (h *ChatHandler) Send(c echo.Context) error {
	var req ChatRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	stream := openEventStream(c)
	var writeErr error
	reply, failed := h.chat.Send(c.Request().Context(), userIDFromContext(c), req.Text, func(delta string) {
		if writeErr == nil {
			writeErr = stream.send("delta", DeltaEvent{Text: delta})
		}
	})
	if writeErr != nil {
		h.logger.Debugw("Chat stream closed by client", "user_id", userIDFromContext(c), "error", writeErr.Error())
		return nil
	}

	event := "done"
	if failed {
		event = "error"
	}
	if err := stream.send(event, reply); err != nil {
		h.logger.Debugw("Chat stream closed by client", "user_id", userIDFromContext(c), "error", err.Error())
	}
	return nil
}

// Request/Response types
type ChatRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type DeltaEvent struct {
	Text string `json:"text"`
}
