package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/YetiPanda/jade-ecosystem-sub005/internal/middleware"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/service"
	"github.com/YetiPanda/jade-ecosystem-sub005/pkg/errcode"
	"github.com/YetiPanda/jade-ecosystem-sub005/pkg/response"
)

// MessageHandler handles message-related requests
type MessageHandler struct {
	msgService *service.MessageService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(msgService *service.MessageService) *MessageHandler {
	return &MessageHandler{msgService: msgService}
}

// SendMessage handles send message request
func (h *MessageHandler) SendMessage(ctx context.Context, c *app.RequestContext) {
	id := middleware.GetIdentity(c)
	if id.UserId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req service.SendMessageRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	msg, err := h.msgService.SendMessage(ctx, id, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg.ToMessageInfo())
}

// GetMessages handles message history request. Results are ascending by
// send time; before_ms pages backwards from a known timestamp.
func (h *MessageHandler) GetMessages(ctx context.Context, c *app.RequestContext) {
	id := middleware.GetIdentity(c)
	if id.UserId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	conversationId := c.Query("conversation_id")
	if conversationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	beforeMs, _ := strconv.ParseInt(c.Query("before_ms"), 10, 64)

	msgs, err := h.msgService.GetMessages(ctx, id, service.MessageFilter{
		ConversationId: conversationId,
		Limit:          limit,
		Offset:         offset,
		BeforeMs:       beforeMs,
	})
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msgs)
}

// FlagRequest represents flag message request
type FlagRequest struct {
	MessageId string `json:"message_id"`
	Reason    string `json:"reason"`
}

// FlagMessage handles flag message for moderation request. Admin only.
func (h *MessageHandler) FlagMessage(ctx context.Context, c *app.RequestContext) {
	id := middleware.GetIdentity(c)
	if id.UserId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req FlagRequest
	if err := c.BindAndValidate(&req); err != nil || req.MessageId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.msgService.FlagMessage(ctx, id, req.MessageId, req.Reason); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}
