package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/chatserver/database"
	"github.com/parleyhq/parley/internal/common/cnst"
	"github.com/parleyhq/parley/internal/common/dto"
	"github.com/parleyhq/parley/internal/i18n"
	"github.com/parleyhq/parley/internal/relay"
)

// Chat serves the admin dashboard's session and message endpoints. Moderation
// actions persist first, then tell the hub so connected clients hear about it.
type Chat struct {
	db     database.Database
	hub    *relay.Hub
	logger *zap.Logger
}

func NewChat(db database.Database, hub *relay.Hub, logger *zap.Logger) *Chat {
	return &Chat{
		db:     db,
		hub:    hub,
		logger: logger.Named("handler.chat"),
	}
}

// HandleCreateSession opens a chat session ahead of the websocket. Called by
// the widget, so it sits outside the admin auth group.
func (h *Chat) HandleCreateSession(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		i18n.RespondWithError(c, i18n.ErrBadRequest.WithParam("Reason", err.Error()))
		return
	}

	sessionId := req.SessionID
	if sessionId == "" {
		sessionId = uuid.NewString()
	}

	exists, err := h.db.SessionExists(c.Request.Context(), sessionId)
	if err != nil {
		i18n.RespondWithError(c, i18n.ErrInternalServer.WithParam("Reason", "Failed to check session"))
		return
	}
	if exists {
		i18n.RespondWithError(c, i18n.ErrorSessionExists)
		return
	}

	now := time.Now()
	sess := &database.Session{
		ID:            sessionId,
		DisplayName:   req.DisplayName,
		Status:        cnst.SessionActive,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	if err := h.db.CreateSession(c.Request.Context(), sess); err != nil {
		i18n.RespondWithError(c, i18n.ErrInternalServer.WithParam("Reason", "Failed to create session"))
		return
	}

	i18n.Created(i18n.SuccessSessionCreated).WithPayload(sess).Send(c)
}

// HandlePostMessage appends a visitor message over plain HTTP for clients
// without a live websocket, then hands it to the hub so any connected room
// members still hear it. Blocked sessions are rejected here.
func (h *Chat) HandlePostMessage(c *gin.Context) {
	sessionId := c.Param("sessionId")
	if sessionId == "" {
		i18n.RespondWithError(c, i18n.ErrBadRequest.WithParam("Reason", "SessionId is required"))
		return
	}

	var req dto.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		i18n.RespondWithError(c, i18n.ErrBadRequest.WithParam("Reason", err.Error()))
		return
	}

	sess, err := h.db.GetSession(c.Request.Context(), sessionId)
	if err != nil {
		if errors.Is(err, cnst.ErrSessionNotFound) {
			i18n.RespondWithError(c, i18n.ErrorSessionNotFound)
			return
		}
		i18n.RespondWithError(c, i18n.ErrInternalServer.WithParam("Reason", "Failed to get session"))
		return
	}
	if sess.Blocked {
		i18n.RespondWithError(c, i18n.ErrorSessionBlocked)
		return
	}

	msg := &database.Message{
		ID:        req.MessageID,
		SessionID: sessionId,
		Sender:    cnst.RoleUser,
		Body:      req.Message,
		Timestamp: time.Now().UTC(),
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if err := h.db.SaveMessage(c.Request.Context(), msg); err != nil {
		i18n.RespondWithError(c, i18n.ErrInternalServer.WithParam("Reason", "Failed to save message"))
		return
	}

	h.hub.Post(relay.Event{
		Kind:            relay.KindSendMessage,
		SessionID:       sessionId,
		Body:            req.Message,
		Sender:          cnst.RoleUser,
		ClientMessageID: msg.ID,
		Timestamp:       msg.Timestamp,
	})

	i18n.Created(i18n.SuccessMessageSent).WithPayload(msg).Send(c)
}

func (h *Chat) HandleGetChatSessions(c *gin.Context) {
	page, pageSize := pagination(c, 50)

	sessions, err := h.db.GetSessions(c.Request.Context(), page, pageSize)
	if err != nil {
		i18n.RespondWithError(c, i18n.ErrInternalServer.WithParam("Reason", "Failed to get chat sessions"))
		return
	}
	i18n.Success(i18n.SuccessChatSessions).WithPayload(sessions).Send(c)
}

func (h *Chat) HandleGetChatMessages(c *gin.Context) {
	sessionId := c.Param("sessionId")
	if sessionId == "" {
		i18n.RespondWithError(c, i18n.ErrBadRequest.WithParam("Reason", "SessionId is required"))
		return
	}

	page, pageSize := pagination(c, 20)

	messages, err := h.db.GetMessagesWithPagination(c.Request.Context(), sessionId, page, pageSize)
	if err != nil {
		i18n.RespondWithError(c, i18n.ErrInternalServer.WithParam("Reason", "Failed to get messages"))
		return
	}

	i18n.Success(i18n.SuccessChatMessages).WithPayload(messages).Send(c)
}

// HandleMarkRead marks the visitor's messages in a session as read and
// notifies the room.
func (h *Chat) HandleMarkRead(c *gin.Context) {
	sessionId := c.Param("sessionId")
	if sessionId == "" {
		i18n.RespondWithError(c, i18n.ErrBadRequest.WithParam("Reason", "SessionId is required"))
		return
	}

	if err := h.db.MarkRead(c.Request.Context(), sessionId, cnst.RoleUser); err != nil {
		i18n.RespondWithError(c, i18n.ErrInternalServer.WithParam("Reason", "Failed to mark messages read"))
		return
	}

	h.hub.Post(relay.Event{
		Kind:      relay.KindMarkRead,
		SessionID: sessionId,
		Sender:    cnst.RoleAdmin,
	})

	i18n.Success(i18n.SuccessMessagesRead).Send(c)
}

// HandleDeleteSession removes a session and its messages, then notifies
// everyone still connected to its room.
func (h *Chat) HandleDeleteSession(c *gin.Context) {
	sessionId := c.Param("sessionId")
	if sessionId == "" {
		i18n.RespondWithError(c, i18n.ErrBadRequest.WithParam("Reason", "SessionId is required"))
		return
	}

	if err := h.db.DeleteSession(c.Request.Context(), sessionId); err != nil {
		if errors.Is(err, cnst.ErrSessionNotFound) {
			i18n.RespondWithError(c, i18n.ErrorSessionNotFound)
			return
		}
		i18n.RespondWithError(c, i18n.ErrInternalServer.WithParam("Reason", "Failed to delete session"))
		return
	}

	h.logger.Info("chat session deleted", zap.String("sessionId", sessionId))
	h.hub.Post(relay.Event{
		Kind:      relay.KindSessionDeleted,
		SessionID: sessionId,
	})

	i18n.Success(i18n.SuccessSessionDeleted).Send(c)
}

// HandleBlockSession flags a session as blocked and notifies its room.
func (h *Chat) HandleBlockSession(c *gin.Context) {
	h.setBlocked(c, true)
}

// HandleUnblockSession clears the blocked flag. No notification: the visitor
// discovers it the next time a message goes through.
func (h *Chat) HandleUnblockSession(c *gin.Context) {
	h.setBlocked(c, false)
}

func (h *Chat) setBlocked(c *gin.Context, blocked bool) {
	sessionId := c.Param("sessionId")
	if sessionId == "" {
		i18n.RespondWithError(c, i18n.ErrBadRequest.WithParam("Reason", "SessionId is required"))
		return
	}

	if err := h.db.SetBlocked(c.Request.Context(), sessionId, blocked); err != nil {
		if errors.Is(err, cnst.ErrSessionNotFound) {
			i18n.RespondWithError(c, i18n.ErrorSessionNotFound)
			return
		}
		i18n.RespondWithError(c, i18n.ErrInternalServer.WithParam("Reason", "Failed to update session"))
		return
	}

	if blocked {
		h.logger.Info("chat session blocked", zap.String("sessionId", sessionId))
		h.hub.Post(relay.Event{
			Kind:      relay.KindUserBlocked,
			SessionID: sessionId,
		})
		i18n.Success(i18n.SuccessSessionBlocked).Send(c)
		return
	}

	i18n.Success(i18n.SuccessSessionUnblocked).Send(c)
}

// pagination reads page/pageSize query parameters, clamping pageSize to 100.
func pagination(c *gin.Context, defaultSize int) (int, int) {
	page := 1
	if pageStr := c.Query("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	pageSize := defaultSize
	if pageSizeStr := c.Query("pageSize"); pageSizeStr != "" {
		if ps, err := strconv.Atoi(pageSizeStr); err == nil && ps > 0 && ps <= 100 {
			pageSize = ps
		}
	}
	return page, pageSize
}
