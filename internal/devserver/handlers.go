package devserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"notify-realtime/internal/models"
	"notify-realtime/internal/transport"
	"notify-realtime/pkg/response"
)

func (s *Server) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrCodeParamInvalid, err.Error())
		return
	}
	token, err := s.auth.IssueToken(req.UserID, req.Email, req.Admin, s.cfg.TokenTTL)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.ErrCodeInternal, err.Error())
		return
	}
	s.logger.Info("Issued dev token", "userID", req.UserID, "admin", req.Admin)
	c.JSON(http.StatusOK, models.LoginResponse{Token: token, UserID: req.UserID})
}

func (s *Server) sendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrCodeParamInvalid, err.Error())
		return
	}
	if req.MessageType != "" && !req.MessageType.IsValid() {
		response.Error(c, http.StatusBadRequest, response.ErrCodeParamInvalid, "unknown message type "+req.MessageType.String())
		return
	}

	msg := s.store.addMessage(userIDFrom(c), req)
	delivered := s.hub.PublishMessage(msg)
	s.logger.Debug("Message stored", "messageID", msg.ID, "roomID", msg.RoomID, "delivered", delivered)
	c.JSON(http.StatusCreated, msg)
}

func (s *Server) roomMessages(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.roomMessages(c.Param("id")))
}

func (s *Server) listNotifications(c *gin.Context) {
	items := s.store.listNotifications(userIDFrom(c))
	c.JSON(http.StatusOK, models.NotificationListResponse{Items: items, Total: len(items)})
}

func (s *Server) unreadCount(c *gin.Context) {
	c.JSON(http.StatusOK, models.UnreadCountResponse{Count: s.store.unreadCount(userIDFrom(c))})
}

func (s *Server) markRead(c *gin.Context) {
	id, ok := notificationID(c)
	if !ok {
		return
	}
	if err := s.store.markRead(userIDFrom(c), id); err != nil {
		notificationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) markAllRead(c *gin.Context) {
	s.store.markAllRead(userIDFrom(c))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) deleteNotification(c *gin.Context) {
	id, ok := notificationID(c)
	if !ok {
		return
	}
	if err := s.store.deleteNotification(userIDFrom(c), id); err != nil {
		notificationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) createNotification(c *gin.Context) {
	if !c.GetBool(ctxAdmin) {
		response.Error(c, http.StatusForbidden, response.ErrCodeForbidden, "sending notifications requires an admin token")
		return
	}
	var req models.SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrCodeParamInvalid, err.Error())
		return
	}
	n := s.store.addNotification(req)
	s.logger.Info("Notification created", "notificationID", n.ID, "userID", n.UserID)
	c.JSON(http.StatusCreated, n)
}

func notificationID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrCodeParamInvalid, "invalid notification id")
		return 0, false
	}
	return uint(id), true
}

func notificationError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotificationNotFound) {
		response.Error(c, http.StatusNotFound, response.ErrCodeNotFound, err.Error())
		return
	}
	response.Error(c, http.StatusInternalServerError, response.ErrCodeInternal, err.Error())
}

// Push channel

func (s *Server) handleWebSocket(c *gin.Context) {
	serveWS(s.hub, c.Writer, c.Request, userIDFrom(c), s.cfg.PingPeriod, s.logger)
}

func (s *Server) openPoll(c *gin.Context) {
	client := newPollClient(userIDFrom(c))
	s.polls.add(client)
	s.hub.register(client)
	s.logger.Info("Polling session opened", "sid", client.ID(), "userID", client.UserID(), "roomID", c.Query("roomId"))
	c.JSON(http.StatusOK, transport.OpenResponse{SID: client.ID()})
}

func (s *Server) poll(c *gin.Context) {
	client, ok := s.polls.get(c.Query("sid"), userIDFrom(c))
	if !ok {
		response.Error(c, http.StatusGone, response.ErrCodeSessionGone, "unknown session")
		return
	}
	frames, gone := client.drain(c.Request.Context(), s.cfg.PollHold)
	if gone {
		s.polls.remove(client.ID())
		s.hub.unregister(client)
		response.Error(c, http.StatusGone, response.ErrCodeSessionGone, "session closed by server")
		return
	}
	c.JSON(http.StatusOK, transport.PollResponse{Frames: frames})
}

func (s *Server) emitPoll(c *gin.Context) {
	client, ok := s.polls.get(c.Query("sid"), userIDFrom(c))
	if !ok {
		response.Error(c, http.StatusGone, response.ErrCodeSessionGone, "unknown session")
		return
	}
	var f transport.Frame
	if err := c.ShouldBindJSON(&f); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrCodeParamInvalid, err.Error())
		return
	}
	s.hub.handle(client, f)
	c.Status(http.StatusNoContent)
}

func (s *Server) closePoll(c *gin.Context) {
	client, ok := s.polls.get(c.Query("sid"), userIDFrom(c))
	if ok {
		s.polls.remove(client.ID())
		s.hub.unregister(client)
		s.logger.Info("Polling session closed", "sid", client.ID(), "userID", client.UserID())
	}
	c.Status(http.StatusNoContent)
}
