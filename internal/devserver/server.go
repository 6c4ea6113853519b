// Package devserver is an in-memory server speaking the push-channel
// protocol (websocket and long-polling) and the durable message and
// notification API. It backs local development and end-to-end tests.
package devserver

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Config configures a Server.
type Config struct {
	JWTSecret      string
	TokenTTL       time.Duration
	AllowedOrigins []string

	// PollHold is how long a long-poll waits for frames before answering
	// empty.
	PollHold time.Duration
	// PollIdleTimeout drops polling sessions that stopped polling.
	PollIdleTimeout time.Duration
	// PingPeriod is the websocket keepalive period.
	PingPeriod time.Duration

	// RealtimePath and APIPath prefix the push channel and the durable API.
	RealtimePath string
	APIPath      string

	// AccessLog enables gin's request log.
	AccessLog bool
	Logger    *slog.Logger
}

func (c *Config) defaults() {
	if c.TokenTTL <= 0 {
		c.TokenTTL = 24 * time.Hour
	}
	if c.PollHold <= 0 {
		c.PollHold = 25 * time.Second
	}
	if c.PollIdleTimeout <= 0 {
		c.PollIdleTimeout = 2 * time.Minute
	}
	if c.PingPeriod <= 0 {
		c.PingPeriod = (pongWait * 9) / 10
	}
	if c.RealtimePath == "" {
		c.RealtimePath = "/realtime"
	}
	if c.APIPath == "" {
		c.APIPath = "/api/v1"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type Server struct {
	cfg    Config
	logger *slog.Logger
	engine *gin.Engine
	auth   *AuthMiddleware
	hub    *Hub
	polls  *pollSessions
	store  *store

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New builds the server and starts its idle-session reaper. Call Close to
// stop it.
func New(cfg Config) *Server {
	cfg.defaults()
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		engine: gin.New(),
		auth:   NewAuthMiddleware(cfg.JWTSecret),
		hub:    NewHub(cfg.Logger),
		polls:  newPollSessions(),
		store:  newStore(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.setupRoutes()
	go s.reapIdlePolls()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.Use(gin.Recovery())
	s.engine.Use(CORS(s.cfg.AllowedOrigins))
	if s.cfg.AccessLog {
		s.engine.Use(LogApi())
	}

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": s.hub.PeerCount()})
	})

	realtime := s.engine.Group(s.cfg.RealtimePath)
	realtime.Use(s.auth.RequireAuth())
	{
		realtime.GET("/ws", s.handleWebSocket)
		realtime.POST("/poll", s.openPoll)
		realtime.GET("/poll", s.poll)
		realtime.POST("/poll/emit", s.emitPoll)
		realtime.DELETE("/poll", s.closePoll)
	}

	api := s.engine.Group(s.cfg.APIPath)
	api.POST("/auth/login", s.login)

	authed := api.Group("/")
	authed.Use(s.auth.RequireAuth())
	{
		authed.POST("/messages", s.sendMessage)
		authed.GET("/rooms/:id/messages", s.roomMessages)

		notifications := authed.Group("/notifications")
		notifications.GET("", s.listNotifications)
		notifications.POST("", s.createNotification)
		notifications.GET("/unread-count", s.unreadCount)
		notifications.PATCH("/read-all", s.markAllRead)
		notifications.PATCH("/:id/read", s.markRead)
		notifications.DELETE("/:id", s.deleteNotification)
	}
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Hub exposes the room hub, for server-side broadcasts and forced
// disconnects.
func (s *Server) Hub() *Hub {
	return s.hub
}

// IssueToken signs a token the server accepts.
func (s *Server) IssueToken(userID, email string, admin bool) (string, error) {
	return s.auth.IssueToken(userID, email, admin, s.cfg.TokenTTL)
}

// Close disconnects every client and stops the reaper.
func (s *Server) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.done
		s.hub.Close()
	})
}

func (s *Server) reapIdlePolls() {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.PollIdleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, c := range s.polls.expired(time.Now().Add(-s.cfg.PollIdleTimeout)) {
				s.logger.Info("Dropping idle polling session", "sid", c.ID(), "userID", c.UserID())
				s.hub.unregister(c)
			}
		case <-s.stop:
			return
		}
	}
}
