package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BioHazard786/Warpmeet/internal/config"
	"github.com/BioHazard786/Warpmeet/internal/identity"
	"github.com/BioHazard786/Warpmeet/internal/metrics"
	"github.com/BioHazard786/Warpmeet/internal/relay"
	"github.com/BioHazard786/Warpmeet/internal/store"
)

const guestName = "Guest"

// Server exposes the relay hub and the REST API over HTTP.
type Server struct {
	cfg      *config.Server
	hub      *relay.Hub
	store    store.Store
	ids      identity.Resolver
	metrics  *metrics.Metrics
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func New(cfg *config.Server, hub *relay.Hub, st store.Store, ids identity.Resolver, m *metrics.Metrics, log *zap.Logger) *Server {
	s := &Server{cfg: cfg, hub: hub, store: st, ids: ids, metrics: m, log: log}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  64 * 1024, // 64 KB
		WriteBufferSize: 64 * 1024, // 64 KB
		CheckOrigin: func(r *http.Request) bool {
			return cfg.OriginAllowed(r.Header.Get("Origin"))
		},
	}
	return s
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	r.GET("/ws", s.serveWs)

	api := r.Group("/api/v1")
	api.GET("/history", s.listHistory)
	api.POST("/history", s.addHistory)
	return r
}

func (s *Server) health(c *gin.Context) {
	c.String(http.StatusOK, "Signaling server is healthy.")
}

// serveWs upgrades the connection and runs it until the peer goes away.
func (s *Server) serveWs(c *gin.Context) {
	name := s.displayName(c)

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	client := &relay.Client{
		Hub:     s.hub,
		Conn:    conn,
		Session: relay.NewSession(name, s.cfg.SendBuffer),
	}
	client.Serve(c.Request.Context())
}

// displayName prefers the resolved identity, then the name query parameter.
func (s *Server) displayName(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		id, err := s.ids.Resolve(c.Request.Context(), token)
		if err == nil && id.Name != "" {
			return id.Name
		}
		if err != nil {
			s.log.Debug("token not resolved", zap.Error(err))
		}
	}
	if name := strings.TrimSpace(c.Query("name")); name != "" {
		return name
	}
	return guestName
}

type addHistoryRequest struct {
	MeetingCode string `json:"meeting_code" binding:"required"`
}

func (s *Server) addHistory(c *gin.Context) {
	id, ok := s.authenticate(c)
	if !ok {
		return
	}
	var req addHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "meeting_code is required"})
		return
	}

	m := store.Meeting{
		ID:          uuid.NewString(),
		User:        id.ID,
		MeetingCode: relay.SanitizeRoom(req.MeetingCode),
		CreatedAt:   time.Now().UTC(),
	}
	if m.MeetingCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting code"})
		return
	}
	if err := s.store.AppendMeeting(c.Request.Context(), m); err != nil {
		s.log.Error("append meeting failed", zap.String("user", id.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (s *Server) listHistory(c *gin.Context) {
	id, ok := s.authenticate(c)
	if !ok {
		return
	}
	meetings, err := s.store.Meetings(c.Request.Context(), id.ID)
	if err != nil {
		s.log.Error("list meetings failed", zap.String("user", id.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	if meetings == nil {
		meetings = []store.Meeting{}
	}
	c.JSON(http.StatusOK, meetings)
}

// authenticate resolves the bearer token or writes the error response.
func (s *Server) authenticate(c *gin.Context) (identity.Identity, bool) {
	token, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	if !found || token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return identity.Identity{}, false
	}

	id, err := s.ids.Resolve(c.Request.Context(), token)
	switch {
	case errors.Is(err, identity.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return identity.Identity{}, false
	case err != nil:
		s.log.Error("identity lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return identity.Identity{}, false
	}
	return id, true
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
