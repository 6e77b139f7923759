package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/cubelink-project/cubelink/internal/config"
	"github.com/cubelink-project/cubelink/internal/db"
	"github.com/cubelink-project/cubelink/internal/events"
	"github.com/cubelink-project/cubelink/internal/protocol"
	"github.com/cubelink-project/cubelink/internal/world"
)

// Session is the live connection as seen by the API.
type Session interface {
	World() *world.World
	Phase() protocol.Phase
	Version() protocol.Version
	Encrypted() bool
	CompressionThreshold() int32
	ConnectedAt() time.Time
	LastActivity() time.Time
	CloseWindow(id uint8) error
}

type sessionHolder struct{ s Session }

// Server is the REST API of a running client.
type Server struct {
	cfg     *config.Config
	bus     *events.EventBus
	history *db.HistoryStore
	version string

	session atomic.Pointer[sessionHolder]

	statusMu   sync.RWMutex
	lastStatus *events.StatusReceivedPayload

	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates a new API server. history may be nil when the database
// is disabled.
func NewServer(cfg *config.Config, bus *events.EventBus, history *db.HistoryStore, version string) *Server {
	if cfg.GetApplicationData().Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:     cfg,
		bus:     bus,
		history: history,
		version: version,
	}
	bus.Subscribe(events.EventStatusReceived, "api.status", s.onStatus)
	s.router = s.buildRouter()
	return s
}

// Attach makes sess the session the API reports on. Passing nil detaches.
func (s *Server) Attach(sess Session) {
	if sess == nil {
		s.session.Store(nil)
		return
	}
	s.session.Store(&sessionHolder{s: sess})
}

func (s *Server) current() (Session, bool) {
	h := s.session.Load()
	if h == nil {
		return nil, false
	}
	return h.s, true
}

func (s *Server) onStatus(ctx context.Context, e events.Event) error {
	p, ok := e.Payload.(events.StatusReceivedPayload)
	if !ok {
		return nil
	}
	s.statusMu.Lock()
	s.lastStatus = &p
	s.statusMu.Unlock()
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	app := s.cfg.GetApplicationData()
	addr := fmt.Sprintf(":%d", app.API.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if app.Security.TLSEnabled {
		s.httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	lc := listenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	log.Info().Str("addr", addr).Bool("tls", app.Security.TLSEnabled).Msg("REST API server starting")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	if app.Security.TLSEnabled {
		err = s.httpServer.ServeTLS(ln, app.Security.TLSCertFile, app.Security.TLSKeyFile)
	} else {
		err = s.httpServer.Serve(ln)
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	sec := s.cfg.GetApplicationData().Security

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	allowedOrigins := sec.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(NewRateLimiter(sec.RateLimitRPS).Middleware())
	router.Use(IPWhitelist(sec.IPWhitelist))

	public := router.Group("/api/public")
	{
		public.GET("/ping", s.handlePing)
		public.GET("/version", s.handleVersion)
		public.GET("/status", s.handleLastStatus)
	}

	protected := router.Group("/api")
	protected.Use(RequireToken(sec.APIToken))

	worldGroup := protected.Group("/world")
	{
		worldGroup.GET("/session", s.handleSession)
		worldGroup.GET("/player", s.handlePlayer)
		worldGroup.GET("/entities", s.handleEntities)
		worldGroup.GET("/entities/:id", s.handleEntity)
		worldGroup.GET("/chunks", s.handleChunks)
		worldGroup.GET("/chunks/:x/:z/sections/:section", s.handleChunkSection)
		worldGroup.GET("/blocks/:x/:y/:z", s.handleBlock)
		worldGroup.GET("/windows", s.handleWindows)
		worldGroup.GET("/windows/:id", s.handleWindow)
	}

	control := protected.Group("/control")
	{
		control.POST("/chat", s.handleChat)
		control.POST("/respawn", s.handleRespawn)
		control.POST("/windows/:id/close", s.handleCloseWindow)
	}

	history := protected.Group("/history")
	{
		history.GET("/status", s.handleStatusHistory)
		history.GET("/chat", s.handleChatHistory)
		history.GET("/sessions", s.handleSessionHistory)
	}

	system := protected.Group("/system")
	{
		system.GET("/info", s.handleSystemInfo)
		system.GET("/process", s.handleProcessStats)
		system.GET("/config", s.handleGetConfig)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
