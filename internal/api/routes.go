package api

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"stopwatch-widget/backend/internal/clock"
	"stopwatch-widget/backend/internal/stopwatch"
	"stopwatch-widget/backend/internal/util"
	"stopwatch-widget/backend/web"
)

const (
	emptyLapText         = "No laps recorded yet"
	slowRequestThreshold = 250 * time.Millisecond
)

// Config defines server dependencies.
type Config struct {
	TickInterval   time.Duration
	AllowedOrigins []string
	Clock          clock.Clock
}

// Server wires HTTP handlers with the stopwatch controller and the
// websocket display stream.
type Server struct {
	mu             sync.Mutex
	controller     *stopwatch.Controller
	notifier       *DisplayNotifier
	clk            clock.Clock
	tickInterval   time.Duration
	allowedOrigins []string
}

// NewServer constructs the API server with an initial stopped
// controller.
func NewServer(cfg Config) (*Server, error) {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System{}
	}

	notifier := NewDisplayNotifier()
	controller, err := stopwatch.New(clk, notifier, cfg.TickInterval)
	if err != nil {
		return nil, fmt.Errorf("stopwatch controller: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"session": controller.ID(),
		"tick":    cfg.TickInterval,
	}).Info("stopwatch controller created")

	return &Server{
		controller:     controller,
		notifier:       notifier,
		clk:            clk,
		tickInterval:   cfg.TickInterval,
		allowedOrigins: cfg.AllowedOrigins,
	}, nil
}

// Close tears down the active controller.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.controller != nil {
		s.controller.Close()
	}
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()
	r.Use(requestTimer())

	corsCfg := cors.DefaultConfig()
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
		corsCfg.AllowCredentials = true
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/", s.handleIndex)
	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)

	api := r.Group("/api")
	{
		api.POST("/stopwatch/start", s.handleStart)
		api.POST("/stopwatch/pause", s.handlePause)
		api.POST("/stopwatch/reset", s.handleReset)
		api.POST("/stopwatch/lap", s.handleLap)
		api.GET("/stopwatch/state", s.handleState)
		api.GET("/stopwatch/stream", s.handleStream)
		api.POST("/session", s.handleNewSession)
	}

	return r, nil
}

// requestTimer logs requests that run longer than the slow-request
// threshold.
func requestTimer() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := util.StartTimer()
		c.Next()
		if elapsed := timer.Elapsed(); elapsed > slowRequestThreshold {
			logrus.WithFields(logrus.Fields{
				"method":   c.Request.Method,
				"path":     c.FullPath(),
				"duration": elapsed,
			}).Warn("slow request")
		}
	}
}

func (s *Server) current() *stopwatch.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", web.Index)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	controller := s.current()
	tick := s.tickInterval
	if tick <= 0 {
		tick = stopwatch.DefaultTickInterval
	}
	c.JSON(http.StatusOK, ConfigResponse{
		SessionID:    controller.ID(),
		TickMs:       tick.Milliseconds(),
		EmptyLapText: emptyLapText,
		Origins:      s.allowedOrigins,
	})
}

func (s *Server) handleStart(c *gin.Context) {
	controller := s.current()
	controller.Start()
	c.JSON(http.StatusOK, controller.State())
}

func (s *Server) handlePause(c *gin.Context) {
	controller := s.current()
	controller.Pause()
	c.JSON(http.StatusOK, controller.State())
}

func (s *Server) handleReset(c *gin.Context) {
	controller := s.current()
	controller.Reset()
	c.JSON(http.StatusOK, controller.State())
}

func (s *Server) handleLap(c *gin.Context) {
	controller := s.current()
	controller.Lap()
	c.JSON(http.StatusOK, controller.State())
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.current().State())
}

// handleNewSession tears down the active controller and replaces it
// with a fresh one. Only one controller runs at a time.
func (s *Server) handleNewSession(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.controller != nil {
		s.controller.Close()
	}
	controller, err := stopwatch.New(s.clk, s.notifier, s.tickInterval)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	s.controller = controller
	logrus.WithField("session", controller.ID()).Info("stopwatch session replaced")

	c.JSON(http.StatusOK, SessionResponse{
		SessionID: controller.ID(),
		CreatedAt: time.Now().UTC(),
	})
}

func (s *Server) handleStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("display websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("display websocket closed")
			} else {
				logrus.WithError(err).Warn("display websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
