package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voxa/backend/internal/voice"
)

// VoiceService is the subset of the session manager the control plane needs.
type VoiceService interface {
	Join(ctx context.Context, guildID, channelID string) voice.Result
	Leave(ctx context.Context, guildID, channelID string) voice.Result
	Status() []voice.SessionStatus
	AutoJoin(ctx context.Context) voice.Result
}

// Server exposes the voice operations over HTTP for operators and other
// services. Policy rejections keep HTTP 200 with ok=false in the body; only
// transport-level problems (bad JSON, missing auth) use error status codes.
type Server struct {
	voice    VoiceService
	apiToken string
	logger   *zap.Logger
}

// NewServer creates a new control-plane server
func NewServer(voiceSvc VoiceService, apiToken string, logger *zap.Logger) *Server {
	return &Server{
		voice:    voiceSvc,
		apiToken: apiToken,
		logger:   logger,
	}
}

// Router builds the Gin router with all routes registered.
func (s *Server) Router(production bool) *gin.Engine {
	if production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(s.logger))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api")
	api.Use(s.authorize())
	{
		api.POST("/voice/join", func(c *gin.Context) {
			var req struct {
				GuildID   string `json:"guild_id" binding:"required"`
				ChannelID string `json:"channel_id" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, s.voice.Join(c.Request.Context(), req.GuildID, req.ChannelID))
		})

		api.POST("/voice/leave", func(c *gin.Context) {
			// channel_id is optional; without it the guild's current channel
			// is left, whichever it is.
			var req struct {
				GuildID   string `json:"guild_id" binding:"required"`
				ChannelID string `json:"channel_id"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, s.voice.Leave(c.Request.Context(), req.GuildID, req.ChannelID))
		})

		api.GET("/voice/status", func(c *gin.Context) {
			sessions := s.voice.Status()
			if sessions == nil {
				sessions = []voice.SessionStatus{}
			}
			c.JSON(http.StatusOK, gin.H{"sessions": sessions})
		})

		api.POST("/voice/autojoin", func(c *gin.Context) {
			c.JSON(http.StatusOK, s.voice.AutoJoin(c.Request.Context()))
		})
	}

	return router
}

// authorize gates the API behind a bearer token. An empty configured token
// disables the gate (local development).
func (s *Server) authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.apiToken == "" {
			c.Next()
			return
		}
		auth := c.GetHeader("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if auth == "" || token == auth || token != s.apiToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
