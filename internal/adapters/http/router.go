// Package http wires the REST surface and the websocket endpoint.
package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/tandem/internal/adapters/signal"
	"github.com/dkeye/tandem/internal/app"
	"github.com/dkeye/tandem/internal/auth"
	"github.com/dkeye/tandem/internal/config"
	"github.com/dkeye/tandem/internal/core"
	"github.com/dkeye/tandem/internal/domain"
)

// ClientTokenMiddleware pins a per-device token in a cookie. The websocket
// layer uses it as the channel identity, so a reconnecting device lands on
// the same channel ID.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// AuthMiddleware validates the bearer token and exposes the caller's
// identity to handlers. Websocket clients pass the token as a query
// parameter since browsers cannot set headers on an upgrade request.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if raw == "" {
			raw = c.Query("token")
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := auth.ValidateToken(secret, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("user_id", claims.UserID)
		c.Set("user_name", claims.Name)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.Controller, rooms *app.Registry) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("TandemSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	api.Use(AuthMiddleware([]byte(cfg.Secret)))

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": rooms.List()})
	})

	api.POST("/rooms", func(c *gin.Context) {
		var req struct {
			Name     string `json:"name" binding:"required"`
			Language string `json:"language" binding:"required"`
			Level    string `json:"level" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room payload"})
			return
		}
		if len(req.Name) > domain.MaxNameLen {
			req.Name = req.Name[:domain.MaxNameLen]
		}
		room := rooms.Create(domain.RoomName(req.Name), req.Language, req.Level)
		view := room.View()
		ctl.AnnounceRoomCreated(view)
		c.JSON(http.StatusCreated, view)
	})

	api.POST("/rooms/:id/cohost", func(c *gin.Context) {
		var req struct {
			UserID domain.UserID `json:"userId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cohost payload"})
			return
		}
		roomID := domain.RoomID(c.Param("id"))
		if err := rooms.AssignCoHost(roomID, req.UserID); err != nil {
			switch {
			case errors.Is(err, core.ErrNotAMember):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "user is not a member"})
			case errors.Is(err, app.ErrRoomNotFound), errors.Is(err, core.ErrRoomInactive):
				c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		ctl.AnnounceCoHost(roomID, req.UserID)
		c.Status(http.StatusNoContent)
	})

	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("channel", c.GetString("client_token")).Msg("ws endpoint hit")
		ctl.HandleChannel(ctx, c)
	})

	return r
}
