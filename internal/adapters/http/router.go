package http

import (
	"context"
	"net/http"
	"path/filepath"
	"slices"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/groupcall/internal/adapters/signal"
	"github.com/dkeye/groupcall/internal/app/orch"
	"github.com/dkeye/groupcall/internal/config"
	"github.com/dkeye/groupcall/internal/domain"
)

const clientTokenKey = "client_token"

// ClientTokenMiddleware gives every browser a stable token kept in the
// cookie session. It only labels logs; names come from joinRoom.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ctl *signal.SignalWSController) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("GroupCallSession", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(cfg.StaticPath, "index.html"))
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"rooms":    len(o.Rooms.List()),
			"sessions": o.Registry.Len(),
		})
	})

	r.GET("/groupcall", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	api := r.Group("/api")

	// Rooms only come into existence through joinRoom.
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": o.Rooms.List()})
	})

	api.GET("/rooms/:name/members", func(c *gin.Context) {
		name := domain.RoomName(c.Param("name"))
		room, ok := o.Rooms.Get(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrRoomNotFound.Error()})
			return
		}
		members := room.MemberNames()
		slices.Sort(members)
		c.JSON(http.StatusOK, gin.H{"room": name, "members": members})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
