package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Melih7342/bookmanager/internal/domain/policy"
	handlers "github.com/Melih7342/bookmanager/internal/interface/http"
	"github.com/Melih7342/bookmanager/internal/interface/middleware"
)

// UserModule wires account and reading-list routes under /user.
// Public: POST /register, POST /login
// Authenticated: profile, reading lists, deactivate, change-password, marks
type UserModule struct {
	Handler         *handlers.UserHandler
	Redis           *redis.Client
	AuthLimitPerMin int
}

func NewUserModule(h *handlers.UserHandler, rdb *redis.Client, authLimitPerMin int) *UserModule {
	return &UserModule{Handler: h, Redis: rdb, AuthLimitPerMin: authLimitPerMin}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	user := rg.Group("/user")

	// Public with rate limiting per IP and route
	authLimiter := middleware.RateLimit(m.Redis, m.AuthLimitPerMin, time.Minute, middleware.KeyByIPAndPath(), middleware.AllowPrivateIP())
	open := user.Group("", middleware.Authorize(policy.ResourceAccount), authLimiter)
	{
		open.POST("/register", m.Handler.Register)
		open.POST("/login", m.Handler.Login)
	}

	auth := user.Group("",
		middleware.Authorize(policy.ResourceUsers),
		middleware.RateLimit(m.Redis, 120, time.Minute, middleware.KeyByUsername(), nil),
	)
	{
		auth.GET("/:username", m.Handler.GetProfile)
		auth.GET("/:username/currently-reading", m.Handler.CurrentlyReading)
		auth.GET("/:username/read", m.Handler.ReadBooks)
		auth.PATCH("/:username/deactivate", m.Handler.Deactivate)
		auth.PATCH("/:username/change-password", m.Handler.ChangePassword)
		auth.POST("/currently-reading/:isbn", m.Handler.MarkCurrentlyReading)
		auth.POST("/read/:isbn", m.Handler.MarkRead)
	}
}
