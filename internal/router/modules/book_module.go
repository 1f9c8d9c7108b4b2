package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Melih7342/bookmanager/internal/domain/policy"
	handlers "github.com/Melih7342/bookmanager/internal/interface/http"
	"github.com/Melih7342/bookmanager/internal/interface/middleware"
)

// BookModule serves the catalog under /books. Reads need any role, writes need admin.
type BookModule struct {
	Handler *handlers.BookHandler
	Redis   *redis.Client
}

func NewBookModule(h *handlers.BookHandler, rdb *redis.Client) *BookModule {
	return &BookModule{Handler: h, Redis: rdb}
}

func (m *BookModule) Register(rg *gin.RouterGroup) {
	books := rg.Group("/books")
	books.Use(
		middleware.Authorize(policy.ResourceBooks),
		middleware.RateLimit(m.Redis, 300, time.Minute, middleware.KeyByUsername(), nil),
	)
	{
		books.GET("", m.Handler.List)
		books.GET("/search", m.Handler.Search)
		books.GET("/:isbn", m.Handler.Get)

		books.POST("", m.Handler.Add)
		books.POST("/bulk", m.Handler.AddBulk)
		books.PATCH("/bulk", m.Handler.UpdateBulk)
		books.PATCH("/:isbn", m.Handler.Update)
		books.DELETE("/bulk", m.Handler.RemoveBulk)
		books.DELETE("/:isbn", m.Handler.Remove)
	}
}
