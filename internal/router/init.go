package router

import (
	"context"
	"time"

	"github.com/Melih7342/bookmanager/internal/container"
	handlers "github.com/Melih7342/bookmanager/internal/interface/http"
	"github.com/Melih7342/bookmanager/internal/interface/middleware"
	"github.com/Melih7342/bookmanager/internal/router/modules"
	"github.com/Melih7342/bookmanager/pkg/helpers"
)

// InitModules builds handlers from the container and registers every API module.
// Call once during startup, after the services are in the container.
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	rdb := container.GetRedis()
	users := container.GetUserService()

	r.AddRoot(modules.NewHealthModule(healthChecks()))
	r.Use(middleware.Authenticate(users, container.GetJWT(), logger))

	r.Add(modules.NewUserModule(
		handlers.NewUserHandler(users, container.GetJWT(), logger),
		rdb,
		cfg.RateLimitAuthPerMin,
	))
	r.Add(modules.NewBookModule(
		handlers.NewBookHandler(container.GetBookService(), logger),
		rdb,
	))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(rdb))
	}
}

// healthChecks pings every optional dependency present in the container.
func healthChecks() map[string]modules.Check {
	checks := map[string]modules.Check{}
	if pool := container.GetPGPool(); pool != nil {
		checks["postgres"] = pool.Ping
	}
	if rdb := container.GetRedis(); rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if pub := container.GetRabbitPub(); pub != nil {
		checks["rabbitmq"] = pub.Ping
	}
	if es := container.GetES(); es != nil {
		checks["elasticsearch"] = func(ctx context.Context) error { return helpers.PingES(ctx, es, 2*time.Second) }
	}
	return checks
}
