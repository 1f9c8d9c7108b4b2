package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Melih7342/bookmanager/internal/application"
	"github.com/Melih7342/bookmanager/internal/domain/entity"
	"github.com/Melih7342/bookmanager/internal/domain/policy"
	"github.com/Melih7342/bookmanager/pkg/helpers"
	"github.com/Melih7342/bookmanager/pkg/response"
)

// Gin context keys set by Authenticate.
const (
	CtxUsername = "username"
	CtxRole     = "role"
)

// Authenticator resolves request credentials to an account.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (application.Profile, error)
	Principal(ctx context.Context, username string, version int) (application.Profile, error)
}

// Authenticate reads HTTP Basic or Bearer credentials when present and stores the caller's
// username and role in the context. Requests without credentials pass through anonymous.
// Credentials that are present but wrong end the request.
func Authenticate(auth Authenticator, jwt *helpers.JWTManager, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		var (
			p   application.Profile
			err error
		)
		ctx := c.Request.Context()
		scheme, token, _ := strings.Cut(header, " ")
		switch {
		case strings.EqualFold(scheme, "Basic"):
			username, password, ok := c.Request.BasicAuth()
			if !ok {
				err = application.ErrBadCredentials
				break
			}
			p, err = auth.Login(ctx, username, password)
		case strings.EqualFold(scheme, "Bearer") && jwt != nil:
			claims, perr := jwt.ParseAccessToken(strings.TrimSpace(token))
			if perr != nil {
				err = application.ErrBadCredentials
				break
			}
			p, err = auth.Principal(ctx, claims.Subject, claims.Version)
		default:
			err = application.ErrBadCredentials
		}

		if err != nil {
			switch {
			case errors.Is(err, application.ErrDisabledAccount):
				response.Error[any](c, http.StatusForbidden, "ACCOUNT_DISABLED", "account is disabled", nil)
			case errors.Is(err, application.ErrBadCredentials):
				c.Header("WWW-Authenticate", `Basic realm="bookmanager"`)
				response.Error[any](c, http.StatusUnauthorized, "BAD_CREDENTIALS", application.ErrBadCredentials.Error(), nil)
			default:
				logger.WithError(err).WithField("request_id", c.GetString("request_id")).Error("authentication failed")
				response.Error[any](c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
			}
			return
		}

		c.Set(CtxUsername, p.Username)
		c.Set(CtxRole, p.Role)
		c.Next()
	}
}

// Authorize applies the access policy for resource to the request method.
func Authorize(resource policy.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch policy.Decide(c.Request.Method, resource, Role(c)) {
		case policy.Allowed:
			c.Next()
		case policy.Unauthenticated:
			c.Header("WWW-Authenticate", `Basic realm="bookmanager"`)
			response.Error[any](c, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required", nil)
		default:
			response.Error[any](c, http.StatusForbidden, "FORBIDDEN", policy.ErrAuthorizationDenied.Error(), nil)
		}
	}
}

// Username returns the authenticated caller, or "" for anonymous requests.
func Username(c *gin.Context) string { return c.GetString(CtxUsername) }

// Role returns the caller's role, RoleNone for anonymous requests.
func Role(c *gin.Context) entity.Role {
	if r, ok := c.Get(CtxRole); ok {
		if role, ok := r.(entity.Role); ok {
			return role
		}
	}
	return entity.RoleNone
}
