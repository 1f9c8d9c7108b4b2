package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Melih7342/bookmanager/internal/application"
	"github.com/Melih7342/bookmanager/internal/domain/policy"
	"github.com/Melih7342/bookmanager/pkg/response"
	"github.com/Melih7342/bookmanager/pkg/validation"
)

// errorMapping is checked in order; specific kinds come before the kinds they wrap.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{application.ErrUsernameTaken, http.StatusConflict, "USERNAME_TAKEN"},
	{application.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
	{application.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{application.ErrBadCredentials, http.StatusUnauthorized, "BAD_CREDENTIALS"},
	{application.ErrDisabledAccount, http.StatusForbidden, "ACCOUNT_DISABLED"},
	{policy.ErrAuthorizationDenied, http.StatusForbidden, "FORBIDDEN"},
}

// respondError translates a service error to its status and code. Unknown errors are logged
// and reported as a bare 500.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			msg := err.Error()
			if m.err == application.ErrBadCredentials {
				msg = application.ErrBadCredentials.Error()
			}
			if m.status == http.StatusUnauthorized {
				c.Header("WWW-Authenticate", `Basic realm="bookmanager"`)
			}
			response.Error[any](c, m.status, m.code, msg, nil)
			return
		}
	}
	logger.WithError(err).WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"path":       c.FullPath(),
	}).Error("request failed")
	response.Error[any](c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
}

func respondInvalid(c *gin.Context, err error) {
	response.Error[any](c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", validation.ToDetails(err))
}
