package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Melih7342/bookmanager/internal/application"
	"github.com/Melih7342/bookmanager/internal/domain/entity"
	"github.com/Melih7342/bookmanager/internal/domain/policy"
	"github.com/Melih7342/bookmanager/internal/interface/middleware"
	"github.com/Melih7342/bookmanager/pkg/helpers"
	"github.com/Melih7342/bookmanager/pkg/response"
)

// UserAccounts is the part of the user service the handlers call.
type UserAccounts interface {
	Register(ctx context.Context, username, password string) (application.Profile, error)
	Login(ctx context.Context, username, password string) (application.Profile, error)
	GetProfile(ctx context.Context, username string) (application.Profile, error)
	DeactivateAccount(ctx context.Context, username, password string) error
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
	ReadingList(ctx context.Context, username string, list application.ReadingList) ([]entity.Book, error)
	MarkAsCurrentlyReading(ctx context.Context, username, isbn string) error
	MarkAsRead(ctx context.Context, username, isbn string) error
}

type UserHandler struct {
	Svc    UserAccounts
	JWT    *helpers.JWTManager
	Logger *logrus.Logger
}

func NewUserHandler(svc UserAccounts, jwt *helpers.JWTManager, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, JWT: jwt, Logger: logger}
}

type registerRequest struct {
	Username string `json:"username" binding:"required,uname"`
	Password string `json:"password" binding:"required,pwd"`
}

// loginRequest skips the password rules so seeded demo accounts can log in.
type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type deactivateRequest struct {
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,pwd"`
}

type loginResponse struct {
	User        application.Profile `json:"user"`
	AccessToken string              `json:"access_token,omitempty"`
	ExpiresAt   *time.Time          `json:"expires_at,omitempty"`
}

func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	p, err := h.Svc.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Header("Location", "/api/user/"+p.Username)
	response.Success(c, http.StatusCreated, p, "User registered successfully", nil)
}

func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	p, err := h.Svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	res := loginResponse{User: p}
	if h.JWT != nil {
		tok, exp, err := h.JWT.GenerateAccessToken(p.Username, string(p.Role), p.CredentialVersion)
		if err != nil {
			respondError(c, h.Logger, err)
			return
		}
		res.AccessToken, res.ExpiresAt = tok, &exp
	}
	response.Success(c, http.StatusOK, res, "Login successful", nil)
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	p, err := h.Svc.GetProfile(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, p, "profile", nil)
}

func (h *UserHandler) Deactivate(c *gin.Context) {
	username := c.Param("username")
	if !h.ownerOrAdmin(c, username) {
		return
	}
	var req deactivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	if err := h.Svc.DeactivateAccount(c.Request.Context(), username, req.Password); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, "Account "+username+" deactivated", nil)
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	username := c.Param("username")
	if !h.ownerOrAdmin(c, username) {
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	if err := h.Svc.ChangePassword(c.Request.Context(), username, req.OldPassword, req.NewPassword); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, "Password changed successfully", nil)
}

func (h *UserHandler) CurrentlyReading(c *gin.Context) {
	h.readingList(c, application.CurrentlyReading)
}

func (h *UserHandler) ReadBooks(c *gin.Context) {
	h.readingList(c, application.Read)
}

func (h *UserHandler) readingList(c *gin.Context, list application.ReadingList) {
	books, err := h.Svc.ReadingList(c.Request.Context(), c.Param("username"), list)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, books, "reading list", map[string]any{"count": len(books)})
}

func (h *UserHandler) MarkCurrentlyReading(c *gin.Context) {
	if err := h.Svc.MarkAsCurrentlyReading(c.Request.Context(), middleware.Username(c), c.Param("isbn")); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, "Book successfully marked as currently reading", nil)
}

func (h *UserHandler) MarkRead(c *gin.Context) {
	if err := h.Svc.MarkAsRead(c.Request.Context(), middleware.Username(c), c.Param("isbn")); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, "Book successfully marked as read", nil)
}

// ownerOrAdmin lets a caller manage only their own account unless they are an admin.
func (h *UserHandler) ownerOrAdmin(c *gin.Context, username string) bool {
	if middleware.Username(c) == username || middleware.Role(c) == entity.RoleAdmin {
		return true
	}
	respondError(c, h.Logger, policy.ErrAuthorizationDenied)
	return false
}
