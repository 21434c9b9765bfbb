package handler

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/parleyhq/parley/internal/auth/jwt"
	"github.com/parleyhq/parley/internal/chatserver/database"
	"github.com/parleyhq/parley/internal/common/dto"
	"github.com/parleyhq/parley/internal/i18n"
)

// Auth handles admin authentication for the dashboard.
type Auth struct {
	db         database.Database
	jwtService *jwt.Service
}

// NewAuth creates a new authentication handler
func NewAuth(db database.Database, jwtService *jwt.Service) *Auth {
	return &Auth{
		db:         db,
		jwtService: jwtService,
	}
}

// Login handles admin login
func (h *Auth) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		i18n.RespondWithError(c, i18n.ErrBadRequest.WithParam("Reason", err.Error()))
		return
	}

	user, err := h.db.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		i18n.RespondWithError(c, i18n.ErrorInvalidCredentials)
		return
	}

	if !user.IsActive {
		i18n.RespondWithError(c, i18n.ErrorUserDisabled)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		i18n.RespondWithError(c, i18n.ErrorInvalidCredentials)
		return
	}

	token, err := h.jwtService.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		i18n.RespondWithError(c, i18n.ErrInternalServer.WithParam("Reason", "Failed to generate token"))
		return
	}

	i18n.Success(i18n.SuccessLogin).WithPayload(gin.H{
		"token": token,
		"user": dto.UserInfo{
			ID:       user.ID,
			Username: user.Username,
			Role:     user.Role,
		},
	}).Send(c)
}

// ChangePassword handles admin password change requests
func (h *Auth) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		i18n.RespondWithError(c, i18n.ErrBadRequest.WithParam("Reason", "invalid request"))
		return
	}

	claims, exists := c.Get("claims")
	if !exists {
		i18n.RespondWithError(c, i18n.ErrUnauthorized)
		return
	}
	jwtClaims := claims.(*jwt.Claims)

	user, err := h.db.GetUserByUsername(c.Request.Context(), jwtClaims.Username)
	if err != nil {
		i18n.RespondWithError(c, i18n.ErrInternalServer.WithParam("Reason", "Failed to get user"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		i18n.RespondWithError(c, i18n.ErrorInvalidOldPassword)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		i18n.RespondWithError(c, i18n.ErrInternalServer.WithParam("Reason", "Failed to hash password"))
		return
	}

	if err := h.db.UpdateUserPassword(c.Request.Context(), user.Username, string(hashedPassword)); err != nil {
		i18n.RespondWithError(c, i18n.ErrInternalServer.WithParam("Reason", "Failed to update password"))
		return
	}

	i18n.Success(i18n.SuccessPasswordChanged).Send(c)
}
