package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"greening/internal/apperrors"
	"greening/internal/auth"
	"greening/internal/logger"
)

const usernameKey = "username"

type loginReq struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

var errInvalidCredentials = apperrors.Unauthorized("invalid credentials", nil)

// POST /api/login
func LoginHandler(storage *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginReq
		if err := c.ShouldBind(&req); err != nil {
			respondError(c, bindError(err))
			return
		}

		hash, err := storage.Accounts.PasswordHash(c.Request.Context(), req.Username)
		if apperrors.IsNotFound(err) {
			_ = auth.BurnCompare(req.Password)
			respondError(c, errInvalidCredentials)
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		if err := auth.CheckPassword(req.Password, hash); err != nil {
			respondError(c, errInvalidCredentials)
			return
		}

		token, exp, err := storage.Tokens.Issue(req.Username)
		if err != nil {
			respondError(c, apperrors.Internal(err))
			return
		}
		logger.Info("%s", logger.WithRequest(c.GetString(requestIDKey), "user %s logged in", req.Username))
		c.JSON(http.StatusOK, gin.H{
			"message":    "login successful",
			"token":      token,
			"expires_at": exp.Format(time.RFC3339),
		})
	}
}

// AuthRequired пропускает запрос только с действующим Bearer-токеном.
func AuthRequired(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			respondError(c, apperrors.Unauthorized("missing token", nil))
			return
		}
		scheme, raw, ok := strings.Cut(header, " ")
		raw = strings.TrimSpace(raw)
		if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
			respondError(c, apperrors.Unauthorized("invalid token", nil))
			return
		}

		claims, err := tokens.Parse(raw)
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			respondError(c, apperrors.Unauthorized("token expired", err))
			return
		case err != nil:
			respondError(c, apperrors.Unauthorized("invalid token", err))
			return
		}
		c.Set(usernameKey, claims.Username)
		c.Next()
	}
}
