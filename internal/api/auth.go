package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/farosearch/faro/internal/auth"
	"github.com/farosearch/faro/internal/store"
)

// AuthHandler verifies credentials and mints session tokens.
type AuthHandler struct {
	users *store.UserStore
	log   *logrus.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(users *store.UserStore, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{users: users, log: log}
}

type authPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Auth handles GET /api/auth. On a valid password a random 64-character
// alphanumeric token is minted, persisted on the user row and returned.
func (h *AuthHandler) Auth(c *gin.Context) {
	var payload authPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, &badParamError{param: "body", reason: err.Error()})

		return
	}

	user, err := h.users.GetByUsername(c.Request.Context(), payload.Username)
	if err != nil {
		h.log.WithField("username", payload.Username).Warn("auth: user lookup failed")
		respondError(c, &authError{msg: "authentication failed", err: err})

		return
	}

	if err := auth.VerifyPassword(payload.Password, user.PasswordHash); err != nil {
		h.log.WithField("username", payload.Username).Warn("auth: password verification failed")
		respondError(c, &authError{msg: "authentication failed", err: err})

		return
	}

	token, err := auth.NewToken()
	if err != nil {
		respondError(c, err)

		return
	}

	if err := h.users.UpdateToken(c.Request.Context(), user.Username, token); err != nil {
		h.log.WithError(err).Error("auth: token persist failed")
		respondError(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"auth_token": token,
	})
}
