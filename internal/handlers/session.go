package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartsupply/agent/internal/auth"
	"github.com/smartsupply/agent/pkg/response"
)

// SessionService is the session lifecycle as seen by the HTTP layer.
type SessionService interface {
	Login(ctx context.Context, token string) (auth.Session, error)
	Logout(ctx context.Context) error
	Current() (auth.Session, bool)
}

// SessionHandler exposes login, logout and the current session.
type SessionHandler struct {
	sessions SessionService
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(sessions SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type loginRequest struct {
	Token string `json:"token" validate:"required"`
}

// Login starts a session with the token issued by the Smart Supply API.
func (h *SessionHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	session, err := h.sessions.Login(requestContext(c), req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, session)
}

// Logout ends the current session. Logging out twice is not an error.
func (h *SessionHandler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(requestContext(c)); err != nil && !errors.Is(err, auth.ErrNotLoggedIn) {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"loggedOut": true})
}

// Current returns the active session.
func (h *SessionHandler) Current(c *gin.Context) {
	session, ok := h.sessions.Current()
	if !ok {
		writeError(c, auth.ErrNotLoggedIn)
		return
	}
	response.Success(c, http.StatusOK, session)
}
