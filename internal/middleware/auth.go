package middleware

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/smartsupply/agent/internal/auth"
	"github.com/smartsupply/agent/pkg/errors"
	"github.com/smartsupply/agent/pkg/response"
)

// CtxSessionKey stores the active session in the gin context.
const CtxSessionKey = "session"

// SessionSource exposes the active session.
type SessionSource interface {
	Current() (iauth.Session, bool)
}

// RequireSession rejects requests while nobody is logged in. The agent has a
// single session, so no credentials are read from the request.
func RequireSession(sessions SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := sessions.Current()
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxSessionKey, session)
		c.Next()
	}
}
