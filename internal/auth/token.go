package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that are malformed, expired or
// rejected by the API.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenInfo is what the agent reads from a bearer token before the API has
// verified it.
type TokenInfo struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}

// Claims represents the claims the Smart Supply API embeds in its tokens.
type Claims struct {
	UserID string `json:"userId,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// InspectToken parses a JWT without checking its signature. The API remains
// the verifier; this only rejects tokens that are obviously unusable.
func InspectToken(tokenString string, now time.Time) (TokenInfo, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return TokenInfo{}, fmt.Errorf("%w: token is empty", ErrInvalidToken)
	}

	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return TokenInfo{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	info := TokenInfo{Subject: claims.Subject, Role: claims.Role}
	if info.Subject == "" {
		info.Subject = claims.UserID
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
		if !now.Before(info.ExpiresAt) {
			return info, fmt.Errorf("%w: token expired at %s", ErrInvalidToken, info.ExpiresAt.UTC().Format(time.RFC3339))
		}
	}
	return info, nil
}
