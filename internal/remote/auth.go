package remote

import (
	"context"
	"fmt"
)

// User is the account a bearer token belongs to.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type verifyData struct {
	User User `json:"user"`
}

// VerifyToken asks the API to validate the current bearer token and returns
// its user.
func (c *Client) VerifyToken(ctx context.Context) (User, error) {
	var data verifyData
	if err := c.get(ctx, "verify token", "/auth/verify", nil, &data); err != nil {
		return User{}, err
	}
	if data.User.ID == "" {
		return User{}, fmt.Errorf("verify token: %w: response carries no user", ErrUnsuccessful)
	}
	return data.User, nil
}
