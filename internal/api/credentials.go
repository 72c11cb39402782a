package api

import (
	"context"
	"crypto/subtle"
	"fmt"

	"audioconv/internal/queue"
	"audioconv/internal/services"
)

// ErrBadCredentials is returned for an unknown user and for a wrong token
// alike, so callers cannot probe which user ids exist.
var ErrBadCredentials = fmt.Errorf("%w: user id and token do not match", services.ErrUnauthorized)

// UserLookup resolves users by id. A missing user yields nil without error.
type UserLookup interface {
	GetUser(ctx context.Context, userID int64) (*queue.User, error)
}

// authenticate returns the user when token matches, ErrBadCredentials when
// the user is unknown or the token differs, and store failures unchanged.
func authenticate(ctx context.Context, users UserLookup, userID int64, token string) (*queue.User, error) {
	user, err := users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	expected := token
	if user != nil {
		expected = user.SecretToken
	}
	match := subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
	if user == nil || token == "" || !match {
		return nil, ErrBadCredentials
	}
	return user, nil
}
