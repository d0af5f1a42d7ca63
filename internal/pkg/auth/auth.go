// Package auth carries the authenticated caller identity as an explicit context value.
package auth

import (
	"context"
	"errors"
)

var ErrNoIdentity = errors.New("auth: authenticated user id not found in request context")

type userIDKey struct{}

// WithUserID returns a child context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID returns the authenticated user id, if any.
func UserID(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(userIDKey{}).(int64)
	return id, ok
}

// RequireUserID is UserID that fails with ErrNoIdentity when the context is anonymous.
func RequireUserID(ctx context.Context) (int64, error) {
	id, ok := UserID(ctx)
	if !ok {
		return 0, ErrNoIdentity
	}
	return id, nil
}
