// Package store keeps serialized interview sessions between the request that
// creates them and the connection that later binds to them.
package store

import (
	"context"
	"errors"

	"github.com/openclaw/interview-server-go/internal/model"
)

var ErrSessionNotFound = errors.New("session not found")

// Store is safe for concurrent use. Get always returns a copy the caller owns;
// mutations become visible only through Create or Update.
type Store interface {
	Create(ctx context.Context, session *model.InterviewSession) error
	// Update writes back an existing session and returns ErrSessionNotFound
	// once it has been removed or has expired.
	Update(ctx context.Context, session *model.InterviewSession) error
	Get(ctx context.Context, sessionID string) (*model.InterviewSession, error)
	// Remove is idempotent.
	Remove(ctx context.Context, sessionID string) error
}
