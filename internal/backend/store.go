// Package backend is the remote store the gateway protects: password
// accounts with bearer sessions, an auth event feed and row CRUD over the
// application tables.
//
// Every error leaving this package is an *errors.Error; raw driver errors
// are classified here and nowhere else.
package backend

import (
	"context"

	"github.com/oggyb/edublin-connect/internal/db"
	"github.com/oggyb/edublin-connect/internal/repository"
)

// Auth event types.
const (
	EventSignedIn   = "SIGNED_IN"
	EventSignedOut  = "SIGNED_OUT"
	EventConfirmed  = "USER_UPDATED"
	EventRecovering = "PASSWORD_RECOVERY"
)

// AuthEvent is published on every session change.
type AuthEvent struct {
	Type    string          `json:"type"`
	User    *db.AuthUser    `json:"user,omitempty"`
	Session *db.AuthSession `json:"session,omitempty"`
}

// Store is the capability set the gateway needs from the backend.
type Store interface {
	// SignUp creates an account. The session is nil until the email is
	// confirmed.
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*db.AuthUser, *db.AuthSession, error)
	SignIn(ctx context.Context, email, password string) (*db.AuthUser, *db.AuthSession, error)
	SignOut(ctx context.Context, token string) error
	// GetUser resolves a bearer token. Unknown or expired tokens yield
	// (nil, nil).
	GetUser(ctx context.Context, token string) (*db.AuthUser, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmEmail(ctx context.Context, token string) (*db.AuthUser, error)
	// Authorize checks that token belongs to ownerID, the row-level rule
	// applied before writes.
	Authorize(ctx context.Context, token, ownerID string) error
	Ping(ctx context.Context) error
	PurgeExpiredSessions(ctx context.Context) (int64, error)
	OnAuthStateChange(fn func(AuthEvent)) (unsubscribe func())

	Users() repository.Rows[db.User]
	SearchCriteria() repository.Rows[db.SearchCriteria]
	ContactRequests() repository.Rows[db.ContactRequest]
	WhatsAppGroups() repository.Rows[db.WhatsAppGroup]
}
