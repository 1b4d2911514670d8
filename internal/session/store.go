package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means the user has no live session (never opened, already
	// closed, or expired).
	ErrNotFound = errors.New("session: not found")
	// ErrExists is returned by Open under the reject policy when a live
	// session is already waiting for a language choice.
	ErrExists = errors.New("session: already open")
)

// Session links a completed transcription to the user awaiting a
// target-language choice. The artifact is a temporary file owned outside
// this package; whoever removes the session from the store takes over
// responsibility for releasing it.
type Session struct {
	UserID        int64     `json:"user_id"`
	ChatID        int64     `json:"chat_id"`
	Transcription string    `json:"transcription"`
	ArtifactPath  string    `json:"artifact_path"`
	FileKind      string    `json:"file_kind"`
	StartedAt     time.Time `json:"started_at"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func (s Session) expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !s.ExpiresAt.After(now)
}

// Store holds at most one live session per user.
type Store interface {
	// Open stores a session. With replace=false it fails with ErrExists if
	// a live session is present; with replace=true it swaps the session and
	// returns the replaced one so the caller can release its artifact.
	Open(ctx context.Context, sess Session, replace bool) (*Session, error)

	// Resolve returns the live session, or ErrNotFound. Expired sessions
	// resolve as not found; the janitor reclaims them.
	Resolve(ctx context.Context, userID int64) (*Session, error)

	// Close removes and returns the live session, or ErrNotFound. The
	// caller must release the returned session's artifact.
	Close(ctx context.Context, userID int64) (*Session, error)

	// ReapExpired removes and returns every session expired at now. The
	// caller releases the artifacts.
	ReapExpired(ctx context.Context, now time.Time) ([]Session, error)
}

// Locker serializes session mutations per user. Stores provide their own:
// in-process mutexes for the memory store, redis SET NX leases for the
// shared one.
type Locker interface {
	// Lock blocks until the user's lock is held and returns the release
	// func. The pipeline holds it across a full session transition, never
	// across collaborator calls.
	Lock(ctx context.Context, userID int64) (func(), error)
}
