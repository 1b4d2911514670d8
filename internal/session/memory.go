package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Suitable for single-instance
// deployments; multi-instance ones use RedisStore so every replica sees the
// same session.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]Session

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]Session),
		locks:    make(map[int64]*sync.Mutex),
		now:      time.Now,
	}
}

func (m *MemoryStore) Open(ctx context.Context, sess Session, replace bool) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.sessions[sess.UserID]
	if ok && !prev.expired(m.now()) && !replace {
		return nil, ErrExists
	}
	m.sessions[sess.UserID] = sess
	if ok {
		return &prev, nil
	}
	return nil, nil
}

func (m *MemoryStore) Resolve(ctx context.Context, userID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[userID]
	if !ok || sess.expired(m.now()) {
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (m *MemoryStore) Close(ctx context.Context, userID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.sessions, userID)
	return &sess, nil
}

func (m *MemoryStore) ReapExpired(ctx context.Context, now time.Time) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []Session
	for uid, sess := range m.sessions {
		if sess.expired(now) {
			expired = append(expired, sess)
			delete(m.sessions, uid)
		}
	}
	return expired, nil
}

// Lock serializes session transitions for one user within this process.
func (m *MemoryStore) Lock(ctx context.Context, userID int64) (func(), error) {
	m.locksMu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	m.locksMu.Unlock()

	l.Lock()
	return l.Unlock, nil
}
