package profilepage

import (
	"sync"

	"carpool-service/internal/users"
)

// Session is the signed-in user as the client knows it.
type Session struct {
	UserID string
	Token  string
	User   *users.User
}

// AuthStore is the shared authentication context of the client.
type AuthStore interface {
	Current() *Session
	LoginSuccess(u *users.User)
}

// MemoryAuth is an in-process AuthStore.
type MemoryAuth struct {
	mu   sync.RWMutex
	sess *Session
}

// NewMemoryAuth returns a store holding sess, which may be nil.
func NewMemoryAuth(sess *Session) *MemoryAuth {
	return &MemoryAuth{sess: sess}
}

func (a *MemoryAuth) Current() *Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sess
}

// LoginSuccess refreshes the stored user, keeping token and admin flag.
func (a *MemoryAuth) LoginSuccess(u *users.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sess == nil {
		a.sess = &Session{UserID: u.ID}
	}
	next := *a.sess
	next.User = u
	a.sess = &next
}
