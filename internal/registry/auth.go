package registry

import (
	"sync"

	"github.com/coderelay/sessiond/internal/log"
)

// AuthSession is one pending authentication handshake. The login flow reads
// codes from Codes and aborts when Done is closed; the registry owns both
// channels.
type AuthSession struct {
	containerName string
	codes         chan string
	done          chan struct{}
	cancel        sync.Once
}

// ContainerName is the session container the handshake runs in.
func (s *AuthSession) ContainerName() string { return s.containerName }

// Codes is the channel the login flow reads verification codes from.
func (s *AuthSession) Codes() <-chan string { return s.codes }

// Done is closed when the handshake is cancelled or replaced.
func (s *AuthSession) Done() <-chan struct{} { return s.done }

// Cancel closes Done. Safe to call any number of times from any goroutine.
func (s *AuthSession) Cancel() {
	s.cancel.Do(func() { close(s.done) })
}

// AuthRegistry tracks at most one pending authentication per user.
type AuthRegistry struct {
	mu       sync.Mutex
	sessions map[int64]*AuthSession
}

// NewAuthRegistry returns an empty registry.
func NewAuthRegistry() *AuthRegistry {
	return &AuthRegistry{sessions: make(map[int64]*AuthSession)}
}

// Register starts a handshake for the user. If one is already pending it is
// cancelled and replaced, so a user who restarts authentication never ends
// up with two flows both waiting for the same code.
func (r *AuthRegistry) Register(userID int64, containerName string) *AuthSession {
	s := &AuthSession{
		containerName: containerName,
		// Capacity one so delivery never blocks while the registry lock
		// is held; the entry is removed on first delivery.
		codes: make(chan string, 1),
		done:  make(chan struct{}),
	}

	r.mu.Lock()
	old := r.sessions[userID]
	r.sessions[userID] = s
	r.mu.Unlock()

	if old != nil {
		old.Cancel()
		log.ForUser(userID).Debug("replaced pending authentication session")
	}
	return s
}

// DeliverCode hands a verification code to the user's pending handshake.
// Each handshake accepts exactly one code; the entry is removed once the
// code is accepted, so a second delivery reports ErrNoActiveSession.
func (r *AuthRegistry) DeliverCode(userID int64, code string) error {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	if !ok {
		r.mu.Unlock()
		return ErrNoActiveSession
	}

	select {
	case s.codes <- code:
		delete(r.sessions, userID)
		r.mu.Unlock()
		return nil
	default:
		// The slot was consumed without the entry being removed yet;
		// from the caller's view there is nothing to deliver to.
		r.mu.Unlock()
		return ErrNoActiveSession
	}
}

// Cancel aborts the user's pending handshake, if any, and reports whether
// one existed.
func (r *AuthRegistry) Cancel(userID int64) bool {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if ok {
		s.Cancel()
	}
	return ok
}

// Remove drops the registry entry without cancelling, for flows that
// finished on their own. No-op when the entry was already removed or
// replaced by a newer session.
func (r *AuthRegistry) Remove(userID int64, s *AuthSession) {
	r.mu.Lock()
	if r.sessions[userID] == s {
		delete(r.sessions, userID)
	}
	r.mu.Unlock()
}

// Active reports whether the user has a pending handshake.
func (r *AuthRegistry) Active(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[userID]
	return ok
}
