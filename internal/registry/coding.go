package registry

import (
	"sync"
	"time"
)

// Status is the lifecycle position of a user's coding session.
type Status int

const (
	StatusCreated Status = iota
	StatusStarting
	StatusReady
	StatusAuthenticating
	StatusFailed
	StatusCleared
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusStarting:
		return "starting"
	case StatusReady:
		return "ready"
	case StatusAuthenticating:
		return "authenticating"
	case StatusFailed:
		return "failed"
	case StatusCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// CodingSession is one user's session record: which container and volume
// serve them, and where the session is in its lifecycle.
type CodingSession struct {
	UserID        int64
	ContainerID   string
	ContainerName string
	VolumeName    string
	Status        Status
	UpdatedAt     time.Time
}

// CodingRegistry tracks at most one coding session per user. The status
// here is the explicit source of truth; nothing is inferred from container
// existence at read time.
type CodingRegistry struct {
	mu       sync.Mutex
	sessions map[int64]*CodingSession
	starting map[int64]bool
}

// NewCodingRegistry returns an empty registry.
func NewCodingRegistry() *CodingRegistry {
	return &CodingRegistry{
		sessions: make(map[int64]*CodingSession),
		starting: make(map[int64]bool),
	}
}

// Get returns a copy of the user's session, or false when none exists.
func (r *CodingRegistry) Get(userID int64) (CodingSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		return CodingSession{}, false
	}
	return *s, true
}

// GetOrCreate returns a copy of the user's session, inserting a fresh
// record in StatusCreated when none exists.
func (r *CodingRegistry) GetOrCreate(userID int64) CodingSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok {
		return *s
	}
	s := &CodingSession{UserID: userID, Status: StatusCreated, UpdatedAt: time.Now()}
	r.sessions[userID] = s
	return *s
}

// Upsert inserts or replaces the user's session record.
func (r *CodingRegistry) Upsert(s CodingSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.UpdatedAt = time.Now()
	r.sessions[s.UserID] = &s
}

// SetStatus updates the status of an existing session and reports whether
// one was present.
func (r *CodingRegistry) SetStatus(userID int64, status Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		return false
	}
	s.Status = status
	s.UpdatedAt = time.Now()
	return true
}

// Remove drops the user's session record.
func (r *CodingRegistry) Remove(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// BeginStart claims the right to start a session for the user. It fails
// with ErrSessionBusy while another start is in flight, so two concurrent
// start requests cannot both create containers. The caller must pair it
// with EndStart.
func (r *CodingRegistry) BeginStart(userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.starting[userID] {
		return ErrSessionBusy
	}
	r.starting[userID] = true
	return nil
}

// EndStart releases the start claim taken by BeginStart.
func (r *CodingRegistry) EndStart(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.starting, userID)
}
