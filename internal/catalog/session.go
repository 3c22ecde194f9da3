package catalog

import "sync"

// AuthLevel is the privilege level a session operates at.
type AuthLevel int

const (
	AuthUser AuthLevel = iota
	AuthLocalPrivileged
)

// Session is the caller's connection state: who is calling, at which
// privilege level, and the error stack reported back to interactive callers.
//
// A session belongs to one caller and is not meant to be shared across
// goroutines.
type Session struct {
	User string

	mu     sync.Mutex
	auth   AuthLevel
	errors []ErrorEntry
}

// ErrorEntry is one message on the session's error stack.
type ErrorEntry struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// NewSession returns an unprivileged session for user.
func NewSession(user string) *Session {
	return &Session{User: user}
}

// NewAdminSession returns a session already running at the privileged level.
func NewAdminSession(user string) *Session {
	return &Session{User: user, auth: AuthLocalPrivileged}
}

// Privileged reports whether the session currently runs elevated.
func (s *Session) Privileged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth >= AuthLocalPrivileged
}

// Elevate raises the session to the privileged level and returns a function
// that restores the previous level. The restore function is idempotent.
func (s *Session) Elevate() (restore func()) {
	s.mu.Lock()
	prev := s.auth
	s.auth = AuthLocalPrivileged
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.auth = prev
			s.mu.Unlock()
		})
	}
}

// Sudo runs fn with the session elevated. The previous level is restored
// when fn returns, including when it returns an error or panics.
func (s *Session) Sudo(fn func() error) error {
	restore := s.Elevate()
	defer restore()
	return fn()
}

// AddErrorMsg appends a message to the session's error stack.
func (s *Session) AddErrorMsg(status Status, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, ErrorEntry{Status: status, Message: msg})
}

// Errors returns a copy of the error stack.
func (s *Session) Errors() []ErrorEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ErrorEntry, len(s.errors))
	copy(out, s.errors)
	return out
}

// ClearErrors empties the error stack, typically after it was shown to the caller.
func (s *Session) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = nil
}
