package session

import (
	"time"

	"bibliotech/pkg/domain"
)

// Session holds the authenticated identity for the duration of a UI
// session. It is created on successful login and discarded on logout;
// callers pass it explicitly instead of reading ambient global state.
type Session struct {
	user    domain.User
	started time.Time
}

// New creates a session for the given account. The password field is
// cleared so credential material never outlives the login call.
func New(user domain.User) *Session {
	user.Password = ""
	return &Session{user: user, started: time.Now()}
}

// User returns the read-only account copy held for this session.
func (s *Session) User() domain.User {
	if s == nil {
		return domain.User{}
	}
	return s.user
}

// UserID returns the session owner's id, or "" for a nil session.
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	return s.user.ID
}

// StartedAt reports when the session was established.
func (s *Session) StartedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.started
}
