package client

import (
	"sync"

	"wifihub/internal/models"
)

// Session is the client's view of who is logged in. The server never trusts
// it; every request carries the JWT instead.
type Session struct {
	mu    sync.RWMutex
	user  *models.User
	token string
}

func NewSession() *Session {
	return &Session{}
}

// Start records a successful login.
func (s *Session) Start(user *models.User, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.token = token
}

// Invalidate ends the session. Safe to call more than once.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.token = ""
}

func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.token != ""
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}
