package credential

import (
	"errors"
	"strings"
	"sync"
)

var (
	ErrNoCredential = errors.New("credential: no token stored")
	ErrInvalid      = errors.New("credential: token is malformed")
	ErrExpired      = errors.New("credential: token expired")
)

// Store persists the bearer token under a fixed key.
type Store interface {
	Token() (string, error)
	Save(token string) error
	Clear() error
}

// Interface guards
var (
	_ Store = (*Keyring)(nil)
	_ Store = (*Memory)(nil)
)

// Memory keeps the token in process memory only.
type Memory struct {
	mu    sync.RWMutex
	token string
}

func NewMemory(token string) *Memory {
	return &Memory{token: token}
}

func (m *Memory) Token() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token == "" {
		return "", ErrNoCredential
	}
	return m.token, nil
}

func (m *Memory) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = strings.TrimSpace(token)
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = ""
	return nil
}
