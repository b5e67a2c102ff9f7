// Package memory provides in-memory implementations of the storage
// contracts, used for tests and single-process development deployments.
// Every check-then-act operation runs under one mutex, which gives the
// same atomicity the MongoDB stores get from single-statement commands.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/gatehouse-dev/gatehouse/client"
	"github.com/gatehouse-dev/gatehouse/domain"
)

// AuthCodeStore implements domain.AuthCodeRepository in memory.
type AuthCodeStore struct {
	mu    sync.Mutex
	codes map[string]*domain.AuthCode
}

func NewAuthCodeStore() *AuthCodeStore {
	return &AuthCodeStore{codes: make(map[string]*domain.AuthCode)}
}

func (s *AuthCodeStore) SaveAuthCode(_ context.Context, code *domain.AuthCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.codes[code.Code]; exists {
		return domain.ErrDuplicate
	}
	cp := *code
	s.codes[code.Code] = &cp
	return nil
}

// ConsumeAuthCode reads and deletes under one lock, so exactly one of
// any number of concurrent consumers wins.
func (s *AuthCodeStore) ConsumeAuthCode(_ context.Context, clientID, code string) (*domain.AuthCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	authCode, exists := s.codes[code]
	if !exists || authCode.ClientID != clientID {
		return nil, domain.ErrNotFound
	}
	delete(s.codes, code)
	cp := *authCode
	return &cp, nil
}

func (s *AuthCodeStore) DeleteAuthCode(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.codes, code)
	return nil
}

func (s *AuthCodeStore) DeleteExpiredAuthCodes(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for value, code := range s.codes {
		if code.Expired(now) {
			delete(s.codes, value)
		}
	}
	return nil
}

// TokenStore implements domain.TokenRepository in memory.
type TokenStore struct {
	mu        sync.RWMutex
	byAccess  map[string]*domain.Token
	byRefresh map[string]*domain.Token
}

func NewTokenStore() *TokenStore {
	return &TokenStore{
		byAccess:  make(map[string]*domain.Token),
		byRefresh: make(map[string]*domain.Token),
	}
}

func (s *TokenStore) StoreToken(_ context.Context, token *domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byAccess[token.AccessToken]; exists {
		return domain.ErrDuplicate
	}
	if _, exists := s.byRefresh[token.RefreshToken]; exists {
		return domain.ErrDuplicate
	}
	cp := *token
	s.byAccess[token.AccessToken] = &cp
	s.byRefresh[token.RefreshToken] = &cp
	return nil
}

func (s *TokenStore) GetByAccessToken(_ context.Context, accessToken string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, exists := s.byAccess[accessToken]
	if !exists {
		return nil, domain.ErrNotFound
	}
	cp := *token
	return &cp, nil
}

func (s *TokenStore) GetByRefreshToken(_ context.Context, refreshToken string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, exists := s.byRefresh[refreshToken]
	if !exists {
		return nil, domain.ErrNotFound
	}
	cp := *token
	return &cp, nil
}

func (s *TokenStore) RevokeByRefreshToken(_ context.Context, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, exists := s.byRefresh[refreshToken]
	if !exists || token.Revoked {
		return domain.ErrNotFound
	}
	token.Revoked = true
	return nil
}

func (s *TokenStore) RevokeByAccessToken(_ context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, exists := s.byAccess[accessToken]
	if !exists || token.Revoked {
		return domain.ErrNotFound
	}
	token.Revoked = true
	return nil
}

func (s *TokenStore) DeleteExpiredRevoked(_ context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for access, token := range s.byAccess {
		if token.Revoked && token.RefreshExpiresAt.Before(cutoff) {
			delete(s.byAccess, access)
			delete(s.byRefresh, token.RefreshToken)
		}
	}
	return nil
}

// ClientStore implements client.ClientStore in memory.
type ClientStore struct {
	mu      sync.RWMutex
	clients map[string]*client.Client
}

func NewClientStore() *ClientStore {
	return &ClientStore{clients: make(map[string]*client.Client)}
}

func (s *ClientStore) CreateClient(_ context.Context, c *client.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[c.ID]; exists {
		return domain.ErrDuplicate
	}
	cp := *c
	s.clients[c.ID] = &cp
	return nil
}

func (s *ClientStore) GetClient(_ context.Context, clientID string) (*client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.clients[clientID]
	if !exists {
		return nil, client.ErrClientNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *ClientStore) UpdateClient(_ context.Context, c *client.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[c.ID]; !exists {
		return client.ErrClientNotFound
	}
	cp := *c
	s.clients[c.ID] = &cp
	return nil
}

// UserStore implements domain.UserRepository in memory.
type UserStore struct {
	mu         sync.RWMutex
	byID       map[string]*domain.User
	byUsername map[string]*domain.User
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:       make(map[string]*domain.User),
		byUsername: make(map[string]*domain.User),
	}
}

func (s *UserStore) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[user.Username]; exists {
		return domain.ErrDuplicate
	}
	cp := *user
	s.byID[user.ID] = &cp
	s.byUsername[user.Username] = &cp
	return nil
}

func (s *UserStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.byID[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *UserStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.byUsername[username]
	if !exists {
		return nil, domain.ErrNotFound
	}
	cp := *user
	return &cp, nil
}
