package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/google/uuid"
)

// InMemoryUserStore is a stateful UserRepository with the same conditional
// update semantics as the Postgres repository
type InMemoryUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[string]*models.User)}
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

// Put stores u as-is, assigning an id if it has none, and returns the stored copy
func (s *InMemoryUserStore) Put(u *models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.Email = strings.ToLower(u.Email)
	s.users[u.ID] = copyUser(u)
	return copyUser(u)
}

// Get returns a snapshot of the stored account, or nil
func (s *InMemoryUserStore) Get(id string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return copyUser(u)
	}
	return nil
}

func (s *InMemoryUserStore) byEmail(email string) *models.User {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (s *InMemoryUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *InMemoryUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.byEmail(email)
	if u == nil {
		return nil, models.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *InMemoryUserStore) Create(ctx context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byEmail(user.Email) != nil {
		return nil, models.ErrConflict
	}
	user.ID = uuid.New().String()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.FailedLoginAttempts = 0
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = copyUser(user)
	return copyUser(user), nil
}

func (s *InMemoryUserStore) IncrementFailedLogins(ctx context.Context, email string, at time.Time) (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.byEmail(email)
	if u == nil {
		return "", 0, models.ErrNotFound
	}
	u.FailedLoginAttempts++
	u.LastFailedLogin = &at
	return u.ID, u.FailedLoginAttempts, nil
}

func (s *InMemoryUserStore) LockAccount(ctx context.Context, id string, threshold int, now, until time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.FailedLoginAttempts < threshold || u.IsLockedAt(now) {
		return false, nil
	}
	u.AccountLockedUntil = &until
	u.FailedLoginAttempts = 0
	return true, nil
}

func (s *InMemoryUserStore) RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return 0, models.ErrNotFound
	}
	previous := u.FailedLoginAttempts
	u.FailedLoginAttempts = 0
	u.AccountLockedUntil = nil
	u.LastLogin = &at
	return previous, nil
}

func (s *InMemoryUserStore) ClearFailedLogins(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.FailedLoginAttempts = 0
	u.AccountLockedUntil = nil
	return nil
}

func (s *InMemoryUserStore) SetResetToken(ctx context.Context, id, tokenHash string, expires, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.ResetTokenHash = tokenHash
	u.ResetExpires = &expires
	return nil
}

func (s *InMemoryUserStore) GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ResetTokenHash == tokenHash && u.HasValidResetTokenAt(now) {
			return copyUser(u), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *InMemoryUserStore) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ResetTokenHash == tokenHash && u.HasValidResetTokenAt(now) {
			cleared := u.FailedLoginAttempts > 0 || u.AccountLockedUntil != nil
			u.PasswordHash = passwordHash
			u.ResetTokenHash = ""
			u.ResetExpires = nil
			u.FailedLoginAttempts = 0
			u.AccountLockedUntil = nil
			u.PasswordChangedAt = &now
			return u.ID, cleared, nil
		}
	}
	return "", false, models.ErrNotFound
}

func (s *InMemoryUserStore) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return false, models.ErrNotFound
	}
	revoked := u.ResetTokenHash != ""
	u.PasswordHash = passwordHash
	u.ResetTokenHash = ""
	u.ResetExpires = nil
	u.PasswordChangedAt = &at
	return revoked, nil
}

// MockUserRepository wraps an optional delegate and lets tests override single methods
type MockUserRepository struct {
	UserRepository

	GetByEmailFunc            func(ctx context.Context, email string) (*models.User, error)
	IncrementFailedLoginsFunc func(ctx context.Context, email string, at time.Time) (string, int, error)
	LockAccountFunc           func(ctx context.Context, id string, threshold int, now, until time.Time) (bool, error)
	SetResetTokenFunc         func(ctx context.Context, id, tokenHash string, expires, at time.Time) error
	ConsumeResetTokenFunc     func(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, bool, error)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return m.UserRepository.GetByEmail(ctx, email)
}

func (m *MockUserRepository) IncrementFailedLogins(ctx context.Context, email string, at time.Time) (string, int, error) {
	if m.IncrementFailedLoginsFunc != nil {
		return m.IncrementFailedLoginsFunc(ctx, email, at)
	}
	return m.UserRepository.IncrementFailedLogins(ctx, email, at)
}

func (m *MockUserRepository) LockAccount(ctx context.Context, id string, threshold int, now, until time.Time) (bool, error) {
	if m.LockAccountFunc != nil {
		return m.LockAccountFunc(ctx, id, threshold, now, until)
	}
	return m.UserRepository.LockAccount(ctx, id, threshold, now, until)
}

func (m *MockUserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expires, at time.Time) error {
	if m.SetResetTokenFunc != nil {
		return m.SetResetTokenFunc(ctx, id, tokenHash, expires, at)
	}
	return m.UserRepository.SetResetToken(ctx, id, tokenHash, expires, at)
}

func (m *MockUserRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, bool, error) {
	if m.ConsumeResetTokenFunc != nil {
		return m.ConsumeResetTokenFunc(ctx, tokenHash, passwordHash, now)
	}
	return m.UserRepository.ConsumeResetToken(ctx, tokenHash, passwordHash, now)
}

// RecordingEventLog captures appended events synchronously
type RecordingEventLog struct {
	mu     sync.Mutex
	events []*models.SecurityEvent
}

func (r *RecordingEventLog) Append(ctx context.Context, event *models.SecurityEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns the captured events in append order
func (r *RecordingEventLog) Events() []*models.SecurityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.SecurityEvent(nil), r.events...)
}

// OfType returns the captured events of type t
func (r *RecordingEventLog) OfType(t models.EventType) []*models.SecurityEvent {
	var out []*models.SecurityEvent
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// MockSecurityEventRepository implements SecurityEventRepository for testing
type MockSecurityEventRepository struct {
	CreateFunc        func(ctx context.Context, event *models.SecurityEvent) error
	ListByAccountFunc func(ctx context.Context, accountID string, limit, offset int) ([]*models.SecurityEvent, error)

	mu      sync.Mutex
	created []*models.SecurityEvent
}

func (m *MockSecurityEventRepository) Create(ctx context.Context, event *models.SecurityEvent) error {
	if m.CreateFunc != nil {
		if err := m.CreateFunc(ctx, event); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.created = append(m.created, event)
	m.mu.Unlock()
	return nil
}

func (m *MockSecurityEventRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.SecurityEvent, error) {
	if m.ListByAccountFunc != nil {
		return m.ListByAccountFunc(ctx, accountID, limit, offset)
	}
	return []*models.SecurityEvent{}, nil
}

// Created returns the events persisted so far
func (m *MockSecurityEventRepository) Created() []*models.SecurityEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.SecurityEvent(nil), m.created...)
}

// SentResetEmail is a captured reset email
type SentResetEmail struct {
	To        string
	Token     string
	ExpiresAt time.Time
}

// MockEmailService captures reset emails; SendFunc can inject failures
type MockEmailService struct {
	SendFunc func(ctx context.Context, email, token string, expiresAt time.Time) error

	mu   sync.Mutex
	Sent []SentResetEmail
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, email, token, expiresAt); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.Sent = append(m.Sent, SentResetEmail{To: email, Token: token, ExpiresAt: expiresAt})
	m.mu.Unlock()
	return nil
}

// NewTestUser creates a test user with the given password hash
func NewTestUser(email, passwordHash string) *models.User {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.User{
		Email:        email,
		Name:         "Test User",
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
