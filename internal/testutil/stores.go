// stores.go
//
// Shared mock implementations of store.KV, auth.UserStore, and mail.Sender.
// Imported by test files across packages to avoid duplicate mock definitions.
package testutil

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/evanhollis/annex/internal/store"
)

// MemKV implements store.KV in memory for tests.
//
// Always stateful...entries are a map with per-key expiry, like real Redis.
// Use *Err fields to inject errors for specific operations.
// Use Now to control the clock; expired entries are invisible to every read.
type MemKV struct {
	// Error injection...zero value means no error
	GetErr    error
	SetErr    error
	GetDelErr error
	DelErr    error
	IncrErr   error
	ExistsErr error
	TTLErr    error
	ExpireErr error

	// Now is the clock; defaults to time.Now. Tests reassign it to advance
	// time past TTLs.
	Now func() time.Time

	entries map[string]memEntry
	mu      sync.Mutex
}

type memEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// NewMemKV returns an empty MemKV with a real clock.
func NewMemKV() *MemKV {
	return &MemKV{
		Now:     time.Now,
		entries: make(map[string]memEntry),
	}
}

// live returns the entry at key if present and unexpired, lazily deleting
// expired entries. Caller must hold mu.
func (m *MemKV) live(key string) (memEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memEntry{}, false
	}
	if !e.expiresAt.IsZero() && !m.Now().Before(e.expiresAt) {
		delete(m.entries, key)
		return memEntry{}, false
	}
	return e, true
}

func (m *MemKV) Get(_ context.Context, key string) (string, error) {
	if m.GetErr != nil {
		return "", m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return "", store.ErrKeyNotFound
	}
	return e.value, nil
}

func (m *MemKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = m.Now().Add(ttl)
	}
	m.entries[key] = memEntry{value: value, expiresAt: exp}
	return nil
}

func (m *MemKV) GetDel(_ context.Context, key string) (string, error) {
	if m.GetDelErr != nil {
		return "", m.GetDelErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return "", store.ErrKeyNotFound
	}
	delete(m.entries, key)
	return e.value, nil
}

func (m *MemKV) Del(_ context.Context, keys ...string) error {
	if m.DelErr != nil {
		return m.DelErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *MemKV) Incr(_ context.Context, key string) (int64, error) {
	if m.IncrErr != nil {
		return 0, m.IncrErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	if e, ok := m.live(key); ok {
		parsed, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n++
	// Incr preserves an existing TTL and creates new keys without one,
	// matching Redis.
	e := m.entries[key]
	e.value = strconv.FormatInt(n, 10)
	m.entries[key] = e
	return n, nil
}

func (m *MemKV) Exists(_ context.Context, key string) (bool, error) {
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	return ok, nil
}

func (m *MemKV) TTL(_ context.Context, key string) (time.Duration, error) {
	if m.TTLErr != nil {
		return 0, m.TTLErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok || e.expiresAt.IsZero() {
		return 0, store.ErrKeyNotFound
	}
	return e.expiresAt.Sub(m.Now()), nil
}

func (m *MemKV) Expire(_ context.Context, key string, ttl time.Duration) error {
	if m.ExpireErr != nil {
		return m.ExpireErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return nil
	}
	e.expiresAt = m.Now().Add(ttl)
	m.entries[key] = e
	return nil
}

// Has reports key presence without error injection. Test assertion helper,
// not part of store.KV.
func (m *MemKV) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	return ok
}

// MockUserStore implements auth.UserStore for tests.
//
// Always stateful...Users is a map keyed by user id, like a real store.
// Use *Err fields to inject errors for specific operations.
type MockUserStore struct {
	// Error injection...zero value means no error
	CreateUserErr error
	GetUserErr    error

	Users map[uuid.UUID]*store.User

	mu sync.Mutex
}

// NewMockUserStore returns a MockUserStore seeded with the given users.
func NewMockUserStore(users ...*store.User) *MockUserStore {
	ms := &MockUserStore{Users: make(map[uuid.UUID]*store.User)}
	for _, u := range users {
		ms.Users[u.ID] = u
	}
	return ms
}

func (m *MockUserStore) CreateUser(_ context.Context, u *store.User) error {
	if m.CreateUserErr != nil {
		return m.CreateUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.Users {
		if strings.EqualFold(existing.Username, u.Username) {
			return store.ErrDuplicateUsername
		}
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicateEmail
		}
	}
	m.Users[u.ID] = u
	return nil
}

func (m *MockUserStore) GetUserByUsernameOrEmail(_ context.Context, identity string) (*store.User, error) {
	if m.GetUserErr != nil {
		return nil, m.GetUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if strings.EqualFold(u.Username, identity) || strings.EqualFold(u.Email, identity) {
			return u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (m *MockUserStore) GetUserByID(_ context.Context, id uuid.UUID) (*store.User, error) {
	if m.GetUserErr != nil {
		return nil, m.GetUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u, nil
}

// MockSender implements mail.Sender for tests, recording every send.
type MockSender struct {
	// Error injection...zero value means no error
	SendErr error

	Sent []SentOtp

	mu sync.Mutex
}

// SentOtp is one recorded SendOtp call.
type SentOtp struct {
	To   string
	Code string
	TTL  time.Duration
}

func (m *MockSender) SendOtp(_ context.Context, toEmail, code string, ttl time.Duration) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.mu.Lock()
	m.Sent = append(m.Sent, SentOtp{To: toEmail, Code: code, TTL: ttl})
	m.mu.Unlock()
	return nil
}

// SentCount returns the number of recorded sends.
func (m *MockSender) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
