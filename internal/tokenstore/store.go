package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Domenick1991/tailorbook/internal/domain"
)

// Fixed keys of the persisted session.
const (
	KeyAccessToken     = "access_token"
	KeyRefreshToken    = "refresh_token"
	KeyAccessExpiresAt = "access_expires_at"
	KeyCurrentUser     = "current_user"
)

// Store persists the session across restarts. Save must write the whole
// session in one step so a reader never sees a half-updated token triple.
type Store interface {
	Load(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, session domain.Session) error
	Clear(ctx context.Context) error
}

func toFields(s domain.Session) (map[string]string, error) {
	fields := map[string]string{
		KeyAccessToken:  s.AccessToken,
		KeyRefreshToken: s.RefreshToken,
	}
	if !s.AccessExpiresAt.IsZero() {
		fields[KeyAccessExpiresAt] = s.AccessExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	if s.CurrentUser != nil {
		data, err := json.Marshal(s.CurrentUser)
		if err != nil {
			return nil, fmt.Errorf("encode current user: %w", err)
		}
		fields[KeyCurrentUser] = string(data)
	}
	return fields, nil
}

func fromFields(fields map[string]string) (*domain.Session, error) {
	s := domain.Session{
		AccessToken:  fields[KeyAccessToken],
		RefreshToken: fields[KeyRefreshToken],
	}
	if s.Empty() {
		return nil, nil
	}
	if raw := fields[KeyAccessExpiresAt]; raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", KeyAccessExpiresAt, err)
		}
		s.AccessExpiresAt = at
	}
	if raw := fields[KeyCurrentUser]; raw != "" && raw != "null" {
		var u domain.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, fmt.Errorf("decode %s: %w", KeyCurrentUser, err)
		}
		s.CurrentUser = &u
	}
	return &s, nil
}

type MemoryStore struct {
	mu      sync.Mutex
	session *domain.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	s := *m.session
	return &s, nil
}

func (m *MemoryStore) Save(ctx context.Context, session domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &session
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

var _ Store = (*MemoryStore)(nil)
