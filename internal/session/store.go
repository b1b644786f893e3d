package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/nmos-dashboard/internal/infrastructure/database"
)

// Storage keys, shared with the browser dashboard.
const (
	KeyToken = "go_nmos_token"
	KeyUser  = "go_nmos_user"
)

// User is the identity attached to a session.
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Store is the persisted login session, cached in memory.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Store struct {
	db    *database.DB
	clock clock.Clock

	mu        sync.RWMutex
	token     string
	user      *User
	expiresAt time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for expiry checks.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// New creates an empty Store backed by db. Call Load to read what is persisted.
func New(db *database.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		clock: clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted session into memory. A stored user that is not
// valid JSON is ignored rather than failing startup.
func (s *Store) Load(ctx context.Context) error {
	token, err := s.get(ctx, KeyToken)
	if err != nil {
		return err
	}
	rawUser, err := s.get(ctx, KeyUser)
	if err != nil {
		return err
	}

	var user *User
	if rawUser != "" {
		var u User
		if json.Unmarshal([]byte(rawUser), &u) == nil {
			user = &u
		}
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.expiresAt = tokenExpiry(token)
	s.mu.Unlock()
	return nil
}

// Token returns the current token, or "" when there is none or it has expired.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return ""
	}
	if !s.expiresAt.IsZero() && !s.clock.Now().Before(s.expiresAt) {
		return ""
	}
	return s.token
}

// User returns the stored user, if any.
func (s *Store) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// ExpiresAt returns the token's exp claim, or the zero time when the token
// has none or is not a JWT.
func (s *Store) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// Authenticated reports whether a usable token is present.
func (s *Store) Authenticated() bool {
	return s.Token() != ""
}

// Set persists a new session, replacing any previous one.
func (s *Store) Set(ctx context.Context, token string, user User) error {
	if token == "" {
		return ErrEmptyToken
	}
	rawUser, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("session: encode user: %w", err)
	}

	now := s.clock.Now().UTC().Format(time.RFC3339)
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for key, value := range map[string]string{KeyToken: token, KeyUser: string(rawUser)} {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO session_kv (key, value, updated_at) VALUES (?, ?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				key, value, now,
			); err != nil {
				return fmt.Errorf("session: store %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.user = &user
	s.expiresAt = tokenExpiry(token)
	s.mu.Unlock()
	return nil
}

// Clear removes the session from memory and storage.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM session_kv WHERE key IN (?, ?)", KeyToken, KeyUser,
	); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}

	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.expiresAt = time.Time{}
	s.mu.Unlock()
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM session_kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session: load %s: %w", key, err)
	}
	return value, nil
}

// tokenExpiry reads the exp claim without verifying the signature.
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
