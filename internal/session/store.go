// Package session persists the authenticated user context shared by the
// pipeline processes.
package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yciu/futures-pipeline/internal/types"
)

// Session is the persisted user context. The gateway host is the only
// writer; auxiliary processes read snapshots from disk.
type Session struct {
	Account      string    `json:"account"`
	LoggedIn     bool      `json:"logged_in"`
	ExpiresAt    time.Time `json:"expires_at"`
	OrderAccount string    `json:"order_account,omitempty"`
	ItemCode     string    `json:"item_code,omitempty"`
}

// Store manages the session file.
type Store struct {
	path    string
	timeout time.Duration
	logger  *slog.Logger

	mu sync.Mutex
}

// NewStore creates a session store backed by the given file path.
// timeout is the validity window granted on creation and renewal.
func NewStore(path string, timeout time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, timeout: timeout, logger: logger}
}

// Create starts a session for the given account, replacing any existing one.
func (s *Store) Create(account string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{
		Account:   account,
		LoggedIn:  true,
		ExpiresAt: time.Now().Add(s.timeout),
	}
	if err := s.write(sess); err != nil {
		return nil, err
	}
	s.logger.Info("session created", "account", account, "expires_at", sess.ExpiresAt)
	return sess, nil
}

// CurrentUser returns the logged-in account, or ErrNotLoggedIn when no
// valid session exists.
func (s *Store) CurrentUser() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.read()
	if !valid(sess) {
		return "", types.ErrNotLoggedIn
	}
	return sess.Account, nil
}

// IsLoggedIn reports whether a non-expired session exists.
func (s *Store) IsLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return valid(s.read())
}

// Destroy removes the session file.
func (s *Store) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	s.logger.Info("session destroyed")
	return nil
}

// Renew extends the session expiry by the configured timeout. It is a
// no-op error when no valid session exists.
func (s *Store) Renew() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.read()
	if !valid(sess) {
		return types.ErrNotLoggedIn
	}
	sess.ExpiresAt = time.Now().Add(s.timeout)
	return s.write(sess)
}

// OrderAccount returns the configured order account.
func (s *Store) OrderAccount() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.read()
	if !valid(sess) {
		return "", types.ErrNotLoggedIn
	}
	if sess.OrderAccount == "" {
		return "", types.ErrMissingOrderAccount
	}
	return sess.OrderAccount, nil
}

// SetOrderAccount stores the order account on the current session.
func (s *Store) SetOrderAccount(account string) error {
	return s.update(func(sess *Session) { sess.OrderAccount = account })
}

// ItemCode returns the traded symbol stored on the session.
func (s *Store) ItemCode() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.read()
	if !valid(sess) {
		return "", types.ErrNotLoggedIn
	}
	return sess.ItemCode, nil
}

// SetItemCode stores the traded symbol on the current session.
func (s *Store) SetItemCode(code string) error {
	return s.update(func(sess *Session) { sess.ItemCode = code })
}

func (s *Store) update(mutate func(*Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.read()
	if !valid(sess) {
		return types.ErrNotLoggedIn
	}
	mutate(sess)
	return s.write(sess)
}

func valid(sess *Session) bool {
	return sess != nil && sess.LoggedIn && time.Now().Before(sess.ExpiresAt)
}

// read returns the persisted session, or nil when the file is missing or
// unreadable. Transient read errors degrade to "no session".
func (s *Store) read() *Session {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read session file", "path", s.path, "err", err)
		}
		return nil
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.logger.Warn("malformed session file", "path", s.path, "err", err)
		return nil
	}
	return &sess
}

// write rewrites the session file atomically: write a temp file, sync,
// then rename over the destination.
func (s *Store) write(sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write temp session file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync temp session file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp session file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
