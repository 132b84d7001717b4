// Package session holds the authenticated identity and the small set of
// client preferences persisted between runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fruitsalade/docdesk/internal/logging"
	"github.com/fruitsalade/docdesk/pkg/models"
	"github.com/fruitsalade/docdesk/pkg/protocol"
)

// Persisted keys. Identity keys are removed on logout; preference keys
// survive it.
const (
	KeyTheme    = "theme"
	KeyDarkMode = "darkMode"
	KeyToken    = "token"
	KeyUserID   = "userId"
	KeyUserType = "userType"
	KeyUsername = "username"
)

var identityKeys = []string{KeyToken, KeyUserID, KeyUserType, KeyUsername}

// ErrNotLoggedIn is returned when an operation needs a session and there
// is none.
var ErrNotLoggedIn = errors.New("not logged in")

// StateFileName is the file inside the state directory.
const StateFileName = "state.json"

// Store is the single owner of the session. Readers get copies; the only
// writers are Login and Logout, which replace the identity as a whole.
type Store struct {
	path string

	mu      sync.RWMutex
	values  map[string]string
	session models.Session
}

// NewStore creates a store persisting to dir/state.json. Call Load once
// before use.
func NewStore(dir string) *Store {
	return &Store{
		path:   filepath.Join(dir, StateFileName),
		values: make(map[string]string),
	}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load hydrates the store from disk. A missing file is an empty state. A
// partial identity on disk is discarded.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read state: %w", err)
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse state %s: %w", s.path, err)
	}

	sess := sessionFrom(values)
	if !sess.Valid() {
		for _, k := range identityKeys {
			delete(values, k)
		}
		sess = models.Session{}
	}

	s.mu.Lock()
	s.values = values
	s.session = sess
	s.mu.Unlock()
	return nil
}

func sessionFrom(values map[string]string) models.Session {
	id, _ := strconv.ParseInt(values[KeyUserID], 10, 64)
	return models.Session{
		UserID:   id,
		Token:    values[KeyToken],
		UserType: values[KeyUserType],
		Username: values[KeyUsername],
	}
}

// Current returns a copy of the session.
func (s *Store) Current() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Require returns the session or ErrNotLoggedIn.
func (s *Store) Require() (models.Session, error) {
	sess := s.Current()
	if !sess.Valid() {
		return models.Session{}, ErrNotLoggedIn
	}
	return sess, nil
}

// Login installs a new identity from a login response and persists it.
func (s *Store) Login(resp *protocol.LoginResponse) error {
	sess := models.Session{
		UserID:   resp.ID,
		Token:    resp.AccessToken,
		UserType: resp.UserType,
		Username: resp.Username,
	}
	if !sess.Valid() {
		return fmt.Errorf("login response is incomplete")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values := s.copyValues()
	values[KeyToken] = sess.Token
	values[KeyUserID] = strconv.FormatInt(sess.UserID, 10)
	values[KeyUserType] = sess.UserType
	values[KeyUsername] = sess.Username

	if err := s.save(values); err != nil {
		return err
	}
	s.values = values
	s.session = sess
	logging.Debug("session stored", logging.String("username", sess.Username))
	return nil
}

// Logout clears the identity. Theme preferences are kept.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := s.copyValues()
	for _, k := range identityKeys {
		delete(values, k)
	}
	if err := s.save(values); err != nil {
		return err
	}
	s.values = values
	s.session = models.Session{}
	return nil
}

// Theme returns the stored theme preference, "system" by default.
func (s *Store) Theme() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t := s.values[KeyTheme]; t != "" {
		return t
	}
	return "system"
}

// DarkMode returns the stored dark mode flag.
func (s *Store) DarkMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[KeyDarkMode] == "true"
}

// SetTheme persists the theme preference and the resolved dark mode flag.
func (s *Store) SetTheme(theme string, dark bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := s.copyValues()
	values[KeyTheme] = theme
	values[KeyDarkMode] = strconv.FormatBool(dark)
	if err := s.save(values); err != nil {
		return err
	}
	s.values = values
	return nil
}

// TokenExpiry returns the exp claim of the bearer token. The token is not
// verified: the server does that, the client only needs to know when to
// ask the user to log in again.
func (s *Store) TokenExpiry() (time.Time, bool) {
	token := s.Current().Token
	if token == "" {
		return time.Time{}, false
	}
	return tokenExpiry(token)
}

func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether the token expires within margin. Tokens without
// a readable exp claim are never considered expired.
func (s *Store) Expired(margin time.Duration) bool {
	exp, ok := s.TokenExpiry()
	if !ok {
		return false
	}
	return time.Now().Add(margin).After(exp)
}

func (s *Store) copyValues() map[string]string {
	out := make(map[string]string, len(s.values)+len(identityKeys))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// save writes values atomically. Callers hold s.mu.
func (s *Store) save(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}
