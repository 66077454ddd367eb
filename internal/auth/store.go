package auth

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// User is one account of the users file.
type User struct {
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"password"`
	Role         string     `json:"role"`
	Organization string     `json:"organization"`
	CreatedDate  time.Time  `json:"created_date"`
	LastLogin    *time.Time `json:"last_login"`
	Active       bool       `json:"active"`
}

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
	ErrUserInactive    = errors.New("user is inactive")
	ErrUserExists      = errors.New("user already exists")
)

// Store keeps user accounts in a JSON file, seeding default demo
// accounts on first start.
type Store struct {
	filePath string
	mu       sync.Mutex
	users    map[string]*User
	clock    func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) { s.clock = clock }
}

// NewStore opens (or seeds) the users file.
func NewStore(filePath string, opts ...StoreOption) (*Store, error) {
	s := &Store{filePath: filePath, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	data, err := os.ReadFile(filePath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &s.users); err != nil {
			return nil, err
		}
		log.Info().Str("file", filePath).Int("users", len(s.users)).Msg("Users loaded")
	case os.IsNotExist(err):
		log.Warn().Str("file", filePath).Msg("Users file not found, seeding defaults")
		s.users = s.defaultUsers()
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return s, nil
}

// defaultUsers seeds one account per role. The demo passwords are
// placeholder credentials for local evaluation only.
func (s *Store) defaultUsers() map[string]*User {
	now := s.clock()
	seed := func(name, email, password, role, org string) *User {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			log.Error().Err(err).Str("user", email).Msg("Failed to hash seed password")
		}
		return &User{
			Name:         name,
			Email:        email,
			PasswordHash: string(hash),
			Role:         role,
			Organization: org,
			CreatedDate:  now,
			Active:       true,
		}
	}
	return map[string]*User{
		"admin":          seed("Administrador Sistema", "admin@salud-malaga.es", "admin123", "admin", "Consejería de Salud"),
		"gestor.malaga":  seed("Gestor Sanitario Málaga", "gestor@sas-malaga.es", "gestor123", "gestor", "SAS Málaga"),
		"analista.datos": seed("Analista de Datos", "analista@salud-andalucia.es", "analista123", "analista", "IECA - Instituto de Estadística"),
		"demo":           seed("Usuario Demo", "demo@demo.com", "demo123", "invitado", "Demostración"),
	}
}

// Authenticate verifies credentials and stamps last_login.
func (s *Store) Authenticate(username, password string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	if !user.Active {
		return nil, ErrUserInactive
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidPassword
	}

	now := s.clock()
	user.LastLogin = &now
	if err := s.persistLocked(); err != nil {
		log.Error().Err(err).Msg("Failed to persist last_login")
	}
	copied := *user
	return &copied, nil
}

// Get returns a user by name.
func (s *Store) Get(username string) (*User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return nil, false
	}
	copied := *user
	return &copied, true
}

// Create adds a new account.
func (s *Store) Create(username, password string, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return ErrUserExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hash)
	user.CreatedDate = s.clock()
	user.Active = true
	s.users[username] = &user
	return s.persistLocked()
}

// SetActive toggles an account.
func (s *Store) SetActive(username string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return ErrUserNotFound
	}
	user.Active = active
	return s.persistLocked()
}

// List returns every account keyed by username, without hashes.
func (s *Store) List() map[string]User {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]User, len(s.users))
	for name, user := range s.users {
		copied := *user
		copied.PasswordHash = ""
		out[name] = copied
	}
	return out
}

// persistLocked must be called with the lock held.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return err
	}
	tempPath := s.filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tempPath, s.filePath)
}
