// Package identity is the local sign-in provider: bcrypt'd accounts in
// accounts.json and the active session in credentials.json, with the
// TADA_TOKEN environment variable taking precedence over the file.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"golang.org/x/crypto/bcrypt"
)

const (
	credFileName     = "credentials.json"
	accountsFileName = "accounts.json"

	// EnvToken overrides the credentials file when set.
	EnvToken = "TADA_TOKEN"

	// MinPasswordLen matches the hosted provider the screens were built for.
	MinPasswordLen = 6
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotSignedIn        = errors.New("not signed in")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email")
)

type TokenInfo struct {
	Token     string     `json:"token"`
	Source    string     `json:"source"` // "env" | "file"
	Email     string     `json:"email,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"` // optional
}

// Account is one registered user.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Local keeps accounts and the session under one directory.
type Local struct {
	dir    string
	getenv func(string) string
	cost   int

	mu sync.Mutex
}

// Option configures Local.
type Option func(*Local)

// WithGetenv replaces os.Getenv.
func WithGetenv(fn func(string) string) Option { return func(l *Local) { l.getenv = fn } }

// WithBcryptCost sets the hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option { return func(l *Local) { l.cost = cost } }

func NewLocal(dir string, opts ...Option) *Local {
	l := &Local{dir: dir, getenv: os.Getenv, cost: bcrypt.DefaultCost}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Local) credFilePath() string     { return filepath.Join(l.dir, credFileName) }
func (l *Local) accountsFilePath() string { return filepath.Join(l.dir, accountsFileName) }

// Current returns the active session, or nil when signed out.
func (l *Local) Current(ctx context.Context) (*TokenInfo, error) {
	// 1) env override
	env := strings.TrimSpace(l.getenv(EnvToken))
	if env != "" {
		return &TokenInfo{Token: stripBearer(env), Source: "env"}, nil
	}

	// 2) file
	b, err := os.ReadFile(l.credFilePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil // not logged in
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var ti TokenInfo
	if err := json.Unmarshal(b, &ti); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	ti.Token = stripBearer(ti.Token)
	if ti.ExpiresAt != nil && time.Now().After(*ti.ExpiresAt) {
		return nil, nil
	}
	return &ti, nil
}

// Register creates an account. It does not sign in.
func (l *Local) Register(ctx context.Context, email, password string) (*Account, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLen {
		return nil, ErrWeakPassword
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	accounts, err := l.loadAccounts()
	if err != nil {
		return nil, err
	}
	if _, ok := accounts[email]; ok {
		return nil, ErrEmailTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	acct := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	accounts[email] = acct
	if err := l.saveAccounts(accounts); err != nil {
		return nil, err
	}
	return acct, nil
}

// SignIn verifies the password and writes a new session.
func (l *Local) SignIn(ctx context.Context, email, password string) (*TokenInfo, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	accounts, err := l.loadAccounts()
	if err != nil {
		return nil, err
	}
	acct, ok := accounts[email]
	if !ok || bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	ti := TokenInfo{
		Token:     uuid.NewString(),
		Source:    "file",
		Email:     acct.Email,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.writeJSON(l.credFilePath(), ti); err != nil {
		return nil, err
	}
	return &ti, nil
}

// SignOut removes the session file. Being signed out already is not an
// error, and an env-provided token has no file to remove.
func (l *Local) SignOut(ctx context.Context) error {
	if err := os.Remove(l.credFilePath()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// ChangePassword replaces the password of the signed-in account.
func (l *Local) ChangePassword(ctx context.Context, current, next string) error {
	ti, err := l.Current(ctx)
	if err != nil {
		return err
	}
	if ti == nil || ti.Email == "" {
		return ErrNotSignedIn
	}
	if len(next) < MinPasswordLen {
		return ErrWeakPassword
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	accounts, err := l.loadAccounts()
	if err != nil {
		return err
	}
	acct, ok := accounts[ti.Email]
	if !ok || bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), l.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	acct.PasswordHash = string(hash)
	acct.UpdatedAt = time.Now().UTC()
	return l.saveAccounts(accounts)
}

func (l *Local) loadAccounts() (map[string]*Account, error) {
	accounts := map[string]*Account{}
	b, err := os.ReadFile(l.accountsFilePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return accounts, nil
		}
		return nil, fmt.Errorf("read accounts: %w", err)
	}
	if err := json.Unmarshal(b, &accounts); err != nil {
		return nil, fmt.Errorf("parse accounts: %w", err)
	}
	return accounts, nil
}

func (l *Local) saveAccounts(accounts map[string]*Account) error {
	return l.writeJSON(l.accountsFilePath(), accounts)
}

// writeJSON replaces path atomically with owner-only permissions.
func (l *Local) writeJSON(path string, v any) error {
	// ensure the directory exists with 0700
	if err := os.MkdirAll(l.dir, 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	return nil
}

func normalizeEmail(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 || strings.ContainsAny(s, " \t") {
		return "", ErrInvalidEmail
	}
	return s, nil
}

func stripBearer(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
