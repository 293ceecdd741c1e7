package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/example/phone-storefront/internal/auth"
	"github.com/example/phone-storefront/internal/remote"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("a valid email is required")
	ErrInvalidName        = errors.New("name is required")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Account is a stored user record including its password hash.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// User returns the public identity of the account.
func (a *Account) User() User {
	return User{ID: a.ID, Email: a.Email, Name: a.Name}
}

// UserStore persists accounts. CreateUser returns ErrEmailTaken for duplicate
// emails; lookups return ErrUserNotFound.
type UserStore interface {
	CreateUser(ctx context.Context, a *Account) error
	UserByEmail(ctx context.Context, email string) (*Account, error)
	UserByID(ctx context.Context, id string) (*Account, error)
}

// Authenticator registers users and verifies credentials.
type Authenticator struct {
	users  UserStore
	hasher *auth.PasswordHasher
	logger *zap.Logger
}

func NewAuthenticator(users UserStore, hasher *auth.PasswordHasher, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		users:  users,
		hasher: hasher,
		logger: logger.Named("auth"),
	}
}

// Register creates a new account.
func (a *Authenticator) Register(ctx context.Context, email, password, name string) (*Account, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, ErrInvalidEmail
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}

	hash, err := a.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	account := &Account{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.users.CreateUser(ctx, account); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, remote.WriteError("create user", err)
	}

	a.logger.Info("user registered", zap.String("user_id", account.ID))
	return account, nil
}

// Login verifies email and password. Unknown emails and wrong passwords both
// yield ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*Account, error) {
	account, err := a.users.UserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, remote.ReadError("user by email", err)
	}
	if !a.hasher.Check(password, account.PasswordHash) {
		a.logger.Info("login rejected", zap.String("user_id", account.ID))
		return nil, ErrInvalidCredentials
	}
	return account, nil
}

// Lookup fetches an account by id.
func (a *Authenticator) Lookup(ctx context.Context, userID string) (*Account, error) {
	account, err := a.users.UserByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, remote.ReadError("user by id", err)
	}
	return account, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
