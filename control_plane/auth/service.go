package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/liuqk23/PileFlow/control_plane/store"
)

var (
	// ErrUserNotFound means the username is not registered.
	ErrUserNotFound = errors.New("username does not exist")
	// ErrWrongPassword means the password check failed.
	ErrWrongPassword = errors.New("wrong password")
	// ErrPasswordMismatch means password and re_password differ.
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// Service handles account registration and login against the store.
type Service struct {
	store store.Store
}

// NewService creates an auth service over the given store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Register creates a new driver account.
func (s *Service) Register(ctx context.Context, username, password, rePassword string) error {
	if password != rePassword {
		return ErrPasswordMismatch
	}
	user := &store.User{
		Username: username,
		Password: hashPassword(password),
	}
	return s.store.CreateUser(ctx, user)
}

// Login verifies credentials and returns a signed token plus the role.
func (s *Service) Login(ctx context.Context, username, password string) (string, Role, error) {
	user, err := s.store.GetUser(ctx, username)
	if err != nil {
		return "", "", err
	}
	if user == nil {
		return "", "", ErrUserNotFound
	}
	if user.Password != hashPassword(password) {
		return "", "", ErrWrongPassword
	}
	role := RoleUser
	if user.IsAdmin {
		role = RoleAdmin
	}
	token, err := GenerateToken(username, role)
	if err != nil {
		return "", "", err
	}
	return token, role, nil
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
