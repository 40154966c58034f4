package users

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/staffdesk/staffdesk/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	FindByUsername(ctx context.Context, username string) (User, bool, error)
	InsertUser(ctx context.Context, u User) (User, error)
	UpdateUser(ctx context.Context, u User) (User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
	cost int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser fetches one user.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// FindByUsername looks an account up case-insensitively.
func (s *Service) FindByUsername(ctx context.Context, username string) (User, error) {
	u, ok, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, fmt.Errorf("user %q: %w", username, shared.ErrNotFound)
	}
	return u, nil
}

// CreateUser registers a new account with a bcrypt-hashed password.
func (s *Service) CreateUser(ctx context.Context, input CreateInput) (User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return User{}, shared.NewFieldError("username", "username is required")
	}
	if isReserved(username) {
		return User{}, shared.NewFieldError("username", "username is reserved")
	}
	return s.insert(ctx, username, input.Password, input.IsActive)
}

// BootstrapAdministrator creates the reserved administrator account. It is
// reachable only from the operator CLI and fails once the account exists.
func (s *Service) BootstrapAdministrator(ctx context.Context, password string) (User, error) {
	if len(password) < 8 {
		return User{}, shared.NewFieldError("password", "password must be at least 8 characters")
	}
	if _, exists, err := s.repo.FindByUsername(ctx, shared.AdminUsername); err != nil {
		return User{}, err
	} else if exists {
		return User{}, shared.NewPolicyError("bootstrap administrator", "the administrator account already exists")
	}
	return s.insert(ctx, shared.AdminUsername, password, true)
}

func (s *Service) insert(ctx context.Context, username, password string, active bool) (User, error) {
	if err := s.ensureUnique(ctx, username, 0); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, err
	}
	return s.repo.InsertUser(ctx, User{Username: username, PasswordHash: string(hash), IsActive: active})
}

// UpdateUser edits an account. The reserved administrator keeps its name and stays active.
func (s *Service) UpdateUser(ctx context.Context, id int64, input UpdateInput) (User, error) {
	current, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return User{}, shared.NewFieldError("username", "username is required")
	}
	if current.IsAdministrator() {
		if !isReserved(username) {
			return User{}, shared.NewPolicyError("rename administrator", "the built-in administrator cannot be renamed")
		}
		if !input.IsActive {
			return User{}, shared.NewPolicyError("deactivate administrator", "the built-in administrator cannot be deactivated")
		}
	} else if isReserved(username) {
		return User{}, shared.NewFieldError("username", "username is reserved")
	}
	if err := s.ensureUnique(ctx, username, id); err != nil {
		return User{}, err
	}
	current.Username = username
	current.IsActive = input.IsActive
	if input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
		if err != nil {
			return User{}, err
		}
		current.PasswordHash = string(hash)
	}
	return s.repo.UpdateUser(ctx, current)
}

// DeleteUser removes an account; the reserved administrator can never be deleted.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	current, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if current.IsAdministrator() {
		return shared.NewPolicyError("delete administrator", "the built-in administrator cannot be deleted")
	}
	return s.repo.DeleteUser(ctx, id)
}

func (s *Service) ensureUnique(ctx context.Context, username string, selfID int64) error {
	existing, found, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if found && existing.ID != selfID {
		return shared.NewFieldError("username", "username already taken")
	}
	return nil
}

func isReserved(username string) bool {
	return shared.IsAdministrator(username)
}
