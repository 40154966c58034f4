package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/staffdesk/staffdesk/internal/shared"
)

type memoryUsers struct {
	rows   map[int64]User
	nextID int64
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{rows: map[int64]User{}}
}

func (m *memoryUsers) ListUsers(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(m.rows))
	for _, u := range m.rows {
		out = append(out, u)
	}
	return out, nil
}

func (m *memoryUsers) GetUser(ctx context.Context, id int64) (User, error) {
	u, ok := m.rows[id]
	if !ok {
		return User{}, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return u, nil
}

func (m *memoryUsers) FindByUsername(ctx context.Context, username string) (User, bool, error) {
	for _, u := range m.rows {
		if strings.EqualFold(u.Username, username) {
			return u, true, nil
		}
	}
	return User{}, false, nil
}

func (m *memoryUsers) InsertUser(ctx context.Context, u User) (User, error) {
	m.nextID++
	u.ID = m.nextID
	m.rows[u.ID] = u
	return u, nil
}

func (m *memoryUsers) UpdateUser(ctx context.Context, u User) (User, error) {
	m.rows[u.ID] = u
	return u, nil
}

func (m *memoryUsers) DeleteUser(ctx context.Context, id int64) error {
	delete(m.rows, id)
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryUsers, User) {
	t.Helper()
	repo := newMemoryUsers()
	svc := NewService(repo)
	svc.cost = bcrypt.MinCost
	admin, err := svc.BootstrapAdministrator(context.Background(), "supersecret")
	require.NoError(t, err)
	return svc, repo, admin
}

func TestCreateUserHashesPassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	u, err := svc.CreateUser(context.Background(), CreateInput{Username: "  giulia ", Password: "password1", IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "giulia", u.Username)
	assert.NotEqual(t, "password1", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("password1")))
}

func TestCreateUserRejectsDuplicateUsernameCaseInsensitively(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, CreateInput{Username: "Giulia", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, CreateInput{Username: "GIULIA", Password: "password2"})
	require.ErrorIs(t, err, shared.ErrConflict)
	var fieldErr *shared.FieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "username", fieldErr.Field)

	_, err = svc.CreateUser(ctx, CreateInput{Username: "Admin", Password: "password3"})
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateUserRefusesReservedName(t *testing.T) {
	svc := NewService(newMemoryUsers())
	svc.cost = bcrypt.MinCost
	ctx := context.Background()

	for _, name := range []string{"admin", "ADMIN", " Admin "} {
		_, err := svc.CreateUser(ctx, CreateInput{Username: name, Password: "password1", IsActive: true})
		require.ErrorIs(t, err, shared.ErrConflict, name)
		var fieldErr *shared.FieldError
		require.True(t, errors.As(err, &fieldErr))
		assert.Equal(t, "username", fieldErr.Field)
	}
	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestBootstrapAdministratorOnlyOnce(t *testing.T) {
	svc, _, admin := newTestService(t)
	ctx := context.Background()
	assert.True(t, admin.IsAdministrator())
	assert.True(t, admin.IsActive)

	_, err := svc.BootstrapAdministrator(ctx, "anothersecret")
	var policy *shared.PolicyError
	assert.True(t, errors.As(err, &policy))

	_, err = NewService(newMemoryUsers()).BootstrapAdministrator(ctx, "short")
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestAdministratorCannotBeDeleted(t *testing.T) {
	svc, repo, admin := newTestService(t)
	err := svc.DeleteUser(context.Background(), admin.ID)
	require.ErrorIs(t, err, shared.ErrConflict)
	var policy *shared.PolicyError
	assert.True(t, errors.As(err, &policy))
	assert.Contains(t, repo.rows, admin.ID)
}

func TestAdministratorCannotBeRenamedOrDeactivated(t *testing.T) {
	svc, _, admin := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpdateUser(ctx, admin.ID, UpdateInput{Username: "root", IsActive: true})
	assert.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.UpdateUser(ctx, admin.ID, UpdateInput{Username: "admin", IsActive: false})
	assert.ErrorIs(t, err, shared.ErrConflict)

	updated, err := svc.UpdateUser(ctx, admin.ID, UpdateInput{Username: "Admin", Password: "newpassword", IsActive: true})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("newpassword")))
}

func TestUpdateUserCannotTakeReservedName(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	u, err := svc.CreateUser(ctx, CreateInput{Username: "marco", Password: "password1", IsActive: true})
	require.NoError(t, err)

	_, err = svc.UpdateUser(ctx, u.ID, UpdateInput{Username: "ADMIN", IsActive: true})
	assert.ErrorIs(t, err, shared.ErrConflict)

	kept, err := svc.UpdateUser(ctx, u.ID, UpdateInput{Username: "marco", IsActive: false})
	require.NoError(t, err)
	assert.False(t, kept.IsActive)
	assert.Equal(t, u.PasswordHash, kept.PasswordHash, "empty password keeps the hash")
}

func TestDeleteUser(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	u, err := svc.CreateUser(ctx, CreateInput{Username: "marco", Password: "password1"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, u.ID))
	assert.NotContains(t, repo.rows, u.ID)
	assert.ErrorIs(t, svc.DeleteUser(ctx, u.ID), shared.ErrNotFound)
}
