package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsboard/opsboard/internal/auth"
)

type mockUserRepository struct {
	createFn     func(ctx context.Context, u *auth.User) error
	getByIDFn    func(ctx context.Context, id uuid.UUID) (*auth.User, error)
	getByEmailFn func(ctx context.Context, email string) (*auth.User, error)
	listFn       func(ctx context.Context) ([]auth.User, error)
	updateRoleFn func(ctx context.Context, id uuid.UUID, role string) (*auth.User, error)
	setActiveFn  func(ctx context.Context, id uuid.UUID, active bool) (*auth.User, error)
	countAllFn   func(ctx context.Context) (int, error)
}

func (m *mockUserRepository) Create(ctx context.Context, u *auth.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, u)
	}
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, auth.ErrUserNotFound
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, auth.ErrUserNotFound
}

func (m *mockUserRepository) List(ctx context.Context) ([]auth.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockUserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role string) (*auth.User, error) {
	if m.updateRoleFn != nil {
		return m.updateRoleFn(ctx, id, role)
	}
	return nil, auth.ErrUserNotFound
}

func (m *mockUserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*auth.User, error) {
	if m.setActiveFn != nil {
		return m.setActiveFn(ctx, id, active)
	}
	return nil, auth.ErrUserNotFound
}

func (m *mockUserRepository) CountAll(ctx context.Context) (int, error) {
	if m.countAllFn != nil {
		return m.countAllFn(ctx)
	}
	return 0, nil
}

const testSecret = "unit-test-secret-at-least-32-bytes"

// bcrypt.MinCost keeps the suite fast.
func newService(repo auth.Repository) *auth.Service {
	return auth.NewService(repo, []byte(testSecret), time.Hour, 4)
}

func activeUser(t *testing.T, svc *auth.Service, password string) *auth.User {
	t.Helper()
	hash, err := svc.HashPassword(password)
	require.NoError(t, err)
	return &auth.User{
		ID:           uuid.New(),
		Email:        "duty@example.org",
		PasswordHash: hash,
		Name:         "Duty Officer",
		Role:         auth.RoleEditor,
		Active:       true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

func TestLogin_Success(t *testing.T) {
	t.Parallel()

	svc := newService(nil)
	u := activeUser(t, svc, "correct horse battery")

	repo := &mockUserRepository{
		getByEmailFn: func(_ context.Context, email string) (*auth.User, error) {
			assert.Equal(t, "duty@example.org", email)
			return u, nil
		},
	}
	svc = newService(repo)
	u.PasswordHash, _ = svc.HashPassword("correct horse battery")

	token, got, err := svc.Login(context.Background(), "duty@example.org", "correct horse battery")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, u.ID, got.ID)
}

func TestLogin_WrongPassword(t *testing.T) {
	t.Parallel()

	svc := newService(nil)
	u := activeUser(t, svc, "right-password")
	svc = newService(&mockUserRepository{
		getByEmailFn: func(_ context.Context, _ string) (*auth.User, error) { return u, nil },
	})

	_, _, err := svc.Login(context.Background(), u.Email, "wrong-password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	t.Parallel()

	svc := newService(&mockUserRepository{})

	_, _, err := svc.Login(context.Background(), "nobody@example.org", "whatever")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLogin_DeactivatedAccount(t *testing.T) {
	t.Parallel()

	svc := newService(nil)
	u := activeUser(t, svc, "secret-password")
	u.Active = false
	svc = newService(&mockUserRepository{
		getByEmailFn: func(_ context.Context, _ string) (*auth.User, error) { return u, nil },
	})

	_, _, err := svc.Login(context.Background(), u.Email, "secret-password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials,
		"deactivated accounts must be indistinguishable from bad credentials")
}

func TestVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	svc := newService(nil)
	u := activeUser(t, svc, "secret-password")
	repo := &mockUserRepository{
		getByEmailFn: func(_ context.Context, _ string) (*auth.User, error) { return u, nil },
		getByIDFn: func(_ context.Context, id uuid.UUID) (*auth.User, error) {
			require.Equal(t, u.ID, id)
			return u, nil
		},
	}
	svc = newService(repo)
	u.PasswordHash, _ = svc.HashPassword("secret-password")

	token, _, err := svc.Login(context.Background(), u.Email, "secret-password")
	require.NoError(t, err)

	identity, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, identity.UserID)
	assert.Equal(t, u.Email, identity.Email)
	assert.Equal(t, auth.RoleEditor, identity.Role)
}

func TestVerify_ReflectsRoleChangeImmediately(t *testing.T) {
	t.Parallel()

	svc := newService(nil)
	u := activeUser(t, svc, "secret-password")
	repo := &mockUserRepository{
		getByEmailFn: func(_ context.Context, _ string) (*auth.User, error) { return u, nil },
		getByIDFn:    func(_ context.Context, _ uuid.UUID) (*auth.User, error) { return u, nil },
	}
	svc = newService(repo)
	u.PasswordHash, _ = svc.HashPassword("secret-password")

	token, _, err := svc.Login(context.Background(), u.Email, "secret-password")
	require.NoError(t, err)

	// The stored role changes while the token is still in flight. The next
	// verification must carry the new role, not the one baked into claims.
	u.Role = auth.RoleViewer

	identity, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleViewer, identity.Role)
}

func TestVerify_RejectsDeactivatedUser(t *testing.T) {
	t.Parallel()

	svc := newService(nil)
	u := activeUser(t, svc, "secret-password")
	repo := &mockUserRepository{
		getByEmailFn: func(_ context.Context, _ string) (*auth.User, error) { return u, nil },
		getByIDFn:    func(_ context.Context, _ uuid.UUID) (*auth.User, error) { return u, nil },
	}
	svc = newService(repo)
	u.PasswordHash, _ = svc.HashPassword("secret-password")

	token, _, err := svc.Login(context.Background(), u.Email, "secret-password")
	require.NoError(t, err)

	u.Active = false

	_, err = svc.Verify(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerify_RejectsDeletedUser(t *testing.T) {
	t.Parallel()

	svc := newService(nil)
	u := activeUser(t, svc, "secret-password")
	repo := &mockUserRepository{
		getByEmailFn: func(_ context.Context, _ string) (*auth.User, error) { return u, nil },
		getByIDFn: func(_ context.Context, _ uuid.UUID) (*auth.User, error) {
			return nil, auth.ErrUserNotFound
		},
	}
	svc = newService(repo)
	u.PasswordHash, _ = svc.HashPassword("secret-password")

	token, _, err := svc.Login(context.Background(), u.Email, "secret-password")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerify_GarbageToken(t *testing.T) {
	t.Parallel()

	svc := newService(&mockUserRepository{})

	_, err := svc.Verify(context.Background(), "not.a.jwt")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	svc := newService(nil)
	u := activeUser(t, svc, "secret-password")
	repo := &mockUserRepository{
		getByEmailFn: func(_ context.Context, _ string) (*auth.User, error) { return u, nil },
		getByIDFn:    func(_ context.Context, _ uuid.UUID) (*auth.User, error) { return u, nil },
	}
	svc = newService(repo)
	u.PasswordHash, _ = svc.HashPassword("secret-password")

	token, _, err := svc.Login(context.Background(), u.Email, "secret-password")
	require.NoError(t, err)

	other := auth.NewService(repo, []byte("a-completely-different-signing-key"), time.Hour, 4)
	_, err = other.Verify(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestBootstrap_SeedsEmptyTable(t *testing.T) {
	t.Parallel()

	var created *auth.User
	repo := &mockUserRepository{
		countAllFn: func(_ context.Context) (int, error) { return 0, nil },
		createFn: func(_ context.Context, u *auth.User) error {
			created = u
			return nil
		},
	}
	svc := newService(repo)

	seeded, err := svc.Bootstrap(context.Background(), "admin@example.org", "first-admin-pass")
	require.NoError(t, err)
	assert.True(t, seeded)
	require.NotNil(t, created)
	assert.Equal(t, auth.RoleAdmin, created.Role)
	assert.True(t, created.Active)
	assert.NotEqual(t, "first-admin-pass", created.PasswordHash)
}

func TestBootstrap_SkipsNonEmptyTable(t *testing.T) {
	t.Parallel()

	repo := &mockUserRepository{
		countAllFn: func(_ context.Context) (int, error) { return 3, nil },
		createFn: func(_ context.Context, _ *auth.User) error {
			t.Fatal("Create must not be called when users exist")
			return nil
		},
	}
	svc := newService(repo)

	seeded, err := svc.Bootstrap(context.Background(), "admin@example.org", "pass")
	require.NoError(t, err)
	assert.False(t, seeded)
}

func TestBootstrap_EmptyTableWithoutSeedFails(t *testing.T) {
	t.Parallel()

	repo := &mockUserRepository{
		countAllFn: func(_ context.Context) (int, error) { return 0, nil },
	}
	svc := newService(repo)

	_, err := svc.Bootstrap(context.Background(), "", "")
	assert.Error(t, err)
}

func TestHashPassword_VerifyRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashPassword("some password", 4)
	require.NoError(t, err)
	assert.NoError(t, auth.VerifyPassword(hash, "some password"))
	assert.Error(t, auth.VerifyPassword(hash, "other password"))
}
