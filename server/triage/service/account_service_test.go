package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"triage_server/server/common/auth"
	"triage_server/server/common/infra/cache"
	"triage_server/server/triage/domain"
)

type fakeUsers struct {
	byEmail map[string]domain.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]domain.User{}}
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (domain.User, error) {
	u, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return domain.User{}, &domain.NotFoundError{Entity: "user", ID: email}
	}
	return u, nil
}

func (f *fakeUsers) Create(_ context.Context, user domain.User) (string, error) {
	user.ID = "user-" + user.Email
	f.byEmail[strings.ToLower(user.Email)] = user
	return user.ID, nil
}

func (f *fakeUsers) SetPasswordHash(_ context.Context, email, hash string) error {
	u, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return &domain.NotFoundError{Entity: "user", ID: email}
	}
	u.PasswordHash = hash
	f.byEmail[strings.ToLower(email)] = u
	return nil
}

func newAccountFixture(t *testing.T) (*AccountService, *auth.Service, *fakeUsers) {
	t.Helper()
	users := newFakeUsers()
	tokens := auth.NewService("test-secret", 60)
	svc := NewAccountService(users, tokens, nil)
	for _, u := range []NewUserInput{
		{Email: "ops@example.com", FullName: "Ops Staff", Role: "staff", Password: "correct-horse"},
		{Email: "guest@example.com", FullName: "Guest", Role: "GUEST", Password: "correct-horse"},
		{Email: "nopass@example.com", FullName: "No Password", Role: "ADMIN"},
	} {
		_, err := svc.CreateUser(context.Background(), u)
		require.NoError(t, err)
	}
	return svc, tokens, users
}

func TestLoginIssuesToken(t *testing.T) {
	svc, tokens, users := newAccountFixture(t)

	user, token, err := svc.Login(context.Background(), " OPS@example.com ", "correct-horse")

	require.NoError(t, err)
	assert.Empty(t, user.PasswordHash)
	assert.Equal(t, domain.RoleStaff, user.Role)
	claims, err := tokens.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "STAFF", claims.Role)

	stored := users.byEmail["ops@example.com"]
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct-horse")))
}

func TestLoginRejections(t *testing.T) {
	svc, _, _ := newAccountFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{name: "wrong password", email: "ops@example.com", password: "nope", want: domain.ErrInvalidCredentials},
		{name: "unknown user", email: "who@example.com", password: "correct-horse", want: domain.ErrInvalidCredentials},
		{name: "no password set", email: "nopass@example.com", password: "", want: domain.ErrInvalidCredentials},
		{name: "guest role", email: "guest@example.com", password: "correct-horse", want: domain.ErrForbiddenRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, token, err := svc.Login(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, token)
		})
	}
}

func TestIssueToken(t *testing.T) {
	svc, _, _ := newAccountFixture(t)
	ctx := context.Background()

	token, err := svc.IssueToken(ctx, "nopass@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = svc.IssueToken(ctx, "guest@example.com")
	assert.ErrorIs(t, err, domain.ErrForbiddenRole)

	_, err = svc.IssueToken(ctx, "missing@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateUserValidation(t *testing.T) {
	svc, _, _ := newAccountFixture(t)

	_, err := svc.CreateUser(context.Background(), NewUserInput{Email: "not-an-email", Role: "OWNER"})

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "fullName")
	assert.Contains(t, verr.Fields, "role")
}

func TestSetPassword(t *testing.T) {
	svc, _, _ := newAccountFixture(t)
	ctx := context.Background()

	err := svc.SetPassword(ctx, "nopass@example.com", "short")
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))

	require.NoError(t, svc.SetPassword(ctx, "nopass@example.com", "long-enough-pass"))
	_, token, err := svc.Login(ctx, "nopass@example.com", "long-enough-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestCreateStaffUserRefreshesTeamCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := cache.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	store := &fakeCatalog{team: []domain.TeamMember{{ID: "u1", FullName: "Staff One", Role: domain.RoleStaff}}}
	catalog := NewCatalogService(store, client, time.Hour)
	svc := NewAccountService(newFakeUsers(), auth.NewService("test-secret", 60), catalog)

	_, err := catalog.ListTeamMembers(ctx)
	require.NoError(t, err)
	require.True(t, mr.Exists(cacheKeyTeam))

	_, err = svc.CreateUser(ctx, NewUserInput{Email: "host@example.com", FullName: "Host", Role: "HOST"})
	require.NoError(t, err)
	assert.True(t, mr.Exists(cacheKeyTeam))

	_, err = svc.CreateUser(ctx, NewUserInput{Email: "new@example.com", FullName: "New Staff", Role: "STAFF"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cacheKeyTeam))

	store.team = append(store.team, domain.TeamMember{ID: "u2", FullName: "New Staff", Role: domain.RoleStaff})
	team, err := catalog.ListTeamMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, team, 2)
	assert.Equal(t, 2, store.teamLoads)
}
