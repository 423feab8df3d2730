package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shutterdesk/studio-api/internal/auth"
	"github.com/shutterdesk/studio-api/internal/model"
	"github.com/shutterdesk/studio-api/internal/queue"
	"github.com/shutterdesk/studio-api/internal/repository"
)

// --- Mock user store ---

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) Create(ctx context.Context, u *model.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockUserStore) GetByID(ctx context.Context, id string) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUserStore) GetByUsername(ctx context.Context, username string) (model.User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUserStore) GetByRefreshToken(ctx context.Context, token string) (model.User, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUserStore) SetSession(ctx context.Context, id, refreshToken string, expiry, lastSeen time.Time) error {
	args := m.Called(ctx, id, refreshToken, expiry, lastSeen)
	return args.Error(0)
}

func (m *mockUserStore) ClearSession(ctx context.Context, id, refreshToken string) (bool, error) {
	args := m.Called(ctx, id, refreshToken)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *mockUserStore) UpdateProfile(ctx context.Context, id string, up model.ProfileUpdate) (model.User, error) {
	args := m.Called(ctx, id, up)
	return args.Get(0).(model.User), args.Error(1)
}

// --- Mock event publisher ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishUserRegistered(ctx context.Context, ev queue.UserRegisteredEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// --- Test helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHasher() *auth.Hasher {
	return auth.NewHasher(4, 2) // min bcrypt cost keeps the suite fast
}

func testIssuer() *auth.Issuer {
	return auth.NewIssuer("access-secret", "refresh-secret", 24*time.Hour, 7*24*time.Hour)
}

func newTestService(store repository.UserStore, events EventPublisher) *AuthService {
	return NewAuthService(store, testHasher(), testIssuer(), events, testLogger())
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	h, err := testHasher().Hash(context.Background(), password)
	require.NoError(t, err)
	return h
}

// --- Signup ---

func TestSignupRejectsDuplicateUsername(t *testing.T) {
	store := &mockUserStore{}
	store.On("GetByUsername", mock.Anything, "alice").Return(model.User{ID: "u1", Username: "alice"}, nil)

	svc := newTestService(store, nil)
	_, err := svc.Signup(context.Background(), SignupInput{Username: "alice", Email: "a@x.com", Password: "secret1"})

	assert.ErrorIs(t, err, ErrConflict)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSignupRejectsMissingFields(t *testing.T) {
	svc := newTestService(&mockUserStore{}, nil)

	for _, in := range []SignupInput{
		{Email: "a@x.com", Password: "secret1"},
		{Username: "alice", Password: "secret1"},
		{Username: "alice", Email: "a@x.com"},
	} {
		_, err := svc.Signup(context.Background(), in)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestSignupRejectsUnknownRole(t *testing.T) {
	svc := newTestService(&mockUserStore{}, nil)
	_, err := svc.Signup(context.Background(), SignupInput{
		Username: "alice", Email: "a@x.com", Password: "secret1", Role: "ROOT",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSignupDefaultsAndHashing(t *testing.T) {
	store := &mockUserStore{}
	events := &mockPublisher{}
	store.On("GetByUsername", mock.Anything, "alice").Return(model.User{}, repository.ErrNotFound)

	var created *model.User
	store.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Run(func(args mock.Arguments) {
		created = args.Get(1).(*model.User)
	}).Return(nil)
	events.On("PublishUserRegistered", mock.Anything, mock.MatchedBy(func(ev queue.UserRegisteredEvent) bool {
		return ev.Username == "alice"
	})).Return(nil)

	svc := newTestService(store, events)
	u, err := svc.Signup(context.Background(), SignupInput{
		Name: "Alice Jones", Username: "alice", Email: "a@x.com", Password: "secret1",
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, model.RoleStudioAdmin, created.Role)
	assert.Equal(t, model.ProviderLocal, created.Provider)
	assert.NotEmpty(t, created.ID)
	assert.NotEqual(t, "secret1", created.PasswordHash)
	assert.True(t, testHasher().Verify(context.Background(), "secret1", created.PasswordHash))
	assert.Contains(t, created.Logo, "ui-avatars.com")
	assert.Contains(t, created.Logo, "Alice+Jones")

	// The returned record never carries the hash.
	assert.Empty(t, u.PasswordHash)
	events.AssertExpectations(t)
}

func TestSignupAvatarFallsBackToUsername(t *testing.T) {
	store := &mockUserStore{}
	store.On("GetByUsername", mock.Anything, "bob").Return(model.User{}, repository.ErrNotFound)

	var created *model.User
	store.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Run(func(args mock.Arguments) {
		created = args.Get(1).(*model.User)
	}).Return(nil)

	svc := newTestService(store, nil)
	_, err := svc.Signup(context.Background(), SignupInput{Username: "bob", Email: "b@x.com", Password: "pw123456"})
	require.NoError(t, err)
	assert.Contains(t, created.Logo, "name=bob")
}

// --- Login ---

func TestLoginSuccess(t *testing.T) {
	stored := model.User{
		ID:           "u1",
		Username:     "alice",
		Email:        "a@x.com",
		PasswordHash: hashOf(t, "secret1"),
		Role:         model.RoleStudioAdmin,
		Logo:         "https://ui-avatars.com/api/?name=alice",
	}
	store := &mockUserStore{}
	store.On("GetByEmail", mock.Anything, "a@x.com").Return(stored, nil)

	var sessionToken string
	var sessionExpiry time.Time
	store.On("SetSession", mock.Anything, "u1", mock.AnythingOfType("string"),
		mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) {
			sessionToken = args.String(2)
			sessionExpiry = args.Get(3).(time.Time)
		}).Return(nil)

	svc := newTestService(store, nil)
	res, err := svc.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	// Access token claims decode to the identity's id and role.
	claims, err := testIssuer().VerifyAccess(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, model.RoleStudioAdmin, claims.Role)

	// The refresh token handed to the client equals the stored value.
	assert.Equal(t, res.RefreshToken, sessionToken)
	assert.WithinDuration(t, res.RefreshExpiry, sessionExpiry, time.Second)

	refClaims, err := testIssuer().VerifyRefresh(res.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", refClaims.UserID)

	assert.Equal(t, "alice", res.User.Username)
	assert.Empty(t, res.User.PasswordHash)
	assert.Empty(t, res.User.RefreshToken)
}

func TestLoginWrongPasswordMutatesNothing(t *testing.T) {
	store := &mockUserStore{}
	store.On("GetByEmail", mock.Anything, "a@x.com").Return(model.User{
		ID: "u1", Email: "a@x.com", PasswordHash: hashOf(t, "secret1"),
	}, nil)

	svc := newTestService(store, nil)
	_, err := svc.Login(context.Background(), "a@x.com", "wrong")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
	store.AssertNotCalled(t, "SetSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginUnknownEmail(t *testing.T) {
	store := &mockUserStore{}
	store.On("GetByEmail", mock.Anything, "nobody@x.com").Return(model.User{}, repository.ErrNotFound)

	svc := newTestService(store, nil)
	_, err := svc.Login(context.Background(), "nobody@x.com", "secret1")
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- Refresh ---

func TestRefreshRequiresToken(t *testing.T) {
	svc := newTestService(&mockUserStore{}, nil)
	_, err := svc.RefreshAccessToken(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshUnknownToken(t *testing.T) {
	store := &mockUserStore{}
	store.On("GetByRefreshToken", mock.Anything, mock.Anything).Return(model.User{}, repository.ErrNotFound)

	svc := newTestService(store, nil)
	token, _, err := testIssuer().RefreshToken("u1")
	require.NoError(t, err)

	// Well-formed and unexpired, but not the stored value for anyone.
	_, err = svc.RefreshAccessToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshMismatchedStoredToken(t *testing.T) {
	token, exp, err := testIssuer().RefreshToken("u1")
	require.NoError(t, err)

	// Simulates a lookup racing a rotation: the row matched but by the
	// time it is read back the stored token differs.
	store := &mockUserStore{}
	store.On("GetByRefreshToken", mock.Anything, token).Return(model.User{
		ID: "u1", Role: model.RoleStudioAdmin, RefreshToken: "different-token", RefreshTokenExpiry: &exp,
	}, nil)

	svc := newTestService(store, nil)
	_, err = svc.RefreshAccessToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshStoreExpiryIsAuthoritative(t *testing.T) {
	token, _, err := testIssuer().RefreshToken("u1")
	require.NoError(t, err)

	// The token's own exp lies days ahead, but the record-side expiry has
	// already passed and must win.
	past := time.Now().UTC().Add(-time.Minute)
	store := &mockUserStore{}
	store.On("GetByRefreshToken", mock.Anything, token).Return(model.User{
		ID: "u1", Role: model.RoleStudioAdmin, RefreshToken: token, RefreshTokenExpiry: &past,
	}, nil)

	svc := newTestService(store, nil)
	_, err = svc.RefreshAccessToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "expired")
}

func TestRefreshRejectsForgedToken(t *testing.T) {
	forged, exp, err := auth.NewIssuer("x", "other-refresh-secret", time.Hour, time.Hour).RefreshToken("u1")
	require.NoError(t, err)

	// Even a token stored verbatim with a live expiry fails signature
	// verification against the real refresh secret.
	store := &mockUserStore{}
	store.On("GetByRefreshToken", mock.Anything, forged).Return(model.User{
		ID: "u1", Role: model.RoleStudioAdmin, RefreshToken: forged, RefreshTokenExpiry: &exp,
	}, nil)

	svc := newTestService(store, nil)
	_, err = svc.RefreshAccessToken(context.Background(), forged)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	token, exp, err := testIssuer().RefreshToken("u1")
	require.NoError(t, err)

	store := &mockUserStore{}
	store.On("GetByRefreshToken", mock.Anything, token).Return(model.User{
		ID: "u1", Role: model.RoleSuperAdmin, RefreshToken: token, RefreshTokenExpiry: &exp,
	}, nil)

	svc := newTestService(store, nil)
	access, err := svc.RefreshAccessToken(context.Background(), token)
	require.NoError(t, err)

	claims, err := testIssuer().VerifyAccess(access)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, model.RoleSuperAdmin, claims.Role)

	// No rotation: the session columns stay untouched.
	store.AssertNotCalled(t, "SetSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "ClearSession", mock.Anything, mock.Anything, mock.Anything)
}

// --- Change password ---

func TestChangePasswordWrongOldPassword(t *testing.T) {
	store := &mockUserStore{}
	store.On("GetByID", mock.Anything, "u1").Return(model.User{
		ID: "u1", PasswordHash: hashOf(t, "secret1"),
	}, nil)

	svc := newTestService(store, nil)
	err := svc.ChangePassword(context.Background(), "u1", "wrong", "newpass1")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
	store.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestChangePasswordStoresNewHash(t *testing.T) {
	store := &mockUserStore{}
	store.On("GetByID", mock.Anything, "u1").Return(model.User{
		ID: "u1", PasswordHash: hashOf(t, "secret1"),
	}, nil)

	var newHash string
	store.On("UpdatePassword", mock.Anything, "u1", mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { newHash = args.String(2) }).Return(nil)

	svc := newTestService(store, nil)
	require.NoError(t, svc.ChangePassword(context.Background(), "u1", "secret1", "newpass1"))

	assert.NotEqual(t, "newpass1", newHash)
	assert.True(t, testHasher().Verify(context.Background(), "newpass1", newHash))
	assert.False(t, testHasher().Verify(context.Background(), "secret1", newHash))
}

// --- Logout ---

func TestLogoutRequiresToken(t *testing.T) {
	store := &mockUserStore{}
	svc := newTestService(store, nil)

	err := svc.Logout(context.Background(), "u1", "")
	assert.ErrorIs(t, err, ErrValidation)
	err = svc.Logout(context.Background(), "", "some-token")
	assert.ErrorIs(t, err, ErrValidation)
	store.AssertNotCalled(t, "ClearSession", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogoutInvalidToken(t *testing.T) {
	store := &mockUserStore{}
	store.On("ClearSession", mock.Anything, "u1", "stale-token").Return(false, nil)

	svc := newTestService(store, nil)
	err := svc.Logout(context.Background(), "u1", "stale-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogoutClearsSession(t *testing.T) {
	store := &mockUserStore{}
	store.On("ClearSession", mock.Anything, "u1", "live-token").Return(true, nil)

	svc := newTestService(store, nil)
	assert.NoError(t, svc.Logout(context.Background(), "u1", "live-token"))
	store.AssertExpectations(t)
}

// --- Reads ---

func TestCurrentUserStripsSecrets(t *testing.T) {
	exp := time.Now().UTC().Add(time.Hour)
	store := &mockUserStore{}
	store.On("GetByID", mock.Anything, "u1").Return(model.User{
		ID: "u1", Username: "alice", PasswordHash: "hash", RefreshToken: "tok", RefreshTokenExpiry: &exp,
	}, nil)

	svc := newTestService(store, nil)
	u, err := svc.CurrentUser(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, "alice", u.Username)
	assert.Empty(t, u.PasswordHash)
	assert.Empty(t, u.RefreshToken)
	assert.Nil(t, u.RefreshTokenExpiry)
}

func TestEditProfileIgnoresStudioNameForNonAdmins(t *testing.T) {
	studio := "Sneaky Studio"
	city := "Berlin"

	store := &mockUserStore{}
	var applied model.ProfileUpdate
	store.On("UpdateProfile", mock.Anything, "u1", mock.AnythingOfType("model.ProfileUpdate")).
		Run(func(args mock.Arguments) { applied = args.Get(2).(model.ProfileUpdate) }).
		Return(model.User{ID: "u1"}, nil)

	svc := newTestService(store, nil)
	_, err := svc.EditProfile(context.Background(), "u1", model.RoleUser, model.ProfileUpdate{
		StudioName: &studio, City: &city,
	})
	require.NoError(t, err)

	assert.Nil(t, applied.StudioName)
	require.NotNil(t, applied.City)
	assert.Equal(t, "Berlin", *applied.City)
}

func TestForgotPasswordOptionsMasking(t *testing.T) {
	store := &mockUserStore{}
	store.On("GetByEmail", mock.Anything, "a@x.com").Return(model.User{
		ID: "u1", Email: "a@x.com", PhoneNo: "1234567890",
	}, nil)
	store.On("GetByEmail", mock.Anything, "b@x.com").Return(model.User{
		ID: "u2", Email: "b@x.com", PhoneNo: "123",
	}, nil)

	svc := newTestService(store, nil)

	opts, err := svc.ForgotPasswordOptions(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "******7890", opts.SMS)
	assert.Equal(t, "a*****@x.com", opts.Email)
	assert.False(t, strings.Contains(opts.Email, "a@x.com"))

	// Too-short phone numbers are withheld entirely.
	opts, err = svc.ForgotPasswordOptions(context.Background(), "b@x.com")
	require.NoError(t, err)
	assert.Empty(t, opts.SMS)
}

// --- Full session lifecycle against an in-memory store ---

// memStore is a minimal in-memory UserStore used to exercise sequences of
// operations the per-method mocks cannot express.
type memStore struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemStore() *memStore { return &memStore{users: map[string]*model.User{}} }

func (s *memStore) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.users {
		if e.Username == u.Username {
			return repository.ErrUsernameExists
		}
		if e.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memStore) find(match func(*model.User) bool) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			return *u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *memStore) GetByID(_ context.Context, id string) (model.User, error) {
	return s.find(func(u *model.User) bool { return u.ID == id })
}

func (s *memStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	return s.find(func(u *model.User) bool { return u.Email == email })
}

func (s *memStore) GetByUsername(_ context.Context, username string) (model.User, error) {
	return s.find(func(u *model.User) bool { return u.Username == username })
}

func (s *memStore) GetByRefreshToken(_ context.Context, token string) (model.User, error) {
	return s.find(func(u *model.User) bool { return u.RefreshToken != "" && u.RefreshToken == token })
}

func (s *memStore) SetSession(_ context.Context, id, refreshToken string, expiry, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.RefreshToken = refreshToken
	u.RefreshTokenExpiry = &expiry
	u.LastSeen = &lastSeen
	return nil
}

func (s *memStore) ClearSession(_ context.Context, id, refreshToken string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.RefreshToken != refreshToken {
		return false, nil
	}
	u.RefreshToken = ""
	u.RefreshTokenExpiry = nil
	return true, nil
}

func (s *memStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *memStore) UpdateProfile(ctx context.Context, id string, up model.ProfileUpdate) (model.User, error) {
	s.mu.Lock()
	u, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		return model.User{}, repository.ErrNotFound
	}
	if up.Name != nil {
		u.Name = *up.Name
	}
	if up.StudioName != nil {
		u.StudioName = *up.StudioName
	}
	if up.City != nil {
		u.City = *up.City
	}
	s.mu.Unlock()
	return s.GetByID(ctx, id)
}

func TestSessionLifecycle(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	created, err := svc.Signup(ctx, SignupInput{Username: "alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	// Stored record holds a hash, not the plaintext.
	raw, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, raw.PasswordHash)
	assert.NotEqual(t, "secret1", raw.PasswordHash)

	res, err := svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	// The stored refresh token equals the one handed out, and last_seen is set.
	raw, err = store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, res.RefreshToken, raw.RefreshToken)
	require.NotNil(t, raw.RefreshTokenExpiry)
	assert.NotNil(t, raw.LastSeen)

	// Refresh works while the session is live and does not rotate.
	access, err := svc.RefreshAccessToken(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	raw, _ = store.GetByID(ctx, created.ID)
	assert.Equal(t, res.RefreshToken, raw.RefreshToken)

	// After logout the same token is dead, even though its own expiry
	// has not elapsed.
	require.NoError(t, svc.Logout(ctx, created.ID, res.RefreshToken))
	_, err = svc.RefreshAccessToken(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// A second logout with the same token is rejected.
	err = svc.Logout(ctx, created.ID, res.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestChangePasswordThenLogin(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	created, err := svc.Signup(ctx, SignupInput{Username: "alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, svc.ChangePassword(ctx, created.ID, "secret1", "brandnew2"))

	_, err = svc.Login(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "a@x.com", "brandnew2")
	assert.NoError(t, err)
}
