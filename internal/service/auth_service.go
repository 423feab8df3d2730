package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shutterdesk/studio-api/internal/auth"
	"github.com/shutterdesk/studio-api/internal/model"
	"github.com/shutterdesk/studio-api/internal/queue"
	"github.com/shutterdesk/studio-api/internal/repository"
)

// EventPublisher emits domain events to the message broker.  Publish
// failures never fail the originating operation; they are logged and
// dropped.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, ev queue.UserRegisteredEvent) error
}

// AuthService orchestrates signup, login, token refresh, logout, password
// change and profile access.  It is stateless between calls: all session
// state lives in the user store.
type AuthService struct {
	users  repository.UserStore
	hasher *auth.Hasher
	tokens *auth.Issuer
	events EventPublisher
	logger *slog.Logger
}

// NewAuthService wires the service dependencies.  events may be nil when
// no broker is configured.
func NewAuthService(users repository.UserStore, hasher *auth.Hasher, tokens *auth.Issuer, events EventPublisher, logger *slog.Logger) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens, events: events, logger: logger}
}

// SignupInput holds the fields accepted at registration.  Role defaults to
// STUDIO_ADMIN when empty.
type SignupInput struct {
	Name       string
	Username   string
	Email      string
	Password   string
	Address    string
	Role       string
	StudioName string
	PhoneNo    string
}

// LoginResult carries everything the handler needs to answer a login:
// the access token for the response body, the refresh token and its
// expiry for the cookie, and the sanitized user.
type LoginResult struct {
	AccessToken   string
	RefreshToken  string
	RefreshExpiry time.Time
	User          model.User
}

// Signup registers a new studio account.  The username must be free, the
// password is bcrypt-hashed before storage, and an avatar URL is derived
// from the display name.  The returned record never contains the hash.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (model.User, error) {
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return model.User{}, fmt.Errorf("%w: username, email and password are required", ErrValidation)
	}
	role := in.Role
	if role == "" {
		role = model.RoleStudioAdmin
	}
	switch role {
	case model.RoleStudioAdmin, model.RoleSuperAdmin, model.RoleUser:
	default:
		return model.User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, in.Role)
	}

	if _, err := s.users.GetByUsername(ctx, in.Username); err == nil {
		return model.User{}, fmt.Errorf("%w: username already exists", ErrConflict)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, fmt.Errorf("lookup username: %w", err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %v", ErrHashing, err)
	}

	u := model.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		Name:         in.Name,
		StudioName:   in.StudioName,
		PhoneNo:      in.PhoneNo,
		Address:      in.Address,
		Logo:         avatarURL(in.Name, in.Username),
		Provider:     model.ProviderLocal,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrUsernameExists) || errors.Is(err, repository.ErrEmailExists) {
			return model.User{}, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	if s.events != nil {
		ev := queue.UserRegisteredEvent{
			UserID:       u.ID,
			Username:     u.Username,
			Email:        u.Email,
			Name:         u.Name,
			StudioName:   u.StudioName,
			Role:         u.Role,
			RegisteredAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.events.PublishUserRegistered(ctx, ev); err != nil {
			s.logger.ErrorContext(ctx, "publish user.registered failed",
				slog.String("user_id", u.ID), slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", u.ID), slog.String("username", u.Username))

	return sanitize(u), nil
}

// Login verifies the credentials, issues an access/refresh token pair and
// stores the refresh token, its expiry and the last-seen time on the
// identity record in one atomic update.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if email == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return LoginResult{}, fmt.Errorf("%w with this email", ErrNotFound)
		}
		return LoginResult{}, fmt.Errorf("lookup email: %w", err)
	}
	if !s.hasher.Verify(ctx, password, u.PasswordHash) {
		return LoginResult{}, ErrInvalidCredentials
	}

	access, _, err := s.tokens.AccessToken(u.ID, u.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := s.tokens.RefreshToken(u.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue refresh token: %w", err)
	}

	now := time.Now().UTC()
	if err := s.users.SetSession(ctx, u.ID, refresh, refreshExp, now); err != nil {
		return LoginResult{}, fmt.Errorf("store session: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", u.ID), slog.String("username", u.Username))

	return LoginResult{
		AccessToken:   access,
		RefreshToken:  refresh,
		RefreshExpiry: refreshExp,
		User:          sanitize(u),
	}, nil
}

// RefreshAccessToken exchanges a stored, unexpired refresh token for a new
// access token.  The refresh token itself is not rotated.  The stored
// expiry is authoritative: a cryptographically valid token is rejected
// once the record-side expiry has passed or the stored value no longer
// matches (logout or a newer login replaced it).
func (s *AuthService) RefreshAccessToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: refresh token required", ErrUnauthorized)
	}

	u, err := s.users.GetByRefreshToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
		}
		return "", fmt.Errorf("lookup refresh token: %w", err)
	}
	// Re-check against the stored value; the store may have changed between
	// the lookup and now if a logout raced this request.
	if u.RefreshToken != token {
		return "", fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	}
	if u.RefreshTokenExpiry == nil || time.Now().UTC().After(*u.RefreshTokenExpiry) {
		return "", fmt.Errorf("%w: refresh token expired", ErrUnauthorized)
	}
	claims, err := s.tokens.VerifyRefresh(token)
	if err != nil {
		return "", fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	}

	access, _, err := s.tokens.AccessToken(claims.UserID, u.Role)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	return access, nil
}

// ChangePassword verifies the old password and stores the hash of the new
// one.  The outstanding refresh token is left untouched.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if userID == "" || oldPassword == "" || newPassword == "" {
		return fmt.Errorf("%w: old and new passwords are required", ErrValidation)
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if !s.hasher.Verify(ctx, oldPassword, u.PasswordHash) {
		return fmt.Errorf("%w: invalid old password", ErrInvalidCredentials)
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHashing, err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("store password: %w", err)
	}

	s.logger.InfoContext(ctx, "password changed", slog.String("user_id", userID))
	return nil
}

// Logout clears the session columns, but only while the stored refresh
// token still equals the supplied one.  The conditional update keeps a
// concurrent refresh from resurrecting a just-cleared session.
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string) error {
	if userID == "" {
		return fmt.Errorf("%w: user required", ErrValidation)
	}
	if refreshToken == "" {
		return fmt.Errorf("%w: refresh token missing", ErrValidation)
	}

	cleared, err := s.users.ClearSession(ctx, userID, refreshToken)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if !cleared {
		// Do not reveal whether the id or the token was wrong.
		return fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	}

	s.logger.InfoContext(ctx, "user logged out", slog.String("user_id", userID))
	return nil
}

// CurrentUser returns the identity record for an authenticated user with
// all secrets stripped.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return sanitize(u), nil
}

// EditProfile applies a partial profile update.  The studio name is only
// updatable by studio admins; for other roles the field is ignored.
func (s *AuthService) EditProfile(ctx context.Context, userID, role string, up model.ProfileUpdate) (model.User, error) {
	if role != model.RoleStudioAdmin {
		up.StudioName = nil
	}
	u, err := s.users.UpdateProfile(ctx, userID, up)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("update profile: %w", err)
	}
	return sanitize(u), nil
}

// StudioProfile returns the public view of a studio account looked up by
// username.  Secrets are stripped here; the handler additionally withholds
// contact fields from the response.
func (s *AuthService) StudioProfile(ctx context.Context, username string) (model.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("lookup username: %w", err)
	}
	return sanitize(u), nil
}

// RecoveryOptions are the masked delivery channels offered for a password
// reset.  Empty values mean the channel is unavailable.
type RecoveryOptions struct {
	SMS   string
	Email string
}

// ForgotPasswordOptions returns masked phone and email hints for the
// account so the client can offer a reset channel without disclosing the
// full contact details.  OTP issuance itself happens elsewhere.
func (s *AuthService) ForgotPasswordOptions(ctx context.Context, email string) (RecoveryOptions, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return RecoveryOptions{}, fmt.Errorf("%w with this email", ErrNotFound)
		}
		return RecoveryOptions{}, fmt.Errorf("lookup email: %w", err)
	}
	return RecoveryOptions{
		SMS:   maskPhone(u.PhoneNo),
		Email: maskEmail(u.Email),
	}, nil
}

// sanitize strips the credential hash and session fields from a record
// before it leaves the service.
func sanitize(u model.User) model.User {
	u.PasswordHash = ""
	u.RefreshToken = ""
	u.RefreshTokenExpiry = nil
	return u
}

// avatarURL derives a deterministic default avatar from the display name,
// falling back to the username.
func avatarURL(name, username string) string {
	if name == "" {
		name = username
	}
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random&color=fff"
}

// maskPhone keeps the last four digits, e.g. "******7890".  Numbers of
// four digits or fewer are withheld entirely.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return ""
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// maskEmail keeps the first character and the domain, e.g. "a*****@x.com".
func maskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return ""
	}
	return email[:1] + "*****" + email[at:]
}
