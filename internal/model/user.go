package model

import "time"

// Role values stored in users.role.  STUDIO_ADMIN is the default for new
// signups; SUPER_ADMIN is reserved for platform operators and USER for
// gallery clients invited by a studio.
const (
	RoleStudioAdmin = "STUDIO_ADMIN"
	RoleSuperAdmin  = "SUPER_ADMIN"
	RoleUser        = "USER"
)

// Provider values stored in users.provider.  Only LOCAL accounts are
// exercised by the auth flows; the federated values exist for the data
// model but have no login path.
const (
	ProviderLocal    = "LOCAL"
	ProviderGoogle   = "GOOGLE"
	ProviderFacebook = "FACEBOOK"
)

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column.  The json tags are omitted
// here because these structs are used internally by the repository and
// service layers; handlers define separate response types with appropriate
// JSON tags and never serialize PasswordHash or RefreshToken.
//
// RefreshToken and RefreshTokenExpiry travel together: either both are set
// (an active session exists) or both are cleared.  At most one refresh
// token is outstanding per user.
type User struct {
	ID                 string     // users.id (UUID)
	Username           string     // users.username (unique)
	Email              string     // users.email (unique)
	PasswordHash       string     // users.password_hash (bcrypt)
	Role               string     // users.role
	Name               string     // users.name
	StudioName         string     // users.studio_name
	PhoneNo            string     // users.phone_no
	Address            string     // users.address
	Country            string     // users.country
	City               string     // users.city
	Zipcode            string     // users.zipcode
	About              string     // users.about
	Logo               string     // users.logo (avatar URL)
	CoverImage         string     // users.cover_image
	Provider           string     // users.provider
	RefreshToken       string     // users.refresh_token (empty when logged out)
	RefreshTokenExpiry *time.Time // users.refresh_token_expiry (nullable)
	LastSeen           *time.Time // users.last_seen (nullable)
	CreatedAt          time.Time  // users.created_at
	UpdatedAt          time.Time  // users.updated_at
}

// ProfileUpdate carries the optional fields of a partial profile edit.
// A nil pointer leaves the corresponding column untouched; a non-nil
// pointer overwrites it.  Credential and session columns are deliberately
// absent: profile edits can never touch password_hash or refresh_token.
type ProfileUpdate struct {
	Name       *string
	StudioName *string
	PhoneNo    *string
	Address    *string
	Country    *string
	City       *string
	Zipcode    *string
	About      *string
	Logo       *string
	CoverImage *string
}
