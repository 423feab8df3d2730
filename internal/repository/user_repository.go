package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shutterdesk/studio-api/internal/model"
)

// UserStore is the persistence boundary for identity and session state.
// The auth service depends on this interface, not on MySQL directly, so
// tests can substitute an in-memory implementation.
//
// SetSession and ClearSession are the only ways session columns change.
// ClearSession is a conditional update: it clears the stored refresh token
// only while it still equals the supplied value, which makes the
// read-then-clear sequence in logout safe against a concurrent login or
// refresh on the same user.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByRefreshToken(ctx context.Context, token string) (model.User, error)
	SetSession(ctx context.Context, id, refreshToken string, expiry, lastSeen time.Time) error
	ClearSession(ctx context.Context, id, refreshToken string) (bool, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id string, up model.ProfileUpdate) (model.User, error)
}

// UserRepo implements UserStore against the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = "id,username,email,password_hash,role,name,studio_name,phone_no,address," +
	"country,city,zipcode,about,logo,cover_image,provider,refresh_token,refresh_token_expiry," +
	"last_seen,created_at,updated_at"

// scanUser maps one row onto a model.User, collapsing NULL text columns to
// empty strings.
func scanUser(row *sql.Row) (model.User, error) {
	var (
		u                         model.User
		name, studio, phone, addr sql.NullString
		country, city, zip, about sql.NullString
		logo, cover, refresh      sql.NullString
		refreshExpiry, lastSeen   sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&name, &studio, &phone, &addr, &country, &city, &zip, &about,
		&logo, &cover, &u.Provider, &refresh, &refreshExpiry, &lastSeen,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	u.Name = name.String
	u.StudioName = studio.String
	u.PhoneNo = phone.String
	u.Address = addr.String
	u.Country = country.String
	u.City = city.String
	u.Zipcode = zip.String
	u.About = about.String
	u.Logo = logo.String
	u.CoverImage = cover.String
	u.RefreshToken = refresh.String
	if refreshExpiry.Valid {
		t := refreshExpiry.Time
		u.RefreshTokenExpiry = &t
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		u.LastSeen = &t
	}
	return u, nil
}

// Create inserts a new user record.  Duplicate username/email violations
// are mapped to the package sentinels by inspecting the MySQL 1062 error,
// which names the violated unique index.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, role, name, studio_name,
		 phone_no, address, logo, provider, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,NOW(),NOW())`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Role,
		nullable(u.Name), nullable(u.StudioName), nullable(u.PhoneNo),
		nullable(u.Address), nullable(u.Logo), u.Provider)
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "1062") {
			if strings.Contains(msg, "email") {
				return ErrEmailExists
			}
			return ErrUsernameExists
		}
		return err
	}
	return nil
}

// GetByID fetches a user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByEmail fetches a user by email, case-sensitive as stored.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByUsername fetches a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE username=? LIMIT 1", username))
}

// GetByRefreshToken fetches the user currently holding the given refresh
// token.  A logged-out or rotated token matches no row.
func (r *UserRepo) GetByRefreshToken(ctx context.Context, token string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE refresh_token=? LIMIT 1", token))
}

// SetSession stores the refresh token, its expiry and the last-seen time in
// one statement so a login updates all session columns atomically.
func (r *UserRepo) SetSession(ctx context.Context, id, refreshToken string, expiry, lastSeen time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token=?, refresh_token_expiry=?, last_seen=? WHERE id=?",
		refreshToken, expiry, lastSeen, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearSession clears the session columns only while the stored token still
// equals the supplied value (compare-and-clear).  It reports whether a row
// was cleared; false means the id/token pair did not match.
func (r *UserRepo) ClearSession(ctx context.Context, id, refreshToken string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token=NULL, refresh_token_expiry=NULL WHERE id=? AND refresh_token=?",
		id, refreshToken)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdatePassword overwrites the credential hash.  No other column changes.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", passwordHash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile applies a partial update field by field.  Only columns with
// a non-nil pointer in the update struct appear in the SET clause; an
// update with no fields set is a no-op read.
func (r *UserRepo) UpdateProfile(ctx context.Context, id string, up model.ProfileUpdate) (model.User, error) {
	sets := make([]string, 0, 10)
	args := make([]any, 0, 11)
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+"=?")
			args = append(args, *v)
		}
	}
	add("name", up.Name)
	add("studio_name", up.StudioName)
	add("phone_no", up.PhoneNo)
	add("address", up.Address)
	add("country", up.Country)
	add("city", up.City)
	add("zipcode", up.Zipcode)
	add("about", up.About)
	add("logo", up.Logo)
	add("cover_image", up.CoverImage)

	if len(sets) > 0 {
		args = append(args, id)
		// RowsAffected is 0 both for a missing row and for unchanged
		// values, so existence is confirmed by the read below instead.
		if _, err := r.DB.ExecContext(ctx,
			"UPDATE users SET "+strings.Join(sets, ", ")+", updated_at=NOW() WHERE id=?", args...); err != nil {
			return model.User{}, err
		}
	}
	return r.GetByID(ctx, id)
}

// nullable converts an empty string to a SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
