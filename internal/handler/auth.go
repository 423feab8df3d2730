package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/shutterdesk/studio-api/internal/service"
)

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Svc        *service.AuthService
	RefreshTTL time.Duration
}

func NewAuthHandler(svc *service.AuthService, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{Svc: svc, RefreshTTL: refreshTTL}
}

// ----- DTOs -----

type signupReq struct {
	Name       string `json:"name"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Address    string `json:"address"`
	Role       string `json:"role"`
	StudioName string `json:"studioName"`
	PhoneNo    string `json:"phoneNo"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	Logo     string `json:"logo"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordReq struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// sessionCookie builds a cookie with the attribute set used for both
// session cookies.  Clearing must use the identical path and SameSite
// attributes or browsers silently ignore the deletion.
func sessionCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

func (h *AuthHandler) setSessionCookies(c echo.Context, access, refresh string) {
	maxAge := int(h.RefreshTTL / time.Second)
	c.SetCookie(sessionCookie("accessToken", access, maxAge))
	c.SetCookie(sessionCookie("refreshToken", refresh, maxAge))
}

func (h *AuthHandler) clearSessionCookies(c echo.Context) {
	c.SetCookie(sessionCookie("accessToken", "", -1))
	c.SetCookie(sessionCookie("refreshToken", "", -1))
}

// refreshTokenFrom pulls the refresh token from the cookie or, failing
// that, from the request body.
func refreshTokenFrom(c echo.Context) string {
	if ck, err := c.Cookie("refreshToken"); err == nil && ck.Value != "" {
		return ck.Value
	}
	var req refreshReq
	_ = c.Bind(&req)
	return req.RefreshToken
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// Signup creates a studio account and returns the created record without
// the credential hash.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, nil, "invalid body")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Svc.Signup(ctx, service.SignupInput{
		Name:       req.Name,
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		Address:    req.Address,
		Role:       req.Role,
		StudioName: req.StudioName,
		PhoneNo:    req.PhoneNo,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusCreated, toUserResp(u), "User created successfully")
}

// Login verifies credentials and delivers the tokens on both channels:
// httpOnly cookies for browser clients and the access token in the body
// for bearer-token clients.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, nil, "invalid body")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	h.setSessionCookies(c, res.AccessToken, res.RefreshToken)
	return respond(c, http.StatusOK, loginResp{
		Token:    res.AccessToken,
		Username: res.User.Username,
		Role:     res.User.Role,
		Email:    res.User.Email,
		Logo:     res.User.Logo,
	}, "User logged in successfully")
}

// Refresh exchanges a refresh token (cookie or body) for a new access
// token.  The refresh token is not rotated and no cookie changes.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	token, err := h.Svc.RefreshAccessToken(ctx, refreshTokenFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, echo.Map{"token": token}, "Access token refreshed successfully")
}

// ChangePassword verifies the old password and stores the new one.  The
// outstanding refresh token stays valid.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	uid, ok := userIDFrom(c)
	if !ok {
		return respond(c, http.StatusUnauthorized, nil, "unauthorized")
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, nil, "invalid body")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.ChangePassword(ctx, uid, req.OldPassword, req.NewPassword); err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, nil, "Password changed successfully")
}

// Logout clears the stored session and both cookies.  It requires the
// authenticated user id and the refresh token; without either, nothing in
// the store changes.
func (h *AuthHandler) Logout(c echo.Context) error {
	uid, ok := userIDFrom(c)
	if !ok {
		return respond(c, http.StatusUnauthorized, nil, "unauthorized")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.Logout(ctx, uid, refreshTokenFrom(c)); err != nil {
		return respondError(c, err)
	}
	h.clearSessionCookies(c)
	return respond(c, http.StatusOK, echo.Map{}, "User logged out successfully")
}

// ForgotPasswordOptions returns masked reset channels for an account.
// The masking keeps the response useful for channel selection without
// disclosing the stored contact details.
func (h *AuthHandler) ForgotPasswordOptions(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return respond(c, http.StatusBadRequest, nil, "email is required")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	opts, err := h.Svc.ForgotPasswordOptions(ctx, email)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, echo.Map{
		"options": echo.Map{
			"sms":   orNil(opts.SMS),
			"email": orNil(opts.Email),
		},
	}, "Choose a method to reset your password")
}

// orNil renders an empty string as JSON null so unavailable channels are
// explicit in the response.
func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
