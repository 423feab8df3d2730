package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/shutterdesk/studio-api/internal/model"
	"github.com/shutterdesk/studio-api/internal/service"
)

// apiResponse is the uniform envelope every endpoint answers with.
type apiResponse struct {
	Status  int    `json:"status"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

func respond(c echo.Context, status int, data any, message string) error {
	return c.JSON(status, apiResponse{Status: status, Data: data, Message: message})
}

// respondError maps service sentinels onto HTTP statuses.  Anything not in
// the taxonomy (including hashing failures) is logged server-side and
// surfaced as a generic 500 with no internal detail.
func respondError(c echo.Context, err error) error {
	var status int
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUnauthorized):
		status = http.StatusUnauthorized
	default:
		c.Logger().Error(err)
		return respond(c, http.StatusInternalServerError, nil, "internal server error")
	}
	return respond(c, status, nil, err.Error())
}

// userResp is the identity view returned to authenticated clients.  It
// has no fields for the credential hash or session columns, so those can
// never leak through serialization.
type userResp struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	Name       string     `json:"name,omitempty"`
	StudioName string     `json:"studioName,omitempty"`
	PhoneNo    string     `json:"phoneNo,omitempty"`
	Address    string     `json:"address,omitempty"`
	Country    string     `json:"country,omitempty"`
	City       string     `json:"city,omitempty"`
	Zipcode    string     `json:"zipcode,omitempty"`
	About      string     `json:"about,omitempty"`
	Logo       string     `json:"logo,omitempty"`
	CoverImage string     `json:"coverImage,omitempty"`
	LastSeen   *time.Time `json:"lastSeen,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func toUserResp(u model.User) userResp {
	return userResp{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Role:       u.Role,
		Name:       u.Name,
		StudioName: u.StudioName,
		PhoneNo:    u.PhoneNo,
		Address:    u.Address,
		Country:    u.Country,
		City:       u.City,
		Zipcode:    u.Zipcode,
		About:      u.About,
		Logo:       u.Logo,
		CoverImage: u.CoverImage,
		LastSeen:   u.LastSeen,
		CreatedAt:  u.CreatedAt,
	}
}

// userIDFrom reads the authenticated user id placed in the context by the
// JWT middleware.
func userIDFrom(c echo.Context) (string, bool) {
	uid, ok := c.Get("user_id").(string)
	return uid, ok && uid != ""
}
