package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shutterdesk/studio-api/internal/model"
	"github.com/shutterdesk/studio-api/internal/service"
)

// ProfileHandler serves the authenticated profile endpoints and the public
// studio page.
type ProfileHandler struct {
	Svc *service.AuthService
}

func NewProfileHandler(svc *service.AuthService) *ProfileHandler {
	return &ProfileHandler{Svc: svc}
}

type profileReq struct {
	Name       *string `json:"name"`
	StudioName *string `json:"studioName"`
	PhoneNo    *string `json:"phoneNo"`
	Address    *string `json:"address"`
	Country    *string `json:"country"`
	City       *string `json:"city"`
	Zipcode    *string `json:"zipcode"`
	About      *string `json:"about"`
	Logo       *string `json:"logo"`
	CoverImage *string `json:"coverImage"`
}

// studioResp is the public studio page view.  Contact details (email,
// phone, address) are withheld.
type studioResp struct {
	Username   string `json:"username"`
	Name       string `json:"name,omitempty"`
	StudioName string `json:"studioName,omitempty"`
	About      string `json:"about,omitempty"`
	Country    string `json:"country,omitempty"`
	City       string `json:"city,omitempty"`
	Logo       string `json:"logo,omitempty"`
	CoverImage string `json:"coverImage,omitempty"`
}

// Me returns the authenticated user's identity record.
func (h *ProfileHandler) Me(c echo.Context) error {
	uid, ok := userIDFrom(c)
	if !ok {
		return respond(c, http.StatusUnauthorized, nil, "unauthorized")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Svc.CurrentUser(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, toUserResp(u), "current user details fetched successfully")
}

// EditProfile applies a partial update to the authenticated user's
// profile fields.  Absent JSON fields leave their columns untouched.
func (h *ProfileHandler) EditProfile(c echo.Context) error {
	uid, ok := userIDFrom(c)
	if !ok {
		return respond(c, http.StatusUnauthorized, nil, "unauthorized")
	}
	role, _ := c.Get("role").(string)

	var req profileReq
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, nil, "invalid body")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Svc.EditProfile(ctx, uid, role, model.ProfileUpdate{
		Name:       req.Name,
		StudioName: req.StudioName,
		PhoneNo:    req.PhoneNo,
		Address:    req.Address,
		Country:    req.Country,
		City:       req.City,
		Zipcode:    req.Zipcode,
		About:      req.About,
		Logo:       req.Logo,
		CoverImage: req.CoverImage,
	})
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, toUserResp(u), "Profile updated successfully")
}

// Studio returns the public profile of a studio by username.  This route
// sits behind the Redis response cache.
func (h *ProfileHandler) Studio(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Svc.StudioProfile(ctx, c.Param("username"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, studioResp{
		Username:   u.Username,
		Name:       u.Name,
		StudioName: u.StudioName,
		About:      u.About,
		Country:    u.Country,
		City:       u.City,
		Logo:       u.Logo,
		CoverImage: u.CoverImage,
	}, "studio profile fetched successfully")
}
