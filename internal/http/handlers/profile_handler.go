// Profile, preferences, and options HTTP handlers.
//
//   - GET /profile      PUT /profile
//   - GET /preferences  PUT /preferences
//   - GET /options      (shared vocabularies, not user-scoped)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nourishd/go-nourish-backend/internal/domain"
	"github.com/nourishd/go-nourish-backend/internal/services"
)

// ProfileRequest is the JSON payload for PUT /profile. Timestamps are
// server-managed and ignored on input.
type ProfileRequest struct {
	Name       string `json:"name" binding:"required,min=1"`
	Email      string `json:"email"`
	Age        int    `json:"age"`
	BloodGroup string `json:"bloodGroup"`
}

// GetProfile returns the user's profile or 404 before onboarding completes.
func (h *Handlers) GetProfile(c *gin.Context) {
	p, err := h.profSvc.GetProfile(c.Request.Context(), userID(c))
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "profile not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not read profile")
		return
	}
	ok(c, http.StatusOK, p)
}

// SaveProfile creates or replaces the profile. CreatedAt is preserved
// across replacements.
func (h *Handlers) SaveProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	}

	p, err := h.profSvc.SaveProfile(c.Request.Context(), userID(c), domain.UserProfile{
		Name:       req.Name,
		Email:      req.Email,
		Age:        req.Age,
		BloodGroup: req.BloodGroup,
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not save profile")
		return
	}
	ok(c, http.StatusOK, p)
}

// GetPreferences returns the user's preferences. A user who never saved
// any gets empty sets, not an error.
func (h *Handlers) GetPreferences(c *gin.Context) {
	prefs, err := h.profSvc.GetPreferences(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not read preferences")
		return
	}
	ok(c, http.StatusOK, prefs)
}

// SavePreferences replaces the preference sets wholesale.
func (h *Handlers) SavePreferences(c *gin.Context) {
	var prefs domain.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid preferences")
		return
	}
	if err := h.profSvc.SavePreferences(c.Request.Context(), userID(c), prefs); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not save preferences")
		return
	}
	ok(c, http.StatusOK, prefs)
}

// GetOptions returns the shared application vocabularies used by
// onboarding and profile screens.
func (h *Handlers) GetOptions(c *gin.Context) {
	opts, err := h.profSvc.Options(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not read options")
		return
	}
	ok(c, http.StatusOK, opts)
}
