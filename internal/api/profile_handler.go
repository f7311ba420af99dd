package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coachhub/coachhub-api/internal/core"
	"github.com/coachhub/coachhub-api/internal/middleware"
)

// ProfileHandler serves the caller's own profile.
type ProfileHandler struct {
	responder
}

func NewProfileHandler(r responder) *ProfileHandler {
	return &ProfileHandler{responder: r}
}

// Me handles GET /api/me.
func (h *ProfileHandler) Me(c *gin.Context) {
	profile, ok := middleware.ProfileFrom(c)
	if !ok {
		h.fail(c, core.ErrUnauthenticated)
		return
	}
	h.ok(c, http.StatusOK, "Profile retrieved", toProfileDTO(profile))
}
