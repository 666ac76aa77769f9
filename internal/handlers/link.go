package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/SkullXA/kaliun-connect-api/internal/config"
	"github.com/SkullXA/kaliun-connect-api/internal/services"
)

// LinkHandler drives the human side of the device authorization flow:
// an authenticated user types the user code shown on the device.
type LinkHandler struct {
	deviceAuth *services.DeviceAuthService
	config     *config.Config
}

func NewLinkHandler(da *services.DeviceAuthService, cfg *config.Config) *LinkHandler {
	return &LinkHandler{deviceAuth: da, config: cfg}
}

// Link handles POST /link (and GET /link?code= pre-fills the form on the
// frontend). Re-submitting an already-authorized code is not an error.
func (h *LinkHandler) Link(c *gin.Context) {
	userCode := c.PostForm("code")
	if userCode == "" {
		userCode = c.Query("code")
	}
	userID := c.GetString("user_id")

	if userCode == "" {
		redirectWithMessage(c, h.config.BaseURL, "/link", "error", "Please enter the code shown on your device")
		return
	}

	req, err := h.deviceAuth.Authorize(userCode, userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserCodeNotFound):
			redirectWithMessage(c, h.config.BaseURL, "/link", "error", "Unknown code, check it and try again")
		case errors.Is(err, services.ErrUserCodeExpired):
			redirectWithMessage(c, h.config.BaseURL, "/link", "error", "That code has expired, request a new one on your device")
		default:
			redirectWithMessage(c, h.config.BaseURL, "/link", "error", "Linking is temporarily unavailable")
		}
		return
	}

	if req.UserID != userID {
		// Idempotent authorize never rebinds; tell the second user.
		redirectWithMessage(c, h.config.BaseURL, "/link", "message", "This device was already linked by another user")
		return
	}

	redirectWithMessage(c, h.config.BaseURL, "/link", "message", "Device linked, it will finish signing in shortly")
}
