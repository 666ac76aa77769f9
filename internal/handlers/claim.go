package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SkullXA/kaliun-connect-api/internal/config"
	"github.com/SkullXA/kaliun-connect-api/internal/services"
)

// ClaimHandler drives the human "claim this device" flow.
type ClaimHandler struct {
	claims *services.ClaimService
	config *config.Config
}

func NewClaimHandler(claims *services.ClaimService, cfg *config.Config) *ClaimHandler {
	return &ClaimHandler{claims: claims, config: cfg}
}

// Claim handles POST /claim/:code. The user must already be logged in;
// RequireUser put their id on the context.
func (h *ClaimHandler) Claim(c *gin.Context) {
	claimCode := c.Param("code")
	userID := c.GetString("user_id")
	customerName := c.PostForm("customer_name")
	customerEmail := c.PostForm("customer_email")

	inst, err := h.claims.Claim(c.Request.Context(), claimCode, userID, customerName, customerEmail)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidClaimCode):
			redirectWithMessage(c, h.config.BaseURL, "/claim", "error", "That code does not look right, check it and try again")
		case errors.Is(err, services.ErrClaimCodeNotFound):
			redirectWithMessage(c, h.config.BaseURL, "/claim", "error", "Unknown claim code")
		case errors.Is(err, services.ErrAlreadyClaimed):
			redirectWithMessage(c, h.config.BaseURL, "/claim", "error", "This device has already been claimed")
		case errors.Is(err, services.ErrMissingCustomerRef):
			redirectWithMessage(c, h.config.BaseURL, "/claim", "error", "Customer name is required")
		default:
			redirectWithMessage(c, h.config.BaseURL, "/claim", "error", "Claim is temporarily unavailable")
		}
		return
	}

	redirectWithMessage(c, h.config.BaseURL, "/installations", "message", "Device "+inst.InstallID+" claimed")
}

// ClaimAPI handles the same operation for JSON clients.
func (h *ClaimHandler) ClaimAPI(c *gin.Context) {
	claimCode := c.Param("code")
	userID := c.GetString("user_id")

	var req struct {
		CustomerName  string `json:"customer_name"`
		CustomerEmail string `json:"customer_email"`
	}
	_ = c.ShouldBindJSON(&req)

	inst, err := h.claims.Claim(c.Request.Context(), claimCode, userID, req.CustomerName, req.CustomerEmail)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidClaimCode), errors.Is(err, services.ErrMissingCustomerRef):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             "invalid_request",
				"error_description": err.Error(),
			})
		case errors.Is(err, services.ErrClaimCodeNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":             "not_found",
				"error_description": "Unknown claim code",
			})
		case errors.Is(err, services.ErrAlreadyClaimed):
			c.JSON(http.StatusConflict, gin.H{
				"error":             "already_claimed",
				"error_description": "This device has already been claimed",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"install_id": inst.InstallID,
		"claimed_at": inst.ClaimedAt,
	})
}
