package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SkullXA/kaliun-connect-api/internal/config"
	"github.com/SkullXA/kaliun-connect-api/internal/services"
	"github.com/SkullXA/kaliun-connect-api/internal/token"
)

type InstallationHandler struct {
	registry *services.RegistryService
	config   *config.Config
}

func NewInstallationHandler(registry *services.RegistryService, cfg *config.Config) *InstallationHandler {
	return &InstallationHandler{registry: registry, config: cfg}
}

// bearerToken extracts the token from an Authorization header, or ""
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// Register godoc
//
//	@Summary		Register an installation
//	@Description	Idempotent device registration; returns the claim code, unchanged on repeat calls
//	@Tags			Installations
//	@Accept			json
//	@Produce		json
//	@Param			body	object{install_id=string,metadata=string}	true	"Registration request"
//	@Success		200		{object}	object{install_id=string,claim_code=string}
//	@Failure		400		{object}	object{error=string,error_description=string}
//	@Router			/installations/register [post]
func (h *InstallationHandler) Register(c *gin.Context) {
	var req struct {
		InstallID string `json:"install_id" binding:"required"`
		Metadata  string `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "install_id is required",
		})
		return
	}

	inst, created, err := h.registry.Register(req.InstallID, req.Metadata)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": err.Error(),
		})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"install_id": inst.InstallID,
		"claim_code": inst.ClaimCode,
	})
}

// FetchConfig godoc
//
//	@Summary		Fetch installation config
//	@Description	Claim-gated config fetch. Without a bearer token this is the one-time bootstrap that returns credentials; with a valid token it is an idempotent resync.
//	@Tags			Installations
//	@Produce		json
//	@Param			id	path	string	true	"Installation id"
//	@Success		200	{object}	services.ConfigPayload
//	@Failure		401	{object}	object{error=string,error_description=string}
//	@Failure		404	{object}	object{error=string,error_description=string}
//	@Router			/installations/{id}/config [get]
func (h *InstallationHandler) FetchConfig(c *gin.Context) {
	installID := c.Param("id")

	payload, err := h.registry.FetchConfig(c.Request.Context(), installID, bearerToken(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInstallationNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":             "not_found",
				"error_description": "Unknown installation",
			})
		case errors.Is(err, services.ErrNotClaimed):
			c.JSON(http.StatusNotFound, gin.H{
				"error":             "not_claimed",
				"error_description": "Installation has not been claimed yet",
			})
		case errors.Is(err, services.ErrBootstrapConsumed):
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":             "unauthorized",
				"error_description": "Bootstrap already confirmed, bearer token required",
			})
		case errors.Is(err, token.ErrExpiredToken):
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":             "token_expired",
				"error_description": "Access token expired, refresh and retry",
			})
		case errors.Is(err, token.ErrInvalidToken), errors.Is(err, services.ErrTokenMismatch):
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":             "token_invalid",
				"error_description": "Access token is not valid for this installation",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, payload)
}

// ConfirmConfig godoc
//
//	@Summary		Confirm bootstrap receipt
//	@Description	Marks the bootstrap credentials as received; irreversible
//	@Tags			Installations
//	@Produce		json
//	@Param			id	path	string	true	"Installation id"
//	@Success		204
//	@Failure		404	{object}	object{error=string,error_description=string}
//	@Router			/installations/{id}/config [delete]
func (h *InstallationHandler) ConfirmConfig(c *gin.Context) {
	installID := c.Param("id")

	if err := h.registry.ConfirmConfig(c.Request.Context(), installID); err != nil {
		if errors.Is(err, services.ErrInstallationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":             "not_found",
				"error_description": "Unknown installation",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": err.Error(),
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// RefreshToken godoc
//
//	@Summary		Rotate access token
//	@Description	Verifies a device refresh token and issues a new access token
//	@Tags			Installations
//	@Accept			json
//	@Produce		json
//	@Param			body	object{refresh_token=string}	true	"Refresh request"
//	@Success		200		{object}	services.TokenPair
//	@Failure		401		{object}	object{error=string,error_description=string}
//	@Router			/installations/token/refresh [post]
func (h *InstallationHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "refresh_token is required",
		})
		return
	}

	pair, err := h.registry.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpiredToken):
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":             "token_expired",
				"error_description": "Refresh token expired, re-bootstrap required",
			})
		case errors.Is(err, token.ErrInvalidToken),
			errors.Is(err, services.ErrTokenMismatch),
			errors.Is(err, services.ErrInstallationNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":             "invalid_grant",
				"error_description": "Refresh token is not valid",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, pair)
}

// SubmitHealth godoc
//
//	@Summary		Submit health payload
//	@Description	Persists a raw health report and updates the last-seen timestamp
//	@Tags			Installations
//	@Accept			json
//	@Produce		json
//	@Param			id	path	string	true	"Installation id"
//	@Success		204
//	@Failure		401	{object}	object{error=string,error_description=string}
//	@Router			/installations/{id}/health [post]
func (h *InstallationHandler) SubmitHealth(c *gin.Context) {
	installID := c.Param("id")

	payload, err := c.GetRawData()
	if err != nil || len(payload) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "health payload is required",
		})
		return
	}

	if err := h.registry.SubmitHealth(installID, bearerToken(c), string(payload)); err != nil {
		switch {
		case errors.Is(err, token.ErrExpiredToken):
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":             "token_expired",
				"error_description": "Access token expired, refresh and retry",
			})
		case errors.Is(err, token.ErrInvalidToken), errors.Is(err, services.ErrTokenMismatch):
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":             "token_invalid",
				"error_description": "Access token is not valid for this installation",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": err.Error(),
			})
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// ListInstallations returns the logged-in user's claimed installations.
func (h *InstallationHandler) ListInstallations(c *gin.Context) {
	userID := c.GetString("user_id")

	insts, err := h.registry.ListForOwner(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": err.Error(),
		})
		return
	}

	out := make([]gin.H, 0, len(insts))
	for _, inst := range insts {
		out = append(out, gin.H{
			"install_id":     inst.InstallID,
			"customer_name":  inst.CustomerName,
			"customer_email": inst.CustomerEmail,
			"confirmed":      inst.Confirmed,
			"claimed_at":     inst.ClaimedAt,
			"last_seen_at":   inst.LastSeenAt,
			"metadata":       inst.Metadata,
		})
	}

	c.JSON(http.StatusOK, gin.H{"installations": out})
}
