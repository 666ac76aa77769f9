package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SkullXA/kaliun-connect-api/internal/codes"
	"github.com/SkullXA/kaliun-connect-api/internal/config"
	"github.com/SkullXA/kaliun-connect-api/internal/services"
	"github.com/SkullXA/kaliun-connect-api/internal/token"
)

const (
	// https://datatracker.ietf.org/doc/html/rfc8628#section-3.4
	GrantTypeDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"
	// https://datatracker.ietf.org/doc/html/rfc6749#section-6
	GrantTypeRefreshToken = "refresh_token"
)

type OAuthHandler struct {
	deviceAuth *services.DeviceAuthService
	oauth      *services.OAuthService
	config     *config.Config
}

func NewOAuthHandler(
	da *services.DeviceAuthService,
	oa *services.OAuthService,
	cfg *config.Config,
) *OAuthHandler {
	return &OAuthHandler{deviceAuth: da, oauth: oa, config: cfg}
}

// DeviceCodeRequest godoc
//
//	@Summary		Start device authorization
//	@Description	Issues a device_code/user_code pair (RFC 8628 section 3.2)
//	@Tags			OAuth
//	@Accept			x-www-form-urlencoded
//	@Accept			json
//	@Produce		json
//	@Param			client_id	formData	string	true	"Client identifier"
//	@Param			scope		formData	string	false	"Requested scope"
//	@Success		200	{object}	object{device_code=string,user_code=string,verification_uri=string,expires_in=int,interval=int}
//	@Failure		400	{object}	object{error=string,error_description=string}
//	@Router			/oauth/device/code [post]
func (h *OAuthHandler) DeviceCodeRequest(c *gin.Context) {
	clientID := c.PostForm("client_id")
	scope := c.PostForm("scope")
	if clientID == "" {
		var req struct {
			ClientID string `json:"client_id"`
			Scope    string `json:"scope"`
		}
		if err := c.ShouldBindJSON(&req); err == nil {
			clientID = req.ClientID
			scope = req.Scope
		}
	}

	req, err := h.deviceAuth.RequestCode(clientID, scope)
	if err != nil {
		if errors.Is(err, services.ErrMissingClientID) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             "invalid_request",
				"error_description": "client_id is required",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": err.Error(),
		})
		return
	}

	userCode := codes.FormatUserCode(req.UserCode)
	c.JSON(http.StatusOK, gin.H{
		"device_code":               req.DeviceCode,
		"user_code":                 userCode,
		"verification_uri":          h.config.BaseURL + "/link",
		"verification_uri_complete": h.config.BaseURL + "/link?code=" + userCode,
		"expires_in":                int(h.config.DeviceAuthExpiration.Seconds()),
		"interval":                  req.Interval,
	})
}

// Token godoc
//
//	@Summary		Request access token
//	@Description	Poll-exchange a device code or refresh an oauth token pair (RFC 8628 and RFC 6749)
//	@Tags			OAuth
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string	true	"Grant type: 'urn:ietf:params:oauth:grant-type:device_code' or 'refresh_token'"
//	@Param			device_code		formData	string	false	"Device code (device_code grant)"
//	@Param			client_id		formData	string	false	"Client identifier"
//	@Param			refresh_token	formData	string	false	"Refresh token (refresh_token grant)"
//	@Success		200	{object}	object{access_token=string,refresh_token=string,token_type=string,expires_in=int}
//	@Failure		400	{object}	object{error=string,error_description=string}
//	@Router			/oauth/token [post]
func (h *OAuthHandler) Token(c *gin.Context) {
	grantType := c.PostForm("grant_type")

	switch grantType {
	case GrantTypeDeviceCode:
		h.handleDeviceCodeGrant(c)
	case GrantTypeRefreshToken:
		h.handleRefreshTokenGrant(c)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported_grant_type",
			"error_description": "Supported grant types: device_code, refresh_token",
		})
	}
}

func (h *OAuthHandler) handleDeviceCodeGrant(c *gin.Context) {
	deviceCode := c.PostForm("device_code")
	clientID := c.PostForm("client_id")

	if deviceCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "device_code is required",
		})
		return
	}

	pair, err := h.oauth.ExchangeDeviceCode(deviceCode, clientID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAuthorizationPending):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "authorization_pending",
			})
		case errors.Is(err, services.ErrExpiredToken):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "expired_token",
			})
		case errors.Is(err, services.ErrAccessDenied):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "access_denied",
			})
		case errors.Is(err, services.ErrInvalidGrant):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid_grant",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":             "server_error",
				"error_description": err.Error(),
			})
		}
		return
	}

	h.writeTokenPair(c, pair)
}

func (h *OAuthHandler) handleRefreshTokenGrant(c *gin.Context) {
	refreshToken := c.PostForm("refresh_token")
	if refreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "refresh_token is required",
		})
		return
	}

	pair, err := h.oauth.Refresh(refreshToken)
	if err != nil {
		if errors.Is(err, services.ErrInvalidGrant) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid_grant",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": err.Error(),
		})
		return
	}

	h.writeTokenPair(c, pair)
}

// Userinfo godoc
//
//	@Summary		Resolve access token
//	@Description	Returns the identity behind an oauth access token
//	@Tags			OAuth
//	@Produce		json
//	@Success		200	{object}	object{sub=string,preferred_username=string,email=string,name=string}
//	@Failure		401	{object}	object{error=string,error_description=string}
//	@Router			/oauth/userinfo [get]
func (h *OAuthHandler) Userinfo(c *gin.Context) {
	accessToken := bearerToken(c)
	if accessToken == "" {
		c.Header("WWW-Authenticate", `Bearer realm="Userinfo"`)
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "invalid_request",
			"error_description": "Bearer token required",
		})
		return
	}

	user, err := h.oauth.Userinfo(accessToken)
	if err != nil {
		code := "invalid_token"
		if errors.Is(err, token.ErrExpiredToken) {
			code = "token_expired"
		}
		c.Header("WWW-Authenticate", `Bearer realm="Userinfo"`)
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             code,
			"error_description": "Access token is not valid",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sub":                user.ID,
		"preferred_username": user.Username,
		"email":              user.Email,
		"name":               user.FullName,
	})
}

func (h *OAuthHandler) writeTokenPair(c *gin.Context, pair *services.TokenPair) {
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    "Bearer",
		"expires_in":    int(h.config.OAuthAccessTokenTTL.Seconds()),
	})
}
