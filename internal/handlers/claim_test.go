package handlers

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/SkullXA/kaliun-connect-api/internal/metrics"
	"github.com/SkullXA/kaliun-connect-api/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// claimEnv extends the shared env with the claim routes, faking the
// auth middleware by injecting user_id directly.
func setupClaimEnv(t *testing.T, userID string) (*testEnv, *services.ClaimService) {
	env := setupTestEnv(t)
	claims := services.NewClaimService(env.store, env.registry, metrics.NewNoopMetrics())
	handler := NewClaimHandler(claims, env.config)

	asUser := func(c *gin.Context) {
		c.Set("user_id", userID)
	}
	env.router.POST("/claim/:code", asUser, handler.Claim)
	env.router.POST("/api/claim/:code", asUser, handler.ClaimAPI)
	return env, claims
}

func TestClaimAPIEndpoint(t *testing.T) {
	env, _ := setupClaimEnv(t, "user-1")

	_, _, err := env.registry.Register("install-1", "")
	require.NoError(t, err)
	inst, err := env.store.GetInstallation("install-1")
	require.NoError(t, err)

	w := env.postJSON(t, "/api/claim/"+inst.ClaimCode, map[string]string{
		"customer_name":  "Acme GmbH",
		"customer_email": "ops@acme.test",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "install-1", env.decode(t, w)["install_id"])

	// Second claim conflicts
	w = env.postJSON(t, "/api/claim/"+inst.ClaimCode, map[string]string{
		"customer_name": "Rival Corp",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already_claimed")
}

func TestClaimAPIEndpoint_UnknownCode(t *testing.T) {
	env, _ := setupClaimEnv(t, "user-1")

	w := env.postJSON(t, "/api/claim/ZZZZZZ", map[string]string{
		"customer_name": "Acme",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClaimAPIEndpoint_MalformedCode(t *testing.T) {
	env, _ := setupClaimEnv(t, "user-1")

	w := env.postJSON(t, "/api/claim/BAD", map[string]string{
		"customer_name": "Acme",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_request")
}

func TestClaimFormEndpoint(t *testing.T) {
	env, _ := setupClaimEnv(t, "user-1")

	_, _, err := env.registry.Register("install-1", "")
	require.NoError(t, err)
	inst, err := env.store.GetInstallation("install-1")
	require.NoError(t, err)

	w := env.postForm(t, "/claim/"+inst.ClaimCode, url.Values{
		"customer_name": {"Acme GmbH"},
	})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/installations")

	claimed, err := env.store.GetInstallation("install-1")
	require.NoError(t, err)
	assert.True(t, claimed.IsClaimed())
}

func TestClaimFormEndpoint_ErrorsRedirectBack(t *testing.T) {
	env, _ := setupClaimEnv(t, "user-1")

	w := env.postForm(t, "/claim/ZZZZZZ", url.Values{
		"customer_name": {"Acme"},
	})
	require.Equal(t, http.StatusFound, w.Code)
	location := w.Header().Get("Location")
	assert.Contains(t, location, "/claim")
	assert.Contains(t, location, "error=")
}
