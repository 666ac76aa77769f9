package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Disabled(t *testing.T) {
	m := Init(false)
	require.NotNil(t, m)
	_, ok := m.(*NoopMetrics)
	assert.True(t, ok, "disabled metrics should be the noop recorder")
}

func TestInit_Enabled(t *testing.T) {
	m := Init(true)
	require.NotNil(t, m)

	// Recording must not panic; values are scraped, not asserted here
	m.RecordRegistration(true)
	m.RecordClaimAttempt("success")
	m.RecordBootstrap("issued")
	m.RecordConfirm(true)
	m.RecordHealthReport(true)
	m.RecordTokenIssued("device-access", 5*time.Millisecond)
	m.RecordTokenRefresh("device", true)
	m.RecordTokenValidation("success")
	m.RecordDeviceAuthRequest(true)
	m.RecordDeviceAuthAuthorized()
	m.RecordDeviceAuthExchange("pending")
	m.RecordLogin("local", true)
	m.RecordSessionResolved("local", "ok")
	m.SetUnclaimedInstallationsCount(3)
	m.SetPendingDeviceAuthCount(1)
	m.RecordHTTPRequest("GET", "/healthz", 200, time.Millisecond)
}

func TestInit_EnabledIsIdempotent(t *testing.T) {
	// Registering Prometheus collectors twice panics; Init must guard it
	first := Init(true)
	second := Init(true)
	assert.Equal(t, first, second)
}

func TestNoopMetrics(t *testing.T) {
	var m Recorder = NewNoopMetrics()
	m.RecordRegistration(true)
	m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
}
