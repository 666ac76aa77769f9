package metrics

import "time"

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Device registry
	RecordRegistration(created bool)
	RecordClaimAttempt(result string) // "success", "not_found", "conflict"
	RecordBootstrap(result string)    // "issued", "resync", "denied"
	RecordConfirm(success bool)
	RecordHealthReport(success bool)

	// Token operations
	RecordTokenIssued(class string, generationTime time.Duration)
	RecordTokenRefresh(kind string, success bool) // "device" or "oauth"
	RecordTokenValidation(result string)          // "success", "expired", "invalid"

	// Device authorization flow
	RecordDeviceAuthRequest(success bool)
	RecordDeviceAuthAuthorized()
	RecordDeviceAuthExchange(result string) // "success", "pending", "expired", "invalid"

	// Authentication
	RecordLogin(source string, success bool)
	RecordSessionResolved(strategy string, result string) // "ok", "expired", "refresh", "denied"

	// Gauge setters (for periodic updates)
	SetUnclaimedInstallationsCount(count int)
	SetPendingDeviceAuthCount(count int)

	// HTTP
	RecordHTTPRequest(method, path string, status int, duration time.Duration)
}

// GaugeStore defines the DB operations needed by the periodic gauge update job.
type GaugeStore interface {
	CountUnclaimedInstallations() (int64, error)
	CountPendingDeviceAuthRequests() (int64, error)
}
