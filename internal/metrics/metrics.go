package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Device registry
	RegistrationsTotal  *prometheus.CounterVec
	ClaimAttemptsTotal  *prometheus.CounterVec
	BootstrapsTotal     *prometheus.CounterVec
	ConfirmsTotal       *prometheus.CounterVec
	HealthReportsTotal  *prometheus.CounterVec
	UnclaimedInstalls   prometheus.Gauge
	PendingDeviceAuths  prometheus.Gauge

	// Tokens
	TokensIssuedTotal       *prometheus.CounterVec
	TokenRefreshTotal       *prometheus.CounterVec
	TokenValidationTotal    *prometheus.CounterVec
	TokenGenerationDuration *prometheus.HistogramVec

	// Device authorization flow
	DeviceAuthRequestsTotal   *prometheus.CounterVec
	DeviceAuthAuthorizedTotal prometheus.Counter
	DeviceAuthExchangeTotal   *prometheus.CounterVec

	// Authentication
	LoginTotal           *prometheus.CounterVec
	SessionResolvedTotal *prometheus.CounterVec

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag.
// Uses sync.Once to ensure Prometheus metrics are only registered once.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

func initMetrics() *Metrics {
	return &Metrics{
		RegistrationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kaliun_registrations_total",
			Help: "Total installation register calls, by whether a record was created",
		}, []string{"created"}),
		ClaimAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kaliun_claim_attempts_total",
			Help: "Total claim attempts by result",
		}, []string{"result"}),
		BootstrapsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kaliun_bootstraps_total",
			Help: "Total config fetches by outcome",
		}, []string{"result"}),
		ConfirmsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kaliun_confirms_total",
			Help: "Total config confirmations",
		}, []string{"success"}),
		HealthReportsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kaliun_health_reports_total",
			Help: "Total health report submissions",
		}, []string{"success"}),
		UnclaimedInstalls: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "kaliun_unclaimed_installations",
			Help: "Installations registered but not yet claimed",
		}),
		PendingDeviceAuths: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "kaliun_pending_device_auth_requests",
			Help: "Device authorization requests awaiting human approval",
		}),

		TokensIssuedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kaliun_tokens_issued_total",
			Help: "Total tokens issued by class",
		}, []string{"class"}),
		TokenRefreshTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kaliun_token_refresh_total",
			Help: "Total refresh grants by kind and success",
		}, []string{"kind", "success"}),
		TokenValidationTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kaliun_token_validation_total",
			Help: "Total bearer validations by result",
		}, []string{"result"}),
		TokenGenerationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kaliun_token_generation_duration_seconds",
			Help:    "Token generation duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"class"}),

		DeviceAuthRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kaliun_device_auth_requests_total",
			Help: "Total device authorization code requests",
		}, []string{"success"}),
		DeviceAuthAuthorizedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kaliun_device_auth_authorized_total",
			Help: "Total device authorization requests approved by a user",
		}),
		DeviceAuthExchangeTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kaliun_device_auth_exchange_total",
			Help: "Total device code exchange attempts by result",
		}, []string{"result"}),

		LoginTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kaliun_login_total",
			Help: "Total login attempts by source and success",
		}, []string{"source", "success"}),
		SessionResolvedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kaliun_session_resolved_total",
			Help: "Session resolutions by strategy and result",
		}, []string{"strategy", "result"}),

		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kaliun_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kaliun_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

func (m *Metrics) RecordRegistration(created bool) {
	m.RegistrationsTotal.WithLabelValues(strconv.FormatBool(created)).Inc()
}

func (m *Metrics) RecordClaimAttempt(result string) {
	m.ClaimAttemptsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordBootstrap(result string) {
	m.BootstrapsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordConfirm(success bool) {
	m.ConfirmsTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func (m *Metrics) RecordHealthReport(success bool) {
	m.HealthReportsTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func (m *Metrics) RecordTokenIssued(class string, generationTime time.Duration) {
	m.TokensIssuedTotal.WithLabelValues(class).Inc()
	m.TokenGenerationDuration.WithLabelValues(class).Observe(generationTime.Seconds())
}

func (m *Metrics) RecordTokenRefresh(kind string, success bool) {
	m.TokenRefreshTotal.WithLabelValues(kind, strconv.FormatBool(success)).Inc()
}

func (m *Metrics) RecordTokenValidation(result string) {
	m.TokenValidationTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordDeviceAuthRequest(success bool) {
	m.DeviceAuthRequestsTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func (m *Metrics) RecordDeviceAuthAuthorized() {
	m.DeviceAuthAuthorizedTotal.Inc()
}

func (m *Metrics) RecordDeviceAuthExchange(result string) {
	m.DeviceAuthExchangeTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordLogin(source string, success bool) {
	m.LoginTotal.WithLabelValues(source, strconv.FormatBool(success)).Inc()
}

func (m *Metrics) RecordSessionResolved(strategy, result string) {
	m.SessionResolvedTotal.WithLabelValues(strategy, result).Inc()
}

func (m *Metrics) SetUnclaimedInstallationsCount(count int) {
	m.UnclaimedInstalls.Set(float64(count))
}

func (m *Metrics) SetPendingDeviceAuthCount(count int) {
	m.PendingDeviceAuths.Set(float64(count))
}

func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
