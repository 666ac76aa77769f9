package metrics

import "time"

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NoopMetrics is a Recorder that does nothing. Used when metrics are
// disabled and in tests.
type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordRegistration(bool)                             {}
func (n *NoopMetrics) RecordClaimAttempt(string)                           {}
func (n *NoopMetrics) RecordBootstrap(string)                              {}
func (n *NoopMetrics) RecordConfirm(bool)                                  {}
func (n *NoopMetrics) RecordHealthReport(bool)                             {}
func (n *NoopMetrics) RecordTokenIssued(string, time.Duration)             {}
func (n *NoopMetrics) RecordTokenRefresh(string, bool)                     {}
func (n *NoopMetrics) RecordTokenValidation(string)                        {}
func (n *NoopMetrics) RecordDeviceAuthRequest(bool)                        {}
func (n *NoopMetrics) RecordDeviceAuthAuthorized()                         {}
func (n *NoopMetrics) RecordDeviceAuthExchange(string)                     {}
func (n *NoopMetrics) RecordLogin(string, bool)                            {}
func (n *NoopMetrics) RecordSessionResolved(string, string)                {}
func (n *NoopMetrics) SetUnclaimedInstallationsCount(int)                  {}
func (n *NoopMetrics) SetPendingDeviceAuthCount(int)                       {}
func (n *NoopMetrics) RecordHTTPRequest(string, string, int, time.Duration) {}
