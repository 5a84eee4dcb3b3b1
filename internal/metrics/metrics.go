package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login outcome labels.
const (
	OutcomeSuccess           = "success"
	OutcomeProviderError     = "provider_error"
	OutcomeInvalidState      = "invalid_state"
	OutcomeMissingCode       = "missing_code"
	OutcomeExchangeFailed    = "exchange_failed"
	OutcomeProfileFailed     = "profile_failed"
	OutcomePersistenceFailed = "persistence_failed"
	OutcomeEmailConflict     = "email_conflict"
	OutcomeSigningFailed     = "signing_failed"
)

// Credential verification result labels.
const (
	VerifyValid          = "valid"
	VerifyMalformed      = "malformed"
	VerifyBadSignature   = "bad_signature"
	VerifyExpired        = "expired"
	VerifyUnsupportedAlg = "unsupported_algorithm"
)

// Metrics tracks login flow and credential verification outcomes.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Logins               *prometheus.CounterVec
	AccountsCreated      prometheus.Counter
	CredentialChecks     *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec
}

// New registers all metrics on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_logins_total",
			Help: "External login callbacks by outcome",
		}, []string{"outcome"}),
		AccountsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "parley_accounts_created_total",
			Help: "Accounts created on first external login",
		}),
		CredentialChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_credential_checks_total",
			Help: "Bearer credential verifications by result",
		}, []string{"result"}),
		ProviderCallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parley_provider_call_duration_seconds",
			Help:    "Duration of identity provider calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"call"}),
	}
}

// IncrementLogin records one callback outcome.
func (m *Metrics) IncrementLogin(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}

// IncrementAccountCreated records a first-login account creation.
func (m *Metrics) IncrementAccountCreated() {
	if m == nil {
		return
	}
	m.AccountsCreated.Inc()
}

// IncrementCredentialCheck records one bearer verification result.
func (m *Metrics) IncrementCredentialCheck(result string) {
	if m == nil {
		return
	}
	m.CredentialChecks.WithLabelValues(result).Inc()
}

// ObserveProviderCall records the duration of a provider call.
// Call with time.Now() at the start of the call.
func (m *Metrics) ObserveProviderCall(call string, start time.Time) {
	if m == nil {
		return
	}
	m.ProviderCallDuration.WithLabelValues(call).Observe(time.Since(start).Seconds())
}
