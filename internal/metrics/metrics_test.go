package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncrementLogin(OutcomeSuccess)
	m.IncrementLogin(OutcomeSuccess)
	m.IncrementLogin(OutcomeInvalidState)
	m.IncrementAccountCreated()
	m.IncrementCredentialCheck(VerifyExpired)
	m.ObserveProviderCall("exchange", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Logins.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Logins.WithLabelValues(OutcomeInvalidState)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AccountsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CredentialChecks.WithLabelValues(VerifyExpired)))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 4)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementLogin(OutcomeSuccess)
		m.IncrementAccountCreated()
		m.IncrementCredentialCheck(VerifyValid)
		m.ObserveProviderCall("profile", time.Now())
	})
}
