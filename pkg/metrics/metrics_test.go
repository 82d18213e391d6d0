package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngested(t *testing.T) {
	before := testutil.ToFloat64(Observer.Ingestions.WithLabelValues("strategies", OutcomeOK))
	Ingested("strategies", OutcomeOK)
	after := testutil.ToFloat64(Observer.Ingestions.WithLabelValues("strategies", OutcomeOK))

	assert.Equal(t, before+1, after)
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, NewPrometheusMetrics().Register(reg))
}

func TestOutcomeOf(t *testing.T) {
	sentinel := errors.New("missing")
	isMissing := func(err error) bool { return errors.Is(err, sentinel) }

	assert.Equal(t, OutcomeOK, OutcomeOf(nil, isMissing))
	assert.Equal(t, OutcomeNotFound, OutcomeOf(sentinel, isMissing))
	assert.Equal(t, OutcomeError, OutcomeOf(errors.New("boom"), isMissing))
}
