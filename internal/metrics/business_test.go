// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// Distinct label values per test avoid cross-test interference on the
// package-level counters, which are registered once in the default
// registry and accumulate across the whole test binary run.

func TestObserveHTTPRequestIncrementsCounterAndHistogram(t *testing.T) {
	ObserveHTTPRequest("GET", "/metrics_test/http", "200", 0.05)

	count := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/metrics_test/http", "200"))
	require.Equal(t, float64(1), count)

	samples := testutil.CollectAndCount(HTTPRequestDuration)
	require.Positive(t, samples)
}

func TestRecordAIJobSkipsHistogramWhenDurationUnset(t *testing.T) {
	RecordAIJob("metrics_test_job", "created", 0)
	count := testutil.ToFloat64(AIJobsTotal.WithLabelValues("metrics_test_job", "created"))
	require.Equal(t, float64(1), count)
}

func TestRecordProviderCallTracksTokenUsage(t *testing.T) {
	RecordProviderCall("metrics_test_provider", "summarize", "success", 1.2, 100, 40)

	require.Equal(t, float64(1),
		testutil.ToFloat64(ProviderRequestsTotal.WithLabelValues("metrics_test_provider", "summarize", "success")))
	require.Equal(t, float64(100),
		testutil.ToFloat64(ProviderTokensTotal.WithLabelValues("metrics_test_provider", "summarize", "input")))
	require.Equal(t, float64(40),
		testutil.ToFloat64(ProviderTokensTotal.WithLabelValues("metrics_test_provider", "summarize", "output")))
}
