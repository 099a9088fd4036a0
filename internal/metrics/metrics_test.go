// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testCounter   = MustRegisterCounterVec("test", "events_total", "test events", "kind")
	testGauge     = MustRegisterGauge("test", "level", "test level")
	testHistogram = MustRegisterHistogramVec("test", "seconds", "test durations", []float64{1}, "kind")
)

func find(samples []Sample, name, labels string) (Sample, bool) {
	for _, s := range samples {
		if s.Name == name && s.Labels == labels {
			return s, true
		}
	}
	return Sample{}, false
}

func TestGather(t *testing.T) {
	testCounter.WithLabelValues("a").Add(2)
	testGauge.Set(7)
	SetDurationObserver(testHistogram.WithLabelValues("a"), time.Now())

	samples, err := Gather()
	require.NoError(t, err)

	s, ok := find(samples, "assetctl_test_events_total", "kind=a")
	require.True(t, ok)
	assert.Equal(t, 2.0, s.Value)

	s, ok = find(samples, "assetctl_test_level", "")
	require.True(t, ok)
	assert.Equal(t, 7.0, s.Value)

	s, ok = find(samples, "assetctl_test_seconds_count", "kind=a")
	require.True(t, ok)
	assert.Equal(t, 1.0, s.Value)

	for i := 1; i < len(samples); i++ {
		assert.LessOrEqual(t, samples[i-1].Name, samples[i].Name)
	}
}
