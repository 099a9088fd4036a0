// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/staranto/assetctl/internal/metrics"
)

const component = "cache"

var (
	hitsTotal = metrics.MustRegisterCounterVec(component, "hits_total",
		"Requests served from a valid cache entry.", "type")
	missesTotal = metrics.MustRegisterCounterVec(component, "misses_total",
		"Requests that had to compute their output.", "type")
	sharedTotal = metrics.MustRegisterCounterVec(component, "shared_total",
		"Requests that joined a computation already in flight.", "type")
	staleTotal = metrics.MustRegisterCounterVec(component, "stale_total",
		"Entries discarded on read because an input changed.", "type")
	failuresTotal = metrics.MustRegisterCounterVec(component, "compute_failures_total",
		"Computations that returned an error.", "type")
	invalidationsTotal = metrics.MustRegisterCounterVec(component, "invalidations_total",
		"Entries removed by invalidation.", "reason")
	computeSeconds = metrics.MustRegisterHistogramVec(component, "compute_seconds",
		"Time spent computing outputs.", prometheus.DefBuckets, "type")
)

const (
	ReasonManual = "manual"
	ReasonChange = "change"
	ReasonAll    = "all"
)
