// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package cache memoizes group outputs. An entry records, next to the
// processed content, a fingerprint of every resource that went into it; the
// entry stays valid exactly as long as those fingerprints do. Concurrent
// misses on the same key share one computation.
package cache
