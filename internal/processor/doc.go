// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package processor defines the content transformation pipeline. A processor
// only has to implement Processor; everything else it can tell the chain
// about (supported types, minimizing, runtime availability, imports) is an
// optional capability interface probed with a type assertion.
package processor
