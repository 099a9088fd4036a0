// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// assetctl is the main package for the assetctl command line tool. It wires
// the CLI, delegates to internal packages, and serves as the entry point.
// Groups of style sheets and scripts described in a model file are merged,
// run through processor chains, cached and written out as one file per group
// and type.
package main
