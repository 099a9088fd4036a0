// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package meta carries the per-invocation state shared by every command.
package meta

import (
	"context"

	"github.com/staranto/assetctl/internal/config"
)

// Meta are the meta-options that are available on all or most commands.
type Meta struct {
	Args    []string
	Config  config.Type
	Context context.Context
	// ContextDir is the web application root that relative resource URIs and
	// the model file resolve against.
	ContextDir  string
	StartingDir string
}
