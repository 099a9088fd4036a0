// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package command defines the assetctl command set. It wires flags, config
// sources, validators, actions and shell completion for the subcommands.
package command
