// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package builtin holds the processors shipped with assetctl and registers
// them by name. See Register for the list.
package builtin
