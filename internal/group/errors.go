// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package group

import (
	"errors"
	"slices"
	"strings"
)

var (
	ErrUnknownGroup    = errors.New("unknown group")
	ErrCyclicReference = errors.New("cyclic group reference")
)

// UnknownGroupError reports a requested or referenced group that is not in
// the model.
type UnknownGroupError struct {
	Name string
	// Parent is the group holding the dangling reference, empty for the
	// requested group itself.
	Parent string
}

func (e *UnknownGroupError) Error() string {
	if e.Parent != "" {
		return "unknown group " + e.Name + " referenced from " + e.Parent
	}
	return "unknown group " + e.Name
}

func (e *UnknownGroupError) Is(target error) bool { return target == ErrUnknownGroup }

// CyclicReferenceError reports a group reachable from itself. Path lists the
// groups of the cycle, starting at the revisited one.
type CyclicReferenceError struct {
	Path []string
}

func (e *CyclicReferenceError) Error() string {
	if len(e.Path) == 0 {
		return ErrCyclicReference.Error()
	}
	return "cyclic group reference: " + strings.Join(append(slices.Clone(e.Path), e.Path[0]), " -> ")
}

func (e *CyclicReferenceError) Is(target error) bool { return target == ErrCyclicReference }
