// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/staranto/assetctl/internal/resource"
)

// Processor transforms content read from in into out. r is the resource being
// processed, or nil when the processor runs over the aggregate of a group.
type Processor interface {
	Process(ctx context.Context, r *resource.Resource, in io.Reader, out io.Writer) error
}

// TypeSupporter restricts a processor to some resource types. Processors
// that do not implement it support every type.
type TypeSupporter interface {
	SupportsType(t resource.Type) bool
}

// MinimizeAware marks processors that only run when minimizing is requested.
type MinimizeAware interface {
	IsMinimizer() bool
}

// RuntimeSupporter lets a processor opt out when its runtime (an external
// tool, a script engine) is unavailable. Unsupported processors are skipped.
type RuntimeSupporter interface {
	IsRuntimeSupported() bool
}

// ImportAware marks processors that pull other resources into their output.
// Such processors report what they pulled through RecordImport.
type ImportAware interface {
	IsImportAware() bool
}

type Named interface {
	Name() string
}

// Func adapts a plain function to Processor.
type Func func(ctx context.Context, r *resource.Resource, in io.Reader, out io.Writer) error

func (f Func) Process(ctx context.Context, r *resource.Resource, in io.Reader, out io.Writer) error {
	return f(ctx, r, in, out)
}

func SupportsType(p Processor, t resource.Type) bool {
	if ts, ok := p.(TypeSupporter); ok {
		return ts.SupportsType(t)
	}
	return true
}

func IsMinimizer(p Processor) bool {
	if m, ok := p.(MinimizeAware); ok {
		return m.IsMinimizer()
	}
	return false
}

func IsRuntimeSupported(p Processor) bool {
	if rs, ok := p.(RuntimeSupporter); ok {
		return rs.IsRuntimeSupported()
	}
	return true
}

func IsImportAware(p Processor) bool {
	if ia, ok := p.(ImportAware); ok {
		return ia.IsImportAware()
	}
	return false
}

// NameOf returns the processor name, falling back to its Go type name.
func NameOf(p Processor) string {
	if n, ok := p.(Named); ok {
		return n.Name()
	}
	name := strings.TrimPrefix(fmt.Sprintf("%T", p), "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// ProcessingError is a processor failure on a resource, or on the aggregate
// when URI is empty.
type ProcessingError struct {
	Processor string
	Stage     string
	URI       string
	Err       error
}

func (e *ProcessingError) Error() string {
	target := e.URI
	if target == "" {
		target = "aggregate"
	}
	return fmt.Sprintf("%s processor %s failed on %s: %v", e.Stage, e.Processor, target, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
