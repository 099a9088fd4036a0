// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Type is the asset kind a resource, a request or a processor deals with.
type Type string

const (
	Style  Type = "css"
	Script Type = "js"
	// Any matches every type. It is only meaningful as a resolution filter.
	Any Type = "any"
)

// ParseType accepts css|style|js|script|any, case-insensitively.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "css", "style":
		return Style, nil
	case "js", "script":
		return Script, nil
	case "any", "":
		return Any, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// Matches reports whether a resource of type t is selected by filter.
func (t Type) Matches(filter Type) bool {
	return filter == Any || t == filter
}

// Ext is the file extension conventionally used for outputs of type t.
func (t Type) Ext() string {
	switch t {
	case Style:
		return ".css"
	case Script:
		return ".js"
	default:
		return ""
	}
}

func (t Type) String() string { return string(t) }

// Resource identifies a single asset. Its identity is the (URI, Type) pair;
// content is never held here and is read through a Locator on demand.
type Resource struct {
	URI  string `json:"uri"`
	Type Type   `json:"type"`
}

func (r Resource) String() string {
	return string(r.Type) + ":" + r.URI
}

var (
	ErrNotFound    = errors.New("resource not found")
	ErrUnknownType = errors.New("unknown resource type")
)

// NotFoundError is returned by a Locator when uri does not exist.
type NotFoundError struct {
	URI string
	Err error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resource not found: %s: %v", e.URI, e.Err)
	}
	return "resource not found: " + e.URI
}

func (e *NotFoundError) Unwrap() error { return e.Err }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Locator opens resource content by URI.
type Locator interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// ModTimer is implemented by locators able to report a last modification
// time without reading the content.
type ModTimer interface {
	ModTime(ctx context.Context, uri string) (time.Time, error)
}

// ReadAll opens uri through l and returns its whole content.
func ReadAll(ctx context.Context, l Locator, uri string) ([]byte, error) {
	rc, err := l.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", uri, err)
	}
	return b, nil
}
