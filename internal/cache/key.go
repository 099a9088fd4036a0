// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/staranto/assetctl/internal/resource"
)

var ErrBadKey = errors.New("malformed cache key")

// Key identifies one output: a group rendered for a type, minimized or not.
type Key struct {
	Group    string
	Type     resource.Type
	Minimize bool
}

// String renders "{group}|{type}|{minimize}".
func (k Key) String() string {
	return k.Group + "|" + string(k.Type) + "|" + strconv.FormatBool(k.Minimize)
}

// ParseKey reverses Key.String. Group names may themselves contain "|".
func ParseKey(s string) (Key, error) {
	rest, flag, ok := cutLast(s, "|")
	if !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrBadKey, s)
	}
	group, typ, ok := cutLast(rest, "|")
	if !ok || group == "" {
		return Key{}, fmt.Errorf("%w: %q", ErrBadKey, s)
	}
	minimize, err := strconv.ParseBool(flag)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q", ErrBadKey, s)
	}
	t, err := resource.ParseType(typ)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %w", ErrBadKey, err)
	}
	if t == resource.Any {
		return Key{}, fmt.Errorf("%w: %q has no concrete type", ErrBadKey, s)
	}
	return Key{Group: group, Type: t, Minimize: minimize}, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

func (k Key) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Key) UnmarshalText(b []byte) error {
	parsed, err := ParseKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// TokenAbsent marks an input that was missing when the entry was built.
const TokenAbsent = "absent"

// Input is the fingerprint of one constituent resource at build time. An
// empty Token never matches, which forces a rebuild.
type Input struct {
	URI   string        `json:"uri"`
	Type  resource.Type `json:"type"`
	Token string        `json:"token"`
}

// Matches reports whether a fresh fingerprint (tok, err) of the input still
// agrees with the recorded one. An absent input matches only while it stays
// not found.
func (in Input) Matches(tok string, err error) bool {
	if in.Token == TokenAbsent {
		return errors.Is(err, resource.ErrNotFound)
	}
	return err == nil && in.Token != "" && tok == in.Token
}

func (in Input) Resource() resource.Resource {
	return resource.Resource{URI: in.URI, Type: in.Type}
}

// Entry is a cached output. Entries are never modified once stored; a newer
// build replaces the whole entry.
type Entry struct {
	Key        Key       `json:"key"`
	Content    []byte    `json:"content"`
	Inputs     []Input   `json:"inputs"`
	Processors []string  `json:"processors"`
	Failures   []string  `json:"failures,omitempty"`
	BuildID    string    `json:"build_id"`
	CreatedAt  time.Time `json:"created_at"`
}
