// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/staranto/assetctl/internal/resource"
)

var ErrBadEntry = errors.New("invalid model entry")

// Entry is one member of a group: either a resource reference or a reference
// to another group by name.
type Entry struct {
	Group    string
	Resource resource.Resource
}

// Ref returns an entry referencing a resource.
func Ref(typ resource.Type, uri string) Entry {
	return Entry{Resource: resource.Resource{URI: uri, Type: typ}}
}

// GroupRef returns an entry referencing another group.
func GroupRef(name string) Entry {
	return Entry{Group: name}
}

func (e Entry) IsGroup() bool { return e.Group != "" }

func (e Entry) String() string {
	if e.IsGroup() {
		return "group:" + e.Group
	}
	return e.Resource.String()
}

// ParseEntry parses the "kind:value" form shared by every model format.
// Kinds are css, style, js, script and group.
func ParseEntry(s string) (Entry, error) {
	kind, value, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q has no kind prefix", ErrBadEntry, s)
	}
	return newEntry(kind, value)
}

func newEntry(kind, value string) (Entry, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Entry{}, fmt.Errorf("%w: empty %s reference", ErrBadEntry, kind)
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "group" {
		return GroupRef(value), nil
	}
	typ, err := resource.ParseType(kind)
	if err != nil || typ == resource.Any {
		return Entry{}, fmt.Errorf("%w: unknown kind %q", ErrBadEntry, kind)
	}
	return Ref(typ, value), nil
}

// Model is an immutable snapshot of group definitions.
type Model struct {
	groups map[string][]Entry
}

// New copies groups into a new Model.
func New(groups map[string][]Entry) *Model {
	m := &Model{groups: make(map[string][]Entry, len(groups))}
	for name, entries := range groups {
		m.groups[name] = slices.Clone(entries)
	}
	return m
}

// Group returns a copy of the entries of name.
func (m *Model) Group(name string) ([]Entry, bool) {
	entries, ok := m.groups[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(entries), true
}

// Has reports whether name is defined.
func (m *Model) Has(name string) bool {
	_, ok := m.groups[name]
	return ok
}

// Names returns the group names in sorted order.
func (m *Model) Names() []string {
	names := make([]string, 0, len(m.groups))
	for name := range m.groups {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (m *Model) Len() int { return len(m.groups) }
