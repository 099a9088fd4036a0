// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package group

import (
	"slices"

	"github.com/staranto/assetctl/internal/model"
	"github.com/staranto/assetctl/internal/resource"
)

// Resolver flattens groups into ordered resource lists. It holds no state and
// is safe for concurrent use.
type Resolver struct{}

type frame struct {
	name    string
	entries []model.Entry
	next    int
}

// Resolve expands name depth first. Resource entries are kept in declaration
// order, duplicates included, and filtered by typ unless typ is Any. The walk
// uses an explicit stack so deep models never grow the goroutine stack.
func (Resolver) Resolve(m *model.Model, name string, typ resource.Type) ([]resource.Resource, error) {
	entries, ok := m.Group(name)
	if !ok {
		return nil, &UnknownGroupError{Name: name}
	}

	var (
		out    []resource.Resource
		stack  = []*frame{{name: name, entries: entries}}
		onPath = map[string]bool{name: true}
	)
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.entries) {
			delete(onPath, top.name)
			stack = stack[:len(stack)-1]
			continue
		}
		e := top.entries[top.next]
		top.next++

		if !e.IsGroup() {
			if e.Resource.Type.Matches(typ) {
				out = append(out, e.Resource)
			}
			continue
		}

		if onPath[e.Group] {
			return nil, &CyclicReferenceError{Path: cyclePath(stack, e.Group)}
		}
		child, ok := m.Group(e.Group)
		if !ok {
			return nil, &UnknownGroupError{Name: e.Group, Parent: top.name}
		}
		onPath[e.Group] = true
		stack = append(stack, &frame{name: e.Group, entries: child})
	}
	return out, nil
}

func cyclePath(stack []*frame, revisited string) []string {
	i := slices.IndexFunc(stack, func(f *frame) bool { return f.name == revisited })
	path := make([]string, 0, len(stack)-i)
	for _, f := range stack[i:] {
		path = append(path, f.name)
	}
	return path
}
