// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/staranto/assetctl/internal/resource"
)

type importsKey struct{}

type importSet struct {
	mu   sync.Mutex
	seen map[resource.Resource]struct{}
}

// RecordImport notes that r was pulled into the output being built. It is a
// no-op outside a Chain run.
func RecordImport(ctx context.Context, r resource.Resource) {
	s, ok := ctx.Value(importsKey{}).(*importSet)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[r] = struct{}{}
}

func withImports(ctx context.Context) (context.Context, *importSet) {
	s := &importSet{seen: map[resource.Resource]struct{}{}}
	return context.WithValue(ctx, importsKey{}, s), s
}

// list returns the recorded imports sorted by URI then type.
func (s *importSet) list() []resource.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]resource.Resource, 0, len(s.seen))
	for r := range s.seen {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b resource.Resource) int {
		if c := strings.Compare(a.URI, b.URI); c != 0 {
			return c
		}
		return strings.Compare(string(a.Type), string(b.Type))
	})
	return out
}
