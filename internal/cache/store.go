// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"slices"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Store persists entries by key. Save replaces any previous entry in one
// step so readers see either the old or the new entry, never a mix. Peek
// reads like Load but does not count as a use for eviction purposes.
type Store interface {
	Load(ctx context.Context, key Key) (*Entry, bool, error)
	Peek(ctx context.Context, key Key) (*Entry, bool, error)
	Save(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, key Key) error
	Purge(ctx context.Context) error
	Keys(ctx context.Context) ([]Key, error)
}

func sortKeys(keys []Key) []Key {
	slices.SortFunc(keys, func(a, b Key) int { return strings.Compare(a.String(), b.String()) })
	return keys
}

// MemoryStore is an unbounded in-process store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[Key]*Entry{}}
}

func (s *MemoryStore) Load(_ context.Context, key Key) (*Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *MemoryStore) Peek(ctx context.Context, key Key) (*Entry, bool, error) {
	return s.Load(ctx, key)
}

func (s *MemoryStore) Save(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Key] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Purge(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = map[Key]*Entry{}
	return nil
}

func (s *MemoryStore) Keys(context.Context) ([]Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]Key, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return sortKeys(keys), nil
}

// LRUStore keeps at most a fixed number of entries, evicting the least
// recently used.
type LRUStore struct {
	cache *lru.Cache[Key, *Entry]
}

func NewLRUStore(size int) (*LRUStore, error) {
	c, err := lru.New[Key, *Entry](size)
	if err != nil {
		return nil, err
	}
	return &LRUStore{cache: c}, nil
}

func (s *LRUStore) Load(_ context.Context, key Key) (*Entry, bool, error) {
	e, ok := s.cache.Get(key)
	return e, ok, nil
}

func (s *LRUStore) Peek(_ context.Context, key Key) (*Entry, bool, error) {
	e, ok := s.cache.Peek(key)
	return e, ok, nil
}

func (s *LRUStore) Save(_ context.Context, e *Entry) error {
	s.cache.Add(e.Key, e)
	return nil
}

func (s *LRUStore) Delete(_ context.Context, key Key) error {
	s.cache.Remove(key)
	return nil
}

func (s *LRUStore) Purge(context.Context) error {
	s.cache.Purge()
	return nil
}

func (s *LRUStore) Keys(context.Context) ([]Key, error) {
	return sortKeys(s.cache.Keys()), nil
}
