// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"
)

// MemoryLocator keeps resource content in memory. It is safe for concurrent
// use and is mostly useful for embedding and tests.
type MemoryLocator struct {
	mu      sync.RWMutex
	content map[string][]byte
	mtime   map[string]time.Time
	opens   map[string]int
}

func NewMemoryLocator() *MemoryLocator {
	return &MemoryLocator{
		content: map[string][]byte{},
		mtime:   map[string]time.Time{},
		opens:   map[string]int{},
	}
}

// Set stores content for uri and bumps its modification time.
func (l *MemoryLocator) Set(uri, content string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.content[uri] = []byte(content)
	l.mtime[uri] = time.Now()
}

// Remove deletes uri so later opens report ErrNotFound.
func (l *MemoryLocator) Remove(uri string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.content, uri)
	delete(l.mtime, uri)
}

// Opens returns how many times uri was opened successfully.
func (l *MemoryLocator) Opens(uri string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.opens[uri]
}

func (l *MemoryLocator) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.content[uri]
	if !ok {
		return nil, &NotFoundError{URI: uri}
	}
	l.opens[uri]++
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (l *MemoryLocator) ModTime(_ context.Context, uri string) (time.Time, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.mtime[uri]
	if !ok {
		return time.Time{}, &NotFoundError{URI: uri}
	}
	return t, nil
}
