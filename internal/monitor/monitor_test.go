// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/assetctl/internal/cache"
	"github.com/staranto/assetctl/internal/resource"
)

type tokens struct {
	mu    sync.Mutex
	m     map[string]string
	calls map[string]int
	block chan struct{}
}

func newTokens() *tokens { return &tokens{m: map[string]string{}, calls: map[string]int{}} }

func (f *tokens) set(uri, tok string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[uri] = tok
}

func (f *tokens) count(uri string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[uri]
}

func (f *tokens) Fingerprint(ctx context.Context, r resource.Resource) (string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[r.URI]++
	tok, ok := f.m[r.URI]
	if !ok {
		return "", &resource.NotFoundError{URI: r.URI}
	}
	return tok, nil
}

func input(uri, tok string) cache.Input {
	return cache.Input{URI: uri, Type: resource.Style, Token: tok}
}

func seed(t *testing.T, e *cache.Engine, entries ...*cache.Entry) {
	t.Helper()
	for _, ent := range entries {
		require.NoError(t, e.Store().Save(context.Background(), ent))
	}
}

var (
	keyA = cache.Key{Group: "a", Type: resource.Style}
	keyB = cache.Key{Group: "b", Type: resource.Style}
	keyC = cache.Key{Group: "c", Type: resource.Style, Minimize: true}
)

func TestScan_InvalidatesOnlyChanged(t *testing.T) {
	fp := newTokens()
	fp.set("/shared.css", "s1")
	fp.set("/a.css", "a1")
	fp.set("/b.css", "b1")
	e := cache.NewEngine(cache.NewMemoryStore(), fp)
	seed(t, e,
		&cache.Entry{Key: keyA, Inputs: []cache.Input{input("/shared.css", "s1"), input("/a.css", "a1")}},
		&cache.Entry{Key: keyB, Inputs: []cache.Input{input("/shared.css", "s1"), input("/b.css", "b1")}},
		&cache.Entry{Key: keyC, Inputs: []cache.Input{input("/shared.css", "s1")}},
	)

	var got []string
	m := New(e, fp, Options{OnInvalidate: func(k cache.Key, changed []string) {
		got = append(got, k.String()+"="+fmt.Sprint(changed))
	}})

	invalidated, err := m.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, invalidated)
	assert.Equal(t, 1, fp.count("/shared.css"), "shared inputs are fingerprinted once per scan")

	fp.set("/a.css", "a2")
	invalidated, err = m.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []cache.Key{keyA}, invalidated)
	assert.Equal(t, []string{"a|css|false=[/a.css]"}, got)

	entries, err := e.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, keyB, entries[0].Key)
	assert.Equal(t, keyC, entries[1].Key)
}

func TestScan_FingerprintErrorCountsAsChange(t *testing.T) {
	fp := newTokens()
	fp.set("/b.css", "b1")
	e := cache.NewEngine(cache.NewMemoryStore(), fp)
	seed(t, e,
		&cache.Entry{Key: keyA, Inputs: []cache.Input{input("/deleted.css", "d1")}},
		&cache.Entry{Key: keyB, Inputs: []cache.Input{input("/b.css", "b1")}},
		&cache.Entry{Key: keyC, Inputs: []cache.Input{input("/b.css", "")}},
	)

	invalidated, err := New(e, fp, Options{}).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []cache.Key{keyA, keyC}, invalidated)
}

func TestScan_AbsentInputs(t *testing.T) {
	fp := newTokens()
	fp.set("/a.css", "a1")
	e := cache.NewEngine(cache.NewMemoryStore(), fp)
	seed(t, e, &cache.Entry{Key: keyA, Inputs: []cache.Input{input("/a.css", "a1"), input("/later.css", cache.TokenAbsent)}})
	m := New(e, fp, Options{})

	invalidated, err := m.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, invalidated, "an input that stays missing is unchanged")

	fp.set("/later.css", "l1")
	invalidated, err = m.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []cache.Key{keyA}, invalidated)
}

type failingSource struct{ err error }

func (f failingSource) Entries(context.Context) ([]*cache.Entry, error) { return nil, f.err }
func (f failingSource) InvalidateChanged(context.Context, cache.Key) error {
	return nil
}

type panickingSource struct{ calls atomic.Int32 }

func (p *panickingSource) Entries(context.Context) ([]*cache.Entry, error) {
	p.calls.Add(1)
	panic("broken store")
}
func (p *panickingSource) InvalidateChanged(context.Context, cache.Key) error { return nil }

func TestScan_SourceError(t *testing.T) {
	boom := errors.New("store down")
	_, err := New(failingSource{err: boom}, newTokens(), Options{}).Scan(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStartStop(t *testing.T) {
	fp := newTokens()
	fp.set("/a.css", "a1")
	e := cache.NewEngine(cache.NewMemoryStore(), fp)
	seed(t, e, &cache.Entry{Key: keyA, Inputs: []cache.Input{input("/a.css", "a1")}})

	invalidated := make(chan cache.Key, 1)
	m := New(e, fp, Options{OnInvalidate: func(k cache.Key, _ []string) { invalidated <- k }})

	assert.ErrorIs(t, m.Start(0), ErrBadInterval)
	require.NoError(t, m.Start(5*time.Millisecond))
	assert.ErrorIs(t, m.Start(5*time.Millisecond), ErrRunning)
	assert.True(t, m.Running())

	fp.set("/a.css", "a2")
	select {
	case k := <-invalidated:
		assert.Equal(t, keyA, k)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not invalidate the changed entry")
	}

	m.Stop()
	m.Stop()
	assert.False(t, m.Running())

	// Restart after stop.
	require.NoError(t, m.Start(time.Hour))
	m.Stop()
}

func TestStop_FromHook(t *testing.T) {
	fp := newTokens()
	fp.set("/a.css", "a1")
	e := cache.NewEngine(cache.NewMemoryStore(), fp)
	seed(t, e,
		&cache.Entry{Key: keyA, Inputs: []cache.Input{input("/a.css", "a1")}},
		&cache.Entry{Key: keyB, Inputs: []cache.Input{input("/a.css", "a1")}},
	)

	returned := make(chan struct{}, 2)
	var m *Monitor
	m = New(e, fp, Options{
		OnInvalidate: func(cache.Key, []string) {
			m.Stop()
			returned <- struct{}{}
		},
		OnScan: func(invalidated []cache.Key, _ error) {
			if len(invalidated) > 0 {
				m.Stop()
			}
		},
	})
	require.NoError(t, m.Start(5*time.Millisecond))

	fp.set("/a.css", "a2")
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop called from a hook did not return")
	}
	assert.Eventually(t, func() bool { return !m.Running() }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return !m.scanning.Load() }, time.Second, time.Millisecond)
}

func TestTick_SurvivesPanics(t *testing.T) {
	src := &panickingSource{}
	m := New(src, newTokens(), Options{})
	require.NoError(t, m.Start(5*time.Millisecond))
	defer m.Stop()

	assert.Eventually(t, func() bool { return src.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond,
		"the schedule continues after a panicking scan")
}

func TestScan_NoOverlap(t *testing.T) {
	fp := newTokens()
	fp.set("/a.css", "a1")
	fp.block = make(chan struct{})
	e := cache.NewEngine(cache.NewMemoryStore(), fp)
	seed(t, e, &cache.Entry{Key: keyA, Inputs: []cache.Input{input("/a.css", "a1")}})
	m := New(e, fp, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := m.Scan(context.Background())
		done <- err
	}()

	assert.Eventually(t, func() bool { return m.scanning.Load() }, time.Second, time.Millisecond)
	_, err := m.Scan(context.Background())
	assert.ErrorIs(t, err, ErrScanInProgress)

	close(fp.block)
	assert.NoError(t, <-done)
}

func TestStop_InterruptsScan(t *testing.T) {
	fp := newTokens()
	fp.block = make(chan struct{})
	e := cache.NewEngine(cache.NewMemoryStore(), fp)
	seed(t, e, &cache.Entry{Key: keyA, Inputs: []cache.Input{input("/a.css", "a1")}})

	m := New(e, fp, Options{})
	require.NoError(t, m.Start(time.Millisecond))
	assert.Eventually(t, func() bool { return m.scanning.Load() }, time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while a scan was blocked")
	}
}
