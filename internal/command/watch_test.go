// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package command

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/assetctl/internal/cache"
	"github.com/staranto/assetctl/internal/manager"
	"github.com/staranto/assetctl/internal/model"
	"github.com/staranto/assetctl/internal/monitor"
	"github.com/staranto/assetctl/internal/resource"
)

func TestChangeQueue(t *testing.T) {
	q := newChangeQueue()
	b := cache.Key{Group: "b", Type: resource.Style}
	a := cache.Key{Group: "a", Type: resource.Script}
	q.push(b, []string{"/b.css"})
	q.push(a, []string{"/a.js"})
	q.push(b, []string{"/c.css"})

	select {
	case <-q.notify:
	default:
		t.Fatal("push did not notify")
	}
	assert.Equal(t, []cache.Key{a, b}, q.drain())
	assert.Empty(t, q.drain())
}

func TestBuildPlan_Wants(t *testing.T) {
	p := buildPlan{groups: []string{"all"}, types: []resource.Type{resource.Style}, minimize: true}
	assert.True(t, p.wants(cache.Key{Group: "all", Type: resource.Style, Minimize: true}))
	assert.False(t, p.wants(cache.Key{Group: "all", Type: resource.Style}))
	assert.False(t, p.wants(cache.Key{Group: "all", Type: resource.Script, Minimize: true}))
	assert.False(t, p.wants(cache.Key{Group: "other", Type: resource.Style, Minimize: true}))
}

// startWatcher runs w in the background and returns the emitted rounds. The
// watcher is stopped when the test ends.
func startWatcher(t *testing.T, w *watcher) <-chan []BuildRow {
	t.Helper()
	rounds := make(chan []BuildRow, 8)
	w.interval = 5 * time.Millisecond
	w.emit = func(rows []BuildRow) error {
		rounds <- rows
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return rounds
}

func nextRound(t *testing.T, rounds <-chan []BuildRow) []BuildRow {
	t.Helper()
	select {
	case rows := <-rounds:
		return rows
	case <-time.After(5 * time.Second):
		t.Fatal("no build round")
		return nil
	}
}

func TestWatcher_RebuildsOnChange(t *testing.T) {
	loc := resource.NewMemoryLocator()
	loc.Set("/a.css", "a{color:red}")
	loc.Set("/a.js", "var a")
	m := model.New(map[string][]model.Entry{
		"all": {model.Ref(resource.Style, "/a.css"), model.Ref(resource.Script, "/a.js")},
	})

	q := newChangeQueue()
	mgr, err := manager.New(manager.Config{
		Models:         model.StaticProvider{Model: m},
		Locator:        loc,
		SkipValidation: true,
		Monitor:        monitor.Options{OnInvalidate: q.push},
	})
	require.NoError(t, err)

	dest := t.TempDir()
	p := buildPlan{groups: []string{"all"}, types: []resource.Type{resource.Style, resource.Script}, dest: dest}
	rounds := startWatcher(t, &watcher{mgr: mgr, plan: p, queue: q})

	first := nextRound(t, rounds)
	require.Len(t, first, 2)
	got, err := os.ReadFile(filepath.Join(dest, "all.css"))
	require.NoError(t, err)
	assert.Equal(t, "a{color:red}", string(got))

	loc.Set("/a.css", "a{color:blue}")
	again := nextRound(t, rounds)
	require.Len(t, again, 1)
	assert.Equal(t, "css", again[0].Type)
	assert.False(t, again[0].Cached)

	got, err = os.ReadFile(filepath.Join(dest, "all.css"))
	require.NoError(t, err)
	assert.Equal(t, "a{color:blue}", string(got))
}

func TestWatcher_RetriesFailedRebuild(t *testing.T) {
	loc := resource.NewMemoryLocator()
	loc.Set("/a.css", "a{color:red}")
	m := model.New(map[string][]model.Entry{"all": {model.Ref(resource.Style, "/a.css")}})

	q := newChangeQueue()
	mgr, err := manager.New(manager.Config{
		Models:         model.StaticProvider{Model: m},
		Locator:        loc,
		SkipValidation: true,
		Monitor:        monitor.Options{OnInvalidate: q.push},
	})
	require.NoError(t, err)

	dest := t.TempDir()
	p := buildPlan{groups: []string{"all"}, types: []resource.Type{resource.Style}, dest: dest}
	w := &watcher{mgr: mgr, plan: p, queue: q}
	rounds := startWatcher(t, w)
	require.Len(t, nextRound(t, rounds), 1)

	// The rebuild after the removal fails and caches nothing, so no scan
	// reports the file coming back. The retry has to.
	loc.Remove("/a.css")
	require.Eventually(t, func() bool {
		_, ok, err := mgr.Engine().Peek(context.Background(), cache.Key{Group: "all", Type: resource.Style})
		return err == nil && !ok
	}, 5*time.Second, 5*time.Millisecond)
	loc.Set("/a.css", "a{color:green}")

	rows := nextRound(t, rounds)
	require.Len(t, rows, 1)
	got, err := os.ReadFile(filepath.Join(dest, "all.css"))
	require.NoError(t, err)
	assert.Equal(t, "a{color:green}", string(got))
}

func TestWatcher_ReloadsEditedModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wro.yaml")
	require.NoError(t, os.WriteFile(path, []byte("groups:\n  all:\n    - css: /a.css\n"), 0o600))
	loc := resource.NewMemoryLocator()
	loc.Set("/a.css", "a{}")
	loc.Set("/b.css", "b{}")

	q := newChangeQueue()
	mgr, err := manager.New(manager.Config{
		Models:  model.NewFileProvider(path, model.Vars{}),
		Locator: loc,
		Monitor: monitor.Options{OnInvalidate: q.push},
	})
	require.NoError(t, err)

	dest := t.TempDir()
	p := buildPlan{groups: []string{"all"}, types: []resource.Type{resource.Style}, dest: dest}
	rounds := startWatcher(t, &watcher{mgr: mgr, plan: p, queue: q, modelPath: path})
	require.Len(t, nextRound(t, rounds), 1)

	require.NoError(t, os.WriteFile(path, []byte("groups:\n  all:\n    - css: /b.css\n"), 0o600))
	rows := nextRound(t, rounds)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"/b.css"}, rows[0].Inputs)
	got, err := os.ReadFile(filepath.Join(dest, "all.css"))
	require.NoError(t, err)
	assert.Equal(t, "b{}", string(got))
}

func TestStats(t *testing.T) {
	rows, err := stats()
	require.NoError(t, err)
	for _, r := range rows {
		assert.NotEmpty(t, r.Name)
	}
}
