// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/opencontainers/go-digest"
	"github.com/urfave/cli/v3"

	"github.com/staranto/assetctl/internal/attrs"
	"github.com/staranto/assetctl/internal/cache"
	"github.com/staranto/assetctl/internal/config"
	"github.com/staranto/assetctl/internal/manager"
	"github.com/staranto/assetctl/internal/meta"
	"github.com/staranto/assetctl/internal/metrics"
)

// StatRow is one metric sample reported by watch --stats.
type StatRow struct {
	Name   string  `json:"name"`
	Labels string  `json:"labels"`
	Value  float64 `json:"value"`
}

// changeQueue collects invalidated keys between rebuilds.
type changeQueue struct {
	mu      sync.Mutex
	pending map[cache.Key][]string
	notify  chan struct{}
}

func newChangeQueue() *changeQueue {
	return &changeQueue{pending: map[cache.Key][]string{}, notify: make(chan struct{}, 1)}
}

func (q *changeQueue) push(key cache.Key, changed []string) {
	q.mu.Lock()
	q.pending[key] = append(q.pending[key], changed...)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// drain returns the queued keys in key order and empties the queue.
func (q *changeQueue) drain() []cache.Key {
	q.mu.Lock()
	defer q.mu.Unlock()
	keys := make([]cache.Key, 0, len(q.pending))
	for k, changed := range q.pending {
		log.WithFields(log.Fields{"key": k, "changed": changed}).Info("invalidated")
		keys = append(keys, k)
	}
	clear(q.pending)
	slices.SortFunc(keys, func(a, b cache.Key) int {
		return strings.Compare(a.String(), b.String())
	})
	return keys
}

// wants reports whether key belongs to the plan.
func (p buildPlan) wants(key cache.Key) bool {
	return key.Minimize == p.minimize &&
		slices.Contains(p.groups, key.Group) &&
		slices.Contains(p.types, key.Type)
}

// watcher rebuilds the planned outputs whose inputs change until its
// context ends. Failed rebuilds are retried on every tick. An edited model
// file reloads the model and rebuilds every planned output.
type watcher struct {
	mgr      *manager.Manager
	plan     buildPlan
	queue    *changeQueue
	interval time.Duration
	// modelPath is re-read on every tick when set.
	modelPath string
	// emit receives the rows of every build round, the initial one included.
	emit func([]BuildRow) error

	failed   map[cache.Key]bool
	modelTok digest.Digest
}

func (w *watcher) run(ctx context.Context) error {
	w.failed = map[cache.Key]bool{}
	w.modelTok = modelToken(w.modelPath)

	rows, err := runBuild(ctx, w.mgr, w.plan)
	if err != nil {
		return err
	}
	if err := w.emit(rows); err != nil {
		return err
	}

	if err := w.mgr.StartChangeMonitor(w.interval); err != nil {
		return err
	}
	defer w.mgr.StopChangeMonitor()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	log.WithField("interval", w.interval).Info("watching for changes")

	for {
		var keys []cache.Key
		select {
		case <-ctx.Done():
			return nil
		case <-w.queue.notify:
			keys = w.queue.drain()
		case <-ticker.C:
			keys = w.queue.drain()
			if w.modelChanged(ctx) {
				keys = append(keys, w.planned(ctx)...)
			}
		}
		if err := w.rebuild(ctx, keys); err != nil {
			return err
		}
	}
}

// modelChanged reloads the model when the model file changed since the last
// successful reload.
func (w *watcher) modelChanged(ctx context.Context) bool {
	if w.modelPath == "" {
		return false
	}
	tok := modelToken(w.modelPath)
	if tok == "" || tok == w.modelTok {
		return false
	}
	if err := w.mgr.Reload(ctx); err != nil {
		log.WithError(err).Error("model reload failed, keeping the previous model")
		return false
	}
	w.modelTok = tok
	log.WithField("model", w.modelPath).Info("model reloaded")
	return true
}

// planned returns the keys of every planned output that has resources.
func (w *watcher) planned(ctx context.Context) []cache.Key {
	reqs, err := w.plan.requests(ctx, w.mgr)
	if err != nil {
		log.WithError(err).Error("failed to resolve planned groups")
		return nil
	}
	keys := make([]cache.Key, 0, len(reqs))
	for _, r := range reqs {
		keys = append(keys, r.Key())
	}
	return keys
}

// rebuild builds keys plus every earlier failure once, in key order.
func (w *watcher) rebuild(ctx context.Context, keys []cache.Key) error {
	for k := range w.failed {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b cache.Key) int {
		return strings.Compare(a.String(), b.String())
	})
	keys = slices.Compact(keys)

	since := time.Now()
	var round []BuildRow
	for _, k := range keys {
		if !w.plan.wants(k) {
			continue
		}
		row, err := buildOne(ctx, w.mgr, w.plan.request(k.Group, k.Type), w.plan.dest, since)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// A broken edit must not end the watch.
			w.failed[k] = true
			log.WithError(err).WithField("key", k).Error("rebuild failed, retrying")
			continue
		}
		delete(w.failed, k)
		round = append(round, row)
	}
	if len(round) == 0 {
		return nil
	}
	return w.emit(round)
}

// modelToken digests the model file, or returns "" when it cannot be read.
func modelToken(path string) digest.Digest {
	if path == "" {
		return ""
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("model", path).Warn("cannot read model file")
		return ""
	}
	return digest.FromBytes(b)
}

func stats() ([]StatRow, error) {
	samples, err := metrics.Gather()
	if err != nil {
		return nil, err
	}
	rows := make([]StatRow, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, StatRow{Name: s.Name, Labels: s.Labels, Value: s.Value})
	}
	return rows, nil
}

func WatchCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	if ShortCircuitTLDR(ctx, cmd, "watch") {
		return nil
	}
	if DumpSchemaIfRequested(cmd, reflect.TypeFor[BuildRow]()) {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := cmd.Duration("for"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	q := newChangeQueue()
	mgr, err := NewManager(ctx, cmd, m.ContextDir, func(c *manager.Config) {
		c.Monitor.OnInvalidate = q.push
		c.Monitor.OnScan = func(_ []cache.Key, err error) {
			if err != nil {
				log.WithError(err).Warn("change scan failed")
			}
		}
	})
	if err != nil {
		return err
	}
	p, err := planFromFlags(ctx, cmd, mgr)
	if err != nil {
		return err
	}

	al := BuildAttrs(cmd, "group", "type", "size::b", "cached", "path")
	w := &watcher{
		mgr:       mgr,
		plan:      p,
		queue:     q,
		interval:  cmd.Duration("interval"),
		modelPath: ModelPath(cmd, m.ContextDir),
		emit: func(rows []BuildRow) error {
			return EmitRows(rows, al, cmd)
		},
	}
	err = w.run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if cmd.Bool("stats") {
		rows, err := stats()
		if err != nil {
			return err
		}
		var sal attrs.AttrList
		_ = sal.Set("name,labels,value")
		return EmitRows(rows, sal, cmd)
	}
	return nil
}

func WatchCommandBuilder(m meta.Meta) *cli.Command {
	src := m.Config.Source
	interval, _ := config.GetDuration("monitor.interval", 5*time.Second) //nolint:mnd

	flags := append(newBuildFlags("watch", src), []cli.Flag{
		&cli.DurationFlag{
			Name:    "interval",
			Aliases: []string{"i"},
			Usage:   "time between change scans",
			Value:   interval,
			Validator: func(d time.Duration) error {
				if d <= 0 {
					return fmt.Errorf("--interval must be positive")
				}
				return nil
			},
		},
		&cli.DurationFlag{
			Name:  "for",
			Usage: "stop watching after this long, default until interrupted",
		},
		&cli.BoolFlag{
			Name:    "stats",
			Usage:   "print cache and processing metrics on exit",
			Sources: configSources("watch", "stats", src),
		},
	}...)
	flags = append(flags, NewEngineFlags("watch", src)...)
	flags = append(flags, NewStoreFlags("watch", src)...)

	b := CommandBuilder{
		Name:      "watch",
		Usage:     "build groups and rebuild them when their resources change",
		UsageText: "assetctl watch [ContextDir] [options]",
		Flags:     flags,
		Action:    WatchCommandAction,
		Meta:      m,
		Report:    true,
	}
	return b.Build()
}
