// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/assetctl/internal/cache"
	"github.com/staranto/assetctl/internal/meta"
)

// EntryRow describes one stored cache entry.
type EntryRow struct {
	Key        string    `json:"key"`
	Group      string    `json:"group"`
	Type       string    `json:"type"`
	Minimize   bool      `json:"minimize"`
	Size       int       `json:"size"`
	Inputs     int       `json:"inputs"`
	Processors []string  `json:"processors"`
	BuildID    string    `json:"build_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func entryRow(e *cache.Entry) EntryRow {
	return EntryRow{
		Key:        e.Key.String(),
		Group:      e.Key.Group,
		Type:       e.Key.Type.String(),
		Minimize:   e.Key.Minimize,
		Size:       len(e.Content),
		Inputs:     len(e.Inputs),
		Processors: e.Processors,
		BuildID:    e.BuildID,
		CreatedAt:  e.CreatedAt,
	}
}

// listEntries peeks at every entry in store, so listing does not change what
// an LRU store evicts next. Keys that vanish between listing and loading are
// skipped.
func listEntries(ctx context.Context, store cache.Store) ([]EntryRow, error) {
	keys, err := store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]EntryRow, 0, len(keys))
	for _, k := range keys {
		e, ok, err := store.Peek(ctx, k)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		rows = append(rows, entryRow(e))
	}
	return rows, nil
}

// purgeEntries removes the entries created before now-olderThan, or all of
// them when olderThan is zero, and reports what was removed.
func purgeEntries(ctx context.Context, store cache.Store, olderThan time.Duration, now time.Time) ([]EntryRow, error) {
	rows, err := listEntries(ctx, store)
	if err != nil {
		return nil, err
	}

	if olderThan == 0 {
		if err := store.Purge(ctx); err != nil {
			return nil, fmt.Errorf("failed to purge cache: %w", err)
		}
		log.WithField("entries", len(rows)).Info("cache purged")
		return rows, nil
	}

	cutoff := now.Add(-olderThan)
	var removed []EntryRow
	for _, r := range rows {
		if !r.CreatedAt.Before(cutoff) {
			continue
		}
		k, err := cache.ParseKey(r.Key)
		if err != nil {
			return removed, err
		}
		if err := store.Delete(ctx, k); err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", r.Key, err)
		}
		removed = append(removed, r)
	}
	log.WithFields(log.Fields{"entries": len(removed), "cutoff": cutoff}).Info("cache purged")
	return removed, nil
}

func CacheListCommandAction(ctx context.Context, cmd *cli.Command) error {
	runner := ReportRunner[EntryRow]{
		CommandName:  "cache",
		DefaultAttrs: []string{"group", "type", "minimize", "size::b", "created_at:created:r"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]EntryRow, error) {
			store, err := NewStore(cmd)
			if err != nil {
				return nil, err
			}
			return listEntries(ctx, store)
		},
	}
	return runner.Run(ctx, cmd)
}

func CachePurgeCommandAction(ctx context.Context, cmd *cli.Command) error {
	runner := ReportRunner[EntryRow]{
		CommandName:  "cache",
		DefaultAttrs: []string{"group", "type", "minimize", "size::b"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]EntryRow, error) {
			store, err := NewStore(cmd)
			if err != nil {
				return nil, err
			}
			return purgeEntries(ctx, store, cmd.Duration("older-than"), time.Now())
		},
	}
	return runner.Run(ctx, cmd)
}

func CacheCommandBuilder(m meta.Meta) *cli.Command {
	src := m.Config.Source

	ls := CommandBuilder{
		Name:      "ls",
		Usage:     "list cached group outputs",
		UsageText: "assetctl cache ls [options]",
		Flags:     NewStoreFlags("cache", src),
		Action:    CacheListCommandAction,
		Meta:      m,
		Report:    true,
	}

	purgeFlags := append([]cli.Flag{
		&cli.DurationFlag{
			Name:    "older-than",
			Usage:   "only remove entries older than this, default all",
			Sources: configSources("cache", "older_than", src),
			Validator: func(d time.Duration) error {
				if d < 0 {
					return fmt.Errorf("--older-than must not be negative")
				}
				return nil
			},
		},
	}, NewStoreFlags("cache", src)...)
	purge := CommandBuilder{
		Name:      "purge",
		Usage:     "remove cached group outputs",
		UsageText: "assetctl cache purge [options]",
		Flags:     purgeFlags,
		Action:    CachePurgeCommandAction,
		Meta:      m,
		Report:    true,
	}

	return &cli.Command{
		Name:      "cache",
		Usage:     "inspect and purge the output cache",
		UsageText: "assetctl cache <ls|purge> [options]",
		Metadata:  map[string]any{"meta": m},
		Commands:  []*cli.Command{ls.Build(), purge.Build()},
	}
}
