// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"

	"github.com/staranto/assetctl/internal/cacheutil"
)

var diskSubdirs = []string{"entries"}

// DiskStore keeps one JSON record per key under Dir. File names are the MD5
// of the key string. Entries survive restarts.
type DiskStore struct {
	Dir string
}

// NewDiskStore uses dir, or the assetctl cache directory when dir is empty.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		d, ok := cacheutil.Dir()
		if !ok {
			return nil, fmt.Errorf("no cache directory available")
		}
		dir = d
	}
	if _, err := cacheutil.EnsureDir(dir, diskSubdirs...); err != nil {
		return nil, err
	}
	return &DiskStore{Dir: dir}, nil
}

func (s *DiskStore) Load(_ context.Context, key Key) (*Entry, bool, error) {
	ce, ok, err := cacheutil.Read(s.Dir, diskSubdirs, key.String())
	if err != nil || !ok {
		return nil, false, err
	}
	var e Entry
	if err := json.Unmarshal(ce.Data, &e); err != nil {
		log.WithError(err).WithField("path", ce.Path).Warn("discarding corrupt cache entry")
		_ = os.Remove(ce.Path)
		return nil, false, nil
	}
	return &e, true, nil
}

// Peek is Load; the disk store keeps no recency.
func (s *DiskStore) Peek(ctx context.Context, key Key) (*Entry, bool, error) {
	return s.Load(ctx, key)
}

func (s *DiskStore) Save(_ context.Context, e *Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", e.Key, err)
	}
	return cacheutil.Write(s.Dir, diskSubdirs, e.Key.String(), b)
}

func (s *DiskStore) Delete(_ context.Context, key Key) error {
	return cacheutil.Remove(s.Dir, diskSubdirs, key.String())
}

// Purge removes every entry record. Dir may be shared, so nothing outside
// the entries subdirectory is touched.
func (s *DiskStore) Purge(context.Context) error {
	return cacheutil.Purge(filepath.Join(append([]string{s.Dir}, diskSubdirs...)...), 0)
}

func (s *DiskStore) Keys(context.Context) ([]Key, error) {
	paths, err := cacheutil.List(s.Dir, diskSubdirs...)
	if err != nil {
		return nil, err
	}
	keys := make([]Key, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var rec struct {
			Key Key `json:"key"`
		}
		if err := json.Unmarshal(b, &rec); err != nil {
			log.WithError(err).WithField("path", p).Debug("skipping unreadable cache record")
			continue
		}
		keys = append(keys, rec.Key)
	}
	return sortKeys(keys), nil
}
