// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cacheutil

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
)

// Entry represents a cached artifact on disk.
// Key is the clear-text key; EncodedKey is the hashed filename.
type Entry struct {
	Key        string
	EncodedKey string
	Path       string
	Data       []byte
}

// Dir resolves the base cache directory.
// Precedence:
//  1. ASSETCTL_CACHE_DIR, if set and non-empty
//  2. os.UserCacheDir()/assetctl
//
// Returns ("", false) if a base cannot be resolved (treat as disabled).
func Dir() (string, bool) {
	if c, ok := os.LookupEnv("ASSETCTL_CACHE_DIR"); ok && c != "" {
		return c, true
	}
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, "assetctl"), true
	}
	return "", false
}

// Enabled returns true unless ASSETCTL_CACHE explicitly disables it ("0"/"false").
func Enabled() bool {
	enabled, _ := os.LookupEnv("ASSETCTL_CACHE")
	return enabled == "" || (enabled != "0" && enabled != "false")
}

// EnsureDir creates base/subdirs and returns its path.
func EnsureDir(base string, subdirs ...string) (string, error) {
	dir := filepath.Join(append([]string{base}, subdirs...)...)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
		return dir, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return dir, nil
}

// EntryPath returns the path where the entry for clearKey lives beneath
// base/subdirs and whether a file currently exists there.
func EntryPath(base string, subdirs []string, clearKey string) (string, bool) {
	p := filepath.Join(append(append([]string{base}, subdirs...), EncodeKey(clearKey))...)
	if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
		return p, true
	}
	return p, false
}

// Read attempts to read a cached entry.
func Read(base string, subdirs []string, clearKey string) (*Entry, bool, error) {
	p, ok := EntryPath(base, subdirs, clearKey)
	if !ok {
		return nil, false, nil
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return &Entry{
		Key:        clearKey,
		EncodedKey: EncodeKey(clearKey),
		Path:       p,
		Data:       b,
	}, true, nil
}

// Write stores data for clearKey beneath base/subdirs. The file is written
// to a temporary name first and renamed into place, so readers never see a
// partial entry.
func Write(base string, subdirs []string, clearKey string, data []byte) error {
	dir, err := EnsureDir(base, subdirs...)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, EncodeKey(clearKey))); err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	return nil
}

// Remove deletes the entry for clearKey. A missing entry is not an error.
func Remove(base string, subdirs []string, clearKey string) error {
	p, _ := EntryPath(base, subdirs, clearKey)
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove cache entry: %w", err)
	}
	return nil
}

// List returns the paths of every entry beneath base/subdirs.
func List(base string, subdirs ...string) ([]string, error) {
	dir := filepath.Join(append([]string{base}, subdirs...)...)
	des, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list cache: %w", err)
	}
	var out []string
	for _, de := range des {
		if de.IsDir() || filepath.Ext(de.Name()) != "" || de.Name()[0] == '.' {
			continue
		}
		out = append(out, filepath.Join(dir, de.Name()))
	}
	return out, nil
}

// Purge removes files beneath base older than maxAge. A zero maxAge removes
// everything.
func Purge(base string, maxAge time.Duration) error {
	if base == "" {
		return nil
	}
	if err := filepath.Walk(base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !info.IsDir() && time.Since(info.ModTime()) >= maxAge {
			if err := os.Remove(path); err == nil {
				log.Debugf("removed cache file %s", path)
			} else {
				log.WithError(err).Warnf("failed to remove cache file %s", path)
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("failed to purge cache: %w", err)
	}
	return nil
}

// EncodeKey hashes k with MD5 and returns the hex string.
func EncodeKey(k string) string {
	h := md5.New()
	_, _ = h.Write([]byte(k))
	return hex.EncodeToString(h.Sum(nil))
}
