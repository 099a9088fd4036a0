// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileLocator serves URIs from the local file system. Absolute-looking URIs
// such as "/static/a.css" are taken relative to Root (the context folder);
// "file://" URIs are used as is.
type FileLocator struct {
	Root string
}

// Path maps uri to a file system path.
func (l FileLocator) Path(uri string) string {
	if p, ok := strings.CutPrefix(uri, "file://"); ok {
		return filepath.FromSlash(p)
	}
	if l.Root == "" {
		return filepath.FromSlash(uri)
	}
	return filepath.Join(l.Root, filepath.FromSlash(filepath.Clean("/"+uri)))
}

func (l FileLocator) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := l.Path(uri)
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{URI: uri, Err: err}
		}
		return nil, err
	}
	if fi, err := f.Stat(); err == nil && fi.IsDir() {
		_ = f.Close()
		return nil, &NotFoundError{URI: uri}
	}
	return f, nil
}

func (l FileLocator) ModTime(_ context.Context, uri string) (time.Time, error) {
	fi, err := os.Stat(l.Path(uri))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, &NotFoundError{URI: uri, Err: err}
		}
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}
