// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// SchemeLocator dispatches by URI scheme ("http", "s3", ...). URIs without a
// scheme, or with one that has no registered locator, go to Default.
type SchemeLocator struct {
	Default Locator
	Schemes map[string]Locator
}

func (l SchemeLocator) pick(uri string) (Locator, error) {
	if scheme, _, ok := strings.Cut(uri, "://"); ok {
		if loc, ok := l.Schemes[strings.ToLower(scheme)]; ok {
			return loc, nil
		}
	}
	if l.Default == nil {
		return nil, fmt.Errorf("no locator for %s", uri)
	}
	return l.Default, nil
}

func (l SchemeLocator) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	loc, err := l.pick(uri)
	if err != nil {
		return nil, err
	}
	return loc.Open(ctx, uri)
}

// ModTime delegates to the selected locator when it implements ModTimer.
func (l SchemeLocator) ModTime(ctx context.Context, uri string) (time.Time, error) {
	loc, err := l.pick(uri)
	if err != nil {
		return time.Time{}, err
	}
	mt, ok := loc.(ModTimer)
	if !ok {
		return time.Time{}, fmt.Errorf("locator for %s cannot report modification times", uri)
	}
	return mt.ModTime(ctx, uri)
}
