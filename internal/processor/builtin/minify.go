// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"context"
	"io"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"

	"github.com/staranto/assetctl/internal/resource"
)

const (
	mediaCSS = "text/css"
	mediaJS  = "application/javascript"
)

// Minifier wraps a tdewolff minifier for one media type. It only runs when a
// minimized output is requested.
type Minifier struct {
	name  string
	typ   resource.Type
	media string
	m     *minify.M
}

func newMinifier(name string, typ resource.Type, media string, fn minify.MinifierFunc) *Minifier {
	m := minify.New()
	m.AddFunc(media, fn)
	return &Minifier{name: name, typ: typ, media: media, m: m}
}

func NewCSSMin() *Minifier { return newMinifier("cssmin", resource.Style, mediaCSS, css.Minify) }
func NewJSMin() *Minifier  { return newMinifier("jsmin", resource.Script, mediaJS, js.Minify) }

func (p *Minifier) Name() string                      { return p.name }
func (p *Minifier) IsMinimizer() bool                 { return true }
func (p *Minifier) SupportsType(t resource.Type) bool { return t == p.typ }

func (p *Minifier) Process(_ context.Context, _ *resource.Resource, in io.Reader, out io.Writer) error {
	return p.m.Minify(p.media, out, in)
}
