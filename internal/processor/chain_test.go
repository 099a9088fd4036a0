// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/assetctl/internal/resource"
)

func res(typ resource.Type, uri string) resource.Resource {
	return resource.Resource{URI: uri, Type: typ}
}

func TestChain_OrderAndSeparator(t *testing.T) {
	loc := resource.NewMemoryLocator()
	var rs []resource.Resource
	var want string
	for i := 0; i < 20; i++ {
		uri := fmt.Sprintf("/%02d.js", i)
		loc.Set(uri, fmt.Sprint(i))
		rs = append(rs, res(resource.Script, uri))
		if i > 0 {
			want += ";"
		}
		want += fmt.Sprintf("%d+", i)
	}

	c := &Chain{
		Pre:         []Processor{&tagger{name: "plus", tag: "+"}},
		Locator:     loc,
		Separator:   ";",
		Parallelism: 4,
	}
	out, err := c.Run(context.Background(), rs, Options{Type: resource.Script})
	require.NoError(t, err)
	assert.Equal(t, want, string(out.Content))
	assert.Equal(t, rs, out.Resources)
	assert.Equal(t, []string{"pre:plus"}, out.Applied)
}

func TestChain_TypeFiltering(t *testing.T) {
	loc := resource.NewMemoryLocator()
	loc.Set("/a.css", "a")
	loc.Set("/b.js", "b")

	cssOnly := &tagger{name: "cssonly", tag: "[css]", only: resource.Style}
	jsOnly := &tagger{name: "jsonly", tag: "[js]", only: resource.Script}
	c := &Chain{
		Pre:     []Processor{cssOnly, jsOnly},
		Post:    []Processor{&tagger{name: "postcss", tag: "<css>", only: resource.Style}},
		Locator: loc,
	}

	// Pre-processors are matched per resource, post-processors by request.
	out, err := c.Run(context.Background(), []resource.Resource{res(resource.Style, "/a.css"), res(resource.Script, "/b.js")},
		Options{Type: resource.Script})
	require.NoError(t, err)
	assert.Equal(t, "a[css]\nb[js]", string(out.Content))
	assert.Equal(t, []string{"pre:cssonly", "pre:jsonly"}, out.Applied)
}

// A minimizer and a non-minimizer post-processor: the minimizer only runs
// when minimizing is requested, the other always runs.
func TestChain_MinimizeFlag(t *testing.T) {
	loc := resource.NewMemoryLocator()
	loc.Set("/a.css", "a")

	minimizer := &tagger{name: "min", tag: "[min]", minimizer: true}
	plain := &tagger{name: "plain", tag: "[plain]"}
	c := &Chain{Post: []Processor{minimizer, plain}, Locator: loc}
	rs := []resource.Resource{res(resource.Style, "/a.css")}

	out, err := c.Run(context.Background(), rs, Options{Type: resource.Style, Minimize: true})
	require.NoError(t, err)
	assert.Equal(t, "a[min][plain]", string(out.Content))
	assert.Equal(t, []string{"post:min", "post:plain"}, out.Applied)

	out, err = c.Run(context.Background(), rs, Options{Type: resource.Style, Minimize: false})
	require.NoError(t, err)
	assert.Equal(t, "a[plain]", string(out.Content))
	assert.Equal(t, []string{"post:plain"}, out.Applied)
	assert.Equal(t, int32(1), minimizer.calls.Load())
}

func TestChain_RuntimeUnsupportedIsSkipped(t *testing.T) {
	loc := resource.NewMemoryLocator()
	loc.Set("/a.js", "a")
	absent := &tagger{name: "absent", tag: "!", missing: true}

	c := &Chain{Pre: []Processor{absent}, Locator: loc}
	out, err := c.Run(context.Background(), []resource.Resource{res(resource.Script, "/a.js")}, Options{Type: resource.Script})
	require.NoError(t, err)
	assert.Equal(t, "a", string(out.Content))
	assert.Empty(t, out.Applied)
	assert.Equal(t, int32(0), absent.calls.Load())
}

// Three resources, the middle one missing.
func TestChain_MissingResource(t *testing.T) {
	loc := resource.NewMemoryLocator()
	loc.Set("/1.css", "one")
	loc.Set("/3.css", "three")
	rs := []resource.Resource{res(resource.Style, "/1.css"), res(resource.Style, "/2.css"), res(resource.Style, "/3.css")}
	c := &Chain{Locator: loc}

	_, err := c.Run(context.Background(), rs, Options{Type: resource.Style})
	var nf *resource.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "/2.css", nf.URI)

	out, err := c.Run(context.Background(), rs, Options{Type: resource.Style, IgnoreMissing: true})
	require.NoError(t, err)
	assert.Equal(t, "one\nthree", string(out.Content))
	assert.Equal(t, []resource.Resource{rs[0], rs[2]}, out.Resources)
	assert.Equal(t, []resource.Resource{rs[1]}, out.Missing)
}

func TestChain_FailingProcessor(t *testing.T) {
	loc := resource.NewMemoryLocator()
	loc.Set("/a.js", "a")
	loc.Set("/b.js", "b")
	boom := errors.New("lint error")
	lint := &tagger{name: "lint", fail: boom}
	semi := &tagger{name: "semi", tag: ";"}
	rs := []resource.Resource{res(resource.Script, "/a.js"), res(resource.Script, "/b.js")}

	c := &Chain{Pre: []Processor{lint, semi}, Locator: loc, Parallelism: 1}
	_, err := c.Run(context.Background(), rs, Options{Type: resource.Script})
	var perr *ProcessingError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "lint", perr.Processor)
	assert.Equal(t, StagePre, perr.Stage)
	assert.ErrorIs(t, err, boom)

	out, err := c.Run(context.Background(), rs, Options{Type: resource.Script, Tolerant: true})
	require.NoError(t, err)
	assert.Equal(t, "a;\nb;", string(out.Content), "content before the failing processor is kept")
	require.Len(t, out.Failures, 2)
	assert.Equal(t, "/a.js", out.Failures[0].URI)
	assert.Equal(t, "/b.js", out.Failures[1].URI)
	assert.Equal(t, []string{"pre:semi"}, out.Applied)

	c = &Chain{Post: []Processor{lint}, Locator: loc}
	_, err = c.Run(context.Background(), rs, Options{Type: resource.Script})
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StagePost, perr.Stage)
	assert.Empty(t, perr.URI)
}

type importer struct{ loc resource.Locator }

func (importer) IsImportAware() bool { return true }

func (p importer) Process(ctx context.Context, _ *resource.Resource, in io.Reader, out io.Writer) error {
	inc := resource.Resource{URI: "/inc.css", Type: resource.Style}
	b, err := resource.ReadAll(ctx, p.loc, inc.URI)
	if err != nil {
		return err
	}
	RecordImport(ctx, inc)
	if _, err := out.Write(b); err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	return err
}

func TestChain_RecordsImports(t *testing.T) {
	loc := resource.NewMemoryLocator()
	loc.Set("/a.css", "a")
	loc.Set("/b.css", "b")
	loc.Set("/inc.css", "i")

	c := &Chain{Pre: []Processor{importer{loc: loc}}, Locator: loc}
	out, err := c.Run(context.Background(),
		[]resource.Resource{res(resource.Style, "/a.css"), res(resource.Style, "/b.css")},
		Options{Type: resource.Style})
	require.NoError(t, err)
	assert.Equal(t, "ia\nib", string(out.Content))
	assert.Equal(t, []resource.Resource{res(resource.Style, "/inc.css")}, out.Imports, "imports are deduplicated")
	assert.Equal(t, []string{"pre:importer"}, out.Applied)
}

func TestChain_EmptyGroup(t *testing.T) {
	c := &Chain{Locator: resource.NewMemoryLocator(), Post: []Processor{&tagger{name: "t", tag: "x"}}}
	out, err := c.Run(context.Background(), nil, Options{Type: resource.Style})
	require.NoError(t, err)
	assert.Equal(t, "x", string(out.Content))
	assert.Empty(t, out.Resources)
}

func TestChain_Cancelled(t *testing.T) {
	loc := resource.NewMemoryLocator()
	loc.Set("/a.css", "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &Chain{Locator: loc}
	_, err := c.Run(ctx, []resource.Resource{res(resource.Style, "/a.css")}, Options{Type: resource.Style})
	assert.ErrorIs(t, err, context.Canceled)
}
