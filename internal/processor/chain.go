// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package processor

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"sync/atomic"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"github.com/staranto/assetctl/internal/resource"
)

const (
	StagePre  = "pre"
	StagePost = "post"
)

// Options control a single Chain run.
type Options struct {
	// Type is the requested output type. Post-processors are matched against
	// it; pre-processors are matched against each resource's own type.
	Type          resource.Type
	Minimize      bool
	IgnoreMissing bool
	Tolerant      bool
}

// Result is the outcome of a Chain run.
type Result struct {
	Content []byte
	// Resources are the resources whose content made it into the output.
	Resources []resource.Resource
	// Imports are resources pulled in by import-aware processors.
	Imports []resource.Resource
	// Applied lists "pre:<name>" and "post:<name>" for every processor that
	// ran at least once, in declaration order.
	Applied []string
	// Failures collects processor errors tolerated under Options.Tolerant.
	Failures []*ProcessingError
	// Missing lists resources skipped under Options.IgnoreMissing.
	Missing []resource.Resource
}

// Chain runs pre-processors over every resource, joins the results, then
// runs post-processors over the aggregate.
type Chain struct {
	Pre     []Processor
	Post    []Processor
	Locator resource.Locator
	// Separator is written between resources. Defaults to "\n".
	Separator string
	// Parallelism bounds concurrent pre-processing. Defaults to GOMAXPROCS.
	Parallelism int
}

type stageRun struct {
	stage string
	procs []Processor
	ran   []atomic.Bool
}

func newStageRun(stage string, procs []Processor) *stageRun {
	return &stageRun{stage: stage, procs: procs, ran: make([]atomic.Bool, len(procs))}
}

func (s *stageRun) applied() []string {
	var out []string
	for i, p := range s.procs {
		if s.ran[i].Load() {
			out = append(out, s.stage+":"+NameOf(p))
		}
	}
	return out
}

// Run processes resources in order. Per-resource work may run concurrently
// but the output always follows the order of resources.
func (c *Chain) Run(ctx context.Context, resources []resource.Resource, opts Options) (*Result, error) {
	ctx, imports := withImports(ctx)

	pre := newStageRun(StagePre, c.Pre)
	parts := make([][]byte, len(resources))
	found := make([]bool, len(resources))
	failures := make([][]*ProcessingError, len(resources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism())
	for i, r := range resources {
		g.Go(func() error {
			data, err := resource.ReadAll(gctx, c.Locator, r.URI)
			if err != nil {
				if opts.IgnoreMissing && errors.Is(err, resource.ErrNotFound) {
					log.WithField("uri", r.URI).Warn("ignoring missing resource")
					return nil
				}
				return err
			}
			out, fails, err := c.apply(gctx, pre, &r, r.Type, data, opts)
			if err != nil {
				return err
			}
			parts[i], found[i], failures[i] = out, true, fails
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	var aggregate bytes.Buffer
	for i, r := range resources {
		if !found[i] {
			res.Missing = append(res.Missing, r)
			continue
		}
		if len(res.Resources) > 0 {
			aggregate.WriteString(c.separator())
		}
		aggregate.Write(parts[i])
		res.Resources = append(res.Resources, r)
		res.Failures = append(res.Failures, failures[i]...)
	}

	post := newStageRun(StagePost, c.Post)
	content, fails, err := c.apply(ctx, post, nil, opts.Type, aggregate.Bytes(), opts)
	if err != nil {
		return nil, err
	}
	res.Failures = append(res.Failures, fails...)

	res.Content = content
	res.Imports = imports.list()
	res.Applied = append(pre.applied(), post.applied()...)
	return res, nil
}

func (c *Chain) apply(ctx context.Context, s *stageRun, r *resource.Resource, typ resource.Type, data []byte, opts Options) ([]byte, []*ProcessingError, error) {
	var (
		failures []*ProcessingError
		uri      string
	)
	if r != nil {
		uri = r.URI
	}

	for i, p := range s.procs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		name := NameOf(p)
		if !SupportsType(p, typ) {
			continue
		}
		if IsMinimizer(p) && !opts.Minimize {
			continue
		}
		if !IsRuntimeSupported(p) {
			log.WithField("processor", name).Warn("runtime not supported, skipping processor")
			continue
		}

		var buf bytes.Buffer
		if err := p.Process(ctx, r, bytes.NewReader(data), &buf); err != nil {
			perr := &ProcessingError{Processor: name, Stage: s.stage, URI: uri, Err: err}
			if !opts.Tolerant {
				return nil, nil, perr
			}
			log.WithError(err).WithField("processor", name).WithField("uri", uri).Warn("tolerating processor failure")
			failures = append(failures, perr)
			continue
		}
		data = buf.Bytes()
		s.ran[i].Store(true)
	}
	return data, failures, nil
}

func (c *Chain) separator() string {
	if c.Separator == "" {
		return "\n"
	}
	return c.Separator
}

func (c *Chain) parallelism() int {
	if c.Parallelism > 0 {
		return c.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}
