// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/staranto/assetctl/internal/manager"
	"github.com/staranto/assetctl/internal/meta"
	"github.com/staranto/assetctl/internal/resource"
)

// BuildRow reports one processed group output.
type BuildRow struct {
	Group      string    `json:"group"`
	Type       string    `json:"type"`
	Path       string    `json:"path"`
	Size       int       `json:"size"`
	Inputs     []string  `json:"inputs"`
	Processors []string  `json:"processors"`
	Failures   []string  `json:"failures"`
	Cached     bool      `json:"cached"`
	BuildID    string    `json:"build_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// buildPlan is what to build and where to put it.
type buildPlan struct {
	groups        []string
	types         []resource.Type
	dest          string
	minimize      bool
	ignoreMissing bool
	tolerant      bool
	parallelism   int
}

func planFromFlags(ctx context.Context, cmd *cli.Command, mgr *manager.Manager) (buildPlan, error) {
	p := buildPlan{
		groups:        splitList(cmd.String("groups")),
		dest:          cmd.String("dest"),
		minimize:      cmd.Bool("minimize"),
		ignoreMissing: cmd.Bool("ignore-missing"),
		tolerant:      cmd.Bool("tolerant"),
		parallelism:   cmd.Int("parallelism"),
	}

	typ, err := resource.ParseType(cmd.String("type"))
	if err != nil {
		return p, err
	}
	if typ == resource.Any {
		p.types = []resource.Type{resource.Style, resource.Script}
	} else {
		p.types = []resource.Type{typ}
	}

	if len(p.groups) == 0 {
		if p.groups, err = mgr.Groups(ctx); err != nil {
			return p, err
		}
	}
	return p, nil
}

// requests expands the plan into one request per group and type that has
// resources. Resolution errors fail the plan.
func (p buildPlan) requests(ctx context.Context, mgr *manager.Manager) ([]manager.Request, error) {
	var reqs []manager.Request
	for _, g := range p.groups {
		for _, t := range p.types {
			rs, err := mgr.Resolve(ctx, g, t)
			if err != nil {
				return nil, err
			}
			if len(rs) == 0 {
				continue
			}
			reqs = append(reqs, p.request(g, t))
		}
	}
	return reqs, nil
}

func (p buildPlan) request(group string, t resource.Type) manager.Request {
	return manager.Request{
		Group:         group,
		Type:          t,
		Minimize:      p.minimize,
		IgnoreMissing: p.ignoreMissing,
		Tolerant:      p.tolerant,
	}
}

// buildOne processes req and writes the output beneath dest when dest is set.
func buildOne(ctx context.Context, mgr *manager.Manager, req manager.Request, dest string, since time.Time) (BuildRow, error) {
	out, err := mgr.Process(ctx, req)
	if err != nil {
		return BuildRow{}, err
	}

	row := BuildRow{
		Group:      req.Group,
		Type:       req.Type.String(),
		Size:       len(out.Content),
		Processors: out.Processors,
		Failures:   out.Failures,
		Cached:     out.CreatedAt.Before(since),
		BuildID:    out.BuildID,
		CreatedAt:  out.CreatedAt,
	}
	for _, in := range out.Inputs {
		row.Inputs = append(row.Inputs, in.URI)
	}

	if dest != "" {
		row.Path = filepath.Join(dest, req.Group+req.Type.Ext())
		if err := writeOutput(row.Path, out.Content); err != nil {
			return row, err
		}
	}
	log.WithFields(log.Fields{"group": req.Group, "type": req.Type, "size": row.Size, "cached": row.Cached}).Info("built")
	return row, nil
}

func writeOutput(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil { //nolint:mnd
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

// runBuild processes every request of the plan concurrently. Rows follow the
// request order.
func runBuild(ctx context.Context, mgr *manager.Manager, p buildPlan) ([]BuildRow, error) {
	reqs, err := p.requests(ctx, mgr)
	if err != nil {
		return nil, err
	}

	since := time.Now()
	rows := make([]BuildRow, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	if p.parallelism > 0 {
		g.SetLimit(p.parallelism)
	}
	for i, req := range reqs {
		g.Go(func() error {
			row, err := buildOne(gctx, mgr, req, p.dest, since)
			if err != nil {
				return fmt.Errorf("%s (%s): %w", req.Group, req.Type, err)
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func newBuildFlags(ns, src string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "groups",
			Aliases: []string{"g"},
			Usage:   "comma-separated groups to build, default all",
			Sources: configSources(ns, "groups", src),
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		},
		&cli.StringFlag{
			Name:    "type",
			Usage:   "resource type to build (css, js, any)",
			Sources: configSources(ns, "type", src),
			Value:   string(resource.Any),
			Validator: func(value string) error {
				return FlagValidators(value, ChoiceValidator("css", "js", "any"))
			},
		},
		&cli.StringFlag{
			Name:    "dest",
			Aliases: []string{"d"},
			Usage:   "directory receiving <group>.css and <group>.js, nothing is written when empty",
			Sources: configSources(ns, "dest", src),
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		},
	}
}

func BuildCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	runner := ReportRunner[BuildRow]{
		CommandName:  "build",
		DefaultAttrs: []string{"group", "type", "size::b", "cached", "path"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]BuildRow, error) {
			mgr, err := NewManager(ctx, cmd, m.ContextDir)
			if err != nil {
				return nil, err
			}
			p, err := planFromFlags(ctx, cmd, mgr)
			if err != nil {
				return nil, err
			}
			return runBuild(ctx, mgr, p)
		},
	}
	return runner.Run(ctx, cmd)
}

func BuildCommandBuilder(m meta.Meta) *cli.Command {
	src := m.Config.Source
	flags := append(newBuildFlags("build", src), NewEngineFlags("build", src)...)
	flags = append(flags, NewStoreFlags("build", src)...)
	b := CommandBuilder{
		Name:      "build",
		Usage:     "process groups into optimized style sheets and scripts",
		UsageText: "assetctl build [ContextDir] [options]",
		Flags:     flags,
		Action:    BuildCommandAction,
		Meta:      m,
		Report:    true,
	}
	return b.Build()
}
