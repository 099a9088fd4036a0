// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/staranto/assetctl/internal/manager"
	"github.com/staranto/assetctl/internal/meta"
	"github.com/staranto/assetctl/internal/resource"
)

// GroupRow is one resolved group and type. A group that cannot be resolved
// is reported with Error set rather than failing the listing.
type GroupRow struct {
	Group     string   `json:"group"`
	Type      string   `json:"type"`
	Count     int      `json:"count"`
	Resources []string `json:"resources"`
	Error     string   `json:"error"`
}

func listGroups(ctx context.Context, mgr *manager.Manager, names []string, types []resource.Type) ([]GroupRow, error) {
	if len(names) == 0 {
		var err error
		if names, err = mgr.Groups(ctx); err != nil {
			return nil, err
		}
	}

	var rows []GroupRow
	for _, g := range names {
		for _, t := range types {
			row := GroupRow{Group: g, Type: t.String()}
			rs, err := mgr.Resolve(ctx, g, t)
			if err != nil {
				row.Error = err.Error()
				rows = append(rows, row)
				break
			}
			row.Count = len(rs)
			for _, r := range rs {
				row.Resources = append(row.Resources, r.URI)
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func GroupsCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	runner := ReportRunner[GroupRow]{
		CommandName:  "groups",
		DefaultAttrs: []string{"group", "type", "count", "error"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]GroupRow, error) {
			mgr, err := NewManager(ctx, cmd, m.ContextDir)
			if err != nil {
				return nil, err
			}
			typ, err := resource.ParseType(cmd.String("type"))
			if err != nil {
				return nil, err
			}
			types := []resource.Type{typ}
			if typ == resource.Any {
				types = []resource.Type{resource.Style, resource.Script}
			}
			return listGroups(ctx, mgr, splitList(cmd.String("groups")), types)
		},
	}
	return runner.Run(ctx, cmd)
}

func GroupsCommandBuilder(m meta.Meta) *cli.Command {
	src := m.Config.Source
	flags := newBuildFlags("groups", src)[:2]
	flags = append(flags, NewEngineFlags("groups", src)...)
	flags = append(flags, NewStoreFlags("groups", src)...)
	b := CommandBuilder{
		Name:      "groups",
		Usage:     "list groups and the resources they resolve to",
		UsageText: "assetctl groups [ContextDir] [options]",
		Flags:     flags,
		Action:    GroupsCommandAction,
		Meta:      m,
		Report:    true,
	}
	return b.Build()
}
