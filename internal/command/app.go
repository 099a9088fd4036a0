// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/assetctl/internal/config"
	"github.com/staranto/assetctl/internal/meta"
)

// contextCommands accept an optional ContextDir right after the command name.
var contextCommands = []string{"build", "groups", "watch"}

// resolveContextDir picks the directory resources and the model are resolved
// against: the positional argument, then the context config key, then sd.
func resolveContextDir(args []string, ns, sd string) (string, error) {
	if slices.Contains(contextCommands, ns) && len(args) > 2 && !strings.HasPrefix(args[2], "-") {
		dir, err := filepath.Abs(args[2])
		if err != nil {
			return "", err
		}
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			return "", fmt.Errorf("context directory not found: %s", args[2])
		}
		return dir, nil
	}

	dir, _ := config.GetString("context", sd)
	if dir == "" {
		return sd, nil
	}
	return filepath.Abs(dir)
}

func InitApp(ctx context.Context, args []string) (*cli.Command, error) {
	sd, _ := os.Getwd()

	// The arg[1] immediately following the binary (arg[0]) is the assetctl
	// subcommand and also the namespace used when retrieving config values.
	// arg[1] could be -h/--help, so ignore it if it appears to be a flag.
	var ns string
	if len(args) > 1 && !strings.HasPrefix(args[1], "-") {
		ns = args[1]
	}

	cfg, _ := config.Load(ns)
	config.Config.Namespace = ns

	contextDir, err := resolveContextDir(args, ns, sd)
	if err != nil {
		return nil, err
	}

	m := meta.Meta{
		Args:        args,
		Config:      cfg,
		Context:     ctx,
		ContextDir:  contextDir,
		StartingDir: sd,
	}

	app := &cli.Command{
		Name:  "assetctl",
		Usage: "web asset optimizer",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "version",
				Aliases:     []string{"v"},
				Usage:       "assetctl version info",
				HideDefault: true,
			},
		},
	}

	app.Commands = append(app.Commands,
		BuildCommandBuilder(m),
		GroupsCommandBuilder(m),
		WatchCommandBuilder(m),
		CacheCommandBuilder(m),
		CompletionCommandBuilder(m),
	)

	// Make sure flags are sorted for the --help text.
	var sortFlags func(cmds []*cli.Command)
	sortFlags = func(cmds []*cli.Command) {
		for _, cmd := range cmds {
			sort.Slice(cmd.Flags, func(i, j int) bool {
				return cmd.Flags[i].Names()[0] < cmd.Flags[j].Names()[0]
			})
			sortFlags(cmd.Commands)
		}
	}
	sortFlags(app.Commands)

	return app, nil
}
