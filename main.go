// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/assetctl/internal/command"
	"github.com/staranto/assetctl/internal/config"
	mylog "github.com/staranto/assetctl/internal/log"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var ctx = context.Background()

func main() {
	os.Exit(realMain())
}

func realMain() int {
	mylog.InitLogger()

	args := os.Args

	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "No command specified.")
		args = append(args, "--help")
	} else {
		args = mangleArguments(args)
	}

	// Short-circuit --version/-v.
	for _, a := range args {
		if a == "--version" || a == "-v" {
			fmt.Println(version)
			return 0
		}
	}

	app, err := command.InitApp(ctx, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return 0
}

// mangleArguments expands an @set argument into the flags listed under
// <command>.<set> in the config file. Without an @set the "defaults" set is
// used when present.
func mangleArguments(args []string) []string {
	for _, a := range args {
		if a == "--help" || a == "-h" {
			return args
		}
	}

	args = append([]string{}, args...)

	// Flags from the set go after the command and its optional ContextDir or
	// subcommand word.
	idx := 2
	if len(args) > 2 && !strings.HasPrefix(args[2], "-") && !strings.HasPrefix(args[2], "@") {
		idx = 3
	}

	set := "defaults"
	for i := 2; i < len(args); i++ {
		if strings.HasPrefix(args[i], "@") {
			set = args[i][1:]
			args = append(args[:i], args[i+1:]...)
			break
		}
	}

	setArgs, _ := config.GetStringSlice(args[1] + "." + set)
	var parts []string
	for _, arg := range setArgs {
		parts = append(parts, strings.Fields(arg)...)
	}
	args = append(args[:idx:idx], append(parts, args[idx:]...)...)

	log.Debugf("idx=%d, set=%s, args=%v", idx, set, args)
	return args
}
