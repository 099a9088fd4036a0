// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"reflect"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/assetctl/internal/attrs"
	"github.com/staranto/assetctl/internal/meta"
	"github.com/staranto/assetctl/internal/output"
)

// ShortCircuitTLDR runs `tldr assetctl <subcmd>` when --tldr is set and
// returns true so the caller can exit early.
func ShortCircuitTLDR(ctx context.Context, cmd *cli.Command, subcmd string) bool {
	if !cmd.Bool("tldr") {
		return false
	}
	if _, err := exec.LookPath("tldr"); err == nil {
		c := exec.CommandContext(ctx, "tldr", "assetctl-"+subcmd)
		c.Stdout = writer(cmd)
		c.Stderr = os.Stderr
		_ = c.Run()
	}
	return true
}

// DumpSchemaIfRequested prints the report schema of t when --schema is set
// and returns true if it did.
func DumpSchemaIfRequested(cmd *cli.Command, t reflect.Type) bool {
	if cmd.Bool("schema") {
		output.DumpSchema(writer(cmd), t)
		return true
	}
	return false
}

// BuildAttrs constructs the column list from defaults plus --attrs, then
// applies the global transform spec.
func BuildAttrs(cmd *cli.Command, defaults ...string) (al attrs.AttrList) {
	for _, d := range defaults {
		_ = al.Set(d)
	}
	if extras := cmd.String("attrs"); extras != "" {
		// Already checked by the flag validator.
		_ = al.Set(extras)
	}
	al.SetGlobalTransformSpec()
	return
}

// EmitRows marshals rows to JSON and hands the document to the common output
// routine.
func EmitRows(rows any, al attrs.AttrList, cmd *cli.Command) error {
	var raw bytes.Buffer
	if err := json.NewEncoder(&raw).Encode(rows); err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return output.SliceDiceSpit(raw, al, cmd, "", writer(cmd))
}

// writer is the root command's Writer so tests can capture output.
func writer(cmd *cli.Command) io.Writer {
	if cmd != nil {
		if w := cmd.Root().Writer; w != nil {
			return w
		}
	}
	return os.Stdout
}

// GetMeta returns the meta.Meta stored in the command's Metadata, or the zero
// value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// splitList splits a comma separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CommandBuilder constructs a subcommand the same way for every command: meta
// in Metadata, tldr and schema flags, the report flags and a validating
// Before hook.
type CommandBuilder struct {
	Name      string
	Usage     string
	UsageText string
	Flags     []cli.Flag
	Action    func(context.Context, *cli.Command) error
	Meta      meta.Meta
	// Report adds --schema and the report flags.
	Report bool
}

// Build returns a configured cli.Command from the builder.
func (b *CommandBuilder) Build() *cli.Command {
	flags := append([]cli.Flag{newTLDRFlag()}, b.Flags...)
	if b.Report {
		flags = append(flags, newSchemaFlag())
		flags = append(flags, NewGlobalFlags(b.Name, b.Meta.Config.Source)...)
	}
	return &cli.Command{
		Name:      b.Name,
		Usage:     b.Usage,
		UsageText: b.UsageText,
		Metadata: map[string]any{
			"meta": b.Meta,
		},
		Flags:  flags,
		Action: b.Action,
	}
}

// ReportRunner encapsulates the common action of report commands: meta,
// short-circuit checks, columns, fetch and emit. FetchFn does the work.
type ReportRunner[T any] struct {
	CommandName  string
	DefaultAttrs []string
	FetchFn      func(context.Context, *cli.Command) ([]T, error)
}

// Run executes the report action.
func (r *ReportRunner[T]) Run(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	if len(m.Args) > 1 {
		log.Debugf("executing action for %v", m.Args[1:])
	}

	if ShortCircuitTLDR(ctx, cmd, r.CommandName) {
		return nil
	}
	if DumpSchemaIfRequested(cmd, reflect.TypeFor[T]()) {
		return nil
	}

	al := BuildAttrs(cmd, r.DefaultAttrs...)
	log.Debugf("attrs: %v", al.String())

	results, err := r.FetchFn(ctx, cmd)
	if err != nil {
		return err
	}
	if results == nil {
		results = []T{}
	}
	return EmitRows(results, al, cmd)
}
