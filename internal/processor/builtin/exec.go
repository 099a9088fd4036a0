// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/apex/log"

	"github.com/staranto/assetctl/internal/resource"
)

// Exec pipes content through an external command. The placeholder {uri} in
// the arguments is replaced with the resource URI (empty for aggregates).
// When the command is not installed the processor reports its runtime as
// unsupported and is skipped.
type Exec struct {
	cmdline string
	path    string
	args    []string
}

func NewExec(cmdline string) (*Exec, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, errors.New("exec needs a command line")
	}
	p := &Exec{cmdline: cmdline, args: fields[1:]}
	path, err := exec.LookPath(fields[0])
	if err != nil {
		log.WithError(err).WithField("command", fields[0]).Debug("exec processor runtime not found")
		return p, nil
	}
	p.path = path
	return p, nil
}

func (p *Exec) Name() string { return "exec=" + p.cmdline }

func (p *Exec) IsRuntimeSupported() bool { return p.path != "" }

func (p *Exec) Process(ctx context.Context, r *resource.Resource, in io.Reader, out io.Writer) error {
	if p.path == "" {
		return fmt.Errorf("%s: %w", p.cmdline, exec.ErrNotFound)
	}
	uri := ""
	if r != nil {
		uri = r.URI
	}
	args := make([]string, len(p.args))
	for i, a := range p.args {
		args[i] = strings.ReplaceAll(a, "{uri}", uri)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.path, args...)
	cmd.Stdin = in
	cmd.Stdout = out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
