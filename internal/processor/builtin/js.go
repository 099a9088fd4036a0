// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dop251/goja"

	"github.com/staranto/assetctl/internal/resource"
)

type jsOnly struct{}

func (jsOnly) SupportsType(t resource.Type) bool { return t == resource.Script }

// Semicolon terminates a script with ";" so that concatenated scripts do not
// run into each other.
type Semicolon struct{ jsOnly }

func (Semicolon) Name() string { return "semicolon" }

func (Semicolon) Process(_ context.Context, _ *resource.Resource, in io.Reader, out io.Writer) error {
	b, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	if _, err := out.Write(b); err != nil {
		return err
	}
	trimmed := bytes.TrimRight(b, " \t\r\n")
	if len(trimmed) == 0 || trimmed[len(trimmed)-1] == ';' {
		return nil
	}
	_, err = io.WriteString(out, ";")
	return err
}

var ErrNoProcessFunction = errors.New("script does not define a process function")

// JSFunc runs a user script defining
//
//	function process(input, uri) { return output; }
//
// The script is compiled once. Every call gets a fresh runtime since a
// goja.Runtime is not safe for concurrent use.
type JSFunc struct {
	path    string
	program *goja.Program
}

// NewJSFunc compiles the script at path, relative to dir when not absolute.
func NewJSFunc(path, dir string) (*JSFunc, error) {
	if path == "" {
		return nil, errors.New("jsfunc needs a script path")
	}
	if !filepath.IsAbs(path) && dir != "" {
		path = filepath.Join(dir, path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	program, err := goja.Compile(path, string(src), false)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", path, err)
	}

	p := &JSFunc{path: path, program: program}
	if _, _, err := p.runtime(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *JSFunc) Name() string { return "jsfunc=" + p.path }

func (p *JSFunc) runtime() (*goja.Runtime, goja.Callable, error) {
	vm := goja.New()
	if _, err := vm.RunProgram(p.program); err != nil {
		return nil, nil, fmt.Errorf("failed to run %s: %w", p.path, err)
	}
	fn, ok := goja.AssertFunction(vm.Get("process"))
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", p.path, ErrNoProcessFunction)
	}
	return vm, fn, nil
}

func (p *JSFunc) Process(ctx context.Context, r *resource.Resource, in io.Reader, out io.Writer) error {
	b, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	vm, fn, err := p.runtime()
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()

	uri := goja.Null()
	if r != nil {
		uri = vm.ToValue(r.URI)
	}
	v, err := fn(goja.Undefined(), vm.ToValue(string(b)), uri)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, v.String())
	return err
}
