// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/dop251/goja"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"github.com/tdewolff/parse/v2/js"

	"github.com/staranto/assetctl/internal/resource"
)

var (
	ErrUndeclared    = errors.New("undeclared globals")
	ErrUnclosedBlock = errors.New("unclosed block")
	ErrBadLintOption = errors.New("unknown lint option")
)

// LintError describes content a lint processor rejected.
type LintError struct {
	URI string
	Err error
}

func (e *LintError) Error() string {
	if e.URI == "" {
		return fmt.Sprintf("lint error: %v", e.Err)
	}
	return fmt.Sprintf("lint error in %s: %v", e.URI, e.Err)
}

func (e *LintError) Unwrap() error { return e.Err }

func uriOf(r *resource.Resource) string {
	if r == nil {
		return ""
	}
	return r.URI
}

// JSLintOptions tune JSLint. With Undef set, identifiers that are read or
// assigned without a declaration fail the lint unless they are standard
// globals, environment globals or listed in Predef.
type JSLintOptions struct {
	Undef   bool
	Browser bool
	Node    bool
	Predef  []string
}

// ParseJSLintOptions reads the jslint argument, options separated by ";":
//
//	undef;browser;predef=jQuery;predef=$
func ParseJSLintOptions(s string) (JSLintOptions, error) {
	var o JSLintOptions
	for _, opt := range strings.Split(s, ";") {
		opt = strings.TrimSpace(opt)
		name, val, _ := strings.Cut(opt, "=")
		switch strings.ToLower(name) {
		case "":
		case "undef":
			o.Undef = true
		case "browser":
			o.Browser = true
		case "node":
			o.Node = true
		case "predef":
			if val = strings.TrimSpace(val); val == "" {
				return o, fmt.Errorf("%w: predef needs a name", ErrBadLintOption)
			}
			o.Predef = append(o.Predef, val)
		default:
			return o, fmt.Errorf("%w: %q", ErrBadLintOption, opt)
		}
	}
	return o, nil
}

var (
	standardGlobals = []string{
		"Array", "ArrayBuffer", "Boolean", "DataView", "Date", "Error", "EvalError",
		"Float32Array", "Float64Array", "Function", "Infinity", "Int16Array", "Int32Array",
		"Int8Array", "Intl", "JSON", "Map", "Math", "NaN", "Number", "Object", "Promise",
		"Proxy", "RangeError", "ReferenceError", "Reflect", "RegExp", "Set", "String",
		"Symbol", "SyntaxError", "TypeError", "URIError", "Uint16Array", "Uint32Array",
		"Uint8Array", "Uint8ClampedArray", "WeakMap", "WeakSet", "arguments",
		"decodeURI", "decodeURIComponent", "encodeURI", "encodeURIComponent", "escape",
		"eval", "globalThis", "isFinite", "isNaN", "parseFloat", "parseInt", "undefined",
		"unescape",
	}
	browserGlobals = []string{
		"alert", "clearInterval", "clearTimeout", "confirm", "console", "document",
		"event", "fetch", "history", "localStorage", "location", "navigator",
		"requestAnimationFrame", "screen", "sessionStorage", "setInterval", "setTimeout",
		"window", "XMLHttpRequest",
	}
	nodeGlobals = []string{
		"Buffer", "__dirname", "__filename", "clearInterval", "clearTimeout", "console",
		"exports", "global", "module", "process", "require", "setImmediate",
		"setInterval", "setTimeout",
	}
)

func (o JSLintOptions) known(name string) bool {
	return slices.Contains(standardGlobals, name) ||
		o.Browser && slices.Contains(browserGlobals, name) ||
		o.Node && slices.Contains(nodeGlobals, name) ||
		slices.Contains(o.Predef, name)
}

// JSLint fails on scripts the goja parser rejects and copies content
// unchanged otherwise.
type JSLint struct {
	jsOnly
	Options JSLintOptions
}

func (JSLint) Name() string { return "jslint" }

func (l JSLint) Process(_ context.Context, r *resource.Resource, in io.Reader, out io.Writer) error {
	b, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	name := uriOf(r)
	if _, err := goja.Compile(name, string(b), false); err != nil {
		return &LintError{URI: name, Err: err}
	}
	if l.Options.Undef {
		names, err := l.undeclared(b)
		if err != nil {
			return &LintError{URI: name, Err: err}
		}
		if len(names) > 0 {
			return &LintError{URI: name, Err: fmt.Errorf("%w: %s", ErrUndeclared, strings.Join(names, ", "))}
		}
	}
	_, err = out.Write(b)
	return err
}

// undeclared returns the sorted names the script uses at global scope
// without declaring them.
func (l JSLint) undeclared(src []byte) ([]string, error) {
	ast, err := js.Parse(parse.NewInputBytes(src), js.Options{})
	if err != nil {
		return nil, err
	}
	var names []string
	for _, v := range ast.BlockStmt.Scope.Undeclared {
		for v.Link != nil {
			v = v.Link
		}
		if v.Decl != js.NoDecl {
			continue
		}
		if n := string(v.Data); !l.Options.known(n) {
			names = append(names, n)
		}
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// CSSLint fails on style sheets with grammar errors or unclosed blocks and
// copies content unchanged otherwise. Every error of a sheet is reported.
type CSSLint struct{ cssOnly }

func (CSSLint) Name() string { return "csslint" }

func (CSSLint) Process(_ context.Context, r *resource.Resource, in io.Reader, out io.Writer) error {
	b, err := io.ReadAll(in)
	if err != nil {
		return err
	}

	p := css.NewParser(parse.NewInputBytes(b), false)
	var (
		errs     []error
		unclosed bool
	)
loop:
	for {
		gt, tt, _ := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if p.HasParseError() {
				errs = append(errs, p.Err())
				continue
			}
			if err := p.Err(); !errors.Is(err, io.EOF) {
				errs = append(errs, err)
			}
			break loop
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			// The parser closes blocks still open at the end of input.
			unclosed = unclosed || tt == css.ErrorToken
		}
	}
	if unclosed {
		errs = append(errs, ErrUnclosedBlock)
	}
	if len(errs) > 0 {
		return &LintError{URI: uriOf(r), Err: errors.Join(errs...)}
	}
	_, err = out.Write(b)
	return err
}
