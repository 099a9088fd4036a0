// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"github.com/staranto/assetctl/internal/processor"
)

// Register adds every built-in processor to r.
func Register(r *processor.Registry) {
	r.Register("cssurlrewriter", func(string, processor.Env) (processor.Processor, error) {
		return CSSURLRewriter{}, nil
	}, processor.Usage("rewrite relative url(...) references against the style sheet location"))

	r.Register("cssimport", func(_ string, env processor.Env) (processor.Processor, error) {
		return &CSSImport{Locator: env.Locator}, nil
	}, processor.Usage("inline @import rules"))

	r.Register("cssvariables", func(string, processor.Env) (processor.Processor, error) {
		return CSSVariables{}, nil
	}, processor.Usage("expand @variables blocks and var(name) references"))

	r.Register("conformcolors", func(string, processor.Env) (processor.Processor, error) {
		return ConformColors{}, nil
	}, processor.Usage("normalize rgb() and short hex colors to #rrggbb"))

	r.Register("semicolon", func(string, processor.Env) (processor.Processor, error) {
		return Semicolon{}, nil
	}, processor.Usage("terminate scripts with a semicolon"))

	r.Register("cssmin", func(string, processor.Env) (processor.Processor, error) {
		return NewCSSMin(), nil
	}, processor.Usage("minify style sheets"))

	r.Register("jsmin", func(string, processor.Env) (processor.Processor, error) {
		return NewJSMin(), nil
	}, processor.Usage("minify scripts"))

	r.Register("jslint", func(arg string, _ processor.Env) (processor.Processor, error) {
		opts, err := ParseJSLintOptions(arg)
		if err != nil {
			return nil, err
		}
		return JSLint{Options: opts}, nil
	}, processor.Usage("jslint[=undef;browser;node;predef=<name>]: fail on script syntax errors and undeclared globals"))

	r.Register("csslint", func(string, processor.Env) (processor.Processor, error) {
		return CSSLint{}, nil
	}, processor.Usage("fail on style sheet grammar errors"))

	r.Register("jsfunc", func(arg string, env processor.Env) (processor.Processor, error) {
		return NewJSFunc(arg, env.Context)
	}, processor.Expensive(), processor.Usage("jsfunc=<file>: run process(input, uri) from a script"))

	r.Register("exec", func(arg string, _ processor.Env) (processor.Processor, error) {
		return NewExec(arg)
	}, processor.Expensive(), processor.Usage("exec=<command line>: pipe content through an external tool"))
}

// NewRegistry returns a registry holding the built-in processors.
func NewRegistry() *processor.Registry {
	r := processor.NewRegistry()
	Register(r)
	return r
}
