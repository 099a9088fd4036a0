// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/staranto/assetctl/internal/processor"
	"github.com/staranto/assetctl/internal/resource"
)

type cssOnly struct{}

func (cssOnly) SupportsType(t resource.Type) bool { return t == resource.Style }

// resolveRef resolves ref against the location of base. Absolute paths,
// scheme URLs, data URIs and fragments are returned unchanged.
func resolveRef(base, ref string) string {
	switch {
	case ref == "", base == "",
		strings.HasPrefix(ref, "/"),
		strings.HasPrefix(ref, "#"),
		strings.HasPrefix(ref, "data:"),
		strings.Contains(ref, "://"):
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

var cssURLPattern = regexp.MustCompile(`url\(\s*(['"]?)([^'")]+?)(['"]?)\s*\)`)

// CSSURLRewriter makes relative url(...) references absolute so they still
// work once the style sheet is merged into a group output served elsewhere.
type CSSURLRewriter struct{ cssOnly }

func (CSSURLRewriter) Name() string { return "cssurlrewriter" }

func (CSSURLRewriter) Process(_ context.Context, r *resource.Resource, in io.Reader, out io.Writer) error {
	b, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	if r == nil {
		_, err = out.Write(b)
		return err
	}
	rewritten := cssURLPattern.ReplaceAllStringFunc(string(b), func(m string) string {
		sub := cssURLPattern.FindStringSubmatch(m)
		if sub[1] != sub[3] {
			return m
		}
		return "url(" + sub[1] + resolveRef(r.URI, sub[2]) + sub[3] + ")"
	})
	_, err = io.WriteString(out, rewritten)
	return err
}

var cssImportPattern = regexp.MustCompile(`@import\s+(?:url\(\s*)?['"]?([^'")\s;]+)['"]?\s*\)?\s*([^;]*);`)

// maxImportDepth bounds nested @import chains.
const maxImportDepth = 32

// CSSImport replaces @import rules with the imported content. Imports with a
// media query list are left alone. Import cycles are cut at the repeated
// sheet.
type CSSImport struct {
	cssOnly
	Locator resource.Locator
}

func (*CSSImport) Name() string        { return "cssimport" }
func (*CSSImport) IsImportAware() bool { return true }

func (p *CSSImport) Process(ctx context.Context, r *resource.Resource, in io.Reader, out io.Writer) error {
	b, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	base := ""
	visited := map[string]bool{}
	if r != nil {
		base = r.URI
		visited[r.URI] = true
	}
	s, err := p.inline(ctx, base, string(b), visited, 0)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, s)
	return err
}

func (p *CSSImport) inline(ctx context.Context, base, css string, visited map[string]bool, depth int) (string, error) {
	if depth > maxImportDepth {
		return "", fmt.Errorf("@import nesting deeper than %d", maxImportDepth)
	}

	var (
		sb   strings.Builder
		last int
	)
	for _, loc := range cssImportPattern.FindAllStringSubmatchIndex(css, -1) {
		sb.WriteString(css[last:loc[0]])
		last = loc[1]

		ref := css[loc[2]:loc[3]]
		media := strings.TrimSpace(css[loc[4]:loc[5]])
		if media != "" {
			sb.WriteString(css[loc[0]:loc[1]])
			continue
		}
		uri := resolveRef(base, ref)
		if visited[uri] {
			continue
		}

		imported := resource.Resource{URI: uri, Type: resource.Style}
		data, err := resource.ReadAll(ctx, p.Locator, uri)
		if err != nil {
			return "", fmt.Errorf("failed to import %s: %w", uri, err)
		}
		processor.RecordImport(ctx, imported)

		visited[uri] = true
		nested, err := p.inline(ctx, uri, string(data), visited, depth+1)
		delete(visited, uri)
		if err != nil {
			return "", err
		}
		sb.WriteString(nested)
	}
	sb.WriteString(css[last:])
	return sb.String(), nil
}

var (
	cssVariablesBlock = regexp.MustCompile(`@variables\s*[^{]*\{([^}]*)\}\s*`)
	cssVariableRef    = regexp.MustCompile(`var\(\s*([\w-]+)\s*\)`)
)

// CSSVariables expands the legacy "@variables { name: value; }" syntax and
// its var(name) references. Unknown references are kept as is.
type CSSVariables struct{ cssOnly }

func (CSSVariables) Name() string { return "cssvariables" }

func (CSSVariables) Process(_ context.Context, _ *resource.Resource, in io.Reader, out io.Writer) error {
	b, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	css := string(b)

	vars := map[string]string{}
	for _, m := range cssVariablesBlock.FindAllStringSubmatch(css, -1) {
		for _, decl := range strings.Split(m[1], ";") {
			name, value, ok := strings.Cut(decl, ":")
			if !ok {
				continue
			}
			vars[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}
	if len(vars) > 0 {
		css = cssVariablesBlock.ReplaceAllString(css, "")
	}
	css = cssVariableRef.ReplaceAllStringFunc(css, func(m string) string {
		name := cssVariableRef.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})

	_, err = io.WriteString(out, css)
	return err
}

var (
	cssDeclarationBlock = regexp.MustCompile(`\{[^{}]*\}`)
	cssRGB              = regexp.MustCompile(`rgb\(\s*(\d{1,3})\s*,\s*(\d{1,3})\s*,\s*(\d{1,3})\s*\)`)
	cssShortHex         = regexp.MustCompile(`#([0-9a-fA-F])([0-9a-fA-F])([0-9a-fA-F])\b`)
	cssLongHex          = regexp.MustCompile(`#[0-9a-fA-F]{6}\b`)
)

// ConformColors rewrites colors inside declaration blocks to lower case
// #rrggbb. Selectors are never touched.
type ConformColors struct{ cssOnly }

func (ConformColors) Name() string { return "conformcolors" }

func (ConformColors) Process(_ context.Context, _ *resource.Resource, in io.Reader, out io.Writer) error {
	b, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	css := cssDeclarationBlock.ReplaceAllStringFunc(string(b), conformBlock)
	_, err = io.WriteString(out, css)
	return err
}

func conformBlock(block string) string {
	block = cssRGB.ReplaceAllStringFunc(block, func(m string) string {
		sub := cssRGB.FindStringSubmatch(m)
		var sb strings.Builder
		sb.WriteByte('#')
		for _, c := range sub[1:] {
			n, _ := strconv.Atoi(c)
			fmt.Fprintf(&sb, "%02x", min(n, 255))
		}
		return sb.String()
	})
	block = cssShortHex.ReplaceAllStringFunc(block, func(m string) string {
		return strings.ToLower("#" + m[1:2] + m[1:2] + m[2:3] + m[2:3] + m[3:4] + m[3:4])
	})
	return cssLongHex.ReplaceAllStringFunc(block, strings.ToLower)
}
