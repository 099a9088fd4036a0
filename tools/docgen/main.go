// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// docgen renders the command docs under docs/commands into man pages and the
// tldr pages shown by --tldr.
//
//	docs/commands/<cmd>.md  ->  docs/man/share/man1/assetctl-<cmd>.1
//	                        ->  docs/tldr/assetctl-<cmd>.md
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	md2man "github.com/cpuguy83/go-md2man/v2/md2man"
)

const (
	binary  = "assetctl"
	repoURL = "https://github.com/staranto/assetctl"
)

func main() {
	root := flag.String("root", ".", "repo root")
	onlyIfChanged := flag.Bool("only-if-changed", true, "only write files whose content changed")
	flag.Parse()

	if err := run(*root, *onlyIfChanged); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(root string, onlyIfChanged bool) error {
	src := filepath.Join(root, "docs", "commands")
	manDir := filepath.Join(root, "docs", "man", "share", "man1")
	tldrDir := filepath.Join(root, "docs", "tldr")
	for _, d := range []string{manDir, tldrDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", d, err)
		}
	}

	pages, err := filepath.Glob(filepath.Join(src, "*.md"))
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return fmt.Errorf("no command markdown found under %s", src)
	}

	for _, page := range pages {
		cmd := strings.TrimSuffix(filepath.Base(page), ".md")
		raw, err := os.ReadFile(page)
		if err != nil {
			return err
		}

		manPath := filepath.Join(manDir, binary+"-"+cmd+".1")
		if err := writeFileIfChanged(manPath, md2man.Render(raw), onlyIfChanged); err != nil {
			return fmt.Errorf("writing man page for %s: %w", cmd, err)
		}

		title, short := extractTitleAndShortDesc(string(raw))
		tldr := buildTLDR(cmd, title, short, extractQuickExamples(string(raw)))
		tldrPath := filepath.Join(tldrDir, binary+"-"+cmd+".md")
		if err := writeFileIfChanged(tldrPath, []byte(tldr), onlyIfChanged); err != nil {
			return fmt.Errorf("writing tldr page for %s: %w", cmd, err)
		}
	}
	return nil
}

// writeFileIfChanged leaves path alone when its content only differs from b
// in surrounding whitespace, so regenerating keeps timestamps stable.
func writeFileIfChanged(path string, b []byte, onlyIfChanged bool) error {
	if onlyIfChanged {
		old, err := os.ReadFile(path)
		switch {
		case err == nil && bytes.Equal(bytes.TrimSpace(old), bytes.TrimSpace(b)):
			return nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return err
		}
	}
	return os.WriteFile(path, b, 0o644) //nolint:gosec
}

var h1Re = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// section returns the lines following the first line equal to name,
// case-insensitively, or nil.
func section(md, name string) []string {
	lines := strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n")
	for i, ln := range lines {
		if strings.EqualFold(strings.TrimSpace(ln), name) {
			return lines[i+1:]
		}
	}
	return nil
}

func extractTitleAndShortDesc(md string) (title, short string) {
	if m := h1Re.FindStringSubmatch(md); m != nil {
		title = strings.TrimSpace(m[1])
	}

	// First paragraph of the "Short description" section.
	var para []string
	for _, ln := range section(md, "Short description") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			if len(para) > 0 {
				break
			}
			continue
		}
		if strings.HasPrefix(ln, "#") || strings.HasSuffix(ln, ":") {
			break
		}
		para = append(para, ln)
	}
	short = strings.Join(para, " ")

	if short == "" && title != "" {
		short = title + "."
	}
	return title, short
}

type example struct {
	Desc string
	Cmd  string
}

// extractQuickExamples reads the first fenced block of the "Quick examples"
// section. A "# comment" line describes the command line after it.
func extractQuickExamples(md string) []example {
	var (
		exs    []example
		desc   string
		inside bool
	)
	for _, ln := range section(md, "Quick examples") {
		ln = strings.TrimSpace(ln)
		if strings.HasPrefix(ln, "```") {
			if inside {
				break
			}
			inside = true
			continue
		}
		if !inside || ln == "" {
			continue
		}
		if strings.HasPrefix(ln, "#") {
			desc = strings.TrimSpace(strings.TrimPrefix(ln, "#"))
			continue
		}
		if desc == "" {
			desc = "Example"
		}
		exs = append(exs, example{Desc: desc, Cmd: ln})
		desc = ""
	}
	return exs
}

func buildTLDR(cmd, title, short string, exs []example) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s-%s\n\n", binary, cmd)
	switch {
	case short != "":
		fmt.Fprintf(&b, "> %s\n", short)
	case title != "":
		fmt.Fprintf(&b, "> %s\n", title)
	default:
		fmt.Fprintf(&b, "> %s %s\n", binary, cmd)
	}
	fmt.Fprintf(&b, "> More information: %s.\n", repoURL)

	if len(exs) == 0 {
		exs = []example{{Desc: "Show help for the command", Cmd: binary + " " + cmd + " --help"}}
	}
	for _, ex := range exs {
		fmt.Fprintf(&b, "\n- %s:\n\n`%s`\n", strings.TrimSpace(ex.Desc), sanitizeCommand(ex.Cmd))
	}
	return b.String()
}

var placeholderRe = regexp.MustCompile(`<([^<>]+)>`)

// sanitizeCommand compresses whitespace and turns <placeholder> into the
// tldr {{placeholder}} form.
func sanitizeCommand(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return placeholderRe.ReplaceAllString(s, "{{$1}}")
}
