// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/tidwall/gjson"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

var ErrBadModel = errors.New("invalid model")

// Vars are the values visible to expressions in HCL models.
type Vars struct {
	Context string
	Env     map[string]string
}

// Format is a model file syntax.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
	HCL  Format = "hcl"
)

// FormatOf returns the format implied by the extension of path, or "" when
// the extension is not recognized.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	case ".json":
		return JSON
	case ".hcl":
		return HCL
	default:
		return ""
	}
}

// Parse parses data in format f. An empty format tries JSON, HCL and YAML in
// turn and returns the first success.
func Parse(f Format, filename string, data []byte, vars Vars) (*Model, error) {
	switch f {
	case YAML:
		return ParseYAML(data)
	case JSON:
		return ParseJSON(data)
	case HCL:
		return ParseHCL(filename, data, vars)
	case "":
		var errs []error
		for _, f := range []Format{JSON, HCL, YAML} {
			m, err := Parse(f, filename, data, vars)
			if err == nil {
				return m, nil
			}
			errs = append(errs, fmt.Errorf("as %s: %w", f, err))
		}
		return nil, errors.Join(errs...)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrBadModel, f)
	}
}

// ParseYAML reads
//
//	groups:
//	  all:
//	    - css: /a.css
//	    - "group:common"
func ParseYAML(data []byte) (*Model, error) {
	var doc struct {
		Groups map[string][]interface{} `yaml:"groups"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadModel, err)
	}
	if doc.Groups == nil {
		return nil, fmt.Errorf("%w: no groups", ErrBadModel)
	}

	groups := make(map[string][]Entry, len(doc.Groups))
	for name, items := range doc.Groups {
		entries := make([]Entry, 0, len(items))
		for i, item := range items {
			var (
				e   Entry
				err error
			)
			switch v := item.(type) {
			case string:
				e, err = ParseEntry(v)
			case map[string]interface{}:
				e, err = singleKeyEntry(v)
			default:
				err = fmt.Errorf("%w: unsupported item %v", ErrBadEntry, v)
			}
			if err != nil {
				return nil, fmt.Errorf("group %s entry %d: %w", name, i, err)
			}
			entries = append(entries, e)
		}
		groups[name] = entries
	}
	return New(groups), nil
}

func singleKeyEntry(m map[string]interface{}) (Entry, error) {
	if len(m) != 1 {
		return Entry{}, fmt.Errorf("%w: expected a single key, got %d", ErrBadEntry, len(m))
	}
	for k, v := range m {
		s, ok := v.(string)
		if !ok {
			return Entry{}, fmt.Errorf("%w: %s value is not a string", ErrBadEntry, k)
		}
		return newEntry(k, s)
	}
	return Entry{}, ErrBadEntry
}

// ParseJSON reads {"groups": {"all": ["css:/a.css", {"group": "common"}]}}.
func ParseJSON(data []byte) (*Model, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrBadModel)
	}
	root := gjson.GetBytes(data, "groups")
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: no groups", ErrBadModel)
	}

	groups := map[string][]Entry{}
	var err error
	root.ForEach(func(name, items gjson.Result) bool {
		if !items.IsArray() {
			err = fmt.Errorf("group %s: %w: entries must be an array", name.String(), ErrBadModel)
			return false
		}
		entries := []Entry{}
		for i, item := range items.Array() {
			var e Entry
			switch {
			case item.Type == gjson.String:
				e, err = ParseEntry(item.String())
			case item.IsObject():
				m := map[string]interface{}{}
				item.ForEach(func(k, v gjson.Result) bool {
					m[k.String()] = v.Value()
					return true
				})
				e, err = singleKeyEntry(m)
			default:
				err = fmt.Errorf("%w: unsupported item %s", ErrBadEntry, item.Raw)
			}
			if err != nil {
				err = fmt.Errorf("group %s entry %d: %w", name.String(), i, err)
				return false
			}
			entries = append(entries, e)
		}
		groups[name.String()] = entries
		return true
	})
	if err != nil {
		return nil, err
	}
	return New(groups), nil
}

type hclDocument struct {
	Groups []struct {
		Name    string   `hcl:"name,label"`
		Entries []string `hcl:"entries"`
	} `hcl:"group,block"`
}

// ParseHCL reads
//
//	group "all" {
//	  entries = ["css:/a.css", "group:common", "js:${context}/b.js"]
//	}
//
// Expressions may reference context and env.NAME.
func ParseHCL(filename string, data []byte, vars Vars) (*Model, error) {
	file, diags := hclsyntax.ParseConfig(data, filename, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %w", ErrBadModel, diags)
	}

	var doc hclDocument
	if diags := gohcl.DecodeBody(file.Body, evalContext(vars), &doc); diags.HasErrors() {
		return nil, fmt.Errorf("%w: %w", ErrBadModel, diags)
	}
	if len(doc.Groups) == 0 {
		return nil, fmt.Errorf("%w: no groups", ErrBadModel)
	}

	groups := make(map[string][]Entry, len(doc.Groups))
	for _, g := range doc.Groups {
		if _, dup := groups[g.Name]; dup {
			return nil, fmt.Errorf("%w: group %s defined twice", ErrBadModel, g.Name)
		}
		entries := make([]Entry, 0, len(g.Entries))
		for i, s := range g.Entries {
			e, err := ParseEntry(s)
			if err != nil {
				return nil, fmt.Errorf("group %s entry %d: %w", g.Name, i, err)
			}
			entries = append(entries, e)
		}
		groups[g.Name] = entries
	}
	return New(groups), nil
}

func evalContext(vars Vars) *hcl.EvalContext {
	env := make(map[string]cty.Value, len(vars.Env))
	for k, v := range vars.Env {
		env[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"context": cty.StringVal(vars.Context),
			"env":     cty.ObjectVal(env),
		},
	}
}
