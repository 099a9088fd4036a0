// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"

	"github.com/staranto/assetctl/internal/attrs"
)

func TestBuildFilters(t *testing.T) {
	tests := []struct {
		name  string
		spec  string
		delim string
		want  []Filter
	}{
		{name: "empty", spec: ""},
		{
			name: "exact",
			spec: "group=all",
			want: []Filter{{Key: "group", Operand: "=", Target: "all"}},
		},
		{
			name: "negated prefix",
			spec: "uri!^/vendor",
			want: []Filter{{Key: "uri", Operand: "^", Target: "/vendor", Negate: true}},
		},
		{
			name: "several",
			spec: "type=css,size>100",
			want: []Filter{
				{Key: "type", Operand: "=", Target: "css"},
				{Key: "size", Operand: ">", Target: "100"},
			},
		},
		{
			name: "regex",
			spec: "uri//static/.*\\.js$",
			want: []Filter{{Key: "uri", Operand: "/", Target: "/static/.*\\.js$"}},
		},
		{
			name: "invalid skipped",
			spec: "group=all,nonsense,=x,type=js",
			want: []Filter{
				{Key: "group", Operand: "=", Target: "all"},
				{Key: "type", Operand: "=", Target: "js"},
			},
		},
		{
			name:  "custom delimiter",
			spec:  "uri@a,b|type=css",
			delim: "|",
			want: []Filter{
				{Key: "uri", Operand: "@", Target: "a,b"},
				{Key: "type", Operand: "=", Target: "css"},
			},
		},
		{
			name: "empty target",
			spec: "failures=",
			want: []Filter{{Key: "failures", Operand: "=", Target: ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.delim != "" {
				t.Setenv("ASSETCTL_FILTER_DELIM", tt.delim)
			}
			assert.Equal(t, tt.want, BuildFilters(tt.spec))
		})
	}
}

func TestCheckStringOperand(t *testing.T) {
	tests := []struct {
		value  string
		filter Filter
		want   bool
	}{
		{"all", Filter{Operand: "=", Target: "all"}, true},
		{"all", Filter{Operand: "=", Target: "all", Negate: true}, false},
		{"ALL", Filter{Operand: "~", Target: "all"}, true},
		{"/static/a.css", Filter{Operand: "^", Target: "/static"}, true},
		{"b", Filter{Operand: ">", Target: "a"}, true},
		{"b", Filter{Operand: "<", Target: "a"}, false},
		{"/static/a.css", Filter{Operand: "@", Target: "a.css"}, true},
		{"/static/a.css", Filter{Operand: "/", Target: `\.css$`}, true},
		{"/static/a.css", Filter{Operand: "/", Target: `\.js$`, Negate: true}, true},
		{"x", Filter{Operand: "/", Target: `(`}, false},
		{"x", Filter{Operand: "%", Target: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.value+tt.filter.Operand+tt.filter.Target, func(t *testing.T) {
			assert.Equal(t, tt.want, checkStringOperand(tt.value, tt.filter))
		})
	}
}

func TestCheckNumericOperand(t *testing.T) {
	assert.True(t, checkNumericOperand(5, Filter{Operand: "=", Target: "5"}))
	assert.True(t, checkNumericOperand(5, Filter{Operand: ">", Target: " 4.5 "}))
	assert.False(t, checkNumericOperand(5, Filter{Operand: "<", Target: "5"}))
	assert.True(t, checkNumericOperand(5, Filter{Operand: "<", Target: "5", Negate: true}))
	assert.False(t, checkNumericOperand(5, Filter{Operand: "=", Target: "five"}))
	assert.False(t, checkNumericOperand(5, Filter{Operand: "^", Target: "5"}))
}

func TestCheckContainsOperand(t *testing.T) {
	list := []any{"pre:semicolon", "post:jsmin"}
	assert.True(t, checkContainsOperand(list, Filter{Operand: "@", Target: "post:jsmin"}))
	assert.False(t, checkContainsOperand(list, Filter{Operand: "@", Target: "post:cssmin"}))
	assert.True(t, checkContainsOperand(list, Filter{Operand: "@", Target: "post:cssmin", Negate: true}))

	m := map[string]any{"css": 2.0}
	assert.True(t, checkContainsOperand(m, Filter{Operand: "@", Target: "css"}))
	assert.True(t, checkContainsOperand(m, Filter{Operand: "@", Target: "js", Negate: true}))
	assert.False(t, checkContainsOperand(3.0, Filter{Operand: "@", Target: "3"}))
}

const rows = `[
	{"group": "all", "type": "css", "size": 1200, "processors": ["post:cssmin"], "failures": null},
	{"group": "all", "type": "js", "size": 300, "processors": ["pre:semicolon"], "failures": null},
	{"group": "admin", "type": "css", "size": 80, "processors": [], "failures": ["jslint failed"]}
]`

func TestApplyFilters(t *testing.T) {
	al := attrs.AttrList{
		{Key: "group", OutputKey: "name", Include: true},
		{Key: "size", OutputKey: "size", Include: true},
	}
	row := gjson.Parse(rows).Array()[0]

	tests := []struct {
		name    string
		filters []Filter
		want    bool
	}{
		{"none", nil, true},
		{"by output key", []Filter{{Key: "name", Operand: "=", Target: "all"}}, true},
		{"by row path", []Filter{{Key: "type", Operand: "=", Target: "js"}}, false},
		{"numeric", []Filter{{Key: "size", Operand: ">", Target: "1000"}}, true},
		{"list contains", []Filter{{Key: "processors", Operand: "@", Target: "post:cssmin"}}, true},
		{"unknown key ignored", []Filter{{Key: "nope", Operand: "=", Target: "x"}}, true},
		{"null fails", []Filter{{Key: "failures", Operand: "=", Target: "x"}}, false},
		{"all must match", []Filter{
			{Key: "name", Operand: "=", Target: "all"},
			{Key: "size", Operand: "<", Target: "10"},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, applyFilters(row, al, tt.filters))
		})
	}
}

func TestFilterDataset(t *testing.T) {
	al := attrs.AttrList{
		{Key: "group", OutputKey: "group", Include: true},
		{Key: "type", OutputKey: "type", Include: true},
	}

	tests := []struct {
		spec string
		want []string
	}{
		{"", []string{"all/css", "all/js", "admin/css"}},
		{"type=css", []string{"all/css", "admin/css"}},
		{"group=all,type!=css", []string{"all/js"}},
		{"size<100", []string{"admin/css"}},
		{"group=none", nil},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got := FilterDataset(gjson.Parse(rows), al, tt.spec)
			var names []string
			for _, r := range got {
				names = append(names, r["group"].(string)+"/"+r["type"].(string))
			}
			assert.Equal(t, tt.want, names)
		})
	}
}
