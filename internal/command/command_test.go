// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package command

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/staranto/assetctl/internal/cache"
	"github.com/staranto/assetctl/internal/resource"
)

// isolate keeps a developer's own config and cache out of the test.
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("ASSETCTL_CFG", "")
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("APPDATA", "")
	t.Setenv("ASSETCTL_STORE", "")
	t.Setenv("ASSETCTL_MODEL", "")
}

// contextDir lays out a small site with a yaml model.
func contextDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"wro.yaml": "groups:\n" +
			"  common:\n" +
			"    - css: /static/reset.css\n" +
			"  all:\n" +
			"    - group: common\n" +
			"    - css: /static/app.css\n" +
			"    - js: /static/app.js\n" +
			"  broken:\n" +
			"    - group: nowhere\n",
		"static/reset.css": "body { margin : 0 }\n",
		"static/app.css":   "a { color : red }\n",
		"static/app.js":    "var app = 1;\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

// runApp runs assetctl with args and returns what it wrote.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	args = append([]string{"assetctl"}, args...)
	app, err := InitApp(context.Background(), args)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	app.Writer = &buf
	err = app.Run(context.Background(), args)
	return buf.String(), err
}

func decodeRows(t *testing.T, out string) []map[string]any {
	t.Helper()
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows), out)
	return rows
}

func TestBuild_WritesOutputs(t *testing.T) {
	isolate(t)
	dir := contextDir(t)
	dest := filepath.Join(t.TempDir(), "dist")

	out, err := runApp(t, "build", dir, "--groups", "all", "--dest", dest, "--output", "json",
		"--attrs", "size,!path")
	require.NoError(t, err)

	rows := decodeRows(t, out)
	require.Len(t, rows, 2)
	assert.Equal(t, "all", rows[0]["group"])
	assert.Equal(t, "css", rows[0]["type"])
	assert.Equal(t, "js", rows[1]["type"])
	assert.Equal(t, false, rows[0]["cached"])
	assert.NotContains(t, rows[0], "path")

	css, err := os.ReadFile(filepath.Join(dest, "all.css"))
	require.NoError(t, err)
	assert.Contains(t, string(css), "margin:0")
	assert.Contains(t, string(css), "color:red")
	assert.Less(t, strings.Index(string(css), "margin"), strings.Index(string(css), "color"), "reset.css comes first")

	_, err = os.Stat(filepath.Join(dest, "all.js"))
	assert.NoError(t, err)
}

func TestBuild_NoDestWritesNothing(t *testing.T) {
	isolate(t)
	dir := contextDir(t)

	out, err := runApp(t, "build", dir, "-g", "common", "--type", "css", "--output", "json")
	require.NoError(t, err)
	rows := decodeRows(t, out)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0]["path"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "only wro.yaml and static")
}

func TestBuild_Errors(t *testing.T) {
	isolate(t)
	dir := contextDir(t)

	_, err := runApp(t, "build", dir, "-g", "broken")
	assert.ErrorContains(t, err, "nowhere")

	_, err = runApp(t, "build", dir, "-g", "all", "--pre", "nosuch")
	assert.ErrorContains(t, err, "--pre")

	_, err = runApp(t, "build", filepath.Join(dir, "nope"))
	assert.ErrorContains(t, err, "context directory not found")

	_, err = runApp(t, "build", dir, "--model", "other.yaml")
	assert.ErrorContains(t, err, "model file not found")
}

func TestBuild_Schema(t *testing.T) {
	isolate(t)
	out, err := runApp(t, "build", contextDir(t), "--schema")
	require.NoError(t, err)
	assert.Contains(t, out, "build_id")
	assert.Contains(t, out, "created_at")
}

func TestGroups(t *testing.T) {
	isolate(t)
	out, err := runApp(t, "groups", contextDir(t), "--output", "json", "--attrs", "resources")
	require.NoError(t, err)

	rows := decodeRows(t, out)
	byKey := map[string]map[string]any{}
	for _, r := range rows {
		byKey[r["group"].(string)+"/"+r["type"].(string)] = r
	}

	all := byKey["all/css"]
	require.NotNil(t, all)
	assert.Equal(t, float64(2), all["count"])
	assert.Equal(t, []any{"/static/reset.css", "/static/app.css"}, all["resources"])
	assert.Equal(t, float64(1), byKey["all/js"]["count"])
	assert.Equal(t, float64(0), byKey["common/js"]["count"])
	assert.Contains(t, byKey["broken/css"]["error"], "nowhere")
	assert.NotContains(t, byKey, "broken/js", "one error row per group")
}

func TestCompletion(t *testing.T) {
	isolate(t)
	out, err := runApp(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "complete -F _assetctl assetctl")

	out, err = runApp(t, "completion", "zsh")
	require.NoError(t, err)
	assert.Contains(t, out, "#compdef assetctl")

	t.Setenv("SHELL", "/bin/fish")
	_, err = runApp(t, "completion")
	assert.Error(t, err)
}

func TestResolveContextDir(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	got, err := resolveContextDir([]string{"assetctl", "build", dir}, "build", "/start")
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	got, err = resolveContextDir([]string{"assetctl", "build", "--dest", "x"}, "build", "/start")
	require.NoError(t, err)
	assert.Equal(t, "/start", got)

	got, err = resolveContextDir([]string{"assetctl", "cache", "ls"}, "cache", "/start")
	require.NoError(t, err)
	assert.Equal(t, "/start", got)

	_, err = resolveContextDir([]string{"assetctl", "watch", filepath.Join(dir, "nope")}, "watch", "/start")
	assert.Error(t, err)
}

func TestValidators(t *testing.T) {
	assert.Error(t, JammedFlagValidator("--output"))
	assert.NoError(t, JammedFlagValidator("json"))
	assert.NoError(t, OutputValidator("yaml"))
	assert.Error(t, OutputValidator("xml"))
	assert.NoError(t, ChoiceValidator("a", "b")("b"))
	assert.Error(t, ChoiceValidator("a", "b")("c"))
	assert.NoError(t, AttrsValidator("size::b,!path"))
	assert.Error(t, AttrsValidator("group,,type"))
	assert.Error(t, NonNegativeValidator(-1))
	assert.NoError(t, NonNegativeValidator(0))
	assert.Error(t, PositiveValidator(0))
	assert.NoError(t, FlagValidators("x", JammedFlagValidator, ChoiceValidator("x")))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b,"))
	assert.Nil(t, splitList(""))
}

// withStore runs fn inside a command carrying the store flags.
func withStore(t *testing.T, fn func(*cli.Command) error, args ...string) error {
	t.Helper()
	cmd := &cli.Command{
		Name:  "t",
		Flags: NewStoreFlags("t", ""),
		Action: func(_ context.Context, c *cli.Command) error {
			return fn(c)
		},
	}
	return cmd.Run(context.Background(), append([]string{"t"}, args...))
}

func TestNewStore(t *testing.T) {
	isolate(t)
	cases := []struct {
		args []string
		want cache.Store
	}{
		{nil, &cache.MemoryStore{}},
		{[]string{"--store", "lru", "--cache-size", "2"}, &cache.LRUStore{}},
		{[]string{"--store", "disk", "--cache-dir", t.TempDir()}, &cache.DiskStore{}},
		{[]string{"--store", "s3", "--s3-bucket", "assets", "--s3-region", "us-east-1"}, &cache.S3Store{}},
	}
	for _, tc := range cases {
		err := withStore(t, func(c *cli.Command) error {
			s, err := NewStore(c)
			require.NoError(t, err)
			assert.IsType(t, tc.want, s)
			return nil
		}, tc.args...)
		require.NoError(t, err)
	}

	err := withStore(t, func(c *cli.Command) error {
		_, err := NewStore(c)
		return err
	}, "--store", "s3")
	assert.ErrorContains(t, err, "--s3-bucket")

	assert.Error(t, withStore(t, func(*cli.Command) error { return nil }, "--store", "redis"))
}

func TestCacheEntries(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, g := range []string{"old", "new"} {
		require.NoError(t, store.Save(ctx, &cache.Entry{
			Key:       cache.Key{Group: g, Type: resource.Style, Minimize: true},
			Content:   []byte("a{}"),
			CreatedAt: now.Add(-time.Duration(2-i) * 24 * time.Hour),
		}))
	}

	rows, err := listEntries(ctx, store)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 3, rows[0].Size)

	removed, err := purgeEntries(ctx, store, 36*time.Hour, now)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "old", removed[0].Group)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "new", keys[0].Group)

	removed, err = purgeEntries(ctx, store, 0, now)
	require.NoError(t, err)
	assert.Len(t, removed, 1)
	keys, err = store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
