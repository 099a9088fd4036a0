// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package cache

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/assetctl/internal/cacheutil"
	"github.com/staranto/assetctl/internal/resource"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) GetObject(_ context.Context, in *s3v2.GetObjectInput, _ ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3v2.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3v2.PutObjectInput, _ ...func(*s3v2.Options)) (*s3v2.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = b
	return &s3v2.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3v2.DeleteObjectInput, _ ...func(*s3v2.Options)) (*s3v2.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3v2.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3v2.ListObjectsV2Input, _ ...func(*s3v2.Options)) (*s3v2.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := *in.Bucket + "/" + awsv2.ToString(in.Prefix)
	var keys []string
	for k := range f.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k[len(*in.Bucket)+1:])
		}
	}
	sort.Strings(keys)
	out := &s3v2.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: awsv2.String(k)})
	}
	return out, nil
}

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	lru, err := NewLRUStore(16)
	require.NoError(t, err)
	disk, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"lru":    lru,
		"disk":   disk,
		"s3":     &S3Store{Client: newFakeS3(), Bucket: "cache", Prefix: "assetctl/"},
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	css := Key{Group: "all", Type: resource.Style, Minimize: true}
	js := Key{Group: "all", Type: resource.Script}

	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Load(ctx, css)
			require.NoError(t, err)
			assert.False(t, ok)

			e := &Entry{Key: css, Content: []byte("a{}"), Inputs: []Input{{URI: "/a.css", Type: resource.Style, Token: "t1"}}, BuildID: "b1"}
			require.NoError(t, s.Save(ctx, e))
			require.NoError(t, s.Save(ctx, &Entry{Key: js, Content: []byte("var a")}))

			got, ok, err := s.Load(ctx, css)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "a{}", string(got.Content))
			assert.Equal(t, "t1", got.Inputs[0].Token)
			assert.Equal(t, "b1", got.BuildID)

			keys, err := s.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []Key{css, js}, keys)

			require.NoError(t, s.Save(ctx, &Entry{Key: css, Content: []byte("b{}"), BuildID: "b2"}))
			got, _, err = s.Load(ctx, css)
			require.NoError(t, err)
			assert.Equal(t, "b2", got.BuildID, "save replaces the whole entry")
			assert.Empty(t, got.Inputs)

			require.NoError(t, s.Delete(ctx, css))
			require.NoError(t, s.Delete(ctx, css))
			_, ok, err = s.Load(ctx, css)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Purge(ctx))
			keys, err = s.Keys(ctx)
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestLRUStore_Evicts(t *testing.T) {
	ctx := context.Background()
	s, err := NewLRUStore(2)
	require.NoError(t, err)
	for _, g := range []string{"a", "b", "c"} {
		require.NoError(t, s.Save(ctx, &Entry{Key: Key{Group: g, Type: resource.Style}}))
	}
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Key{{Group: "b", Type: resource.Style}, {Group: "c", Type: resource.Style}}, keys)

	_, err = NewLRUStore(0)
	assert.Error(t, err)
}

func TestLRUStore_PeekKeepsRecency(t *testing.T) {
	ctx := context.Background()
	s, err := NewLRUStore(2)
	require.NoError(t, err)
	a := Key{Group: "a", Type: resource.Style}
	b := Key{Group: "b", Type: resource.Style}
	c := Key{Group: "c", Type: resource.Style}

	require.NoError(t, s.Save(ctx, &Entry{Key: a}))
	require.NoError(t, s.Save(ctx, &Entry{Key: b}))
	_, ok, err := s.Load(ctx, a)
	require.NoError(t, err)
	require.True(t, ok)

	// Listing peeks at b; it must stay the least recently used.
	ents, err := NewEngine(s, nil).Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, ents, 2)
	_, ok, err = s.Peek(ctx, b)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Save(ctx, &Entry{Key: c}))
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Key{a, c}, keys)
}

func TestDiskStore_PurgeKeepsForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	precious := filepath.Join(dir, "precious.txt")
	require.NoError(t, os.WriteFile(precious, []byte("keep me"), 0o600))

	s, err := NewDiskStore(dir)
	require.NoError(t, err)
	k := Key{Group: "all", Type: resource.Style}
	require.NoError(t, s.Save(ctx, &Entry{Key: k, Content: []byte("a{}")}))

	require.NoError(t, s.Purge(ctx))
	_, ok, err := s.Load(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)

	b, err := os.ReadFile(precious)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(b))
}

func TestDiskStore_SurvivesRestartAndCorruption(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	k := Key{Group: "all", Type: resource.Script}

	s1, err := NewDiskStore(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Save(ctx, &Entry{Key: k, Content: []byte("x")}))

	s2, err := NewDiskStore(dir)
	require.NoError(t, err)
	got, ok, err := s2.Load(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x", string(got.Content))

	p := filepath.Join(dir, "entries", cacheutil.EncodeKey(k.String()))
	require.NoError(t, os.WriteFile(p, []byte("{not json"), 0o600))
	_, ok, err = s2.Load(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok, "corrupt records read as misses")

	t.Setenv("ASSETCTL_CACHE_DIR", t.TempDir())
	s3, err := NewDiskStore("")
	require.NoError(t, err)
	assert.Equal(t, os.Getenv("ASSETCTL_CACHE_DIR"), s3.Dir)
}
