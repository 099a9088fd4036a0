// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/assetctl/internal/aws"
	"github.com/staranto/assetctl/internal/cache"
	"github.com/staranto/assetctl/internal/cacheutil"
	"github.com/staranto/assetctl/internal/fingerprint"
	"github.com/staranto/assetctl/internal/manager"
	"github.com/staranto/assetctl/internal/model"
	"github.com/staranto/assetctl/internal/processor"
	"github.com/staranto/assetctl/internal/processor/builtin"
	"github.com/staranto/assetctl/internal/resource"
)

// Cache stores selectable with --store.
const (
	StoreMemory = "memory"
	StoreLRU    = "lru"
	StoreDisk   = "disk"
	StoreS3     = "s3"
)

var Stores = []string{StoreMemory, StoreLRU, StoreDisk, StoreS3}

// newS3Client is replaced in tests.
var newS3Client = func(cmd *cli.Command) interface {
	resource.S3API
	cache.S3API
} {
	var opts []aws.Option
	if p := cmd.String("s3-profile"); p != "" {
		opts = append(opts, aws.WithProfile(p))
	}
	if r := cmd.String("s3-region"); r != "" {
		opts = append(opts, aws.WithRegion(r))
	}
	if e := cmd.String("s3-endpoint"); e != "" {
		opts = append(opts, aws.WithEndpoint(e))
	}
	return aws.NewLazyS3(opts...)
}

// NewLocator resolves plain URIs beneath contextDir and dispatches http(s)
// and s3 URIs to their own locators.
func NewLocator(cmd *cli.Command, contextDir string) resource.Locator {
	h := resource.NewHTTPLocator(cmd.Int("http-retries"), cmd.Duration("http-timeout"))
	return resource.SchemeLocator{
		Default: resource.FileLocator{Root: contextDir},
		Schemes: map[string]resource.Locator{
			"http":  h,
			"https": h,
			"s3":    resource.S3Locator{Client: newS3Client(cmd)},
		},
	}
}

// NewStore builds the cache store selected by --store.
func NewStore(cmd *cli.Command) (cache.Store, error) {
	switch name := cmd.String("store"); name {
	case StoreMemory, "":
		return cache.NewMemoryStore(), nil
	case StoreLRU:
		return cache.NewLRUStore(cmd.Int("cache-size"))
	case StoreDisk:
		if !cacheutil.Enabled() {
			log.Warn("disk cache disabled by ASSETCTL_CACHE, using memory store")
			return cache.NewMemoryStore(), nil
		}
		return cache.NewDiskStore(cmd.String("cache-dir"))
	case StoreS3:
		bucket := cmd.String("s3-bucket")
		if bucket == "" {
			return nil, errors.New("the s3 store needs --s3-bucket or cache.s3.bucket")
		}
		return &cache.S3Store{
			Client: newS3Client(cmd),
			Bucket: bucket,
			Prefix: cmd.String("s3-prefix"),
		}, nil
	default:
		return nil, fmt.Errorf("unknown cache store %q", name)
	}
}

// NewProcessors builds the --pre and --post chains from the built-in
// registry.
func NewProcessors(cmd *cli.Command, env processor.Env) (pre, post []processor.Processor, err error) {
	reg := builtin.NewRegistry()
	if pre, err = reg.BuildAll(splitList(cmd.String("pre")), env); err != nil {
		return nil, nil, fmt.Errorf("invalid --pre: %w", err)
	}
	if post, err = reg.BuildAll(splitList(cmd.String("post")), env); err != nil {
		return nil, nil, fmt.Errorf("invalid --post: %w", err)
	}
	return pre, post, nil
}

// ModelPath resolves --model against contextDir.
func ModelPath(cmd *cli.Command, contextDir string) string {
	p := cmd.String("model")
	if p == "" {
		p = DefaultModel
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(contextDir, p)
}

// environ exposes the process environment to HCL models as env.NAME.
func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// NewManager wires a manager from the engine and store flags. contextDir is
// the root for file resources and the model.
func NewManager(ctx context.Context, cmd *cli.Command, contextDir string, mon ...func(*manager.Config)) (*manager.Manager, error) {
	path := ModelPath(cmd, contextDir)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file not found: %s", path)
	}
	models := model.NewFileProvider(path, model.Vars{Context: contextDir, Env: environ()})
	if _, err := models.Snapshot(ctx); err != nil {
		return nil, err
	}

	loc := NewLocator(cmd, contextDir)
	pre, post, err := NewProcessors(cmd, processor.Env{Locator: loc, Context: contextDir})
	if err != nil {
		return nil, err
	}

	fp, err := fingerprint.New(cmd.String("fingerprint"), loc)
	if err != nil {
		return nil, err
	}

	store, err := NewStore(cmd)
	if err != nil {
		return nil, err
	}

	cfg := manager.Config{
		Models:         models,
		Locator:        loc,
		Fingerprints:   fp,
		Store:          store,
		Pre:            pre,
		Post:           post,
		Parallelism:    cmd.Int("parallelism"),
		SkipValidation: !cmd.Bool("validate"),
	}
	for _, f := range mon {
		f(&cfg)
	}

	log.WithFields(log.Fields{
		"model":       path,
		"store":       cmd.String("store"),
		"fingerprint": cmd.String("fingerprint"),
		"pre":         len(pre),
		"post":        len(post),
	}).Debug("manager configured")
	return manager.New(cfg)
}
