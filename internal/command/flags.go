// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"os/exec"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/staranto/assetctl/internal/fingerprint"
	"github.com/staranto/assetctl/internal/output"
)

// Defaults for the processor chain when neither flags nor config name one.
const (
	DefaultModel = "wro.yaml"
	DefaultPre   = "cssurlrewriter,cssimport,semicolon"
	DefaultPost  = "cssvariables,cssmin,jsmin"
)

// Every command gets its own instances since flags keep parse state.
func newSchemaFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:        "schema",
		Usage:       "dump the report schema",
		HideDefault: true,
	}
}

func newTLDRFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:        "tldr",
		Usage:       "show tldr page",
		Hidden:      !pathHas("tldr"),
		HideDefault: true,
	}
}

// configSources chains environment variables, then the namespaced key, then
// the bare key of the config file at path.
func configSources(ns, key, path string, envs ...string) cli.ValueSourceChain {
	srcs := make([]cli.ValueSource, 0, len(envs)+2)
	for _, e := range envs {
		srcs = append(srcs, cli.EnvVar(e))
	}
	if ns != "" {
		srcs = append(srcs, yaml.YAML(ns+"."+key, altsrc.StringSourcer(path)))
	}
	srcs = append(srcs, yaml.YAML(key, altsrc.StringSourcer(path)))
	return cli.NewValueSourceChain(srcs...)
}

// NewGlobalFlags returns the report flags shared by every reporting command.
// ns is the command name and src the config file.
func NewGlobalFlags(ns, src string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "attrs",
			Aliases: []string{"a"},
			Usage:   "comma-separated list of report columns, key[:title[:transform]]",
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, AttrsValidator)
			},
		},
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output",
			Sources: configSources(ns, "color", src),
			Value:   output.ColorDefault(),
		},
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "comma-separated list of filters to apply to report rows",
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "report format (text, json, raw, yaml)",
			Sources: configSources(ns, "output", src),
			Value:   "text",
			Validator: func(value string) error {
				return FlagValidators(value, OutputValidator)
			},
		},
		&cli.StringFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "comma-separated list of columns to sort by, - for descending",
			Sources: configSources(ns, "sort", src),
		},
		&cli.BoolWithInverseFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "show titles with text output",
			Sources: configSources(ns, "titles", src),
			Value:   false,
		},
	}
}

// NewEngineFlags returns the flags that configure model, locator, processor
// chain, fingerprints and cache store.
func NewEngineFlags(ns, src string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "model",
			Usage:   "group model file (yaml, json or hcl), relative to the context dir",
			Sources: configSources(ns, "model", src, "ASSETCTL_MODEL"),
			Value:   DefaultModel,
		},
		&cli.StringFlag{
			Name:    "pre",
			Usage:   "comma-separated pre-processors applied to each resource",
			Sources: configSources(ns, "pre", src),
			Value:   DefaultPre,
		},
		&cli.StringFlag{
			Name:    "post",
			Usage:   "comma-separated post-processors applied to each group",
			Sources: configSources(ns, "post", src),
			Value:   DefaultPost,
		},
		&cli.BoolWithInverseFlag{
			Name:    "minimize",
			Aliases: []string{"m"},
			Usage:   "run minimizing processors",
			Sources: configSources(ns, "minimize", src),
			Value:   true,
		},
		&cli.BoolFlag{
			Name:    "ignore-missing",
			Usage:   "skip resources that cannot be found",
			Sources: configSources(ns, "ignore_missing", src),
		},
		&cli.BoolFlag{
			Name:    "tolerant",
			Usage:   "record processor failures and keep going",
			Sources: configSources(ns, "tolerant", src),
		},
		&cli.StringFlag{
			Name:    "fingerprint",
			Usage:   "change detection (sha256, sha512, blake2b, modtime)",
			Sources: configSources(ns, "fingerprint", src),
			Value:   fingerprint.SHA256,
			Validator: func(value string) error {
				return FlagValidators(value, ChoiceValidator(fingerprint.Algorithms...))
			},
		},
		&cli.IntFlag{
			Name:    "parallelism",
			Usage:   "resources pre-processed concurrently, 0 for one per CPU",
			Sources: configSources(ns, "parallelism", src),
			Validator: func(value int) error {
				return FlagValidators(value, NonNegativeValidator)
			},
		},
		&cli.DurationFlag{
			Name:    "http-timeout",
			Usage:   "timeout for http(s) resources",
			Sources: configSources(ns, "http.timeout", src),
			Value:   30 * time.Second,
		},
		&cli.IntFlag{
			Name:    "http-retries",
			Usage:   "retries for http(s) resources",
			Sources: configSources(ns, "http.retries", src),
			Value:   3,
			Validator: func(value int) error {
				return FlagValidators(value, NonNegativeValidator)
			},
		},
	}
}

// NewStoreFlags returns the flags selecting and configuring the cache store.
func NewStoreFlags(ns, src string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "store",
			Usage:   "cache store (memory, lru, disk, s3)",
			Sources: configSources(ns, "cache.store", src, "ASSETCTL_STORE"),
			Value:   StoreMemory,
			Validator: func(value string) error {
				return FlagValidators(value, ChoiceValidator(Stores...))
			},
		},
		&cli.IntFlag{
			Name:    "cache-size",
			Usage:   "entries kept by the lru store",
			Sources: configSources(ns, "cache.size", src),
			Value:   128,
			Validator: func(value int) error {
				return FlagValidators(value, PositiveValidator)
			},
		},
		&cli.StringFlag{
			Name:    "cache-dir",
			Usage:   "directory of the disk store",
			Sources: configSources(ns, "cache.dir", src, "ASSETCTL_CACHE_DIR"),
		},
		&cli.BoolWithInverseFlag{
			Name:    "validate",
			Usage:   "re-fingerprint inputs before serving a cached output",
			Sources: configSources(ns, "cache.validate", src),
			Value:   true,
		},
		&cli.StringFlag{
			Name:    "s3-bucket",
			Usage:   "bucket of the s3 store",
			Sources: configSources(ns, "cache.s3.bucket", src),
		},
		&cli.StringFlag{
			Name:    "s3-prefix",
			Usage:   "key prefix of the s3 store",
			Sources: configSources(ns, "cache.s3.prefix", src),
			Value:   "assetctl/",
		},
		&cli.StringFlag{
			Name:    "s3-region",
			Usage:   "region of the s3 store and s3:// resources",
			Sources: configSources(ns, "cache.s3.region", src, "AWS_REGION"),
		},
		&cli.StringFlag{
			Name:    "s3-profile",
			Usage:   "AWS shared config profile",
			Sources: configSources(ns, "cache.s3.profile", src, "AWS_PROFILE"),
		},
		&cli.StringFlag{
			Name:    "s3-endpoint",
			Usage:   "S3 compatible endpoint URL",
			Sources: configSources(ns, "cache.s3.endpoint", src, "AWS_ENDPOINT_URL_S3"),
		},
	}
}

// pathHas reports whether target is on PATH.
func pathHas(target string) bool {
	_, err := exec.LookPath(target)
	return err == nil
}
