// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package aws

import (
	"context"
	"sync"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"
)

type options struct {
	profile  string
	region   string
	endpoint string
	retryer  func() awsv2.Retryer
}

// Option customizes how AWS config is loaded. With no options the shell
// environment and shared config chain apply (AWS_PROFILE, ~/.aws/config,
// IMDS, ...).
type Option func(*options)

// WithProfile sets the shared config profile.
func WithProfile(profile string) Option {
	return func(o *options) { o.profile = profile }
}

// WithRegion overrides the region.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithEndpoint points S3 clients at a compatible service such as MinIO.
// Path style addressing is enabled along with it.
func WithEndpoint(url string) Option {
	return func(o *options) { o.endpoint = url }
}

// WithRetryer injects a custom retryer.
func WithRetryer(newRetryer func() awsv2.Retryer) Option {
	return func(o *options) { o.retryer = newRetryer }
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// LoadAWSConfig loads AWS SDK v2 config.
func LoadAWSConfig(ctx context.Context, opts ...Option) (awsv2.Config, error) {
	return loadConfig(ctx, collect(opts))
}

func loadConfig(ctx context.Context, o options) (awsv2.Config, error) {
	var loadOpts []func(*config.LoadOptions) error
	if o.profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(o.profile))
	}
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}
	if o.retryer != nil {
		loadOpts = append(loadOpts, config.WithRetryer(o.retryer))
	}
	return config.LoadDefaultConfig(ctx, loadOpts...)
}

// NewS3 constructs an S3 client from cfg.
func NewS3(cfg awsv2.Config, optFns ...func(*s3v2.Options)) *s3v2.Client {
	return s3v2.NewFromConfig(cfg, optFns...)
}

func endpointOptions(o options) []func(*s3v2.Options) {
	if o.endpoint == "" {
		return nil
	}
	return []func(*s3v2.Options){func(so *s3v2.Options) {
		so.BaseEndpoint = awsv2.String(o.endpoint)
		so.UsePathStyle = true
	}}
}

// LazyS3 is an S3 client whose configuration is loaded on first use, so
// commands that never touch S3 never read AWS configuration. It satisfies
// both resource.S3API and cache.S3API.
type LazyS3 struct {
	load func() (*s3v2.Client, error)
}

// NewLazyS3 returns a client that loads its configuration with opts on the
// first call. A load failure is returned by that and every later call.
func NewLazyS3(opts ...Option) *LazyS3 {
	o := collect(opts)
	return &LazyS3{load: sync.OnceValues(func() (*s3v2.Client, error) {
		// The first caller's context may be short lived; config loading must
		// not be tied to it.
		cfg, err := loadConfig(context.Background(), o)
		if err != nil {
			return nil, err
		}
		return NewS3(cfg, endpointOptions(o)...), nil
	})}
}

func (l *LazyS3) GetObject(ctx context.Context, in *s3v2.GetObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error) {
	c, err := l.load()
	if err != nil {
		return nil, err
	}
	return c.GetObject(ctx, in, optFns...)
}

func (l *LazyS3) HeadObject(ctx context.Context, in *s3v2.HeadObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.HeadObjectOutput, error) {
	c, err := l.load()
	if err != nil {
		return nil, err
	}
	return c.HeadObject(ctx, in, optFns...)
}

func (l *LazyS3) PutObject(ctx context.Context, in *s3v2.PutObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.PutObjectOutput, error) {
	c, err := l.load()
	if err != nil {
		return nil, err
	}
	return c.PutObject(ctx, in, optFns...)
}

func (l *LazyS3) DeleteObject(ctx context.Context, in *s3v2.DeleteObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.DeleteObjectOutput, error) {
	c, err := l.load()
	if err != nil {
		return nil, err
	}
	return c.DeleteObject(ctx, in, optFns...)
}

func (l *LazyS3) ListObjectsV2(ctx context.Context, in *s3v2.ListObjectsV2Input, optFns ...func(*s3v2.Options)) (*s3v2.ListObjectsV2Output, error) {
	c, err := l.load()
	if err != nil {
		return nil, err
	}
	return c.ListObjectsV2(ctx, in, optFns...)
}
