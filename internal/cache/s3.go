// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/apex/log"
	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	s3v2 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/staranto/assetctl/internal/cacheutil"
	"github.com/staranto/assetctl/internal/resource"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, in *s3v2.GetObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3v2.PutObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3v2.DeleteObjectInput, optFns ...func(*s3v2.Options)) (*s3v2.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3v2.ListObjectsV2Input, optFns ...func(*s3v2.Options)) (*s3v2.ListObjectsV2Output, error)
}

// S3Store keeps one JSON object per key under Prefix in Bucket, so several
// build hosts can share outputs.
type S3Store struct {
	Client S3API
	Bucket string
	Prefix string
}

func (s *S3Store) objectKey(key Key) string {
	return s.Prefix + cacheutil.EncodeKey(key.String()) + ".json"
}

func (s *S3Store) Load(ctx context.Context, key Key) (*Entry, bool, error) {
	return s.load(ctx, s.objectKey(key))
}

func (s *S3Store) Peek(ctx context.Context, key Key) (*Entry, bool, error) {
	return s.load(ctx, s.objectKey(key))
}

func (s *S3Store) load(ctx context.Context, objectKey string) (*Entry, bool, error) {
	out, err := s.Client.GetObject(ctx, &s3v2.GetObjectInput{
		Bucket: awsv2.String(s.Bucket),
		Key:    awsv2.String(objectKey),
	})
	if err != nil {
		if resource.IsS3NotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to load s3://%s/%s: %w", s.Bucket, objectKey, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read s3://%s/%s: %w", s.Bucket, objectKey, err)
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		log.WithError(err).WithField("object", objectKey).Warn("ignoring corrupt cache object")
		return nil, false, nil
	}
	return &e, true, nil
}

func (s *S3Store) Save(ctx context.Context, e *Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", e.Key, err)
	}
	_, err = s.Client.PutObject(ctx, &s3v2.PutObjectInput{
		Bucket:      awsv2.String(s.Bucket),
		Key:         awsv2.String(s.objectKey(e.Key)),
		Body:        bytes.NewReader(b),
		ContentType: awsv2.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to save cache entry %s: %w", e.Key, err)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, key Key) error {
	return s.deleteObject(ctx, s.objectKey(key))
}

func (s *S3Store) deleteObject(ctx context.Context, objectKey string) error {
	_, err := s.Client.DeleteObject(ctx, &s3v2.DeleteObjectInput{
		Bucket: awsv2.String(s.Bucket),
		Key:    awsv2.String(objectKey),
	})
	if err != nil && !resource.IsS3NotFound(err) {
		return fmt.Errorf("failed to delete s3://%s/%s: %w", s.Bucket, objectKey, err)
	}
	return nil
}

func (s *S3Store) list(ctx context.Context) ([]string, error) {
	var out []string
	p := s3v2.NewListObjectsV2Paginator(s.Client, &s3v2.ListObjectsV2Input{
		Bucket: awsv2.String(s.Bucket),
		Prefix: awsv2.String(s.Prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", s.Bucket, s.Prefix, err)
		}
		for _, obj := range page.Contents {
			k := awsv2.ToString(obj.Key)
			if strings.HasSuffix(k, ".json") {
				out = append(out, k)
			}
		}
	}
	return out, nil
}

func (s *S3Store) Purge(ctx context.Context) error {
	objects, err := s.list(ctx)
	if err != nil {
		return err
	}
	for _, k := range objects {
		if err := s.deleteObject(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *S3Store) Keys(ctx context.Context) ([]Key, error) {
	objects, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]Key, 0, len(objects))
	for _, k := range objects {
		e, ok, err := s.load(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, e.Key)
		}
	}
	return sortKeys(keys), nil
}
