// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package fingerprint computes change-detection tokens for resources. Two
// tokens are compared for equality only, so any stable function of the
// content (or its metadata) will do.
package fingerprint

import (
	"context"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
	"golang.org/x/crypto/blake2b"

	"github.com/staranto/assetctl/internal/resource"
)

var ErrUnknownAlgorithm = errors.New("unknown fingerprint algorithm")

// Provider returns a token that changes whenever the resource changes.
type Provider interface {
	Fingerprint(ctx context.Context, r resource.Resource) (string, error)
}

// FingerprintError wraps a failure to fingerprint a resource.
type FingerprintError struct {
	Resource resource.Resource
	Err      error
}

func (e *FingerprintError) Error() string {
	return fmt.Sprintf("failed to fingerprint %s: %v", e.Resource, e.Err)
}

func (e *FingerprintError) Unwrap() error { return e.Err }

const (
	SHA256  = "sha256"
	SHA512  = "sha512"
	BLAKE2B = "blake2b"
	ModTime = "modtime"
)

// Algorithms lists the names accepted by New.
var Algorithms = []string{SHA256, SHA512, BLAKE2B, ModTime}

// New returns the provider named algorithm reading through loc. ModTime
// requires loc to implement resource.ModTimer.
func New(algorithm string, loc resource.Locator) (Provider, error) {
	switch strings.ToLower(algorithm) {
	case "", SHA256:
		return &Digest{Locator: loc, Algorithm: digest.SHA256}, nil
	case SHA512:
		return &Digest{Locator: loc, Algorithm: digest.SHA512}, nil
	case BLAKE2B:
		return &Blake2b{Locator: loc}, nil
	case ModTime:
		mt, ok := loc.(resource.ModTimer)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not supported by this locator", ErrUnknownAlgorithm, algorithm)
		}
		return &ModTimeProvider{Locator: mt}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, algorithm)
	}
}

// Digest hashes the content with an OCI digest algorithm and returns the
// "algorithm:hex" form.
type Digest struct {
	Locator   resource.Locator
	Algorithm digest.Algorithm
}

func (d *Digest) Fingerprint(ctx context.Context, r resource.Resource) (string, error) {
	rc, err := d.Locator.Open(ctx, r.URI)
	if err != nil {
		return "", &FingerprintError{Resource: r, Err: err}
	}
	defer rc.Close()

	dgst, err := d.Algorithm.FromReader(rc)
	if err != nil {
		return "", &FingerprintError{Resource: r, Err: err}
	}
	return dgst.String(), nil
}

// Blake2b hashes the content with BLAKE2b-256.
type Blake2b struct {
	Locator resource.Locator
}

func (b *Blake2b) Fingerprint(ctx context.Context, r resource.Resource) (string, error) {
	rc, err := b.Locator.Open(ctx, r.URI)
	if err != nil {
		return "", &FingerprintError{Resource: r, Err: err}
	}
	defer rc.Close()

	h, _ := blake2b.New256(nil)
	if _, err := io.Copy(h, rc); err != nil {
		return "", &FingerprintError{Resource: r, Err: err}
	}
	return BLAKE2B + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

// ModTimeProvider uses the last modification time. It never reads content,
// which makes it cheap for large trees but blind to same-second rewrites on
// coarse file systems.
type ModTimeProvider struct {
	Locator resource.ModTimer
}

func (m *ModTimeProvider) Fingerprint(ctx context.Context, r resource.Resource) (string, error) {
	t, err := m.Locator.ModTime(ctx, r.URI)
	if err != nil {
		return "", &FingerprintError{Resource: r, Err: err}
	}
	return t.UTC().Format(time.RFC3339Nano), nil
}
