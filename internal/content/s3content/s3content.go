// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of bgvtrace.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package s3content implements content.CachedContent over a dump staged in
// S3-compatible object storage: HeadObject for Size, ranged GetObject
// calls for OpenRange, via the AWS SDK v2.
package s3content

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fau-hpc/bgvtrace/internal/content"
)

// Config names the object holding the dump and optional static
// credentials; when AccessKeyID is empty the default AWS credential chain
// is used instead.
type Config struct {
	Bucket          string `json:"bucket"`
	Key             string `json:"key"`
	Region          string `json:"region"`
	AccessKeyID     string `json:"accessKeyId,omitempty"`
	SecretAccessKey string `json:"secretAccessKey,omitempty"`
}

// Backend is a content.CachedContent backed by range-GETs against S3.
type Backend struct {
	client *s3.Client
	cfg    Config
}

var _ content.CachedContent = (*Backend)(nil)

// New builds a Backend from cfg, resolving AWS credentials either from
// cfg's static keys or the default provider chain.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3content: load aws config: %w", err)
	}
	return &Backend{client: s3.NewFromConfig(awsCfg), cfg: cfg}, nil
}

func (b *Backend) Size(ctx context.Context) (int64, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.cfg.Key),
	})
	if err != nil {
		return 0, fmt.Errorf("s3content: head %s/%s: %w", b.cfg.Bucket, b.cfg.Key, err)
	}
	if out.ContentLength == nil {
		return 0, fmt.Errorf("s3content: %s/%s: no content length in response", b.cfg.Bucket, b.cfg.Key)
	}
	return *out.ContentLength, nil
}

func (b *Backend) OpenRange(ctx context.Context, start, end int64) (io.ReadSeeker, error) {
	if end <= start {
		return nil, fmt.Errorf("s3content: empty or inverted range [%d,%d)", start, end)
	}
	// A range GET past the object's current size is not an S3 error: the
	// response is 206 with the range clamped. For a dump still being
	// uploaded that would silently hand the caller a truncated record, so
	// check the size first the way filecontent does.
	size, err := b.Size(ctx)
	if err != nil {
		return nil, err
	}
	if end > size {
		return nil, fmt.Errorf("s3content: range [%d,%d) exceeds %d-byte object: %w", start, end, size, content.ErrRangeUnavailable)
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.cfg.Key),
		Range:  aws.String(rangeHeader(start, end)),
	})
	if err != nil {
		return nil, fmt.Errorf("s3content: range get %s/%s [%d,%d): %w", b.cfg.Bucket, b.cfg.Key, start, end, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3content: read range body: %w", err)
	}
	// The object may still have shrunk or been replaced between the size
	// check and the GET; a clamped 206 shows up here as a short body.
	if int64(len(data)) < end-start {
		return nil, fmt.Errorf("s3content: range [%d,%d) returned %d bytes: %w", start, end, len(data), content.ErrRangeUnavailable)
	}
	return bytes.NewReader(data), nil
}

func (b *Backend) Close() error {
	return nil
}

// rangeHeader formats the HTTP Range header value for [start, end), S3's
// range-GET syntax being inclusive on both ends.
func rangeHeader(start, end int64) string {
	return fmt.Sprintf("bytes=%d-%d", start, end-1)
}
