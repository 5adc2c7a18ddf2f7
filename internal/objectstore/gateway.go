// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package objectstore wraps an S3-compatible store behind the presign,
// head, delete and download operations the media presign/commit protocol
// and the pipeline stages need. It is implemented
// against the S3 API via aws-sdk-go-v2's presign client, matching the
// shape of the original source's boto3 generate_presigned_url calls but
// idiomatic Go (explicit context.Context, typed presign inputs).
package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ManuGH/sessionforge/internal/log"
)

// Config holds the S3-compatible endpoint configuration.
type Config struct {
	Endpoint  string // empty for AWS itself; set for R2/MinIO-compatible stores
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	PresignTTLPut time.Duration // default 10 minutes
	PresignTTLGet time.Duration // default 1 hour
}

// Gateway is the object-store operations surface the media registry and
// pipeline stages call.
type Gateway struct {
	bucket    string
	client    *s3.Client
	presign   *s3.PresignClient
	downloader *manager.Downloader
	ttlPut    time.Duration
	ttlGet    time.Duration
}

// New constructs a Gateway from Config, loading AWS-shaped credentials
// explicitly rather than from ambient environment discovery, so the same
// client code serves both AWS and R2/MinIO-compatible endpoints.
func New(ctx context.Context, cfg Config) (*Gateway, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	ttlPut := cfg.PresignTTLPut
	if ttlPut == 0 {
		ttlPut = 10 * time.Minute
	}
	ttlGet := cfg.PresignTTLGet
	if ttlGet == 0 {
		ttlGet = time.Hour
	}

	return &Gateway{
		bucket:     cfg.Bucket,
		client:     client,
		presign:    s3.NewPresignClient(client),
		downloader: manager.NewDownloader(client),
		ttlPut:     ttlPut,
		ttlGet:     ttlGet,
	}, nil
}

// PresignPut returns a time-limited URL the client PUTs the object body to.
func (g *Gateway) PresignPut(ctx context.Context, key, contentType string) (string, time.Duration, error) {
	req, err := g.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(g.ttlPut))
	if err != nil {
		return "", 0, fmt.Errorf("objectstore: presign put: %w", err)
	}
	return req.URL, g.ttlPut, nil
}

// PresignGet returns a time-limited URL for reading an object, used when
// handing a vision provider a URL instead of inlined bytes.
func (g *Gateway) PresignGet(ctx context.Context, key string) (string, error) {
	req, err := g.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(g.ttlGet))
	if err != nil {
		return "", fmt.Errorf("objectstore: presign get: %w", err)
	}
	return req.URL, nil
}

// Head reports whether key exists, returning its size if so.
func (g *Gateway) Head(ctx context.Context, key string) (exists bool, size int64, err error) {
	out, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(g.bucket), Key: aws.String(key)})
	if err != nil {
		return false, 0, nil //nolint:nilerr // absence is a valid, non-error outcome
	}
	return true, aws.ToInt64(out.ContentLength), nil
}

// Delete removes key; deleting an absent key succeeds (idempotent).
func (g *Gateway) Delete(ctx context.Context, key string) error {
	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(g.bucket), Key: aws.String(key)})
	if err != nil {
		return fmt.Errorf("objectstore: delete %q: %w", key, err)
	}
	return nil
}

// DeleteMany removes many keys, batching at the S3 DeleteObjects limit of
// 1000 keys per call.
func (g *Gateway) DeleteMany(ctx context.Context, keys []string) error {
	const batchSize = 1000
	for start := 0; start < len(keys); start += batchSize {
		end := start + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := g.deleteBatch(ctx, keys[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// DownloadTo streams key into a local scratch file at path, used by Stage A
// before WAV normalization and transcription.
func (g *Gateway) DownloadTo(ctx context.Context, key, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("objectstore: create scratch file: %w", err)
	}
	defer f.Close()

	_, err = g.downloader.Download(ctx, f, &s3.GetObjectInput{Bucket: aws.String(g.bucket), Key: aws.String(key)})
	if err != nil {
		return fmt.Errorf("objectstore: download %q: %w", key, err)
	}
	return nil
}

// GetReader opens a streaming reader for key, used when a provider call
// needs inlined bytes rather than a local file (base64 fallback path).
func (g *Gateway) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(g.bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("objectstore: get %q: %w", key, err)
	}
	return out.Body, nil
}

func (g *Gateway) deleteBatch(ctx context.Context, keys []string) error {
	ids := make([]types.ObjectIdentifier, len(keys))
	for i, k := range keys {
		ids[i] = types.ObjectIdentifier{Key: aws.String(k)}
	}
	_, err := g.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(g.bucket),
		Delete: &types.Delete{Objects: ids},
	})
	if err != nil {
		_lg := log.WithComponent("objectstore")
		_lg.Error().Err(err).Int("count", len(keys)).Msg("batch delete failed")
		return fmt.Errorf("objectstore: delete_many: %w", err)
	}
	return nil
}
