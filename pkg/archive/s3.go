// Package archive uploads finished run summaries to an S3-compatible bucket.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/yumyai/genevalidator/logger"
	"github.com/yumyai/genevalidator/pkg/pipeline"
)

var ErrNoBucket = errors.New("s3 bucket required")

// Config holds the bucket coordinates. Credentials are optional and fall back
// to the default AWS chain.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, e.g. MinIO
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// putter is the one S3 call the archiver needs.
type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Archiver struct {
	client   putter
	bucket   string
	prefix   string
	endpoint string
}

func New(ctx context.Context, cfg Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newArchiver(client, cfg), nil
}

func newArchiver(client putter, cfg Config) *S3Archiver {
	return &S3Archiver{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
	}
}

// Key is the object key of a run summary.
func (a *S3Archiver) Key(runID string) string {
	return path.Join(a.prefix, "runs", runID, "summary.json")
}

// Upload stores the summary as JSON and returns the object's URL.
func (a *S3Archiver) Upload(ctx context.Context, summary pipeline.Summary) (string, error) {
	if summary.RunID == "" {
		return "", errors.New("summary has no run id")
	}
	body, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}

	key := a.Key(summary.RunID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{"run-id": summary.RunID},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	logger.Info("Summary archived", zap.String("bucket", a.bucket), zap.String("key", key))
	return a.objectURL(key), nil
}

func (a *S3Archiver) objectURL(key string) string {
	if a.endpoint != "" {
		if u, err := url.Parse(a.endpoint); err == nil {
			return u.JoinPath(a.bucket, key).String()
		}
	}
	return "s3://" + a.bucket + "/" + key
}
