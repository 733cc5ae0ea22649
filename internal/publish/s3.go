// Package publish uploads final artifacts to object storage.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultLinkLifetime = 24 * time.Hour

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Options configure the S3 publisher.
type Options struct {
	Bucket    string
	Region    string
	Prefix    string
	Endpoint  string // for S3-compatible stores; empty uses AWS
	PathStyle bool
}

// S3Publisher puts the final artifact under <prefix><name> and hands back a
// presigned download link.
type S3Publisher struct {
	client   objectAPI
	presign  presignAPI
	bucket   string
	prefix   string
	lifetime time.Duration
	logger   *slog.Logger
}

func NewS3Publisher(ctx context.Context, opts Options, logger *slog.Logger) (*S3Publisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.PathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return newS3Publisher(client, s3.NewPresignClient(client), opts.Bucket, opts.Prefix, logger), nil
}

func newS3Publisher(client objectAPI, presign presignAPI, bucket, prefix string, logger *slog.Logger) *S3Publisher {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}
	return &S3Publisher{
		client:   client,
		presign:  presign,
		bucket:   bucket,
		prefix:   prefix,
		lifetime: defaultLinkLifetime,
		logger:   logger,
	}
}

// Publish uploads path and returns a URL the client can download from.
func (p *S3Publisher) Publish(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat artifact: %w", err)
	}

	key := p.prefix + filepath.Base(path)
	start := time.Now()
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("video/mp4"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object to S3: %w", err)
	}
	p.logger.Info("published artifact",
		"bucket", p.bucket,
		"key", key,
		"bytes", info.Size(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = p.lifetime
	})
	if err != nil {
		p.logger.Warn("presign failed, returning object uri", "key", key, "error", err)
		return fmt.Sprintf("s3://%s/%s", p.bucket, key), nil
	}
	return req.URL, nil
}
