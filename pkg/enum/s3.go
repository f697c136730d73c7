package enum

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/praetorian-inc/sigscan/pkg/types"
)

// S3API is the subset of the S3 client used for enumeration.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures the S3 client. Empty fields fall back to the default
// AWS credential chain and region.
type S3Config struct {
	Region          string
	Endpoint        string // custom endpoint (path-style addressing)
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	RoleARN         string // assumed through STS on top of the base credentials
}

// NewS3Client builds an S3 client from cfg and the environment.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.RoleARN != "" {
		awsCfg.Credentials = aws.NewCredentialsCache(
			stscreds.NewAssumeRoleProvider(sts.NewFromConfig(awsCfg), cfg.RoleARN, func(o *stscreds.AssumeRoleOptions) {
				o.RoleSessionName = "sigscan"
			}))
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// ParseS3URL splits s3://bucket/key. An empty key or one ending in "/" is a
// prefix.
func ParseS3URL(raw string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 URL: %s", raw)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in %s", raw)
	}
	return bucket, key, nil
}

// S3Enumerator yields one object, or every object under a prefix.
type S3Enumerator struct {
	client S3API
	bucket string
	key    string
	config Config
}

// NewS3Enumerator creates an enumerator for s3://bucket/key.
func NewS3Enumerator(client S3API, bucket, key string, config Config) *S3Enumerator {
	return &S3Enumerator{client: client, bucket: bucket, key: key, config: config}
}

// Enumerate implements Enumerator.
func (e *S3Enumerator) Enumerate(ctx context.Context, callback Callback) error {
	if e.key != "" && !strings.HasSuffix(e.key, "/") {
		return e.fetch(ctx, e.key, callback)
	}

	input := &s3.ListObjectsV2Input{Bucket: aws.String(e.bucket)}
	if e.key != "" {
		input.Prefix = aws.String(e.key)
	}

	p := s3.NewListObjectsV2Paginator(e.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list s3://%s/%s: %w", e.bucket, e.key, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			if e.config.MaxFileSize > 0 && aws.ToInt64(obj.Size) > e.config.MaxFileSize {
				continue
			}
			if err := e.fetch(ctx, key, callback); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *S3Enumerator) fetch(ctx context.Context, key string, callback Callback) error {
	url := fmt.Sprintf("s3://%s/%s", e.bucket, key)

	out, err := e.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", url, err)
	}
	defer out.Body.Close()

	content, err := readLimited(out.Body, e.config.MaxFileSize)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", url, err)
	}
	if content == nil {
		return nil
	}

	prov := types.ExtendedProvenance{Payload: map[string]interface{}{
		"url":  url,
		"size": len(content),
	}}
	return callback(content, types.ComputeImageID(content), prov)
}

// readLimited reads r fully; it returns nil content when r holds more than
// maxSize bytes (maxSize > 0).
func readLimited(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, nil
	}
	return data, nil
}
