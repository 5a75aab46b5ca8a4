package storage

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"
)

// StorageType selects provider quirks of an S3 API endpoint.
type StorageType string

const (
	StorageTypeR2           StorageType = "r2"
	StorageTypeS3           StorageType = "s3"
	StorageTypeS3Compatible StorageType = "s3compatible" // MinIO, Ceph and the like
)

// S3Config holds connection settings for one bucket.
type S3Config struct {
	Type      StorageType
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
	PublicURL string // CDN or r2.dev prefix; empty uses the endpoint
}

// S3Bucket stores archived pages in one bucket of an S3 API endpoint.
type S3Bucket struct {
	client  *s3.Client
	cfg     S3Config
	baseURL string // scheme://host, no trailing slash
}

// NewS3Bucket builds a path-style client with static credentials.
func NewS3Bucket(ctx context.Context, cfg *S3Config) (*S3Bucket, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	c := *cfg
	if c.Region == "" {
		c.Region = defaultRegion(c.Type)
	}
	c.PublicURL = strings.TrimSuffix(c.PublicURL, "/")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(c.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	base := (&url.URL{Scheme: scheme(c.UseSSL), Host: normalizeEndpoint(c.Endpoint)}).String()
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(base)
		o.UsePathStyle = true
	})
	return &S3Bucket{client: client, cfg: c, baseURL: base}, nil
}

func defaultRegion(t StorageType) string {
	if t == StorageTypeR2 {
		return "auto"
	}
	return "us-east-1"
}

func scheme(useSSL bool) string {
	if useSSL {
		return "https"
	}
	return "http"
}

// normalizeEndpoint reduces an endpoint to host[:port].
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	host, _, _ := strings.Cut(endpoint, "/")
	return host
}

// EnsureBucket creates the bucket unless it exists. R2 buckets can only be
// created from the dashboard.
func (b *S3Bucket) EnsureBucket(ctx context.Context) error {
	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.cfg.Bucket)}); err == nil {
		return nil
	}
	if b.cfg.Type == StorageTypeR2 {
		return errors.Newf("bucket %s does not exist, create it in the R2 dashboard", b.cfg.Bucket)
	}
	if _, err := b.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(b.cfg.Bucket)}); err != nil {
		return errors.Wrapf(err, "create bucket %s", b.cfg.Bucket)
	}
	return nil
}

func (b *S3Bucket) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	return errors.Wrapf(err, "put %s", key)
}

func (b *S3Bucket) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.Wrapf(ErrObjectNotFound, "get %s", key)
		}
		return nil, errors.Wrapf(err, "get %s", key)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	return body, errors.Wrapf(err, "read %s", key)
}

func (b *S3Bucket) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, errors.Wrapf(err, "head %s", key)
	}
}

// URL prefers the public prefix and falls back to the path-style address.
func (b *S3Bucket) URL(key string) string {
	if b.cfg.PublicURL != "" {
		return b.cfg.PublicURL + "/" + key
	}
	return b.baseURL + "/" + b.cfg.Bucket + "/" + key
}

// isNotFound recognises misses. Some S3-compatible services answer HEAD
// with a bare 404 instead of a typed error.
func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "StatusCode: 404")
}
