package fetcher

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options configures the S3 client. Credentials always come from the
// default AWS chain (env, shared config, instance role).
type S3Options struct {
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// NewS3Client builds an S3 client from the default AWS configuration.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "s3: load aws config")
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	}), nil
}

// S3Source lists objects under a bucket prefix and selects those whose name
// matches the pattern.
type S3Source struct {
	client  S3API
	bucket  string
	prefix  string
	pattern Pattern
}

// NewS3Source creates a source for s3://bucket/prefix.
func NewS3Source(client S3API, u *url.URL, pattern Pattern) *S3Source {
	return &S3Source{
		client:  client,
		bucket:  u.Host,
		prefix:  strings.TrimPrefix(u.Path, "/"),
		pattern: pattern,
	}
}

// Name implements Source.
func (s *S3Source) Name() string {
	return "s3://" + s.bucket + "/" + s.prefix
}

// List implements Source. It follows continuation tokens until the listing
// is exhausted.
func (s *S3Source) List(ctx context.Context) ([]string, error) {
	zap.L().Info("s3: listing objects",
		zap.String("bucket", s.bucket),
		zap.String("prefix", s.prefix),
	)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "s3: list objects")
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if s.pattern.MatchName(key) {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

// Open implements Source.
func (s *S3Source) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	zap.L().Debug("s3: downloading object", zap.String("key", key))

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "s3: get object %s", key)
	}
	return out.Body, nil
}
