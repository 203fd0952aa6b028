// Package s3 implements store.Store on Amazon S3 and S3-compatible services.
// Containers map to buckets and document names map to object keys.
package s3

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"

	"github.com/input-output-hk/macrosync/store"
)

const defaultRegion = "us-east-1"

// Store is an S3-backed store.Store.
type Store struct {
	api    API
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New creates a Store, loading AWS configuration from the default chain
// unless static credentials or a custom config are given.
func New(ctx context.Context, opts ...Option) (*Store, error) {
	cfg := &Config{MaxRetries: 3}
	for _, opt := range opts {
		opt(cfg)
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, store.NewError(store.BackendS3, "init", "", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.Timeout > 0 {
		httpClient := &http.Client{Timeout: cfg.Timeout}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	return NewWithAPI(s3.NewFromConfig(awsCfg, s3Opts...), WithLogger(cfg.Logger)), nil
}

// NewFromDescriptor creates a Store from a parsed connection descriptor.
func NewFromDescriptor(ctx context.Context, d *store.Descriptor, opts ...Option) (*Store, error) {
	base := []Option{
		WithRegion(d.Region),
		WithEndpoint(d.EndpointURL()),
		WithForcePathStyle(d.PathStyle),
	}
	if d.AccessKey != "" {
		base = append(base, WithStaticCredentials(d.AccessKey, d.SecretKey))
	}
	return New(ctx, append(base, opts...)...)
}

// NewWithAPI creates a Store over an existing API implementation.
// This is primarily used for testing with mocked clients.
func NewWithAPI(api API, opts ...Option) *Store {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{api: api, logger: logger}
}

func loadAWSConfig(ctx context.Context, cfg *Config) (aws.Config, error) {
	var (
		awsCfg aws.Config
		err    error
	)
	if cfg.AWSConfig != nil {
		awsCfg = *cfg.AWSConfig
	} else {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AccessKeyID != "" {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			))
		}
		awsCfg, err = config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return aws.Config{}, err
		}
	}

	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	} else if awsCfg.Region == "" {
		awsCfg.Region = defaultRegion
	}
	if cfg.MaxRetries > 0 {
		awsCfg.RetryMaxAttempts = cfg.MaxRetries
	}
	return awsCfg, nil
}

// ListNames returns every key in the bucket, following continuation tokens.
func (s *Store) ListNames(ctx context.Context, container string) ([]string, error) {
	if err := store.ValidateContainer(container); err != nil {
		return nil, store.NewError(store.BackendS3, "list", container, err)
	}

	var (
		names []string
		token *string
	)
	for {
		out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(container),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, store.NewError(store.BackendS3, "list", container, translate(err))
		}

		for _, obj := range out.Contents {
			if obj.Key != nil {
				names = append(names, *obj.Key)
			}
		}

		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}

	s.logger.Debug("listed container", "container", container, "count", len(names))
	return names, nil
}

// Get downloads an object.
func (s *Store) Get(ctx context.Context, container, name string) ([]byte, error) {
	if err := validate(container, name); err != nil {
		return nil, store.NewObjectError(store.BackendS3, "get", container, name, err)
	}

	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, store.NewObjectError(store.BackendS3, "get", container, name, translate(err))
	}
	defer func() {
		_ = out.Body.Close()
	}()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, store.NewObjectError(store.BackendS3, "get", container, name, err)
	}
	return data, nil
}

// Put uploads an object, detecting its content type from the payload.
func (s *Store) Put(ctx context.Context, container, name string, data []byte) error {
	if err := validate(container, name); err != nil {
		return store.NewObjectError(store.BackendS3, "put", container, name, err)
	}

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(container),
		Key:           aws.String(name),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(mimetype.Detect(data).String()),
	})
	if err != nil {
		return store.NewObjectError(store.BackendS3, "put", container, name, translate(err))
	}
	return nil
}

func validate(container, name string) error {
	if err := store.ValidateContainer(container); err != nil {
		return err
	}
	return store.ValidateName(name)
}
