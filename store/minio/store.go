// Package minio implements store.Store on MinIO and other S3-compatible
// servers through the minio-go client. Containers map to buckets.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/input-output-hk/macrosync/store"
)

// Store is a MinIO-backed store.Store.
type Store struct {
	client *minio.Client
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store from a parsed connection descriptor.
func New(d *store.Descriptor, opts ...Option) (*Store, error) {
	if d == nil || d.Endpoint == "" {
		return nil, store.NewError(store.BackendMinio, "init", "", fmt.Errorf("%w: endpoint is required", store.ErrInvalidInput))
	}

	mopts := &minio.Options{
		Secure: d.UseTLS,
		Region: d.Region,
	}
	if d.AccessKey != "" {
		mopts.Creds = credentials.NewStaticV4(d.AccessKey, d.SecretKey, "")
	} else {
		mopts.Creds = credentials.NewEnvMinio()
	}

	client, err := minio.New(d.Endpoint, mopts)
	if err != nil {
		return nil, store.NewError(store.BackendMinio, "init", "", err)
	}
	return NewWithClient(client, opts...), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *minio.Client, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// ListNames lists every object in the bucket.
func (s *Store) ListNames(ctx context.Context, container string) ([]string, error) {
	if err := store.ValidateContainer(container); err != nil {
		return nil, store.NewError(store.BackendMinio, "list", container, err)
	}

	var names []string
	for obj := range s.client.ListObjects(ctx, container, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, store.NewError(store.BackendMinio, "list", container, translateError(obj.Err))
		}
		names = append(names, obj.Key)
	}

	s.logger.Debug("listed container", "container", container, "count", len(names))
	return names, nil
}

// Get downloads an object.
func (s *Store) Get(ctx context.Context, container, name string) ([]byte, error) {
	if err := validate(container, name); err != nil {
		return nil, store.NewObjectError(store.BackendMinio, "get", container, name, err)
	}

	obj, err := s.client.GetObject(ctx, container, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, store.NewObjectError(store.BackendMinio, "get", container, name, translateError(err))
	}
	defer func() {
		_ = obj.Close()
	}()

	// GetObject is lazy; errors such as NoSuchKey surface on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, store.NewObjectError(store.BackendMinio, "get", container, name, translateError(err))
	}
	return data, nil
}

// Put uploads an object.
func (s *Store) Put(ctx context.Context, container, name string, data []byte) error {
	if err := validate(container, name); err != nil {
		return store.NewObjectError(store.BackendMinio, "put", container, name, err)
	}

	_, err := s.client.PutObject(ctx, container, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: mimetype.Detect(data).String()})
	if err != nil {
		return store.NewObjectError(store.BackendMinio, "put", container, name, translateError(err))
	}
	return nil
}

// translateError maps MinIO error responses onto the store sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var sentinel error
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey":
		sentinel = store.ErrNotFound
	case "NoSuchBucket":
		sentinel = store.ErrContainerNotFound
	case "AccessDenied":
		sentinel = store.ErrAccessDenied
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		sentinel = store.ErrInvalidCredentials
	case "InvalidBucketName", "XMinioInvalidObjectName":
		sentinel = store.ErrInvalidInput
	}
	if sentinel == nil || errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

func validate(container, name string) error {
	if err := store.ValidateContainer(container); err != nil {
		return err
	}
	return store.ValidateName(name)
}
