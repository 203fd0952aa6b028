// Package azblob implements store.Store on Azure Blob Storage. Containers map
// to blob containers and the store is addressed by a native Azure connection
// string.
package azblob

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/gabriel-vasile/mimetype"

	"github.com/input-output-hk/macrosync/store"
)

// Store is an Azure Blob Storage backed store.Store.
type Store struct {
	client *azblob.Client
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
	if d == nil || d.ConnectionString == "" {
		return nil, store.NewError(store.BackendAzure, "init", "",
			fmt.Errorf("%w: connection string is required", store.ErrInvalidInput))
	}

	client, err := azblob.NewClientFromConnectionString(d.ConnectionString, nil)
	if err != nil {
		return nil, store.NewError(store.BackendAzure, "init", "",
			fmt.Errorf("%w: %w", store.ErrInvalidCredentials, err))
	}

	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s, nil
}

// ListNames lists every blob in the container, page by page.
func (s *Store) ListNames(ctx context.Context, container string) ([]string, error) {
	if err := store.ValidateContainer(container); err != nil {
		return nil, store.NewError(store.BackendAzure, "list", container, err)
	}

	var names []string
	pager := s.client.NewListBlobsFlatPager(container, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, store.NewError(store.BackendAzure, "list", container, translateError(err))
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}

	s.logger.Debug("listed container", "container", container, "count", len(names))
	return names, nil
}

// Get downloads a blob.
func (s *Store) Get(ctx context.Context, container, name string) ([]byte, error) {
	if err := validate(container, name); err != nil {
		return nil, store.NewObjectError(store.BackendAzure, "get", container, name, err)
	}

	resp, err := s.client.DownloadStream(ctx, container, name, nil)
	if err != nil {
		return nil, store.NewObjectError(store.BackendAzure, "get", container, name, translateError(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, store.NewObjectError(store.BackendAzure, "get", container, name, err)
	}
	return data, nil
}

// Put uploads a block blob, replacing any existing one.
func (s *Store) Put(ctx context.Context, container, name string, data []byte) error {
	if err := validate(container, name); err != nil {
		return store.NewObjectError(store.BackendAzure, "put", container, name, err)
	}

	contentType := mimetype.Detect(data).String()
	_, err := s.client.UploadBuffer(ctx, container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return store.NewObjectError(store.BackendAzure, "put", container, name, translateError(err))
	}
	return nil
}

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case bloberror.HasCode(err, bloberror.BlobNotFound):
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	case bloberror.HasCode(err, bloberror.ContainerNotFound):
		return fmt.Errorf("%w: %w", store.ErrContainerNotFound, err)
	case bloberror.HasCode(err, bloberror.AuthenticationFailed):
		return fmt.Errorf("%w: %w", store.ErrInvalidCredentials, err)
	case bloberror.HasCode(err,
		bloberror.AuthorizationFailure,
		bloberror.AuthorizationPermissionMismatch,
		bloberror.InsufficientAccountPermissions):
		return fmt.Errorf("%w: %w", store.ErrAccessDenied, err)
	case bloberror.HasCode(err, bloberror.InvalidResourceName, bloberror.OutOfRangeInput):
		return fmt.Errorf("%w: %w", store.ErrInvalidInput, err)
	}
	return err
}

func validate(container, name string) error {
	if err := store.ValidateContainer(container); err != nil {
		return err
	}
	return store.ValidateName(name)
}
