package s3

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/input-output-hk/macrosync/store"
)

// translate maps AWS errors onto the store sentinels while keeping the
// original error in the chain.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return fmt.Errorf("%w: %w", store.ErrContainerNotFound, err)
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	case "NoSuchBucket":
		return fmt.Errorf("%w: %w", store.ErrContainerNotFound, err)
	case "AccessDenied", "Forbidden", "AllAccessDisabled":
		return fmt.Errorf("%w: %w", store.ErrAccessDenied, err)
	case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "InvalidToken":
		return fmt.Errorf("%w: %w", store.ErrInvalidCredentials, err)
	case "InvalidBucketName", "KeyTooLongError":
		return fmt.Errorf("%w: %w", store.ErrInvalidInput, err)
	}
	return err
}
