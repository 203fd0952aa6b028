package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mserrors "github.com/input-output-hk/macrosync/errors"
	"github.com/input-output-hk/macrosync/secrets"
)

type mockAPI struct {
	GetSecretValueFunc func(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

func (m *mockAPI) GetSecretValue(
	ctx context.Context,
	params *secretsmanager.GetSecretValueInput,
	optFns ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	return m.GetSecretValueFunc(ctx, params, optFns...)
}

func TestProvider_Resolve(t *testing.T) {
	tests := []struct {
		name      string
		ref       secrets.Ref
		output    *secretsmanager.GetSecretValueOutput
		err       error
		want      string
		wantStage string
		wantID    string
		check     func(t *testing.T, err error)
	}{
		{
			name:   "string secret",
			ref:    secrets.Ref{Provider: Name, Path: "prod/connection"},
			output: &secretsmanager.GetSecretValueOutput{SecretString: aws.String("s3://a:b@host"), VersionId: aws.String("v1")},
			want:   "s3://a:b@host",
		},
		{
			name:   "binary secret",
			ref:    secrets.Ref{Provider: Name, Path: "prod/connection"},
			output: &secretsmanager.GetSecretValueOutput{SecretBinary: []byte("memory://")},
			want:   "memory://",
		},
		{
			name:      "staging label",
			ref:       secrets.Ref{Provider: Name, Path: "prod/connection", Version: "AWSPREVIOUS"},
			output:    &secretsmanager.GetSecretValueOutput{SecretString: aws.String("old")},
			want:      "old",
			wantStage: "AWSPREVIOUS",
		},
		{
			name:   "version id",
			ref:    secrets.Ref{Provider: Name, Path: "prod/connection", Version: "0b6a"},
			output: &secretsmanager.GetSecretValueOutput{SecretString: aws.String("pinned")},
			want:   "pinned",
			wantID: "0b6a",
		},
		{
			name: "not found",
			ref:  secrets.Ref{Provider: Name, Path: "missing"},
			err:  &types.ResourceNotFoundException{Message: aws.String("no such secret")},
			check: func(t *testing.T, err error) {
				assert.True(t, secrets.IsNotFound(err))
				assert.Equal(t, mserrors.CodeInvalidConfig, mserrors.CodeOf(err))
			},
		},
		{
			name: "access denied",
			ref:  secrets.Ref{Provider: Name, Path: "locked"},
			err:  &smithy.GenericAPIError{Code: AccessDeniedException, Message: "denied"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, secrets.ErrAccessDenied)
				assert.Equal(t, mserrors.CodeUnauthorized, mserrors.CodeOf(err))
			},
		},
		{
			name: "other failure",
			ref:  secrets.Ref{Provider: Name, Path: "x"},
			err:  errors.New("dial tcp: timeout"),
			check: func(t *testing.T, err error) {
				var pe *secrets.ProviderError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, Name, pe.Provider)
				assert.Contains(t, err.Error(), "dial tcp")
			},
		},
		{
			name:   "empty value",
			ref:    secrets.Ref{Provider: Name, Path: "x"},
			output: &secretsmanager.GetSecretValueOutput{},
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "neither")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *secretsmanager.GetSecretValueInput
			api := &mockAPI{
				GetSecretValueFunc: func(
					_ context.Context,
					params *secretsmanager.GetSecretValueInput,
					_ ...func(*secretsmanager.Options),
				) (*secretsmanager.GetSecretValueOutput, error) {
					got = params
					return tt.output, tt.err
				},
			}

			secret, err := NewWithAPI(api).Resolve(context.Background(), tt.ref)
			if tt.check != nil {
				require.Error(t, err)
				tt.check(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, secret.String())
			assert.Equal(t, tt.ref.Path, aws.ToString(got.SecretId))
			assert.Equal(t, tt.wantStage, aws.ToString(got.VersionStage))
			assert.Equal(t, tt.wantID, aws.ToString(got.VersionId))
		})
	}
}

func TestProvider_EmptyPath(t *testing.T) {
	api := &mockAPI{}
	_, err := NewWithAPI(api).Resolve(context.Background(), secrets.Ref{Provider: Name})
	assert.ErrorIs(t, err, secrets.ErrInvalidRef)
}
