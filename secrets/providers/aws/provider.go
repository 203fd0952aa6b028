// Package aws resolves secrets from AWS Secrets Manager.
//
// A reference path is a secret name or ARN. A version is either a staging
// label (AWSCURRENT, AWSPREVIOUS, AWSPENDING) or a version ID.
package aws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"

	"github.com/input-output-hk/macrosync/secrets"
)

// Name is the reference prefix served by this provider.
const Name = "aws"

// AWS error codes.
const (
	ResourceNotFoundException = "ResourceNotFoundException"
	AccessDeniedException     = "AccessDeniedException"
)

// API is the subset of the Secrets Manager client used by the provider.
type API interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// Provider resolves references against Secrets Manager.
type Provider struct {
	api    API
	logger *slog.Logger
}

type options struct {
	region    string
	endpoint  string
	awsConfig *aws.Config
	logger    *slog.Logger
}

// Option configures a Provider.
type Option func(*options)

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithEndpoint sets a custom endpoint URL, such as LocalStack's.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

// WithAWSConfig uses a pre-built AWS configuration instead of the default
// chain.
func WithAWSConfig(cfg aws.Config) Option {
	return func(o *options) {
		o.awsConfig = &cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a Provider using the default AWS credential chain.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var awsCfg aws.Config
	if o.awsConfig != nil {
		awsCfg = *o.awsConfig
	} else {
		var err error
		awsCfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
	}
	if o.region != "" {
		awsCfg.Region = o.region
	}

	client := secretsmanager.NewFromConfig(awsCfg, func(so *secretsmanager.Options) {
		if o.endpoint != "" {
			so.BaseEndpoint = aws.String(o.endpoint)
		}
	})
	return newProvider(client, o), nil
}

// NewWithAPI creates a Provider over an existing client.
func NewWithAPI(api API, opts ...Option) *Provider {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return newProvider(api, o)
}

func newProvider(api API, o *options) *Provider {
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Provider{api: api, logger: logger}
}

func (p *Provider) Name() string {
	return Name
}

// Resolve fetches the secret. String secrets are returned as their UTF-8
// bytes; binary secrets as-is.
func (p *Provider) Resolve(ctx context.Context, ref secrets.Ref) (*secrets.Secret, error) {
	if ref.Path == "" {
		return nil, secrets.NewProviderError(Name, ref, secrets.ErrInvalidRef)
	}

	input := &secretsmanager.GetSecretValueInput{SecretId: aws.String(ref.Path)}
	switch ref.Version {
	case "":
	case "AWSCURRENT", "AWSPREVIOUS", "AWSPENDING":
		input.VersionStage = aws.String(ref.Version)
	default:
		input.VersionId = aws.String(ref.Version)
	}

	p.logger.Debug("getting secret value", "secret_id", ref.Path)
	out, err := p.api.GetSecretValue(ctx, input)
	if err != nil {
		return nil, secrets.NewProviderError(Name, ref, translate(err))
	}

	var value []byte
	switch {
	case out.SecretString != nil:
		value = []byte(*out.SecretString)
	case out.SecretBinary != nil:
		value = out.SecretBinary
	default:
		return nil, secrets.NewProviderError(Name, ref, errors.New("secret has neither a string nor a binary value"))
	}

	return &secrets.Secret{Value: value, Version: aws.ToString(out.VersionId)}, nil
}

func translate(err error) error {
	var rnf *types.ResourceNotFoundException
	if errors.As(err, &rnf) {
		return fmt.Errorf("%w: %w", secrets.ErrSecretNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case ResourceNotFoundException:
			return fmt.Errorf("%w: %w", secrets.ErrSecretNotFound, err)
		case AccessDeniedException, "UnrecognizedClientException", "InvalidSignatureException":
			return fmt.Errorf("%w: %w", secrets.ErrAccessDenied, err)
		}
	}
	return err
}
