package store

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Backend names.
const (
	BackendS3     = "s3"
	BackendMinio  = "minio"
	BackendAzure  = "azblob"
	BackendMemory = "memory"
)

// Descriptor locates and authenticates an object store. It is parsed from
// the connection string held in the secret store.
type Descriptor struct {
	Backend string

	// Endpoint is host[:port]. Empty means the backend default.
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	PathStyle bool
	UseTLS    bool

	// ConnectionString is the native Azure connection string.
	ConnectionString string
}

// String renders the descriptor without secrets.
func (d Descriptor) String() string {
	if d.Backend == BackendAzure {
		return "azblob://" + azureAccountName(d.ConnectionString)
	}
	s := d.Backend + "://" + d.Endpoint
	if d.AccessKey != "" {
		s = d.Backend + "://" + d.AccessKey + ":***@" + d.Endpoint
	}
	return s
}

// ParseDescriptor parses a connection string. backend may be empty, in which
// case it is taken from the URL scheme; Azure connection strings are
// recognized by their key=value form.
func ParseDescriptor(backend, raw string) (*Descriptor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: connection string is empty", ErrInvalidInput)
	}

	if backend == "" {
		backend = inferBackend(raw)
	}

	switch backend {
	case BackendAzure:
		if azureAccountName(raw) == "" && !strings.Contains(raw, "BlobEndpoint=") {
			return nil, fmt.Errorf("%w: azure connection string lacks AccountName or BlobEndpoint", ErrInvalidInput)
		}
		return &Descriptor{Backend: BackendAzure, ConnectionString: raw}, nil
	case BackendS3, BackendMinio, BackendMemory:
		return parseURLDescriptor(backend, raw)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidInput, backend)
	}
}

func inferBackend(raw string) string {
	if i := strings.Index(raw, "://"); i > 0 {
		return raw[:i]
	}
	if strings.Contains(raw, "AccountName=") || strings.Contains(raw, "BlobEndpoint=") {
		return BackendAzure
	}
	return ""
}

func parseURLDescriptor(backend, raw string) (*Descriptor, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if u.Scheme != backend {
		return nil, fmt.Errorf("%w: scheme %q does not match backend %q", ErrInvalidInput, u.Scheme, backend)
	}

	d := &Descriptor{
		Backend:  backend,
		Endpoint: u.Host,
		UseTLS:   true,
	}
	if u.User != nil {
		d.AccessKey = u.User.Username()
		d.SecretKey, _ = u.User.Password()
		if d.AccessKey == "" || d.SecretKey == "" {
			return nil, fmt.Errorf("%w: both access key and secret key are required", ErrInvalidInput)
		}
	}

	q := u.Query()
	d.Region = q.Get("region")
	if v := q.Get("path_style"); v != "" {
		if d.PathStyle, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("%w: path_style: %v", ErrInvalidInput, err)
		}
	}
	if v := q.Get("tls"); v != "" {
		if d.UseTLS, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("%w: tls: %v", ErrInvalidInput, err)
		}
	}

	if backend == BackendMinio && d.Endpoint == "" {
		return nil, fmt.Errorf("%w: minio requires an endpoint", ErrInvalidInput)
	}
	return d, nil
}

// EndpointURL returns the endpoint with a scheme, or "" when unset.
func (d Descriptor) EndpointURL() string {
	if d.Endpoint == "" {
		return ""
	}
	if d.UseTLS {
		return "https://" + d.Endpoint
	}
	return "http://" + d.Endpoint
}

func azureAccountName(conn string) string {
	for _, part := range strings.Split(conn, ";") {
		k, v, ok := strings.Cut(part, "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), "AccountName") {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
