package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"

	mserrors "github.com/input-output-hk/macrosync/errors"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatCUE  Format = "cue"
	FormatYAML Format = "yaml"
)

// FormatOf picks the syntax from a file extension. JSON files are read as
// YAML.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return FormatCUE, nil
	case ".yaml", ".yml", ".json":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
}

type loader struct {
	fs        billy.Filesystem
	lookupEnv func(string) (string, bool)
}

// Option configures loading.
type Option func(*loader)

// WithFilesystem reads configuration files from fsys.
func WithFilesystem(fsys billy.Filesystem) Option {
	return func(l *loader) {
		l.fs = fsys
	}
}

// WithLookupEnv replaces os.LookupEnv for environment overrides.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(l *loader) {
		l.lookupEnv = fn
	}
}

func newLoader(opts []Option) *loader {
	l := &loader{lookupEnv: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}
	if l.fs == nil {
		l.fs = osfs.New("/")
	}
	return l
}

// Load reads the configuration file at path. An empty path loads the
// defaults. Environment overrides are applied in both cases.
//
// Every failure is classified as errors.CodeInvalidConfig.
func Load(path string, opts ...Option) (*Config, error) {
	l := newLoader(opts)
	if path == "" {
		return l.parse(nil, FormatYAML, "defaults")
	}

	format, err := FormatOf(path)
	if err != nil {
		return nil, invalid(err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, invalid(err)
	}
	data, err := util.ReadFile(l.fs, abs)
	if err != nil {
		return nil, invalid(fmt.Errorf("reading %s: %w", path, err))
	}
	return l.parse(data, format, path)
}

// Parse decodes configuration data in the given format.
func Parse(data []byte, format Format, opts ...Option) (*Config, error) {
	return newLoader(opts).parse(data, format, "config."+string(format))
}

func (l *loader) parse(data []byte, format Format, name string) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, invalid(fmt.Errorf("compiling schema: %w", err))
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	doc, err := decodeDocument(ctx, data, format, name)
	if err != nil {
		return nil, invalid(err)
	}
	if err := applyEnv(doc, l.lookupEnv); err != nil {
		return nil, invalid(err)
	}

	v := def.Unify(ctx.Encode(doc))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, invalid(fmt.Errorf("%s: %s", name, strings.TrimSpace(cueerrors.Details(err, nil))))
	}

	var f fileConfig
	if err := v.Decode(&f); err != nil {
		return nil, invalid(fmt.Errorf("%s: %w", name, err))
	}

	ok, err := IsCompatible(f.Version)
	if err != nil {
		return nil, invalid(err)
	}
	if !ok {
		return nil, invalid(fmt.Errorf("%s: version %s is not compatible with %s", name, f.Version, SchemaVersion))
	}

	c, err := f.resolve()
	if err != nil {
		return nil, invalid(fmt.Errorf("%s: %w", name, err))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// decodeDocument turns a file into plain data so that environment overrides
// can replace values before the schema is applied.
func decodeDocument(ctx *cue.Context, data []byte, format Format, name string) (map[string]any, error) {
	doc := map[string]any{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return doc, nil
	}

	switch format {
	case FormatCUE:
		v := ctx.CompileBytes(data, cue.Filename(name))
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("%s: %s", name, strings.TrimSpace(cueerrors.Details(err, nil)))
		}
		if err := v.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
	return doc, nil
}

func invalid(err error) error {
	return mserrors.Wrap(mserrors.CodeInvalidConfig, "config.Load", err)
}
