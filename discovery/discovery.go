// Package discovery finds the macros declared in a document. A document's
// code units are read through a Source and each unit is scanned line by line
// for procedure declarations.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	mserrors "github.com/input-output-hk/macrosync/errors"
)

// ErrUnsupported is returned by a Source that does not recognize a document.
var ErrUnsupported = errors.New("discovery: unsupported document format")

// DefaultKeywords are the declaration keywords recognized by default.
var DefaultKeywords = []string{"Sub", "Function"}

// Macro is a procedure declared in a document.
type Macro struct {
	// Document is the base name of the document the macro was found in.
	Document string `json:"document"`

	// Module is the code unit holding the declaration.
	Module string `json:"module,omitempty"`

	Name string `json:"name"`

	// Ordinal is the zero-based position in discovery order.
	Ordinal int `json:"ordinal"`
}

// Ref returns the reference the automation engine resolves:
// <documentName>!<macroName>.
func (m Macro) Ref() string {
	return m.Document + "!" + m.Name
}

// Unit is one code module of a document.
type Unit struct {
	Name string
	Code string
}

// Source reads the code units of a document.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Units returns the document's code units in their natural order, or an
	// error wrapping ErrUnsupported when the document is not recognized.
	Units(ctx context.Context, path string) ([]Unit, error)
}

// Discoverer returns the macros declared in a local document.
type Discoverer interface {
	// Discover returns the macros in discovery order. A document that cannot
	// be opened yields an error classified as errors.CodeOpenFailure; a
	// document without macros yields an empty slice and nil.
	Discover(ctx context.Context, path string) ([]Macro, error)
}

// Scanner is the Source-driven Discoverer.
type Scanner struct {
	sources  []Source
	keywords []string
	logger   *slog.Logger
}

var _ Discoverer = (*Scanner)(nil)

// Option configures a Scanner.
type Option func(*Scanner)

// WithSources replaces the sources consulted, in order.
func WithSources(sources ...Source) Option {
	return func(s *Scanner) {
		s.sources = sources
	}
}

// WithKeywords replaces the declaration keywords.
func WithKeywords(keywords ...string) Option {
	return func(s *Scanner) {
		s.keywords = keywords
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// New creates a Scanner. By default it reads plain source files and ZIP
// based documents and recognizes Sub and Function declarations.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		sources:  []Source{TextSource{}, ArchiveSource{}},
		keywords: DefaultKeywords,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// Discover implements Discoverer.
func (s *Scanner) Discover(ctx context.Context, path string) ([]Macro, error) {
	doc := filepath.Base(path)
	log := s.logger.With("document", doc)
	log.Info("discovering macros", "path", path)

	units, src, err := s.units(ctx, path)
	if err != nil {
		openErr := &mserrors.Error{
			Code: mserrors.CodeOpenFailure,
			Op:   "discovery.Discover",
			Item: doc,
			Err:  err,
		}
		if ctx.Err() != nil {
			openErr.Code = mserrors.CodeCanceled
		}
		log.Error("failed to read document", "error", err)
		return nil, openErr
	}

	macros := make([]Macro, 0)
	for _, u := range units {
		for _, name := range ScanDeclarations(u.Code, s.keywords) {
			macros = append(macros, Macro{
				Document: doc,
				Module:   u.Name,
				Name:     name,
				Ordinal:  len(macros),
			})
		}
	}

	log.Info("discovered macros", "source", src, "units", len(units), "macros", len(macros))
	return macros, nil
}

func (s *Scanner) units(ctx context.Context, path string) ([]Unit, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, "", err
	}
	if info.IsDir() {
		return nil, "", fmt.Errorf("%s is a directory", path)
	}

	for _, src := range s.sources {
		units, err := src.Units(ctx, path)
		if errors.Is(err, ErrUnsupported) {
			s.logger.Debug("source does not recognize document", "source", src.Name(), "path", path)
			continue
		}
		if err != nil {
			return nil, src.Name(), fmt.Errorf("%s: %w", src.Name(), err)
		}
		return units, src.Name(), nil
	}
	return nil, "", ErrUnsupported
}
