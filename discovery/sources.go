package discovery

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// sourceExtensions are exported code module files read as a single unit.
var sourceExtensions = map[string]bool{
	".bas": true,
	".cls": true,
	".frm": true,
	".vb":  true,
	".vbs": true,
}

// TextSource reads exported source files (.bas, .cls, .frm, .vb, .vbs) as a
// single code unit named after the file.
type TextSource struct{}

// Name implements Source.
func (TextSource) Name() string { return "text" }

// Units implements Source.
func (TextSource) Units(_ context.Context, p string) ([]Unit, error) {
	ext := strings.ToLower(filepath.Ext(p))
	if !sourceExtensions[ext] {
		return nil, ErrUnsupported
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
	return []Unit{{Name: name, Code: string(data)}}, nil
}

// ArchiveSource reads ZIP based documents. OpenDocument Basic libraries
// (Basic/<Library>/<Module>.xml) and exported source members stored in the
// archive are read in archive order. OOXML documents whose code lives only in
// a binary vbaProject.bin are reported as unsupported so another source can
// handle them.
type ArchiveSource struct{}

// Name implements Source.
func (ArchiveSource) Name() string { return "archive" }

// Units implements Source.
func (ArchiveSource) Units(ctx context.Context, p string) ([]Unit, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		return nil, err
	}
	defer func() {
		_ = zr.Close()
	}()

	var (
		units      []Unit
		binaryOnly bool
	)
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch {
		case isBasicModule(f.Name):
			u, err := readBasicModule(f)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", f.Name, err)
			}
			units = append(units, u)
		case sourceExtensions[strings.ToLower(path.Ext(f.Name))]:
			code, err := readZipFile(f)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", f.Name, err)
			}
			base := path.Base(f.Name)
			units = append(units, Unit{Name: strings.TrimSuffix(base, path.Ext(base)), Code: code})
		case strings.EqualFold(path.Base(f.Name), "vbaProject.bin"):
			binaryOnly = true
		}
	}

	if len(units) == 0 && binaryOnly {
		return nil, fmt.Errorf("%w: binary macro project", ErrUnsupported)
	}
	return units, nil
}

func isBasicModule(name string) bool {
	if !strings.HasPrefix(name, "Basic/") || path.Ext(name) != ".xml" {
		return false
	}
	base := path.Base(name)
	return base != "script-lb.xml" && base != "script-lc.xml" && base != "dialog-lb.xml"
}

// basicModule is an OpenDocument script:module element.
type basicModule struct {
	Name string `xml:"name,attr"`
	Code string `xml:",chardata"`
}

func readBasicModule(f *zip.File) (Unit, error) {
	raw, err := readZipFile(f)
	if err != nil {
		return Unit{}, err
	}

	var m basicModule
	dec := xml.NewDecoder(strings.NewReader(raw))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	if err := dec.Decode(&m); err != nil {
		return Unit{}, err
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(path.Base(f.Name), ".xml")
	}
	return Unit{Name: m.Name, Code: m.Code}, nil
}

func readZipFile(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer func() {
		_ = rc.Close()
	}()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
