// Package workspace manages the local scratch directories a poll cycle
// downloads into and the automation engine writes to. Directories live on a
// go-billy filesystem so tests can run against memory.
package workspace

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	mserrors "github.com/input-output-hk/macrosync/errors"
)

// Policy controls how Prepare treats a directory that already exists.
type Policy string

const (
	// PolicyReset wipes a leftover directory and recreates it empty.
	PolicyReset Policy = "reset"

	// PolicyStrict refuses to reuse an existing directory.
	PolicyStrict Policy = "strict"
)

// TempPrefix marks files that are still being written. List skips them.
const TempPrefix = ".partial-"

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Workspace is a root directory holding scratch directories.
type Workspace struct {
	fs     billy.Filesystem
	policy Policy
	logger *slog.Logger
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithPolicy sets the preparation policy. The default is PolicyReset.
func WithPolicy(p Policy) Option {
	return func(w *Workspace) {
		w.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) {
		w.logger = logger
	}
}

// New creates a Workspace on the given filesystem.
func New(fsys billy.Filesystem, opts ...Option) *Workspace {
	w := &Workspace{fs: fsys, policy: PolicyReset}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return w
}

// NewOS creates a Workspace rooted at dir on the OS filesystem, creating dir
// if needed.
func NewOS(dir string, opts ...Option) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, mserrors.Wrap(mserrors.CodeFilesystem, "workspace.NewOS", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, mserrors.Wrap(mserrors.CodeFilesystem, "workspace.NewOS", err)
	}
	return New(osfs.New(abs), opts...), nil
}

// NewInMemory creates a Workspace backed by memory.
func NewInMemory(opts ...Option) *Workspace {
	return New(memfs.New(), opts...)
}

// Policy returns the active preparation policy.
func (w *Workspace) Policy() Policy {
	return w.policy
}

// Path returns the filesystem path of elem relative to the workspace root.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.fs.Root()}, elem...)...)
}

// Prepare makes dir ready for a new cycle. Under PolicyReset a leftover
// directory is wiped; under PolicyStrict it is a FilesystemConflict.
func (w *Workspace) Prepare(dir string) error {
	const op = "workspace.Prepare"

	exists, err := w.exists(dir)
	if err != nil {
		return mserrors.Wrap(mserrors.CodeFilesystem, op, err)
	}

	if exists {
		if w.policy == PolicyStrict {
			return &mserrors.Error{
				Code: mserrors.CodeFilesystemConflict,
				Op:   op,
				Err:  fmt.Errorf("scratch directory %q already exists", w.Path(dir)),
			}
		}
		w.logger.Warn("removing stale scratch directory", "dir", w.Path(dir))
		if err := util.RemoveAll(w.fs, dir); err != nil {
			return mserrors.Wrap(mserrors.CodeFilesystem, op, fmt.Errorf("billy: removeall %q: %w", dir, err))
		}
	}

	if err := w.fs.MkdirAll(dir, dirPerm); err != nil {
		return mserrors.Wrap(mserrors.CodeFilesystem, op, fmt.Errorf("billy: mkdirall %q: %w", dir, err))
	}
	return nil
}

// WriteFile stores data as dir/name and returns its path.
func (w *Workspace) WriteFile(dir, name string, data []byte) (string, error) {
	const op = "workspace.WriteFile"

	if err := ValidateName(name); err != nil {
		return "", mserrors.Wrap(mserrors.CodeInvalidInput, op, err)
	}
	p := filepath.Join(dir, name)
	if err := util.WriteFile(w.fs, p, data, filePerm); err != nil {
		return "", mserrors.Wrap(mserrors.CodeFilesystem, op, fmt.Errorf("billy: writefile %q: %w", p, err))
	}
	return w.Path(p), nil
}

// ReadFile returns the contents of dir/name.
func (w *Workspace) ReadFile(dir, name string) ([]byte, error) {
	p := filepath.Join(dir, name)
	data, err := util.ReadFile(w.fs, p)
	if err != nil {
		return nil, mserrors.Wrap(mserrors.CodeFilesystem, "workspace.ReadFile",
			fmt.Errorf("billy: readfile %q: %w", p, err))
	}
	return data, nil
}

// List returns the names of the finished regular files in dir, sorted.
// A missing directory lists as empty.
func (w *Workspace) List(dir string) ([]string, error) {
	infos, err := w.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, mserrors.Wrap(mserrors.CodeFilesystem, "workspace.List",
			fmt.Errorf("billy: readdir %q: %w", dir, err))
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || strings.HasPrefix(info.Name(), TempPrefix) {
			continue
		}
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes dir and everything in it. A missing directory is not an
// error.
func (w *Workspace) Remove(dir string) error {
	if err := util.RemoveAll(w.fs, dir); err != nil && !os.IsNotExist(err) {
		return mserrors.Wrap(mserrors.CodeFilesystem, "workspace.Remove",
			fmt.Errorf("billy: removeall %q: %w", dir, err))
	}
	return nil
}

// Exists reports whether dir exists.
func (w *Workspace) Exists(dir string) (bool, error) {
	return w.exists(dir)
}

func (w *Workspace) exists(p string) (bool, error) {
	_, err := w.fs.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("billy: stat %q: %w", p, err)
	}
}

// ValidateName rejects document names that cannot be used as a single local
// file name.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid document name %q", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("document name %q contains a path separator", name)
	case strings.HasPrefix(name, TempPrefix):
		return fmt.Errorf("document name %q uses the reserved prefix %q", name, TempPrefix)
	}
	return nil
}
