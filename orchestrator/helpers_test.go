package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/macrosync/automation"
	"github.com/input-output-hk/macrosync/discovery"
	"github.com/input-output-hk/macrosync/store/memory"
	"github.com/input-output-hk/macrosync/workspace"
)

// mockDiscoverer returns the macros configured for a document name.
type mockDiscoverer struct {
	mu       sync.Mutex
	macros   map[string][]string
	failures map[string]error
	calls    []string

	DiscoverFunc func(ctx context.Context, path string) ([]discovery.Macro, error)
}

func (m *mockDiscoverer) Discover(ctx context.Context, path string) ([]discovery.Macro, error) {
	if m.DiscoverFunc != nil {
		return m.DiscoverFunc(ctx, path)
	}

	name := filepath.Base(path)
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if err := m.failures[name]; err != nil {
		return nil, err
	}

	out := make([]discovery.Macro, 0)
	for i, n := range m.macros[name] {
		out = append(out, discovery.Macro{Document: name, Name: n, Ordinal: i})
	}
	return out, nil
}

// invocation is one recorded runner call.
type invocation struct {
	Document string
	Macro    string
	Output   string
}

// mockRunner writes "<input>|<macro>" to the output path unless the macro is
// listed in fail.
type mockRunner struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []invocation

	ExecuteFunc func(ctx context.Context, inv automation.Invocation) (*automation.Result, error)
}

func (m *mockRunner) Execute(ctx context.Context, inv automation.Invocation) (*automation.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, invocation{
		Document: filepath.Base(inv.DocumentPath),
		Macro:    inv.Macro.Name,
		Output:   inv.OutputPath,
	})
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, inv)
	}
	if m.fail[inv.Macro.Name] {
		return nil, errors.New("engine error in " + inv.Macro.Ref())
	}

	input, err := os.ReadFile(inv.DocumentPath)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(inv.OutputPath, append(input, []byte("|"+inv.Macro.Name)...), 0o644); err != nil {
		return nil, err
	}
	return &automation.Result{OutputPath: inv.OutputPath, Attempts: 1}, nil
}

func (m *mockRunner) Calls() []invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]invocation(nil), m.calls...)
}

type harness struct {
	store  *memory.Store
	disc   *mockDiscoverer
	runner *mockRunner
	ws     *workspace.Workspace
	root   string
	orch   *Orchestrator
}

func newHarness(t *testing.T, mutate func(*Config), wsOpts ...workspace.Option) *harness {
	t.Helper()

	root := t.TempDir()
	ws, err := workspace.NewOS(root, wsOpts...)
	require.NoError(t, err)

	h := &harness{
		store:  memory.New(DefaultInputContainer, DefaultOutputContainer),
		disc:   &mockDiscoverer{macros: map[string][]string{}, failures: map[string]error{}},
		runner: &mockRunner{fail: map[string]bool{}},
		ws:     ws,
		root:   root,
	}

	cfg := DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	cfg.Backoff.MaxInterval = time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	h.orch, err = New(h.store, h.disc, h.runner, ws, WithConfig(cfg))
	require.NoError(t, err)

	ids := 0
	h.orch.newID = func() string {
		ids++
		return fmt.Sprintf("cycle-%d", ids)
	}
	return h
}

func (h *harness) seedInput(docs ...string) {
	objects := make(map[string][]byte, len(docs))
	for _, d := range docs {
		objects[d] = []byte(d)
	}
	h.store.Seed(DefaultInputContainer, objects, docs...)
}

func (h *harness) seedOutput(docs ...string) {
	objects := make(map[string][]byte, len(docs))
	for _, d := range docs {
		objects[d] = []byte("done:" + d)
	}
	h.store.Seed(DefaultOutputContainer, objects, docs...)
}

func (h *harness) output(t *testing.T, name string) string {
	t.Helper()
	data, ok := h.store.Object(DefaultOutputContainer, name)
	require.True(t, ok, "expected %s in output container", name)
	return string(data)
}

func (h *harness) requireScratchClean(t *testing.T) {
	t.Helper()
	for _, dir := range []string{DefaultInputDir, DefaultOutputDir} {
		_, err := os.Stat(filepath.Join(h.root, dir))
		require.True(t, os.IsNotExist(err), "scratch directory %s left behind", dir)
	}
}
