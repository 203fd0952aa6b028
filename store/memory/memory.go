// Package memory provides an in-memory object store for tests and dry runs.
// Objects are listed in insertion order. Listing can be made to lag behind
// writes to exercise eventually consistent behavior.
package memory

import (
	"context"
	"sync"

	"github.com/input-output-hk/macrosync/store"
)

// Store is a thread-safe in-memory store.Store.
type Store struct {
	mu         sync.RWMutex
	containers map[string]*container

	// lagging holds names written but not yet visible to ListNames.
	lagging map[string]map[string]struct{}
	lag     bool

	calls Calls

	// Fault hooks. A non-nil return fails the call.
	ListErr func(container string) error
	GetErr  func(container, name string) error
	PutErr  func(container, name string) error
}

type container struct {
	order   []string
	objects map[string][]byte
}

// Calls counts operations by kind.
type Calls struct {
	List int
	Get  int
	Put  int
}

var _ store.Store = (*Store)(nil)

// New creates an empty store holding the given containers.
func New(containers ...string) *Store {
	s := &Store{
		containers: make(map[string]*container),
		lagging:    make(map[string]map[string]struct{}),
	}
	for _, c := range containers {
		s.containers[c] = &container{objects: make(map[string][]byte)}
	}
	return s
}

// SetListingLag controls whether objects written by Put stay invisible to
// ListNames until Settle is called.
func (s *Store) SetListingLag(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lag = enabled
}

// Settle makes every pending write visible to listings.
func (s *Store) Settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lagging = make(map[string]map[string]struct{})
}

// Seed writes objects directly, bypassing hooks, counters and lag.
func (s *Store) Seed(containerName string, objects map[string][]byte, order ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.ensure(containerName)
	if len(order) == 0 {
		for name := range objects {
			order = append(order, name)
		}
	}
	for _, name := range order {
		c.put(name, objects[name])
	}
}

// Calls returns a snapshot of the operation counters.
func (s *Store) Calls() Calls {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

// Object returns a copy of an object, bypassing hooks and counters.
func (s *Store) Object(containerName, name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.containers[containerName]
	if !ok {
		return nil, false
	}
	data, ok := c.objects[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// ListNames implements store.Store.
func (s *Store) ListNames(ctx context.Context, containerName string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.NewError(store.BackendMemory, "list", containerName, err)
	}
	if err := store.ValidateContainer(containerName); err != nil {
		return nil, store.NewError(store.BackendMemory, "list", containerName, err)
	}

	s.mu.Lock()
	s.calls.List++
	s.mu.Unlock()

	if s.ListErr != nil {
		if err := s.ListErr(containerName); err != nil {
			return nil, store.NewError(store.BackendMemory, "list", containerName, err)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.containers[containerName]
	if !ok {
		return nil, store.NewError(store.BackendMemory, "list", containerName, store.ErrContainerNotFound)
	}

	hidden := s.lagging[containerName]
	names := make([]string, 0, len(c.order))
	for _, name := range c.order {
		if _, skip := hidden[name]; skip {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, containerName, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.NewObjectError(store.BackendMemory, "get", containerName, name, err)
	}
	if err := validate(containerName, name); err != nil {
		return nil, store.NewObjectError(store.BackendMemory, "get", containerName, name, err)
	}

	s.mu.Lock()
	s.calls.Get++
	s.mu.Unlock()

	if s.GetErr != nil {
		if err := s.GetErr(containerName, name); err != nil {
			return nil, store.NewObjectError(store.BackendMemory, "get", containerName, name, err)
		}
	}

	data, ok := s.Object(containerName, name)
	if !ok {
		return nil, store.NewObjectError(store.BackendMemory, "get", containerName, name, store.ErrNotFound)
	}
	return data, nil
}

// Put implements store.Store.
func (s *Store) Put(ctx context.Context, containerName, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return store.NewObjectError(store.BackendMemory, "put", containerName, name, err)
	}
	if err := validate(containerName, name); err != nil {
		return store.NewObjectError(store.BackendMemory, "put", containerName, name, err)
	}

	s.mu.Lock()
	s.calls.Put++
	s.mu.Unlock()

	if s.PutErr != nil {
		if err := s.PutErr(containerName, name); err != nil {
			return store.NewObjectError(store.BackendMemory, "put", containerName, name, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.containers[containerName]
	if !ok {
		return store.NewObjectError(store.BackendMemory, "put", containerName, name, store.ErrContainerNotFound)
	}
	_, existed := c.objects[name]
	c.put(name, append([]byte(nil), data...))

	if s.lag && !existed {
		if s.lagging[containerName] == nil {
			s.lagging[containerName] = make(map[string]struct{})
		}
		s.lagging[containerName][name] = struct{}{}
	}
	return nil
}

func (s *Store) ensure(name string) *container {
	c, ok := s.containers[name]
	if !ok {
		c = &container{objects: make(map[string][]byte)}
		s.containers[name] = c
	}
	return c
}

func (c *container) put(name string, data []byte) {
	if _, ok := c.objects[name]; !ok {
		c.order = append(c.order, name)
	}
	c.objects[name] = data
}

func validate(containerName, name string) error {
	if err := store.ValidateContainer(containerName); err != nil {
		return err
	}
	return store.ValidateName(name)
}
