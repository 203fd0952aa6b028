package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mserrors "github.com/input-output-hk/macrosync/errors"
	"github.com/input-output-hk/macrosync/store"
)

func TestStore_PutGetList(t *testing.T) {
	ctx := context.Background()
	s := New("input")

	require.NoError(t, s.Put(ctx, "input", "b.xlsm", []byte("b")))
	require.NoError(t, s.Put(ctx, "input", "a.xlsm", []byte("a")))
	require.NoError(t, s.Put(ctx, "input", "b.xlsm", []byte("b2")))

	names, err := s.ListNames(ctx, "input")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.xlsm", "a.xlsm"}, names, "insertion order is preserved")

	data, err := s.Get(ctx, "input", "b.xlsm")
	require.NoError(t, err)
	assert.Equal(t, []byte("b2"), data)

	assert.Equal(t, Calls{List: 1, Get: 1, Put: 3}, s.Calls())
}

func TestStore_GetNotFound(t *testing.T) {
	s := New("input")
	_, err := s.Get(context.Background(), "input", "missing")
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err))
	assert.Equal(t, mserrors.CodeNotFound, mserrors.CodeOf(err))
}

func TestStore_MissingContainer(t *testing.T) {
	s := New()
	_, err := s.ListNames(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrContainerNotFound)

	err = s.Put(context.Background(), "nope", "a", nil)
	assert.ErrorIs(t, err, store.ErrContainerNotFound)
}

func TestStore_Validation(t *testing.T) {
	s := New("input")
	ctx := context.Background()

	_, err := s.ListNames(ctx, "")
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = s.Get(ctx, "input", "")
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	assert.ErrorIs(t, s.Put(ctx, "", "a", nil), store.ErrInvalidInput)
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New("c")
	payload := []byte("original")
	require.NoError(t, s.Put(ctx, "c", "doc", payload))
	payload[0] = 'X'

	got, err := s.Get(ctx, "c", "doc")
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))

	got[0] = 'Y'
	again, _ := s.Object("c", "doc")
	assert.Equal(t, "original", string(again))
}

func TestStore_ListingLag(t *testing.T) {
	ctx := context.Background()
	s := New("output")
	s.SetListingLag(true)

	require.NoError(t, s.Put(ctx, "output", "a", []byte("x")))
	names, err := s.ListNames(ctx, "output")
	require.NoError(t, err)
	assert.Empty(t, names)

	_, ok := s.Object("output", "a")
	assert.True(t, ok, "object is stored even when not yet listed")

	s.Settle()
	names, err = s.ListNames(ctx, "output")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)
}

func TestStore_FaultHooks(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	s := New("input")
	s.Seed("input", map[string][]byte{"a": []byte("1"), "b": []byte("2")}, "a", "b")

	s.GetErr = func(_, name string) error {
		if name == "a" {
			return boom
		}
		return nil
	}
	_, err := s.Get(ctx, "input", "a")
	assert.ErrorIs(t, err, boom)
	_, err = s.Get(ctx, "input", "b")
	assert.NoError(t, err)

	s.ListErr = func(string) error { return boom }
	_, err = s.ListNames(ctx, "input")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, mserrors.CodeStoreError, mserrors.CodeOf(err))

	s.PutErr = func(string, string) error { return boom }
	assert.ErrorIs(t, s.Put(ctx, "input", "c", nil), boom)
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New("input")
	_, err := s.ListNames(ctx, "input")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Calls().List)
}
