//go:build integration

package azblob_test

import (
	"context"
	"testing"

	sdk "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/macrosync/internal/testutil"
	"github.com/input-output-hk/macrosync/store"
	"github.com/input-output-hk/macrosync/store/azblob"
)

func TestIntegrationStore(t *testing.T) {
	conn := testutil.StartAzurite(t)
	ctx := context.Background()

	admin, err := sdk.NewClientFromConnectionString(conn, nil)
	require.NoError(t, err)
	_, err = admin.CreateContainer(ctx, "output", nil)
	require.NoError(t, err)

	d, err := store.ParseDescriptor("", conn)
	require.NoError(t, err)
	s, err := azblob.New(d)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "output", "report.xlsm", []byte("done")))

	names, err := s.ListNames(ctx, "output")
	require.NoError(t, err)
	assert.Equal(t, []string{"report.xlsm"}, names)

	data, err := s.Get(ctx, "output", "report.xlsm")
	require.NoError(t, err)
	assert.Equal(t, []byte("done"), data)

	_, err = s.Get(ctx, "output", "absent.xlsm")
	assert.True(t, store.IsNotFound(err))

	_, err = s.ListNames(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrContainerNotFound)
}
