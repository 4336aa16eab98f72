package mailbox

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
)

func TestAFSStore_FileScheme(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewAFSStore(afs.New(), "file://"+dir+"/dropbox/")

	assert.Equal(t, "file://"+dir+"/dropbox", store.Location())

	addr := Address{Channel: Observations, ID: expID, Iteration: 0}
	require.NoError(t, store.Create(ctx, addr, []byte(`{"ID":"`+expID+`"}`)))

	// The object is a plain file in the same layout as FileStore uses.
	data, err := os.ReadFile(filepath.Join(dir, "dropbox", "observations", expID+"_0.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ID":"`+expID+`"}`, string(data))

	err = store.Create(ctx, addr, []byte(`{"ID":"other"}`))
	assert.ErrorIs(t, err, fs.ErrExist)

	names, err := store.List(ctx, Observations)
	require.NoError(t, err)
	assert.Equal(t, []string{expID + "_0.json"}, names)

	exists, err := store.Exists(ctx, Address{Channel: Interventions, ID: expID, Iteration: 0})
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAFSStore_ReadMissing(t *testing.T) {
	store := NewAFSStore(nil, "mem://localhost/read-missing")
	_, err := store.Read(context.Background(), Address{Channel: Interventions, ID: expID, Iteration: 9})
	assert.ErrorIs(t, err, fs.ErrNotExist)

	names, err := store.List(context.Background(), Interventions)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestAFSStore_InteropWithFileStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), DefaultDir)

	written := New(NewFileStore(dir))
	msg, err := ParsePayload(expID, []byte(`{"reading": [1, 2, 3]}`))
	require.NoError(t, err)
	_, err = written.Put(ctx, Address{Channel: Interventions, ID: expID, Iteration: 2}, msg)
	require.NoError(t, err)

	read := New(NewAFSStore(nil, "file://"+dir))
	got, err := read.Get(ctx, Address{Channel: Interventions, ID: expID, Iteration: 2})
	require.NoError(t, err)
	assert.Equal(t, expID, got.ID)
	assert.JSONEq(t, `[1, 2, 3]`, string(got.Fields["reading"]))

	iters, err := read.Iterations(ctx, Interventions, expID)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, iters)
}
