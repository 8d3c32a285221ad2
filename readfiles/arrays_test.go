package readfiles

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/seisfields/types"
)

func TestArrays(t *testing.T) {
	var (
		dir  = t.TempDir()
		data = []float64{0, -1.5, 3.141592653589793, 1e-300, 6.02e23}
	)
	{ // Raw
		path := filepath.Join(dir, "raw")
		require.NoError(t, WriteArray(path, data, false))
		fi, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, int64(8*len(data)), fi.Size())
		back, err := ReadArray(path, false)
		require.NoError(t, err)
		assert.Equal(t, data, back)
	}
	{ // Raw data starting with the bytes of a zstd frame header
		path := filepath.Join(dir, "magic")
		lookalike := []float64{math.Float64frombits(0x40091eb8fd2fb528), 1, 2}
		require.NoError(t, WriteArray(path, lookalike, false))
		back, err := ReadArray(path, false)
		require.NoError(t, err)
		assert.Equal(t, lookalike, back)
	}
	{ // zstd
		path := filepath.Join(dir, "compressed")
		long := make([]float64, 4096)
		for i := range long {
			long[i] = float64(i % 7)
		}
		require.NoError(t, WriteArray(path, long, true))
		fi, err := os.Stat(path)
		require.NoError(t, err)
		assert.Less(t, fi.Size(), int64(8*len(long)))
		back, err := ReadArray(path, true)
		require.NoError(t, err)
		assert.Equal(t, long, back)
		// A raw file is not a zstd frame
		_, err = ReadArray(filepath.Join(dir, "raw"), true)
		assert.ErrorIs(t, err, types.ErrFormat)
	}
	{ // Empty
		path := filepath.Join(dir, "empty")
		require.NoError(t, WriteArray(path, nil, false))
		back, err := ReadArray(path, false)
		require.NoError(t, err)
		assert.Empty(t, back)
	}
	{ // Truncated
		path := filepath.Join(dir, "truncated")
		require.NoError(t, os.WriteFile(path, make([]byte, 12), 0o644))
		_, err := ReadArray(path, false)
		assert.ErrorIs(t, err, types.ErrFormat)
	}
}

func TestMeshCache(t *testing.T) {
	for _, compress := range []bool{false, true} {
		mc := NewMeshCache(t.TempDir(), compress)
		assert.False(t, mc.Exists())
		require.NoError(t, mc.Store("rho", 3, types.Field{1, 2, 3}))
		assert.True(t, mc.Exists())
		want := filepath.Join(mc.Root, "mesh", "rho", "000003")
		if compress {
			want += CompressedSuffix
		}
		assert.Equal(t, want, mc.Path("rho", 3))
		f, err := mc.Load("rho", 3)
		require.NoError(t, err)
		assert.Equal(t, types.Field{1, 2, 3}, f)
		_, err = mc.Load("rho", 4)
		assert.ErrorIs(t, err, os.ErrNotExist)
	}
}

func TestStaging(t *testing.T) {
	var (
		dir  = t.TempDir()
		path = filepath.Join(dir, "000000")
		boom = errors.New("boom")
	)
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))
	{ // Failed write keeps the original and cleans up
		err := WriteFileStaged(path, func(w io.Writer) error {
			_, _ = w.Write([]byte("partial"))
			return boom
		})
		assert.ErrorIs(t, err, boom)
		data, _ := os.ReadFile(path)
		assert.Equal(t, "original", string(data))
	}
	{ // Replace with archive
		archive := filepath.Join(dir, "_nosmooth", "000000")
		err := ReplaceWithArchive(path, archive, func(w io.Writer) error {
			_, err := w.Write([]byte("smoothed"))
			return err
		})
		require.NoError(t, err)
		data, _ := os.ReadFile(path)
		assert.Equal(t, "smoothed", string(data))
		data, _ = os.ReadFile(archive)
		assert.Equal(t, "original", string(data))
	}
	{ // Failed replacement leaves both files alone
		archive := filepath.Join(dir, "_noclip", "000000")
		err := ReplaceWithArchive(path, archive, func(w io.Writer) error { return boom })
		assert.ErrorIs(t, err, boom)
		data, _ := os.ReadFile(path)
		assert.Equal(t, "smoothed", string(data))
		_, err = os.Stat(archive)
		assert.ErrorIs(t, err, os.ErrNotExist)
	}
	{ // Missing original: nothing is installed
		missing := filepath.Join(dir, "000001")
		err := ReplaceWithArchive(missing, filepath.Join(dir, "_a", "000001"),
			func(w io.Writer) error { return nil })
		assert.ErrorIs(t, err, os.ErrNotExist)
		_, err = os.Stat(missing)
		assert.ErrorIs(t, err, os.ErrNotExist)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}

func TestPartitions(t *testing.T) {
	var (
		ctx    = context.Background()
		dir    = t.TempDir()
		schema = types.DefaultSchema()
		fs     = types.FieldSet{
			"x":   {{0, 1}, {2, 3, 4}, {5}},
			"z":   {{0, 0}, {1, 1, 1}, {2}},
			"rho": {{1, 2}, {3, 4, 5}, {6}},
			"vp":  {{7, 8}, {9, 10, 11}, {12}},
			"vs":  {{13, 14}, {15, 16, 17}, {18}},
		}
	)
	require.NoError(t, WritePartitions(ctx, dir, fs, schema, types.KindModel, 2))
	for iproc := 0; iproc < 3; iproc++ {
		assert.FileExists(t, PartitionPath(dir, iproc))
	}
	back, err := ReadPartitions(ctx, dir, schema, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, fs, back)

	_, err = ReadPartitions(ctx, dir, schema, 4, 2)
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.ErrorIs(t, WritePartitions(ctx, t.TempDir(), fs, schema, types.Kind(5), 2), types.ErrValue)
	fs["vs"][2] = nil
	assert.ErrorIs(t, WritePartitions(ctx, t.TempDir(), fs, schema, types.KindKernel, 2), types.ErrShape)
}
