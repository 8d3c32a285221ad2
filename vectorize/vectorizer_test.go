package vectorize

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/seisfields/InputParameters"
	"github.com/notargets/seisfields/readfiles"
	"github.com/notargets/seisfields/types"
)

type memCache map[string][]types.Field

func (mc memCache) Load(name string, iproc int) (types.Field, error) {
	parts, ok := mc[name]
	if !ok || iproc >= len(parts) {
		return nil, fmt.Errorf("no cached %s[%d]: %w", name, iproc, os.ErrNotExist)
	}
	return parts[iproc], nil
}

func cacheFrom(fs types.FieldSet, keys ...string) memCache {
	mc := make(memCache)
	for _, key := range keys {
		mc[key] = fs.Copy()[key]
	}
	return mc
}

func twoPartitionModel() types.FieldSet {
	return types.FieldSet{
		"x":   {{0, 1, 2}, {3, 4, 5}},
		"z":   {{0, 0, 0}, {1, 1, 1}},
		"rho": {{2000, 2010, 2020}, {2030, 2040, 2050}},
		"vp":  {{5800, 5810, 5820}, {5830, 5840, 5850}},
		"vs":  {{3200, 3210, 3220}, {3230, 3240, 3250}},
	}
}

func newVectorizer(nproc int, params []string, cache FixedFieldSource) *Vectorizer {
	ip := InputParameters.NewInversionParameters()
	ip.NProc = nproc
	ip.InversionParameters = params
	return New(ip, cache)
}

func TestMergeSplitScenario(t *testing.T) {
	var (
		fs = twoPartitionModel()
		vz = newVectorizer(2, []string{"vs"}, cacheFrom(twoPartitionModel(), "x", "z", "rho", "vp"))
	)
	v, err := vz.Merge(fs)
	require.NoError(t, err)
	assert.Equal(t, []float64{3200, 3210, 3220, 3230, 3240, 3250}, v)

	back, err := vz.Split(v)
	require.NoError(t, err)
	assert.Equal(t, fs, back)
	require.NoError(t, back.Validate(vz.Schema, 2))
}

func TestMergeOrdering(t *testing.T) {
	var (
		fs = twoPartitionModel()
		vz = newVectorizer(2, []string{"vp", "rho"}, cacheFrom(fs, "x", "z", "vs"))
	)
	v, err := vz.Merge(fs)
	require.NoError(t, err)
	// Parameter-major, partition-minor, in declared (not schema) order
	assert.Equal(t, []float64{
		5800, 5810, 5820, 5830, 5840, 5850,
		2000, 2010, 2020, 2030, 2040, 2050,
	}, v)

	back, err := vz.Split(v)
	require.NoError(t, err)
	assert.Equal(t, fs, back)

	// merge(split(v)) == v for an arbitrary conforming vector
	w := make([]float64, len(v))
	for i := range w {
		w[i] = float64(i)
	}
	split, err := vz.Split(w)
	require.NoError(t, err)
	assert.Equal(t, types.Field{3, 4, 5}, split["vp"][1])
	assert.Equal(t, types.Field{6, 7, 8}, split["rho"][0])
	again, err := vz.Merge(split)
	require.NoError(t, err)
	assert.Equal(t, w, again)

	// Split must not alias the input vector
	w[0] = -1
	assert.Equal(t, 0., split["vp"][0][0])
}

func TestSplitErrors(t *testing.T) {
	var (
		fs = twoPartitionModel()
	)
	{ // Not divisible by NProc x nparam
		vz := newVectorizer(2, []string{"vs"}, cacheFrom(fs, "x", "z", "rho", "vp"))
		_, err := vz.Split(make([]float64, 7))
		var se *types.ShapeError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, 7, se.Actual)
		assert.Equal(t, 8, se.Expected)
	}
	{ // No inversion parameters
		vz := newVectorizer(2, nil, cacheFrom(fs, "x"))
		_, err := vz.Split(make([]float64, 6))
		assert.ErrorIs(t, err, types.ErrShape)
	}
	{ // Cached field length disagrees with the vector
		vz := newVectorizer(2, []string{"vs"}, cacheFrom(fs, "x", "z", "rho", "vp"))
		_, err := vz.Split(make([]float64, 4))
		var se *types.ShapeError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "x", se.Field)
		assert.Equal(t, 0, se.Partition)
	}
	{ // Cache miss
		vz := newVectorizer(2, []string{"vs"}, cacheFrom(fs, "x", "z"))
		_, err := vz.Split(make([]float64, 6))
		assert.ErrorIs(t, err, os.ErrNotExist)
	}
}

func TestMergeErrors(t *testing.T) {
	fs := twoPartitionModel()
	vz := newVectorizer(3, []string{"vs"}, nil)
	_, err := vz.Merge(fs)
	assert.ErrorIs(t, err, types.ErrShape)

	delete(fs, "vs")
	vz = newVectorizer(2, []string{"vs"}, nil)
	_, err = vz.Merge(fs)
	var se *types.ShapeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "vs", se.Field)

	// Row counts of one partition must agree even when the total divides evenly
	ragged := types.FieldSet{
		"vp": {{1, 2, 3, 4}, {5, 6, 7}},
		"vs": {{8, 9}, {10, 11, 12}},
	}
	vz = newVectorizer(2, []string{"vp", "vs"}, nil)
	v, err := vz.Merge(ragged)
	assert.Nil(t, v)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "vs", se.Field)
	assert.Equal(t, 0, se.Partition)
	assert.Equal(t, 4, se.Expected)
	assert.Equal(t, 2, se.Actual)
}

func TestVectorFile(t *testing.T) {
	var (
		path = filepath.Join(t.TempDir(), "m_new")
		// Leading bytes of the first value equal a zstd frame header
		v = []float64{math.Float64frombits(0x40091eb8fd2fb528), 1, 2}
	)
	require.NoError(t, WriteVector(path, v))
	back, err := ReadVector(path)
	require.NoError(t, err)
	assert.Equal(t, v, back)
}

func TestInitializeIO(t *testing.T) {
	var (
		root       = t.TempDir()
		fs         = twoPartitionModel()
		ip         = InputParameters.NewInversionParameters()
		vectorPath = filepath.Join(root, "optimize", "m_new")
	)
	ip.NProc = 2
	ip.InversionParameters = []string{"vp", "vs"}
	cache := readfiles.NewMeshCache(filepath.Join(root, "global"), true)

	require.NoError(t, InitializeIO(ip, fs, cache, vectorPath, nil))
	for _, key := range []string{"x", "z", "rho"} {
		for iproc := 0; iproc < 2; iproc++ {
			assert.FileExists(t, cache.Path(key, iproc))
		}
	}
	assert.NoFileExists(t, cache.Path("vs", 0))
	v, err := ReadVector(vectorPath)
	require.NoError(t, err)
	assert.Len(t, v, 12)

	// The cache and vector drive a full reconstruction
	back, err := New(ip, cache).Split(v)
	require.NoError(t, err)
	assert.Equal(t, fs, back)

	// A second initialization keeps the optimizer's current vector
	require.NoError(t, WriteVector(vectorPath, make([]float64, 12)))
	require.NoError(t, InitializeIO(ip, fs, cache, vectorPath, nil))
	v, err = ReadVector(vectorPath)
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 12), v)

	// Invalid initial models are rejected before anything is written
	bad := twoPartitionModel()
	bad["rho"][1] = bad["rho"][1][:1]
	other := readfiles.NewMeshCache(filepath.Join(root, "other"), false)
	assert.ErrorIs(t, InitializeIO(ip, bad, other, "", nil), types.ErrShape)
	assert.False(t, other.Exists())
}
