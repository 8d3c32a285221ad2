package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/seisfields/postprocess"
	"github.com/notargets/seisfields/readfiles"
	"github.com/notargets/seisfields/types"
	"github.com/notargets/seisfields/vectorize"
)

func run(args ...string) error {
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	return rootCmd.Execute()
}

func TestWorkflow(t *testing.T) {
	var (
		err    error
		root   = t.TempDir()
		schema = types.DefaultSchema()
		cfg    = filepath.Join(root, "inversion.yaml")
		model  = filepath.Join(root, "model")
	)
	fileInput := []byte(fmt.Sprintf(`
Title: Workflow
NProc: 2
ModelParameters: [rho, vp, vs]
InversionParameters: [vp, vs]
Paths:
  Global: %s
  Optimize: %s
  ModelInit: %s
Smooth:
  Span: 0.75
ClipThresh: 0.5
ParallelDegree: 2
`, filepath.Join(root, "global"), filepath.Join(root, "optimize"), filepath.Join(root, "model_init")))
	require.NoError(t, os.WriteFile(cfg, fileInput, 0o644))

	initial := types.FieldSet{
		"x":   {{0, 10, 0, 10}, {20, 30, 20, 30}},
		"z":   {{0, 0, 10, 10}, {0, 0, 10, 10}},
		"rho": {{2600, 2610, 2620, 2630}, {2640, 2650, 2660, 2670}},
		"vp":  {{5800.5, 5810, 5820, 5830}, {5840, 5850, 5860, 5870.25}},
		"vs":  {{3200, 3210, 3220.125, 3230}, {3240, 3250, 3260, 3270}},
	}
	ctx := context.Background()
	require.NoError(t, readfiles.WritePartitions(ctx, filepath.Join(root, "model_init"), initial, schema,
		types.KindModel, 1))

	{ // init populates the mesh cache and the initial vector
		require.NoError(t, run("init", "--config", cfg, "--logLevel", "error"))
		cache := readfiles.NewMeshCache(filepath.Join(root, "global"), false)
		for _, key := range []string{"x", "z", "rho"} {
			assert.FileExists(t, cache.Path(key, 1))
		}
		v, err := vectorize.ReadVector(filepath.Join(root, "optimize", "m_new"))
		require.NoError(t, err)
		assert.Equal(t, []float64{
			5800.5, 5810, 5820, 5830, 5840, 5850, 5860, 5870.25,
			3200, 3210, 3220.125, 3230, 3240, 3250, 3260, 3270,
		}, v)
	}
	{ // split rebuilds the initial tables exactly
		require.NoError(t, run("split", "--config", cfg, "--logLevel", "error",
			"--output", model, "--kind", "model"))
		for iproc := 0; iproc < 2; iproc++ {
			want, err := os.ReadFile(readfiles.PartitionPath(filepath.Join(root, "model_init"), iproc))
			require.NoError(t, err)
			got, err := os.ReadFile(readfiles.PartitionPath(model, iproc))
			require.NoError(t, err)
			assert.Equal(t, string(want), string(got))
		}
	}
	{ // merge of the split tables gives back the vector
		out := filepath.Join(root, "optimize", "m_copy")
		require.NoError(t, run("merge", "--config", cfg, "--logLevel", "error",
			"--input", model, "--output", out))
		want, err := os.ReadFile(filepath.Join(root, "optimize", "m_new"))
		require.NoError(t, err)
		got, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	{ // smooth and clip archive what they replace
		require.NoError(t, run("smooth", "--config", cfg, "--logLevel", "error",
			"--input", model, "--kind", "model"))
		assert.FileExists(t, filepath.Join(model, postprocess.NoSmoothTag, "000000"))
		assert.FileExists(t, filepath.Join(model, postprocess.NoSmoothTag, "000001"))
		require.NoError(t, run("clip", "--config", cfg, "--logLevel", "error",
			"--input", model, "--kind", "model", "--thresh", "0.999"))
		assert.FileExists(t, filepath.Join(model, postprocess.NoClipTag, "000001"))
		var fs types.FieldSet
		fs, err = readfiles.ReadPartitions(ctx, model, schema, 2, 1)
		require.NoError(t, err)
		assert.Equal(t, initial["rho"], fs["rho"])
		assert.NoError(t, fs.Validate(schema, 2))
	}
	{ // A rerun at debug level keeps the existing state
		v, err := os.ReadFile(filepath.Join(root, "optimize", "m_new"))
		require.NoError(t, err)
		require.NoError(t, run("init", "--config", cfg, "--logLevel", "debug"))
		again, err := os.ReadFile(filepath.Join(root, "optimize", "m_new"))
		require.NoError(t, err)
		assert.Equal(t, v, again)
	}
	{ // Bad input is reported, not panicked on
		err = run("split", "--config", cfg, "--logLevel", "error", "--output", model, "--kind", "bogus")
		assert.ErrorIs(t, err, types.ErrValue)
		err = run("merge", "--config", cfg, "--logLevel", "error",
			"--input", filepath.Join(root, "missing"), "--output", filepath.Join(root, "x"))
		assert.ErrorIs(t, err, os.ErrNotExist)
		err = run("smooth", "--config", cfg, "--logLevel", "error", "--input", model, "--kind", "kernel",
			"--span", "-1")
		assert.ErrorIs(t, err, types.ErrValue)
	}
}
