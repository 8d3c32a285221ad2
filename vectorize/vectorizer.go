// Package vectorize converts between partitioned field sets and the flat
// optimization vector exchanged with the optimizer.
//
// The vector is laid out parameter-major, partition-minor: for each inversion
// parameter in declared order, the arrays of partitions 0..NProc-1 follow one
// another. Any change to this order invalidates an optimizer state saved by a
// previous run.
package vectorize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/notargets/seisfields/InputParameters"
	"github.com/notargets/seisfields/readfiles"
	"github.com/notargets/seisfields/types"
	"github.com/notargets/seisfields/utils"
)

// FixedFieldSource provides the per-partition arrays of fields that are held
// fixed during the inversion.
type FixedFieldSource interface {
	Load(name string, iproc int) (types.Field, error)
}

type Vectorizer struct {
	NProc               int
	Schema              types.Schema
	InversionParameters []string
	Cache               FixedFieldSource
	Log                 *utils.Logger
}

func New(ip *InputParameters.InversionParameters, cache FixedFieldSource) *Vectorizer {
	return &Vectorizer{
		NProc:               ip.NProc,
		Schema:              ip.Schema(),
		InversionParameters: slices.Clone(ip.InversionParameters),
		Cache:               cache,
		Log:                 utils.NoopLogger(),
	}
}

// Merge flattens the inversion parameters of fs into a single vector.
func (vz *Vectorizer) Merge(fs types.FieldSet) (v []float64, err error) {
	var (
		length int
	)
	for _, key := range vz.InversionParameters {
		parts, ok := fs[key]
		if !ok {
			return nil, &types.ShapeError{Field: key, Partition: -1, Expected: vz.NProc,
				Msg: "inversion parameter missing from field set"}
		}
		if len(parts) != vz.NProc {
			return nil, &types.ShapeError{Field: key, Partition: -1, Expected: vz.NProc,
				Actual: len(parts), Msg: "wrong partition count"}
		}
		for iproc, f := range parts {
			// Split recovers one row count per partition, shared by all parameters
			if first := fs[vz.InversionParameters[0]][iproc]; len(f) != len(first) {
				return nil, &types.ShapeError{Field: key, Partition: iproc, Expected: len(first),
					Actual: len(f), Msg: "row count differs from " + vz.InversionParameters[0]}
			}
			length += len(f)
		}
	}
	v = make([]float64, 0, length)
	for _, key := range vz.InversionParameters {
		for iproc := 0; iproc < vz.NProc; iproc++ {
			v = append(v, fs[key][iproc]...)
		}
	}
	vz.Log.Debug("merged field set", "parameters", vz.InversionParameters, "length", len(v))
	return
}

// RowsPerPartition is the node count implied by a vector of length n. The
// length must divide evenly by NProc times the number of inversion parameters.
func (vz *Vectorizer) RowsPerPartition(n int) (nrow int, err error) {
	var (
		nparam = len(vz.InversionParameters)
		block  = vz.NProc * nparam
	)
	if vz.NProc <= 0 || nparam == 0 {
		return 0, &types.ShapeError{Partition: -1, Expected: 1, Actual: block,
			Msg: "no partitions or inversion parameters configured"}
	}
	if n%block != 0 {
		return 0, &types.ShapeError{Partition: -1, Expected: (n/block + 1) * block, Actual: n,
			Msg: fmt.Sprintf("vector length not divisible by NProc x parameters = %d", block)}
	}
	return n / block, nil
}

// Split rebuilds a field set from v. Inversion parameters are sliced out of
// the vector; every other schema field, coordinates included, comes from the
// fixed field cache.
func (vz *Vectorizer) Split(v []float64) (fs types.FieldSet, err error) {
	var (
		nrow int
		j    int
	)
	if nrow, err = vz.RowsPerPartition(len(v)); err != nil {
		return nil, err
	}
	fs = types.NewFieldSet()
	for _, key := range vz.Schema {
		parts := make([]types.Field, vz.NProc)
		if slices.Contains(vz.InversionParameters, key) {
			j = slices.Index(vz.InversionParameters, key)
			for iproc := 0; iproc < vz.NProc; iproc++ {
				imin := nrow*vz.NProc*j + nrow*iproc
				parts[iproc] = slices.Clone(v[imin : imin+nrow])
			}
		} else {
			for iproc := 0; iproc < vz.NProc; iproc++ {
				var f types.Field
				if f, err = vz.Cache.Load(key, iproc); err != nil {
					return nil, err
				}
				if len(f) != nrow {
					return nil, &types.ShapeError{Field: key, Partition: iproc, Expected: nrow,
						Actual: len(f), Msg: "cached field length differs from vector rows"}
				}
				parts[iproc] = f
			}
		}
		fs[key] = parts
	}
	vz.Log.Debug("split vector", "length", len(v), "rows", nrow)
	return
}

// ReadVector loads an optimization vector file, always raw float64.
func ReadVector(path string) ([]float64, error) {
	return readfiles.ReadArray(path, false)
}

// WriteVector stores an optimization vector file.
func WriteVector(path string, v []float64) error {
	return readfiles.WriteArray(path, v, false)
}

// InitializeIO prepares the on-disk state used by Split and the optimizer
// from the initial model fs: the mesh cache receives every field that is not
// inverted, and vectorPath receives Merge(fs). Either step is skipped when
// its target already exists, so a restarted workflow keeps its state.
func InitializeIO(ip *InputParameters.InversionParameters, fs types.FieldSet,
	cache *readfiles.MeshCache, vectorPath string, log *utils.Logger) (err error) {
	var (
		schema = ip.Schema()
	)
	if log == nil {
		log = utils.NoopLogger()
	}
	if err = fs.Validate(schema, ip.NProc); err != nil {
		return
	}
	if cache.Exists() {
		log.Info("mesh cache exists, leaving it untouched", "dir", cache.Dir())
	} else {
		for _, key := range ip.FixedParameters() {
			for iproc := 0; iproc < ip.NProc; iproc++ {
				if err = cache.Store(key, iproc, fs[key][iproc]); err != nil {
					return
				}
			}
		}
		log.Info("populated mesh cache", "dir", cache.Dir(), "fields", ip.FixedParameters(),
			"partitions", ip.NProc)
	}
	if vectorPath == "" {
		return nil
	}
	if _, err = os.Stat(vectorPath); err == nil {
		log.Info("initial vector exists, leaving it untouched", "file", vectorPath)
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("initial vector: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(vectorPath), 0o755); err != nil {
		return fmt.Errorf("initial vector: %w", err)
	}
	var v []float64
	if v, err = New(ip, cache).Merge(fs); err != nil {
		return
	}
	if err = WriteVector(vectorPath, v); err != nil {
		return
	}
	log.Info("wrote initial vector", "file", vectorPath, "length", len(v))
	return nil
}
