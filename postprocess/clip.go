package postprocess

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/seisfields/InputParameters"
	"github.com/notargets/seisfields/types"
	"github.com/notargets/seisfields/utils"
)

// Clipper clamps each inversion parameter to a fraction of its own extremes.
type Clipper struct {
	Schema              types.Schema
	InversionParameters []string
	Kind                types.Kind
	Log                 *utils.Logger
}

func NewClipper(ip *InputParameters.InversionParameters) *Clipper {
	return &Clipper{
		Schema:              ip.Schema(),
		InversionParameters: slices.Clone(ip.InversionParameters),
		Kind:                types.KindKernel,
		Log:                 utils.NoopLogger(),
	}
}

// Clip returns a copy of fs where every value v of an inversion parameter on
// a partition is clamped to [thresh*min, thresh*max] of that partition's
// values. thresh >= 1 returns fs itself.
func (c *Clipper) Clip(fs types.FieldSet, thresh float64) (out types.FieldSet, err error) {
	if thresh >= 1 {
		return fs, nil
	}
	if thresh < 0 || math.IsNaN(thresh) {
		return nil, &types.ValueError{Name: "thresh", Value: thresh, Msg: "must be >= 0"}
	}
	var (
		nproc = fs.NProc()
	)
	if err = requireFields(fs, nproc, c.InversionParameters); err != nil {
		return nil, err
	}
	out = fs.Copy()
	for _, key := range c.InversionParameters {
		for iproc, f := range out[key] {
			if len(f) == 0 {
				continue
			}
			if i := utils.FirstNonFinite(f); i >= 0 {
				return nil, &types.ValueError{Name: key, Value: f[i],
					Msg: "non-finite value in field to clip"}
			}
			lo, hi := thresh*floats.Min(f), thresh*floats.Max(f)
			var nclip int
			for i, v := range f {
				if cv := math.Min(math.Max(v, lo), hi); cv != v {
					f[i] = cv
					nclip++
				}
			}
			c.Log.WithPartition(iproc).WithField(key).Debug("clipped field",
				"lo", lo, "hi", hi, "clipped", nclip, "nodes", len(f))
		}
	}
	return
}
