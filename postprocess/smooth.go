package postprocess

import (
	"math"
	"slices"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/seisfields/InputParameters"
	"github.com/notargets/seisfields/types"
	"github.com/notargets/seisfields/utils"
)

// Smoother applies Gaussian smoothing to the inversion parameters of a field
// set, using the x and z coordinate fields of each partition as node
// locations.
type Smoother struct {
	Schema              types.Schema
	InversionParameters []string
	// NX and NZ override the automatic grid resolution per axis when > 0.
	NX, NZ int
	Kind   types.Kind // Layout used by SmoothFile when rewriting tables
	Log    *utils.Logger
}

func NewSmoother(ip *InputParameters.InversionParameters) *Smoother {
	return &Smoother{
		Schema:              ip.Schema(),
		InversionParameters: slices.Clone(ip.InversionParameters),
		NX:                  ip.Smooth.NX,
		NZ:                  ip.Smooth.NZ,
		Kind:                types.KindKernel,
		Log:                 utils.NoopLogger(),
	}
}

// GridResolution computes nx = nz = round(sqrt(N*lx/lz)) for N nodes spanning
// lx by lz. Both axes use the same lx/lz ratio. A degenerate extent falls back
// to round(sqrt(N)), and the result is never below 1.
func GridResolution(x, z []float64) (nx, nz int) {
	var (
		nn = float64(len(x))
	)
	if len(x) == 0 {
		return 1, 1
	}
	lx := floats.Max(x) - floats.Min(x)
	lz := floats.Max(z) - floats.Min(z)
	n := math.Round(math.Sqrt(nn))
	if lx > 0 && lz > 0 {
		n = math.Round(math.Sqrt(nn * lx / lz))
	}
	nx = max(1, int(n))
	nz = max(1, int(n))
	return
}

func (s *Smoother) resolution(x, z []float64) (nx, nz int) {
	nx, nz = GridResolution(x, z)
	if s.NX > 0 {
		nx = s.NX
	}
	if s.NZ > 0 {
		nz = s.NZ
	}
	return
}

// Smooth returns a copy of fs whose inversion parameters have been smoothed
// with a Gaussian of standard deviation span, in coordinate units. A span of
// zero returns fs itself.
func (s *Smoother) Smooth(fs types.FieldSet, span float64) (out types.FieldSet, err error) {
	if span == 0 {
		return fs, nil
	}
	if span < 0 || math.IsNaN(span) || math.IsInf(span, 0) {
		return nil, &types.ValueError{Name: "span", Value: span, Msg: "must be a finite value >= 0"}
	}
	var (
		nproc = fs.NProc()
	)
	if err = requireFields(fs, nproc, append([]string{types.FieldX, types.FieldZ}, s.InversionParameters...)); err != nil {
		return nil, err
	}
	out = fs.Copy()
	for iproc := 0; iproc < nproc; iproc++ {
		var (
			x, z   = fs[types.FieldX][iproc], fs[types.FieldZ][iproc]
			nx, nz = s.resolution(x, z)
			log    = s.Log.WithPartition(iproc)
		)
		if len(z) != len(x) {
			return nil, &types.ShapeError{Field: types.FieldZ, Partition: iproc,
				Expected: len(x), Actual: len(z), Msg: "coordinate length mismatch"}
		}
		if len(x) == 0 {
			continue
		}
		op := newGridSmoother(x, z, nx, nz, span)
		for _, key := range s.InversionParameters {
			f := fs[key][iproc]
			if len(f) != len(x) {
				return nil, &types.ShapeError{Field: key, Partition: iproc,
					Expected: len(x), Actual: len(f), Msg: "field length differs from coordinates"}
			}
			if i := utils.FirstNonFinite(f); i >= 0 {
				return nil, &types.ValueError{Name: key, Value: f[i],
					Msg: "non-finite value in field to smooth"}
			}
			out[key][iproc] = op.Apply(f)
		}
		log.Debug("smoothed partition", "nodes", len(x), "nx", nx, "nz", nz, "span", span)
	}
	return
}

func requireFields(fs types.FieldSet, nproc int, keys []string) error {
	for _, key := range keys {
		if parts, ok := fs[key]; !ok || len(parts) != nproc {
			return &types.ShapeError{Field: key, Partition: -1, Expected: nproc, Actual: len(parts),
				Msg: "field missing or wrong partition count"}
		}
	}
	return nil
}

// gridSmoother smooths scattered node values by normalized convolution:
// node values are scattered onto a regular nx by nz grid with bilinear
// weights W, the grid is convolved with a separable Gaussian K, and the
// result is gathered back with W and divided by the same operator applied to
// the weights alone, W K W^T v / W K W^T 1.
type gridSmoother struct {
	nodes, nx, nz int
	W             *sparse.CSR // nodes x (nz*nx)
	Kx, Kz        *mat.Dense
	den           []float64 // W K W^T 1
}

func newGridSmoother(x, z []float64, nx, nz int, span float64) (gs *gridSmoother) {
	var (
		xmin, dx = gridAxis(x, nx)
		zmin, dz = gridAxis(z, nz)
		dok      = sparse.NewDOK(len(x), nx*nz)
	)
	gs = &gridSmoother{
		nodes: len(x),
		nx:    nx,
		nz:    nz,
		Kx:    gaussianKernel(nx, dx, span),
		Kz:    gaussianKernel(nz, dz, span),
	}
	for n := range x {
		ix, wx := bilinear(x[n], xmin, dx, nx)
		iz, wz := bilinear(z[n], zmin, dz, nz)
		for a := 0; a < 2; a++ {
			for b := 0; b < 2; b++ {
				w := wz[a] * wx[b]
				if w == 0 {
					continue
				}
				g := iz[a]*nx + ix[b]
				dok.Set(n, g, dok.At(n, g)+w)
			}
		}
	}
	gs.W = dok.ToCSR()
	gs.den = gs.convolve(utils.ConstArray(len(x), 1))
	return
}

// Apply returns the smoothed values of f at the nodes.
func (gs *gridSmoother) Apply(f []float64) (r []float64) {
	r = gs.convolve(f)
	for i := range r {
		r[i] /= gs.den[i]
	}
	return
}

// convolve computes W K W^T f.
func (gs *gridSmoother) convolve(f []float64) (r []float64) {
	var tmp, sm mat.Dense
	grid := make([]float64, gs.nx*gs.nz)
	gs.W.DoNonZero(func(i, j int, w float64) {
		grid[j] += w * f[i]
	})
	tmp.Mul(gs.Kz, mat.NewDense(gs.nz, gs.nx, grid))
	sm.Mul(&tmp, gs.Kx)
	r = make([]float64, gs.nodes)
	gs.W.DoNonZero(func(i, j int, w float64) {
		r[i] += w * sm.At(j/gs.nx, j%gs.nx)
	})
	return
}

func gridAxis(c []float64, n int) (cmin, h float64) {
	cmin = floats.Min(c)
	if n > 1 {
		h = (floats.Max(c) - cmin) / float64(n-1)
	}
	return
}

// bilinear returns the two grid indices bracketing c and their weights.
func bilinear(c, cmin, h float64, n int) (idx [2]int, w [2]float64) {
	if n == 1 || h == 0 {
		return [2]int{0, 0}, [2]float64{1, 0}
	}
	t := math.Min(math.Max((c-cmin)/h, 0), float64(n-1))
	i0 := min(int(math.Floor(t)), n-2)
	frac := t - float64(i0)
	return [2]int{i0, i0 + 1}, [2]float64{1 - frac, frac}
}

// gaussianKernel is the symmetric n x n matrix of Gaussian weights between
// grid points spaced h apart, standard deviation sigma. A zero spacing gives
// the identity.
func gaussianKernel(n int, h, sigma float64) (K *mat.Dense) {
	K = mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		K.Set(i, i, 1)
		if h == 0 {
			continue
		}
		for j := 0; j < i; j++ {
			d := float64(i-j) * h / sigma
			w := math.Exp(-0.5 * d * d)
			K.Set(i, j, w)
			K.Set(j, i, w)
		}
	}
	return
}
