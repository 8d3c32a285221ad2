package InputParameters

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/ghodss/yaml"

	"github.com/notargets/seisfields/types"
)

// Paths locates the on-disk state shared between solver and optimizer runs.
type Paths struct {
	Global    string `yaml:"Global"`    // Root of the fixed-field mesh cache
	Optimize  string `yaml:"Optimize"`  // Optimizer working directory holding m_new
	ModelInit string `yaml:"ModelInit"` // Directory of per-partition initial model tables
}

type SmoothParameters struct {
	Span float64 `yaml:"Span"`
	NX   int     `yaml:"NX"` // Zero selects the automatic grid resolution
	NZ   int     `yaml:"NZ"`
}

// Parameters obtained from the YAML input file
type InversionParameters struct {
	Title               string           `yaml:"Title"`
	NProc               int              `yaml:"NProc"`
	ModelParameters     []string         `yaml:"ModelParameters"`
	InversionParameters []string         `yaml:"InversionParameters"`
	Paths               Paths            `yaml:"Paths"`
	Smooth              SmoothParameters `yaml:"Smooth"`
	ClipThresh          float64          `yaml:"ClipThresh"`
	ParallelDegree      int              `yaml:"ParallelDegree"`
	CompressCache       bool             `yaml:"CompressCache"`
}

// NewInversionParameters returns the SPECFEM2D defaults: density and both wave
// speeds as model parameters, shear velocity inverted, no post-processing.
func NewInversionParameters() *InversionParameters {
	return &InversionParameters{
		NProc:               1,
		ModelParameters:     []string{types.FieldRho, types.FieldVp, types.FieldVs},
		InversionParameters: []string{types.FieldVs},
		ClipThresh:          1,
	}
}

func (ip *InversionParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

// Schema is the table column order: coordinates, then model parameters in
// declared order.
func (ip *InversionParameters) Schema() types.Schema {
	s := types.Schema{types.FieldX, types.FieldZ}
	return append(s, ip.ModelParameters...)
}

// FixedParameters lists the schema fields served from the mesh cache rather
// than the optimization vector, in schema order.
func (ip *InversionParameters) FixedParameters() (fixed []string) {
	for _, name := range ip.Schema() {
		if !slices.Contains(ip.InversionParameters, name) {
			fixed = append(fixed, name)
		}
	}
	return
}

// VectorPath is where the optimizer expects the current model vector.
func (ip *InversionParameters) VectorPath() string {
	return filepath.Join(ip.Paths.Optimize, "m_new")
}

func (ip *InversionParameters) Validate() error {
	if ip.NProc < 1 {
		return &types.ValueError{Name: "NProc", Value: ip.NProc, Msg: "must be at least 1"}
	}
	if len(ip.InversionParameters) == 0 {
		return &types.ValueError{Name: "InversionParameters", Value: ip.InversionParameters,
			Msg: "at least one parameter must be inverted"}
	}
	seen := make(map[string]bool)
	for _, name := range ip.Schema() {
		if seen[name] {
			return &types.ValueError{Name: "ModelParameters", Value: name, Msg: "duplicate field"}
		}
		seen[name] = true
	}
	for i, name := range ip.InversionParameters {
		if types.IsCoordinate(name) {
			return &types.ValueError{Name: "InversionParameters", Value: name,
				Msg: "coordinates cannot be inverted"}
		}
		if !slices.Contains(ip.Schema().Parameters(), name) {
			return &types.ValueError{Name: "InversionParameters", Value: name,
				Msg: "not a model parameter"}
		}
		if slices.Contains(ip.InversionParameters[:i], name) {
			return &types.ValueError{Name: "InversionParameters", Value: name, Msg: "duplicate"}
		}
	}
	if ip.Smooth.Span < 0 {
		return &types.ValueError{Name: "Smooth.Span", Value: ip.Smooth.Span, Msg: "must be >= 0"}
	}
	if ip.Smooth.NX < 0 || ip.Smooth.NZ < 0 {
		return &types.ValueError{Name: "Smooth.NX/NZ", Value: [2]int{ip.Smooth.NX, ip.Smooth.NZ},
			Msg: "must be >= 0"}
	}
	if ip.ClipThresh < 0 {
		return &types.ValueError{Name: "ClipThresh", Value: ip.ClipThresh, Msg: "must be >= 0"}
	}
	return nil
}

func (ip *InversionParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%d]\t\t\t= NProc\n", ip.NProc)
	fmt.Printf("%v\t= Model Parameters\n", ip.ModelParameters)
	fmt.Printf("%v\t\t\t= Inversion Parameters\n", ip.InversionParameters)
	fmt.Printf("[%s]\t= Global Path\n", ip.Paths.Global)
	fmt.Printf("[%s]\t= Optimize Path\n", ip.Paths.Optimize)
	fmt.Printf("[%s]\t= Initial Model Path\n", ip.Paths.ModelInit)
	fmt.Printf("%8.5f\t\t= Smoothing Span\n", ip.Smooth.Span)
	fmt.Printf("[%d,%d]\t\t\t= Smoothing Grid (0 = auto)\n", ip.Smooth.NX, ip.Smooth.NZ)
	fmt.Printf("%8.5f\t\t= Clip Threshold\n", ip.ClipThresh)
	fmt.Printf("[%d]\t\t\t= Parallel Degree\n", ip.ParallelDegree)
	fmt.Printf("[%t]\t\t\t= Compress Cache\n", ip.CompressCache)
}
