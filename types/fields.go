package types

import (
	"fmt"
	"slices"
)

const (
	FieldX   = "x"
	FieldZ   = "z"
	FieldRho = "rho"
	FieldVp  = "vp"
	FieldVs  = "vs"
)

// Schema is the ordered list of field names making up one row of a model or
// kernel table. Every component derives column order from it.
type Schema []string

// DefaultSchema is the SPECFEM2D layout: two coordinates followed by density
// and the two wave speeds.
func DefaultSchema() Schema {
	return Schema{FieldX, FieldZ, FieldRho, FieldVp, FieldVs}
}

// Parameters returns the schema fields that are not mesh coordinates.
func (s Schema) Parameters() (params []string) {
	for _, name := range s {
		if !IsCoordinate(name) {
			params = append(params, name)
		}
	}
	return
}

func IsCoordinate(name string) bool {
	return name == FieldX || name == FieldZ
}

// Field holds the node values of one named quantity on one partition.
type Field []float64

func (f Field) Copy() Field {
	return slices.Clone(f)
}

// FieldSet maps a field name to its per-partition arrays, indexed by
// partition number.
type FieldSet map[string][]Field

func NewFieldSet() FieldSet {
	return make(FieldSet)
}

// NProc is the largest partition count of any field in the set.
func (fs FieldSet) NProc() (nproc int) {
	for _, parts := range fs {
		nproc = max(nproc, len(parts))
	}
	return
}

// Rows returns the node count of partition iproc, taken from the first schema
// field present.
func (fs FieldSet) Rows(schema Schema, iproc int) int {
	for _, name := range schema {
		if parts, ok := fs[name]; ok && iproc < len(parts) {
			return len(parts[iproc])
		}
	}
	return 0
}

func (fs FieldSet) Copy() (c FieldSet) {
	c = make(FieldSet, len(fs))
	for name, parts := range fs {
		cp := make([]Field, len(parts))
		for i, f := range parts {
			cp[i] = f.Copy()
		}
		c[name] = cp
	}
	return
}

// Partition extracts the single-partition FieldSet for iproc.
func (fs FieldSet) Partition(iproc int) (p FieldSet) {
	p = make(FieldSet, len(fs))
	for name, parts := range fs {
		if iproc < len(parts) {
			p[name] = []Field{parts[iproc]}
		}
	}
	return
}

// SetPartition installs the fields of the single-partition set p as
// partition iproc of fs, growing the per-field slices as needed.
func (fs FieldSet) SetPartition(iproc int, p FieldSet) {
	for name, parts := range p {
		if len(parts) == 0 {
			continue
		}
		cur := fs[name]
		if len(cur) <= iproc {
			cur = append(cur, make([]Field, iproc+1-len(cur))...)
		}
		cur[iproc] = parts[0]
		fs[name] = cur
	}
}

// Validate checks that every schema field is present with nproc partitions
// and that, within each partition, all fields have the same length.
func (fs FieldSet) Validate(schema Schema, nproc int) error {
	if len(schema) == 0 {
		return nil
	}
	for _, name := range schema {
		parts, ok := fs[name]
		if !ok {
			return &ShapeError{Field: name, Partition: -1, Expected: nproc,
				Msg: "missing field"}
		}
		if len(parts) != nproc {
			return &ShapeError{Field: name, Partition: -1, Expected: nproc, Actual: len(parts),
				Msg: "wrong partition count"}
		}
	}
	for iproc := 0; iproc < nproc; iproc++ {
		var (
			rows = len(fs[schema[0]][iproc])
		)
		for _, name := range schema[1:] {
			if n := len(fs[name][iproc]); n != rows {
				return &ShapeError{Field: name, Partition: iproc, Expected: rows, Actual: n,
					Msg: fmt.Sprintf("row count differs from field %q", schema[0])}
			}
		}
	}
	return nil
}

// Kind selects the column layout used when writing a table.
type Kind uint8

const (
	KindModel Kind = iota
	KindKernel
)

func (k Kind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindKernel:
		return "kernel"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Columns is the on-disk column count for the kind.
func (k Kind) Columns(schema Schema) int {
	if k == KindModel {
		return len(schema) + 1
	}
	return len(schema)
}

func (k Kind) Valid() bool {
	return k == KindModel || k == KindKernel
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "model":
		return KindModel, nil
	case "kernel":
		return KindKernel, nil
	}
	return 0, &ValueError{Name: "kind", Value: s, Msg: "must be model or kernel"}
}
