package readfiles

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/notargets/seisfields/types"
)

// Values are written with 10 significant digits after the point; this is the
// precision limit of a save/load round trip.
const valueFormat = "%16.10e"

// ReadFieldTable reads one partition of a SPECFEM2D model or kernel table.
// The table has either len(schema) columns, or len(schema)+1 columns whose
// first column is an id/placeholder that is skipped. Remaining columns map
// onto the schema in order.
func ReadFieldTable(path string, schema types.Schema) (fs types.FieldSet, err error) {
	var (
		file *os.File
	)
	if file, err = os.Open(path); err != nil {
		return nil, fmt.Errorf("open field table: %w", err)
	}
	defer file.Close()
	return ReadFieldTableFrom(file, path, schema)
}

// ReadFieldTableFrom parses a table from r; name is used in error messages.
func ReadFieldTableFrom(r io.Reader, name string, schema types.Schema) (fs types.FieldSet, err error) {
	var (
		scanner = bufio.NewScanner(r)
		ncol    int
		ioff    int
		lineNum int
		cols    = make([][]float64, len(schema))
	)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if ncol == 0 {
			ncol = len(fields)
			switch ncol {
			case len(schema):
				ioff = 0
			case len(schema) + 1:
				ioff = 1
			default:
				return nil, &types.FormatError{Path: name, Line: lineNum, Columns: ncol,
					Msg: fmt.Sprintf("wrong number of columns, want %d or %d", len(schema), len(schema)+1)}
			}
		} else if len(fields) != ncol {
			return nil, &types.FormatError{Path: name, Line: lineNum, Columns: len(fields),
				Msg: fmt.Sprintf("ragged row, previous rows have %d columns", ncol)}
		}
		for icol := range schema {
			var val float64
			token := fields[icol+ioff]
			if val, err = strconv.ParseFloat(token, 64); err != nil {
				return nil, &types.FormatError{Path: name, Line: lineNum,
					Msg: fmt.Sprintf("column %d: unable to parse %q", icol+ioff+1, token)}
			}
			cols[icol] = append(cols[icol], val)
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("read field table %s: %w", name, err)
	}
	if ncol == 0 {
		return nil, &types.FormatError{Path: name, Msg: "no data rows"}
	}
	fs = types.NewFieldSet()
	for icol, key := range schema {
		fs[key] = []types.Field{cols[icol]}
	}
	return
}

// WriteFieldTable writes partition 0 of fs as a model (placeholder column of
// zeros followed by the schema fields) or kernel (schema fields only) table.
// The kind and shape are checked before the file is touched, and the file is
// replaced atomically.
func WriteFieldTable(path string, fs types.FieldSet, schema types.Schema, kind types.Kind) error {
	if err := checkWritable(fs, schema, kind); err != nil {
		return err
	}
	return WriteFileStaged(path, func(w io.Writer) error {
		return writeTable(w, fs, schema, kind)
	})
}

// WriteFieldTableTo writes the table to w without staging.
func WriteFieldTableTo(w io.Writer, fs types.FieldSet, schema types.Schema, kind types.Kind) error {
	if err := checkWritable(fs, schema, kind); err != nil {
		return err
	}
	return writeTable(w, fs, schema, kind)
}

func checkWritable(fs types.FieldSet, schema types.Schema, kind types.Kind) error {
	if !kind.Valid() {
		return &types.ValueError{Name: "kind", Value: kind, Msg: "must be model or kernel"}
	}
	return fs.Partition(0).Validate(schema, 1)
}

func writeTable(w io.Writer, fs types.FieldSet, schema types.Schema, kind types.Kind) (err error) {
	var (
		bw   = bufio.NewWriter(w)
		nrow = fs.Rows(schema, 0)
		row  = make([]string, 0, kind.Columns(schema))
	)
	for i := 0; i < nrow; i++ {
		row = row[:0]
		if kind == types.KindModel {
			row = append(row, fmt.Sprintf(valueFormat, 0.))
		}
		for _, key := range schema {
			row = append(row, fmt.Sprintf(valueFormat, fs[key][0][i]))
		}
		if _, err = bw.WriteString(strings.Join(row, " ") + "\n"); err != nil {
			return
		}
	}
	return bw.Flush()
}
