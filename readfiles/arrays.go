package readfiles

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/exp/mmap"

	"github.com/notargets/seisfields/types"
)

// WriteArray stores data as a flat little endian float64 array, optionally as
// a single zstd frame. The reader has to be told which of the two it gets.
func WriteArray(path string, data []float64, compress bool) error {
	return WriteFileStaged(path, func(w io.Writer) (err error) {
		if !compress {
			return binary.Write(w, binary.LittleEndian, data)
		}
		var enc *zstd.Encoder
		if enc, err = zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault)); err != nil {
			return fmt.Errorf("create compressor: %w", err)
		}
		if err = binary.Write(enc, binary.LittleEndian, data); err != nil {
			_ = enc.Close()
			return
		}
		return enc.Close()
	})
}

// ReadArray memory maps path and decodes the float64 array it holds, after
// zstd decompression when compressed is set.
func ReadArray(path string, compressed bool) (data []float64, err error) {
	var (
		r *mmap.ReaderAt
	)
	if r, err = mmap.Open(path); err != nil {
		return nil, fmt.Errorf("map array: %w", err)
	}
	defer r.Close()

	raw := make([]byte, r.Len())
	if len(raw) > 0 {
		if _, err = r.ReadAt(raw, 0); err != nil && err != io.EOF {
			return nil, fmt.Errorf("read array %s: %w", path, err)
		}
	}
	if compressed {
		var dec *zstd.Decoder
		if dec, err = zstd.NewReader(nil); err != nil {
			return nil, fmt.Errorf("create decompressor: %w", err)
		}
		defer dec.Close()
		if raw, err = dec.DecodeAll(raw, nil); err != nil {
			return nil, &types.FormatError{Path: path, Msg: "corrupt zstd frame: " + err.Error()}
		}
	}
	return decodeFloat64s(path, raw)
}

func decodeFloat64s(path string, raw []byte) (data []float64, err error) {
	if len(raw)%8 != 0 {
		return nil, &types.FormatError{Path: path,
			Msg: fmt.Sprintf("array size %d bytes is not a multiple of 8", len(raw))}
	}
	data = make([]float64, len(raw)/8)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return
}
