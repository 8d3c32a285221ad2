package readfiles

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/notargets/seisfields/types"
)

// PartitionFileName is the zero padded name used for every per-partition file.
func PartitionFileName(iproc int) string {
	return fmt.Sprintf("%06d", iproc)
}

func PartitionPath(dir string, iproc int) string {
	return filepath.Join(dir, PartitionFileName(iproc))
}

// CompressedSuffix marks zstd compressed cache arrays.
const CompressedSuffix = ".zst"

// MeshCache holds the fields that are not optimized (coordinates and fixed
// model parameters), one binary array per field and partition under
// <Root>/mesh/<field>/<partition>, with CompressedSuffix appended when
// Compress is set. It is written once at initialization.
type MeshCache struct {
	Root     string
	Compress bool
}

func NewMeshCache(root string, compress bool) *MeshCache {
	return &MeshCache{Root: root, Compress: compress}
}

func (mc *MeshCache) Dir() string {
	return filepath.Join(mc.Root, "mesh")
}

func (mc *MeshCache) Path(name string, iproc int) (path string) {
	path = PartitionPath(filepath.Join(mc.Dir(), name), iproc)
	if mc.Compress {
		path += CompressedSuffix
	}
	return
}

// Exists reports whether the cache directory has been created.
func (mc *MeshCache) Exists() bool {
	fi, err := os.Stat(mc.Dir())
	return err == nil && fi.IsDir()
}

func (mc *MeshCache) Load(name string, iproc int) (types.Field, error) {
	data, err := ReadArray(mc.Path(name, iproc), mc.Compress)
	if err != nil {
		return nil, fmt.Errorf("mesh cache %s[%d]: %w", name, iproc, err)
	}
	return data, nil
}

func (mc *MeshCache) Store(name string, iproc int, f types.Field) error {
	if err := os.MkdirAll(filepath.Join(mc.Dir(), name), 0o755); err != nil {
		return fmt.Errorf("mesh cache %s: %w", name, err)
	}
	return WriteArray(mc.Path(name, iproc), f, mc.Compress)
}
