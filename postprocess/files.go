package postprocess

import (
	"context"
	"io"
	"path/filepath"

	"github.com/notargets/seisfields/readfiles"
	"github.com/notargets/seisfields/types"
	"github.com/notargets/seisfields/utils"
)

const (
	NoSmoothTag = "_nosmooth"
	NoClipTag   = "_noclip"
)

// ArchivePath is where the unprocessed version of path is kept:
// <dir>/<tag>/<base>.
func ArchivePath(path, tag string) string {
	return filepath.Join(filepath.Dir(path), tag, filepath.Base(path))
}

// rewriteTable loads path, applies process and, when process reports a
// change, installs the result while archiving the original under tag.
func rewriteTable(path, tag string, schema types.Schema, kind types.Kind, log *utils.Logger,
	process func(fs types.FieldSet) (types.FieldSet, bool, error)) (err error) {
	var (
		fs, out types.FieldSet
		changed bool
	)
	if !kind.Valid() {
		return &types.ValueError{Name: "kind", Value: kind, Msg: "must be model or kernel"}
	}
	if fs, err = readfiles.ReadFieldTable(path, schema); err != nil {
		return
	}
	if out, changed, err = process(fs); err != nil || !changed {
		return
	}
	if err = out.Validate(schema, 1); err != nil {
		return
	}
	archive := ArchivePath(path, tag)
	if err = readfiles.ReplaceWithArchive(path, archive, func(w io.Writer) error {
		return readfiles.WriteFieldTableTo(w, out, schema, kind)
	}); err != nil {
		return
	}
	log.WithFile(path).Debug("rewrote table", "archive", archive)
	return
}

// SmoothFile smooths the table at path in place, keeping the original under
// the _nosmooth archive. Nothing is written when span is zero.
func (s *Smoother) SmoothFile(path string, span float64) error {
	return rewriteTable(path, NoSmoothTag, s.Schema, s.Kind, s.Log,
		func(fs types.FieldSet) (out types.FieldSet, changed bool, err error) {
			if span == 0 {
				return fs, false, nil
			}
			out, err = s.Smooth(fs, span)
			return out, err == nil, err
		})
}

// SmoothPartitions runs SmoothFile on dir/000000 .. dir/<nproc-1>.
func (s *Smoother) SmoothPartitions(ctx context.Context, dir string, nproc, parallelDegree int,
	span float64) error {
	return utils.ForEachPartition(ctx, nproc, parallelDegree, func(_ context.Context, iproc int) error {
		return s.SmoothFile(readfiles.PartitionPath(dir, iproc), span)
	})
}

// ClipFile clips the table at path in place, keeping the original under the
// _noclip archive. Nothing is written when thresh >= 1.
func (c *Clipper) ClipFile(path string, thresh float64) error {
	return rewriteTable(path, NoClipTag, c.Schema, c.Kind, c.Log,
		func(fs types.FieldSet) (out types.FieldSet, changed bool, err error) {
			if thresh >= 1 {
				return fs, false, nil
			}
			out, err = c.Clip(fs, thresh)
			return out, err == nil, err
		})
}

// ClipPartitions runs ClipFile on dir/000000 .. dir/<nproc-1>.
func (c *Clipper) ClipPartitions(ctx context.Context, dir string, nproc, parallelDegree int,
	thresh float64) error {
	return utils.ForEachPartition(ctx, nproc, parallelDegree, func(_ context.Context, iproc int) error {
		return c.ClipFile(readfiles.PartitionPath(dir, iproc), thresh)
	})
}
