package readfiles

import (
	"context"

	"github.com/notargets/seisfields/types"
	"github.com/notargets/seisfields/utils"
)

// ReadPartitions loads dir/000000 .. dir/<nproc-1> and assembles them into one
// FieldSet. Partitions are read concurrently, each worker owning its own
// partition indices.
func ReadPartitions(ctx context.Context, dir string, schema types.Schema,
	nproc, parallelDegree int) (fs types.FieldSet, err error) {
	var (
		parts = make([]types.FieldSet, nproc)
	)
	err = utils.ForEachPartition(ctx, nproc, parallelDegree,
		func(_ context.Context, iproc int) (err error) {
			parts[iproc], err = ReadFieldTable(PartitionPath(dir, iproc), schema)
			return
		})
	if err != nil {
		return nil, err
	}
	fs = types.NewFieldSet()
	for iproc, p := range parts {
		fs.SetPartition(iproc, p)
	}
	return
}

// WritePartitions writes every partition of fs to dir/<partition>. Kind and
// shape are checked for all partitions before any file is written.
func WritePartitions(ctx context.Context, dir string, fs types.FieldSet, schema types.Schema,
	kind types.Kind, parallelDegree int) error {
	if !kind.Valid() {
		return &types.ValueError{Name: "kind", Value: kind, Msg: "must be model or kernel"}
	}
	nproc := fs.NProc()
	if err := fs.Validate(schema, nproc); err != nil {
		return err
	}
	return utils.ForEachPartition(ctx, nproc, parallelDegree,
		func(_ context.Context, iproc int) error {
			return WriteFieldTable(PartitionPath(dir, iproc), fs.Partition(iproc), schema, kind)
		})
}
