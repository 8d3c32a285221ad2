package utils

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// PartitionMap spreads MaxIndex mesh partitions over ParallelDegree workers.
// Each worker owns the contiguous range Partitions[n] = [begin, end).
type PartitionMap struct {
	MaxIndex       int // MaxIndex is partitioned into ParallelDegree partitions
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of partitions
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	if ParallelDegree > maxIndex {
		ParallelDegree = maxIndex
	}
	if ParallelDegree < 1 {
		ParallelDegree = 1
	}
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

// GetBucketRange is the [kMin, kMax) range of partitions owned by worker
// bucketNum.
func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	// Splits one dimension into ParallelDegree pieces, with a maximum imbalance of one item
	var (
		Npart            = pm.MaxIndex / (pm.ParallelDegree)
		startAdd, endAdd int
		remainder        int
	)
	remainder = pm.MaxIndex % pm.ParallelDegree
	if remainder != 0 { // spread the remainder over the first chunks evenly
		if threadNum+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}

// DefaultParallelDegree is used when the configuration leaves it unset.
func DefaultParallelDegree() int {
	return runtime.NumCPU()
}

// ForEachPartition calls fn once for every partition index in [0, nproc).
// One goroutine is started per PartitionMap bucket and visits only the
// indices of its own bucket, in order. The first error stops the remaining
// work and is returned.
func ForEachPartition(ctx context.Context, nproc, parallelDegree int,
	fn func(ctx context.Context, iproc int) error) error {
	if nproc <= 0 {
		return nil
	}
	if parallelDegree <= 0 {
		parallelDegree = DefaultParallelDegree()
	}
	var (
		pm      = NewPartitionMap(parallelDegree, nproc)
		g, gctx = errgroup.WithContext(ctx)
	)
	for bn := 0; bn < pm.ParallelDegree; bn++ {
		kMin, kMax := pm.GetBucketRange(bn)
		g.Go(func() error {
			for iproc := kMin; iproc < kMax; iproc++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := fn(gctx, iproc); err != nil {
					return fmt.Errorf("partition %d: %w", iproc, err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}
