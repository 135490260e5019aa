package utils

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ForEachBounded runs work for every index in [0, count) using at most limit workers.
// Workers pull the next index from a shared cursor until it is exhausted. The first
// error returned by work cancels the context handed to the remaining calls.
func ForEachBounded(ctx context.Context, count int, limit int, work func(ctx context.Context, index int) error) error {
	if count <= 0 {
		return nil
	}
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	workerCount := limit
	if count < workerCount {
		workerCount = count
	}
	group, groupCtx := errgroup.WithContext(ctx)
	var cursor atomic.Int64
	for workerIndex := 0; workerIndex < workerCount; workerIndex++ {
		group.Go(func() error {
			for {
				index := int(cursor.Add(1) - 1)
				if index >= count {
					return nil
				}
				if err := groupCtx.Err(); err != nil {
					return err
				}
				if err := work(groupCtx, index); err != nil {
					return err
				}
			}
		})
	}
	return group.Wait()
}
