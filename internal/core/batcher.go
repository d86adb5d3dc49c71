package core

import "github.com/promptops/batchrelay/internal/domain/model"

// Chunk partitions the work items into consecutive batches of at
// most capacity items, preserving input order. Only the final batch may be
// shorter than capacity. Each batch's key is a pure function of the source
// identifier and the chunk ordinal, so the same logical batch keeps its key
// across restarts regardless of any external handle.
func Chunk(sourceID string, items []model.WorkItem, capacity int) []model.Batch {
	if capacity < 1 {
		capacity = 1
	}
	batches := make([]model.Batch, 0, (len(items)+capacity-1)/capacity)
	for start := 0; start < len(items); start += capacity {
		end := min(start+capacity, len(items))
		num := len(batches)
		batches = append(batches, model.Batch{
			Key:   model.BatchKey(sourceID, num),
			Num:   num,
			Items: items[start:end],
		})
	}
	return batches
}
