package alloc

// Stats is a snapshot of the allocator's bookkeeping. It is recomputed after
// every operation that changes the block chain.
type Stats struct {
	TotalMemory uint64 `json:"total_memory"`
	UsedMemory  uint64 `json:"used_memory"`
	FreeMemory  uint64 `json:"free_memory"`

	NumAllocations     uint64 `json:"num_allocations"`
	NumDeallocations   uint64 `json:"num_deallocations"`
	AllocationFailures uint64 `json:"allocation_failures"`

	// ExternalFragmentation is the share of free memory, in percent, that is
	// outside the largest free block. Every free byte counts, no matter how
	// small the block holding it is.
	ExternalFragmentation float64 `json:"external_fragmentation"`

	NumFreeBlocks    int    `json:"num_free_blocks"`
	NumUsedBlocks    int    `json:"num_used_blocks"`
	LargestFreeBlock uint64 `json:"largest_free_block"`
}

// Utilization returns the used share of the memory in percent.
func (s Stats) Utilization() float64 {
	if s.TotalMemory == 0 {
		return 0
	}

	return float64(s.UsedMemory) / float64(s.TotalMemory) * 100
}

// BlockInfo describes one block of the chain.
type BlockInfo struct {
	Address uint64 `json:"address"`
	Size    uint64 `json:"size"`
	IsFree  bool   `json:"is_free"`

	// ID is 0 for free blocks.
	ID int32 `json:"id,omitempty"`
}

// End returns the last address covered by the block.
func (b BlockInfo) End() uint64 {
	return b.Address + b.Size - 1
}
