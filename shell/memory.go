package shell

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/memsim/mem/alloc"
)

func (s *Shell) initMemory(size uint64) {
	if err := s.session.Allocator().Init(size); err != nil {
		s.reportModelError(err)
		return
	}

	s.printf("Memory initialized: %d bytes\n", size)
}

func (s *Shell) malloc(size uint64) {
	a := s.session.Allocator()

	blockID, err := a.Allocate(size)

	switch {
	case errors.Is(err, alloc.ErrOutOfMemory):
		s.printf("Allocation failed: No suitable free block for size %d\n", size)
		return
	case errors.Is(err, alloc.ErrInvalidSize):
		s.printf("Error: Cannot allocate 0 bytes\n")
		return
	case err != nil:
		s.reportModelError(err)
		return
	}

	b, _ := a.Block(blockID)
	s.printf("Allocated block id=%d at address=0x%04x size=%d\n",
		blockID, b.Address, size)
}

func (s *Shell) free(blockID int32) {
	err := s.session.Allocator().Free(blockID)

	switch {
	case errors.Is(err, alloc.ErrNotFound):
		s.printf("Error: Block %d not found\n", blockID)
	case err != nil:
		s.reportModelError(err)
	default:
		s.printf("Block %d freed and merged\n", blockID)
	}
}

func (s *Shell) dumpMemory() {
	blocks := s.session.Allocator().Dump()
	if blocks == nil {
		s.printf("Memory not initialized\n")
		return
	}

	s.printf("\n=== Memory Dump ===\n")

	for _, b := range blocks {
		s.printf("[0x%04x - 0x%04x] ", b.Address, b.End())

		if b.IsFree {
			s.printf("FREE")
		} else {
			s.printf("USED (id=%d)", b.ID)
		}

		s.printf(" [%d bytes]\n", b.Size)
	}

	s.printf("==================\n\n")
}

func (s *Shell) memoryStats() {
	a := s.session.Allocator()
	if !a.IsInitialized() {
		s.printf("Memory not initialized\n")
		return
	}

	stats := a.Stats()

	s.printf("\n=== Memory Statistics ===\n")
	s.printf("Allocator:              %s\n", a.Strategy().DisplayName())
	s.printf("Total memory:           %d bytes\n", stats.TotalMemory)
	s.printf("Used memory:            %d bytes\n", stats.UsedMemory)
	s.printf("Free memory:            %d bytes\n", stats.FreeMemory)
	s.printf("Memory utilization:     %.1f%%\n", stats.Utilization())
	s.printf("Allocations:            %d\n", stats.NumAllocations)
	s.printf("Deallocations:          %d\n", stats.NumDeallocations)
	s.printf("Allocation failures:    %d\n", stats.AllocationFailures)
	s.printf("External fragmentation: %.1f%%\n", stats.ExternalFragmentation)
	s.printf("Free blocks:            %d (largest %d bytes)\n",
		stats.NumFreeBlocks, stats.LargestFreeBlock)
	s.printf("=========================\n\n")
}
