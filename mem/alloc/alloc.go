// Package alloc simulates a dynamic physical memory allocator.
//
// The simulated memory is a chain of contiguous blocks covering the address
// range [0, size). Allocating splits a free block chosen by the placement
// strategy; freeing merges the released block with its free neighbours so
// that two free blocks are never adjacent.
package alloc

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/sarchlab/memsim/sim/hooking"
)

// Positions where the Allocator invokes its hooks.
var (
	// HookPosInit is invoked after the memory is (re)initialized. The detail
	// is the total size.
	HookPosInit = &hooking.HookPos{Name: "Alloc.Init"}

	// HookPosAllocate is invoked after a successful allocation. The item is
	// the allocated BlockInfo and the detail is the requested size.
	HookPosAllocate = &hooking.HookPos{Name: "Alloc.Allocate"}

	// HookPosAllocFailure is invoked when no free block can serve a request.
	// The detail is the requested size.
	HookPosAllocFailure = &hooking.HookPos{Name: "Alloc.Failure"}

	// HookPosFree is invoked after a block is freed. The item is the freed
	// BlockInfo and the detail is the free BlockInfo left after merging.
	HookPosFree = &hooking.HookPos{Name: "Alloc.Free"}
)

// Allocator manages the simulated memory. It is safe for concurrent use; each
// operation holds the allocator's lock for its whole duration. Hooks are
// invoked after the lock is released.
type Allocator struct {
	hooking.HookableBase

	lock     sync.Mutex
	blocks   chain
	byID     map[int32]int
	total    uint64
	strategy Strategy
	nextID   int32
	stats    Stats
}

// New creates an allocator that places blocks with the given strategy. The
// memory must be initialized with Init before use.
func New(strategy Strategy) *Allocator {
	mustBeValidStrategy(strategy)

	return &Allocator{
		blocks:   newChain(),
		byID:     make(map[int32]int),
		strategy: strategy,
		nextID:   1,
	}
}

func mustBeValidStrategy(s Strategy) {
	if !s.valid() {
		panic(fmt.Sprintf("invalid allocation strategy %d", int(s)))
	}
}

// Init discards all blocks and creates one free block covering [0, size).
// Block ids restart from 1 and all counters are cleared.
func (a *Allocator) Init(size uint64) error {
	if size == 0 {
		return errors.Wrap(ErrInvalidSize, "memory size must be positive")
	}

	a.lock.Lock()
	a.blocks.reset(size)
	a.byID = make(map[int32]int)
	a.total = size
	a.nextID = 1
	a.stats = Stats{}
	a.updateStats()
	a.lock.Unlock()

	a.InvokeHook(hooking.HookCtx{
		Domain: a,
		Pos:    HookPosInit,
		Detail: size,
	})

	return nil
}

// IsInitialized tells if Init has been called.
func (a *Allocator) IsInitialized() bool {
	a.lock.Lock()
	defer a.lock.Unlock()

	return !a.blocks.empty()
}

// SetStrategy changes the placement strategy used by later allocations.
func (a *Allocator) SetStrategy(s Strategy) {
	mustBeValidStrategy(s)

	a.lock.Lock()
	defer a.lock.Unlock()

	a.strategy = s
}

// Strategy returns the current placement strategy.
func (a *Allocator) Strategy() Strategy {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.strategy
}

// Allocate reserves size bytes and returns the id of the new block.
func (a *Allocator) Allocate(size uint64) (int32, error) {
	a.lock.Lock()
	allocated, err := a.allocate(size)
	a.lock.Unlock()

	if errors.Is(err, ErrOutOfMemory) {
		a.InvokeHook(hooking.HookCtx{
			Domain: a,
			Pos:    HookPosAllocFailure,
			Detail: size,
		})
	}

	if err != nil {
		return 0, err
	}

	a.InvokeHook(hooking.HookCtx{
		Domain: a,
		Pos:    HookPosAllocate,
		Item:   allocated,
		Detail: size,
	})

	return allocated.ID, nil
}

func (a *Allocator) allocate(size uint64) (BlockInfo, error) {
	if a.blocks.empty() {
		return BlockInfo{}, ErrNotInitialized
	}

	if size == 0 {
		return BlockInfo{}, errors.Wrap(ErrInvalidSize, "cannot allocate 0 bytes")
	}

	i := a.findFreeBlock(size)
	if i == nilBlock {
		a.stats.AllocationFailures++

		return BlockInfo{}, errors.Wrapf(ErrOutOfMemory,
			"no suitable free block for %d bytes", size)
	}

	blockID := a.nextID
	a.nextID++

	a.blocks.split(i, size)

	b := a.blocks.at(i)
	b.isFree = false
	b.id = blockID
	a.byID[blockID] = i

	a.stats.NumAllocations++
	a.updateStats()

	return b.info(), nil
}

// findFreeBlock returns the index of the free block chosen by the current
// strategy, or nilBlock if no free block can hold size bytes. Ties are broken
// in favour of the lower address.
func (a *Allocator) findFreeBlock(size uint64) int {
	chosen := nilBlock

	for i := a.blocks.head; i != nilBlock; i = a.blocks.at(i).next {
		b := a.blocks.at(i)
		if !b.isFree || b.size < size {
			continue
		}

		switch a.strategy {
		case FirstFit:
			return i
		case BestFit:
			if chosen == nilBlock || b.size < a.blocks.at(chosen).size {
				chosen = i
			}
		case WorstFit:
			if chosen == nilBlock || b.size > a.blocks.at(chosen).size {
				chosen = i
			}
		}
	}

	return chosen
}

// Free releases the block with the given id and merges it with adjacent free
// blocks.
func (a *Allocator) Free(blockID int32) error {
	a.lock.Lock()
	freed, merged, err := a.free(blockID)
	a.lock.Unlock()

	if err != nil {
		return err
	}

	a.InvokeHook(hooking.HookCtx{
		Domain: a,
		Pos:    HookPosFree,
		Item:   freed,
		Detail: merged,
	})

	return nil
}

func (a *Allocator) free(blockID int32) (freed, merged BlockInfo, err error) {
	if a.blocks.empty() {
		return freed, merged, ErrNotInitialized
	}

	i, found := a.byID[blockID]
	if !found {
		return freed, merged, errors.Wrapf(ErrNotFound, "block %d", blockID)
	}

	b := a.blocks.at(i)
	freed = b.info()

	delete(a.byID, blockID)
	b.isFree = true
	b.id = 0
	a.stats.NumDeallocations++

	i = a.blocks.coalesce(i)
	merged = a.blocks.at(i).info()

	a.updateStats()

	return freed, merged, nil
}

// Block returns the allocated block with the given id.
func (a *Allocator) Block(blockID int32) (BlockInfo, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()

	i, found := a.byID[blockID]
	if !found {
		return BlockInfo{}, false
	}

	return a.blocks.at(i).info(), true
}

// Stats returns a snapshot of the statistics.
func (a *Allocator) Stats() Stats {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.stats
}

// Dump returns all blocks in address order. It returns nil if the memory is
// not initialized.
func (a *Allocator) Dump() []BlockInfo {
	a.lock.Lock()
	defer a.lock.Unlock()

	var infos []BlockInfo

	a.blocks.each(func(_ int, b *block) {
		infos = append(infos, b.info())
	})

	return infos
}

func (a *Allocator) updateStats() {
	var (
		used, free, largest uint64
		numFree, numUsed    int
	)

	a.blocks.each(func(_ int, b *block) {
		if !b.isFree {
			used += b.size
			numUsed++

			return
		}

		free += b.size
		numFree++

		if b.size > largest {
			largest = b.size
		}
	})

	a.stats.TotalMemory = a.total
	a.stats.UsedMemory = used
	a.stats.FreeMemory = free
	a.stats.NumFreeBlocks = numFree
	a.stats.NumUsedBlocks = numUsed
	a.stats.LargestFreeBlock = largest
	a.stats.ExternalFragmentation = fragmentation(largest, free, numFree)
}

func fragmentation(largestFree, totalFree uint64, numFree int) float64 {
	if totalFree == 0 || numFree <= 1 {
		return 0
	}

	return (1 - float64(largestFree)/float64(totalFree)) * 100
}

// CheckInvariants verifies the structure of the block chain. It returns nil
// if the chain is contiguous, covers the whole memory, has no two adjacent
// free blocks and agrees with the statistics.
func (a *Allocator) CheckInvariants() error {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.blocks.empty() {
		return nil
	}

	var (
		expectedAddr uint64
		prev         = nilBlock
		prevFree     bool
		used, free   uint64
		err          error
	)

	a.blocks.each(func(i int, b *block) {
		if err != nil {
			return
		}

		switch {
		case b.prev != prev:
			err = errors.Errorf("block at 0x%x has a broken back link", b.address)
		case b.size == 0:
			err = errors.Errorf("block at 0x%x is empty", b.address)
		case b.address != expectedAddr:
			err = errors.Errorf("block at 0x%x, expected 0x%x", b.address, expectedAddr)
		case b.isFree && prevFree:
			err = errors.Errorf("free blocks adjacent at 0x%x", b.address)
		case b.isFree != (b.id == 0):
			err = errors.Errorf("block at 0x%x has id %d but free=%v", b.address, b.id, b.isFree)
		}

		if b.isFree {
			free += b.size
		} else {
			used += b.size
		}

		expectedAddr = b.address + b.size
		prev = i
		prevFree = b.isFree
	})

	if err != nil {
		return err
	}

	if expectedAddr != a.total {
		return errors.Errorf("chain ends at 0x%x, memory size is 0x%x", expectedAddr, a.total)
	}

	if used != a.stats.UsedMemory || free != a.stats.FreeMemory ||
		used+free != a.stats.TotalMemory {
		return errors.Errorf("stats disagree with chain: used=%d free=%d stats=%+v",
			used, free, a.stats)
	}

	return nil
}
