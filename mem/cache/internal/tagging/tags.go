package tagging

import "math/bits"

// A Line of a cache is the bookkeeping kept for one cached block. No data is
// stored.
type Line struct {
	Valid      bool
	Dirty      bool
	Tag        uint64
	LastAccess uint64
}

// A Set is a list of lines where a certain piece of memory can be stored at.
// FIFOQueue holds the ways of the valid lines in the order they were filled
// and is only maintained under the FIFO policy.
type Set struct {
	Lines     []Line
	FIFOQueue []int
}

// TagArray holds the lines of a set-associative cache and knows how to split
// an address into a set index and a tag.
type TagArray struct {
	NumSets   int
	NumWays   int
	BlockSize uint64
	Sets      []Set

	offsetBits int
	setBits    int
}

// NewTagArray creates a tag array with all lines invalid. The block size and
// the number of sets must be powers of two.
func NewTagArray(numSets, numWays int, blockSize uint64) *TagArray {
	if numSets <= 0 || numWays <= 0 {
		panic("tag array must have at least one set and one way")
	}

	if !IsPowerOfTwo(blockSize) || !IsPowerOfTwo(uint64(numSets)) {
		panic("block size and number of sets must be powers of two")
	}

	t := &TagArray{
		NumSets:    numSets,
		NumWays:    numWays,
		BlockSize:  blockSize,
		offsetBits: bits.TrailingZeros64(blockSize),
		setBits:    bits.TrailingZeros64(uint64(numSets)),
	}

	t.Reset()

	return t
}

// IsPowerOfTwo tells if v is a positive power of two.
func IsPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}

// TotalSize returns the maximum number of bytes can be stored in the cache
func (t *TagArray) TotalSize() uint64 {
	return uint64(t.NumSets) * uint64(t.NumWays) * t.BlockSize
}

// Decompose returns the set that an address maps to and the tag that
// identifies the address's block inside the set.
func (t *TagArray) Decompose(addr uint64) (setID int, tag uint64) {
	setID = int((addr >> t.offsetBits) % uint64(t.NumSets))
	tag = addr >> (t.offsetBits + t.setBits)

	return setID, tag
}

// GetSet returns the set that a certain address should be stored at.
func (t *TagArray) GetSet(addr uint64) (set *Set, setID int) {
	setID, _ = t.Decompose(addr)
	set = &t.Sets[setID]

	return set, setID
}

// Lookup finds the way holding addr. It returns false if the address is not
// cached.
func (t *TagArray) Lookup(addr uint64) (setID, wayID int, found bool) {
	setID, tag := t.Decompose(addr)
	wayID, found = t.Sets[setID].Find(tag)

	return setID, wayID, found
}

// Find returns the way of the valid line holding tag, or -1 and false.
func (s *Set) Find(tag uint64) (wayID int, found bool) {
	for i, line := range s.Lines {
		if line.Valid && line.Tag == tag {
			return i, true
		}
	}

	return -1, false
}

// Reset marks all the lines invalid.
func (t *TagArray) Reset() {
	t.Sets = make([]Set, t.NumSets)
	for i := range t.Sets {
		t.Sets[i].Lines = make([]Line, t.NumWays)
	}
}
