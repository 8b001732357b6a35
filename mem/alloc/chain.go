package alloc

const nilBlock = -1

// block is a node of the address-ordered chain. Nodes live in an arena and
// refer to their neighbours by index, so splitting and merging never leave a
// dangling reference behind.
type block struct {
	address uint64
	size    uint64
	isFree  bool
	id      int32

	prev int
	next int
}

func (b *block) info() BlockInfo {
	return BlockInfo{
		Address: b.address,
		Size:    b.size,
		IsFree:  b.isFree,
		ID:      b.id,
	}
}

// chain owns the arena and the links between its nodes.
type chain struct {
	blocks    []block
	freeSlots []int
	head      int
}

func newChain() chain {
	return chain{head: nilBlock}
}

func (c *chain) reset(size uint64) {
	c.blocks = c.blocks[:0]
	c.freeSlots = c.freeSlots[:0]
	c.head = c.newBlock(block{
		address: 0,
		size:    size,
		isFree:  true,
		prev:    nilBlock,
		next:    nilBlock,
	})
}

func (c *chain) empty() bool {
	return c.head == nilBlock
}

func (c *chain) at(i int) *block {
	return &c.blocks[i]
}

func (c *chain) newBlock(b block) int {
	if n := len(c.freeSlots); n > 0 {
		i := c.freeSlots[n-1]
		c.freeSlots = c.freeSlots[:n-1]
		c.blocks[i] = b

		return i
	}

	c.blocks = append(c.blocks, b)

	return len(c.blocks) - 1
}

// split shrinks block i to size and inserts a free block holding the
// remainder right after it.
func (c *chain) split(i int, size uint64) {
	b := c.blocks[i]
	if b.size <= size {
		return
	}

	rest := c.newBlock(block{
		address: b.address + size,
		size:    b.size - size,
		isFree:  true,
		prev:    i,
		next:    b.next,
	})

	if b.next != nilBlock {
		c.blocks[b.next].prev = rest
	}

	c.blocks[i].next = rest
	c.blocks[i].size = size
}

// unlink removes node i from the chain and recycles its slot. The caller is
// responsible for giving its span to a neighbour.
func (c *chain) unlink(i int) {
	b := c.blocks[i]

	if b.prev != nilBlock {
		c.blocks[b.prev].next = b.next
	} else {
		c.head = b.next
	}

	if b.next != nilBlock {
		c.blocks[b.next].prev = b.prev
	}

	c.blocks[i] = block{prev: nilBlock, next: nilBlock}
	c.freeSlots = append(c.freeSlots, i)
}

// coalesce merges free block i with every free block adjacent to it and
// returns the index of the surviving node.
func (c *chain) coalesce(i int) int {
	for {
		next := c.blocks[i].next
		if next == nilBlock || !c.blocks[next].isFree {
			break
		}

		c.blocks[i].size += c.blocks[next].size
		c.unlink(next)
	}

	for {
		prev := c.blocks[i].prev
		if prev == nilBlock || !c.blocks[prev].isFree {
			break
		}

		c.blocks[prev].size += c.blocks[i].size
		c.unlink(i)
		i = prev
	}

	return i
}

// each calls f for every node in address order.
func (c *chain) each(f func(i int, b *block)) {
	for i := c.head; i != nilBlock; i = c.blocks[i].next {
		f(i, &c.blocks[i])
	}
}
