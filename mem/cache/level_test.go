package cache

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LevelConfig", func() {
	It("should describe itself", func() {
		Expect(DefaultL1Config().String()).
			To(Equal("L1: 256 bytes, 16B blocks, 4-way, LRU, 1 cycles"))
		Expect(DefaultL2Config().String()).
			To(Equal("L2: 1024 bytes, 32B blocks, 8-way, FIFO, 10 cycles"))
	})

	It("should compute the geometry", func() {
		c := DefaultL1Config()
		Expect(c.NumLines()).To(Equal(uint64(16)))
		Expect(c.NumSets()).To(Equal(4))
	})

	DescribeTable("invalid configurations",
		func(c LevelConfig) {
			err := c.Validate()
			Expect(errors.Is(err, ErrInvalidConfig)).To(BeTrue())

			_, err = NewLevel(c)
			Expect(errors.Is(err, ErrInvalidConfig)).To(BeTrue())
		},
		Entry("empty name", LevelConfig{Size: 64, BlockSize: 16, Associativity: 1}),
		Entry("name with a space", LevelConfig{Name: "L 1", Size: 64, BlockSize: 16, Associativity: 1}),
		Entry("zero size", LevelConfig{Name: "L1", BlockSize: 16, Associativity: 1}),
		Entry("zero block size", LevelConfig{Name: "L1", Size: 64, Associativity: 1}),
		Entry("zero ways", LevelConfig{Name: "L1", Size: 64, BlockSize: 16}),
		Entry("block size not a power of two",
			LevelConfig{Name: "L1", Size: 60, BlockSize: 12, Associativity: 1}),
		Entry("size not a multiple of block size",
			LevelConfig{Name: "L1", Size: 100, BlockSize: 16, Associativity: 1}),
		Entry("lines not divisible by ways",
			LevelConfig{Name: "L1", Size: 64, BlockSize: 16, Associativity: 3}),
		Entry("sets not a power of two",
			LevelConfig{Name: "L1", Size: 96, BlockSize: 16, Associativity: 2}),
		Entry("unknown policy",
			LevelConfig{Name: "L1", Size: 64, BlockSize: 16, Associativity: 1,
				Policy: ReplacementPolicy(7)}),
	)

	It("should parse policies", func() {
		p, err := ParsePolicy("LRU")
		Expect(err).ToNot(HaveOccurred())
		Expect(p).To(Equal(LRU))

		p, err = ParsePolicy("fifo")
		Expect(err).ToNot(HaveOccurred())
		Expect(p).To(Equal(FIFO))

		_, err = ParsePolicy("random")
		Expect(errors.Is(err, ErrInvalidConfig)).To(BeTrue())
	})
})

var _ = Describe("Level", func() {
	var l *Level

	Context("direct mapped", func() {
		BeforeEach(func() {
			var err error
			l, err = NewLevel(LevelConfig{
				Name: "L1", Size: 64, BlockSize: 16, Associativity: 1,
				Policy: LRU, Latency: 2,
			})
			Expect(err).ToNot(HaveOccurred())
		})

		It("should miss once then hit within the block", func() {
			first := l.Access(0x0, false)
			Expect(first.Hit).To(BeFalse())
			Expect(first.SetID).To(Equal(0))
			Expect(first.Latency).To(Equal(uint64(2)))

			Expect(l.Access(0x0, false).Hit).To(BeTrue())
			Expect(l.Access(0xF, false).Hit).To(BeTrue())

			stats := l.Stats()
			Expect(stats.Accesses).To(Equal(uint64(3)))
			Expect(stats.Hits).To(Equal(uint64(2)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.TotalAccessTime).To(Equal(uint64(6)))
		})

		It("should evict on a conflict", func() {
			l.Access(0x0, false)

			conflict := l.Access(0x40, false)
			Expect(conflict.Hit).To(BeFalse())
			Expect(conflict.SetID).To(Equal(0))
			Expect(conflict.Tag).To(Equal(uint64(1)))

			Expect(l.Resident(0x0)).To(BeFalse())
			Expect(l.Resident(0x40)).To(BeTrue())
			Expect(l.Access(0x0, false).Hit).To(BeFalse())
		})

		It("should count write-backs of dirty victims only", func() {
			l.Access(0x0, true)
			Expect(l.Lines(0)[0].Dirty).To(BeTrue())

			evictDirty := l.Access(0x40, false)
			Expect(evictDirty.WriteBack).To(BeTrue())

			evictClean := l.Access(0x0, false)
			Expect(evictClean.WriteBack).To(BeFalse())

			Expect(l.Stats().WriteBacks).To(Equal(uint64(1)))
		})

		It("should mark a line dirty on a write hit", func() {
			l.Access(0x10, false)
			Expect(l.Lines(1)[0].Dirty).To(BeFalse())

			l.Access(0x10, true)
			Expect(l.Lines(1)[0].Dirty).To(BeTrue())
		})

		It("should keep lines when resetting statistics", func() {
			l.Access(0x0, false)
			l.ResetStats()

			Expect(l.Stats()).To(Equal(Stats{}))
			Expect(l.Resident(0x0)).To(BeTrue())
		})

		It("should drop lines on invalidation", func() {
			l.Access(0x0, true)
			l.Invalidate()

			Expect(l.Resident(0x0)).To(BeFalse())
			Expect(l.Access(0x0, false).WriteBack).To(BeFalse())
		})
	})

	DescribeTable("replacement in a full set",
		func(policy ReplacementPolicy, evicted, kept uint64) {
			var err error
			l, err = NewLevel(LevelConfig{
				Name: "L1", Size: 32, BlockSize: 16, Associativity: 2,
				Policy: policy, Latency: 1,
			})
			Expect(err).ToNot(HaveOccurred())

			l.Access(0x00, false)
			l.Access(0x10, false)
			Expect(l.Access(0x00, false).Hit).To(BeTrue())
			Expect(l.Access(0x20, false).Hit).To(BeFalse())

			Expect(l.Resident(evicted)).To(BeFalse())
			Expect(l.Resident(kept)).To(BeTrue())
			Expect(l.Resident(0x20)).To(BeTrue())
		},
		Entry("LRU evicts the least recently used", LRU, uint64(0x10), uint64(0x00)),
		Entry("FIFO evicts the first filled", FIFO, uint64(0x00), uint64(0x10)),
	)
})
