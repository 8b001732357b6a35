package cache

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/memsim/sim/hooking"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Hierarchy", func() {
	var (
		h   *Hierarchy
		err error
	)

	BeforeEach(func() {
		h, err = MakeBuilder().
			WithLevel(LevelConfig{
				Name: "L1", Size: 64, BlockSize: 16, Associativity: 1,
				Policy: LRU, Latency: 1,
			}).
			WithLevel(DefaultL2Config()).
			Build()
		Expect(err).ToNot(HaveOccurred())
	})

	It("should refuse accesses without levels", func() {
		empty := NewHierarchy(DefaultMemoryLatency)

		_, err := empty.Access(0, false)
		Expect(errors.Is(err, ErrNotInitialized)).To(BeTrue())
		Expect(empty.IsInitialized()).To(BeFalse())
	})

	It("should charge every level and memory on a full miss", func() {
		r, err := h.Read(0x0)
		Expect(err).ToNot(HaveOccurred())

		Expect(r.Cycles).To(Equal(uint64(111)))
		Expect(r.HitLevel).To(Equal(MainMemory))
		Expect(r.Hit()).To(BeFalse())
		Expect(r.Path).To(HaveLen(2))
	})

	It("should stop at the first level that hits", func() {
		_, _ = h.Read(0x0)

		r, err := h.Read(0x0)
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Cycles).To(Equal(uint64(1)))
		Expect(r.HitLevel).To(Equal("L1"))
		Expect(r.Path).To(HaveLen(1))

		stats := h.Stats()
		Expect(stats.Levels[1].Accesses).To(Equal(uint64(1)))
	})

	It("should charge L1 and L2 on an L2 hit", func() {
		_, _ = h.Read(0x0)
		_, _ = h.Read(0x40)

		r, err := h.Read(0x0)
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Cycles).To(Equal(uint64(11)))
		Expect(r.HitLevel).To(Equal("L2"))
	})

	It("should aggregate statistics", func() {
		_, _ = h.Read(0x0)
		_, _ = h.Read(0x0)

		stats := h.Stats()
		Expect(stats.NumAccesses).To(Equal(uint64(2)))
		Expect(stats.MemoryAccesses).To(Equal(uint64(1)))
		Expect(stats.TotalAccessTime).To(Equal(uint64(112)))
		Expect(stats.AverageAccessTime()).To(Equal(56.0))
		Expect(stats.MemoryLatency).To(Equal(uint64(DefaultMemoryLatency)))

		Expect(stats.Levels[0].Name).To(Equal("L1"))
		Expect(stats.Levels[0].Hits).To(Equal(uint64(1)))
		Expect(stats.Levels[0].HitRatio()).To(Equal(50.0))
		Expect(stats.Levels[1].Misses).To(Equal(uint64(1)))
	})

	It("should reset level statistics but keep the lines", func() {
		_, _ = h.Write(0x0)
		h.ResetStats()

		stats := h.Stats()
		Expect(stats.Levels[0].Stats).To(Equal(Stats{}))
		Expect(stats.Levels[1].Stats).To(Equal(Stats{}))

		resident, err := h.Resident("L1", 0x0)
		Expect(err).ToNot(HaveOccurred())
		Expect(resident).To(BeTrue())
	})

	It("should report write-backs per level", func() {
		_, _ = h.Write(0x0)
		_, _ = h.Read(0x40)

		Expect(h.Stats().Levels[0].WriteBacks).To(Equal(uint64(1)))
		Expect(h.Stats().Levels[1].WriteBacks).To(Equal(uint64(0)))
	})

	It("should reject a duplicated level name", func() {
		err := h.AddLevel(DefaultL1Config())
		Expect(errors.Is(err, ErrInvalidConfig)).To(BeTrue())
		Expect(h.NumLevels()).To(Equal(2))
	})

	It("should charge the default latency to a level added without one", func() {
		direct := NewHierarchy(DefaultMemoryLatency)
		Expect(direct.AddLevel(LevelConfig{
			Name: "L1", Size: 64, BlockSize: 16, Associativity: 1, Policy: LRU,
		})).To(Succeed())

		r, err := direct.Read(0x0)
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Cycles).To(Equal(uint64(DefaultLatency + DefaultMemoryLatency)))
		Expect(direct.Config()[0].Latency).To(Equal(uint64(DefaultLatency)))
	})

	It("should replace all levels", func() {
		_, _ = h.Read(0x0)

		Expect(h.Replace([]LevelConfig{DefaultL1Config()})).To(Succeed())

		Expect(h.NumLevels()).To(Equal(1))
		Expect(h.Stats().NumAccesses).To(Equal(uint64(0)))
		Expect(h.Describe()).To(Equal([]string{
			"L1: 256 bytes, 16B blocks, 4-way, LRU, 1 cycles",
		}))
	})

	DescribeTable("should keep the levels when a replacement fails",
		func(configs []LevelConfig) {
			_, _ = h.Read(0x0)
			before := h.Stats()
			describe := h.Describe()

			err := h.Replace(configs)
			Expect(errors.Is(err, ErrInvalidConfig)).To(BeTrue())

			Expect(h.Describe()).To(Equal(describe))
			Expect(h.Stats()).To(Equal(before))

			resident, err := h.Resident("L1", 0x0)
			Expect(err).ToNot(HaveOccurred())
			Expect(resident).To(BeTrue())
		},
		Entry("duplicated names",
			[]LevelConfig{DefaultL1Config(), DefaultL1Config()}),
		Entry("invalid level",
			[]LevelConfig{DefaultL1Config(), {Name: "L2", Size: 100, BlockSize: 16, Associativity: 1}}),
	)

	It("should report unknown levels", func() {
		_, err := h.Resident("L3", 0)
		Expect(errors.Is(err, ErrLevelNotFound)).To(BeTrue())

		_, err = h.Lines("L1", 4)
		Expect(err).To(HaveOccurred())
	})

	It("should describe its levels", func() {
		Expect(h.Describe()).To(Equal([]string{
			"L1: 64 bytes, 16B blocks, 1-way, LRU, 1 cycles",
			"L2: 1024 bytes, 32B blocks, 8-way, FIFO, 10 cycles",
		}))
	})

	It("should clear levels and counters", func() {
		_, _ = h.Read(0x0)
		h.Clear()

		Expect(h.NumLevels()).To(Equal(0))
		Expect(h.Stats().NumAccesses).To(Equal(uint64(0)))
		Expect(h.MemoryLatency()).To(Equal(uint64(DefaultMemoryLatency)))
	})

	Context("with hooks", func() {
		var (
			mockCtrl *gomock.Controller
			hook     *MockHook
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			hook = NewMockHook(mockCtrl)
			h.AcceptHook(hook)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should invoke the level hooks before the access hook", func() {
			gomock.InOrder(
				hook.EXPECT().Func(gomock.Any()).Do(func(ctx hooking.HookCtx) {
					Expect(ctx.Pos).To(Equal(HookPosLevelAccess))
					Expect(ctx.Item).To(Equal("L1"))
				}),
				hook.EXPECT().Func(gomock.Any()).Do(func(ctx hooking.HookCtx) {
					Expect(ctx.Pos).To(Equal(HookPosLevelAccess))
					Expect(ctx.Item).To(Equal("L2"))
				}),
				hook.EXPECT().Func(gomock.Any()).Do(func(ctx hooking.HookCtx) {
					Expect(ctx.Pos).To(Equal(HookPosAccess))
					Expect(ctx.Item).To(Equal(uint64(0x80)))
					Expect(ctx.Detail.(AccessResult).Cycles).To(Equal(uint64(111)))
				}),
			)

			_, err := h.Read(0x80)
			Expect(err).ToNot(HaveOccurred())
		})
	})
})

var _ = Describe("Builder", func() {
	It("should default the level latency and memory latency", func() {
		h, err := MakeBuilder().
			WithLevel(LevelConfig{
				Name: "L1", Size: 64, BlockSize: 16, Associativity: 1,
			}).
			Build()
		Expect(err).ToNot(HaveOccurred())

		Expect(h.Config()[0].Latency).To(Equal(uint64(DefaultLatency)))
		Expect(h.MemoryLatency()).To(Equal(uint64(DefaultMemoryLatency)))
	})

	It("should not share levels between derived builders", func() {
		base := MakeBuilder().WithLevel(DefaultL1Config())
		one := base.WithLevel(DefaultL2Config())
		other := base.WithMemoryLatency(50)

		h1, err := one.Build()
		Expect(err).ToNot(HaveOccurred())
		h2, err := other.Build()
		Expect(err).ToNot(HaveOccurred())

		Expect(h1.NumLevels()).To(Equal(2))
		Expect(h2.NumLevels()).To(Equal(1))
		Expect(h2.MemoryLatency()).To(Equal(uint64(50)))
	})

	It("should fail on an invalid level", func() {
		_, err := MakeBuilder().
			WithLevel(LevelConfig{Name: "L1", Size: 60, BlockSize: 16, Associativity: 1}).
			Build()
		Expect(errors.Is(err, ErrInvalidConfig)).To(BeTrue())
	})
})
