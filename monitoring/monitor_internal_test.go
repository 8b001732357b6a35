package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/memsim/mem/alloc"
	"github.com/sarchlab/memsim/mem/cache"
	"github.com/sarchlab/memsim/sim/naming"
)

type sampleComponent struct {
	naming.NamedBase

	Count int
	Label string
}

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		a      *alloc.Allocator
		h      *cache.Hierarchy
		router http.Handler
	)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		logger, _ := logtest.NewNullLogger()
		m = NewMonitor().WithLogger(logger)

		a = alloc.New(alloc.FirstFit)
		Expect(a.Init(1024)).To(Succeed())

		var err error
		h, err = cache.MakeBuilder().
			WithLevel(cache.DefaultL1Config()).
			WithLevel(cache.DefaultL2Config()).
			Build()
		Expect(err).ToNot(HaveOccurred())

		router = m.newRouter()
	})

	It("should report missing models", func() {
		Expect(get("/api/alloc/stats").Code).To(Equal(http.StatusNotFound))
		Expect(get("/api/cache/stats").Code).To(Equal(http.StatusNotFound))
	})

	Context("with models registered", func() {
		BeforeEach(func() {
			m.RegisterAllocator(a)
			m.RegisterCache(h)
		})

		It("should serve allocator statistics", func() {
			_, err := a.Allocate(256)
			Expect(err).ToNot(HaveOccurred())

			rec := get("/api/alloc/stats")
			Expect(rec.Code).To(Equal(http.StatusOK))

			rsp := map[string]any{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
			Expect(rsp["total_memory"]).To(BeNumerically("==", 1024))
			Expect(rsp["used_memory"]).To(BeNumerically("==", 256))
			Expect(rsp["num_allocations"]).To(BeNumerically("==", 1))
			Expect(rsp["utilization"]).To(BeNumerically("==", 25))
		})

		It("should serve the block list", func() {
			_, err := a.Allocate(100)
			Expect(err).ToNot(HaveOccurred())

			rec := get("/api/alloc/dump")
			Expect(rec.Code).To(Equal(http.StatusOK))

			blocks := []alloc.BlockInfo{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &blocks)).To(Succeed())
			Expect(blocks).To(Equal([]alloc.BlockInfo{
				{Address: 0, Size: 100, ID: 1},
				{Address: 100, Size: 924, IsFree: true},
			}))
		})

		It("should serve cache statistics", func() {
			_, _ = h.Read(0)
			_, _ = h.Read(0)

			rec := get("/api/cache/stats")
			Expect(rec.Code).To(Equal(http.StatusOK))

			rsp := cacheStatsRsp{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
			Expect(rsp.NumAccesses).To(Equal(uint64(2)))
			Expect(rsp.TotalAccessTime).To(Equal(uint64(112)))
			Expect(rsp.AverageAccessTime).To(Equal(56.0))
			Expect(rsp.Levels).To(HaveLen(2))
			Expect(rsp.Levels[0].Name).To(Equal("L1"))
			Expect(rsp.Levels[0].Hits).To(Equal(uint64(1)))
			Expect(rsp.Levels[0].HitRatio).To(Equal(50.0))
		})

		It("should serve the cache configuration", func() {
			rec := get("/api/cache/config")
			Expect(rec.Code).To(Equal(http.StatusOK))

			configs := []cache.LevelConfig{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &configs)).To(Succeed())
			Expect(configs).To(Equal([]cache.LevelConfig{
				cache.DefaultL1Config(),
				cache.DefaultL2Config(),
			}))
			Expect(rec.Body.String()).To(ContainSubstring(`"policy":"lru"`))
		})
	})

	It("should list and serialize components", func() {
		m.RegisterComponent(&sampleComponent{
			NamedBase: naming.MakeNamedBase("Sample"),
			Count:     3,
		})

		rec := get("/api/list_components")
		Expect(rec.Body.String()).To(MatchJSON(`["Sample"]`))

		rec = get("/api/component/Sample")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))

		rec = get("/api/component/Unknown")
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should track progress bars", func() {
		bar := m.CreateProgressBar("script", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)

		rec := get("/api/progress")

		bars := []progressBarRsp{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("script"))
		Expect(bars[0].Finished).To(Equal(uint64(2)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))

		m.CompleteProgressBar(bar)
		Expect(get("/api/progress").Body.String()).To(MatchJSON(`[]`))
	})

	It("should report process resources", func() {
		rec := get("/api/resource")
		Expect(rec.Code).To(Equal(http.StatusOK))

		rsp := resourceRsp{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve the dashboard", func() {
		rec := get("/")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should warn about reserved ports", func() {
		logger, hook := logtest.NewNullLogger()
		m = NewMonitor().WithLogger(logger).WithPortNumber(80)

		Expect(m.portNumber).To(Equal(0))
		Expect(hook.LastEntry().Level).To(Equal(logrus.WarnLevel))
	})

	It("should start and stop the server", func() {
		addr, err := m.StartServer()
		Expect(err).ToNot(HaveOccurred())
		Expect(addr).To(HavePrefix("127.0.0.1:"))

		rsp, err := http.Get("http://" + addr + "/api/progress")
		Expect(err).ToNot(HaveOccurred())
		rsp.Body.Close()
		Expect(rsp.StatusCode).To(Equal(http.StatusOK))

		Expect(m.Stop(context.Background())).To(Succeed())
	})
})
