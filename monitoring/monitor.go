// Package monitoring serves the state of a running simulation over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/memsim/mem/alloc"
	"github.com/sarchlab/memsim/mem/cache"
	"github.com/sarchlab/memsim/monitoring/web"
	"github.com/sarchlab/memsim/sim/id"
	"github.com/sarchlab/memsim/sim/naming"
)

// AllocatorInspector is the part of the allocator the monitor reads.
type AllocatorInspector interface {
	Stats() alloc.Stats
	Dump() []alloc.BlockInfo
}

// CacheInspector is the part of the cache hierarchy the monitor reads.
type CacheInspector interface {
	Stats() cache.HierarchyStats
	Config() []cache.LevelConfig
}

// Monitor turns a simulation into a server that allows external inspection.
type Monitor struct {
	allocator  AllocatorInspector
	hierarchy  CacheInspector
	components []naming.Named
	idGen      id.IDGenerator
	logger     logrus.FieldLogger

	portNumber  int
	openBrowser bool

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		idGen:  id.NewIDGenerator(),
		logger: logrus.StandardLogger(),
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		if portNumber != 0 {
			m.logger.WithField("port", portNumber).
				Warn("port not allowed for the monitor, using a random port")
		}

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithOpenBrowser opens the dashboard in the default browser once the server
// starts.
func (m *Monitor) WithOpenBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// WithLogger sets the logger used by the monitor.
func (m *Monitor) WithLogger(logger logrus.FieldLogger) *Monitor {
	m.logger = logger
	return m
}

// RegisterAllocator sets the allocator to be monitored.
func (m *Monitor) RegisterAllocator(a AllocatorInspector) {
	m.allocator = a
}

// RegisterCache sets the cache hierarchy to be monitored.
func (m *Monitor) RegisterCache(h CacheInspector) {
	m.hierarchy = h
}

// RegisterComponent registers an object whose fields can be inspected by
// name.
func (m *Monitor) RegisterComponent(c naming.Named) {
	m.components = append(m.components, c)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.idGen.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

func (m *Monitor) newRouter() *mux.Router {
	r := mux.NewRouter()

	fServer := http.FileServer(web.Assets())
	r.HandleFunc("/api/alloc/stats", m.allocStats).Methods(http.MethodGet)
	r.HandleFunc("/api/alloc/dump", m.allocDump).Methods(http.MethodGet)
	r.HandleFunc("/api/cache/stats", m.cacheStats).Methods(http.MethodGet)
	r.HandleFunc("/api/cache/config", m.cacheConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(fServer)

	return r
}

// StartServer starts the monitor as a web server and returns the address it
// listens on.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", errors.Wrap(err, "monitor cannot listen")
	}

	m.server = &http.Server{
		Handler:           m.newRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	url := fmt.Sprintf("http://%s", listener.Addr().String())
	m.logger.WithField("url", url).Info("monitoring simulation")

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.WithError(err).Error("monitor stopped")
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			m.logger.WithError(err).Warn("cannot open browser")
		}
	}

	return listener.Addr().String(), nil
}

// Stop shuts the server down.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		m.logger.WithError(err).Error("cannot encode response")
	}
}

func (m *Monitor) notAvailable(w http.ResponseWriter, what string) {
	http.Error(w, what+" not monitored", http.StatusNotFound)
}

type allocStatsRsp struct {
	alloc.Stats
	Utilization float64 `json:"utilization"`
}

func (m *Monitor) allocStats(w http.ResponseWriter, _ *http.Request) {
	if m.allocator == nil {
		m.notAvailable(w, "allocator")
		return
	}

	stats := m.allocator.Stats()

	m.writeJSON(w, allocStatsRsp{
		Stats:       stats,
		Utilization: stats.Utilization(),
	})
}

func (m *Monitor) allocDump(w http.ResponseWriter, _ *http.Request) {
	if m.allocator == nil {
		m.notAvailable(w, "allocator")
		return
	}

	blocks := m.allocator.Dump()
	if blocks == nil {
		blocks = []alloc.BlockInfo{}
	}

	m.writeJSON(w, blocks)
}

type levelStatsRsp struct {
	cache.LevelStats
	HitRatio float64 `json:"hit_ratio"`
}

type cacheStatsRsp struct {
	Levels            []levelStatsRsp `json:"levels"`
	TotalAccessTime   uint64          `json:"total_access_time"`
	NumAccesses       uint64          `json:"num_accesses"`
	MemoryAccesses    uint64          `json:"memory_accesses"`
	AverageAccessTime float64         `json:"average_access_time"`
}

func (m *Monitor) cacheStats(w http.ResponseWriter, _ *http.Request) {
	if m.hierarchy == nil {
		m.notAvailable(w, "cache")
		return
	}

	stats := m.hierarchy.Stats()

	rsp := cacheStatsRsp{
		Levels:            make([]levelStatsRsp, 0, len(stats.Levels)),
		TotalAccessTime:   stats.TotalAccessTime,
		NumAccesses:       stats.NumAccesses,
		MemoryAccesses:    stats.MemoryAccesses,
		AverageAccessTime: stats.AverageAccessTime(),
	}

	for _, l := range stats.Levels {
		rsp.Levels = append(rsp.Levels, levelStatsRsp{
			LevelStats: l,
			HitRatio:   l.HitRatio(),
		})
	}

	m.writeJSON(w, rsp)
}

func (m *Monitor) cacheConfig(w http.ResponseWriter, _ *http.Request) {
	if m.hierarchy == nil {
		m.notAvailable(w, "cache")
		return
	}

	m.writeJSON(w, m.hierarchy.Config())
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	sort.Strings(names)

	m.writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err := serializer.Serialize(w)
	if err != nil {
		m.logger.WithError(err).WithField("component", name).
			Error("cannot serialize component")
	}
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = serializer.Serialize(w)
	if err != nil {
		m.logger.WithError(err).WithField("component", req.CompName).
			Error("cannot serialize field")
	}
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) naming.Named {
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	http.Error(w, "Component not found", http.StatusNotFound)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressBarRsp, 0, len(m.progressBars))

	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	rsp, err := collectResources()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, rsp)
}

func collectResources() (resourceRsp, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return resourceRsp{}, err
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		return resourceRsp{}, err
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		return resourceRsp{}, err
	}

	return resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	}, nil
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, prof)
}
