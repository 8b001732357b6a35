package simulation

import (
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/memsim/config"
	"github.com/sarchlab/memsim/datarecording"
	"github.com/sarchlab/memsim/mem/alloc"
	"github.com/sarchlab/memsim/mem/cache"
	"github.com/sarchlab/memsim/mem/trace"
	"github.com/sarchlab/memsim/monitoring"
	"github.com/sarchlab/memsim/sim/hooking"
	"github.com/sarchlab/memsim/sim/id"
	"github.com/sarchlab/memsim/sim/naming"
)

// Builder can be used to build a simulation.
type Builder struct {
	config      *config.Config
	logger      logrus.FieldLogger
	idGen       id.IDGenerator
	traceOn     *bool
	traceFile   string
	monitorOn   *bool
	monitorPort int
}

// MakeBuilder creates a new builder. Unless overridden, tracing and
// monitoring follow the configuration.
func MakeBuilder() Builder {
	return Builder{}
}

// WithConfig sets the configuration. The defaults are used if it is not set.
func (b Builder) WithConfig(cfg *config.Config) Builder {
	b.config = cfg
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger logrus.FieldLogger) Builder {
	b.logger = logger
	return b
}

// WithIDGenerator sets the generator of the recorded event ids.
func (b Builder) WithIDGenerator(idGen id.IDGenerator) Builder {
	b.idGen = idGen
	return b
}

// WithTraceFile enables tracing into the given database name.
func (b Builder) WithTraceFile(name string) Builder {
	on := true
	b.traceOn = &on
	b.traceFile = name

	return b
}

// WithoutTracing disables tracing.
func (b Builder) WithoutTracing() Builder {
	off := false
	b.traceOn = &off
	b.traceFile = ""

	return b
}

// WithMonitor enables the monitor on the given port. Port 0 picks a random
// port.
func (b Builder) WithMonitor(port int) Builder {
	on := true
	b.monitorOn = &on
	b.monitorPort = port

	return b
}

// WithoutMonitor disables the monitor.
func (b Builder) WithoutMonitor() Builder {
	off := false
	b.monitorOn = &off
	b.monitorPort = 0

	return b
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	cfg := b.config
	if cfg == nil {
		cfg = config.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Simulation{
		NamedBase: naming.MakeNamedBase("Simulation"),
		id:        xid.New().String(),
		config:    cfg,
		logger:    b.logger,
		idGen:     b.idGen,
	}

	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}

	if s.idGen == nil {
		s.idGen = id.NewIDGenerator()
	}

	s.logger = s.logger.WithField("sim", s.id)

	if err := b.buildModels(s); err != nil {
		return nil, err
	}

	s.logTracer = trace.NewLogTracer(s.logger)
	s.attach(s.logTracer)

	if b.tracingEnabled() {
		b.buildTracer(s)
	}

	if b.monitorEnabled() {
		if err := b.buildMonitor(s); err != nil {
			_ = s.Terminate()
			return nil, err
		}
	}

	return s, nil
}

func (b Builder) buildModels(s *Simulation) error {
	cfg := s.config

	strategy, err := cfg.AllocStrategy()
	if err != nil {
		return err
	}

	s.allocator = alloc.New(strategy)

	size, err := cfg.MemorySize()
	if err != nil {
		return err
	}

	if size > 0 {
		if err := s.allocator.Init(size); err != nil {
			return err
		}
	}

	cacheBuilder := cache.MakeBuilder().WithMemoryLatency(cfg.Cache.MemoryLatency)

	if cfg.Cache.Initialize {
		levels, err := cfg.CacheLevels()
		if err != nil {
			return err
		}

		cacheBuilder = cacheBuilder.WithLevels(levels...)
	}

	s.hierarchy, err = cacheBuilder.Build()

	return err
}

func (b Builder) tracingEnabled() bool {
	if b.traceOn != nil {
		return *b.traceOn
	}

	return b.config != nil && b.config.Trace.Enabled
}

func (b Builder) traceFileName(s *Simulation) string {
	if b.traceFile != "" {
		return b.traceFile
	}

	if s.config.Trace.File != "" {
		return s.config.Trace.File
	}

	return "memsim_trace_" + s.id
}

func (b Builder) buildTracer(s *Simulation) {
	path := b.traceFileName(s)

	s.dataRecorder = datarecording.New(path)
	s.dbTracer = trace.NewDBTracer(s.dataRecorder, s.idGen)
	s.attach(s.dbTracer)

	s.logger.WithField("file", path+".sqlite3").Info("recording trace")
}

func (b Builder) monitorEnabled() bool {
	if b.monitorOn != nil {
		return *b.monitorOn
	}

	return b.config != nil && b.config.Monitor.Enabled
}

func (b Builder) buildMonitor(s *Simulation) error {
	port := s.config.Monitor.Port
	if b.monitorOn != nil {
		port = b.monitorPort
	}

	s.monitor = monitoring.NewMonitor().
		WithLogger(s.logger).
		WithPortNumber(port).
		WithOpenBrowser(s.config.Monitor.OpenBrowser)
	s.monitor.RegisterAllocator(s.allocator)
	s.monitor.RegisterCache(s.hierarchy)
	s.monitor.RegisterComponent(s)

	addr, err := s.monitor.StartServer()
	if err != nil {
		s.monitor = nil
		return err
	}

	s.monitorAddr = addr

	return nil
}

func (s *Simulation) attach(hook hooking.Hook) {
	s.allocator.AcceptHook(hook)
	s.hierarchy.AcceptHook(hook)
}
