// Package simulation assembles the memory models and the services around
// them.
package simulation

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/memsim/config"
	"github.com/sarchlab/memsim/datarecording"
	"github.com/sarchlab/memsim/mem/alloc"
	"github.com/sarchlab/memsim/mem/cache"
	"github.com/sarchlab/memsim/mem/trace"
	"github.com/sarchlab/memsim/monitoring"
	"github.com/sarchlab/memsim/sim/id"
	"github.com/sarchlab/memsim/sim/naming"
)

const stopTimeout = 5 * time.Second

// A Simulation owns one allocator, one cache hierarchy and the optional
// recorder and monitor observing them.
type Simulation struct {
	naming.NamedBase

	id     string
	config *config.Config
	logger logrus.FieldLogger
	idGen  id.IDGenerator

	allocator *alloc.Allocator
	hierarchy *cache.Hierarchy

	dataRecorder datarecording.DataRecorder
	dbTracer     *trace.DBTracer
	logTracer    *trace.LogTracer

	monitor     *monitoring.Monitor
	monitorAddr string

	terminated bool
}

// ID returns the unique id of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Config returns the configuration the simulation was built with.
func (s *Simulation) Config() *config.Config {
	return s.config
}

// Logger returns the logger used by the simulation.
func (s *Simulation) Logger() logrus.FieldLogger {
	return s.logger
}

// Allocator returns the simulated allocator.
func (s *Simulation) Allocator() *alloc.Allocator {
	return s.allocator
}

// Cache returns the simulated cache hierarchy.
func (s *Simulation) Cache() *cache.Hierarchy {
	return s.hierarchy
}

// DataRecorder returns the recorder, or nil if tracing is disabled.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// Monitor returns the monitor, or nil if monitoring is disabled.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorAddress returns the address the monitor listens on, or an empty
// string.
func (s *Simulation) MonitorAddress() string {
	return s.monitorAddr
}

// ReconfigureCache replaces the levels of the cache hierarchy. Hooks attached
// to the hierarchy stay attached. On error the hierarchy is unchanged.
func (s *Simulation) ReconfigureCache(levels []cache.LevelConfig) error {
	if err := s.hierarchy.Replace(levels); err != nil {
		return err
	}

	s.logger.WithField("levels", len(levels)).Info("cache initialized")

	return nil
}

// Terminate flushes the recorded events and stops the monitor. Calling it
// again does nothing.
func (s *Simulation) Terminate() error {
	if s.terminated {
		return nil
	}

	s.terminated = true

	var errs []error

	if s.dataRecorder != nil {
		s.dbTracer.Terminate()

		if err := s.dataRecorder.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "closing recorder"))
		}
	}

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()

		if err := s.monitor.Stop(ctx); err != nil {
			errs = append(errs, errors.Wrap(err, "stopping monitor"))
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}

	return nil
}
