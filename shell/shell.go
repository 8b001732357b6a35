// Package shell is the line-oriented command interpreter of memsim.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/memsim/config"
	"github.com/sarchlab/memsim/mem/alloc"
	"github.com/sarchlab/memsim/mem/cache"
	"github.com/sarchlab/memsim/monitoring"
)

// Session is what the shell operates on.
type Session interface {
	Allocator() *alloc.Allocator
	Cache() *cache.Hierarchy
	Config() *config.Config
	ReconfigureCache(levels []cache.LevelConfig) error
}

// Shell reads commands from an input and writes the results to an output.
type Shell struct {
	session     Session
	in          *bufio.Scanner
	out         io.Writer
	logger      logrus.FieldLogger
	interactive bool
	progress    *monitoring.ProgressBar
}

// NewShell creates a non-interactive shell.
func NewShell(session Session, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		session: session,
		in:      bufio.NewScanner(in),
		out:     out,
		logger:  logrus.StandardLogger(),
	}
}

// WithInteractive makes the shell print a banner and prompts, and ask for
// the cache configuration on "init cache".
func (s *Shell) WithInteractive(interactive bool) *Shell {
	s.interactive = interactive
	return s
}

// WithLogger sets the logger.
func (s *Shell) WithLogger(logger logrus.FieldLogger) *Shell {
	s.logger = logger
	return s
}

// WithProgressBar makes the shell count every processed line as finished.
func (s *Shell) WithProgressBar(bar *monitoring.ProgressBar) *Shell {
	s.progress = bar
	return s
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

// Run processes lines until the input ends, an exit command is read, or the
// context is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	if s.interactive {
		s.printf("%s", banner)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, ok := s.readLine("> ")
		if !ok {
			return s.in.Err()
		}

		if s.progress != nil {
			s.progress.IncrementInProgress(1)
		}

		exit := s.Execute(line)

		if s.progress != nil {
			s.progress.MoveInProgressToFinished(1)
		}

		if exit {
			return nil
		}
	}
}

func (s *Shell) readLine(prompt string) (string, bool) {
	if s.interactive {
		s.printf("%s", prompt)
	}

	if !s.in.Scan() {
		return "", false
	}

	return s.in.Text(), true
}

// Execute runs one line and tells if the shell should exit.
func (s *Shell) Execute(line string) bool {
	cmd, err := Parse(line)
	if err != nil {
		s.reportParseError(err)
		return false
	}

	if cmd.Op != OpNone {
		s.logger.WithField("command", strings.TrimSpace(line)).Debug("executing")
	}

	switch cmd.Op {
	case OpNone:
	case OpExit:
		s.printf("Goodbye!\n")
		return true
	case OpHelp:
		s.printf("%s", helpText)
	case OpClear:
		s.printf("\033[2J\033[1;1H")
	case OpInitMemory:
		s.initMemory(cmd.Size)
	case OpSetAllocator:
		s.session.Allocator().SetStrategy(cmd.Strategy)
		s.printf("Allocator set to: %s\n", cmd.Strategy.DisplayName())
	case OpMalloc:
		s.malloc(cmd.Size)
	case OpFree:
		s.free(cmd.BlockID)
	case OpDumpMemory:
		s.dumpMemory()
	case OpStats:
		s.memoryStats()
	case OpInitCache:
		s.initCache()
	case OpCacheRead, OpCacheWrite:
		s.cacheAccess(cmd.Address, cmd.Op == OpCacheWrite)
	case OpCacheStats:
		s.cacheStats()
	case OpCacheConfig:
		s.cacheConfig()
	case OpCacheReset:
		s.session.Cache().ResetStats()
		s.printf("Cache statistics reset\n")
	}

	return false
}

func (s *Shell) reportParseError(err error) {
	var parseErr *ParseError
	if errors.As(err, &parseErr) && errors.Is(err, ErrUnknownCommand) {
		s.printf("Unknown command: %s\n", parseErr.Line)
		s.printf("Type 'help' for available commands.\n")

		return
	}

	s.printf("Error: %v\n", err)
}

func (s *Shell) reportModelError(err error) {
	switch {
	case errors.Is(err, alloc.ErrNotInitialized):
		s.printf("Error: Memory not initialized. Use 'init memory <size>' first.\n")
	case errors.Is(err, cache.ErrNotInitialized):
		s.printf("Error: Cache not initialized. Use 'init cache' first.\n")
	default:
		s.printf("Error: %v\n", err)
	}
}
