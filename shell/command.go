package shell

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/memsim/mem"
	"github.com/sarchlab/memsim/mem/alloc"
)

// Op identifies a shell command.
type Op int

// The shell commands.
const (
	OpNone Op = iota
	OpExit
	OpHelp
	OpClear
	OpInitMemory
	OpSetAllocator
	OpMalloc
	OpFree
	OpDumpMemory
	OpStats
	OpInitCache
	OpCacheRead
	OpCacheWrite
	OpCacheStats
	OpCacheConfig
	OpCacheReset
)

// Command is a parsed command line. Only the fields used by Op are set.
type Command struct {
	Op       Op
	Size     uint64
	Address  uint64
	BlockID  int32
	Strategy alloc.Strategy
}

// Reasons a line cannot be parsed.
var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
	ErrInvalidArgument = errors.New("invalid argument")
)

// ParseError reports a line that is not a valid command.
type ParseError struct {
	Line   string
	Reason error
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v: %s", e.Reason, e.Line)
	}

	return fmt.Sprintf("%v: %s", e.Reason, e.Detail)
}

// Unwrap returns the reason, so that errors.Is can match it.
func (e *ParseError) Unwrap() error {
	return e.Reason
}

// Parse converts one input line into a Command. Blank lines and lines
// starting with # parse to OpNone.
func Parse(line string) (Command, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 || strings.HasPrefix(tokens[0], "#") {
		return Command{Op: OpNone}, nil
	}

	p := parser{line: strings.TrimSpace(line), tokens: tokens}

	return p.parse()
}

type parser struct {
	line   string
	tokens []string
}

func (p parser) fail(reason error, detail string) (Command, error) {
	return Command{}, &ParseError{Line: p.line, Reason: reason, Detail: detail}
}

func (p parser) arg(i int, what string) (string, error) {
	if len(p.tokens) <= i {
		return "", &ParseError{
			Line:   p.line,
			Reason: ErrMissingArgument,
			Detail: fmt.Sprintf("%s expects %s", strings.Join(p.tokens[:i], " "), what),
		}
	}

	return p.tokens[i], nil
}

func (p parser) parse() (Command, error) {
	switch p.tokens[0] {
	case "exit", "quit":
		return Command{Op: OpExit}, nil
	case "help":
		return Command{Op: OpHelp}, nil
	case "clear":
		return Command{Op: OpClear}, nil
	case "stats":
		return Command{Op: OpStats}, nil
	case "init":
		return p.parseInit()
	case "set":
		return p.parseSet()
	case "malloc":
		return p.parseMalloc()
	case "free":
		return p.parseFree()
	case "dump":
		return p.parseDump()
	case "cache":
		return p.parseCache()
	}

	return p.fail(ErrUnknownCommand, "")
}

func (p parser) parseInit() (Command, error) {
	what, err := p.arg(1, "memory or cache")
	if err != nil {
		return Command{}, err
	}

	switch what {
	case "cache":
		return Command{Op: OpInitCache}, nil
	case "memory":
		size, err := p.size(2)
		if err != nil {
			return Command{}, err
		}

		return Command{Op: OpInitMemory, Size: size}, nil
	}

	return p.fail(ErrUnknownCommand, "")
}

func (p parser) parseSet() (Command, error) {
	what, err := p.arg(1, "allocator")
	if err != nil {
		return Command{}, err
	}

	if what != "allocator" {
		return p.fail(ErrUnknownCommand, "")
	}

	name, err := p.arg(2, "a strategy")
	if err != nil {
		return Command{}, err
	}

	strategy, err := alloc.ParseStrategy(name)
	if err != nil {
		return p.fail(ErrInvalidArgument, fmt.Sprintf(
			"unknown strategy %s, available: first_fit, best_fit, worst_fit", name))
	}

	return Command{Op: OpSetAllocator, Strategy: strategy}, nil
}

func (p parser) parseMalloc() (Command, error) {
	size, err := p.size(1)
	if err != nil {
		return Command{}, err
	}

	return Command{Op: OpMalloc, Size: size}, nil
}

func (p parser) parseFree() (Command, error) {
	s, err := p.arg(1, "a block id")
	if err != nil {
		return Command{}, err
	}

	blockID, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return p.fail(ErrInvalidArgument, "invalid block id "+s)
	}

	return Command{Op: OpFree, BlockID: int32(blockID)}, nil
}

func (p parser) parseDump() (Command, error) {
	what, err := p.arg(1, "memory")
	if err != nil {
		return Command{}, err
	}

	if what != "memory" {
		return p.fail(ErrUnknownCommand, "")
	}

	return Command{Op: OpDumpMemory}, nil
}

func (p parser) parseCache() (Command, error) {
	what, err := p.arg(1, "read, access, write, stats, config or reset")
	if err != nil {
		return Command{}, err
	}

	switch what {
	case "stats":
		return Command{Op: OpCacheStats}, nil
	case "config":
		return Command{Op: OpCacheConfig}, nil
	case "reset":
		return Command{Op: OpCacheReset}, nil
	case "read", "access", "write":
		addr, err := p.address(2)
		if err != nil {
			return Command{}, err
		}

		op := OpCacheRead
		if what == "write" {
			op = OpCacheWrite
		}

		return Command{Op: op, Address: addr}, nil
	}

	return p.fail(ErrUnknownCommand, "")
}

func (p parser) size(i int) (uint64, error) {
	s, err := p.arg(i, "a size")
	if err != nil {
		return 0, err
	}

	size, err := mem.ParseSize(s)
	if err != nil {
		return 0, &ParseError{Line: p.line, Reason: ErrInvalidArgument, Detail: "invalid size " + s}
	}

	return size, nil
}

func (p parser) address(i int) (uint64, error) {
	s, err := p.arg(i, "an address")
	if err != nil {
		return 0, err
	}

	addr, err := mem.ParseAddress(s)
	if err != nil {
		return 0, &ParseError{Line: p.line, Reason: ErrInvalidArgument, Detail: "invalid address " + s}
	}

	return addr, nil
}
