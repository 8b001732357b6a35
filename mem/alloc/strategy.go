package alloc

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Strategy decides which free block serves a request.
type Strategy int

// The supported placement strategies.
const (
	// FirstFit takes the lowest-addressed free block that is large enough.
	FirstFit Strategy = iota
	// BestFit takes the smallest free block that is large enough.
	BestFit
	// WorstFit takes the largest free block.
	WorstFit
)

// Strategies lists all strategies in the order they are documented.
var Strategies = []Strategy{FirstFit, BestFit, WorstFit}

// String returns the name used on the command line, e.g. "best_fit".
func (s Strategy) String() string {
	switch s {
	case FirstFit:
		return "first_fit"
	case BestFit:
		return "best_fit"
	case WorstFit:
		return "worst_fit"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// DisplayName returns a human readable name, e.g. "Best Fit".
func (s Strategy) DisplayName() string {
	switch s {
	case FirstFit:
		return "First Fit"
	case BestFit:
		return "Best Fit"
	case WorstFit:
		return "Worst Fit"
	default:
		return "Unknown"
	}
}

func (s Strategy) valid() bool {
	return s >= FirstFit && s <= WorstFit
}

// ParseStrategy converts a name such as "first_fit" to a Strategy. Dashes are
// accepted in place of underscores and case is ignored.
func ParseStrategy(name string) (Strategy, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")

	for _, s := range Strategies {
		if s.String() == normalized {
			return s, nil
		}
	}

	return FirstFit, errors.Wrapf(ErrInvalidStrategy, "%q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, errors.Wrapf(ErrInvalidStrategy, "%d", int(s))
	}

	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}
