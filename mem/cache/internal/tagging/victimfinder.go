package tagging

import (
	"fmt"
	"strings"
)

// Policy selects the line to evict when a set is full.
type Policy int

// The supported replacement policies.
const (
	// FIFO evicts the line that was filled first.
	FIFO Policy = iota
	// LRU evicts the line that was accessed least recently.
	LRU
)

// String returns "FIFO" or "LRU".
func (p Policy) String() string {
	switch p {
	case FIFO:
		return "FIFO"
	case LRU:
		return "LRU"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Valid tells if p is one of the supported policies.
func (p Policy) Valid() bool {
	return p == FIFO || p == LRU
}

// ParsePolicy converts "fifo" or "lru", in any case, to a Policy.
func ParsePolicy(name string) (Policy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fifo":
		return FIFO, true
	case "lru":
		return LRU, true
	default:
		return FIFO, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("unknown replacement policy %d", int(p))
	}

	return []byte(strings.ToLower(p.String())), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, ok := ParsePolicy(string(text))
	if !ok {
		return fmt.Errorf("unknown replacement policy %q", string(text))
	}

	*p = parsed

	return nil
}

// FindVictim returns the way of the line to be replaced. An invalid line is
// always preferred. Otherwise FIFO takes the head of the fill queue, removing
// it from the queue, and LRU takes the line with the oldest access, the lowest
// way winning ties.
func (s *Set) FindVictim(policy Policy) int {
	for i, line := range s.Lines {
		if !line.Valid {
			return i
		}
	}

	switch policy {
	case FIFO:
		victim := s.FIFOQueue[0]
		s.FIFOQueue = s.FIFOQueue[1:]

		return victim
	case LRU:
		victim := 0
		for i := 1; i < len(s.Lines); i++ {
			if s.Lines[i].LastAccess < s.Lines[victim].LastAccess {
				victim = i
			}
		}

		return victim
	default:
		panic(fmt.Sprintf("unknown replacement policy %d", int(policy)))
	}
}

// Fill installs a line for tag at the given way and records the fill for
// FIFO.
func (s *Set) Fill(way int, tag, now uint64, dirty bool, policy Policy) {
	s.Lines[way] = Line{
		Valid:      true,
		Dirty:      dirty,
		Tag:        tag,
		LastAccess: now,
	}

	if policy == FIFO {
		s.FIFOQueue = append(s.FIFOQueue, way)
	}
}
