// Package mem provides the units and number parsing shared by the memory
// models.
package mem

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Byte sizes.
const (
	_ = 1 << (10 * iota)
	KB
	MB
	GB
)

// ErrMalformedNumber is returned when a size or an address cannot be parsed.
var ErrMalformedNumber = errors.New("malformed number")

// ParseAddress parses an unsigned address written in decimal or with a 0x
// prefix in hexadecimal.
func ParseAddress(s string) (uint64, error) {
	s = strings.TrimSpace(s)

	base := 10
	digits := s

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}

	if digits == "" {
		return 0, errors.Wrapf(ErrMalformedNumber, "%q", s)
	}

	v, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedNumber, "%q", s)
	}

	return v, nil
}

// ParseSize parses a byte size. Besides plain numbers it accepts the K, M and
// G suffixes (case-insensitive, optionally followed by B), so "4K" and "4kb"
// are both 4096.
func ParseSize(s string) (uint64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if strings.HasPrefix(s, "0X") {
		return ParseAddress(s)
	}

	s = strings.TrimSuffix(s, "B")

	unit := uint64(1)

	switch {
	case strings.HasSuffix(s, "K"):
		unit = KB
	case strings.HasSuffix(s, "M"):
		unit = MB
	case strings.HasSuffix(s, "G"):
		unit = GB
	}

	if unit != 1 {
		s = s[:len(s)-1]
	}

	v, err := ParseAddress(s)
	if err != nil {
		return 0, err
	}

	if v > 0 && v*unit/unit != v {
		return 0, errors.Wrapf(ErrMalformedNumber, "%q overflows", s)
	}

	return v * unit, nil
}
