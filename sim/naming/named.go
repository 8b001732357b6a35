// Package naming gives simulated components a printable identity.
package naming

import (
	"fmt"
	"strings"
)

// Named describes an object that has a name.
type Named interface {
	// Name returns the name of the object.
	Name() string
}

// NamedBase is a base implementation of Named.
type NamedBase struct {
	name string
}

// Name returns the name.
func (b NamedBase) Name() string {
	return b.name
}

// MakeNamedBase creates a new NamedBase. It panics if the name is not valid.
func MakeNamedBase(name string) NamedBase {
	MustBeValid(name)
	return NamedBase{name: name}
}

// MustBeValid panics if the name is empty or contains white spaces. Names are
// used as command arguments and URL path elements, so they must be a single
// token.
func MustBeValid(name string) {
	if name == "" {
		panic("name must not be empty")
	}

	if strings.ContainsAny(name, " \t\r\n/") {
		panic(fmt.Sprintf("name %q must not contain spaces or slashes", name))
	}
}
