package grid

import (
	"errors"
	"fmt"
)

// ErrInvalidKind is returned when a point kind name is not recognised.
var ErrInvalidKind = errors.New("invalid point kind")

// Kind classifies how a point participates in a simulation.
type Kind uint8

const (
	// Boundary points hold a fixed edge condition for solving.
	Boundary Kind = iota
	// GroundTruth points hold an internal reference reading used to check
	// solver output.
	GroundTruth
	// OutOfRange points do not participate in computation; their
	// temperature is ignored.
	OutOfRange
)

var kindNames = [...]string{
	Boundary:    "Boundary",
	GroundTruth: "GroundTruth",
	OutOfRange:  "OutOfRange",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return k <= OutOfRange
}

// ParseKind converts a kind name into a Kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return OutOfRange, fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, uint8(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Point is a single reading: a temperature and the kind of the point.
type Point struct {
	Temperature float32
	Kind        Kind
}

// DefaultPoint is the value every point holds before its first reading.
var DefaultPoint = Point{Temperature: 0, Kind: OutOfRange}
