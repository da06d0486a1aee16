package domain

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// ErrMalformedLocation is returned by ParseLocation for any string not in
// the exact form "x:<int>,y:<int>".
var ErrMalformedLocation = errors.New("malformed damage location")

var locationPattern = regexp.MustCompile(`^x:(\d+),y:(\d+)$`)

// Location is a point in source image pixels.
type Location struct {
	X int
	Y int
}

// String encodes the location as "x:<int>,y:<int>".
func (l Location) String() string {
	return fmt.Sprintf("x:%d,y:%d", l.X, l.Y)
}

// ParseLocation decodes "x:<int>,y:<int>". Signs, spaces and decimals are rejected.
func ParseLocation(raw string) (Location, error) {
	m := locationPattern.FindStringSubmatch(raw)
	if m == nil {
		return Location{}, fmt.Errorf("%w: %q", ErrMalformedLocation, raw)
	}
	x, errX := strconv.Atoi(m[1])
	y, errY := strconv.Atoi(m[2])
	if errX != nil || errY != nil {
		return Location{}, fmt.Errorf("%w: %q", ErrMalformedLocation, raw)
	}
	return Location{X: x, Y: y}, nil
}

// Distance is the Euclidean distance between two locations.
func Distance(a, b Location) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}
