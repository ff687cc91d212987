// Package topology computes integer cell-to-cell grid distances for the
// six (global × local) topology combinations a map can be trained under.
// Grounded in original_source/src/topo.{hpp,cpp}: the same enum values,
// the same six closed-form distances, and the same refusal (an
// invalid-argument style error) for combinations the origin never
// implemented (MOEBIUS, TUBE) or that are structurally impossible
// (HEXA on an odd number of rows).
package topology

import (
	"fmt"
	"math"

	"github.com/RasaHQ/semantic-map-embedding/internal/semerr"
)

// GlobalTopology selects the wrap rule applied to the rectangular grid.
// Values match original_source/src/topo.hpp's GlobalTopology enum so that
// the --global-topology integer option round-trips byte for byte.
type GlobalTopology uint8

const (
	TORUS   GlobalTopology = 0
	MOEBIUS GlobalTopology = 1
	TUBE    GlobalTopology = 2
	PLANE   GlobalTopology = 4
)

func (g GlobalTopology) String() string {
	switch g {
	case TORUS:
		return "torus (connecting east/west and north/south)"
	case MOEBIUS:
		return "moebius (connecting east/west with one twist)"
	case TUBE:
		return "tube (connecting east/west)"
	case PLANE:
		return "plane"
	default:
		return "UNKNOWN"
	}
}

// LocalTopology selects the local neighbor shape, and therefore the
// distance metric. Values match original_source/src/topo.hpp's
// LocalTopology enum.
type LocalTopology uint8

const (
	CIRC LocalTopology = 4
	HEXA LocalTopology = 6
	RECT LocalTopology = 8
)

func (l LocalTopology) String() string {
	switch l {
	case RECT:
		return "rectangular (8 neighbours)"
	case HEXA:
		return "hexagonal (6 neighbours)"
	case CIRC:
		return "circular (4 neighbours)"
	default:
		return "UNKNOWN"
	}
}

// DistanceFunc computes the grid distance between cell (y1,x1) and cell
// (y2,x2) on a height×width grid.
type DistanceFunc func(y1, x1, y2, x2, height, width int) uint16

// Topology pairs a global/local topology choice with its distance
// function, resolved once at construction.
type Topology struct {
	Global   GlobalTopology
	Local    LocalTopology
	Height   int
	Width    int
	Distance DistanceFunc
}

// New validates and constructs a Topology for an height×width grid.
// It fails with semerr.Validation for HEXA on an odd height, and for any
// global/local combination the origin implementation never provided a
// distance function for (MOEBIUS and TUBE are valid enum values but
// dead ends here, exactly as in original_source/src/topo.cpp).
func New(global GlobalTopology, local LocalTopology, height, width int) (*Topology, error) {
	if local == HEXA && height%2 != 0 {
		return nil, semerr.Wrap(semerr.Validation, "hexagonal topology requires an even number of rows")
	}

	fn, err := distanceFunction(global, local)
	if err != nil {
		return nil, err
	}

	return &Topology{Global: global, Local: local, Height: height, Width: width, Distance: fn}, nil
}

// Dist is a convenience wrapper around Distance using the Topology's own
// height and width.
func (t *Topology) Dist(y1, x1, y2, x2 int) uint16 {
	return t.Distance(y1, x1, y2, x2, t.Height, t.Width)
}

func distanceFunction(global GlobalTopology, local LocalTopology) (DistanceFunc, error) {
	switch global {
	case PLANE:
		switch local {
		case CIRC:
			return distCirclePlane, nil
		case HEXA:
			return distHexaPlane, nil
		case RECT:
			return distRectPlane, nil
		}
	case TORUS:
		switch local {
		case CIRC:
			return distCircleTorus, nil
		case HEXA:
			return distHexaTorus, nil
		case RECT:
			return distRectTorus, nil
		}
	}
	return nil, semerr.Wrap(semerr.Validation, fmt.Sprintf("invalid topology specification: global=%v local=%v", global, local))
}

func distCirclePlane(y, x, i, j, _, _ int) uint16 {
	dy := float64(i - y)
	dx := float64(j - x)
	return uint16(math.Ceil(math.Sqrt(dy*dy + dx*dx)))
}

func distCircleTorus(y, x, i, j, height, width int) uint16 {
	dx := abs(j - x)
	dy := abs(i - y)
	dx = min(dx, width-dx)
	dy = min(dy, height-dy)
	return uint16(math.Ceil(math.Sqrt(float64(dx*dx + dy*dy))))
}

func distRectPlane(y, x, i, j, _, _ int) uint16 {
	return uint16(max(abs(i-y), abs(j-x)))
}

func distRectTorus(y, x, i, j, height, width int) uint16 {
	dx := abs(j - x)
	dy := abs(i - y)
	dx = min(dx, width-dx)
	dy = min(dy, height-dy)
	return uint16(max(dx, dy))
}

// distHexaPlane implements a pointy-top hex grid with odd-row horizontal
// offset, following original_source/src/topo.cpp's Mathematica-simplified
// axial-coordinate expression.
func distHexaPlane(row1, col1, row2, col2, _, _ int) uint16 {
	a := abs(row1 - row2)
	b := abs(col1 - col2 - (row1 >> 1) + (row2 >> 1))
	c := abs(col1 - col2 + row1 - row2 - (row1 >> 1) + (row2 >> 1))
	return uint16(max(a, max(b, c)))
}

// distHexaTorus takes the minimum planar hex distance against the nine
// shifted replicas of (row2,col2) — the nearest-image principle applied to
// the hex lattice.
func distHexaTorus(row1, col1, row2, col2, height, width int) uint16 {
	candidates := []uint16{
		distHexaPlane(row1, col1, row2, col2, 0, 0),
		distHexaPlane(row1, col1, row2+height, col2, 0, 0),
		distHexaPlane(row1, col1, row2, col2+width, 0, 0),
		distHexaPlane(row1, col1, row2+height, col2+width, 0, 0),
		distHexaPlane(row1+height, col1, row2, col2, 0, 0),
		distHexaPlane(row1, col1+width, row2, col2, 0, 0),
		distHexaPlane(row1+height, col1+width, row2, col2, 0, 0),
		distHexaPlane(row1, col1, row2+height, col2-width, 0, 0),
		distHexaPlane(row1, col1, row2-height, col2+width, 0, 0),
	}
	m := candidates[0]
	for _, c := range candidates[1:] {
		if c < m {
			m = c
		}
	}
	return m
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
