package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allTopologies(t *testing.T, height, width int) []*Topology {
	t.Helper()
	var out []*Topology
	for _, g := range []GlobalTopology{PLANE, TORUS} {
		for _, l := range []LocalTopology{CIRC, RECT, HEXA} {
			topo, err := New(g, l, height, width)
			require.NoError(t, err)
			out = append(out, topo)
		}
	}
	return out
}

func TestDistanceMetricInvariants(t *testing.T) {
	for _, topo := range allTopologies(t, 10, 10) {
		for y1 := 0; y1 < 10; y1 += 3 {
			for x1 := 0; x1 < 10; x1 += 3 {
				for y2 := 0; y2 < 10; y2 += 3 {
					for x2 := 0; x2 < 10; x2 += 3 {
						d := topo.Dist(y1, x1, y2, x2)
						assert.GreaterOrEqual(t, int(d), 0)
						assert.Equal(t, uint16(0), topo.Dist(y1, x1, y1, x1))
						assert.Equal(t, d, topo.Dist(y2, x2, y1, x1))
					}
				}
			}
		}
	}
}

func TestTriangleInequality(t *testing.T) {
	for _, topo := range allTopologies(t, 6, 6) {
		for y1 := 0; y1 < 6; y1++ {
			for x1 := 0; x1 < 6; x1++ {
				for y2 := 0; y2 < 6; y2++ {
					for x2 := 0; x2 < 6; x2++ {
						for y3 := 0; y3 < 6; y3++ {
							for x3 := 0; x3 < 6; x3++ {
								ab := topo.Dist(y1, x1, y2, x2)
								bc := topo.Dist(y2, x2, y3, x3)
								ac := topo.Dist(y1, x1, y3, x3)
								assert.LessOrEqual(t, int(ac), int(ab)+int(bc))
							}
						}
					}
				}
			}
		}
	}
}

func TestHexaPlaneCalibration(t *testing.T) {
	topo, err := New(PLANE, HEXA, 10, 10)
	require.NoError(t, err)

	assert.Equal(t, uint16(10), topo.Dist(0, 0, 10, 0))
	assert.Equal(t, uint16(10), topo.Dist(0, 0, 0, 10))
	assert.Equal(t, uint16(15), topo.Dist(0, 0, 10, 10))
}

func TestHexaTorusCalibration(t *testing.T) {
	topo, err := New(TORUS, HEXA, 10, 10)
	require.NoError(t, err)

	assert.Equal(t, uint16(1), topo.Dist(0, 0, 9, 0))
	assert.Equal(t, uint16(1), topo.Dist(0, 0, 0, 9))
	assert.Equal(t, uint16(1), topo.Dist(0, 0, 9, 9))
}

func TestHexaAdjacency(t *testing.T) {
	topo, err := New(PLANE, HEXA, 20, 20)
	require.NoError(t, err)

	evenRowNeighbors := [][2]int{{-1, -1}, {-1, 0}, {0, -1}, {0, 1}, {1, -1}, {1, 0}}
	for _, d := range evenRowNeighbors {
		assert.Equal(t, uint16(1), topo.Dist(10, 10, 10+d[0], 10+d[1]))
	}

	oddRowNeighbors := [][2]int{{-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, 0}, {1, 1}}
	for _, d := range oddRowNeighbors {
		assert.Equal(t, uint16(1), topo.Dist(11, 10, 11+d[0], 10+d[1]))
	}
}

func TestHexaRejectsOddHeight(t *testing.T) {
	_, err := New(PLANE, HEXA, 5, 10)
	require.Error(t, err)
}

func TestUnsupportedGlobalTopologyRejected(t *testing.T) {
	_, err := New(MOEBIUS, RECT, 4, 4)
	require.Error(t, err)

	_, err = New(TUBE, CIRC, 4, 4)
	require.Error(t, err)
}
