package neighborhood

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RasaHQ/semantic-map-embedding/topology"
)

func newTestTopology(t *testing.T) *topology.Topology {
	t.Helper()
	topo, err := topology.New(topology.PLANE, topology.RECT, 4, 4)
	require.NoError(t, err)
	return topo
}

func TestInfluenceAtSourceCellIsReciprocalOfRadius(t *testing.T) {
	n := New(newTestTopology(t), 3, 0.5, true)
	assert.InDelta(t, 1.0/3.0, n.Influence(5, 5), 1e-6)
}

func TestInfluenceDecaysWithDistance(t *testing.T) {
	n := New(newTestTopology(t), 3, 0.5, true)
	near := n.Influence(5, 6)
	far := n.Influence(5, 7)
	assert.Greater(t, near, far)
}

func TestInfluenceZeroBeyondItsOwnRadius(t *testing.T) {
	n := New(newTestTopology(t), 1, 0.5, true)
	assert.Equal(t, float32(0), n.Influence(0, 15))
}

func TestInfluenceUsesTargetCellRadiusNotSourceRadius(t *testing.T) {
	n := New(newTestTopology(t), 3, 0.5, true)
	n.Values[6] = 10
	// distance(5,6)=1 < source radius 3 and < target radius 10: using the
	// target's radius must change the result from using the source's.
	withSourceRadius := float32((1 - sqrtE*math.Exp(-0.5*1*1/(3*3))) / (3 * (1 - sqrtE)))
	got := n.Influence(5, 6)
	assert.Greater(t, math.Abs(float64(withSourceRadius)-float64(got)), 1e-6)
}

func TestUpdateShrinksRadiusBySelfExponentiation(t *testing.T) {
	n := New(newTestTopology(t), 10, 0.5, false)
	bmu := []uint16{0, 1, 2}
	nextBmu := []uint16{1, 2, 3}

	n.Update(bmu, nextBmu)
	r1 := n.Values[0]
	n.Update(bmu, nextBmu)
	r2 := n.Values[0]

	assert.Less(t, r2, r1)
	assert.GreaterOrEqual(t, r2, float32(1))
}

func TestUpdateRespectsLowerBoundWhenAdaptive(t *testing.T) {
	n := New(newTestTopology(t), 10, 0.01, true)
	// BMU 0 and next-BMU 15 are far apart, forcing a large discontinuity
	// lower bound at cell 0 that overrides the steep exponent decay.
	n.Update([]uint16{0}, []uint16{15})
	assert.GreaterOrEqual(t, n.Values[0], float32(3))
}

func TestUpdateIgnoresLowerBoundWhenNonAdaptive(t *testing.T) {
	n := New(newTestTopology(t), 10, 0.01, false)
	n.Update([]uint16{0}, []uint16{15})
	assert.Less(t, n.Values[0], float32(3))
}

func TestTopographicErrorCountsDiscontinuities(t *testing.T) {
	nAdjacent := New(newTestTopology(t), 3, 0.5, false)
	errNone := nAdjacent.Update([]uint16{0}, []uint16{1})

	nFar := New(newTestTopology(t), 3, 0.5, false)
	errOne := nFar.Update([]uint16{0}, []uint16{15})

	assert.Less(t, errNone, errOne)
}

func TestDefaultUpdateExponentDrivesRadiusToMinimumAfterNumEpochs(t *testing.T) {
	initialRadius := 4.0
	numEpochs := uint32(5)
	e := DefaultUpdateExponent(initialRadius, numEpochs)

	r := initialRadius
	for i := uint32(0); i < numEpochs; i++ {
		r = math.Pow(r, e)
	}
	assert.InDelta(t, 1.5, r, 1e-6)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	n := New(newTestTopology(t), 2.5, 0.5, false)
	var buf bytes.Buffer
	require.NoError(t, n.Encode(&buf))

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, n.Height, got.Height)
	assert.Equal(t, n.Width, got.Width)
	assert.Equal(t, n.Values, got.Values)
}
