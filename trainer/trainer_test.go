package trainer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RasaHQ/semantic-map-embedding/codebook"
	"github.com/RasaHQ/semantic-map-embedding/corpus"
	"github.com/RasaHQ/semantic-map-embedding/neighborhood"
	"github.com/RasaHQ/semantic-map-embedding/topology"
)

func buildCorpus(rows [][]uint32, numCols uint32) *corpus.Corpus {
	c := &corpus.Corpus{NumCols: numCols, NumRows: uint32(len(rows)), IndexPointer: make([]uint32, len(rows)+1)}
	var pointer uint32
	for i, r := range rows {
		c.IndexPointer[i] = pointer
		c.Indices = append(c.Indices, r...)
		pointer += uint32(len(r))
	}
	c.IndexPointer[len(rows)] = pointer
	c.NumNonZero = uint64(pointer)
	return c
}

type recorded struct {
	epochs []uint32
}

func (r *recorded) Observe(epoch uint32, _, _, _, _, _, _ float32) {
	r.epochs = append(r.epochs, epoch)
}

func TestRunProducesOneConvergenceRowPerEpochPlusFinalPass(t *testing.T) {
	topo, err := topology.New(topology.PLANE, topology.RECT, 2, 2)
	require.NoError(t, err)

	c := buildCorpus([][]uint32{{0, 1}, {1, 2}, {2, 3}}, 4)
	cb := codebook.NewRandom(2, 2, 4)
	cb.Init(7, 1)
	nb := neighborhood.New(topo, 2, 0.5, true)

	var log strings.Builder
	rec := &recorded{}
	tr := New(c, cb, nb, topo, Config{NumEpochs: 3, NumWorkers: 1, Recorder: rec}, &log)

	tr.Run()

	lines := strings.Split(strings.TrimSpace(log.String()), "\n")
	// header + 3 epoch rows + 1 final-pass row
	assert.Len(t, lines, 5)
	assert.Equal(t, []uint32{0, 1, 2, 3}, rec.epochs)
}

func TestRunInitializesSumOfSquares(t *testing.T) {
	topo, err := topology.New(topology.PLANE, topology.CIRC, 1, 2)
	require.NoError(t, err)

	c := buildCorpus([][]uint32{{0}}, 2)
	require.False(t, c.HasSumOfSquares())

	cb := codebook.NewRandom(1, 2, 2)
	nb := neighborhood.New(topo, 1, 0.5, true)
	tr := New(c, cb, nb, topo, Config{NumEpochs: 1, NumWorkers: 1}, nil)
	tr.Run()

	assert.True(t, c.HasSumOfSquares())
}
