package corpus

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RasaHQ/semantic-map-embedding/internal/iobin"
)

func encodeUnweighted(t *testing.T, numCols uint32, rows [][]uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := iobin.NewWriter(&buf)

	var total uint64
	for _, r := range rows {
		total += uint64(len(r))
	}

	w.WriteUint8(3)
	w.WriteUint64AsU64(total)
	w.WriteUint32(uint32(len(rows)))
	w.WriteUint32(numCols)
	for _, r := range rows {
		w.WriteUint32(uint32(len(r)))
		w.WriteUint32Slice(r)
	}
	require.NoError(t, w.Flush())
	return buf.Bytes()
}

func encodeWeighted(t *testing.T, numCols uint32, rows [][]uint32, weights [][]uint8) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := iobin.NewWriter(&buf)

	var total uint64
	for _, r := range rows {
		total += uint64(len(r))
	}

	w.WriteUint8(2)
	w.WriteUint64AsU64(total)
	w.WriteUint32(uint32(len(rows)))
	w.WriteUint32(numCols)
	for i, r := range rows {
		w.WriteUint32(uint32(len(r)))
		w.WriteUint32Slice(r)
		for _, wt := range weights[i] {
			w.WriteUint8(wt)
		}
	}
	require.NoError(t, w.Flush())
	return buf.Bytes()
}

func TestDecodeUnweighted(t *testing.T) {
	rows := [][]uint32{{0, 2, 5}, {1}, {}}
	data := encodeUnweighted(t, 6, rows)

	c, err := decode(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, uint32(3), c.NumRows)
	assert.Equal(t, uint32(6), c.NumCols)
	assert.False(t, c.HasWeights)
	assert.Equal(t, []uint32{0, 2, 5}, c.IndicesInRow(0))
	assert.Equal(t, []uint32{1}, c.IndicesInRow(1))
	assert.Empty(t, c.IndicesInRow(2))
	assert.Equal(t, uint32(3), c.NumIndicesInRow(0))
}

func TestDecodeWeighted(t *testing.T) {
	rows := [][]uint32{{0, 3}, {2}}
	weights := [][]uint8{{10, 20}, {5}}
	data := encodeWeighted(t, 4, rows, weights)

	c, err := decode(bytes.NewReader(data))
	require.NoError(t, err)

	require.True(t, c.HasWeights)
	assert.Equal(t, []uint8{10, 20}, c.WeightsInRow(0))
	assert.Equal(t, []uint8{5}, c.WeightsInRow(1))
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	var buf bytes.Buffer
	w := iobin.NewWriter(&buf)
	w.WriteUint8(9)
	require.NoError(t, w.Flush())

	_, err := decode(bytes.NewReader(buf.Bytes()))
	require.Error(t, err)
}

func TestDecodeRejectsOutOfRangeIndex(t *testing.T) {
	data := encodeUnweighted(t, 4, [][]uint32{{0, 4}})
	_, err := decode(bytes.NewReader(data))
	require.Error(t, err)
}

func TestDecodeRejectsNonAscendingIndices(t *testing.T) {
	data := encodeUnweighted(t, 10, [][]uint32{{3, 1}})
	_, err := decode(bytes.NewReader(data))
	require.Error(t, err)
}

func TestMinWordIndexToAvoidEmptyRow(t *testing.T) {
	rows := [][]uint32{{0, 5}, {3}, {}}
	data := encodeUnweighted(t, 10, rows)
	c, err := decode(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, uint32(3), c.MinWordIndexToAvoidEmptyRow())
}

func TestInitSumOfSquaresUnweighted(t *testing.T) {
	rows := [][]uint32{{0, 1, 2}, {4}}
	data := encodeUnweighted(t, 10, rows)
	c, err := decode(bytes.NewReader(data))
	require.NoError(t, err)

	c.InitSumOfSquares()
	assert.Equal(t, uint32(3), c.SumOfSquares(0))
	assert.Equal(t, uint32(1), c.SumOfSquares(1))
}

func TestInitSumOfSquaresWeighted(t *testing.T) {
	rows := [][]uint32{{0, 1}}
	weights := [][]uint8{{3, 4}}
	data := encodeWeighted(t, 10, rows, weights)
	c, err := decode(bytes.NewReader(data))
	require.NoError(t, err)

	c.InitSumOfSquares()
	assert.Equal(t, uint32(9+16), c.SumOfSquares(0))
}
