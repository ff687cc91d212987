package semanticmap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RasaHQ/semantic-map-embedding/corpus"
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

func TestBuildCountsTabulatesPerTermPerCell(t *testing.T) {
	c := buildCorpus([][]uint32{{0, 1}, {0}, {1}}, 2)
	s := &SemanticMap{Height: 1, Width: 2, VocabularySize: 2, BestMatchingUnit: []uint16{0, 0, 1}}
	s.BuildCounts(c)

	assert.Equal(t, uint32(2), s.GetCounts(0, 0)) // term 0: rows 0,1 both BMU cell 0
	assert.Equal(t, uint32(0), s.GetCounts(0, 1))
	assert.Equal(t, uint32(1), s.GetCounts(1, 0)) // term 1: row 0 -> cell 0
	assert.Equal(t, uint32(1), s.GetCounts(1, 1)) // term 1: row 2 -> cell 1
	assert.Equal(t, uint32(2), s.GetCellTotal(1))
}

func TestIncrementCountAbortsWholeTableOnOverflow(t *testing.T) {
	s := &SemanticMap{Height: 1, Width: 1, VocabularySize: 2}
	s.Counts = make([]uint32, 2)
	s.Counts[0] = MaxCount - 1
	s.Counts[1] = 7

	ok := s.incrementCount(0, 0)
	assert.False(t, ok)
	assert.True(t, s.Overflowed)
	assert.Nil(t, s.Counts)
}

func TestIncrementCountAbortsWhenSingleCellIsSaturated(t *testing.T) {
	s := &SemanticMap{Height: 1, Width: 1, VocabularySize: 1, BestMatchingUnit: []uint16{0, 0}}
	s.Counts = make([]uint32, 1)
	s.Counts[0] = MaxCount - 1 // the next increment anywhere must abort

	assert.False(t, s.incrementCount(0, 0))
	assert.True(t, s.Overflowed)
	assert.Nil(t, s.Counts)
}

func TestFindSnippets(t *testing.T) {
	s := &SemanticMap{Height: 2, Width: 2, BestMatchingUnit: []uint16{0, 3, 3, 1}}
	assert.Equal(t, []uint32{1, 2}, s.FindSnippets(1, 1))
	assert.Equal(t, []uint32{0}, s.FindSnippets(0, 0))
}

func TestBestMatchingUnitsRoundTrip(t *testing.T) {
	s := &SemanticMap{Height: 2, Width: 2, VocabularySize: 3, BestMatchingUnit: []uint16{0, 1, 2, 3}}
	var buf bytes.Buffer
	require.NoError(t, encodeBestMatchingUnits(&buf, s))

	got, err := decodeBestMatchingUnits(&buf)
	require.NoError(t, err)
	assert.Equal(t, s.Height, got.Height)
	assert.Equal(t, s.Width, got.Width)
	assert.Equal(t, s.VocabularySize, got.VocabularySize)
	assert.Equal(t, s.BestMatchingUnit, got.BestMatchingUnit)
}

func TestCountsRoundTrip(t *testing.T) {
	s := &SemanticMap{Height: 1, Width: 2, VocabularySize: 2, Counts: []uint32{1, 2, 3, 4}}
	var buf bytes.Buffer
	require.NoError(t, encodeCounts(&buf, s))

	got, err := decodeCounts(&buf)
	require.NoError(t, err)
	assert.Equal(t, s.Counts, got.Counts)
}
