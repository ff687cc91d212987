package mmapstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RasaHQ/semantic-map-embedding/codebook"
	"github.com/RasaHQ/semantic-map-embedding/semanticmap"
)

func TestOpenCodebookReadsRowsFromCodebookEncode(t *testing.T) {
	cb := codebook.NewRandom(2, 2, 3)
	cb.Init(1, 1)

	path := filepath.Join(t.TempDir(), "test.codebook")
	require.NoError(t, cb.SaveToFile(path))

	view, err := OpenCodebook(path)
	require.NoError(t, err)
	defer view.Close()

	assert.Equal(t, uint32(2), view.Height)
	assert.Equal(t, uint32(2), view.Width)
	assert.Equal(t, uint32(3), view.InputDim)

	for cell := uint32(0); cell < 4; cell++ {
		assert.Equal(t, cb.Values[cell*3:cell*3+3], view.Row(cell))
	}
	assert.Nil(t, view.Row(4))
}

func TestOpenCountsReadsTermCountsFromSaveCountsToFile(t *testing.T) {
	s := &semanticmap.SemanticMap{Height: 1, Width: 2, VocabularySize: 2}
	s.Counts = []uint32{5, 7, 0, 3}

	path := filepath.Join(t.TempDir(), "test.counts")
	require.NoError(t, s.SaveCountsToFile(path))

	view, err := OpenCounts(path)
	require.NoError(t, err)
	defer view.Close()

	assert.Equal(t, uint32(1), view.Height)
	assert.Equal(t, uint32(2), view.Width)
	assert.Equal(t, uint32(2), view.VocabularySize)
	assert.Equal(t, []uint32{5, 7}, view.TermCounts(0))
	assert.Equal(t, []uint32{0, 3}, view.TermCounts(1))
	assert.Nil(t, view.TermCounts(2))
}

func TestOpenCodebookRejectsShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.codebook")
	require.NoError(t, os.WriteFile(path, []byte{0, 1, 2}, 0o644))

	_, err := OpenCodebook(path)
	assert.Error(t, err)
}
