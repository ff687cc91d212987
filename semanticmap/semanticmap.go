// Package semanticmap builds and persists the (term × cell) occurrence
// count table a trained codebook induces over a corpus, and the
// per-snippet best-matching-unit assignment it is built from. Grounded
// in original_source/src/smap.cpp for the build/build_counts semantics,
// and in sstable's Serialize/Deserialize naming convention (see
// sstable/uint32_serialization.go) adapted from that package's
// CSV-like text format to the binary little-endian layouts of
// spec.md §6.4/§6.5.
package semanticmap

import (
	"io"
	"os"

	log "github.com/golang/glog"

	"github.com/RasaHQ/semantic-map-embedding/codebook"
	"github.com/RasaHQ/semantic-map-embedding/corpus"
	"github.com/RasaHQ/semantic-map-embedding/internal/iobin"
	"github.com/RasaHQ/semantic-map-embedding/internal/semerr"
	"github.com/RasaHQ/semantic-map-embedding/matrix"
	"github.com/RasaHQ/semantic-map-embedding/util"
)

// MaxCount is the overflow ceiling for any single (term, cell) count,
// matching original_source/src/data.hpp's MAX_COUNT.
const MaxCount = ^uint32(0)

// SemanticMap is a dense VocabularySize×NumCells count table: Counts[v*NumCells+cell]
// is the number of snippets containing term v whose BMU is cell.
type SemanticMap struct {
	Height           uint32
	Width            uint32
	VocabularySize   uint32
	BestMatchingUnit []uint16
	Counts           []uint32

	// Overflowed is set once BuildCounts aborts the whole count build
	// because some (term, cell) increment would have reached MaxCount.
	// Counts is nil whenever this is true.
	Overflowed bool
}

// NumCells is Height*Width.
func (s *SemanticMap) NumCells() uint32 {
	return s.Height * s.Width
}

// Build runs the BMU search for every row of c against cb (using the
// uncorrected distance since only the argmin matters) and tabulates the
// resulting per-term cell counts. cutoff should be the same
// training-vocabulary cutoff the trainer used for its non-final epochs:
// preserving it here, even though training itself ends with a
// full-vocabulary epoch, matches the behavior this module's BMU search
// has always had.
func Build(c *corpus.Corpus, cb *codebook.Codebook, cutoff uint32, numWorkers int) *SemanticMap {
	bmu, _ := cb.FindBestMatchingUnits(c, cutoff, false, numWorkers)

	s := &SemanticMap{
		Height:           cb.Height,
		Width:            cb.Width,
		VocabularySize:   c.NumCols,
		BestMatchingUnit: bmu,
	}
	s.BuildCounts(c)
	return s
}

// BuildCounts (re)tabulates Counts from BestMatchingUnit and c. The
// first increment that would reach MaxCount aborts the build entirely:
// Counts is discarded (left nil) and Overflowed is set, matching
// original_source/src/smap.cpp's build_counts, which frees its counts
// array and returns a null pointer rather than saturating or widening.
func (s *SemanticMap) BuildCounts(c *corpus.Corpus) {
	numCells := s.NumCells()
	s.Counts = make([]uint32, uint64(s.VocabularySize)*uint64(numCells))
	s.Overflowed = false

	for row := uint32(0); row < c.NumRows; row++ {
		bmu := uint32(s.BestMatchingUnit[row])
		for _, term := range c.IndicesInRow(row) {
			if !s.incrementCount(term, bmu) {
				return
			}
		}
	}
}

// incrementCount bumps (term,cell) by one, addressing the flat Counts
// array as a row-major matrix.Uint32Matrix view instead of computing
// the stride by hand. It returns false, having discarded Counts and set
// Overflowed, if the increment would reach MaxCount.
func (s *SemanticMap) incrementCount(term, cell uint32) bool {
	m := matrix.WrapUint32Matrix(s.Counts, s.VocabularySize, s.NumCells())
	if m.Get(term, cell) >= MaxCount-1 {
		log.Warningf("semanticmap: count overflow at term %d cell %d, aborting count build", term, cell)
		s.Counts = nil
		s.Overflowed = true
		return false
	}
	m.Incr(term, cell, 1)
	return true
}

// GetCounts returns the count of term's occurrences whose BMU was cell.
func (s *SemanticMap) GetCounts(term, cell uint32) uint32 {
	return s.Counts[uint64(term)*uint64(s.NumCells())+uint64(cell)]
}

// GetCellTotal sums a term's counts across every cell.
func (s *SemanticMap) GetCellTotal(term uint32) uint32 {
	numCells := s.NumCells()
	start := uint64(term) * uint64(numCells)
	return util.VectorSum(s.Counts[start : start+uint64(numCells)])
}

// TermCounts returns the num_cells-long strip of per-cell counts for term.
func (s *SemanticMap) TermCounts(term uint32) []uint32 {
	numCells := s.NumCells()
	start := uint64(term) * uint64(numCells)
	return s.Counts[start : start+uint64(numCells)]
}

// FindSnippets returns the indices of every corpus row whose BMU is
// (row,col) on the grid.
func (s *SemanticMap) FindSnippets(row, col uint32) []uint32 {
	cell := uint16(row*s.Width + col)
	var out []uint32
	for i, b := range s.BestMatchingUnit {
		if b == cell {
			out = append(out, uint32(i))
		}
	}
	return out
}

// SaveBestMatchingUnitsToFile writes the BMU assignment using the
// little-endian binary layout of spec.md §6.4.
func (s *SemanticMap) SaveBestMatchingUnitsToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return semerr.Wrap(semerr.IO, "semanticmap: "+err.Error())
	}
	defer f.Close()
	return encodeBestMatchingUnits(f, s)
}

func encodeBestMatchingUnits(w io.Writer, s *SemanticMap) error {
	bw := iobin.NewWriter(w)
	bw.WriteUint8(0) // big-endian flag, always false for files this module writes
	bw.WriteUint8(0) // format
	bw.WriteUint64AsU64(uint64(s.Height))
	bw.WriteUint64AsU64(uint64(s.Width))
	bw.WriteUint64AsU64(uint64(s.VocabularySize))
	bw.WriteUint64AsU64(uint64(len(s.BestMatchingUnit)))
	bw.WriteUint16Slice(s.BestMatchingUnit)
	return bw.Flush()
}

// LoadBestMatchingUnitsFromFile reads a BMU assignment previously
// written by SaveBestMatchingUnitsToFile.
func LoadBestMatchingUnitsFromFile(path string) (*SemanticMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, semerr.Wrap(semerr.IO, "semanticmap: "+err.Error())
	}
	defer f.Close()
	return decodeBestMatchingUnits(f)
}

func decodeBestMatchingUnits(r io.Reader) (*SemanticMap, error) {
	br := iobin.NewReader(r)
	if flag := br.ReadUint8(); flag != 0 {
		log.Warningf("semanticmap: bmu file endianness flag is %d, expected 0", flag)
	}
	format := br.ReadUint8()
	if err := br.Err(); err != nil {
		return nil, err
	}
	if format != 0 {
		return nil, semerr.Wrapf(semerr.Format, "semanticmap: unsupported bmu format %d", format)
	}
	height := br.ReadUint64AsU64()
	width := br.ReadUint64AsU64()
	vocab := br.ReadUint64AsU64()
	datasetSize := br.ReadUint64AsU64()
	if err := br.Err(); err != nil {
		return nil, err
	}
	bmu := br.ReadUint16Slice(datasetSize)
	if err := br.Err(); err != nil {
		return nil, err
	}
	return &SemanticMap{
		Height:           uint32(height),
		Width:            uint32(width),
		VocabularySize:   uint32(vocab),
		BestMatchingUnit: bmu,
	}, nil
}

// SaveCountsToFile writes the count table using the little-endian
// binary layout of spec.md §6.5.
func (s *SemanticMap) SaveCountsToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return semerr.Wrap(semerr.IO, "semanticmap: "+err.Error())
	}
	defer f.Close()
	return encodeCounts(f, s)
}

func encodeCounts(w io.Writer, s *SemanticMap) error {
	bw := iobin.NewWriter(w)
	bw.WriteUint8(0) // big-endian flag
	bw.WriteUint8(0) // format
	bw.WriteUint64AsU64(uint64(s.Height))
	bw.WriteUint64AsU64(uint64(s.Width))
	bw.WriteUint64AsU64(uint64(s.VocabularySize))
	bw.WriteUint32Slice(s.Counts)
	return bw.Flush()
}

// LoadCountsFromFile reads a count table previously written by
// SaveCountsToFile.
func LoadCountsFromFile(path string) (*SemanticMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, semerr.Wrap(semerr.IO, "semanticmap: "+err.Error())
	}
	defer f.Close()
	return decodeCounts(f)
}

func decodeCounts(r io.Reader) (*SemanticMap, error) {
	br := iobin.NewReader(r)
	if flag := br.ReadUint8(); flag != 0 {
		log.Warningf("semanticmap: counts file endianness flag is %d, expected 0", flag)
	}
	format := br.ReadUint8()
	if err := br.Err(); err != nil {
		return nil, err
	}
	if format != 0 {
		return nil, semerr.Wrapf(semerr.Format, "semanticmap: unsupported counts format %d", format)
	}
	height := br.ReadUint64AsU64()
	width := br.ReadUint64AsU64()
	vocab := br.ReadUint64AsU64()
	if err := br.Err(); err != nil {
		return nil, err
	}

	s := &SemanticMap{Height: uint32(height), Width: uint32(width), VocabularySize: uint32(vocab)}
	s.Counts = br.ReadUint32Slice(uint64(vocab) * uint64(s.NumCells()))
	if err := br.Err(); err != nil {
		return nil, err
	}
	return s, nil
}
