// Package corpus implements the row-major CSR-like binary (optionally
// weighted) sparse term-occurrence matrix that a semantic map trains
// over. Grounded in bobonovski-gotm/corpus/corpus.go's Load method for
// the load/validate/log shape, generalized from the teacher's
// line-oriented docId/wordId:count text format to the binary framed
// layout of spec.md §6.1.
package corpus

import (
	"io"
	"os"

	log "github.com/golang/glog"

	"github.com/RasaHQ/semantic-map-embedding/internal/iobin"
	"github.com/RasaHQ/semantic-map-embedding/internal/semerr"
)

// MaxIndexPointerSize bounds num_non_zero, mirroring IndexPointerType's
// 32-bit width in the origin.
const MaxIndexPointerSize = uint64(^uint32(0))

// Corpus is an immutable row-major CSR-like binary (optionally weighted)
// sparse matrix of NumRows snippets over NumCols vocabulary terms.
type Corpus struct {
	NumRows      uint32
	NumCols      uint32
	NumNonZero   uint64
	HasWeights   bool
	Indices      []uint32
	Weights      []uint8
	IndexPointer []uint32

	sumOfSquares []uint32
}

// Load reads a corpus from the binary framed layout of spec.md §6.1.
func Load(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, semerr.Wrap(semerr.IO, "corpus: "+err.Error())
	}
	defer f.Close()

	log.Infof("loading corpus from %s", path)

	c, err := decode(f)
	if err != nil {
		return nil, err
	}

	log.Infof("number of snippets: %d", c.NumRows)
	log.Infof("vocabulary size: %d", c.NumCols)
	log.Infof("total number of tokens: %d", c.NumNonZero)

	return c, nil
}

func decode(r io.Reader) (*Corpus, error) {
	br := iobin.NewReader(r)

	formatVersion := br.ReadUint8()
	var hasWeights bool
	switch formatVersion {
	case 2:
		hasWeights = true
	case 3:
		hasWeights = false
	default:
		if err := br.Err(); err != nil {
			return nil, err
		}
		return nil, semerr.Wrapf(semerr.Format, "corpus: expected file format version 2 or 3, got %d", formatVersion)
	}

	numNonZero := br.ReadUint64AsU64()
	if err := br.Err(); err != nil {
		return nil, err
	}
	if numNonZero > MaxIndexPointerSize {
		return nil, semerr.Wrap(semerr.Format, "corpus: too many entries in training data")
	}

	numRows := br.ReadUint32()
	numCols := br.ReadUint32()
	if err := br.Err(); err != nil {
		return nil, err
	}

	c := &Corpus{
		NumRows:      numRows,
		NumCols:      numCols,
		NumNonZero:   numNonZero,
		HasWeights:   hasWeights,
		Indices:      make([]uint32, 0, numNonZero),
		IndexPointer: make([]uint32, numRows+1),
	}
	if hasWeights {
		c.Weights = make([]uint8, 0, numNonZero)
	}

	var pointer uint32
	for row := uint32(0); row < numRows; row++ {
		entries := br.ReadUint32()
		if err := br.Err(); err != nil {
			return nil, err
		}

		rowIndices := br.ReadUint32Slice(uint64(entries))
		if err := br.Err(); err != nil {
			return nil, err
		}
		for k, idx := range rowIndices {
			if idx >= numCols {
				return nil, semerr.Wrapf(semerr.Format, "corpus: row %d has index %d >= num_cols %d", row, idx, numCols)
			}
			if k > 0 && idx <= rowIndices[k-1] {
				return nil, semerr.Wrapf(semerr.Format, "corpus: row %d indices are not strictly ascending", row)
			}
		}
		c.Indices = append(c.Indices, rowIndices...)

		if hasWeights {
			rowWeights := make([]uint8, entries)
			for i := range rowWeights {
				rowWeights[i] = br.ReadUint8()
			}
			if err := br.Err(); err != nil {
				return nil, err
			}
			c.Weights = append(c.Weights, rowWeights...)
		}

		pointer += entries
		c.IndexPointer[row+1] = pointer
	}

	if uint64(pointer) != numNonZero {
		log.Warningf("corpus: sum of row entries (%d) does not match declared num_non_zero (%d)", pointer, numNonZero)
	}

	return c, nil
}

// IndicesInRow returns the ascending vocabulary indices for row r.
func (c *Corpus) IndicesInRow(r uint32) []uint32 {
	start, end := c.IndexPointer[r], c.IndexPointer[r+1]
	return c.Indices[start:end]
}

// WeightsInRow returns the per-entry weights for row r, or nil if the
// corpus is unweighted.
func (c *Corpus) WeightsInRow(r uint32) []uint8 {
	if !c.HasWeights {
		return nil
	}
	start, end := c.IndexPointer[r], c.IndexPointer[r+1]
	return c.Weights[start:end]
}

// NumIndicesInRow returns the number of non-zero entries in row r.
func (c *Corpus) NumIndicesInRow(r uint32) uint32 {
	return c.IndexPointer[r+1] - c.IndexPointer[r]
}

// MinWordIndexToAvoidEmptyRow returns the maximum, over all rows, of the
// smallest term index present in that row. A --train-vocab-cutoff below
// this value would leave at least one row with no usable terms.
func (c *Corpus) MinWordIndexToAvoidEmptyRow() uint32 {
	var maxFirst uint32
	for row := uint32(0); row < c.NumRows; row++ {
		indices := c.IndicesInRow(row)
		if len(indices) == 0 {
			continue
		}
		if indices[0] > maxFirst {
			maxFirst = indices[0]
		}
	}
	return maxFirst
}

// InitSumOfSquares lazily computes and caches, for every row, the sum of
// squared weights (or, for an unweighted corpus, the non-zero count).
func (c *Corpus) InitSumOfSquares() {
	c.sumOfSquares = make([]uint32, c.NumRows)
	for row := uint32(0); row < c.NumRows; row++ {
		if c.HasWeights {
			var sum uint32
			for _, w := range c.WeightsInRow(row) {
				sum += uint32(w) * uint32(w)
			}
			c.sumOfSquares[row] = sum
		} else {
			c.sumOfSquares[row] = c.NumIndicesInRow(row)
		}
	}
}

// SumOfSquares returns the cached Σw² (or non-zero count) for row r.
// InitSumOfSquares must have been called first.
func (c *Corpus) SumOfSquares(r uint32) uint32 {
	return c.sumOfSquares[r]
}

// HasSumOfSquares reports whether InitSumOfSquares has run.
func (c *Corpus) HasSumOfSquares() bool {
	return c.sumOfSquares != nil
}
