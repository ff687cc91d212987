// Package mmapstore opens codebook and counts files as read-only
// memory-mapped views instead of reading them fully into memory, for
// inspecting multi-gigabyte files the trainer itself never needs to.
// Grounded in ic-timon-da-hvri/indexer/store/mmap_store.go's
// MmapBlockStore (open → unsafe.Slice view → Close/Unmap).
package mmapstore

import (
	"encoding/binary"
	"os"
	"unsafe"

	"github.com/edsrzf/mmap-go"

	"github.com/RasaHQ/semantic-map-embedding/internal/semerr"
)

// Codebook is a read-only memory-mapped view of a codebook file written
// by codebook.Codebook.SaveToFile.
type Codebook struct {
	f        *os.File
	data     mmap.MMap
	Height   uint32
	Width    uint32
	InputDim uint32
}

const codebookHeaderSize = 1 + 8 + 8 + 8 // format byte + 3 uint64 fields

// OpenCodebook memory-maps path and validates its header without
// reading the float32 payload into process memory.
func OpenCodebook(path string) (*Codebook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, semerr.Wrap(semerr.IO, "mmapstore: "+err.Error())
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, semerr.Wrap(semerr.IO, "mmapstore: "+err.Error())
	}
	if len(m) < codebookHeaderSize {
		m.Unmap()
		f.Close()
		return nil, semerr.Wrap(semerr.Format, "mmapstore: codebook file too short for a header")
	}
	if m[0] != 0 {
		m.Unmap()
		f.Close()
		return nil, semerr.Wrapf(semerr.Format, "mmapstore: unsupported codebook format %d", m[0])
	}

	height := binary.LittleEndian.Uint64(m[1:9])
	width := binary.LittleEndian.Uint64(m[9:17])
	inputDim := binary.LittleEndian.Uint64(m[17:25])

	return &Codebook{f: f, data: m, Height: uint32(height), Width: uint32(width), InputDim: uint32(inputDim)}, nil
}

// Row returns a zero-copy []float32 view of one cell's prototype
// weights. The slice is valid until Close; the caller must not modify it.
func (c *Codebook) Row(cell uint32) []float32 {
	start := codebookHeaderSize + int(uint64(cell)*uint64(c.InputDim))*4
	end := start + int(c.InputDim)*4
	if start < codebookHeaderSize || end > len(c.data) {
		return nil
	}
	ptr := unsafe.Pointer(&c.data[start])
	return unsafe.Slice((*float32)(ptr), c.InputDim)
}

// Close unmaps and closes the underlying file.
func (c *Codebook) Close() error {
	if c.data != nil {
		if err := c.data.Unmap(); err != nil {
			return semerr.Wrap(semerr.IO, "mmapstore: "+err.Error())
		}
		c.data = nil
	}
	if c.f != nil {
		err := c.f.Close()
		c.f = nil
		if err != nil {
			return semerr.Wrap(semerr.IO, "mmapstore: "+err.Error())
		}
	}
	return nil
}

// Counts is a read-only memory-mapped view of a counts file written by
// semanticmap.SemanticMap.SaveCountsToFile.
type Counts struct {
	f              *os.File
	data           mmap.MMap
	Height         uint32
	Width          uint32
	VocabularySize uint32
}

const countsHeaderSize = 1 + 1 + 8 + 8 + 8 // big-endian flag + format byte + 3 uint64 fields

// OpenCounts memory-maps path and validates its header.
func OpenCounts(path string) (*Counts, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, semerr.Wrap(semerr.IO, "mmapstore: "+err.Error())
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, semerr.Wrap(semerr.IO, "mmapstore: "+err.Error())
	}
	if len(m) < countsHeaderSize {
		m.Unmap()
		f.Close()
		return nil, semerr.Wrap(semerr.Format, "mmapstore: counts file too short for a header")
	}
	if m[1] != 0 {
		m.Unmap()
		f.Close()
		return nil, semerr.Wrapf(semerr.Format, "mmapstore: unsupported counts format %d", m[1])
	}

	height := binary.LittleEndian.Uint64(m[2:10])
	width := binary.LittleEndian.Uint64(m[10:18])
	vocab := binary.LittleEndian.Uint64(m[18:26])

	return &Counts{f: f, data: m, Height: uint32(height), Width: uint32(width), VocabularySize: uint32(vocab)}, nil
}

// NumCells is Height*Width.
func (c *Counts) NumCells() uint32 {
	return c.Height * c.Width
}

// TermCounts returns a zero-copy []uint32 view of one term's per-cell
// counts. The slice is valid until Close; the caller must not modify it.
func (c *Counts) TermCounts(term uint32) []uint32 {
	numCells := c.NumCells()
	start := countsHeaderSize + int(uint64(term)*uint64(numCells))*4
	end := start + int(numCells)*4
	if start < countsHeaderSize || end > len(c.data) {
		return nil
	}
	ptr := unsafe.Pointer(&c.data[start])
	return unsafe.Slice((*uint32)(ptr), numCells)
}

// Close unmaps and closes the underlying file.
func (c *Counts) Close() error {
	if c.data != nil {
		if err := c.data.Unmap(); err != nil {
			return semerr.Wrap(semerr.IO, "mmapstore: "+err.Error())
		}
		c.data = nil
	}
	if c.f != nil {
		err := c.f.Close()
		c.f = nil
		if err != nil {
			return semerr.Wrap(semerr.IO, "mmapstore: "+err.Error())
		}
	}
	return nil
}
