// Package iobin provides the little-endian scalar read/write primitives
// shared by every on-disk format in this module (corpus, codebook,
// neighborhood, BMU and counts files), plus the startup endianness guard.
// Grounded in ic-timon-da-hvri's header codec (encoding/binary over a
// bytes.Buffer) and hupe1980-vecgo's persistence writer/reader split.
package iobin

import (
	"bufio"
	"encoding/binary"
	"io"
	"unsafe"

	"github.com/RasaHQ/semantic-map-embedding/internal/semerr"
)

// HostIsBigEndian reports whether the current process is running on a
// big-endian host. All on-disk formats in this module are little-endian
// only; callers must refuse to run when this returns true.
func HostIsBigEndian() bool {
	var probe uint32 = 0x01020304
	b := (*[4]byte)(unsafe.Pointer(&probe))
	return b[0] == 1
}

// Writer wraps an io.Writer with little-endian scalar helpers. The first
// error encountered is sticky: subsequent calls become no-ops so callers
// can chain writes and check Err once at the end.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter wraps w for buffered little-endian writes.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) WriteUint8(v uint8) {
	if w.err != nil {
		return
	}
	w.err = w.w.WriteByte(v)
}

func (w *Writer) WriteUint16(v uint16) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

func (w *Writer) WriteUint32(v uint32) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

// WriteUint64AsU64 writes v widened to a 64-bit little-endian integer, the
// framing every header field in this module's wire formats uses regardless
// of the narrower Go type behind it (heights, widths, dataset sizes, ...).
func (w *Writer) WriteUint64AsU64(v uint64) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

func (w *Writer) WriteFloat32(v float32) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

// WriteFloat32Slice writes n float32 values back to back.
func (w *Writer) WriteFloat32Slice(v []float32) {
	if w.err != nil || len(v) == 0 {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

// WriteUint16Slice writes n uint16 values back to back.
func (w *Writer) WriteUint16Slice(v []uint16) {
	if w.err != nil || len(v) == 0 {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

// WriteUint32Slice writes n uint32 values back to back.
func (w *Writer) WriteUint32Slice(v []uint32) {
	if w.err != nil || len(v) == 0 {
		return
	}
	w.err = binary.Write(w.w, binary.LittleEndian, v)
}

// Flush flushes any buffered bytes and returns the sticky error, if any.
func (w *Writer) Flush() error {
	if w.err != nil {
		return semerr.Wrap(semerr.IO, w.err.Error())
	}
	if err := w.w.Flush(); err != nil {
		return semerr.Wrap(semerr.IO, err.Error())
	}
	return nil
}

// Reader wraps an io.Reader with little-endian scalar helpers. Like
// Writer, the first error is sticky.
type Reader struct {
	r   *bufio.Reader
	err error
}

// NewReader wraps r for buffered little-endian reads.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Err returns the first error encountered, wrapped as semerr.IO unless it
// is already a semerr kind.
func (r *Reader) Err() error {
	if r.err == nil {
		return nil
	}
	return semerr.Wrap(semerr.IO, r.err.Error())
}

func (r *Reader) ReadUint8() uint8 {
	if r.err != nil {
		return 0
	}
	b, err := r.r.ReadByte()
	if err != nil {
		r.err = err
		return 0
	}
	return b
}

func (r *Reader) ReadUint64AsU64() uint64 {
	if r.err != nil {
		return 0
	}
	var v uint64
	r.err = binary.Read(r.r, binary.LittleEndian, &v)
	return v
}

func (r *Reader) ReadUint32() uint32 {
	if r.err != nil {
		return 0
	}
	var v uint32
	r.err = binary.Read(r.r, binary.LittleEndian, &v)
	return v
}

func (r *Reader) ReadUint16() uint16 {
	if r.err != nil {
		return 0
	}
	var v uint16
	r.err = binary.Read(r.r, binary.LittleEndian, &v)
	return v
}

func (r *Reader) ReadFloat32() float32 {
	if r.err != nil {
		return 0
	}
	var v float32
	r.err = binary.Read(r.r, binary.LittleEndian, &v)
	return v
}

// ReadFloat32Slice reads n float32 values into a freshly allocated slice.
func (r *Reader) ReadFloat32Slice(n uint64) []float32 {
	if r.err != nil {
		return nil
	}
	out := make([]float32, n)
	if n == 0 {
		return out
	}
	r.err = binary.Read(r.r, binary.LittleEndian, out)
	return out
}

// ReadUint16Slice reads n uint16 values into a freshly allocated slice.
func (r *Reader) ReadUint16Slice(n uint64) []uint16 {
	if r.err != nil {
		return nil
	}
	out := make([]uint16, n)
	if n == 0 {
		return out
	}
	r.err = binary.Read(r.r, binary.LittleEndian, out)
	return out
}

// ReadUint32Slice reads n uint32 values into a freshly allocated slice.
func (r *Reader) ReadUint32Slice(n uint64) []uint32 {
	if r.err != nil {
		return nil
	}
	out := make([]uint32, n)
	if n == 0 {
		return out
	}
	r.err = binary.Read(r.r, binary.LittleEndian, out)
	return out
}
