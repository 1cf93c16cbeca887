package mp4seek

// writerFrame tracks the start offset of a box for size backpatching.
type writerFrame struct {
	offset int
}

// Writer encodes ISOBMFF boxes into a byte buffer.
type Writer struct {
	buf   []byte
	pos   int
	stack [maxDepth]writerFrame
	depth int
}

// NewWriter creates a Writer that writes into buf.
func NewWriter(buf []byte) Writer {
	return Writer{buf: buf[:cap(buf)]}
}

// Bytes returns the written data.
func (w *Writer) Bytes() []byte {
	return w.buf[:w.pos]
}

// Len returns the number of bytes written.
func (w *Writer) Len() int { return w.pos }

// Write appends raw bytes. Implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if w.pos+len(p) > len(w.buf) {
		grown := make([]byte, (w.pos+len(p))*2+64)
		copy(grown, w.buf[:w.pos])
		w.buf = grown
	}
	copy(w.buf[w.pos:], p)
	w.pos += len(p)
	return len(p), nil
}

// putUint8 appends a single byte.
func (w *Writer) putUint8(v byte) {
	w.buf[w.pos] = v
	w.pos++
}

// putUint32 appends a big-endian uint32.
func (w *Writer) putUint32(v uint32) {
	be.PutUint32(w.buf[w.pos:], v)
	w.pos += 4
}

// putUint64 appends a big-endian uint64.
func (w *Writer) putUint64(v uint64) {
	be.PutUint64(w.buf[w.pos:], v)
	w.pos += 8
}

// putBytes appends raw bytes.
func (w *Writer) putBytes(p []byte) {
	copy(w.buf[w.pos:], p)
	w.pos += len(p)
}

// Reset resets the writer position to 0.
func (w *Writer) Reset() {
	w.pos = 0
	w.depth = 0
}

// Grow ensures the writer has room for at least n more bytes, reallocating
// the backing buffer if necessary. Table rewrites can grow a box (e.g. an
// stco upgraded to co64), so callers size conservatively and Grow as needed.
func (w *Writer) Grow(n int) {
	if w.pos+n <= len(w.buf) {
		return
	}
	grown := make([]byte, (w.pos+n)*2+64)
	copy(grown, w.buf[:w.pos])
	w.buf = grown
}

// StartBox begins a new box. Write content, then call EndBox.
func (w *Writer) StartBox(t BoxType) {
	w.Grow(8)
	w.stack[w.depth] = writerFrame{offset: w.pos}
	w.depth++
	w.putUint32(0) // placeholder size
	w.putBytes(t[:])
}

// StartFullBox begins a new full box with version and flags.
func (w *Writer) StartFullBox(t BoxType, version uint8, flags uint32) {
	w.Grow(12)
	w.StartBox(t)
	vf := (uint32(version) << 24) | (flags & 0x00ffffff)
	w.putUint32(vf)
}

// EndBox finishes the current box by backpatching its size.
func (w *Writer) EndBox() {
	w.depth--
	f := w.stack[w.depth]
	size := uint32(w.pos - f.offset)
	be.PutUint32(w.buf[f.offset:], size)
}

// WriteStsz writes a complete stsz box.
func (w *Writer) WriteStsz(sampleSize uint32, entries []uint32) {
	w.Grow(16 + 4*len(entries))
	w.StartFullBox(TypeStsz, 0, 0)
	w.putUint32(sampleSize)
	w.putUint32(uint32(len(entries)))
	if sampleSize == 0 {
		for _, e := range entries {
			w.putUint32(e)
		}
	}
	w.EndBox()
}

// WriteStz2 writes a complete stz2 box. fieldSize must be 4, 8, or 16.
// For fieldSize 4, entries are packed two per byte, high nibble first;
// an odd final entry takes the high nibble of a trailing byte whose low
// nibble is zero.
func (w *Writer) WriteStz2(fieldSize uint8, entries []uint32) error {
	switch fieldSize {
	case 16:
		w.Grow(16 + 2*len(entries))
		w.StartFullBox(TypeStz2, 0, 0)
		w.putUint8(0)
		w.putUint8(0)
		w.putUint8(0)
		w.putUint8(16)
		w.putUint32(uint32(len(entries)))
		for _, e := range entries {
			be.PutUint16(w.buf[w.pos:], uint16(e))
			w.pos += 2
		}
		w.EndBox()
	case 8:
		w.Grow(16 + len(entries))
		w.StartFullBox(TypeStz2, 0, 0)
		w.putUint8(0)
		w.putUint8(0)
		w.putUint8(0)
		w.putUint8(8)
		w.putUint32(uint32(len(entries)))
		for _, e := range entries {
			w.putUint8(byte(e))
		}
		w.EndBox()
	case 4:
		w.Grow(16 + (len(entries)+1)/2)
		w.StartFullBox(TypeStz2, 0, 0)
		w.putUint8(0)
		w.putUint8(0)
		w.putUint8(0)
		w.putUint8(4)
		w.putUint32(uint32(len(entries)))
		for i := 0; i < len(entries); i += 2 {
			hi := byte(entries[i] & 0x0f)
			var lo byte
			if i+1 < len(entries) {
				lo = byte(entries[i+1] & 0x0f)
			}
			w.putUint8((hi << 4) | lo)
		}
		w.EndBox()
	default:
		return ErrFormat
	}
	return nil
}

// WriteStco writes a complete stco box.
func (w *Writer) WriteStco(entries []uint32) {
	w.Grow(16 + 4*len(entries))
	w.StartFullBox(TypeStco, 0, 0)
	w.putUint32(uint32(len(entries)))
	for _, e := range entries {
		w.putUint32(e)
	}
	w.EndBox()
}

// WriteCo64 writes a complete co64 box.
func (w *Writer) WriteCo64(entries []uint64) {
	w.Grow(16 + 8*len(entries))
	w.StartFullBox(TypeCo64, 0, 0)
	w.putUint32(uint32(len(entries)))
	for _, e := range entries {
		w.putUint64(e)
	}
	w.EndBox()
}

// WriteStss writes a complete stss box.
func (w *Writer) WriteStss(entries []uint32) {
	w.Grow(16 + 4*len(entries))
	w.StartFullBox(TypeStss, 0, 0)
	w.putUint32(uint32(len(entries)))
	for _, e := range entries {
		w.putUint32(e)
	}
	w.EndBox()
}

// WriteStts writes a complete stts box.
func (w *Writer) WriteStts(entries []SttsEntry) {
	w.Grow(16 + 8*len(entries))
	w.StartFullBox(TypeStts, 0, 0)
	w.putUint32(uint32(len(entries)))
	for _, e := range entries {
		w.putUint32(e.Count)
		w.putUint32(e.Duration)
	}
	w.EndBox()
}

// WriteCtts writes a complete ctts box.
func (w *Writer) WriteCtts(version uint8, entries []CttsEntry) {
	w.Grow(16 + 8*len(entries))
	w.StartFullBox(TypeCtts, version, 0)
	w.putUint32(uint32(len(entries)))
	for _, e := range entries {
		w.putUint32(e.Count)
		w.putUint32(uint32(e.Offset))
	}
	w.EndBox()
}

// WriteStsc writes a complete stsc box.
func (w *Writer) WriteStsc(entries []StscEntry) {
	w.Grow(16 + 12*len(entries))
	w.StartFullBox(TypeStsc, 0, 0)
	w.putUint32(uint32(len(entries)))
	for _, e := range entries {
		w.putUint32(e.FirstChunk)
		w.putUint32(e.SamplesPerChunk)
		w.putUint32(e.SampleDescriptionId)
	}
	w.EndBox()
}
