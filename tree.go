package mp4seek

import "sort"

// This file implements the typed box model used by the cut and
// fast-start engines. Rather than a full object tree for every box,
// it decodes the boxes the engines actually rewrite (mvhd/tkhd/mdhd
// durations, the sample tables under stbl) and keeps every sibling box
// at every container level as an opaque (originalOffset, bytes) pair.
// Encode reassembles each container by sorting its children — rewritten
// plus opaque — back into their original file order, mirroring how the
// Python original's ContainerBox.write() rebuilds a box from a mix of
// copied and untouched children.

// rawChild is a box this module does not interpret, kept byte-for-byte.
type rawChild struct {
	offset int
	bytes  []byte
}

// encSlot is one child box ready to be emitted, tagged with the offset
// it originally occupied so containers can be rebuilt in source order.
type encSlot struct {
	offset int
	bytes  []byte
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func encodeBox(fn func(w *Writer)) []byte {
	w := NewWriter(make([]byte, 64))
	fn(&w)
	return w.Bytes()
}

func wrapContainer(t BoxType, slots []encSlot) []byte {
	sort.Slice(slots, func(i, j int) bool { return slots[i].offset < slots[j].offset })
	total := 8
	for _, s := range slots {
		total += len(s.bytes)
	}
	w := NewWriter(make([]byte, 0, total))
	w.StartBox(t)
	for _, s := range slots {
		w.Write(s.bytes)
	}
	w.EndBox()
	return w.Bytes()
}

// tkhdBox wraps a tkhd box's raw bytes with direct access to its
// duration field, the only field the cut engine rewrites. Every other
// field (matrix, volume, width, height, layer, alternate group) stays
// exactly as read.
type tkhdBox struct {
	raw     []byte
	version uint8
	durOff  int
	durLen  int
}

func parseTkhd(r *Reader) tkhdBox {
	version := r.Version()
	durOff, durLen := 12+16, 4
	if version == 1 {
		durOff, durLen = 12+24, 8
	}
	return tkhdBox{raw: copyBytes(r.RawBox()), version: version, durOff: durOff, durLen: durLen}
}

func (b *tkhdBox) Duration() uint64 {
	if b.durLen == 8 {
		return be.Uint64(b.raw[b.durOff:])
	}
	return uint64(be.Uint32(b.raw[b.durOff:]))
}

func (b *tkhdBox) SetDuration(d uint64) {
	if b.durLen == 8 {
		be.PutUint64(b.raw[b.durOff:], d)
	} else {
		be.PutUint32(b.raw[b.durOff:], uint32(d))
	}
}

func (b *tkhdBox) Bytes() []byte { return b.raw }

// TrackID returns the track_ID field, used only for diagnostics
// (logging, Inspect); the cut/fast-start engines never rewrite it.
func (b *tkhdBox) TrackID() uint32 {
	off := 20
	if b.version == 1 {
		off = 28
	}
	return be.Uint32(b.raw[off:])
}

// mdhdBox wraps an mdhd box's raw bytes with direct access to its
// duration field. Timescale is immutable and decoded once for the cut
// engine's time/sample math.
type mdhdBox struct {
	raw       []byte
	version   uint8
	durOff    int
	durLen    int
	Timescale uint32
}

func parseMdhd(r *Reader) mdhdBox {
	version := r.Version()
	data := r.Data()
	var timescale uint32
	durOff, durLen := 12+12, 4
	if version == 1 {
		timescale = be.Uint32(data[16:20])
		durOff, durLen = 12+20, 8
	} else {
		timescale = be.Uint32(data[8:12])
	}
	return mdhdBox{raw: copyBytes(r.RawBox()), version: version, durOff: durOff, durLen: durLen, Timescale: timescale}
}

func (b *mdhdBox) Duration() uint64 {
	if b.durLen == 8 {
		return be.Uint64(b.raw[b.durOff:])
	}
	return uint64(be.Uint32(b.raw[b.durOff:]))
}

func (b *mdhdBox) SetDuration(d uint64) {
	if b.durLen == 8 {
		be.PutUint64(b.raw[b.durOff:], d)
	} else {
		be.PutUint32(b.raw[b.durOff:], uint32(d))
	}
}

func (b *mdhdBox) Bytes() []byte { return b.raw }

// Stbl is the decoded sample table group under stbl: the run-length
// and offset tables the cut engine trims, plus every sibling box
// (stsd, sgpd, sbgp, subs, ...) kept opaque.
type Stbl struct {
	offset int

	sttsOffset int
	Stts       []SttsEntry

	cttsPresent bool
	cttsOffset  int
	cttsVersion uint8
	Ctts        []CttsEntry

	stscOffset int
	Stsc       []StscEntry

	sizesOffset   int
	sizesUseStz2  bool
	stz2FieldSize uint8
	stszConstant  uint32 // original stsz constant sample size, 0 if variable
	Sizes         []uint32

	stcoOffset     int
	offsetsUseCo64 bool
	ChunkOffsets   []uint64

	stssPresent bool
	stssOffset  int
	Stss        []uint32

	others []rawChild
}

// SampleCount returns the number of samples described by this track's
// sample-size table.
func (st *Stbl) SampleCount() uint64 { return uint64(len(st.Sizes)) }

// rawChild returns the raw bytes (header included) of an untouched
// sibling box of the given type, or nil if none is present. Used by
// Inspect to reach stsd, which the cut/fast-start engines never
// interpret.
func (st *Stbl) rawChild(t BoxType) []byte {
	for _, o := range st.others {
		if len(o.bytes) < 8 {
			continue
		}
		var bt BoxType
		copy(bt[:], o.bytes[4:8])
		if bt == t {
			return o.bytes
		}
	}
	return nil
}

func parseStbl(r *Reader) (*Stbl, error) {
	offset := r.Offset()
	r.Enter()
	st := &Stbl{offset: offset}
	var haveStts, haveStsc, haveSizes, haveOffsets bool
	for r.Next() {
		switch r.Type() {
		case TypeStts:
			it := NewSttsIter(r.Data())
			for e, ok := it.Next(); ok; e, ok = it.Next() {
				st.Stts = append(st.Stts, e)
			}
			st.sttsOffset = r.Offset()
			haveStts = true
		case TypeCtts:
			st.cttsPresent = true
			st.cttsVersion = r.Version()
			it := NewCttsIter(r.Data(), r.Version())
			for e, ok := it.Next(); ok; e, ok = it.Next() {
				st.Ctts = append(st.Ctts, e)
			}
			st.cttsOffset = r.Offset()
		case TypeStsc:
			it := NewStscIter(r.Data())
			for e, ok := it.Next(); ok; e, ok = it.Next() {
				st.Stsc = append(st.Stsc, e)
			}
			st.stscOffset = r.Offset()
			haveStsc = true
		case TypeStsz:
			data := r.Data()
			st.stszConstant = be.Uint32(data[0:4])
			it := NewStszIter(data)
			for v, ok := it.Next(); ok; v, ok = it.Next() {
				st.Sizes = append(st.Sizes, v)
			}
			st.sizesOffset = r.Offset()
			haveSizes = true
		case TypeStz2:
			st.sizesUseStz2 = true
			it := NewStz2Iter(r.Data())
			st.stz2FieldSize = it.FieldSize()
			for v, ok := it.Next(); ok; v, ok = it.Next() {
				st.Sizes = append(st.Sizes, v)
			}
			st.sizesOffset = r.Offset()
			haveSizes = true
		case TypeStco:
			it := NewUint32Iter(r.Data())
			for v, ok := it.Next(); ok; v, ok = it.Next() {
				st.ChunkOffsets = append(st.ChunkOffsets, uint64(v))
			}
			st.stcoOffset = r.Offset()
			haveOffsets = true
		case TypeCo64:
			st.offsetsUseCo64 = true
			it := NewCo64Iter(r.Data())
			for v, ok := it.Next(); ok; v, ok = it.Next() {
				st.ChunkOffsets = append(st.ChunkOffsets, v)
			}
			st.stcoOffset = r.Offset()
			haveOffsets = true
		case TypeStss:
			st.stssPresent = true
			it := NewUint32Iter(r.Data())
			for v, ok := it.Next(); ok; v, ok = it.Next() {
				st.Stss = append(st.Stss, v)
			}
			st.stssOffset = r.Offset()
		default:
			st.others = append(st.others, rawChild{offset: r.Offset(), bytes: copyBytes(r.RawBox())})
		}
	}
	r.Exit()
	if !haveStts || !haveStsc || !haveSizes || !haveOffsets {
		return nil, ErrCannotSelect
	}
	return st, nil
}

// sampleSizeFor picks the stsz constant-size field to emit: 0 (variable,
// full table follows) unless every size is equal and the source also
// used the constant-size form, in which case the optimization survives
// the cut.
func sampleSizeFor(sizes []uint32, original uint32) uint32 {
	if original == 0 || len(sizes) == 0 {
		return 0
	}
	for _, s := range sizes {
		if s != sizes[0] {
			return 0
		}
	}
	return sizes[0]
}

func toUint32Offsets(offsets []uint64) []uint32 {
	out := make([]uint32, len(offsets))
	for i, o := range offsets {
		out[i] = uint32(o)
	}
	return out
}

// Encode serializes the stbl box, rewritten tables interleaved with
// opaque siblings in their original order.
func (st *Stbl) Encode() []byte {
	slots := make([]encSlot, 0, len(st.others)+6)
	slots = append(slots, encSlot{st.sttsOffset, encodeBox(func(w *Writer) { w.WriteStts(st.Stts) })})
	if st.cttsPresent {
		slots = append(slots, encSlot{st.cttsOffset, encodeBox(func(w *Writer) { w.WriteCtts(st.cttsVersion, st.Ctts) })})
	}
	slots = append(slots, encSlot{st.stscOffset, encodeBox(func(w *Writer) { w.WriteStsc(st.Stsc) })})
	if st.sizesUseStz2 {
		slots = append(slots, encSlot{st.sizesOffset, encodeBox(func(w *Writer) { w.WriteStz2(st.stz2FieldSize, st.Sizes) })})
	} else {
		sampleSize := sampleSizeFor(st.Sizes, st.stszConstant)
		slots = append(slots, encSlot{st.sizesOffset, encodeBox(func(w *Writer) { w.WriteStsz(sampleSize, st.Sizes) })})
	}
	if st.offsetsUseCo64 {
		slots = append(slots, encSlot{st.stcoOffset, encodeBox(func(w *Writer) { w.WriteCo64(st.ChunkOffsets) })})
	} else {
		slots = append(slots, encSlot{st.stcoOffset, encodeBox(func(w *Writer) { w.WriteStco(toUint32Offsets(st.ChunkOffsets)) })})
	}
	if st.stssPresent {
		slots = append(slots, encSlot{st.stssOffset, encodeBox(func(w *Writer) { w.WriteStss(st.Stss) })})
	}
	for _, o := range st.others {
		slots = append(slots, encSlot{o.offset, o.bytes})
	}
	return wrapContainer(TypeStbl, slots)
}

// Minf wraps the stbl box plus its untouched siblings (vmhd/smhd/hmhd/
// nmhd, dinf, ...).
type Minf struct {
	offset     int
	stblOffset int
	Stbl       *Stbl
	others     []rawChild
}

func parseMinf(r *Reader) (*Minf, error) {
	offset := r.Offset()
	r.Enter()
	mi := &Minf{offset: offset}
	var haveStbl bool
	for r.Next() {
		if r.Type() == TypeStbl {
			st, err := parseStbl(r)
			if err != nil {
				r.Exit()
				return nil, err
			}
			mi.Stbl = st
			mi.stblOffset = r.Offset()
			haveStbl = true
		} else {
			mi.others = append(mi.others, rawChild{offset: r.Offset(), bytes: copyBytes(r.RawBox())})
		}
	}
	r.Exit()
	if !haveStbl {
		return nil, ErrCannotSelect
	}
	return mi, nil
}

func (mi *Minf) Encode() []byte {
	slots := make([]encSlot, 0, len(mi.others)+1)
	slots = append(slots, encSlot{mi.stblOffset, mi.Stbl.Encode()})
	for _, o := range mi.others {
		slots = append(slots, encSlot{o.offset, o.bytes})
	}
	return wrapContainer(TypeMinf, slots)
}

// Mdia wraps mdhd, hdlr, and minf, plus any untouched siblings (elng).
type Mdia struct {
	offset     int
	mdhdOffset int
	Mdhd       mdhdBox
	hdlrOffset int
	hdlrRaw    []byte
	minfOffset int
	Minf       *Minf
	others     []rawChild
}

func parseMdia(r *Reader) (*Mdia, error) {
	offset := r.Offset()
	r.Enter()
	md := &Mdia{offset: offset}
	var haveMdhd, haveMinf bool
	for r.Next() {
		switch r.Type() {
		case TypeMdhd:
			md.Mdhd = parseMdhd(r)
			md.mdhdOffset = r.Offset()
			haveMdhd = true
		case TypeHdlr:
			md.hdlrRaw = copyBytes(r.RawBox())
			md.hdlrOffset = r.Offset()
		case TypeMinf:
			mi, err := parseMinf(r)
			if err != nil {
				r.Exit()
				return nil, err
			}
			md.Minf = mi
			md.minfOffset = r.Offset()
			haveMinf = true
		default:
			md.others = append(md.others, rawChild{offset: r.Offset(), bytes: copyBytes(r.RawBox())})
		}
	}
	r.Exit()
	if !haveMdhd || !haveMinf {
		return nil, ErrCannotSelect
	}
	return md, nil
}

func (md *Mdia) Encode() []byte {
	slots := make([]encSlot, 0, len(md.others)+3)
	slots = append(slots, encSlot{md.mdhdOffset, md.Mdhd.Bytes()})
	slots = append(slots, encSlot{md.hdlrOffset, md.hdlrRaw})
	slots = append(slots, encSlot{md.minfOffset, md.Minf.Encode()})
	for _, o := range md.others {
		slots = append(slots, encSlot{o.offset, o.bytes})
	}
	return wrapContainer(TypeMdia, slots)
}

// Track wraps one trak box: tkhd, mdia, and any untouched siblings
// (edts/elst, tref, udta).
type Track struct {
	offset     int
	tkhdOffset int
	Tkhd       tkhdBox
	mdiaOffset int
	Mdia       *Mdia
	others     []rawChild
}

func parseTrak(r *Reader) (*Track, error) {
	offset := r.Offset()
	r.Enter()
	tr := &Track{offset: offset}
	var haveTkhd, haveMdia bool
	for r.Next() {
		switch r.Type() {
		case TypeTkhd:
			tr.Tkhd = parseTkhd(r)
			tr.tkhdOffset = r.Offset()
			haveTkhd = true
		case TypeMdia:
			md, err := parseMdia(r)
			if err != nil {
				r.Exit()
				return nil, err
			}
			tr.Mdia = md
			tr.mdiaOffset = r.Offset()
			haveMdia = true
		default:
			tr.others = append(tr.others, rawChild{offset: r.Offset(), bytes: copyBytes(r.RawBox())})
		}
	}
	r.Exit()
	if !haveTkhd || !haveMdia {
		return nil, ErrCannotSelect
	}
	return tr, nil
}

func (tr *Track) Encode() []byte {
	slots := make([]encSlot, 0, len(tr.others)+2)
	slots = append(slots, encSlot{tr.tkhdOffset, tr.Tkhd.Bytes()})
	slots = append(slots, encSlot{tr.mdiaOffset, tr.Mdia.Encode()})
	for _, o := range tr.others {
		slots = append(slots, encSlot{o.offset, o.bytes})
	}
	return wrapContainer(TypeTrak, slots)
}

// Movie wraps a parsed moov box: mvhd (every field but duration kept
// fully opaque — the cut engine rewrites only mvhd.duration, matching
// the update it makes to every track's tkhd.duration), every trak, and
// untouched siblings (udta, meta, mvex for fragmented files we
// otherwise ignore).
type Movie struct {
	mvhdOffset  int
	mvhdRaw     []byte
	mvhdVersion uint8
	Timescale   uint32
	Duration    uint64
	NextTrackID uint32
	Tracks      []*Track
	others      []rawChild
}

// mvhdDurationOffset returns the byte offset of the duration field
// within a raw mvhd box (header and version/flags included), and its
// width, for the given version.
func mvhdDurationOffset(version uint8) (off, length int) {
	if version == 1 {
		return 12 + 20, 8
	}
	return 12 + 12, 4
}

// SetDuration rewrites mvhd.duration in place. The cut engine calls
// this with the max, across tracks, of each track's duration expressed
// in the movie timescale, after rewriting every tkhd.
func (m *Movie) SetDuration(d uint64) {
	off, length := mvhdDurationOffset(m.mvhdVersion)
	if length == 8 {
		be.PutUint64(m.mvhdRaw[off:], d)
	} else {
		be.PutUint32(m.mvhdRaw[off:], uint32(d))
	}
	m.Duration = d
}

// ParseMoov decodes a moov box's body (the bytes after its own header)
// into a Movie.
func ParseMoov(moovData []byte) (*Movie, error) {
	r := NewReader(moovData)
	m := &Movie{}
	var haveMvhd bool
	for r.Next() {
		switch r.Type() {
		case TypeMvhd:
			m.mvhdRaw = copyBytes(r.RawBox())
			m.mvhdOffset = r.Offset()
			m.mvhdVersion = r.Version()
			m.Timescale, m.Duration, m.NextTrackID = r.ReadMvhd()
			haveMvhd = true
		case TypeTrak:
			tr, err := parseTrak(&r)
			if err != nil {
				return nil, err
			}
			m.Tracks = append(m.Tracks, tr)
		default:
			m.others = append(m.others, rawChild{offset: r.Offset(), bytes: copyBytes(r.RawBox())})
		}
	}
	if !haveMvhd || len(m.Tracks) == 0 {
		return nil, ErrCannotSelect
	}
	return m, nil
}

// Encode serializes the Movie back into a complete moov box.
func (m *Movie) Encode() []byte {
	slots := make([]encSlot, 0, len(m.others)+1+len(m.Tracks))
	slots = append(slots, encSlot{m.mvhdOffset, m.mvhdRaw})
	for _, tr := range m.Tracks {
		slots = append(slots, encSlot{tr.offset, tr.Encode()})
	}
	for _, o := range m.others {
		slots = append(slots, encSlot{o.offset, o.bytes})
	}
	return wrapContainer(TypeMoov, slots)
}
