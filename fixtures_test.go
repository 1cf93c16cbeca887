package mp4seek

// This file builds small, valid single-track ISOBMFF byte buffers for
// the tests in this package, using the same Writer the library itself
// uses to serialize rewritten boxes. Fields the cut/fast-start engines
// never interpret (vmhd, dinf, edts, ...) are omitted: parseMinf and
// parseTrak only require stbl and (tkhd, mdia) respectively.

const fixtureTimescale = 8 // units/sec, chosen so small sample counts map to whole seconds

type fixtureSpec struct {
	nSamples        int
	samplesPerChunk int
	sampleSize      int
	sampleDuration  uint32
}

// buildMvhd returns a version-0 mvhd box's data (the bytes after the
// version/flags word), per the field layout ReadMvhd expects.
func buildMvhd(timescale uint32, duration uint64, nextTrackID uint32) []byte {
	data := make([]byte, 96)
	be.PutUint32(data[8:12], timescale)
	be.PutUint32(data[12:16], uint32(duration))
	be.PutUint32(data[92:96], nextTrackID)
	return data
}

// buildTkhd returns a version-0 tkhd box's data, per ReadTkhd/parseTkhd.
func buildTkhd(trackID uint32, duration uint64, width, height uint32) []byte {
	data := make([]byte, 80)
	be.PutUint32(data[8:12], trackID)
	be.PutUint32(data[16:20], uint32(duration))
	be.PutUint32(data[72:76], width<<16)
	be.PutUint32(data[76:80], height<<16)
	return data
}

// buildMdhd returns a version-0 mdhd box's data, per ReadMdhd/parseMdhd.
func buildMdhd(timescale uint32, duration uint64) []byte {
	data := make([]byte, 20)
	be.PutUint32(data[8:12], timescale)
	be.PutUint32(data[12:16], uint32(duration))
	return data
}

// buildHdlr returns an hdlr box's data, per ReadHdlr/ReadHdlrName.
func buildHdlr(handlerType BoxType, name string) []byte {
	data := make([]byte, 20+len(name)+1)
	copy(data[4:8], handlerType[:])
	copy(data[20:], name)
	return data
}

// buildAvc1SampleEntry returns a minimal avc1 sample entry box (fixed
// visual sample entry fields plus one avcC child), per
// ReadVisualSampleEntry/ReadAvcC.
func buildAvc1SampleEntry() []byte {
	fixed := make([]byte, 78)
	be.PutUint16(fixed[6:8], 1)       // data_reference_index
	be.PutUint16(fixed[24:26], 640)   // width
	be.PutUint16(fixed[26:28], 480)   // height
	be.PutUint32(fixed[28:32], 0x00480000)
	be.PutUint32(fixed[32:36], 0x00480000)
	be.PutUint16(fixed[40:42], 1) // frame_count
	fixed[42] = 0                 // compressorname length
	be.PutUint16(fixed[74:76], 24) // depth

	avcC := []byte{1, 0x64, 0x00, 0x1f}

	w := NewWriter(make([]byte, 0, 128))
	w.StartBox(TypeAvc1)
	w.Write(fixed)
	w.StartBox(TypeAvcC)
	w.Write(avcC)
	w.EndBox()
	w.EndBox()
	return w.Bytes()
}

// buildStsd returns a stsd box with a single avc1 sample entry.
func buildStsd() []byte {
	entry := buildAvc1SampleEntry()
	count := make([]byte, 4)
	be.PutUint32(count, 1)

	w := NewWriter(make([]byte, 0, 16+len(entry)))
	w.StartFullBox(TypeStsd, 0, 0)
	w.Write(count)
	w.Write(entry)
	w.EndBox()
	return w.Bytes()
}

// buildMoov assembles a one-track moov box given chunk offsets (already
// resolved to their final file-absolute values) and a sample layout.
func buildMoov(spec fixtureSpec, chunkOffsets []uint64) []byte {
	totalDuration := uint64(spec.nSamples) * uint64(spec.sampleDuration)

	sizes := make([]uint32, spec.nSamples)
	for i := range sizes {
		sizes[i] = uint32(spec.sampleSize)
	}

	syncSamples := []uint32{}
	for i := 0; i < spec.nSamples; i += spec.samplesPerChunk {
		syncSamples = append(syncSamples, uint32(i+1))
	}

	stbl := NewWriter(make([]byte, 0, 512))
	stbl.StartBox(TypeStbl)
	stbl.WriteStts([]SttsEntry{{Count: uint32(spec.nSamples), Duration: spec.sampleDuration}})
	stbl.WriteStsc([]StscEntry{{FirstChunk: 1, SamplesPerChunk: uint32(spec.samplesPerChunk), SampleDescriptionId: 1}})
	stbl.WriteStsz(uint32(spec.sampleSize), sizes)
	stbl.WriteStco(toUint32Offsets(chunkOffsets))
	stbl.WriteStss(syncSamples)
	stbl.Write(buildStsd())
	stbl.EndBox()

	minf := NewWriter(make([]byte, 0, 512))
	minf.StartBox(TypeMinf)
	minf.Write(stbl.Bytes())
	minf.EndBox()

	mdia := NewWriter(make([]byte, 0, 512))
	mdia.StartBox(TypeMdia)
	mdia.StartFullBox(TypeMdhd, 0, 0)
	mdia.Write(buildMdhd(fixtureTimescale, totalDuration))
	mdia.EndBox()
	mdia.StartFullBox(TypeHdlr, 0, 0)
	mdia.Write(buildHdlr(BoxType{'v', 'i', 'd', 'e'}, "VideoHandler"))
	mdia.EndBox()
	mdia.Write(minf.Bytes())
	mdia.EndBox()

	trak := NewWriter(make([]byte, 0, 512))
	trak.StartBox(TypeTrak)
	trak.StartFullBox(TypeTkhd, 0, 0x000007)
	trak.Write(buildTkhd(1, totalDuration, 640, 480))
	trak.EndBox()
	trak.Write(mdia.Bytes())
	trak.EndBox()

	moov := NewWriter(make([]byte, 0, 1024))
	moov.StartBox(TypeMoov)
	moov.StartFullBox(TypeMvhd, 0, 0)
	moov.Write(buildMvhd(fixtureTimescale, totalDuration, 2))
	moov.EndBox()
	moov.Write(trak.Bytes())
	moov.EndBox()
	return moov.Bytes()
}

func buildFtyp() []byte {
	w := NewWriter(make([]byte, 0, 24))
	w.StartBox(TypeFtyp)
	w.Write([]byte{'i', 's', 'o', 'm'})
	w.Write([]byte{0, 0, 0, 0})
	w.Write([]byte{'i', 's', 'o', 'm'})
	w.Write([]byte{'m', 'p', '4', '1'})
	w.EndBox()
	return w.Bytes()
}

func buildMdatPayload(spec fixtureSpec) []byte {
	total := spec.nSamples * spec.sampleSize
	payload := make([]byte, total)
	for i := range payload {
		payload[i] = byte(i)
	}
	return payload
}

func writeMdatBox(payload []byte) []byte {
	w := NewWriter(make([]byte, 0, len(payload)+8))
	if err := writeMdatHeader(&w, uint64(len(payload))); err != nil {
		panic(err)
	}
	w.Write(payload)
	return w.Bytes()
}

// writeMdatBoxExt64 returns an mdat box using the 64-bit extended-size
// header form (16-byte header) regardless of payload size, the way a
// muxer that always pre-declares co64-scale boxes would. writeMdatHeader
// only picks this form once the payload overflows 32 bits; this helper
// forces it on a small payload so tests can exercise the 16-byte-header
// read path without allocating a multi-gigabyte fixture.
func writeMdatBoxExt64(payload []byte) []byte {
	out := make([]byte, 16+len(payload))
	be.PutUint32(out[0:4], 1)
	copy(out[4:8], TypeMdat[:])
	be.PutUint64(out[8:16], uint64(16+len(payload)))
	copy(out[16:], payload)
	return out
}

// buildFastStartFile returns a complete ftyp+moov+mdat file (moov
// already ahead of mdat) for the given sample layout.
func buildFastStartFile(spec fixtureSpec) []byte {
	ftyp := buildFtyp()
	payload := buildMdatPayload(spec)
	chunkBytes := spec.samplesPerChunk * spec.sampleSize
	nChunks := spec.nSamples / spec.samplesPerChunk

	placeholder := make([]uint64, nChunks)
	moovPass1 := buildMoov(spec, placeholder)
	mdatDataStart := uint64(len(ftyp) + len(moovPass1) + 8)

	offsets := make([]uint64, nChunks)
	for i := range offsets {
		offsets[i] = mdatDataStart + uint64(i*chunkBytes)
	}
	moov := buildMoov(spec, offsets)
	if len(moov) != len(moovPass1) {
		panic("moov size changed between passes")
	}

	out := append([]byte{}, ftyp...)
	out = append(out, moov...)
	out = append(out, writeMdatBox(payload)...)
	return out
}

// buildFastStartFileExt64Mdat is like buildFastStartFile but forces the
// mdat box onto the 64-bit extended-size header form, so tests can
// check that split/stream track the mdat header size instead of
// assuming the common 8-byte form.
func buildFastStartFileExt64Mdat(spec fixtureSpec) []byte {
	ftyp := buildFtyp()
	payload := buildMdatPayload(spec)
	chunkBytes := spec.samplesPerChunk * spec.sampleSize
	nChunks := spec.nSamples / spec.samplesPerChunk

	placeholder := make([]uint64, nChunks)
	moovPass1 := buildMoov(spec, placeholder)
	mdatDataStart := uint64(len(ftyp) + len(moovPass1) + 16)

	offsets := make([]uint64, nChunks)
	for i := range offsets {
		offsets[i] = mdatDataStart + uint64(i*chunkBytes)
	}
	moov := buildMoov(spec, offsets)
	if len(moov) != len(moovPass1) {
		panic("moov size changed between passes")
	}

	out := append([]byte{}, ftyp...)
	out = append(out, moov...)
	out = append(out, writeMdatBoxExt64(payload)...)
	return out
}

// buildMdatFirstFile returns a complete ftyp+mdat+moov file (moov after
// mdat), the layout MoveHeaderAndWrite must relocate.
func buildMdatFirstFile(spec fixtureSpec) []byte {
	ftyp := buildFtyp()
	payload := buildMdatPayload(spec)
	chunkBytes := spec.samplesPerChunk * spec.sampleSize
	nChunks := spec.nSamples / spec.samplesPerChunk

	mdatDataStart := uint64(len(ftyp) + 8)
	offsets := make([]uint64, nChunks)
	for i := range offsets {
		offsets[i] = mdatDataStart + uint64(i*chunkBytes)
	}
	moov := buildMoov(spec, offsets)

	out := append([]byte{}, ftyp...)
	out = append(out, writeMdatBox(payload)...)
	out = append(out, moov...)
	return out
}
