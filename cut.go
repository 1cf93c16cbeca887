package mp4seek

import (
	"io"
)

// cutInfo is the per-track result of locating the cut point: the first
// retained sample and its chunk, plus the file offsets needed to find
// the minimum cut point across every track.
type cutInfo struct {
	sample     uint64
	chunk      uint32
	zeroOffset uint64
	cutOffset  uint64
}

// locateCut finds, for one track, the sample/chunk pair a requested
// media time falls on.
func locateCut(tr *Track, mt uint64) cutInfo {
	stbl := tr.Mdia.Minf.Stbl
	sample := sttsTimeToSample(stbl.Stts, mt)
	chunk := stscChunkForSample(stbl.Stsc, sample)
	return cutInfo{
		sample:     sample,
		chunk:      chunk,
		zeroOffset: chunkOffset(stbl.ChunkOffsets, 1),
		cutOffset:  chunkOffset(stbl.ChunkOffsets, chunk),
	}
}

// cutTrack rewrites one track's sample tables in place for a cut at the
// given sample number, shifting chunk offsets by offsetDelta bytes of
// discarded mdat payload.
func cutTrack(tr *Track, ci cutInfo, offsetDelta int64, requestedSeconds float64) {
	stbl := tr.Mdia.Minf.Stbl

	mediaTimeDiff := sttsSampleToTime(stbl.Stts, ci.sample)
	newMediaDuration := tr.Mdia.Mdhd.Duration() - mediaTimeDiff

	logTrackCut(tr.Tkhd.TrackID(), ci, requestedSeconds, float64(mediaTimeDiff)/float64(tr.Mdia.Mdhd.Timescale))

	stbl.ChunkOffsets = cutChunkOffsets(stbl.ChunkOffsets, ci.chunk, offsetDelta)
	stbl.Stsc = cutStsc(stbl.Stsc, ci.chunk)
	stbl.Sizes = cutSizes(stbl.Sizes, ci.sample)
	stbl.Stts = cutStts(stbl.Stts, ci.sample)
	if stbl.cttsPresent {
		stbl.Ctts = cutCtts(stbl.Ctts, ci.sample)
	}
	if stbl.stssPresent {
		stbl.Stss = cutStss(stbl.Stss, ci.sample)
	}

	tr.Mdia.Mdhd.SetDuration(newMediaDuration)
}

// cutMovie rewrites a parsed Movie in place for a cut at t seconds,
// returning the absolute byte offset in the original mdat payload where
// retained sample data begins, and the number of leading mdat bytes
// being discarded.
func cutMovie(m *Movie, t float64, origMoovSize uint64) (newDataOffset uint64, discarded uint64, err error) {
	if uint64(t*float64(m.Timescale)) >= m.Duration {
		return 0, 0, ErrTimeOutOfRange
	}

	infos := make([]cutInfo, len(m.Tracks))
	for i, tr := range m.Tracks {
		mt := uint64(t * float64(tr.Mdia.Mdhd.Timescale))
		infos[i] = locateCut(tr, mt)
	}

	newDataOffset = infos[0].cutOffset
	zeroOffset := infos[0].zeroOffset
	for _, ci := range infos[1:] {
		if ci.cutOffset < newDataOffset {
			newDataOffset = ci.cutOffset
		}
		if ci.zeroOffset < zeroOffset {
			zeroOffset = ci.zeroOffset
		}
	}
	discarded = newDataOffset - zeroOffset

	for i, tr := range m.Tracks {
		cutTrack(tr, infos[i], int64(discarded), t)
	}

	// Measure the rewritten moov to find how much smaller (or larger)
	// it is than the original, then apply that as a second, final shift
	// to every chunk offset: the new moov occupies a different amount
	// of space ahead of mdat than the old one did.
	round1 := m.Encode()
	moovSizeDiff := int64(origMoovSize) - int64(len(round1))

	var movieDuration uint64
	for i, tr := range m.Tracks {
		stbl := tr.Mdia.Minf.Stbl
		stbl.ChunkOffsets = cutChunkOffsets(stbl.ChunkOffsets, 1, moovSizeDiff)

		newDuration := tr.Mdia.Mdhd.Duration() * uint64(m.Timescale) / uint64(tr.Mdia.Mdhd.Timescale)
		tr.Tkhd.SetDuration(newDuration)
		if newDuration > movieDuration {
			movieDuration = newDuration
		}
		_ = infos[i]
	}
	m.SetDuration(movieDuration)

	return newDataOffset, discarded, nil
}

// writeMdatHeader writes an mdat box header declaring the given payload
// size, using the 64-bit extended size form when the size does not fit
// in 32 bits.
func writeMdatHeader(w io.Writer, payloadSize uint64) error {
	total := payloadSize + 8
	var hdr [16]byte
	if total > uint32Max {
		be.PutUint32(hdr[0:4], 1)
		copy(hdr[4:8], TypeMdat[:])
		be.PutUint64(hdr[8:16], total+8)
		_, err := w.Write(hdr[:16])
		return err
	}
	be.PutUint32(hdr[0:4], uint32(total))
	copy(hdr[4:8], TypeMdat[:])
	_, err := w.Write(hdr[:8])
	return err
}

// splitPlan holds everything gathered from a single top-level scan of
// the source needed to rewrite the header.
type splitPlan struct {
	preMoov        [][]byte
	moovData       []byte
	moovSize       uint64
	midBoxes       [][]byte
	mdatOffset     int64
	mdatSize       int64
	mdatHeaderSize int64
}

func scanForSplit(r io.ReadSeeker) (*splitPlan, error) {
	sc := NewScanner(r)
	plan := &splitPlan{}
	seenMoov := false
	found := false
	for sc.Next() {
		e := sc.Entry()
		switch e.Type {
		case TypeMoov:
			buf := make([]byte, e.DataSize())
			if err := sc.ReadBody(buf); err != nil {
				return nil, err
			}
			plan.moovData = buf
			plan.moovSize = uint64(e.Size)
			seenMoov = true
		case TypeMdat:
			plan.mdatOffset = e.Offset
			plan.mdatSize = e.Size
			plan.mdatHeaderSize = int64(e.HeaderSize)
			found = true
		default:
			buf := make([]byte, e.Size)
			if err := sc.ReadBox(buf); err != nil {
				return nil, err
			}
			if !seenMoov {
				plan.preMoov = append(plan.preMoov, buf)
			} else {
				plan.midBoxes = append(plan.midBoxes, buf)
			}
		}
		if found {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if plan.moovData == nil || !found {
		return nil, ErrFormat
	}
	return plan, nil
}

// SplitIntoBuffer rewrites the box headers of an ISOBMFF source for a
// cut at t seconds, without copying the (potentially huge) mdat
// payload. It returns the serialized header bytes and the absolute
// byte offset in r at which the caller should resume copying to
// reproduce the retained mdat payload and any trailing boxes.
func SplitIntoBuffer(r io.ReadSeeker, t float64) ([]byte, uint64, error) {
	plan, err := scanForSplit(r)
	if err != nil {
		return nil, 0, err
	}

	movie, err := ParseMoov(plan.moovData)
	if err != nil {
		return nil, 0, err
	}

	newDataOffset, discarded, err := cutMovie(movie, t, plan.moovSize)
	if err != nil {
		return nil, 0, err
	}

	var out []byte
	buf := NewWriter(out)
	for _, b := range plan.preMoov {
		buf.Write(b)
	}
	buf.Write(movie.Encode())
	for _, b := range plan.midBoxes {
		buf.Write(b)
	}
	mdatPayload := uint64(plan.mdatSize-plan.mdatHeaderSize) - discarded
	if err := writeMdatHeader(&buf, mdatPayload); err != nil {
		return nil, 0, err
	}

	return buf.Bytes(), newDataOffset, nil
}

// Split writes a cut-at-t-seconds rewrite of r to w: every header box
// up through the new mdat header, followed by the retained mdat
// payload and any boxes that followed mdat in the source, copied
// through unchanged. It returns the absolute offset in r the payload
// copy started from, mirroring SplitIntoBuffer's contract.
func Split(r io.ReadSeeker, t float64, w io.Writer) (uint64, error) {
	header, newDataOffset, err := SplitIntoBuffer(r, t)
	if err != nil {
		return 0, err
	}
	if _, err := w.Write(header); err != nil {
		return 0, err
	}
	if _, err := r.Seek(int64(newDataOffset), io.SeekStart); err != nil {
		return 0, err
	}
	if _, err := io.Copy(w, r); err != nil {
		return 0, err
	}
	return newDataOffset, nil
}

// SyncPoints returns, in seconds, the sync-sample times of the first
// track that has an stss box. It is a read-only diagnostic: it does
// not rewrite anything.
func SyncPoints(r io.ReadSeeker) ([]float64, error) {
	sc := NewScanner(r)
	var moovData []byte
	for sc.Next() {
		e := sc.Entry()
		if e.Type == TypeMoov {
			buf := make([]byte, e.DataSize())
			if err := sc.ReadBody(buf); err != nil {
				return nil, err
			}
			moovData = buf
			break
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if moovData == nil {
		return nil, ErrFormat
	}

	movie, err := ParseMoov(moovData)
	if err != nil {
		return nil, err
	}

	for _, tr := range movie.Tracks {
		stbl := tr.Mdia.Minf.Stbl
		if !stbl.stssPresent {
			continue
		}
		ts := float64(tr.Mdia.Mdhd.Timescale)
		points := make([]float64, 0, len(stbl.Stss))
		for _, sample := range stbl.Stss {
			mediaTime := sttsSampleToTime(stbl.Stts, uint64(sample))
			points = append(points, float64(mediaTime)/ts)
		}
		return points, nil
	}
	return nil, nil
}
