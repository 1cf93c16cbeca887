package mp4seek

import "io"

// This file implements the fast-start mover (spec component F): moving
// moov ahead of mdat for HTTP progressive playback, and fixing up every
// chunk offset the relocation perturbs. Unlike the cut engine, this is a
// single rewrite pass over one box (moov) plus a conditional second pass
// when an offset would overflow a 32-bit stco entry.

// scanTopLevelEntries reads every top-level box header from r without
// loading any box body into memory.
func scanTopLevelEntries(r io.ReadSeeker) ([]ScanEntry, error) {
	sc := NewScanner(r)
	var entries []ScanEntry
	for sc.Next() {
		entries = append(entries, sc.Entry())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// copyBoxThrough streams one top-level box from r to w without buffering
// its body, so moving moov never requires holding mdat in memory.
func copyBoxThrough(r io.ReadSeeker, w io.Writer, e ScanEntry) error {
	if _, err := r.Seek(e.Offset, io.SeekStart); err != nil {
		return err
	}
	_, err := io.CopyN(w, r, e.Size)
	return err
}

// shiftChunkOffsets adds delta to every track's chunk offsets, replacing
// (not accumulating onto) whatever is currently stored, given each
// track's offsets as they were before any shift was applied.
func shiftChunkOffsets(m *Movie, original [][]uint64, delta uint64) {
	for i, tr := range m.Tracks {
		stbl := tr.Mdia.Minf.Stbl
		shifted := make([]uint64, len(original[i]))
		for j, o := range original[i] {
			shifted[j] = o + delta
		}
		stbl.ChunkOffsets = shifted
	}
}

// upgradeOverflowingTables switches any track still using a 32-bit stco
// table to co64 if its current chunk offsets would not fit in 32 bits.
// Reports whether any table was upgraded.
func upgradeOverflowingTables(m *Movie) bool {
	upgraded := false
	for _, tr := range m.Tracks {
		stbl := tr.Mdia.Minf.Stbl
		if stbl.offsetsUseCo64 {
			continue
		}
		for _, o := range stbl.ChunkOffsets {
			if o > uint32Max {
				stbl.offsetsUseCo64 = true
				upgraded = true
				break
			}
		}
	}
	return upgraded
}

// firstOverflowingOffset returns the first chunk offset that still does
// not fit in a 32-bit stco entry despite the upgrade pass, or (0, false)
// if none remain.
func firstOverflowingOffset(m *Movie) (uint64, bool) {
	for _, tr := range m.Tracks {
		stbl := tr.Mdia.Minf.Stbl
		if stbl.offsetsUseCo64 {
			continue
		}
		for _, o := range stbl.ChunkOffsets {
			if o > uint32Max {
				return o, true
			}
		}
	}
	return 0, false
}

// relocateMoov rewrites a parsed moov's chunk offsets for relocation
// ahead of mdat, given the moov box's current (pre-relocation) total
// size, and returns the re-serialized box. Offsets are shifted by
// moov.size, and if that overflows any 32-bit stco table, the table is
// upgraded to co64 and the shift (now larger, since co64 entries are
// wider) is recomputed and reapplied exactly once.
func relocateMoov(m *Movie, moovSize uint64) ([]byte, error) {
	original := make([][]uint64, len(m.Tracks))
	for i, tr := range m.Tracks {
		stbl := tr.Mdia.Minf.Stbl
		original[i] = append([]uint64(nil), stbl.ChunkOffsets...)
	}

	delta := moovSize
	shiftChunkOffsets(m, original, delta)

	if upgradeOverflowingTables(m) {
		delta = uint64(len(m.Encode()))
		shiftChunkOffsets(m, original, delta)
		if off, overflowed := firstOverflowingOffset(m); overflowed {
			return nil, &OffsetOverflowError{Offset: off}
		}
	}

	return m.Encode(), nil
}

// MoveHeaderAndWrite performs fast-start rearrangement: if moov already
// precedes the first mdat, it copies r to w unchanged and returns
// moved=false. Otherwise it relocates moov immediately ahead of mdat,
// adjusting every chunk offset, and returns moved=true. mdat's payload
// is streamed through without ever being buffered in memory.
func MoveHeaderAndWrite(r io.ReadSeeker, w io.Writer) (bool, error) {
	entries, err := scanTopLevelEntries(r)
	if err != nil {
		return false, err
	}

	moovIdx, mdatIdx := -1, -1
	for i, e := range entries {
		if e.Type == TypeMoov && moovIdx == -1 {
			moovIdx = i
		}
		if e.Type == TypeMdat && mdatIdx == -1 {
			mdatIdx = i
		}
	}
	if moovIdx == -1 {
		return false, ErrFormat
	}
	if mdatIdx == -1 || moovIdx < mdatIdx {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return false, err
		}
		if _, err := io.Copy(w, r); err != nil {
			return false, err
		}
		logFastStart(false, 0)
		return false, nil
	}

	moovEntry := entries[moovIdx]
	moovData := make([]byte, moovEntry.DataSize())
	if _, err := r.Seek(moovEntry.Offset+int64(moovEntry.HeaderSize), io.SeekStart); err != nil {
		return false, err
	}
	if _, err := io.ReadFull(r, moovData); err != nil {
		return false, err
	}

	movie, err := ParseMoov(moovData)
	if err != nil {
		return false, err
	}

	newMoov, err := relocateMoov(movie, uint64(moovEntry.Size))
	if err != nil {
		return false, err
	}

	for i, e := range entries {
		if i == moovIdx {
			continue
		}
		if i == mdatIdx {
			if _, err := w.Write(newMoov); err != nil {
				return false, err
			}
		}
		if err := copyBoxThrough(r, w, e); err != nil {
			return false, err
		}
	}
	logFastStart(true, len(movie.Tracks))
	return true, nil
}
