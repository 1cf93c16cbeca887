package mp4seek

// This file implements the pure sample-table algorithms the cut engine
// builds on: locating a sample/chunk for a requested media time, and
// trimming the run-length and offset tables down to a surviving tail.
// All sample and chunk numbers here are 1-based, matching the ISOBMFF
// convention used by stsc/stss.

// sttsTimeToSample returns the 1-based number of the sample whose decode
// interval contains mt (the last sample whose decode time is <= mt),
// given an stts run-length table; an mt at or past the end of the table
// yields total_samples + 1. The accumulator
// starts at 1, not 0: sample numbers are 1-based and the loop counts
// samples it has stepped past, not an index.
func sttsTimeToSample(entries []SttsEntry, mt uint64) uint64 {
	var ctime uint64
	samples := uint64(1)
	for _, e := range entries {
		if mt == ctime {
			break
		}
		cdelta := uint64(e.Count) * uint64(e.Duration)
		if mt < ctime+cdelta {
			samples += (mt - ctime) / uint64(e.Duration)
			break
		}
		ctime += cdelta
		samples += uint64(e.Count)
	}
	return samples
}

// sttsSampleToTime returns the media time at which the given 1-based
// sample number begins, given an stts run-length table.
func sttsSampleToTime(entries []SttsEntry, sample uint64) uint64 {
	var ctime uint64
	samples := uint64(1)
	for _, e := range entries {
		if samples+uint64(e.Count) >= sample {
			return ctime + (sample-samples)*uint64(e.Duration)
		}
		ctime += uint64(e.Count) * uint64(e.Duration)
		samples += uint64(e.Count)
	}
	return ctime
}

// stscChunkForSample returns the 1-based chunk number containing the
// given 1-based sample number, given an stsc run-length table.
func stscChunkForSample(entries []StscEntry, sampleNum uint64) uint32 {
	current := uint32(1)
	var perChunk uint32
	samples := uint64(1)
	for _, e := range entries {
		samplesHere := uint64(e.FirstChunk-current) * uint64(perChunk)
		if samples+samplesHere > sampleNum {
			break
		}
		samples += samplesHere
		current, perChunk = e.FirstChunk, e.SamplesPerChunk
	}
	if perChunk == 0 {
		return current
	}
	return uint32((sampleNum-samples)/uint64(perChunk)) + current
}

// chunkOffset returns the file offset of the given 1-based chunk number.
func chunkOffset(offsets []uint64, chunkNum uint32) uint64 {
	return offsets[chunkNum-1]
}

// cutChunkOffsets returns the offsets of chunks from chunkNum onward,
// each reduced by offsetChange. offsetChange may be negative when a
// rewritten moov grows rather than shrinks.
func cutChunkOffsets(offsets []uint64, chunkNum uint32, offsetChange int64) []uint64 {
	tail := offsets[chunkNum-1:]
	out := make([]uint64, len(tail))
	for i, off := range tail {
		out[i] = uint64(int64(off) - offsetChange)
	}
	return out
}

// cutStsc returns an stsc table describing the chunks from chunkNum
// onward, renumbered so the surviving chunks start at 1.
func cutStsc(entries []StscEntry, chunkNum uint32) []StscEntry {
	var current, perChunk, sdIdx uint32
	for i, e := range entries {
		if e.FirstChunk > chunkNum {
			offset := chunkNum - 1
			out := make([]StscEntry, 0, len(entries)-i+1)
			out = append(out, StscEntry{FirstChunk: 1, SamplesPerChunk: perChunk, SampleDescriptionId: sdIdx})
			for _, rest := range entries[i:] {
				out = append(out, StscEntry{
					FirstChunk:          rest.FirstChunk - offset,
					SamplesPerChunk:     rest.SamplesPerChunk,
					SampleDescriptionId: rest.SampleDescriptionId,
				})
			}
			return out
		}
		current, perChunk, sdIdx = e.FirstChunk, e.SamplesPerChunk, e.SampleDescriptionId
	}
	_ = current
	return []StscEntry{{FirstChunk: 1, SamplesPerChunk: perChunk, SampleDescriptionId: sdIdx}}
}

// cutStts trims an stts run-length table to start at the given 1-based
// sample number, shortening the run the cut falls inside.
//
// Returning an empty table is only correct when sample is exactly
// total_samples + 1, i.e. the cut point is the first sample of a chunk
// that doesn't exist yet (the whole track is being cut at its end).
func cutStts(entries []SttsEntry, sample uint64) []SttsEntry {
	samples := uint64(1)
	for i, e := range entries {
		if samples+uint64(e.Count) > sample {
			out := make([]SttsEntry, 0, len(entries)-i)
			out = append(out, SttsEntry{Count: uint32(samples + uint64(e.Count) - sample), Duration: e.Duration})
			out = append(out, entries[i+1:]...)
			return out
		}
		samples += uint64(e.Count)
	}
	return nil
}

// cutCtts trims a ctts run-length table the same way cutStts does.
func cutCtts(entries []CttsEntry, sample uint64) []CttsEntry {
	samples := uint64(1)
	for i, e := range entries {
		if samples+uint64(e.Count) > sample {
			out := make([]CttsEntry, 0, len(entries)-i)
			out = append(out, CttsEntry{Count: uint32(samples + uint64(e.Count) - sample), Offset: e.Offset})
			out = append(out, entries[i+1:]...)
			return out
		}
		samples += uint64(e.Count)
	}
	return nil
}

// cutStss trims an stss sync-sample table to the samples surviving the
// cut, renumbered so the surviving first sample becomes 1.
func cutStss(entries []uint32, sample uint64) []uint32 {
	for i, s := range entries {
		if uint64(s) >= sample {
			out := make([]uint32, 0, len(entries)-i)
			for _, rest := range entries[i:] {
				out = append(out, uint32(uint64(rest)-sample+1))
			}
			return out
		}
	}
	return nil
}

// cutSizes trims an stsz/stz2 sample-size table to the samples
// surviving the cut.
func cutSizes(entries []uint32, sample uint64) []uint32 {
	if len(entries) == 0 {
		return nil
	}
	return entries[sample-1:]
}
