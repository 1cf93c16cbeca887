package mp4seek

import (
	"fmt"
	"io"
	"strings"
)

// This file implements a read-only diagnostic surface beyond the bare
// split/fast-start library API: a box tree dump and a per-track codec
// and sync-sample distribution report, in the spirit of a
// keyframe-interval report. It never rewrites anything; it only
// exercises the parsing path.

// TrackReport summarizes one track's codec and sync-sample
// distribution, the same figures a keyframe-interval report computes.
type TrackReport struct {
	TrackID     uint32
	Codec       string
	SampleCount uint64
	Timescale   uint32
	Duration    float64 // seconds

	SyncCount       int
	SyncIntervalMin float64
	SyncIntervalAvg float64
	SyncIntervalMax float64
}

// Report is the result of Inspect.
type Report struct {
	MajorBrand string
	Tracks     []TrackReport
}

// Inspect walks a box tree and reports, per track, the codec string,
// sample count, duration, and sync-sample interval statistics.
func Inspect(r io.ReadSeeker) (*Report, error) {
	sc := NewScanner(r)
	var ftypData, moovData []byte
	for sc.Next() {
		e := sc.Entry()
		switch e.Type {
		case TypeFtyp:
			buf := make([]byte, e.DataSize())
			if err := sc.ReadBody(buf); err != nil {
				return nil, err
			}
			ftypData = buf
		case TypeMoov:
			buf := make([]byte, e.DataSize())
			if err := sc.ReadBody(buf); err != nil {
				return nil, err
			}
			moovData = buf
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if moovData == nil {
		return nil, ErrFormat
	}

	rep := &Report{}
	if ftypData != nil && len(ftypData) >= 4 {
		f := ReadFtyp(ftypData)
		rep.MajorBrand = string(f.MajorBrand[:])
	}

	movie, err := ParseMoov(moovData)
	if err != nil {
		return nil, err
	}

	for _, tr := range movie.Tracks {
		stbl := tr.Mdia.Minf.Stbl
		ts := tr.Mdia.Mdhd.Timescale
		tRep := TrackReport{
			TrackID:     tr.Tkhd.TrackID(),
			Codec:       trackCodec(stbl),
			SampleCount: stbl.SampleCount(),
			Timescale:   ts,
			Duration:    float64(tr.Mdia.Mdhd.Duration()) / float64(ts),
		}
		fillSyncStats(&tRep, stbl, ts)
		rep.Tracks = append(rep.Tracks, tRep)
	}
	return rep, nil
}

// fillSyncStats populates the sync-sample count and interval
// statistics for one track. Tracks with no stss have every sample
// marked sync; interval statistics are only meaningful when an
// explicit stss narrows the set.
func fillSyncStats(tRep *TrackReport, stbl *Stbl, timescale uint32) {
	if !stbl.stssPresent {
		tRep.SyncCount = int(stbl.SampleCount())
		return
	}
	tRep.SyncCount = len(stbl.Stss)
	if len(stbl.Stss) < 2 {
		return
	}
	times := make([]float64, len(stbl.Stss))
	for i, s := range stbl.Stss {
		mt := sttsSampleToTime(stbl.Stts, uint64(s))
		times[i] = float64(mt) / float64(timescale)
	}
	min, max, sum := times[1]-times[0], times[1]-times[0], 0.0
	for i := 1; i < len(times); i++ {
		d := times[i] - times[i-1]
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
		sum += d
	}
	tRep.SyncIntervalMin = min
	tRep.SyncIntervalMax = max
	tRep.SyncIntervalAvg = sum / float64(len(times)-1)
}

// trackCodec extracts the MIME codec string (e.g. "avc1.64001f",
// "mp4a.40.2") from a track's stsd box, which the cut/fast-start
// engines keep opaque under Stbl.others.
func trackCodec(stbl *Stbl) string {
	raw := stbl.rawChild(TypeStsd)
	if raw == nil {
		return ""
	}
	r := NewReader(raw)
	if !r.Next() {
		return ""
	}
	r.Enter()
	r.Skip(4) // entry count
	defer r.Exit()
	if !r.Next() {
		return ""
	}
	switch r.Type() {
	case TypeAvc1:
		v := ReadVisualSampleEntry(r.Data())
		r.Enter()
		r.Skip(v.ChildOffset)
		for r.Next() {
			if r.Type() == TypeAvcC {
				codec := "avc1." + ReadAvcC(r.Data())
				r.Exit()
				return codec
			}
		}
		r.Exit()
	case TypeMp4a:
		a := ReadAudioSampleEntry(r.Data())
		r.Enter()
		r.Skip(a.ChildOffset)
		for r.Next() {
			if r.Type() == TypeEsds {
				codec := "mp4a." + ReadEsdsCodec(r.Data())
				r.Exit()
				return codec
			}
		}
		r.Exit()
	}
	return ""
}

// DumpTree writes a box-tree dump of r to w, in the style of this
// pack's cmd/mp4dump: one indented line per box, with inline summary
// fields for the boxes the core understands.
func DumpTree(r io.ReadSeeker, w io.Writer) error {
	sc := NewScanner(r)
	for sc.Next() {
		e := sc.Entry()
		fmt.Fprintf(w, "[%s] size=%d\n", e.Type, e.Size)
		if e.Type != TypeMoov && e.Type != TypeMoof {
			continue
		}
		buf := make([]byte, e.DataSize())
		if err := sc.ReadBody(buf); err != nil {
			return err
		}
		rd := NewReader(buf)
		dumpChildren(&rd, 1, w)
	}
	return sc.Err()
}

func dumpChildren(r *Reader, depth int, w io.Writer) {
	for r.Next() {
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(w, "%s[%s] size=%d", indent, r.Type(), r.Size())
		if IsFullBox(r.Type()) {
			fmt.Fprintf(w, " v=%d flags=0x%06x", r.Version(), r.Flags())
		}
		dumpBoxInfo(r, w)
		fmt.Fprintln(w)

		if IsContainerBox(r.Type()) {
			r.Enter()
			dumpChildren(r, depth+1, w)
			r.Exit()
			continue
		}
		if r.Type() == TypeStsd {
			r.Enter()
			r.Skip(4)
			for r.Next() {
				dumpSampleEntry(r, depth+1, w)
			}
			r.Exit()
		}
	}
}

func dumpSampleEntry(r *Reader, depth int, w io.Writer) {
	indent := strings.Repeat("  ", depth)
	switch r.Type() {
	case TypeAvc1:
		v := ReadVisualSampleEntry(r.Data())
		fmt.Fprintf(w, "%s[%s] size=%d %dx%d compressor=%q\n", indent, r.Type(), r.Size(), v.Width, v.Height, v.CompressorName)
		r.Enter()
		r.Skip(v.ChildOffset)
		for r.Next() {
			childIndent := strings.Repeat("  ", depth+1)
			fmt.Fprintf(w, "%s[%s] size=%d", childIndent, r.Type(), r.Size())
			if r.Type() == TypeAvcC {
				fmt.Fprintf(w, " codec=%s", ReadAvcC(r.Data()))
			}
			fmt.Fprintln(w)
		}
		r.Exit()
	case TypeMp4a:
		a := ReadAudioSampleEntry(r.Data())
		fmt.Fprintf(w, "%s[%s] size=%d ch=%d sampleSize=%d sampleRate=%d\n", indent, r.Type(), r.Size(), a.ChannelCount, a.SampleSize, a.SampleRate>>16)
		r.Enter()
		r.Skip(a.ChildOffset)
		for r.Next() {
			childIndent := strings.Repeat("  ", depth+1)
			fmt.Fprintf(w, "%s[%s] size=%d", childIndent, r.Type(), r.Size())
			if r.Type() == TypeEsds {
				fmt.Fprintf(w, " codec=%s", ReadEsdsCodec(r.Data()))
			}
			fmt.Fprintln(w)
		}
		r.Exit()
	default:
		fmt.Fprintf(w, "%s[%s] size=%d (raw %d bytes)\n", indent, r.Type(), r.Size(), len(r.Data()))
	}
}

func dumpBoxInfo(r *Reader, w io.Writer) {
	switch r.Type() {
	case TypeFtyp:
		f := ReadFtyp(r.Data())
		fmt.Fprintf(w, " brand=%s ver=%d", string(f.MajorBrand[:]), f.MinorVersion)
	case TypeMvhd:
		ts, dur, ntid := r.ReadMvhd()
		fmt.Fprintf(w, " timescale=%d duration=%d nextTrackId=%d", ts, dur, ntid)
	case TypeTkhd:
		tid, dur, width, height := r.ReadTkhd()
		fmt.Fprintf(w, " trackId=%d duration=%d size=%dx%d", tid, dur, width>>16, height>>16)
	case TypeMdhd:
		ts, dur, lang := r.ReadMdhd()
		fmt.Fprintf(w, " timescale=%d duration=%d lang=%d", ts, dur, lang)
	case TypeHdlr:
		ht := r.ReadHdlr()
		fmt.Fprintf(w, " type=%s name=%q", string(ht[:]), r.ReadHdlrName())
	case TypeStsd, TypeDref:
		if len(r.Data()) >= 4 {
			fmt.Fprintf(w, " entries=%d", r.EntryCount())
		}
	case TypeStsz:
		fmt.Fprintf(w, " entries=%d", NewStszIter(r.Data()).Count())
	case TypeStco, TypeStss:
		fmt.Fprintf(w, " entries=%d", NewUint32Iter(r.Data()).Count())
	case TypeCo64:
		fmt.Fprintf(w, " entries=%d", NewCo64Iter(r.Data()).Count())
	case TypeStts:
		fmt.Fprintf(w, " entries=%d", NewSttsIter(r.Data()).Count())
	case TypeCtts:
		fmt.Fprintf(w, " entries=%d", NewCttsIter(r.Data(), r.Version()).Count())
	case TypeStsc:
		fmt.Fprintf(w, " entries=%d", NewStscIter(r.Data()).Count())
	case TypeMdat:
		fmt.Fprintf(w, " dataLen=%d", len(r.Data()))
	default:
		if !IsContainerBox(r.Type()) && len(r.Data()) > 0 {
			fmt.Fprintf(w, " (%d bytes)", len(r.Data()))
		}
	}
}
