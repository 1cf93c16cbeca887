package mp4seek

import "io"

// This file implements a streaming adapter: a pull-based driver for
// callers that cannot synchronously seek-and-read their source (e.g.
// an HTTP range-request pump). It scans the same top-level box
// sequence the Scanner would, but each box's bytes arrive through Feed
// instead of a direct read, with exactly one outstanding request at a
// time.

// RequestFunc is called by a Splitter to ask the caller for size bytes
// starting at offset in the original source. The caller must respond
// with exactly one matching Feed call before the Splitter makes any
// further request.
type RequestFunc func(size int64, offset int64)

type splitterPhase int

const (
	phaseWantHead splitterPhase = iota
	phaseWantRest
	phaseDone
	phaseFailed
)

// peekSize is the head chunk requested per top-level box: enough to
// resolve a 32-bit size, a 4-byte type, and a 64-bit extended size if
// present.
const peekSize = 16

// Splitter drives a temporal split over a pull-based byte source. Call
// Start to begin, Feed each time the most recent RequestFunc call is
// satisfied, and Result once Feed stops issuing further requests.
type Splitter struct {
	t float64

	request RequestFunc
	phase   splitterPhase

	pos int64 // absolute offset of the box currently being scanned

	headType       BoxType
	headSize       int64
	headHeaderSize int
	headExtra      []byte // bytes of the box body already captured from the head peek

	seenMoov       bool
	preMoov        [][]byte
	moovData       []byte
	moovSize       uint64
	midBoxes       [][]byte
	mdatOffset     int64
	mdatSize       int64
	mdatHeaderSize int64

	header        []byte
	newDataOffset uint64
	err           error
}

// NewSplitter creates a Splitter for a cut at t seconds.
func NewSplitter(t float64) *Splitter {
	return &Splitter{t: t}
}

// Start begins the scan, invoking request for the first box's head.
func (s *Splitter) Start(request RequestFunc) {
	s.request = request
	s.phase = phaseWantHead
	s.request(peekSize, s.pos)
}

// Err returns the error that stopped the Splitter, if any.
func (s *Splitter) Err() error {
	return s.err
}

// Done reports whether the Splitter has finished scanning (successfully
// or not) and Result can be called.
func (s *Splitter) Done() bool {
	return s.phase == phaseDone || s.phase == phaseFailed
}

// Feed supplies the bytes most recently requested. It may trigger a
// further RequestFunc call, or (once the scan reaches mdat) complete
// the split and make Result available.
func (s *Splitter) Feed(data []byte) error {
	switch s.phase {
	case phaseWantHead:
		return s.feedHead(data)
	case phaseWantRest:
		return s.feedRest(data)
	default:
		return ErrFormat
	}
}

func (s *Splitter) fail(err error) error {
	s.phase = phaseFailed
	s.err = err
	return err
}

func (s *Splitter) feedHead(data []byte) error {
	if len(data) < 8 {
		return s.fail(ErrShortRead)
	}
	size := uint64(be.Uint32(data[0:4]))
	var t BoxType
	copy(t[:], data[4:8])

	headerSize := 8
	bodyAvailable := data[8:]
	if size == 1 {
		if len(data) < 16 {
			return s.fail(ErrShortRead)
		}
		size = be.Uint64(data[8:16])
		headerSize = 16
		bodyAvailable = data[16:]
	}
	if size == 0 {
		// Extends to end of source; the streaming adapter has no way to
		// learn the source length without an out-of-band signal, and
		// the formats this core targets always give mdat (or the final
		// box) an explicit size. Treat as a format error rather than
		// guessing.
		return s.fail(ErrFormat)
	}

	s.headType = t
	s.headSize = int64(size)
	s.headHeaderSize = headerSize
	bodyInHead := int64(len(data)) - int64(headerSize)
	boxBodySize := int64(size) - int64(headerSize)
	if bodyInHead > boxBodySize {
		bodyInHead = boxBodySize
	}
	if bodyInHead < 0 {
		bodyInHead = 0
	}
	s.headExtra = copyBytes(bodyAvailable[:bodyInHead])

	if t == TypeMdat {
		if !s.seenMoov {
			return s.fail(ErrMoovAfterMdat)
		}
		s.mdatOffset = s.pos
		s.mdatSize = s.headSize
		s.mdatHeaderSize = int64(headerSize)
		return s.finish()
	}

	need := size - uint64(headerSize) - uint64(len(s.headExtra))
	if need == 0 {
		return s.consumeBox(s.headExtra)
	}
	s.phase = phaseWantRest
	s.request(int64(need), s.pos+int64(headerSize)+int64(len(s.headExtra)))
	return nil
}

func (s *Splitter) feedRest(data []byte) error {
	full := make([]byte, 0, len(s.headExtra)+len(data))
	full = append(full, s.headExtra...)
	full = append(full, data...)
	return s.consumeBox(full)
}

// consumeBox records a fully-collected box body (everything after the
// header) and advances the scan to the next box.
func (s *Splitter) consumeBox(body []byte) error {
	raw := make([]byte, s.headHeaderSize+len(body))
	copy(raw[4:8], s.headType[:])
	if s.headHeaderSize == 16 {
		be.PutUint32(raw[0:4], 1)
		be.PutUint64(raw[8:16], uint64(s.headSize))
		copy(raw[16:], body)
	} else {
		be.PutUint32(raw[0:4], uint32(s.headSize))
		copy(raw[8:], body)
	}

	switch {
	case s.headType == TypeMoov:
		s.moovData = copyBytes(body)
		s.moovSize = uint64(s.headSize)
		s.seenMoov = true
	case !s.seenMoov:
		s.preMoov = append(s.preMoov, raw)
	default:
		s.midBoxes = append(s.midBoxes, raw)
	}

	s.pos += s.headSize
	s.phase = phaseWantHead
	s.request(peekSize, s.pos)
	return nil
}

// finish runs the cut engine over the collected header boxes once mdat
// has been reached.
func (s *Splitter) finish() error {
	if s.moovData == nil {
		return s.fail(ErrFormat)
	}
	movie, err := ParseMoov(s.moovData)
	if err != nil {
		return s.fail(err)
	}
	newDataOffset, discarded, err := cutMovie(movie, s.t, s.moovSize)
	if err != nil {
		return s.fail(err)
	}

	var out []byte
	w := NewWriter(out)
	for _, b := range s.preMoov {
		w.Write(b)
	}
	w.Write(movie.Encode())
	for _, b := range s.midBoxes {
		w.Write(b)
	}
	mdatPayload := uint64(s.mdatSize-s.mdatHeaderSize) - discarded
	if err := writeMdatHeader(&w, mdatPayload); err != nil {
		return s.fail(err)
	}

	s.header = w.Bytes()
	s.newDataOffset = newDataOffset
	s.phase = phaseDone
	return nil
}

// Result returns the serialized new header and the absolute offset in
// the original source the caller should resume copying from to
// reproduce the retained mdat payload. Valid only once Done reports
// true and Err is nil.
func (s *Splitter) Result() ([]byte, uint64, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	if s.phase != phaseDone {
		return nil, 0, io.ErrUnexpectedEOF
	}
	return s.header, s.newDataOffset, nil
}
