package mp4seek

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterStartEndBoxBackpatchesSize(t *testing.T) {
	w := NewWriter(make([]byte, 0, 64))
	w.StartBox(TypeFree)
	w.Write([]byte{1, 2, 3, 4})
	w.EndBox()

	got := w.Bytes()
	require.Len(t, got, 12)
	assert.Equal(t, uint32(12), be.Uint32(got[0:4]))
	assert.Equal(t, TypeFree, BoxType(got[4:8]))
}

func TestWriterNestedBoxes(t *testing.T) {
	w := NewWriter(make([]byte, 0, 64))
	w.StartBox(TypeMinf)
	w.StartBox(TypeStbl)
	w.Write([]byte{0xaa})
	w.EndBox()
	w.EndBox()

	got := w.Bytes()
	r := NewReader(got)
	require.True(t, r.Next())
	assert.Equal(t, TypeMinf, r.Type())
	r.Enter()
	require.True(t, r.Next())
	assert.Equal(t, TypeStbl, r.Type())
	assert.Equal(t, []byte{0xaa}, r.Data())
	r.Exit()
}

func TestWriteStz2RoundTrip(t *testing.T) {
	cases := []struct {
		fieldSize uint8
		entries   []uint32
	}{
		{4, []uint32{1, 2, 3, 4, 5}},
		{8, []uint32{10, 200, 255, 0}},
		{16, []uint32{1000, 65535, 0, 42}},
	}

	for _, c := range cases {
		w := NewWriter(make([]byte, 0, 64))
		require.NoError(t, w.WriteStz2(c.fieldSize, c.entries))

		r := NewReader(w.Bytes())
		require.True(t, r.Next())
		assert.Equal(t, TypeStz2, r.Type())

		it := NewStz2Iter(r.Data())
		assert.Equal(t, c.fieldSize, it.FieldSize())
		assert.Equal(t, uint32(len(c.entries)), it.Count())

		var got []uint32
		for v, ok := it.Next(); ok; v, ok = it.Next() {
			got = append(got, v)
		}
		assert.Equal(t, c.entries, got)
	}
}

func TestWriteStz2RejectsBadFieldSize(t *testing.T) {
	w := NewWriter(make([]byte, 0, 16))
	err := w.WriteStz2(5, []uint32{1})
	assert.ErrorIs(t, err, ErrFormat)
}

func TestWriteStcoCo64RoundTrip(t *testing.T) {
	offsets32 := []uint32{100, 5000, 999999}
	w := NewWriter(make([]byte, 0, 64))
	w.WriteStco(offsets32)
	r := NewReader(w.Bytes())
	require.True(t, r.Next())
	it := NewUint32Iter(r.Data())
	var got []uint32
	for v, ok := it.Next(); ok; v, ok = it.Next() {
		got = append(got, v)
	}
	assert.Equal(t, offsets32, got)

	offsets64 := []uint64{1 << 40, 1 << 41}
	w2 := NewWriter(make([]byte, 0, 64))
	w2.WriteCo64(offsets64)
	r2 := NewReader(w2.Bytes())
	require.True(t, r2.Next())
	it2 := NewCo64Iter(r2.Data())
	var got64 []uint64
	for v, ok := it2.Next(); ok; v, ok = it2.Next() {
		got64 = append(got64, v)
	}
	assert.Equal(t, offsets64, got64)
}

func TestWriteSttsRoundTrip(t *testing.T) {
	entries := []SttsEntry{{Count: 4, Duration: 2}, {Count: 4, Duration: 1}}
	w := NewWriter(make([]byte, 0, 64))
	w.WriteStts(entries)

	r := NewReader(w.Bytes())
	require.True(t, r.Next())
	assert.Equal(t, uint8(0), r.Version())
	it := NewSttsIter(r.Data())
	var got []SttsEntry
	for e, ok := it.Next(); ok; e, ok = it.Next() {
		got = append(got, e)
	}
	assert.Equal(t, entries, got)
}
