package bigbloom

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPagedBitSetRoundTrip(t *testing.T) {
	b := NewPagedBitSet(200)
	require.EqualValues(t, 200, b.Size())
	for i := uint64(0); i < 200; i++ {
		ok, err := b.Get(i)
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, b.Set(i, true))
		ok, err = b.Get(i)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, b.Set(i, false))
		ok, err = b.Get(i)
		require.NoError(t, err)
		require.False(t, ok)
	}
}

func TestPagedBitSetLayout(t *testing.T) {
	b := newPagedBitSet(25, 10)
	require.Len(t, b.pages, 3)
	require.EqualValues(t, 10, b.pages[0].nbits)
	require.EqualValues(t, 10, b.pages[1].nbits)
	require.EqualValues(t, 5, b.pages[2].nbits)

	// evenly divisible sizes have no short tail page
	b = newPagedBitSet(30, 10)
	require.Len(t, b.pages, 3)
	require.EqualValues(t, 10, b.pages[2].nbits)

	b = newPagedBitSet(0, 10)
	require.Len(t, b.pages, 0)
	require.EqualValues(t, 0, b.Size())
}

func TestPagedBitSetLocate(t *testing.T) {
	b := newPagedBitSet(35, 10)
	pageIndex, offset := b.locate(0)
	require.EqualValues(t, 0, pageIndex)
	require.EqualValues(t, 0, offset)
	pageIndex, offset = b.locate(9)
	require.EqualValues(t, 0, pageIndex)
	require.EqualValues(t, 9, offset)
	pageIndex, offset = b.locate(10)
	require.EqualValues(t, 1, pageIndex)
	require.EqualValues(t, 0, offset)
	pageIndex, offset = b.locate(34)
	require.EqualValues(t, 3, pageIndex)
	require.EqualValues(t, 4, offset)
}

func TestPagedBitSetSeams(t *testing.T) {
	paged := newPagedBitSet(64, 10)
	flat := NewPagedBitSet(64) // a single page at production capacity

	indices := []uint64{0, 9, 10, 11, 19, 20, 21, 39, 40, 63}
	for _, i := range indices {
		require.NoError(t, paged.Set(i, true))
		require.NoError(t, flat.Set(i, true))
	}
	for i := uint64(0); i < 64; i++ {
		pg, err := paged.Get(i)
		require.NoError(t, err)
		fg, err := flat.Get(i)
		require.NoError(t, err)
		require.Equal(t, fg, pg, "bit %d", i)
	}
	pc, err := paged.Count()
	require.NoError(t, err)
	fc, err := flat.Count()
	require.NoError(t, err)
	require.Equal(t, fc, pc)
	require.EqualValues(t, len(indices), pc)
}

func TestPagedBitSetOutOfRange(t *testing.T) {
	b := newPagedBitSet(25, 10)

	// inside the last page's address range but past the logical size
	err := b.Set(27, true)
	require.Error(t, err)
	require.True(t, ErrOutOfRange.Has(err))
	_, err = b.Get(27)
	require.Error(t, err)
	require.True(t, ErrOutOfRange.Has(err))

	// past every page
	err = b.Set(9999, true)
	require.Error(t, err)
	require.True(t, ErrOutOfRange.Has(err))
	_, err = b.Get(9999)
	require.Error(t, err)
	require.True(t, ErrOutOfRange.Has(err))

	require.NoError(t, b.Set(24, true))
}

func TestPageBounds(t *testing.T) {
	p := newPage(10)
	require.NoError(t, p.set(9, true))

	err := p.set(10, true)
	require.Error(t, err)
	require.True(t, ErrOutOfRange.Has(err))
	_, err = p.get(10)
	require.Error(t, err)
	require.True(t, ErrOutOfRange.Has(err))

	ok, err := p.get(9)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, p.count())
}

func TestPagedBitSetClear(t *testing.T) {
	b := newPagedBitSet(25, 10)
	for _, i := range []uint64{0, 12, 24} {
		require.NoError(t, b.Set(i, true))
	}
	require.NoError(t, b.Clear())
	require.EqualValues(t, 25, b.Size())
	require.Len(t, b.pages, 3)

	count, err := b.Count()
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
	for i := uint64(0); i < 25; i++ {
		ok, err := b.Get(i)
		require.NoError(t, err)
		require.False(t, ok)
	}
}

func TestPagedBitSetCount(t *testing.T) {
	b := NewPagedBitSet(200)
	want := []uint64{0, 1, 63, 64, 65, 127, 128, 199}
	for _, i := range want {
		require.NoError(t, b.Set(i, true))
	}
	count, err := b.Count()
	require.NoError(t, err)
	require.EqualValues(t, len(want), count)
}

func TestPagedBitSetInit(t *testing.T) {
	b := NewPagedBitSet(100)
	require.NoError(t, b.Set(42, true))
	b.Init(64)
	require.EqualValues(t, 64, b.Size())
	ok, err := b.Get(42)
	require.NoError(t, err)
	require.False(t, ok, "Init must zero previous contents")
}

func TestPagedBitSetEqual(t *testing.T) {
	a := newPagedBitSet(25, 10)
	b := newPagedBitSet(25, 10)
	require.True(t, a.Equal(b))

	require.NoError(t, a.Set(12, true))
	require.False(t, a.Equal(b))
	require.NoError(t, b.Set(12, true))
	require.True(t, a.Equal(b))

	// same logical bits behind a different page layout are not equal
	c := newPagedBitSet(25, 5)
	require.NoError(t, c.Set(12, true))
	require.False(t, a.Equal(c))

	require.False(t, a.Equal(newPagedBitSet(26, 10)))
	require.False(t, a.Equal(NewRedisBitSet(nil, "other", 0)))
}

func TestPagedBitSetWriteToReadFrom(t *testing.T) {
	a := newPagedBitSet(25, 10)
	for _, i := range []uint64{0, 9, 10, 21, 24} {
		require.NoError(t, a.Set(i, true))
	}

	var buf bytes.Buffer
	written, err := a.WriteTo(&buf)
	require.NoError(t, err)
	require.EqualValues(t, buf.Len(), written)

	b := NewPagedBitSet(0)
	read, err := b.ReadFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, written, read)
	require.True(t, a.Equal(b))
	require.EqualValues(t, 25, b.Size())

	truncated := buf.Bytes()[:buf.Len()-4]
	c := NewPagedBitSet(0)
	_, err = c.ReadFrom(bytes.NewReader(truncated))
	require.Error(t, err)
}

func TestPagedBitSetProductionCapacity(t *testing.T) {
	if testing.Short() {
		t.Skip("allocates a full production page")
	}

	const size = maxPageBits + 1000
	b := NewPagedBitSet(size)
	require.Len(t, b.pages, 2)
	require.EqualValues(t, maxPageBits, b.pages[0].nbits)
	require.EqualValues(t, 1000, b.pages[1].nbits)

	for _, i := range []uint64{0, maxPageBits - 1, maxPageBits, maxPageBits + 1, size - 1} {
		ok, err := b.Get(i)
		require.NoError(t, err)
		require.False(t, ok)
		require.NoError(t, b.Set(i, true))
		ok, err = b.Get(i)
		require.NoError(t, err)
		require.True(t, ok, "bit %d", i)
	}
	count, err := b.Count()
	require.NoError(t, err)
	require.EqualValues(t, 5, count)

	_, err = b.Get(size)
	require.Error(t, err)
	require.True(t, ErrOutOfRange.Has(err))
}
