package bigbloom

import (
	"encoding/binary"
	"io"
	"math/bits"
)

// maxPageBits is the capacity of a full page: the largest number of bits
// a single native vector may address.
const maxPageBits = 1<<31 - 1

// page is one fixed-capacity segment of a paged bit space. Offsets are
// local to the page; an offset at or past the capacity is rejected with
// an out-of-range error. Bits beyond the capacity in the final word are
// always zero.
type page struct {
	nbits uint64
	words []uint64
}

func newPage(nbits uint64) *page {
	return &page{
		nbits: nbits,
		words: make([]uint64, (nbits+63)/64),
	}
}

func (p *page) set(offset uint64, value bool) error {
	if offset >= p.nbits {
		return ErrOutOfRange.New("offset %d, page capacity %d", offset, p.nbits)
	}
	if value {
		p.words[offset>>6] |= 1 << (offset & 63)
	} else {
		p.words[offset>>6] &^= 1 << (offset & 63)
	}
	return nil
}

func (p *page) get(offset uint64) (bool, error) {
	if offset >= p.nbits {
		return false, ErrOutOfRange.New("offset %d, page capacity %d", offset, p.nbits)
	}
	return p.words[offset>>6]&(1<<(offset&63)) != 0, nil
}

func (p *page) clear() {
	for i := range p.words {
		p.words[i] = 0
	}
}

func (p *page) count() uint64 {
	var total uint64
	for _, w := range p.words {
		total += uint64(bits.OnesCount64(w))
	}
	return total
}

func (p *page) equal(other *page) bool {
	if p.nbits != other.nbits {
		return false
	}
	for i := range p.words {
		if p.words[i] != other.words[i] {
			return false
		}
	}
	return true
}

// PagedBitSet is the in-memory BitSet. It presents one logically
// contiguous bit space of arbitrary size by stringing fixed-capacity
// pages together: every page except possibly the last holds exactly
// maxPageBits bits, the last holds the remainder. Two paged bit sets are
// Equal only if their ordered page sequences match element-wise, in
// capacity and in content.
type PagedBitSet struct {
	nbits   uint64
	pageCap uint64
	pages   []*page
}

// NewPagedBitSet creates an in-memory paged bit set holding size bits,
// all zero.
func NewPagedBitSet(size uint64) *PagedBitSet {
	return newPagedBitSet(size, maxPageBits)
}

// newPagedBitSet allows an arbitrary page capacity so page seams can be
// crossed without gigantic allocations.
func newPagedBitSet(size, pageCap uint64) *PagedBitSet {
	b := &PagedBitSet{pageCap: pageCap}
	b.Init(size)
	return b
}

func (b *PagedBitSet) Init(length uint64) BitSet {
	b.nbits = length
	b.pages = nil
	for offset := uint64(0); offset < length; offset += b.pageCap {
		b.pages = append(b.pages, newPage(min(length-offset, b.pageCap)))
	}
	return b
}

func (b *PagedBitSet) Size() uint64 {
	return b.nbits
}

// locate splits a global bit index into a page index and an offset local
// to that page. The division runs in uint64 so indexes past a single
// page's reach stay exact.
func (b *PagedBitSet) locate(i uint64) (pageIndex, offset uint64) {
	return i / b.pageCap, i % b.pageCap
}

func (b *PagedBitSet) Set(i uint64, value bool) error {
	pageIndex, offset := b.locate(i)
	if pageIndex >= uint64(len(b.pages)) {
		return ErrOutOfRange.New("bit %d, size %d", i, b.nbits)
	}
	return b.pages[pageIndex].set(offset, value)
}

func (b *PagedBitSet) Get(i uint64) (bool, error) {
	pageIndex, offset := b.locate(i)
	if pageIndex >= uint64(len(b.pages)) {
		return false, ErrOutOfRange.New("bit %d, size %d", i, b.nbits)
	}
	return b.pages[pageIndex].get(offset)
}

func (b *PagedBitSet) Clear() error {
	for _, p := range b.pages {
		p.clear()
	}
	return nil
}

func (b *PagedBitSet) Count() (uint64, error) {
	var total uint64
	for _, p := range b.pages {
		total += p.count()
	}
	return total, nil
}

func (b *PagedBitSet) Equal(other BitSet) bool {
	o, ok := other.(*PagedBitSet)
	if !ok {
		return false
	}
	if b.nbits != o.nbits || len(b.pages) != len(o.pages) {
		return false
	}
	for i := range b.pages {
		if !b.pages[i].equal(o.pages[i]) {
			return false
		}
	}
	return true
}

func (b *PagedBitSet) WriteTo(stream io.Writer) (int64, error) {
	err := binary.Write(stream, binary.BigEndian, b.nbits)
	if err != nil {
		return 0, err
	}
	err = binary.Write(stream, binary.BigEndian, b.pageCap)
	if err != nil {
		return 0, err
	}
	written := int64(2 * binary.Size(uint64(0)))
	for _, p := range b.pages {
		err = binary.Write(stream, binary.BigEndian, p.words)
		if err != nil {
			return written, err
		}
		written += int64(len(p.words) * binary.Size(uint64(0)))
	}
	return written, nil
}

// ReadFrom rebuilds the bit set from a stream written by WriteTo. The
// page capacity travels with the stream, so a reader reproduces the
// writer's page layout regardless of how it was constructed.
func (b *PagedBitSet) ReadFrom(stream io.Reader) (int64, error) {
	var nbits, pageCap uint64
	err := binary.Read(stream, binary.BigEndian, &nbits)
	if err != nil {
		return 0, err
	}
	err = binary.Read(stream, binary.BigEndian, &pageCap)
	if err != nil {
		return 0, err
	}
	if pageCap < 1 {
		return 0, Error.New("invalid page capacity %d", pageCap)
	}
	b.pageCap = pageCap
	b.Init(nbits)
	read := int64(2 * binary.Size(uint64(0)))
	for _, p := range b.pages {
		err = binary.Read(stream, binary.BigEndian, p.words)
		if err != nil {
			return read, err
		}
		read += int64(len(p.words) * binary.Size(uint64(0)))
	}
	return read, nil
}
