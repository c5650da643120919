package bigbloom

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"io"
	"math"

	"github.com/zeebo/errs"
)

// Filter is a space-efficient approximate-membership set over
// byte-encodable elements. It owns its BitSet exclusively unless it was
// rebuilt around donor storage with NewFromSnapshot. Construct with New,
// NewWithSize, NewWithFalsePositiveRate or NewFromSnapshot; the zero
// value is not usable.
type Filter struct {
	m      uint64  // total bits
	k      int     // derivations per element
	n      uint64  // expected element count
	c      float64 // configured bits per element
	count  uint64  // insertions, not distinct elements
	bits   BitSet
	hasher Hasher
}

// WithHasher replaces the hash family and returns the filter to allow
// chaining. Swap only on an empty filter: locations derived by different
// families do not line up.
func (f *Filter) WithHasher(h Hasher) *Filter {
	f.hasher = h
	return f
}

// locations derives the k bit locations for data, each reduced into
// [0, m). The uint64 remainder is already in range, so no sign
// correction applies.
func (f *Filter) locations(data []byte) ([]uint64, error) {
	locs, err := f.hasher.Locations(data, f.k)
	if err != nil {
		return nil, err
	}
	for i, h := range locs {
		locs[i] = h % f.m
	}
	return locs, nil
}

// Add inserts data into the filter. The insertion counter increments on
// every call, duplicates included. No bit is touched when the location
// derivation fails.
func (f *Filter) Add(data []byte) error {
	locs, err := f.locations(data)
	if err != nil {
		return err
	}
	for _, i := range locs {
		if err := f.bits.Set(i, true); err != nil {
			return err
		}
	}
	f.count++
	return nil
}

// AddString inserts the UTF-8 bytes of s.
func (f *Filter) AddString(s string) error {
	return f.Add([]byte(s))
}

// AddElement inserts an element through its canonical byte encoding.
func (f *Filter) AddElement(e encoding.BinaryMarshaler) error {
	data, err := e.MarshalBinary()
	if err != nil {
		return Error.Wrap(err)
	}
	return f.Add(data)
}

// AddAll inserts every element, continuing past per-element failures and
// returning them combined.
func (f *Filter) AddAll(elements ...encoding.BinaryMarshaler) error {
	var group errs.Group
	for _, e := range elements {
		group.Add(f.AddElement(e))
	}
	return group.Err()
}

// Contains reports whether data may have been added. A false answer is
// definite; a true answer may be a false positive.
func (f *Filter) Contains(data []byte) (bool, error) {
	locs, err := f.locations(data)
	if err != nil {
		return false, err
	}
	for _, i := range locs {
		ok, err := f.bits.Get(i)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// ContainsString reports whether the UTF-8 bytes of s may have been
// added.
func (f *Filter) ContainsString(s string) (bool, error) {
	return f.Contains([]byte(s))
}

// ContainsElement reports whether an element may have been added,
// through its canonical byte encoding.
func (f *Filter) ContainsElement(e encoding.BinaryMarshaler) (bool, error) {
	data, err := e.MarshalBinary()
	if err != nil {
		return false, Error.Wrap(err)
	}
	return f.Contains(data)
}

// ContainsAll reports whether every element may have been added,
// stopping at the first definite miss.
func (f *Filter) ContainsAll(elements ...encoding.BinaryMarshaler) (bool, error) {
	for _, e := range elements {
		ok, err := f.ContainsElement(e)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// ContainsLocations reports whether all raw locations, reduced into
// [0, m), are set. The locations typically come from Locations with the
// same count as K().
func (f *Filter) ContainsLocations(locs []uint64) (bool, error) {
	for _, h := range locs {
		ok, err := f.bits.Get(h % f.m)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Clear zeroes the bit storage and resets the insertion counter. The
// geometry is unchanged.
func (f *Filter) Clear() error {
	if err := f.bits.Clear(); err != nil {
		return err
	}
	f.count = 0
	return nil
}

// GetBit reads a raw storage bit, bypassing the hashing layer.
func (f *Filter) GetBit(i uint64) (bool, error) {
	return f.bits.Get(i)
}

// SetBit writes a raw storage bit, bypassing the hashing layer and the
// insertion counter.
func (f *Filter) SetBit(i uint64, value bool) error {
	return f.bits.Set(i, value)
}

// Size returns the total number of bits, m.
func (f *Filter) Size() uint64 {
	return f.m
}

// Count returns the number of insertions since construction or the last
// Clear. Duplicates count every time.
func (f *Filter) Count() uint64 {
	return f.count
}

// K returns the number of hash derivations per element.
func (f *Filter) K() int {
	return f.k
}

// ExpectedElements returns n, the element count the filter was sized
// for.
func (f *Filter) ExpectedElements() uint64 {
	return f.n
}

// ExpectedBitsPerElement returns c, the configured density.
func (f *Filter) ExpectedBitsPerElement() float64 {
	return f.c
}

// BitsPerElement returns the actual density, m divided by the insertion
// count. It is +Inf while the filter is empty; the caller must guard.
func (f *Filter) BitsPerElement() float64 {
	return float64(f.m) / float64(f.count)
}

// BitSet returns the underlying bit storage for this filter.
func (f *Filter) BitSet() BitSet {
	return f.bits
}

// FalsePositiveProbability estimates the probability that Contains
// reports true for an element never added, once numberOfElements
// distinct elements are stored: (1 - e^(-k*x/m))^k.
func (f *Filter) FalsePositiveProbability(numberOfElements float64) float64 {
	return math.Pow(1-math.Exp(-float64(f.k)*numberOfElements/float64(f.m)), float64(f.k))
}

// ExpectedFalsePositiveProbability is the false-positive rate at the
// expected element count the filter was sized for.
func (f *Filter) ExpectedFalsePositiveProbability() float64 {
	return f.FalsePositiveProbability(float64(f.n))
}

// CurrentFalsePositiveProbability is the false-positive rate at the
// current insertion count.
func (f *Filter) CurrentFalsePositiveProbability() float64 {
	return f.FalsePositiveProbability(float64(f.count))
}

// ApproximatedSize estimates the number of distinct elements from the
// number of set bits. It fails when the bit set is saturated, where the
// estimate diverges.
// https://en.wikipedia.org/wiki/Bloom_filter#Approximating_the_number_of_items_in_a_Bloom_filter
func (f *Filter) ApproximatedSize() (uint64, error) {
	ones, err := f.bits.Count()
	if err != nil {
		return 0, err
	}
	if ones >= f.m {
		return 0, Error.New("bit set is saturated")
	}
	x := float64(ones)
	m := float64(f.m)
	k := float64(f.k)
	size := -1 * m / k * math.Log(1-x/m)
	return uint64(math.Floor(size + 0.5)), nil // round
}

// Equal reports whether two filters share geometry (n, k, m) and
// bit-identical storage. The insertion counter does not participate:
// filters reaching the same bit pattern through different histories
// compare equal.
func (f *Filter) Equal(g *Filter) bool {
	return f.n == g.n && f.k == g.k && f.m == g.m && f.bits.Equal(g.bits)
}

// WriteTo writes the filter's recoverable state to a stream: the
// geometry, the insertion count and the bit storage. It returns the
// number of bytes written.
func (f *Filter) WriteTo(stream io.Writer) (int64, error) {
	for _, v := range []uint64{f.m, f.n, uint64(f.k), f.count, math.Float64bits(f.c)} {
		if err := binary.Write(stream, binary.BigEndian, v); err != nil {
			return 0, err
		}
	}
	numBytes, err := f.bits.WriteTo(stream)
	return numBytes + int64(5*binary.Size(uint64(0))), err
}

// ReadFrom restores the filter from a stream written by WriteTo,
// replacing the geometry, the insertion count and the bit storage
// contents. It returns the number of bytes read.
func (f *Filter) ReadFrom(stream io.Reader) (int64, error) {
	var fields [5]uint64
	for i := range fields {
		if err := binary.Read(stream, binary.BigEndian, &fields[i]); err != nil {
			return 0, err
		}
	}
	numBytes, err := f.bits.ReadFrom(stream)
	if err != nil {
		return 0, err
	}
	f.m = fields[0]
	f.n = fields[1]
	f.k = int(fields[2])
	f.count = fields[3]
	f.c = math.Float64frombits(fields[4])
	return numBytes + int64(5*binary.Size(uint64(0))), nil
}

// GobEncode implements gob.GobEncoder with the WriteTo stream format.
func (f *Filter) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder with the WriteTo stream format.
func (f *Filter) GobDecode(data []byte) error {
	buf := bytes.NewBuffer(data)
	_, err := f.ReadFrom(buf)

	return err
}
