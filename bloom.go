/*
Package bigbloom provides a Bloom filter that scales to billions of entries.

A Bloom filter is a representation of a set of _n_ items, where the main
requirement is to make membership queries; _i.e._, whether an item is a
member of a set. If the item is actually in the set, the filter will never
fail (the true positive rate is 1.0); but it is susceptible to false
positives. The art is to choose the total bit count _m_ and the number of
hash derivations _k_ correctly.

Plain bit vectors top out at the largest index a native int can address,
which caps a filter around 2^31 bits. This package stores bits behind the
BitSet interface instead, and the standard backend, PagedBitSet, strings
fixed-capacity pages together into one logically contiguous bit space, so a
filter may be sized well past the single-vector limit:

	// one billion elements at 10 bits each
	f := bigbloom.New(10, 1e9, 7, nil)
	err := f.Add([]byte("Love"))

A nil backend means in-memory paged storage. Membership is queried with
Contains; a false answer is definite, a true answer is right with
probability roughly 1 - CurrentFalsePositiveProbability():

	ok, err := f.Contains([]byte("Love"))

Geometry can also be derived from a target false-positive rate, or from a
fixed bit budget, following Magnus Skjegstad's classic java-bloomfilter
derivations:

	f := bigbloom.NewWithFalsePositiveRate(0.001, 1e9, nil)
	f = bigbloom.NewWithSize(8e9, 1e9, nil)

The same paging trick carries the filter onto Redis, where a single value
is likewise capped (at 2^32 bits); RedisBitSet spreads its pages over one
key per page:

	bits := bigbloom.NewRedisBitSet(client, "users-seen", 0)
	f := bigbloom.New(10, 1e9, 7, bits)

Elements are hashed through a salted digest family: every derivation
re-digests the input under an incrementing one-byte salt and consumes the
output as big-endian 64-bit words. Derivations are deterministic, and safe
for concurrent use because digest contexts are pooled, never shared. The
bit storage itself carries no locks: concurrent Contains calls are fine on
their own, but an Add, SetBit or Clear racing any other operation needs
external synchronization.

A filter's recoverable state is (m, n, count, bits). WriteTo and ReadFrom
stream it, gob encoding rides on the same format, and NewFromSnapshot
rebuilds a filter around previously captured bit storage.
*/
package bigbloom

import (
	"math"

	"github.com/zeebo/errs"
)

var (
	// Error is the default error class of this package.
	Error = errs.Class("bigbloom")

	// ErrOutOfRange is the class of bit index bounds violations, returned
	// whenever an index does not fall inside the addressable bit space.
	ErrOutOfRange = errs.Class("bit index out of range")
)

// New creates a Bloom filter from its direct parameters: bitsPerElement is
// the density _c_, expectedElements the anticipated number of distinct
// entries _n_, and hashCount the number of derivations _k_ per element.
// The total size comes out as ceil(c*n) bits. Size and hash count are
// forced to be at least one to avoid panics. A nil bits backend defaults
// to an in-memory PagedBitSet; any other backend is reinitialized to the
// derived size.
func New(bitsPerElement float64, expectedElements uint64, hashCount int, bits BitSet) *Filter {
	size := math.Ceil(bitsPerElement * float64(expectedElements))
	if size < 1 {
		size = 1
	}
	return newFilter(uint64(size), hashCount, expectedElements, bitsPerElement, bits)
}

// NewWithSize creates a Bloom filter over exactly size bits. The hash
// count is estimated from the size and the expected number of elements as
// k = round(m/n * ln 2).
func NewWithSize(size, expectedElements uint64, bits BitSet) *Filter {
	bitsPerElement, hashCount := deriveGeometry(size, expectedElements)
	return newFilter(size, hashCount, expectedElements, bitsPerElement, bits)
}

// NewWithFalsePositiveRate creates a Bloom filter sized so that, once
// expectedElements entries are stored, membership queries report a false
// positive with probability at most p. The hash count is k = ceil(-log2 p)
// and the density c = k / ln 2.
func NewWithFalsePositiveRate(p float64, expectedElements uint64, bits BitSet) *Filter {
	hashCount := int(math.Ceil(-math.Log2(p)))
	if hashCount < 1 {
		hashCount = 1
	}
	bitsPerElement := float64(hashCount) / math.Ln2
	size := math.Ceil(bitsPerElement * float64(expectedElements))
	if size < 1 {
		size = 1
	}
	return newFilter(uint64(size), hashCount, expectedElements, bitsPerElement, bits)
}

// NewFromSnapshot rebuilds a filter around previously captured state. The
// geometry is derived as in NewWithSize, the supplied storage is adopted
// as-is, and the insertion counter is set to addedCount. The storage has
// to hold exactly size bits. Ownership of bits transfers to the returned
// filter; the caller must not keep mutating it. The rebuilt filter uses
// the default hash family; reapply WithHasher if the donor used another.
func NewFromSnapshot(size, expectedElements, addedCount uint64, bits BitSet) (*Filter, error) {
	if size == 0 {
		return nil, Error.New("snapshot size must be positive")
	}
	if bits == nil {
		return nil, Error.New("snapshot bit storage is nil")
	}
	if bits.Size() != size {
		return nil, Error.New("snapshot bit storage holds %d bits, want %d", bits.Size(), size)
	}
	bitsPerElement, hashCount := deriveGeometry(size, expectedElements)
	if hashCount < 1 {
		hashCount = 1
	}
	return &Filter{
		m:      size,
		k:      hashCount,
		n:      expectedElements,
		c:      bitsPerElement,
		count:  addedCount,
		bits:   bits,
		hasher: DefaultHasher,
	}, nil
}

func newFilter(size uint64, hashCount int, expectedElements uint64, bitsPerElement float64, bits BitSet) *Filter {
	if size < 1 {
		size = 1
	}
	if hashCount < 1 {
		hashCount = 1
	}
	if bits == nil {
		bits = NewPagedBitSet(0)
	}
	return &Filter{
		m:      size,
		k:      hashCount,
		n:      expectedElements,
		c:      bitsPerElement,
		bits:   bits.Init(size),
		hasher: DefaultHasher,
	}
}

// deriveGeometry recovers the bits-per-element density and the optimal
// hash count from a total size and an expected element count.
func deriveGeometry(size, expectedElements uint64) (bitsPerElement float64, hashCount int) {
	if expectedElements < 1 {
		expectedElements = 1
	}
	bitsPerElement = float64(size) / float64(expectedElements)
	hashCount = int(math.Round(bitsPerElement * math.Ln2))
	return bitsPerElement, hashCount
}
