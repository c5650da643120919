package bigbloom

import "io"

// BitSet is the bit storage behind a Filter. Indexes run over the full
// uint64 range so an implementation may exceed the reach of a single
// native vector. Operations that can touch remote or failing storage
// report errors instead of panicking; an index at or past Size() yields
// an error in the ErrOutOfRange class.
type BitSet interface {
	// Init reallocates the bit set to hold exactly length bits, all
	// zero, and returns the bit set to allow chaining.
	Init(length uint64) BitSet
	// Size returns the number of addressable bits.
	Size() uint64
	// Set sets bit i to 1 when value is true, to 0 otherwise.
	Set(i uint64, value bool) error
	// Get reports whether bit i is set.
	Get(i uint64) (bool, error)
	// Clear resets every bit to 0 without changing the size.
	Clear() error
	// Count returns the number of set bits.
	// Also known as "popcount" or "population count".
	Count() (uint64, error)
	// Equal tests the equivalence of two bit sets. False if they are of
	// different sizes, otherwise true only if all the same bits are set.
	Equal(other BitSet) bool
	// WriteTo writes the bit set to a stream, returning the number of
	// bytes written.
	WriteTo(stream io.Writer) (int64, error)
	// ReadFrom restores the bit set from a stream written using WriteTo,
	// returning the number of bytes read.
	ReadFrom(stream io.Reader) (int64, error)
}
