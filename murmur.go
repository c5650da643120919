package bigbloom

import (
	"github.com/twmb/murmur3"
)

// MurmurHasher derives locations with the murmur3 double-hashing scheme:
// four 64-bit base values expand into any number of locations without
// re-hashing the input. It is the fast, non-cryptographic alternative to
// the default digest family.
type MurmurHasher struct{}

func (MurmurHasher) Locations(data []byte, count int) ([]uint64, error) {
	if count < 1 {
		return nil, nil
	}
	h := baseHashes(data)
	locations := make([]uint64, count)
	for i := range locations {
		locations[i] = location(h, uint64(i))
	}
	return locations, nil
}

// baseHashes returns the four hash values of data that are used to
// create the derived locations.
func baseHashes(data []byte) [4]uint64 {
	a1 := []byte{1} // to grab another bit of data
	hasher := murmur3.New128()
	hasher.Write(data)
	v1, v2 := hasher.Sum128()
	hasher.Write(a1)
	v3, v4 := hasher.Sum128()
	return [4]uint64{
		v1, v2, v3, v4,
	}
}

// location returns the ith derived location using the four base hash
// values.
func location(h [4]uint64, i uint64) uint64 {
	return h[i%2] + i*h[2+(((i+(i/2))%2))]
}
