package bigbloom

import (
	"crypto"
	_ "crypto/md5"
	"encoding/binary"
	"hash"
	"sync"
)

// Hasher derives the bit locations an element hashes to. Implementations
// must be deterministic and safe for concurrent use. The returned values
// are raw 64-bit locations; the filter reduces each into [0, m).
type Hasher interface {
	Locations(data []byte, count int) ([]uint64, error)
}

// DefaultHasher is the hash family filters use unless reconfigured with
// WithHasher: the salted MD5 digest family.
var DefaultHasher Hasher = NewDigestHasher(crypto.MD5)

// Locations derives count raw locations for data with the default hash
// family. Callers that probe several filters for one element can derive
// the locations once and pass them to ContainsLocations.
func Locations(data []byte, count int) ([]uint64, error) {
	return DefaultHasher.Locations(data, count)
}

// DigestHasher derives locations from a salted cryptographic digest
// family. Each derivation starts a one-byte salt at zero; every digest
// invocation hashes the salt byte followed by the input, the output is
// consumed as consecutive big-endian 64-bit words, and the salt
// increments per invocation, wrapping modulo 256. Digest contexts come
// from a pool, so derivations never share state and need no locking.
type DigestHasher struct {
	algorithm crypto.Hash
	pool      *sync.Pool
}

// NewDigestHasher creates a hasher over the given digest algorithm. The
// algorithm's package must be linked into the binary; derivations report
// an explicit error otherwise.
func NewDigestHasher(algorithm crypto.Hash) *DigestHasher {
	return &DigestHasher{
		algorithm: algorithm,
		pool: &sync.Pool{
			New: func() interface{} {
				return algorithm.New()
			},
		},
	}
}

func (d *DigestHasher) Locations(data []byte, count int) ([]uint64, error) {
	if !d.algorithm.Available() {
		return nil, Error.New("digest algorithm %v is not linked into the binary", d.algorithm)
	}
	if d.algorithm.Size() < 8 {
		return nil, Error.New("digest algorithm %v is too short for 64-bit locations", d.algorithm)
	}
	if count < 1 {
		return nil, nil
	}

	digest := d.pool.Get().(hash.Hash)
	defer d.pool.Put(digest)

	locations := make([]uint64, 0, count)
	salt := [1]byte{0}
	for len(locations) < count {
		digest.Reset()
		_, _ = digest.Write(salt[:])
		_, _ = digest.Write(data)
		sum := digest.Sum(nil)
		for rest := sum; len(rest) >= 8 && len(locations) < count; rest = rest[8:] {
			locations = append(locations, binary.BigEndian.Uint64(rest[:8]))
		}
		salt[0]++
	}
	return locations, nil
}
