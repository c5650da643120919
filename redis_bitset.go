package bigbloom

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/go-redis/redis/v9"
)

// RedisBitSet is a BitSet held in Redis. A single Redis string tops out
// at 2^32 bits, so the bit space is paginated exactly like PagedBitSet:
// every page lives in its own key, "<key>:<pageIndex>", and a global
// index splits into a page index and a SETBIT offset local to that
// page's key. Bits in never-written pages read as zero. A non-zero
// expiration is refreshed on every write.
type RedisBitSet struct {
	redisClient redis.UniversalClient
	bitsetKey   string
	expiration  time.Duration
	nbits       uint64
	pageCap     uint64
}

// NewRedisBitSet creates a Redis-backed bit set of size zero under the
// given key prefix. Size it with Init, or hand it to a filter
// constructor, which does.
func NewRedisBitSet(redisClient redis.UniversalClient, bitsetKey string, expiration time.Duration) *RedisBitSet {
	return &RedisBitSet{
		redisClient: redisClient,
		bitsetKey:   bitsetKey,
		expiration:  expiration,
		pageCap:     maxPageBits,
	}
}

// Init sets the size and drops any existing page keys. A Redis failure
// while dropping is not reported here; stale bits surface on later
// reads, so call Clear directly when the failure matters.
func (r *RedisBitSet) Init(length uint64) BitSet {
	_ = r.Clear()
	r.nbits = length
	return r
}

func (r *RedisBitSet) Size() uint64 {
	return r.nbits
}

func (r *RedisBitSet) pageKey(pageIndex uint64) string {
	return fmt.Sprintf("%s:%d", r.bitsetKey, pageIndex)
}

func (r *RedisBitSet) pageCount() uint64 {
	return (r.nbits + r.pageCap - 1) / r.pageCap
}

func (r *RedisBitSet) locate(i uint64) (pageIndex, offset uint64) {
	return i / r.pageCap, i % r.pageCap
}

func (r *RedisBitSet) Set(i uint64, value bool) error {
	if i >= r.nbits {
		return ErrOutOfRange.New("bit %d, size %d", i, r.nbits)
	}
	pageIndex, offset := r.locate(i)
	key := r.pageKey(pageIndex)
	bit := 0
	if value {
		bit = 1
	}
	err := r.redisClient.SetBit(context.Background(), key, int64(offset), bit).Err()
	if err != nil {
		return Error.Wrap(err)
	}
	if r.expiration > 0 {
		err = r.redisClient.Expire(context.Background(), key, r.expiration).Err()
		if err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}

func (r *RedisBitSet) Get(i uint64) (bool, error) {
	if i >= r.nbits {
		return false, ErrOutOfRange.New("bit %d, size %d", i, r.nbits)
	}
	pageIndex, offset := r.locate(i)
	val, err := r.redisClient.GetBit(context.Background(), r.pageKey(pageIndex), int64(offset)).Result()
	if err != nil {
		return false, Error.Wrap(err)
	}
	return val == 1, nil
}

func (r *RedisBitSet) Clear() error {
	keys := make([]string, 0, r.pageCount())
	for pageIndex := uint64(0); pageIndex < r.pageCount(); pageIndex++ {
		keys = append(keys, r.pageKey(pageIndex))
	}
	if len(keys) == 0 {
		return nil
	}
	return Error.Wrap(r.redisClient.Del(context.Background(), keys...).Err())
}

func (r *RedisBitSet) Count() (uint64, error) {
	var total uint64
	for pageIndex := uint64(0); pageIndex < r.pageCount(); pageIndex++ {
		n, err := r.redisClient.BitCount(context.Background(), r.pageKey(pageIndex), nil).Result()
		if err != nil {
			return 0, Error.Wrap(err)
		}
		total += uint64(n)
	}
	return total, nil
}

// Equal compares page payloads byte-wise with zero padding: Redis grows
// a page string lazily on SETBIT, so equal bit contents may be stored
// at different lengths. A transport failure reports as not equal.
func (r *RedisBitSet) Equal(other BitSet) bool {
	o, ok := other.(*RedisBitSet)
	if !ok {
		return false
	}
	if r.nbits != o.nbits || r.pageCap != o.pageCap {
		return false
	}
	for pageIndex := uint64(0); pageIndex < r.pageCount(); pageIndex++ {
		a, err := r.pagePayload(r.pageKey(pageIndex))
		if err != nil {
			return false
		}
		b, err := o.pagePayload(o.pageKey(pageIndex))
		if err != nil {
			return false
		}
		if !bytesEqualPadded(a, b) {
			return false
		}
	}
	return true
}

// pagePayload fetches one page's stored string; a missing key is an
// empty payload.
func (r *RedisBitSet) pagePayload(key string) ([]byte, error) {
	payload, err := r.redisClient.Get(context.Background(), key).Bytes()
	if err != nil && err != redis.Nil {
		return nil, Error.Wrap(err)
	}
	return payload, nil
}

// bytesEqualPadded compares two payloads as if both were zero-padded to
// the same length.
func bytesEqualPadded(a, b []byte) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	if !bytes.Equal(a, b[:len(a)]) {
		return false
	}
	for _, c := range b[len(a):] {
		if c != 0 {
			return false
		}
	}
	return true
}

// WriteTo streams the size, the page capacity and every page payload as
// stored. The stream captures logical contents, not the key prefix, so
// it may be read back under a different prefix or client.
func (r *RedisBitSet) WriteTo(stream io.Writer) (int64, error) {
	err := binary.Write(stream, binary.BigEndian, r.nbits)
	if err != nil {
		return 0, err
	}
	err = binary.Write(stream, binary.BigEndian, r.pageCap)
	if err != nil {
		return 0, err
	}
	written := int64(2 * binary.Size(uint64(0)))
	for pageIndex := uint64(0); pageIndex < r.pageCount(); pageIndex++ {
		payload, err := r.pagePayload(r.pageKey(pageIndex))
		if err != nil {
			return written, err
		}
		err = binary.Write(stream, binary.BigEndian, uint64(len(payload)))
		if err != nil {
			return written, err
		}
		written += int64(binary.Size(uint64(0)))
		n, err := stream.Write(payload)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// ReadFrom drops the current page keys and restores size and page
// contents from a stream written by WriteTo.
func (r *RedisBitSet) ReadFrom(stream io.Reader) (int64, error) {
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
	if err := r.Clear(); err != nil {
		return 0, err
	}
	r.nbits = nbits
	r.pageCap = pageCap
	read := int64(2 * binary.Size(uint64(0)))
	for pageIndex := uint64(0); pageIndex < r.pageCount(); pageIndex++ {
		var payloadLen uint64
		err := binary.Read(stream, binary.BigEndian, &payloadLen)
		if err != nil {
			return read, err
		}
		read += int64(binary.Size(uint64(0)))
		payload := make([]byte, payloadLen)
		n, err := io.ReadFull(stream, payload)
		read += int64(n)
		if err != nil {
			return read, err
		}
		err = r.redisClient.Set(context.Background(), r.pageKey(pageIndex), payload, r.expiration).Err()
		if err != nil {
			return read, Error.Wrap(err)
		}
	}
	return read, nil
}
