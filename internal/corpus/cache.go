package corpus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/dtcxzyw/r6/internal/costmodel"
	"github.com/dtcxzyw/r6/pkg/db"
	"github.com/dtcxzyw/r6/pkg/db/pebble"
)

var (
	cachePrefix = []byte("cost/")
	// cacheEnd is the exclusive upper bound of the cachePrefix key range.
	cacheEnd = []byte("cost0")

	ErrCorruptEntry = errors.New("corpus: corrupt cache entry")
)

// Cache memoises per-file summaries in a key-value store. Keys are derived from the
// instruction set parameters, the model variant and the file contents, so a stale entry
// is never returned for a changed input or a different model.
type Cache struct {
	store db.KVStore
	seed  []byte

	mu      sync.Mutex
	pending db.Batch
}

func NewCache(store db.KVStore, m *costmodel.Model) *Cache {
	seed := append(m.Params().Fingerprint(), byte(m.Variant()))
	return &Cache{store: store, seed: seed}
}

func (c *Cache) Key(data []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write(c.seed)
	h.Write(data)
	return h.Sum(slices.Clone(cachePrefix))
}

// Lookup returns the stored summary for key. Entries written since the last Flush are
// not visible.
func (c *Cache) Lookup(key []byte) (costmodel.Summary, bool, error) {
	raw, err := c.store.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return costmodel.Summary{}, false, nil
	}
	if err != nil {
		return costmodel.Summary{}, false, err
	}
	s, err := decodeSummary(raw)
	if err != nil {
		return costmodel.Summary{}, false, fmt.Errorf("%w: %x", err, key)
	}
	return s, true, nil
}

// Store queues s for writing on the next Flush.
func (c *Cache) Store(key []byte, s costmodel.Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		c.pending = c.store.NewBatch()
	}
	return c.pending.Put(key, encodeSummary(s))
}

// Flush commits the queued entries.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return nil
	}
	b := c.pending
	c.pending = nil
	if err := b.Commit(); err != nil {
		b.Close()
		return err
	}
	return b.Close()
}

// Len counts the entries in the store.
func (c *Cache) Len() (int, error) {
	it, err := c.store.NewIterator(cachePrefix, cacheEnd)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	n := 0
	for it.Next() {
		n++
	}
	return n, nil
}

// encodeSummary writes the cost, the function count and the constant histogram as
// varints, constants in ascending order.
func encodeSummary(s costmodel.Summary) []byte {
	buf := binary.AppendUvarint(nil, s.Cost)
	buf = binary.AppendUvarint(buf, uint64(s.Functions))
	buf = binary.AppendUvarint(buf, uint64(len(s.Constants)))
	keys := make([]int64, 0, len(s.Constants))
	for v := range s.Constants {
		keys = append(keys, v)
	}
	slices.Sort(keys)
	for _, v := range keys {
		buf = binary.AppendVarint(buf, v)
		buf = binary.AppendUvarint(buf, s.Constants[v])
	}
	return buf
}

func decodeSummary(buf []byte) (costmodel.Summary, error) {
	r := varintReader{buf: buf}
	s := costmodel.Summary{
		Cost:      r.uvarint(),
		Functions: int(r.uvarint()),
		Constants: make(map[int64]uint64),
	}
	n := r.uvarint()
	for i := uint64(0); i < n && r.err == nil; i++ {
		v := r.varint()
		s.Constants[v] = r.uvarint()
	}
	if r.err == nil && len(r.buf) != 0 {
		r.err = ErrCorruptEntry
	}
	return s, r.err
}

type varintReader struct {
	buf []byte
	err error
}

func (r *varintReader) uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.buf)
	if n <= 0 {
		r.err = ErrCorruptEntry
		return 0
	}
	r.buf = r.buf[n:]
	return v
}

func (r *varintReader) varint() int64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Varint(r.buf)
	if n <= 0 {
		r.err = ErrCorruptEntry
		return 0
	}
	r.buf = r.buf[n:]
	return v
}
