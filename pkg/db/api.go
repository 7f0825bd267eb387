// Package db defines the key-value store behind the per-file cost cache. Keys are content
// hashes of a module and the model that estimated it, values are encoded cost summaries.
package db

// KVStore holds cached cost summaries across runs of the estimator.
type KVStore interface {
	Writer
	// Get returns the summary stored under key. A cache miss is reported with the
	// implementation's not-found sentinel.
	Get(key []byte) ([]byte, error)
	NewBatch() Batch
	NewIterator(start, end []byte) (Iterator, error)
	Close() error
}

type Writer interface {
	Put(key []byte, value []byte) error
}

// Batch buffers the summaries computed during one corpus run. Nothing is visible to Get
// until Commit.
type Batch interface {
	Writer
	Commit() error
	Close() error
}

// Iterator walks the cache entries in a key range, e.g. to count them. Iterators must be
// closed after use.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() ([]byte, error)
	Valid() bool
	Close() error
}
