package mine

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultAnalyzedCapacity is the default bound of the analyzed-signature cache.
const DefaultAnalyzedCapacity = 50000

// SeenSet registers position signatures across all waves of a run. Owned by the
// mining loop; not thread-safe.
type SeenSet struct {
	sigs map[uint64]bool
}

func NewSeenSet() *SeenSet {
	return &SeenSet{sigs: map[uint64]bool{}}
}

// Add registers the signature. Returns true iff it was not present.
func (s *SeenSet) Add(sig uint64) bool {
	if s.sigs[sig] {
		return false
	}
	s.sigs[sig] = true
	return true
}

func (s *SeenSet) Has(sig uint64) bool {
	return s.sigs[sig]
}

func (s *SeenSet) Size() int {
	return len(s.sigs)
}

// AnalyzedCache is a bounded LRU of signatures already scored. Lookups refresh
// recency. Owned by the mining loop; not thread-safe.
type AnalyzedCache struct {
	cache *lru.Cache[uint64, struct{}]
}

func NewAnalyzedCache(capacity int) (*AnalyzedCache, error) {
	if capacity <= 0 {
		capacity = DefaultAnalyzedCapacity
	}
	cache, err := lru.New[uint64, struct{}](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzed cache: %w", err)
	}
	return &AnalyzedCache{cache: cache}, nil
}

func (c *AnalyzedCache) Add(sig uint64) {
	c.cache.Add(sig, struct{}{})
}

func (c *AnalyzedCache) Has(sig uint64) bool {
	_, ok := c.cache.Get(sig)
	return ok
}

func (c *AnalyzedCache) Size() int {
	return c.cache.Len()
}

// storedRecord is the value kept per signature in the persistent store.
type storedRecord struct {
	Position string `json:"position"`
	Kind     string `json:"kind"`
}

// Store is an optional persistent signature store, so that repeated runs against
// the same store directory skip positions scored in earlier sessions.
type Store struct {
	db *badger.DB
}

// OpenStore opens (or creates) a store under the directory.
func OpenStore(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open signature store: %w", err)
	}
	return &Store{db: db}, nil
}

// Has returns true iff the signature was recorded, in this run or an earlier one.
func (s *Store) Has(sig uint64) bool {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(storeKey(sig))
		return err
	})
	return err == nil
}

// Add records the signature with the position FEN and classification kind.
func (s *Store) Add(sig uint64, position, kind string) error {
	value, err := json.Marshal(storedRecord{Position: position, Kind: kind})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(storeKey(sig), value)
	})
}

// Get returns the stored position FEN and kind for the signature.
func (s *Store) Get(sig uint64) (string, string, bool) {
	var stored storedRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storeKey(sig))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &stored)
		})
	})
	if err != nil {
		return "", "", false
	}
	return stored.Position, stored.Kind, true
}

func (s *Store) Close() error {
	return s.db.Close()
}

func storeKey(sig uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], sig)
	return key[:]
}
