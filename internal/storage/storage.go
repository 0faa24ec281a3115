// Package storage is a badger-backed registry of validated NNUE weight
// files plus the command line preferences.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/hailam/millnnue/internal/logging"
	"github.com/hailam/millnnue/nnue"
)

// Storage keys
const (
	keyPreferences = "preferences"
	prefixMeta     = "net/meta/"
	prefixBlob     = "net/blob/"
)

// ErrNotFound is returned when no stored network matches a lookup.
var ErrNotFound = errors.New("storage: network not found")

// NetworkRecord describes a stored network.
type NetworkRecord struct {
	Hash        uint32    `json:"hash"`
	Digest      uint64    `json:"digest"`
	Description string    `json:"description"`
	Variant     string    `json:"variant"`
	Topology    string    `json:"topology"`
	Size        int       `json:"size"`
	Compressed  int       `json:"compressed"`
	Added       time.Time `json:"added"`
}

// Preferences are the persisted command line defaults.
type Preferences struct {
	EvalFile   string    `json:"eval_file"`
	LargePages bool      `json:"large_pages"`
	Variant    string    `json:"variant"`
	LastUsed   time.Time `json:"last_used"`
}

// DefaultPreferences returns the preferences used before anything is saved.
func DefaultPreferences() *Preferences {
	return &Preferences{
		LargePages: true,
		Variant:    "nine",
	}
}

// Storage wraps BadgerDB for persistent storage
type Storage struct {
	db *badger.DB
}

// NewStorage opens the registry in the platform data directory.
func NewStorage(logger zerolog.Logger) (*Storage, error) {
	dbDir, err := GetDatabaseDir()
	if err != nil {
		return nil, err
	}
	return Open(dbDir, logger)
}

// Open opens the registry in dir.
func Open(dir string, logger zerolog.Logger) (*Storage, error) {
	opts := badger.DefaultOptions(dir).WithLogger(logging.Badger(logger)).WithLoggingLevel(badger.WARNING)
	return open(opts)
}

// OpenInMemory opens a registry that is discarded on Close.
func OpenInMemory(logger zerolog.Logger) (*Storage, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(logging.Badger(logger)).WithLoggingLevel(badger.WARNING)
	return open(opts)
}

func open(opts badger.Options) (*Storage, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func metaKey(digest uint64) []byte { return fmt.Appendf(nil, "%s%016x", prefixMeta, digest) }
func blobKey(digest uint64) []byte { return fmt.Appendf(nil, "%s%016x", prefixBlob, digest) }

// PutNetwork stores net zstd-compressed under its digest. Storing the same
// weights twice keeps the first record.
func (s *Storage) PutNetwork(net *nnue.Network) (NetworkRecord, error) {
	if existing, err := s.Record(net.Digest()); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return NetworkRecord{}, err
	}

	var buf bytes.Buffer
	if err := net.Save(&buf, nnue.SaveOptions{Zstd: true}); err != nil {
		return NetworkRecord{}, fmt.Errorf("encode network: %w", err)
	}

	rec := NetworkRecord{
		Hash:        net.Hash(),
		Digest:      net.Digest(),
		Description: net.Description(),
		Variant:     net.Variant().Name,
		Topology:    net.Topology().String(),
		Size:        net.Size(),
		Compressed:  buf.Len(),
		Added:       time.Now(),
	}
	meta, err := json.Marshal(rec)
	if err != nil {
		return NetworkRecord{}, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(blobKey(rec.Digest), buf.Bytes()); err != nil {
			return err
		}
		return txn.Set(metaKey(rec.Digest), meta)
	})
	if err != nil {
		return NetworkRecord{}, fmt.Errorf("store network %016x: %w", rec.Digest, err)
	}
	return rec, nil
}

// Record returns the metadata stored for digest.
func (s *Storage) Record(digest uint64) (NetworkRecord, error) {
	var rec NetworkRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(digest))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	return rec, err
}

// ListNetworks returns every stored record in digest order.
func (s *Storage) ListNetworks() ([]NetworkRecord, error) {
	var recs []NetworkRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixMeta)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec NetworkRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return nil
	})
	return recs, err
}

// FindNetwork returns the most recently added record whose compatibility
// hash is hash.
func (s *Storage) FindNetwork(hash uint32) (NetworkRecord, error) {
	recs, err := s.ListNetworks()
	if err != nil {
		return NetworkRecord{}, err
	}
	var best *NetworkRecord
	for i := range recs {
		if recs[i].Hash == hash && (best == nil || recs[i].Added.After(best.Added)) {
			best = &recs[i]
		}
	}
	if best == nil {
		return NetworkRecord{}, fmt.Errorf("%w: hash %08x", ErrNotFound, hash)
	}
	return *best, nil
}

// NetworkData returns the encoded weight file stored for digest.
func (s *Storage) NetworkData(digest uint64) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(digest))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: digest %016x", ErrNotFound, digest)
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}

// GetNetwork loads the network stored for digest and checks that its
// weights still hash to digest.
func (s *Storage) GetNetwork(digest uint64, opts nnue.LoadOptions) (*nnue.Network, error) {
	data, err := s.NetworkData(digest)
	if err != nil {
		return nil, err
	}
	net, err := nnue.Load(bytes.NewReader(data), opts)
	if err != nil {
		return nil, fmt.Errorf("load stored network %016x: %w", digest, err)
	}
	if net.Digest() != digest {
		net.Close()
		return nil, fmt.Errorf("stored network %016x is corrupt: digest %016x", digest, net.Digest())
	}
	return net, nil
}

// DeleteNetwork removes the network stored for digest.
func (s *Storage) DeleteNetwork(digest uint64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(metaKey(digest)); err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: digest %016x", ErrNotFound, digest)
		} else if err != nil {
			return err
		}
		if err := txn.Delete(metaKey(digest)); err != nil {
			return err
		}
		return txn.Delete(blobKey(digest))
	})
}

// SavePreferences saves the command line preferences.
func (s *Storage) SavePreferences(prefs *Preferences) error {
	prefs.LastUsed = time.Now()

	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPreferences), data)
	})
}

// LoadPreferences loads the preferences, returns defaults if not found
func (s *Storage) LoadPreferences() (*Preferences, error) {
	prefs := DefaultPreferences()

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPreferences))
		if err == badger.ErrKeyNotFound {
			return nil // Use defaults
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, prefs)
		})
	})

	return prefs, err
}
