// Package storage persists engine configuration between runs: UCI option
// defaults and integrity records for network weight files, so a large
// EvalFile that has not changed on disk does not need to be re-hashed on
// every startup.
package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("lumen.storage")

const (
	keyOptions       = "options"
	netRecordPrefix  = "net:"
	hashSampleWindow = 1 << 20 // hash the whole file in 1MB reads
)

// Options are the persisted UCI option defaults.
type Options struct {
	HashMB           int    `json:"hash_mb"`
	Threads          int    `json:"threads"`
	MultiPV          int    `json:"multipv"`
	EvalFile         string `json:"eval_file"`
	SyzygyPath       string `json:"syzygy_path"`
	SyzygyProbeDepth int    `json:"syzygy_probe_depth"`
	Chess960         bool   `json:"chess960"`
}

// DefaultOptions returns the defaults used when nothing is persisted.
func DefaultOptions() Options {
	return Options{
		HashMB:           64,
		Threads:          1,
		MultiPV:          1,
		SyzygyProbeDepth: 1,
	}
}

// NetRecord is the integrity record of a verified weight file.
type NetRecord struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
	Checksum uint64    `json:"checksum"`
	Verified time.Time `json:"verified"`
}

// Store wraps a badger database. A nil *Store is valid and turns every
// operation into a no-op, so the engine runs fine without a writable home
// directory.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the database at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open settings store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LoadOptions returns the persisted option defaults, or DefaultOptions.
func (s *Store) LoadOptions() Options {
	opts := DefaultOptions()
	if s == nil || s.db == nil {
		return opts
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyOptions))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &opts)
		})
	})
	if err != nil {
		log.Warningf("loading persisted options: %v", err)
		return DefaultOptions()
	}
	return opts
}

// SaveOptions persists the option defaults.
func (s *Store) SaveOptions(opts Options) error {
	if s == nil || s.db == nil {
		return nil
	}
	data, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyOptions), data)
	})
}

// VerifyNetFile checks path against its stored record. When size and mtime
// are unchanged the cached checksum is trusted; otherwise the file is hashed
// and the record refreshed. Returns the checksum.
func (s *Store) VerifyNetFile(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("network file: %w", err)
	}

	if rec, ok := s.netRecord(path); ok &&
		rec.Size == info.Size() && rec.ModTime.Equal(info.ModTime()) {
		return rec.Checksum, nil
	}

	sum, err := hashFile(path)
	if err != nil {
		return 0, err
	}

	rec := NetRecord{
		Path:     path,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Checksum: sum,
		Verified: time.Now(),
	}
	if err := s.putNetRecord(rec); err != nil {
		log.Warningf("saving network record for %s: %v", path, err)
	}
	return sum, nil
}

func (s *Store) netRecord(path string) (NetRecord, bool) {
	var rec NetRecord
	if s == nil || s.db == nil {
		return rec, false
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(netRecordPrefix + path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	return rec, err == nil
}

func (s *Store) putNetRecord(rec NetRecord) error {
	if s == nil || s.db == nil {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(netRecordPrefix+rec.Path), data)
	})
}

// hashFile computes the xxhash of a file's contents.
func hashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, hashSampleWindow)); err != nil {
		return 0, fmt.Errorf("hashing %s: %w", path, err)
	}
	return h.Sum64(), nil
}
