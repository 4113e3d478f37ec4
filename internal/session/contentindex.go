package session

// contentindex.go backs spec §3's content index — "(main_fingerprint,
// guard_sets) to canonical cell identifier" — with an embedded Badger store
// opened in the session's temp directory, the same embedded-KV pattern
// `examples/disk_eject/main.go` uses as a second-level store behind the
// teacher's in-memory cache. Badger is the durable system of record; the
// session mirrors every entry into an in-memory map so the hot path (a
// content-index lookup on every submission) never pays for a Badger
// round-trip, consulting Badger only at session construction (to warm the
// mirror) and on cleanup.

import (
	"fmt"
	"strconv"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

// contentKey is the composite lookup key: the main block's structural
// fingerprint plus the ordered list of per-hole guard fingerprints, encoded
// as a stable string so it can be both a Go map key and a Badger key.
func contentKey(mainFP uint64, guardFPs []uint64) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(mainFP, 16))
	for _, g := range guardFPs {
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(g, 16))
	}
	return b.String()
}

type contentIndex struct {
	db     *badger.DB
	mirror map[string]string // contentKey -> canonical cell id
}

func openContentIndex(dir string) (*contentIndex, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening content index: %w", err)
	}
	ci := &contentIndex{db: db, mirror: make(map[string]string)}
	if err := ci.warm(); err != nil {
		db.Close()
		return nil, err
	}
	return ci, nil
}

func (ci *contentIndex) warm() error {
	return ci.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(val []byte) error {
				ci.mirror[key] = string(val)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// lookup returns the canonical cell id registered for key, if any.
func (ci *contentIndex) lookup(key string) (string, bool) {
	id, ok := ci.mirror[key]
	return id, ok
}

// set registers key -> canonicalID, durably in Badger and in the mirror.
func (ci *contentIndex) set(key, canonicalID string) error {
	ci.mirror[key] = canonicalID
	return ci.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(canonicalID))
	})
}

// delete removes key from the index, used when a full rebuild supersedes a
// cell that was previously the canonical entry for its old content key.
func (ci *contentIndex) delete(key string) error {
	delete(ci.mirror, key)
	return ci.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (ci *contentIndex) Close() error {
	return ci.db.Close()
}
