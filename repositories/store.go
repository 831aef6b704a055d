package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// maxTxnAttempts bounds how many times a read-write transaction is re-executed
// after badger reported a conflict with a concurrent commit.
const maxTxnAttempts = 8

// update runs fn in a serializable read-write transaction.
// When another transaction committed a write to a key fn has read, badger
// aborts the commit with ErrConflict and fn is evaluated again on fresh data.
// Errors returned by fn itself are never retried.
func update(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 1; attempt <= maxTxnAttempts; attempt++ {
		err = db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("transaction aborted after %d attempts: %w", maxTxnAttempts, err)
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(key, data)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

// errStopScan ends a scanPrefix walk early without failing it.
var errStopScan = stderrors.New("stop scan")

// scanPrefix calls fn for every key/value under prefix, in key order.
func scanPrefix(txn *badger.Txn, prefix []byte, fn func(key, val []byte) error) error {
	it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: prefix})
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		if err := item.Value(func(val []byte) error {
			return fn(key, val)
		}); err != nil {
			if stderrors.Is(err, errStopScan) {
				return nil
			}
			return err
		}
	}
	return nil
}
