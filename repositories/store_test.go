package repositories

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Scan_Prefix_Stops_Early_Without_Error(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	req.NoError(db.Update(func(txn *badger.Txn) error {
		for _, k := range []string{"k:1", "k:2", "k:3", "other:1"} {
			if err := txn.Set([]byte(k), []byte("v")); err != nil {
				return err
			}
		}
		return nil
	}))

	var seen []string
	err := db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte("k:"), func(key, _ []byte) error {
			seen = append(seen, string(key))
			if len(seen) == 2 {
				return errStopScan
			}
			return nil
		})
	})
	req.NoError(err)
	req.Equal([]string{"k:1", "k:2"}, seen)
}
