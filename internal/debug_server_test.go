package internal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestDefaultMapper(t *testing.T) {
	req := require.New(t)

	row := DefaultMapper("msg:g1:00000000000000000042", []byte("{}"))
	req.Equal("msg", row.Type)
	req.Equal("g1", row.Namespace)
	req.Equal("#42", row.EntityID)

	row = DefaultMapper("user:u1", nil)
	req.Equal("user", row.Type)
	req.Equal("-", row.Namespace)
	req.Equal("u1", row.EntityID)
}

func TestMessageMapper_Shows_Sender_And_Body(t *testing.T) {
	req := require.New(t)

	val := []byte(`{"id":7,"message":"hello","userId":"u1","createdAt":"2026-01-02T03:04:05Z"}`)
	row := MessageMapper("msg:g1:00000000000000000007", val)
	req.Equal("#7", row.EntityID)
	req.Equal(`u1: "hello" at 2026-01-02 03:04:05`, row.Detail)

	row = MessageMapper("msg:g1:00000000000000000008", []byte("not json"))
	req.Contains(row.Detail, "undecodable")

	// other rows keep the generic layout
	row = MessageMapper("user:u1", []byte("{}"))
	req.Equal("Size: 2 bytes", row.Detail)
}

func TestDebugHandler_Lists_Rows_Under_Prefix(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	req.NoError(db.Update(func(txn *badger.Txn) error {
		for _, k := range []string{"group:g1", "group:g2", "user:u1"} {
			if err := txn.Set([]byte(k), []byte("{}")); err != nil {
				return err
			}
		}
		return nil
	}))

	w := httptest.NewRecorder()
	NewDebugHandler(slog.Default(), db, MessageMapper).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/inspect?prefix=group:", nil))

	req.Equal(http.StatusOK, w.Code)
	var rows []InspectRow
	req.NoError(json.Unmarshal(w.Body.Bytes(), &rows))
	req.Len(rows, 2)
	req.Equal("g1", rows[0].EntityID)
}
