package internal

import (
	"encoding/json"
	"fmt"
	"groupchat/domain"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const maxInspectRows = 1000

type InspectRow struct {
	Key       string `json:"key"`
	Type      string `json:"type"`
	Namespace string `json:"namespace"`
	EntityID  string `json:"entityId"`
	Detail    string `json:"detail"`
}

type RowMapper func(key string, val []byte) InspectRow

// NewDebugHandler lists raw store rows under ?prefix=, as JSON.
// It is served on its own port, never on the public one.
func NewDebugHandler(log *slog.Logger, db *badger.DB, mapper RowMapper) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "group:"
		}

		rows := make([]InspectRow, 0)
		err := db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, Prefix: []byte(prefix)})
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)) && len(rows) < maxInspectRows; it.Next() {
				item := it.Item()
				key := string(item.KeyCopy(nil))
				if err := item.Value(func(val []byte) error {
					rows = append(rows, mapper(key, val))
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			log.Error("Inspect failed", "prefix", prefix, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rows)
	})
	return mux
}

// DefaultMapper understands the "{type}:{namespace}:{id}" key layout.
func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Type:      parts[0],
		Namespace: "-",
		EntityID:  "-",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}
	switch len(parts) {
	case 1:
	case 2:
		row.EntityID = parts[1]
	default:
		row.Namespace = parts[1]
		row.EntityID = strings.Join(parts[2:], ":")
	}
	if row.Type == "msg" || row.Type == "archive" {
		if id, err := strconv.ParseUint(row.EntityID, 10, 64); err == nil {
			row.EntityID = fmt.Sprintf("#%d", id)
		}
	}
	return row
}

// MessageMapper shows who sent what for msg: and archive: rows and falls back
// to DefaultMapper for everything else.
func MessageMapper(key string, val []byte) InspectRow {
	row := DefaultMapper(key, val)
	if row.Type != "msg" && row.Type != "archive" {
		return row
	}
	var m domain.Message
	if err := json.Unmarshal(val, &m); err != nil {
		row.Detail = "undecodable: " + err.Error()
		return row
	}
	row.Detail = fmt.Sprintf("%s: %q at %s", m.SenderID, m.Body, m.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	return row
}
