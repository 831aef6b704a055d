package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"groupchat/domain"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

// Config is read from the environment, flags override it.
type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	Prefix         string `envconfig:"INSPECT_PREFIX" default:"msg:"`
	Limit          int    `envconfig:"INSPECT_LIMIT" default:"200"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal("Config error: ", err)
	}
	dbPath := flag.String("db", cfg.BadgerFilepath, "Path to badger DB")
	prefix := flag.String("prefix", cfg.Prefix, "Prefix to scan (user:, group:, member:, msg:, archive:)")
	limit := flag.Int("limit", cfg.Limit, "Maximum number of rows")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Group", "Entity", "Detail", "At"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes) && rows < *limit; it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(v []byte) error {
				row, err := describe(key, v)
				if err != nil {
					// Keep going, one bad row should not hide the others
					fmt.Printf("Error decoding key %s: %v\n", key, err)
					return nil
				}
				table.Append(row)
				rows++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Scan failed: ", err)
	}

	table.Render()
	fmt.Printf("\n%d row(s) under %q\n", rows, *prefix)
}

// describe turns one stored record into a table row.
func describe(key string, v []byte) ([]string, error) {
	kind, _, _ := strings.Cut(key, ":")
	switch kind {
	case "user":
		var u struct {
			ID        domain.UserID `json:"id"`
			Name      string        `json:"name"`
			Email     string        `json:"email"`
			CreatedAt time.Time     `json:"createdAt"`
		}
		if err := json.Unmarshal(v, &u); err != nil {
			return nil, err
		}
		return []string{key, "USER", "-", string(u.ID), u.Name + " <" + u.Email + ">", stamp(u.CreatedAt)}, nil
	case "group":
		var g domain.Group
		if err := json.Unmarshal(v, &g); err != nil {
			return nil, err
		}
		return []string{key, "GROUP", string(g.ID), string(g.CreatedBy), g.Name, stamp(g.CreatedAt)}, nil
	case "member":
		var m domain.Membership
		if err := json.Unmarshal(v, &m); err != nil {
			return nil, err
		}
		return []string{key, "MEMBER", string(m.GroupID), string(m.UserID), string(m.Role), stamp(m.JoinedAt)}, nil
	case "msg":
		var m domain.Message
		if err := json.Unmarshal(v, &m); err != nil {
			return nil, err
		}
		return []string{key, "MESSAGE", groupLabel(m.GroupID), fmt.Sprintf("#%d", m.ID), truncate(m.Body), stamp(m.CreatedAt)}, nil
	case "archive":
		var m domain.ArchivedMessage
		if err := json.Unmarshal(v, &m); err != nil {
			return nil, err
		}
		return []string{key, "ARCHIVED", groupLabel(m.GroupID), fmt.Sprintf("#%d", m.ID), truncate(m.Body), stamp(m.ArchivedAt)}, nil
	default:
		return []string{key, "RAW", "-", "-", fmt.Sprintf("Size: %d bytes", len(v)), "-"}, nil
	}
}

func groupLabel(id domain.GroupID) string {
	if id.IsGlobal() {
		return "global"
	}
	return string(id)
}

func truncate(s string) string {
	const maxLen = 60
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "--:--:--"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
