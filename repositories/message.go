//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"groupchat/domain"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	globalScope    = "global"
	sequenceKey    = "seq:message"
	sequenceLease  = 1000
	messagePrefix  = "msg:"
	archivePrefix  = "archive:"
	messageIDWidth = 20
)

type IMessageRepository interface {
	Append(groupID domain.GroupID, sender domain.UserID, body string, at time.Time) (domain.Message, error)
	ListAfter(groupID domain.GroupID, afterID uint64) ([]domain.Message, error)
	ArchiveBefore(cutoff time.Time, batchSize int, archivedAt time.Time) (int, error)
	ListArchived(groupID domain.GroupID) ([]domain.ArchivedMessage, error)
	Close() error
}

type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewMessageRepository(db *badger.DB) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceLease)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq}, nil
}

func scope(groupID domain.GroupID) string {
	if groupID.IsGlobal() {
		return globalScope
	}
	return string(groupID)
}

func messageScopePrefix(groupID domain.GroupID) []byte {
	return []byte(messagePrefix + scope(groupID) + ":")
}

// messageKey is "msg:{group}:{id}" with the id padded to 20 digits, so the
// lexicographic order of a group's keys is the order of its identifiers.
func messageKey(groupID domain.GroupID, id uint64) []byte {
	return fmt.Appendf(messageScopePrefix(groupID), "%0*d", messageIDWidth, id)
}

func archiveScopePrefix(groupID domain.GroupID) []byte {
	return []byte(archivePrefix + scope(groupID) + ":")
}

func archiveKey(groupID domain.GroupID, id uint64) []byte {
	return fmt.Appendf(archiveScopePrefix(groupID), "%0*d", messageIDWidth, id)
}

// Append stores a new message under a fresh identifier.
// For a group, the group and the sender's membership are read in the same
// transaction as the write: a removal committed concurrently aborts the
// append, which is then evaluated again and rejected.
// Global messages carry no membership check.
func (m *MessageRepository) Append(groupID domain.GroupID, sender domain.UserID, body string, at time.Time) (domain.Message, error) {
	next, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("next message id: %w", err)
	}
	// the sequence starts at zero, and zero is the "from the start" cursor
	message := domain.Message{
		ID:        next + 1,
		Body:      body,
		SenderID:  sender,
		GroupID:   groupID,
		CreatedAt: at.UTC(),
	}
	err = update(m.db, func(txn *badger.Txn) error {
		if !groupID.IsGlobal() {
			if _, err := requireMember(txn, groupID, sender); err != nil {
				return err
			}
		}
		return setJSON(txn, messageKey(groupID, message.ID), message)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// ListAfter returns every live message of the group with an identifier
// strictly greater than afterID, ascending. There is no page cap.
func (m *MessageRepository) ListAfter(groupID domain.GroupID, afterID uint64) ([]domain.Message, error) {
	messages := make([]domain.Message, 0)
	if afterID == math.MaxUint64 {
		return messages, nil
	}
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messageScopePrefix(groupID)
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: prefix})
		defer it.Close()
		for it.Seek(messageKey(groupID, afterID+1)); it.ValidForPrefix(prefix); it.Next() {
			var message domain.Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &message)
			})
			if err != nil {
				return fmt.Errorf("unmarshal message: %w", err)
			}
			messages = append(messages, message)
		}
		return nil
	})
	return messages, err
}

// ArchiveBefore moves messages created before cutoff to the archive, batch by
// batch, one transaction per batch. Each archived row keeps its identifier,
// body, sender, group and original timestamp. It returns how many rows moved.
func (m *MessageRepository) ArchiveBefore(cutoff time.Time, batchSize int, archivedAt time.Time) (int, error) {
	if batchSize <= 0 {
		batchSize = 1
	}
	total := 0
	for {
		moved, err := m.archiveBatch(cutoff, batchSize, archivedAt.UTC())
		total += moved
		if err != nil {
			return total, err
		}
		if moved < batchSize {
			return total, nil
		}
	}
}

func (m *MessageRepository) archiveBatch(cutoff time.Time, batchSize int, archivedAt time.Time) (int, error) {
	moved := 0
	err := update(m.db, func(txn *badger.Txn) error {
		moved = 0
		var batch []domain.Message
		err := scanPrefix(txn, []byte(messagePrefix), func(_, val []byte) error {
			var message domain.Message
			if err := json.Unmarshal(val, &message); err != nil {
				return fmt.Errorf("unmarshal message: %w", err)
			}
			if message.CreatedAt.Before(cutoff) {
				batch = append(batch, message)
			}
			if len(batch) == batchSize {
				return errStopScan
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, message := range batch {
			archived := domain.ArchivedMessage{Message: message, ArchivedAt: archivedAt}
			if err = setJSON(txn, archiveKey(message.GroupID, message.ID), archived); err != nil {
				return err
			}
			if err = txn.Delete(messageKey(message.GroupID, message.ID)); err != nil {
				return err
			}
		}
		moved = len(batch)
		return nil
	})
	return moved, err
}

func (m *MessageRepository) ListArchived(groupID domain.GroupID) ([]domain.ArchivedMessage, error) {
	archived := make([]domain.ArchivedMessage, 0)
	err := m.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, archiveScopePrefix(groupID), func(_, val []byte) error {
			var message domain.ArchivedMessage
			if err := json.Unmarshal(val, &message); err != nil {
				return fmt.Errorf("unmarshal archived message: %w", err)
			}
			archived = append(archived, message)
			return nil
		})
	})
	return archived, err
}

// Close hands the unused part of the leased identifier range back to the store.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}
