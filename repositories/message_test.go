package repositories

import (
	stderrors "errors"
	"groupchat/domain"
	"groupchat/errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newMessageFixture(t *testing.T) (groupFixture, *MessageRepository) {
	f := newGroupFixture(t)
	messages, err := NewMessageRepository(f.db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = messages.Close() })
	return f, messages
}

func Test_Append_Assigns_Increasing_Ids(t *testing.T) {
	req := require.New(t)
	f, messages := newMessageFixture(t)
	alice := f.user(t, "alice")
	group, err := f.groups.CreateGroup("climbing", alice)
	req.NoError(err)

	at := time.Now()
	var last uint64
	for _, body := range []string{"one", "two", "three"} {
		m, err := messages.Append(group.ID, alice, body, at)
		req.NoError(err)
		req.Greater(m.ID, last)
		last = m.ID
	}

	all, err := messages.ListAfter(group.ID, 0)
	req.NoError(err)
	req.Len(all, 3)
	req.Equal([]string{"one", "two", "three"}, []string{all[0].Body, all[1].Body, all[2].Body})
	req.Equal(alice, all[0].SenderID)
	req.Equal(group.ID, all[0].GroupID)

	after, err := messages.ListAfter(group.ID, all[1].ID)
	req.NoError(err)
	req.Len(after, 1)
	req.Equal("three", after[0].Body)

	none, err := messages.ListAfter(group.ID, last)
	req.NoError(err)
	req.NotNil(none)
	req.Empty(none)

	// the highest possible cursor has nothing after it
	none, err = messages.ListAfter(group.ID, math.MaxUint64)
	req.NoError(err)
	req.NotNil(none)
	req.Empty(none)
}

func Test_Groups_And_Global_Are_Isolated(t *testing.T) {
	req := require.New(t)
	f, messages := newMessageFixture(t)
	alice := f.user(t, "alice")
	first, err := f.groups.CreateGroup("first", alice)
	req.NoError(err)
	second, err := f.groups.CreateGroup("second", alice)
	req.NoError(err)

	_, err = messages.Append(first.ID, alice, "in first", time.Now())
	req.NoError(err)
	_, err = messages.Append(domain.GlobalGroup, alice, "in global", time.Now())
	req.NoError(err)

	inSecond, err := messages.ListAfter(second.ID, 0)
	req.NoError(err)
	req.Empty(inSecond)

	inGlobal, err := messages.ListAfter(domain.GlobalGroup, 0)
	req.NoError(err)
	req.Len(inGlobal, 1)
	req.Equal("in global", inGlobal[0].Body)
	req.True(inGlobal[0].GroupID.IsGlobal())
}

func Test_Append_Requires_Membership(t *testing.T) {
	req := require.New(t)
	f, messages := newMessageFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	group, err := f.groups.CreateGroup("climbing", alice)
	req.NoError(err)

	_, err = messages.Append(group.ID, bob, "hello", time.Now())
	req.True(stderrors.Is(err, errors.ErrNotMember))

	_, err = messages.Append("missing", alice, "hello", time.Now())
	req.True(stderrors.Is(err, errors.ErrGroupNotFound))

	// Once removed, bob's sends are rejected again
	_, err = f.groups.Invite(alice, group.ID, bob)
	req.NoError(err)
	_, err = messages.Append(group.ID, bob, "hello", time.Now())
	req.NoError(err)
	req.NoError(f.groups.Remove(alice, group.ID, bob))
	_, err = messages.Append(group.ID, bob, "bye", time.Now())
	req.True(stderrors.Is(err, errors.ErrNotMember))

	all, err := messages.ListAfter(group.ID, 0)
	req.NoError(err)
	req.Len(all, 1)
}

func Test_Ids_Keep_Increasing_After_Reopen(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)
	alice := f.user(t, "alice")

	first, err := NewMessageRepository(f.db)
	req.NoError(err)
	m1, err := first.Append(domain.GlobalGroup, alice, "before", time.Now())
	req.NoError(err)
	req.NoError(first.Close())

	second, err := NewMessageRepository(f.db)
	req.NoError(err)
	defer second.Close()
	m2, err := second.Append(domain.GlobalGroup, alice, "after", time.Now())
	req.NoError(err)
	req.Greater(m2.ID, m1.ID)
}

func Test_Archive_Moves_Old_Messages_Only(t *testing.T) {
	req := require.New(t)
	f, messages := newMessageFixture(t)
	alice := f.user(t, "alice")
	group, err := f.groups.CreateGroup("climbing", alice)
	req.NoError(err)

	now := time.Now().UTC().Truncate(time.Second)
	old := now.Add(-48 * time.Hour)
	var olds []domain.Message
	for _, body := range []string{"a", "b", "c", "d", "e"} {
		m, err := messages.Append(group.ID, alice, body, old)
		req.NoError(err)
		olds = append(olds, m)
	}
	oldGlobal, err := messages.Append(domain.GlobalGroup, alice, "g", old)
	req.NoError(err)
	recent, err := messages.Append(group.ID, alice, "fresh", now)
	req.NoError(err)

	// When archiving with a batch smaller than the backlog
	moved, err := messages.ArchiveBefore(now.Add(-24*time.Hour), 2, now)
	req.NoError(err)

	// Then every old message moved and the recent one stayed
	req.Equal(6, moved)
	live, err := messages.ListAfter(group.ID, 0)
	req.NoError(err)
	req.Equal([]domain.Message{recent}, live)

	archived, err := messages.ListArchived(group.ID)
	req.NoError(err)
	req.Len(archived, len(olds))
	for i, a := range archived {
		req.Equal(olds[i], a.Message)
		req.Equal(now, a.ArchivedAt)
	}

	globalArchive, err := messages.ListArchived(domain.GlobalGroup)
	req.NoError(err)
	req.Len(globalArchive, 1)
	req.Equal(oldGlobal, globalArchive[0].Message)

	// A second pass finds nothing left to move
	moved, err = messages.ArchiveBefore(now.Add(-24*time.Hour), 2, now)
	req.NoError(err)
	req.Zero(moved)
}
