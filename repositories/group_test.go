package repositories

import (
	stderrors "errors"
	"fmt"
	"groupchat/domain"
	"groupchat/errors"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

type groupFixture struct {
	db     *badger.DB
	users  IUserRepository
	groups IGroupRepository
}

func newGroupFixture(t *testing.T) groupFixture {
	db := openTestDB(t)
	return groupFixture{db: db, users: NewUserRepository(db), groups: NewGroupRepository(db)}
}

func (f groupFixture) user(t *testing.T, name string) domain.UserID {
	t.Helper()
	u, err := f.users.CreateUser(name, name+"@example.com", "", "hash")
	require.NoError(t, err)
	return u.ID
}

func Test_Create_Group_Makes_Creator_Admin(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)
	alice := f.user(t, "alice")

	group, err := f.groups.CreateGroup("climbing", alice)
	req.NoError(err)
	req.Equal("climbing", group.Name)
	req.Equal(alice, group.CreatedBy)

	membership, err := f.groups.GetMembership(group.ID, alice)
	req.NoError(err)
	req.Equal(domain.RoleAdmin, membership.Role)

	groups, err := f.groups.ListGroupsOf(alice)
	req.NoError(err)
	req.Len(groups, 1)
	req.Equal(group.ID, groups[0].ID)
}

func Test_Invite_Promote_Demote_Round_Trip(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	group, err := f.groups.CreateGroup("climbing", alice)
	req.NoError(err)

	// When alice invites bob
	invited, err := f.groups.Invite(alice, group.ID, bob)
	req.NoError(err)
	// Then bob is a plain member
	req.Equal(domain.RoleMember, invited.Role)

	promoted, err := f.groups.Promote(alice, group.ID, bob)
	req.NoError(err)
	req.Equal(domain.RoleAdmin, promoted.Role)

	// Promoting an admin changes nothing
	again, err := f.groups.Promote(alice, group.ID, bob)
	req.NoError(err)
	req.Equal(promoted, again)

	demoted, err := f.groups.Demote(alice, group.ID, bob)
	req.NoError(err)
	req.Equal(domain.RoleMember, demoted.Role)
	req.Equal(invited, demoted)

	members, err := f.groups.ListMembers(group.ID)
	req.NoError(err)
	req.Len(members, 2)
}

func Test_Invite_Rejections(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	group, err := f.groups.CreateGroup("climbing", alice)
	req.NoError(err)
	_, err = f.groups.Invite(alice, group.ID, bob)
	req.NoError(err)

	_, err = f.groups.Invite(alice, group.ID, bob)
	req.True(stderrors.Is(err, errors.ErrAlreadyMember))

	_, err = f.groups.Invite(alice, group.ID, "ghost")
	req.True(stderrors.Is(err, errors.ErrUserNotFound))

	// a plain member is not allowed to invite
	_, err = f.groups.Invite(bob, group.ID, carol)
	req.True(stderrors.Is(err, errors.ErrNotAdmin))

	// neither is a stranger
	_, err = f.groups.Invite(carol, group.ID, carol)
	req.True(stderrors.Is(err, errors.ErrNotAdmin))

	_, err = f.groups.Invite(alice, "missing", carol)
	req.True(stderrors.Is(err, errors.ErrGroupNotFound))

	_, err = f.groups.Invite(alice, domain.GlobalGroup, carol)
	req.True(stderrors.Is(err, errors.ErrGroupNotFound))
}

func Test_Role_Change_On_Absent_Target(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	group, err := f.groups.CreateGroup("climbing", alice)
	req.NoError(err)

	_, err = f.groups.Promote(alice, group.ID, bob)
	req.True(stderrors.Is(err, errors.ErrTargetNotMember))

	err = f.groups.Remove(alice, group.ID, bob)
	req.True(stderrors.Is(err, errors.ErrTargetNotMember))

	_, err = f.groups.Demote(alice, group.ID, bob)
	req.True(stderrors.Is(err, errors.ErrTargetNotAdmin))

	_, err = f.groups.Invite(alice, group.ID, bob)
	req.NoError(err)
	_, err = f.groups.Demote(alice, group.ID, bob)
	req.True(stderrors.Is(err, errors.ErrTargetNotAdmin))
}

func Test_Remove_Deletes_Membership_And_Index(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	group, err := f.groups.CreateGroup("climbing", alice)
	req.NoError(err)
	_, err = f.groups.Invite(alice, group.ID, bob)
	req.NoError(err)

	req.NoError(f.groups.Remove(alice, group.ID, bob))

	_, err = f.groups.GetMembership(group.ID, bob)
	req.True(stderrors.Is(err, errors.ErrNotMember))

	groups, err := f.groups.ListGroupsOf(bob)
	req.NoError(err)
	req.Empty(groups)

	// bob can be invited again afterwards
	_, err = f.groups.Invite(alice, group.ID, bob)
	req.NoError(err)
}

func Test_Last_Admin_Is_Kept(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	group, err := f.groups.CreateGroup("climbing", alice)
	req.NoError(err)
	_, err = f.groups.Invite(alice, group.ID, bob)
	req.NoError(err)

	_, err = f.groups.Demote(alice, group.ID, alice)
	req.True(stderrors.Is(err, errors.ErrLastAdmin))

	err = f.groups.Remove(alice, group.ID, alice)
	req.True(stderrors.Is(err, errors.ErrLastAdmin))

	// With a second admin, alice may step down
	_, err = f.groups.Promote(alice, group.ID, bob)
	req.NoError(err)
	req.NoError(f.groups.Remove(alice, group.ID, alice))

	membership, err := f.groups.GetMembership(group.ID, bob)
	req.NoError(err)
	req.True(membership.IsAdmin())
}

func Test_Concurrent_Demotions_Keep_One_Admin(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	group, err := f.groups.CreateGroup("climbing", alice)
	req.NoError(err)
	_, err = f.groups.Invite(alice, group.ID, bob)
	req.NoError(err)
	_, err = f.groups.Promote(alice, group.ID, bob)
	req.NoError(err)

	// When both admins demote each other at the same time
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, pair := range [][2]domain.UserID{{alice, bob}, {bob, alice}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = f.groups.Demote(pair[0], group.ID, pair[1])
		}()
	}
	wg.Wait()

	// Then exactly one of them succeeds
	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		req.True(stderrors.Is(err, errors.ErrNotAdmin) || stderrors.Is(err, errors.ErrLastAdmin), err)
	}
	req.Equal(1, succeeded)

	members, err := f.groups.ListMembers(group.ID)
	req.NoError(err)
	admins := 0
	for _, m := range members {
		if m.IsAdmin() {
			admins++
		}
	}
	req.Equal(1, admins)
}

func Test_Concurrent_Promote_And_Remove_Keep_Rows_Consistent(t *testing.T) {
	req := require.New(t)
	f := newGroupFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	group, err := f.groups.CreateGroup("climbing", alice)
	req.NoError(err)
	_, err = f.groups.Invite(alice, group.ID, bob)
	req.NoError(err)
	_, err = f.groups.Promote(alice, group.ID, bob)
	req.NoError(err)

	for i := 0; i < 20; i++ {
		carol := f.user(t, fmt.Sprintf("carol%d", i))
		_, err = f.groups.Invite(alice, group.ID, carol)
		req.NoError(err)

		// When one admin promotes carol while the other removes carol
		var wg sync.WaitGroup
		var promoteErr, removeErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, promoteErr = f.groups.Promote(alice, group.ID, carol)
		}()
		go func() {
			defer wg.Done()
			removeErr = f.groups.Remove(bob, group.ID, carol)
		}()
		wg.Wait()

		// Then the removal always lands, promote only fails on a target already gone
		req.NoError(removeErr)
		if promoteErr != nil {
			req.True(stderrors.Is(promoteErr, errors.ErrTargetNotMember), promoteErr)
		}

		// And the membership row and the reverse index agree: both gone
		_, err = f.groups.GetMembership(group.ID, carol)
		req.True(stderrors.Is(err, errors.ErrNotMember), err)
		err = f.db.View(func(txn *badger.Txn) error {
			_, err := txn.Get(userGroupKey(carol, group.ID))
			return err
		})
		req.True(stderrors.Is(err, badger.ErrKeyNotFound), err)
		groups, err := f.groups.ListGroupsOf(carol)
		req.NoError(err)
		req.Empty(groups)
	}
}
