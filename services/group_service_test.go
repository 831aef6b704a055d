package services

import (
	"context"
	stderrors "errors"
	"groupchat/domain"
	"groupchat/domain/event"
	"groupchat/errors"
	"groupchat/mocks"
	"groupchat/runtime"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestGroupService_Invite_Notifies_Invitee_And_Room(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	groups := mocks.NewMockIGroupRepository(ctrl)
	registry := mocks.NewMockIRegistry(ctrl)
	svc := NewGroupService(slog.Default(), groups, mocks.NewMockIUserRepository(ctrl), registry, runtime.NewSequencer())

	admin := domain.Identity{UserID: "alice", Name: "Alice"}
	membership := domain.Membership{GroupID: "g1", UserID: "bob", Role: domain.RoleMember}
	invited := event.UserInvited{UserID: "bob", GroupID: "g1"}

	gomock.InOrder(
		groups.EXPECT().Invite(domain.UserID("alice"), domain.GroupID("g1"), domain.UserID("bob")).Return(membership, nil),
		registry.EXPECT().Notify(gomock.Any(), domain.UserID("bob"), invited).Return(1),
		registry.EXPECT().Broadcast(gomock.Any(), domain.GroupID("g1"), invited).Return(2),
	)

	got, err := svc.Invite(context.Background(), admin, "g1", "bob")
	req.NoError(err)
	req.Equal(membership, got)
}

func TestGroupService_Rejected_Invite_Notifies_Nobody(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	groups := mocks.NewMockIGroupRepository(ctrl)
	registry := mocks.NewMockIRegistry(ctrl)
	svc := NewGroupService(slog.Default(), groups, mocks.NewMockIUserRepository(ctrl), registry, runtime.NewSequencer())

	groups.EXPECT().Invite(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.Membership{}, errors.ErrNotAdmin)
	registry.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	registry.EXPECT().Broadcast(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := svc.Invite(context.Background(), domain.Identity{UserID: "bob"}, "g1", "carol")
	req.ErrorIs(err, errors.ErrNotAdmin)
}

func TestGroupService_Remove_Evicts_Before_Notifying(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	groups := mocks.NewMockIGroupRepository(ctrl)
	registry := mocks.NewMockIRegistry(ctrl)
	sequencer := runtime.NewSequencer()
	svc := NewGroupService(slog.Default(), groups, mocks.NewMockIUserRepository(ctrl), registry, sequencer)

	gomock.InOrder(
		groups.EXPECT().Remove(domain.UserID("alice"), domain.GroupID("g1"), domain.UserID("bob")).Return(nil),
		registry.EXPECT().EvictUser(domain.GroupID("g1"), domain.UserID("bob")).Do(func(domain.GroupID, domain.UserID) {
			// eviction happens while the group's send order is held
			req.Equal(1, sequencer.Len())
		}),
		registry.EXPECT().Notify(gomock.Any(), domain.UserID("bob"), event.GroupLeft{GroupID: "g1"}).Return(1),
	)

	req.NoError(svc.Remove(context.Background(), domain.Identity{UserID: "alice"}, "g1", "bob"))
	req.Zero(sequencer.Len())
}

func TestGroupService_Rejected_Remove_Keeps_Subscriptions(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	groups := mocks.NewMockIGroupRepository(ctrl)
	registry := mocks.NewMockIRegistry(ctrl)
	svc := NewGroupService(slog.Default(), groups, mocks.NewMockIUserRepository(ctrl), registry, runtime.NewSequencer())

	groups.EXPECT().Remove(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.ErrLastAdmin)
	registry.EXPECT().EvictUser(gomock.Any(), gomock.Any()).Times(0)

	err := svc.Remove(context.Background(), domain.Identity{UserID: "alice"}, "g1", "alice")
	req.ErrorIs(err, errors.ErrLastAdmin)
}

func TestGroupService_State_Machine(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newStack(t)
	alice, bob, carol := s.user(t, "alice"), s.user(t, "bob"), s.user(t, "carol")

	_, err := s.group.CreateGroup(ctx, alice, "   ")
	req.ErrorIs(err, errors.ErrEmptyGroupName)

	group, err := s.group.CreateGroup(ctx, alice, " climbing ")
	req.NoError(err)
	req.Equal("climbing", group.Name)

	// invite -> promote -> demote comes back to a plain member
	_, err = s.group.Invite(ctx, alice, group.ID, bob.UserID)
	req.NoError(err)
	promoted, err := s.group.Promote(ctx, alice, group.ID, bob.UserID)
	req.NoError(err)
	req.Equal(domain.RoleAdmin, promoted.Role)
	demoted, err := s.group.Demote(ctx, alice, group.ID, bob.UserID)
	req.NoError(err)
	req.Equal(domain.RoleMember, demoted.Role)

	// a plain member cannot manage the group
	_, err = s.group.Invite(ctx, bob, group.ID, carol.UserID)
	req.True(stderrors.Is(err, errors.ErrNotAdmin))
	_, err = s.group.Promote(ctx, bob, group.ID, bob.UserID)
	req.True(stderrors.Is(err, errors.ErrNotAdmin))

	members, err := s.group.ListMembers(bob, group.ID)
	req.NoError(err)
	req.ElementsMatch([]domain.Member{
		{UserID: alice.UserID, Name: "alice", Role: domain.RoleAdmin},
		{UserID: bob.UserID, Name: "bob", Role: domain.RoleMember},
	}, members)

	got, err := s.group.GetGroup(bob, group.ID)
	req.NoError(err)
	req.Equal(group.ID, got.ID)

	// outsiders see nothing
	_, err = s.group.ListMembers(carol, group.ID)
	req.True(stderrors.Is(err, errors.ErrNotMember))
	_, err = s.group.GetGroup(carol, group.ID)
	req.True(stderrors.Is(err, errors.ErrNotMember))

	mine, err := s.group.ListMyGroups(bob)
	req.NoError(err)
	req.Len(mine, 1)
	none, err := s.group.ListMyGroups(carol)
	req.NoError(err)
	req.Empty(none)
}

func TestGroupService_Invitee_Is_Notified_Live(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newStack(t)
	alice, bob := s.user(t, "alice"), s.user(t, "bob")
	group, err := s.group.CreateGroup(ctx, alice, "climbing")
	req.NoError(err)

	bobConn := s.chat.Connect(bob)
	_, err = s.group.Invite(ctx, alice, group.ID, bob.UserID)
	req.NoError(err)

	req.Equal(event.UserInvited{UserID: bob.UserID, GroupID: group.ID}, next(t, bobConn))
}
