package services

import (
	"context"
	"groupchat/contract"
	"groupchat/domain"
	"groupchat/domain/event"
	"groupchat/errors"
	"groupchat/observability"
	"groupchat/repositories"
	"groupchat/runtime"
	"log/slog"
	"strings"
)

type IGroupService interface {
	CreateGroup(ctx context.Context, caller domain.Identity, name string) (domain.Group, error)
	ListMyGroups(caller domain.Identity) ([]domain.Group, error)
	GetGroup(caller domain.Identity, groupID domain.GroupID) (domain.Group, error)
	ListMembers(caller domain.Identity, groupID domain.GroupID) ([]domain.Member, error)
	Invite(ctx context.Context, caller domain.Identity, groupID domain.GroupID, target domain.UserID) (domain.Membership, error)
	Promote(ctx context.Context, caller domain.Identity, groupID domain.GroupID, target domain.UserID) (domain.Membership, error)
	Demote(ctx context.Context, caller domain.Identity, groupID domain.GroupID, target domain.UserID) (domain.Membership, error)
	Remove(ctx context.Context, caller domain.Identity, groupID domain.GroupID, target domain.UserID) error
}

// GroupService runs the membership state machine. Each transition is a single
// store transaction, the registry is only told about it after commit.
type GroupService struct {
	log       *slog.Logger
	groups    repositories.IGroupRepository
	users     repositories.IUserRepository
	registry  contract.IRegistry
	sequencer *runtime.Sequencer
}

func NewGroupService(
	log *slog.Logger,
	groups repositories.IGroupRepository,
	users repositories.IUserRepository,
	registry contract.IRegistry,
	sequencer *runtime.Sequencer,
) *GroupService {
	return &GroupService{
		log:       log,
		groups:    groups,
		users:     users,
		registry:  registry,
		sequencer: sequencer,
	}
}

// CreateGroup makes the caller the first admin of a new group.
func (s *GroupService) CreateGroup(_ context.Context, caller domain.Identity, name string) (domain.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Group{}, errors.ErrEmptyGroupName
	}
	group, err := s.groups.CreateGroup(name, caller.UserID)
	observability.MembershipTransitions.WithLabelValues("create", observability.Outcome(err)).Inc()
	if err != nil {
		return domain.Group{}, errors.Internal(err)
	}
	s.log.Info("Group created", "group", group.ID, "admin", caller.UserID)
	return group, nil
}

func (s *GroupService) ListMyGroups(caller domain.Identity) ([]domain.Group, error) {
	groups, err := s.groups.ListGroupsOf(caller.UserID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return groups, nil
}

// GetGroup is only visible to members.
func (s *GroupService) GetGroup(caller domain.Identity, groupID domain.GroupID) (domain.Group, error) {
	if _, err := s.groups.GetMembership(groupID, caller.UserID); err != nil {
		return domain.Group{}, errors.Internal(err)
	}
	group, err := s.groups.GetGroup(groupID)
	if err != nil {
		return domain.Group{}, errors.Internal(err)
	}
	return group, nil
}

// ListMembers returns the roster. Outsiders have no visibility into it.
func (s *GroupService) ListMembers(caller domain.Identity, groupID domain.GroupID) ([]domain.Member, error) {
	if _, err := s.groups.GetMembership(groupID, caller.UserID); err != nil {
		return nil, errors.Internal(err)
	}
	memberships, err := s.groups.ListMembers(groupID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	ids := make([]domain.UserID, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.UserID)
	}
	users, err := s.users.GetUsers(ids)
	if err != nil {
		return nil, errors.Internal(err)
	}
	members := make([]domain.Member, 0, len(memberships))
	for _, m := range memberships {
		members = append(members, domain.Member{UserID: m.UserID, Name: users[m.UserID].Name, Role: m.Role})
	}
	return members, nil
}

// Invite adds target as a plain member, then tells the invitee's live
// connections and the group room about it.
func (s *GroupService) Invite(ctx context.Context, caller domain.Identity, groupID domain.GroupID, target domain.UserID) (domain.Membership, error) {
	membership, err := s.groups.Invite(caller.UserID, groupID, target)
	s.record("invite", caller, groupID, target, err)
	if err != nil {
		return domain.Membership{}, errors.Internal(err)
	}
	invited := event.UserInvited{UserID: target, GroupID: groupID}
	ctx = context.WithoutCancel(ctx)
	s.registry.Notify(ctx, target, invited)
	s.registry.Broadcast(ctx, groupID, invited)
	return membership, nil
}

func (s *GroupService) Promote(_ context.Context, caller domain.Identity, groupID domain.GroupID, target domain.UserID) (domain.Membership, error) {
	membership, err := s.groups.Promote(caller.UserID, groupID, target)
	s.record("promote", caller, groupID, target, err)
	if err != nil {
		return domain.Membership{}, errors.Internal(err)
	}
	return membership, nil
}

func (s *GroupService) Demote(_ context.Context, caller domain.Identity, groupID domain.GroupID, target domain.UserID) (domain.Membership, error) {
	membership, err := s.groups.Demote(caller.UserID, groupID, target)
	s.record("demote", caller, groupID, target, err)
	if err != nil {
		return domain.Membership{}, errors.Internal(err)
	}
	return membership, nil
}

// Remove deletes the membership and unsubscribes every live connection of
// target from the room. Both happen while the group's send order is held, so
// no message committed after the removal is ever delivered to target.
func (s *GroupService) Remove(ctx context.Context, caller domain.Identity, groupID domain.GroupID, target domain.UserID) error {
	err := s.sequencer.Do(groupID, func() error {
		if err := s.groups.Remove(caller.UserID, groupID, target); err != nil {
			return err
		}
		s.registry.EvictUser(groupID, target)
		return nil
	})
	s.record("remove", caller, groupID, target, err)
	if err != nil {
		return errors.Internal(err)
	}
	s.registry.Notify(context.WithoutCancel(ctx), target, event.GroupLeft{GroupID: groupID})
	return nil
}

func (s *GroupService) record(op string, caller domain.Identity, groupID domain.GroupID, target domain.UserID, err error) {
	observability.MembershipTransitions.WithLabelValues(op, observability.Outcome(err)).Inc()
	if err != nil {
		s.log.Debug("Membership change rejected",
			"op", op, "group", groupID, "caller", caller.UserID, "target", target, "error", err)
		return
	}
	s.log.Info("Membership changed", "op", op, "group", groupID, "caller", caller.UserID, "target", target)
}
