//go:generate go run go.uber.org/mock/mockgen -source=group.go -destination=../mocks/mock_group_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"groupchat/domain"
	"groupchat/errors"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// IGroupRepository is the membership store. Every mutation evaluates the
// caller's admin precondition and applies the role transition inside a single
// badger transaction.
type IGroupRepository interface {
	CreateGroup(name string, creator domain.UserID) (domain.Group, error)
	GetGroup(id domain.GroupID) (domain.Group, error)
	GetMembership(groupID domain.GroupID, userID domain.UserID) (domain.Membership, error)
	ListMembers(groupID domain.GroupID) ([]domain.Membership, error)
	ListGroupsOf(userID domain.UserID) ([]domain.Group, error)
	Invite(actor domain.UserID, groupID domain.GroupID, target domain.UserID) (domain.Membership, error)
	Promote(actor domain.UserID, groupID domain.GroupID, target domain.UserID) (domain.Membership, error)
	Demote(actor domain.UserID, groupID domain.GroupID, target domain.UserID) (domain.Membership, error)
	Remove(actor domain.UserID, groupID domain.GroupID, target domain.UserID) error
}

type GroupRepository struct {
	db *badger.DB
}

func NewGroupRepository(db *badger.DB) IGroupRepository {
	return &GroupRepository{db: db}
}

func groupKey(id domain.GroupID) []byte { return []byte("group:" + string(id)) }

func memberPrefix(groupID domain.GroupID) []byte {
	return []byte("member:" + string(groupID) + ":")
}

func memberKey(groupID domain.GroupID, userID domain.UserID) []byte {
	return append(memberPrefix(groupID), userID...)
}

func userGroupsPrefix(userID domain.UserID) []byte {
	return []byte("idx:member:" + string(userID) + ":")
}

func userGroupKey(userID domain.UserID, groupID domain.GroupID) []byte {
	return append(userGroupsPrefix(userID), groupID...)
}

// CreateGroup writes the group and the creator's admin membership atomically.
func (g *GroupRepository) CreateGroup(name string, creator domain.UserID) (domain.Group, error) {
	now := time.Now().UTC()
	group := domain.Group{
		ID:        domain.GroupID(uuid.NewString()),
		Name:      name,
		CreatedBy: creator,
		CreatedAt: now,
	}
	err := update(g.db, func(txn *badger.Txn) error {
		if err := setJSON(txn, groupKey(group.ID), group); err != nil {
			return err
		}
		return putMembership(txn, domain.Membership{
			GroupID:  group.ID,
			UserID:   creator,
			Role:     domain.RoleAdmin,
			JoinedAt: now,
		})
	})
	if err != nil {
		return domain.Group{}, err
	}
	return group, nil
}

func (g *GroupRepository) GetGroup(id domain.GroupID) (domain.Group, error) {
	var group domain.Group
	err := g.db.View(func(txn *badger.Txn) error {
		return readGroup(txn, id, &group)
	})
	return group, err
}

// GetMembership returns ErrGroupNotFound for an unknown group and
// ErrNotMember when the user holds no row for it.
func (g *GroupRepository) GetMembership(groupID domain.GroupID, userID domain.UserID) (domain.Membership, error) {
	var membership domain.Membership
	err := g.db.View(func(txn *badger.Txn) error {
		m, err := requireMember(txn, groupID, userID)
		if err != nil {
			return err
		}
		membership = m
		return nil
	})
	return membership, err
}

func (g *GroupRepository) ListMembers(groupID domain.GroupID) ([]domain.Membership, error) {
	var members []domain.Membership
	err := g.db.View(func(txn *badger.Txn) error {
		if err := readGroup(txn, groupID, &domain.Group{}); err != nil {
			return err
		}
		return scanPrefix(txn, memberPrefix(groupID), func(_, val []byte) error {
			var m domain.Membership
			if err := json.Unmarshal(val, &m); err != nil {
				return fmt.Errorf("unmarshal membership: %w", err)
			}
			members = append(members, m)
			return nil
		})
	})
	return members, err
}

func (g *GroupRepository) ListGroupsOf(userID domain.UserID) ([]domain.Group, error) {
	var groups []domain.Group
	err := g.db.View(func(txn *badger.Txn) error {
		prefix := userGroupsPrefix(userID)
		return scanPrefix(txn, prefix, func(key, _ []byte) error {
			groupID := domain.GroupID(strings.TrimPrefix(string(key), string(prefix)))
			var group domain.Group
			if err := readGroup(txn, groupID, &group); err != nil {
				return err
			}
			groups = append(groups, group)
			return nil
		})
	})
	return groups, err
}

// Invite: absent -> member. Existing rows are a conflict.
func (g *GroupRepository) Invite(actor domain.UserID, groupID domain.GroupID, target domain.UserID) (domain.Membership, error) {
	return g.transition(actor, groupID, target, func(txn *badger.Txn, current *domain.Membership) (*domain.Membership, error) {
		if current != nil {
			return nil, errors.ErrAlreadyMember
		}
		known, err := exists(txn, userKey(target))
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, errors.ErrUserNotFound
		}
		return &domain.Membership{
			GroupID:  groupID,
			UserID:   target,
			Role:     domain.RoleMember,
			JoinedAt: time.Now().UTC(),
		}, nil
	})
}

// Promote: member -> admin. Promoting an admin leaves the row untouched.
func (g *GroupRepository) Promote(actor domain.UserID, groupID domain.GroupID, target domain.UserID) (domain.Membership, error) {
	return g.transition(actor, groupID, target, func(_ *badger.Txn, current *domain.Membership) (*domain.Membership, error) {
		if current == nil {
			return nil, errors.ErrTargetNotMember
		}
		next := *current
		next.Role = domain.RoleAdmin
		return &next, nil
	})
}

// Demote: admin -> member. Anything else is not an admin.
func (g *GroupRepository) Demote(actor domain.UserID, groupID domain.GroupID, target domain.UserID) (domain.Membership, error) {
	return g.transition(actor, groupID, target, func(_ *badger.Txn, current *domain.Membership) (*domain.Membership, error) {
		if current == nil || !current.IsAdmin() {
			return nil, errors.ErrTargetNotAdmin
		}
		next := *current
		next.Role = domain.RoleMember
		return &next, nil
	})
}

// Remove: member|admin -> absent.
func (g *GroupRepository) Remove(actor domain.UserID, groupID domain.GroupID, target domain.UserID) error {
	_, err := g.transition(actor, groupID, target, func(_ *badger.Txn, current *domain.Membership) (*domain.Membership, error) {
		if current == nil {
			return nil, errors.ErrTargetNotMember
		}
		return nil, nil
	})
	return err
}

type transitionFunc func(txn *badger.Txn, current *domain.Membership) (*domain.Membership, error)

// transition is the single read-check-write unit behind every role change:
// group existence, the actor's admin role, the target's current row and the
// last-admin guard are all read in the same transaction that writes the
// result, so a concurrent commit touching any of them forces a re-evaluation.
// A nil result from apply deletes the target row.
func (g *GroupRepository) transition(actor domain.UserID, groupID domain.GroupID, target domain.UserID, apply transitionFunc) (domain.Membership, error) {
	var result domain.Membership
	err := update(g.db, func(txn *badger.Txn) error {
		caller, err := requireMember(txn, groupID, actor)
		if stderrors.Is(err, errors.ErrNotMember) {
			return errors.ErrNotAdmin
		}
		if err != nil {
			return err
		}
		if !caller.IsAdmin() {
			return errors.ErrNotAdmin
		}

		current, err := readMembership(txn, groupID, target)
		if err != nil {
			return err
		}
		next, err := apply(txn, current)
		if err != nil {
			return err
		}

		losesAdmin := current != nil && current.IsAdmin() && (next == nil || !next.IsAdmin())
		if losesAdmin {
			others, err := countAdmins(txn, groupID, target)
			if err != nil {
				return err
			}
			if others == 0 {
				return errors.ErrLastAdmin
			}
		}

		switch {
		case next == nil:
			if err = txn.Delete(memberKey(groupID, target)); err != nil {
				return err
			}
			if err = txn.Delete(userGroupKey(target, groupID)); err != nil {
				return err
			}
			result = domain.Membership{}
		case current != nil && *current == *next:
			result = *current
		default:
			if err = putMembership(txn, *next); err != nil {
				return err
			}
			result = *next
		}
		return nil
	})
	if err != nil {
		return domain.Membership{}, err
	}
	return result, nil
}

func putMembership(txn *badger.Txn, m domain.Membership) error {
	if err := setJSON(txn, memberKey(m.GroupID, m.UserID), m); err != nil {
		return err
	}
	return txn.Set(userGroupKey(m.UserID, m.GroupID), nil)
}

func readGroup(txn *badger.Txn, id domain.GroupID, group *domain.Group) error {
	if id.IsGlobal() {
		return errors.ErrGroupNotFound
	}
	err := getJSON(txn, groupKey(id), group)
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrGroupNotFound
	}
	return err
}

// readMembership returns nil, nil when the row is absent.
func readMembership(txn *badger.Txn, groupID domain.GroupID, userID domain.UserID) (*domain.Membership, error) {
	var m domain.Membership
	err := getJSON(txn, memberKey(groupID, userID), &m)
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// requireMember checks group existence then membership, inside txn.
func requireMember(txn *badger.Txn, groupID domain.GroupID, userID domain.UserID) (domain.Membership, error) {
	if err := readGroup(txn, groupID, &domain.Group{}); err != nil {
		return domain.Membership{}, err
	}
	m, err := readMembership(txn, groupID, userID)
	if err != nil {
		return domain.Membership{}, err
	}
	if m == nil {
		return domain.Membership{}, errors.ErrNotMember
	}
	return *m, nil
}

func countAdmins(txn *badger.Txn, groupID domain.GroupID, except domain.UserID) (int, error) {
	count := 0
	err := scanPrefix(txn, memberPrefix(groupID), func(_, val []byte) error {
		var m domain.Membership
		if err := json.Unmarshal(val, &m); err != nil {
			return err
		}
		if m.UserID != except && m.IsAdmin() {
			count++
		}
		return nil
	})
	return count, err
}
