package domain

import "time"

// GroupID identifies a group and, at runtime, the room of its live subscribers.
// The zero value is the global room used by ungrouped messages.
type GroupID string

const GlobalGroup GroupID = ""

func (g GroupID) IsGlobal() bool { return g == GlobalGroup }

type Group struct {
	ID        GroupID   `json:"id"`
	Name      string    `json:"name"`
	CreatedBy UserID    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Membership is the durable proof that a user belongs to a group.
// There is at most one per (group, user).
type Membership struct {
	GroupID  GroupID   `json:"groupId"`
	UserID   UserID    `json:"userId"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

func (m Membership) IsAdmin() bool { return m.Role == RoleAdmin }

// Member is a roster entry.
type Member struct {
	UserID UserID `json:"userId"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}
