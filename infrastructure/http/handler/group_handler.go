package handler

import (
	"groupchat/auth"
	"groupchat/domain"
	"groupchat/errors"
	"groupchat/services"
	"net/http"
)

// GroupHandler exposes the membership operations. Every route runs behind
// the token middleware.
type GroupHandler struct {
	groupService services.IGroupService
	fail         func(http.ResponseWriter, *http.Request, error)
}

func NewGroupHandler(groupService services.IGroupService, fail func(http.ResponseWriter, *http.Request, error)) *GroupHandler {
	return &GroupHandler{groupService: groupService, fail: fail}
}

type createGroupBody struct {
	Name string `json:"name"`
}

type inviteBody struct {
	UserID domain.UserID `json:"userId"`
}

func (g *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFrom(r.Context())
	var body createGroupBody
	if err := decodeJSON(r, &body); err != nil {
		g.fail(w, r, err)
		return
	}
	group, err := g.groupService.CreateGroup(r.Context(), caller, body.Name)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (g *GroupHandler) ListMyGroups(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFrom(r.Context())
	groups, err := g.groupService.ListMyGroups(caller)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	if groups == nil {
		groups = []domain.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (g *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFrom(r.Context())
	group, err := g.groupService.GetGroup(caller, domain.GroupID(pathVar(r, "groupId")))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (g *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFrom(r.Context())
	members, err := g.groupService.ListMembers(caller, domain.GroupID(pathVar(r, "groupId")))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (g *GroupHandler) Invite(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFrom(r.Context())
	var body inviteBody
	if err := decodeJSON(r, &body); err != nil {
		g.fail(w, r, err)
		return
	}
	if body.UserID == "" {
		g.fail(w, r, errors.New(errors.KindInvalidInput, "userId is required"))
		return
	}
	membership, err := g.groupService.Invite(r.Context(), caller, domain.GroupID(pathVar(r, "groupId")), body.UserID)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, membership)
}

func (g *GroupHandler) Promote(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFrom(r.Context())
	membership, err := g.groupService.Promote(r.Context(), caller,
		domain.GroupID(pathVar(r, "groupId")), domain.UserID(pathVar(r, "userId")))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, membership)
}

func (g *GroupHandler) Demote(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFrom(r.Context())
	membership, err := g.groupService.Demote(r.Context(), caller,
		domain.GroupID(pathVar(r, "groupId")), domain.UserID(pathVar(r, "userId")))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, membership)
}

func (g *GroupHandler) Remove(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFrom(r.Context())
	err := g.groupService.Remove(r.Context(), caller,
		domain.GroupID(pathVar(r, "groupId")), domain.UserID(pathVar(r, "userId")))
	if err != nil {
		g.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
