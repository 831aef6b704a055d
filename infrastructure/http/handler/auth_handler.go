package handler

import (
	"groupchat/auth"
	"groupchat/services"
	"net/http"
)

type AuthHandler struct {
	authService services.IAuthService
	fail        func(http.ResponseWriter, *http.Request, error)
}

func NewAuthHandler(authService services.IAuthService, fail func(http.ResponseWriter, *http.Request, error)) *AuthHandler {
	return &AuthHandler{authService: authService, fail: fail}
}

func (a *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var body auth.RegisterRequest
	if err := decodeJSON(r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	session, err := a.authService.Register(body)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (a *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body auth.LoginRequest
	if err := decodeJSON(r, &body); err != nil {
		a.fail(w, r, err)
		return
	}
	session, err := a.authService.Login(body)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.authService.ListUsers()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
