package handler

import (
	"groupchat/auth"
	"groupchat/observability"
	"groupchat/services"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

type Dependencies struct {
	Log           *slog.Logger
	Tokens        *auth.TokenIssuer
	AuthService   services.IAuthService
	GroupService  services.IGroupService
	ChatService   services.IChatService
	Monitoring    *observability.MonitoringManager
	BlobDir       string
	MaxUploadSize int64
	AllowedOrigin string
}

// NewRouter wires every route. Anything but signup, login, the static files
// and the operator endpoints goes through the token middleware first.
func NewRouter(deps Dependencies) http.Handler {
	fail := errorWriter(deps.Log)
	authHandler := NewAuthHandler(deps.AuthService, fail)
	groupHandler := NewGroupHandler(deps.GroupService, fail)
	messageHandler := NewMessageHandler(deps.ChatService, fail, deps.MaxUploadSize)
	wsHandler := NewWSHandler(deps.Log, deps.ChatService, deps.AllowedOrigin)

	r := mux.NewRouter()

	// Public routes
	r.HandleFunc("/users/signup", authHandler.Signup).Methods(http.MethodPost)
	r.HandleFunc("/users/login", authHandler.Login).Methods(http.MethodPost)
	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	if deps.Monitoring != nil {
		r.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, deps.Monitoring.GetLatest())
		}).Methods(http.MethodGet)
	}
	if deps.BlobDir != "" {
		r.PathPrefix("/files/").Handler(http.StripPrefix("/files/", http.FileServer(http.Dir(deps.BlobDir))))
	}

	// Authenticated routes
	api := r.NewRoute().Subrouter()
	api.Use(deps.Tokens.Middleware(fail))

	api.HandleFunc("/users", authHandler.ListUsers).Methods(http.MethodGet)

	api.HandleFunc("/groups", groupHandler.CreateGroup).Methods(http.MethodPost)
	api.HandleFunc("/groups", groupHandler.ListMyGroups).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupId}", groupHandler.GetGroup).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupId}/members", groupHandler.ListMembers).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupId}/members", groupHandler.Invite).Methods(http.MethodPost)
	api.HandleFunc("/groups/{groupId}/members/{userId}/promote", groupHandler.Promote).Methods(http.MethodPost)
	api.HandleFunc("/groups/{groupId}/members/{userId}/demote", groupHandler.Demote).Methods(http.MethodPost)
	api.HandleFunc("/groups/{groupId}/members/{userId}", groupHandler.Remove).Methods(http.MethodDelete)

	api.HandleFunc("/groups/{groupId}/messages", messageHandler.Read).Methods(http.MethodGet)
	api.HandleFunc("/groups/{groupId}/messages", messageHandler.Send).Methods(http.MethodPost)
	api.HandleFunc("/groups/{groupId}/files", messageHandler.Upload).Methods(http.MethodPost)
	api.HandleFunc("/messages", messageHandler.Read).Methods(http.MethodGet)
	api.HandleFunc("/messages", messageHandler.Send).Methods(http.MethodPost)
	api.HandleFunc("/files", messageHandler.Upload).Methods(http.MethodPost)

	api.HandleFunc("/ws", wsHandler.Serve).Methods(http.MethodGet)

	return handlers.CORS(
		handlers.AllowedOrigins([]string{deps.AllowedOrigin}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)(r)
}
