package handler

import (
	"encoding/json"
	stderrors "errors"
	"groupchat/errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

type errorBody struct {
	Kind    errors.Kind `json:"kind"`
	Message string      `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorWriter renders a failure as {"kind","message"} with the matching status.
// Internal causes are logged, never sent.
func errorWriter(log *slog.Logger) func(w http.ResponseWriter, r *http.Request, err error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		status := errors.HTTPStatus(err)
		if status == http.StatusInternalServerError {
			log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		}
		writeJSON(w, status, errorBody{Kind: errors.KindOf(err), Message: errors.PublicMessage(err)})
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if stderrors.As(err, &maxBytes) {
			return errors.ErrFileTooLarge
		}
		return errors.Invalid(err)
	}
	return nil
}

// cursor reads the "after" query parameter, zero when absent.
func cursor(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("after")
	if raw == "" {
		return 0, nil
	}
	after, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.Invalid(err)
	}
	return after, nil
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}
