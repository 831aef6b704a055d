package handler

import (
	stderrors "errors"
	"groupchat/auth"
	"groupchat/domain"
	"groupchat/errors"
	"groupchat/services"
	"net/http"
)

type MessageHandler struct {
	chatService   services.IChatService
	fail          func(http.ResponseWriter, *http.Request, error)
	maxUploadSize int64
}

func NewMessageHandler(chatService services.IChatService, fail func(http.ResponseWriter, *http.Request, error), maxUploadSize int64) *MessageHandler {
	return &MessageHandler{chatService: chatService, fail: fail, maxUploadSize: maxUploadSize}
}

type sendBody struct {
	Message string `json:"message"`
}

// groupID is empty on the /messages routes, which is the global log.
func groupID(r *http.Request) domain.GroupID {
	return domain.GroupID(pathVar(r, "groupId"))
}

func (m *MessageHandler) Read(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFrom(r.Context())
	after, err := cursor(r)
	if err != nil {
		m.fail(w, r, err)
		return
	}
	messages, err := m.chatService.Read(r.Context(), domain.ReadMessagesCommand{
		GroupID: groupID(r),
		Reader:  caller,
		AfterID: after,
	})
	if err != nil {
		m.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (m *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFrom(r.Context())
	var body sendBody
	if err := decodeJSON(r, &body); err != nil {
		m.fail(w, r, err)
		return
	}
	view, err := m.chatService.Send(r.Context(), domain.SendMessageCommand{
		GroupID: groupID(r),
		Sender:  caller,
		Body:    body.Message,
	})
	if err != nil {
		m.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// Upload takes a multipart "file" field, stores it and posts its URL.
func (m *MessageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFrom(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, m.maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if stderrors.As(err, &maxBytes) {
			m.fail(w, r, errors.ErrFileTooLarge)
			return
		}
		m.fail(w, r, errors.Invalid(err))
		return
	}
	defer file.Close()

	view, err := m.chatService.SendFile(r.Context(), caller, groupID(r), header.Filename, file)
	if err != nil {
		m.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}
