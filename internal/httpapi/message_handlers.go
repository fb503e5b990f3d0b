package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/echodm/chat-server/internal/auth"
	"github.com/echodm/chat-server/internal/store"
)

// maxUploadBytes caps attachment size at 32 MiB.
const maxUploadBytes = 32 << 20

// messageJSON is an archived message as returned by the history endpoint.
type messageJSON struct {
	ID          string    `json:"id"`
	Sender      string    `json:"sender"`
	Recipient   string    `json:"recipient"`
	MessageType string    `json:"messageType"`
	Content     string    `json:"content,omitempty"`
	FileURL     string    `json:"fileUrl,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type getMessagesRequest struct {
	ID string `json:"id"` // the conversation partner
}

// handleGetMessages returns the full conversation between the caller and the
// given partner, oldest first.
func (api *API) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	var req getMessagesRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !store.ValidID(req.ID) {
		writeError(w, http.StatusBadRequest, "valid partner id is required")
		return
	}

	viewer := auth.UserID(r.Context())
	msgs, err := api.messages.FindConversation(r.Context(), viewer, req.ID)
	if err != nil {
		log.Printf("api: get messages failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]messageJSON, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageJSON{
			ID:          m.ID,
			Sender:      m.Sender,
			Recipient:   m.Recipient,
			MessageType: m.MessageType,
			Content:     m.Content,
			FileURL:     m.FileURL,
			Timestamp:   m.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, map[string][]messageJSON{"messages": out})
}

// handleUploadFile stores a message attachment (multipart field "file") and
// returns the public path the client then references in a file message.
func (api *API) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	filePath, err := api.uploads.SaveAttachment(header.Filename, file)
	if err != nil {
		log.Printf("api: save attachment failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Printf("api: upload file=%s user=%s", filePath, auth.UserID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"filePath": filePath})
}
