package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/echodm/chat-server/internal/auth"
	"github.com/echodm/chat-server/internal/store"
)

// profileJSON is the public user projection returned by contact endpoints.
type profileJSON struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Color     int    `json:"color"`
	Image     string `json:"image,omitempty"`
}

func toProfileJSON(p store.Profile) profileJSON {
	return profileJSON{
		ID:        p.ID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Color:     p.Color,
		Image:     p.Image,
	}
}

// contactJSON is one DM-list entry: a profile plus last-activity timestamp.
type contactJSON struct {
	profileJSON
	LastMessageTime time.Time `json:"lastMessageTime"`
}

type searchRequest struct {
	SearchTerm string `json:"searchTerm"`
}

// handleSearchContacts returns users matching the search term, excluding the
// caller.
func (api *API) handleSearchContacts(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SearchTerm == "" {
		writeError(w, http.StatusBadRequest, "searchTerm is required")
		return
	}

	profiles, err := api.contacts.Search(r.Context(), auth.UserID(r.Context()), req.SearchTerm)
	if err != nil {
		log.Printf("api: contact search failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]profileJSON, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, toProfileJSON(p))
	}
	writeJSON(w, http.StatusOK, map[string][]profileJSON{"contacts": out})
}

// handleContactsForDMList returns the caller's conversation partners ordered
// by most recent activity.
func (api *API) handleContactsForDMList(w http.ResponseWriter, r *http.Request) {
	summaries, err := api.contacts.Contacts(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		log.Printf("api: contact list failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]contactJSON, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, contactJSON{
			profileJSON:     toProfileJSON(s.Profile),
			LastMessageTime: s.LastMessageTime,
		})
	}
	writeJSON(w, http.StatusOK, map[string][]contactJSON{"contacts": out})
}
