// Package httpapi exposes the REST surface of the DM server: account
// signup/login, profile management, contact search, the contact list for the
// DM sidebar, conversation history, and file uploads. Real-time delivery is
// handled separately by the WebSocket gateway.
package httpapi

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/echodm/chat-server/internal/auth"
	"github.com/echodm/chat-server/internal/contacts"
	"github.com/echodm/chat-server/internal/files"
	"github.com/echodm/chat-server/internal/metrics"
	"github.com/echodm/chat-server/internal/ratelimit"
	"github.com/echodm/chat-server/internal/store"
)

// API bundles the dependencies of the REST handlers.
type API struct {
	auth     *auth.Authenticator
	users    store.UserStore
	messages store.MessageStore
	contacts *contacts.Aggregator
	uploads  *files.Storage
	limiter  *ratelimit.Limiter // may be nil
}

// New creates the API. limiter may be nil to disable login throttling.
func New(a *auth.Authenticator, users store.UserStore, messages store.MessageStore, agg *contacts.Aggregator, uploads *files.Storage, limiter *ratelimit.Limiter) *API {
	return &API{
		auth:     a,
		users:    users,
		messages: messages,
		contacts: agg,
		uploads:  uploads,
		limiter:  limiter,
	}
}

// Router builds the chi router. allowedOrigins lists the browser origins
// permitted to send credentialed requests; empty allows none.
func (api *API) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", api.handleSignup)
		r.Post("/login", api.handleLogin)
		r.Post("/logout", api.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(api.auth.RequireAuth)
			r.Get("/userinfo", api.handleUserInfo)
			r.Post("/update-profile", api.handleUpdateProfile)
			r.Post("/add-profile-image", api.handleAddProfileImage)
			r.Delete("/remove-profile-image", api.handleRemoveProfileImage)
		})
	})

	r.Route("/api/contacts", func(r chi.Router) {
		r.Use(api.auth.RequireAuth)
		r.Post("/search", api.handleSearchContacts)
		r.Get("/get-contacts-for-dm", api.handleContactsForDMList)
	})

	r.Route("/api/messages", func(r chi.Router) {
		r.Use(api.auth.RequireAuth)
		r.Post("/get-messages", api.handleGetMessages)
		r.Post("/upload-file", api.handleUploadFile)
	})

	// Uploaded attachments and profile images are served statically.
	uploadsFS := http.StripPrefix("/uploads/", http.FileServer(http.Dir(api.uploads.Root())))
	r.Get("/uploads/*", uploadsFS.ServeHTTP)

	r.Handle("/metrics", metrics.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

// writeError sends a JSON error body {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// readJSON decodes the request body into dst.
func readJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// clientIP extracts the client address for rate limiting. RealIP middleware
// has already rewritten RemoteAddr when behind a proxy.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
