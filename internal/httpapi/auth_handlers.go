package httpapi

import (
	"log"
	"net/http"

	"github.com/echodm/chat-server/internal/auth"
	"github.com/echodm/chat-server/internal/ratelimit"
	"github.com/echodm/chat-server/internal/store"
)

// userJSON is the account representation returned by the auth endpoints.
type userJSON struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	ProfileSetup bool   `json:"profileSetup"`
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	Image        string `json:"image,omitempty"`
	Color        int    `json:"color"`
}

func toUserJSON(u *store.User) userJSON {
	return userJSON{
		ID:           u.ID,
		Email:        u.Email,
		ProfileSetup: u.ProfileSetup,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Image:        u.Image,
		Color:        u.Color,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleSignup creates an account from email and password, signs the caller
// in immediately, and returns the new user.
func (api *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx := r.Context()

	if _, err := api.users.FindByEmail(ctx, req.Email); err == nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	} else if err != store.ErrNotFound {
		log.Printf("api: signup lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("api: password hash failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := api.users.Create(ctx, &store.User{Email: req.Email, Password: hash})
	if err != nil {
		log.Printf("api: create user failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := api.auth.Mint(user.ID, user.Email)
	if err != nil {
		log.Printf("api: mint token failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	api.auth.SetCookie(w, token)

	log.Printf("api: signup user=%s", user.ID)
	writeJSON(w, http.StatusCreated, map[string]userJSON{"user": toUserJSON(user)})
}

// handleLogin verifies credentials and sets the session cookie. Attempts are
// throttled per client IP.
func (api *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !api.limiter.Allow(r.Context(), clientIP(r), ratelimit.RuleLogin) {
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var req credentialsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := api.users.FindByEmail(r.Context(), req.Email)
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Printf("api: login lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := auth.ComparePassword(user.Password, req.Password); err != nil {
		writeError(w, http.StatusBadRequest, "incorrect password")
		return
	}

	token, err := api.auth.Mint(user.ID, user.Email)
	if err != nil {
		log.Printf("api: mint token failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	api.auth.SetCookie(w, token)

	log.Printf("api: login user=%s", user.ID)
	writeJSON(w, http.StatusOK, map[string]userJSON{"user": toUserJSON(user)})
}

// handleLogout clears the session cookie.
func (api *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	api.auth.ClearCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logout successful"})
}

// handleUserInfo returns the authenticated user's account.
func (api *API) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	user, err := api.users.FindByID(r.Context(), auth.UserID(r.Context()))
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Printf("api: userinfo lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(user))
}

type updateProfileRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Color     int    `json:"color"`
}

// handleUpdateProfile sets the display name and color, marking the profile
// as set up.
func (api *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FirstName == "" || req.LastName == "" {
		writeError(w, http.StatusBadRequest, "firstName and lastName are required")
		return
	}

	user, err := api.users.UpdateProfile(r.Context(), auth.UserID(r.Context()), req.FirstName, req.LastName, req.Color)
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Printf("api: update profile failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(user))
}

// handleAddProfileImage stores an uploaded profile image (multipart field
// "profile-image") and records its public path on the account. A previous
// image file, if any, is removed from disk.
func (api *API) handleAddProfileImage(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("profile-image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "profile-image file is required")
		return
	}
	defer file.Close()

	userID := auth.UserID(r.Context())

	current, err := api.users.FindByID(r.Context(), userID)
	if err != nil {
		log.Printf("api: profile image lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	image, err := api.uploads.SaveProfileImage(header.Filename, file)
	if err != nil {
		log.Printf("api: save profile image failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := api.users.SetImage(r.Context(), userID, image)
	if err != nil {
		log.Printf("api: set image failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if current.Image != "" {
		if err := api.uploads.Remove(current.Image); err != nil {
			log.Printf("api: remove old profile image: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"image": user.Image})
}

// handleRemoveProfileImage deletes the user's profile image from disk and
// clears it on the account.
func (api *API) handleRemoveProfileImage(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	user, err := api.users.FindByID(r.Context(), userID)
	if err == store.ErrNotFound {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Printf("api: remove image lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if user.Image != "" {
		if err := api.uploads.Remove(user.Image); err != nil {
			log.Printf("api: remove profile image file: %v", err)
		}
	}

	if _, err := api.users.SetImage(r.Context(), userID, ""); err != nil {
		log.Printf("api: clear image failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "profile image removed"})
}
