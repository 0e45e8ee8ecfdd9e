package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/AnshRaj112/bookjournal-backend/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type indexPage struct {
	UserName string
	Entries  []models.Entry
}

type CreateEntryRequest struct {
	Title    string      `json:"title"`
	Author   string      `json:"author"`
	Rating   interface{} `json:"rating"` // "4" or 4
	DateRead string      `json:"dateRead"`
	Comments *string     `json:"comments,omitempty"`
}

type EntryResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Entry   *models.Entry `json:"entry,omitempty"`
}

type ListEntriesResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Entries []models.Entry `json:"entries"`
	Total   int            `json:"total"`
}

// newEntry stamps a submitted entry with a fresh id and the owner's partition and fills
// empty fields with their defaults.
func newEntry(userID, title, author, rating, dateRead string, comments *string) models.Entry {
	if comments != nil && strings.TrimSpace(*comments) == "" {
		comments = nil
	}
	return models.Entry{
		ID:       uuid.New().String(),
		UserID:   userID,
		Title:    strings.TrimSpace(title),
		Author:   strings.TrimSpace(author),
		Rating:   strings.TrimSpace(rating),
		DateRead: strings.TrimSpace(dateRead),
		Comments: comments,
	}.WithDefaults()
}

func ratingString(v interface{}) string {
	switch r := v.(type) {
	case string:
		return r
	case float64:
		return strconv.FormatFloat(r, 'f', -1, 64)
	default:
		return ""
	}
}

func (h *Handler) invalidateReviews(r *http.Request, userID string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(r.Context(), userID); err != nil {
		h.log.Warnw("failed to invalidate cached reviews", "user_uid", userID, "error", err)
	}
}

// Index lists the signed-in user's entries, most recently read first.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	entries, err := h.repo.List(r.Context(), user.ID)
	if err != nil {
		h.logFailure(r, "failed to list entries", err, "user_uid", user.ID)
		status, msg := failure(err)
		h.renderError(w, r, status, msg)
		return
	}
	h.log.Debugw("listed entries", "user_uid", user.ID, "count", len(entries))
	h.render(w, r, http.StatusOK, "index.html", indexPage{UserName: user.Name, Entries: entries})
}

// Add stores the entry posted from the index form and goes back to the list.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "Invalid form")
		return
	}
	user := currentUser(r)

	var comments *string
	if c := r.PostForm.Get("comments"); c != "" {
		comments = &c
	}
	entry := newEntry(user.ID,
		r.PostForm.Get("title"),
		r.PostForm.Get("author"),
		r.PostForm.Get("rating"),
		r.PostForm.Get("dateRead"),
		comments,
	)

	if err := h.repo.Add(r.Context(), entry); err != nil {
		h.logFailure(r, "failed to add entry", err, "user_uid", user.ID)
		status, msg := failure(err)
		h.renderError(w, r, status, msg)
		return
	}
	h.invalidateReviews(r, user.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Delete removes one entry of the signed-in user and goes back to the list. Any userid
// query parameter is ignored; the partition always comes from the session.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id := r.URL.Query().Get("id")
	if id != "" {
		if err := h.repo.Delete(r.Context(), id, user.ID); err != nil {
			h.logFailure(r, "failed to delete entry", err, "user_uid", user.ID, "entry_id", id)
			status, msg := failure(err)
			h.renderError(w, r, status, msg)
			return
		}
		h.invalidateReviews(r, user.ID)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// ListEntries returns the signed-in user's entries as JSON.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	entries, err := h.repo.List(r.Context(), user.ID)
	if err != nil {
		h.logFailure(r, "failed to list entries", err, "user_uid", user.ID)
		status, msg := failure(err)
		writeJSON(w, status, ListEntriesResponse{Success: false, Message: msg, Entries: []models.Entry{}})
		return
	}
	writeJSON(w, http.StatusOK, ListEntriesResponse{Success: true, Entries: entries, Total: len(entries)})
}

// CreateEntry stores one entry from a JSON body.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user := currentUser(r)
	entry := newEntry(user.ID, req.Title, req.Author, ratingString(req.Rating), req.DateRead, req.Comments)

	if err := h.repo.Add(r.Context(), entry); err != nil {
		h.logFailure(r, "failed to add entry", err, "user_uid", user.ID)
		status, msg := failure(err)
		writeJSONError(w, status, msg)
		return
	}
	h.invalidateReviews(r, user.ID)
	writeJSON(w, http.StatusCreated, EntryResponse{Success: true, Message: "Entry added", Entry: &entry})
}

// DeleteEntry removes one entry by id. Deleting an entry that does not exist succeeds.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id := chi.URLParam(r, "id")
	if err := h.repo.Delete(r.Context(), id, user.ID); err != nil {
		h.logFailure(r, "failed to delete entry", err, "user_uid", user.ID, "entry_id", id)
		status, msg := failure(err)
		writeJSONError(w, status, msg)
		return
	}
	h.invalidateReviews(r, user.ID)
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "Entry deleted"})
}
