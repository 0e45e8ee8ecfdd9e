package handlers

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/AnshRaj112/bookjournal-backend/internal/review"
)

var yearPattern = regexp.MustCompile(`^[0-9]{4}$`)

type reviewPage struct {
	Year       string
	Paragraphs []string
	Empty      bool
}

type ReviewResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Year    string `json:"year,omitempty"`
	Review  string `json:"review"`
	Books   int    `json:"books,omitempty"`
	Cached  bool   `json:"cached"`
}

type reviewResult struct {
	text   string
	books  int
	cached bool
}

// composeReview returns the user's review for year ("" for all time), served from the
// cache when possible. A user with no matching entries gets an empty result and no
// completion call is made.
func (h *Handler) composeReview(ctx context.Context, userID, year string) (reviewResult, error) {
	cacheable := h.cache != nil
	var gen int64
	if cacheable {
		text, ok, err := h.cache.Get(ctx, userID, year)
		if err != nil {
			h.log.Warnw("review cache read failed", "user_uid", userID, "error", err)
		} else if ok {
			return reviewResult{text: text, cached: true}, nil
		}
		// Read before List so an Add or Delete from here on makes the result uncacheable.
		if gen, err = h.cache.Generation(ctx, userID); err != nil {
			h.log.Warnw("review cache generation read failed", "user_uid", userID, "error", err)
			cacheable = false
		}
	}

	entries, err := h.repo.List(ctx, userID)
	if err != nil {
		return reviewResult{}, err
	}
	entries = review.FilterYear(entries, year)
	if len(entries) == 0 {
		return reviewResult{}, nil
	}

	text, err := h.composer.Compose(ctx, entries)
	if err != nil {
		return reviewResult{}, err
	}

	if cacheable {
		if err := h.cache.Set(ctx, userID, year, text, gen); err != nil {
			h.log.Warnw("review cache write failed", "user_uid", userID, "error", err)
		}
	}
	return reviewResult{text: text, books: len(entries)}, nil
}

func paragraphs(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Review renders the AI-written review of the signed-in user's reading. ?year=YYYY limits
// it to the books read that year.
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	year := r.URL.Query().Get("year")
	if year != "" && !yearPattern.MatchString(year) {
		h.renderError(w, r, http.StatusBadRequest, "year must be four digits")
		return
	}
	user := currentUser(r)

	res, err := h.composeReview(r.Context(), user.ID, year)
	if err != nil {
		h.logFailure(r, "failed to compose review", err, "user_uid", user.ID, "year", year)
		status, msg := failure(err)
		h.renderError(w, r, status, msg)
		return
	}
	h.render(w, r, http.StatusOK, "review.html", reviewPage{
		Year:       year,
		Paragraphs: paragraphs(res.text),
		Empty:      res.text == "",
	})
}

// ReviewAPI is Review as JSON.
func (h *Handler) ReviewAPI(w http.ResponseWriter, r *http.Request) {
	year := r.URL.Query().Get("year")
	if year != "" && !yearPattern.MatchString(year) {
		writeJSONError(w, http.StatusBadRequest, "year must be four digits")
		return
	}
	user := currentUser(r)

	res, err := h.composeReview(r.Context(), user.ID, year)
	if err != nil {
		h.logFailure(r, "failed to compose review", err, "user_uid", user.ID, "year", year)
		status, msg := failure(err)
		writeJSONError(w, status, msg)
		return
	}

	resp := ReviewResponse{Success: true, Year: year, Review: res.text, Books: res.books, Cached: res.cached}
	if res.text == "" {
		resp.Message = "No books to review yet"
	}
	writeJSON(w, http.StatusOK, resp)
}
