package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/icco/movierec/handlers/templates"
	"github.com/icco/movierec/lib/recommend"
	"github.com/icco/movierec/lib/recommender"
	"github.com/icco/movierec/lib/validation"
	"github.com/icco/movierec/models"
)

const defaultHistoryLimit = 20

// insufficientData is shown when the reference movie has no qualifying raters.
const insufficientData = "insufficient data for this movie"

type errorData struct {
	Message string
}

func render(w http.ResponseWriter, status int, page string, data any) {
	tmpl, err := templates.ParseTemplates("base.html", page)
	if err != nil {
		slog.Error("Failed to parse template", slog.String("page", page), slog.Any("error", err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		slog.Error("Failed to execute template", slog.String("page", page), slog.Any("error", err))
	}
}

func renderError(w http.ResponseWriter, message string, status int) {
	render(w, status, "error.html", errorData{Message: message})
}

// writeJSON encodes v before writing the header so an encoding failure
// becomes a 500 rather than an empty success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode response", slog.Any("error", err))
		validation.WriteError(w, errors.New("failed to encode response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Error("Failed to write response", slog.Any("error", err))
	}
}

// wantsJSON is true for ?format=json or an Accept header asking for JSON.
func wantsJSON(req *http.Request) bool {
	if f := req.URL.Query().Get("format"); f != "" {
		return f == "json"
	}
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// statusFor maps service errors onto HTTP statuses and user-facing messages.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, validation.ErrInvalid):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrNoSimilarUsers):
		return http.StatusNotFound, insufficientData
	case errors.Is(err, models.ErrMovieNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, recommender.ErrNoHistory):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, "Something went wrong. Please try again later."
	}
}

func fail(w http.ResponseWriter, req *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", slog.String("path", req.URL.Path), slog.Any("error", err))
	} else {
		slog.Debug("Request rejected", slog.String("path", req.URL.Path), slog.Any("error", err))
	}

	if wantsJSON(req) {
		validation.WriteError(w, errors.New(msg), status)
		return
	}
	renderError(w, msg, status)
}

// parseOptions reads threshold, fraction and k. Absent values stay zero and
// are filled from the service defaults.
func parseOptions(req *http.Request) (recommend.Options, error) {
	q := req.URL.Query()
	var opts recommend.Options

	threshold, err := validation.FloatParam(q, "threshold", 0)
	if err != nil {
		return opts, err
	}
	if q.Has("threshold") {
		if err := validation.ValidateThreshold(threshold); err != nil {
			return opts, err
		}
	}

	fraction, err := validation.FloatParam(q, "fraction", 0)
	if err != nil {
		return opts, err
	}
	if q.Has("fraction") {
		if err := validation.ValidateFraction(fraction); err != nil {
			return opts, err
		}
	}

	k, err := validation.IntParam(q, "k", 0)
	if err != nil {
		return opts, err
	}
	if q.Has("k") {
		if err := validation.ValidateK(k); err != nil {
			return opts, err
		}
	}

	return recommend.Options{LikeThreshold: threshold, SimilarFraction: fraction, TopK: k}, nil
}

func HandleHome(svc *recommender.Recommender) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		render(w, http.StatusOK, "home.html", struct {
			Movies   int
			Defaults recommend.Options
		}{Movies: svc.MovieCount(), Defaults: svc.Defaults()})
	}
}

type searchData struct {
	Query   string                `json:"query"`
	Results []models.SearchResult `json:"results"`
}

func HandleSearch(svc *recommender.Recommender) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		query, err := validation.ValidateQuery(req.URL.Query().Get("q"))
		if err != nil {
			fail(w, req, err)
			return
		}
		k, err := validation.IntParam(req.URL.Query(), "k", svc.SearchK())
		if err == nil {
			err = validation.ValidateK(k)
		}
		if err != nil {
			fail(w, req, err)
			return
		}

		data := searchData{Query: query, Results: svc.Search(query, k)}
		if wantsJSON(req) {
			writeJSON(w, http.StatusOK, data)
			return
		}
		render(w, http.StatusOK, "search.html", data)
	}
}

type similarData struct {
	Movie   models.Movie         `json:"movie"`
	Options recommend.Options    `json:"options"`
	Movies  []models.ScoredMovie `json:"movies"`
}

func HandleSimilar(svc *recommender.Recommender) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(req, "id"))
		if err != nil || id < 0 {
			fail(w, req, validation.Invalidf("movie id must be a non-negative integer"))
			return
		}
		opts, err := parseOptions(req)
		if err != nil {
			fail(w, req, err)
			return
		}

		movie, err := svc.Movie(id)
		if err != nil {
			fail(w, req, err)
			return
		}
		recs, err := svc.Similar(req.Context(), id, opts)
		if err != nil {
			fail(w, req, err)
			return
		}

		data := similarData{Movie: movie, Options: svc.ResolveOptions(opts), Movies: recs}
		if wantsJSON(req) {
			writeJSON(w, http.StatusOK, data)
			return
		}
		render(w, http.StatusOK, "similar.html", data)
	}
}

func HandleRecommend(svc *recommender.Recommender) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		query, err := validation.ValidateQuery(req.URL.Query().Get("q"))
		if err != nil {
			fail(w, req, err)
			return
		}
		opts, err := parseOptions(req)
		if err != nil {
			fail(w, req, err)
			return
		}

		res, err := svc.Recommend(req.Context(), query, opts)
		if err != nil {
			fail(w, req, err)
			return
		}
		if wantsJSON(req) {
			writeJSON(w, http.StatusOK, res)
			return
		}
		render(w, http.StatusOK, "recommend.html", res)
	}
}

func HandleHistory(svc *recommender.Recommender) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		limit, err := validation.IntParam(req.URL.Query(), "limit", defaultHistoryLimit)
		if err == nil {
			err = validation.ValidateK(limit)
		}
		if err != nil {
			fail(w, req, err)
			return
		}

		recs, err := svc.History(req.Context(), limit)
		if err != nil {
			fail(w, req, err)
			return
		}
		if wantsJSON(req) {
			writeJSON(w, http.StatusOK, recs)
			return
		}
		render(w, http.StatusOK, "history.html", struct{ Recommendations []models.Recommendation }{recs})
	}
}

func HandleStats(svc *recommender.Recommender) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		stats, err := svc.Stats(req.Context())
		if err != nil {
			fail(w, req, err)
			return
		}
		if wantsJSON(req) {
			writeJSON(w, http.StatusOK, stats)
			return
		}
		render(w, http.StatusOK, "stats.html", stats)
	}
}
