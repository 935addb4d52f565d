// Package dataset reads the MovieLens style movie catalog and rating log.
//
// movies.csv has the header movieId,title,genres with genres separated by
// "|". ratings.csv has userId,movieId,rating[,timestamp]. Any problem with
// either file is reported as a *models.DataLoadError so the caller can stop
// before building anything.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/icco/movierec/models"
)

// noGenres is the MovieLens placeholder for an empty genre list.
const noGenres = "(no genres listed)"

// Dataset is the fully materialized catalog and rating log.
type Dataset struct {
	Movies  []models.Movie
	Ratings []models.Rating
}

// Load reads both files. Either being empty is an error.
func Load(moviesPath, ratingsPath string, logger *slog.Logger) (*Dataset, error) {
	movies, err := LoadMoviesFile(moviesPath)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded the movie dataset", slog.String("path", moviesPath), slog.Int("movies", len(movies)))

	ratings, err := LoadRatingsFile(ratingsPath)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded the ratings dataset", slog.String("path", ratingsPath), slog.Int("ratings", len(ratings)))

	return &Dataset{Movies: movies, Ratings: ratings}, nil
}

// LoadMoviesFile opens path and parses it with ReadMovies.
func LoadMoviesFile(path string) ([]models.Movie, error) {
	// #nosec G304 - path comes from configuration
	f, err := os.Open(path)
	if err != nil {
		return nil, &models.DataLoadError{Source: path, Err: err}
	}
	defer f.Close()

	movies, err := ReadMovies(f)
	if err != nil {
		return nil, withSource(err, path)
	}
	return movies, nil
}

// LoadRatingsFile opens path and parses it with ReadRatings.
func LoadRatingsFile(path string) ([]models.Rating, error) {
	// #nosec G304 - path comes from configuration
	f, err := os.Open(path)
	if err != nil {
		return nil, &models.DataLoadError{Source: path, Err: err}
	}
	defer f.Close()

	ratings, err := ReadRatings(f)
	if err != nil {
		return nil, withSource(err, path)
	}
	return ratings, nil
}

// ReadMovies parses a movie catalog. Rows keep their file order, which is the
// catalog order used to break search ties.
func ReadMovies(r io.Reader) ([]models.Movie, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, headerError("catalog", err)
	}
	cols, err := columns(header, "movieid", "title", "genres")
	if err != nil {
		return nil, &models.DataLoadError{Source: "catalog", Err: err}
	}

	var movies []models.Movie
	seen := make(map[int]struct{})
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &models.DataLoadError{Source: "catalog", Err: err}
		}
		line, _ := cr.FieldPos(0)

		id, err := strconv.Atoi(strings.TrimSpace(row[cols[0]]))
		if err != nil {
			return nil, &models.DataLoadError{Source: "catalog", Reason: fmt.Sprintf("line %d: bad movieId", line), Err: err}
		}
		if _, dup := seen[id]; dup {
			return nil, &models.DataLoadError{Source: "catalog", Reason: fmt.Sprintf("line %d: duplicate movieId %d", line, id)}
		}
		seen[id] = struct{}{}

		m := models.NewMovie(id, row[cols[1]], ParseGenres(row[cols[2]]))
		m.Position = len(movies)
		movies = append(movies, m)
	}

	if len(movies) == 0 {
		return nil, &models.DataLoadError{Source: "catalog", Err: models.ErrEmptyCatalog}
	}
	return movies, nil
}

// ReadRatings parses a rating log.
func ReadRatings(r io.Reader) ([]models.Rating, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, headerError("ratings", err)
	}
	cols, err := columns(header, "userid", "movieid", "rating")
	if err != nil {
		return nil, &models.DataLoadError{Source: "ratings", Err: err}
	}
	tsCol := -1
	if c, err := columns(header, "timestamp"); err == nil {
		tsCol = c[0]
	}

	var ratings []models.Rating
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &models.DataLoadError{Source: "ratings", Err: err}
		}
		line, _ := cr.FieldPos(0)
		if len(row) <= maxIndex(cols) {
			return nil, &models.DataLoadError{Source: "ratings", Reason: fmt.Sprintf("line %d: expected at least %d fields, got %d", line, maxIndex(cols)+1, len(row))}
		}

		user, err := strconv.Atoi(strings.TrimSpace(row[cols[0]]))
		if err != nil {
			return nil, &models.DataLoadError{Source: "ratings", Reason: fmt.Sprintf("line %d: bad userId", line), Err: err}
		}
		movie, err := strconv.Atoi(strings.TrimSpace(row[cols[1]]))
		if err != nil {
			return nil, &models.DataLoadError{Source: "ratings", Reason: fmt.Sprintf("line %d: bad movieId", line), Err: err}
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(row[cols[2]]), 64)
		if err != nil {
			return nil, &models.DataLoadError{Source: "ratings", Reason: fmt.Sprintf("line %d: bad rating", line), Err: err}
		}

		rating := models.Rating{UserID: user, MovieID: movie, Value: value}
		if tsCol >= 0 && tsCol < len(row) && row[tsCol] != "" {
			ts, err := strconv.ParseInt(strings.TrimSpace(row[tsCol]), 10, 64)
			if err != nil {
				return nil, &models.DataLoadError{Source: "ratings", Reason: fmt.Sprintf("line %d: bad timestamp", line), Err: err}
			}
			rating.Timestamp = ts
		}
		ratings = append(ratings, rating)
	}

	if len(ratings) == 0 {
		return nil, &models.DataLoadError{Source: "ratings", Reason: "no ratings"}
	}
	return ratings, nil
}

// ParseGenres splits a "|" separated genre list.
func ParseGenres(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == noGenres {
		return []string{}
	}
	parts := strings.Split(raw, "|")
	genres := make([]string, 0, len(parts))
	for _, g := range parts {
		if g = strings.TrimSpace(g); g != "" {
			genres = append(genres, g)
		}
	}
	return genres
}

// columns finds the index of each wanted column, case-insensitively.
func columns(header []string, want ...string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	out := make([]int, len(want))
	for i, w := range want {
		p, ok := pos[w]
		if !ok {
			return nil, fmt.Errorf("missing column %q", w)
		}
		out[i] = p
	}
	return out, nil
}

func maxIndex(cols []int) int {
	m := 0
	for _, c := range cols {
		if c > m {
			m = c
		}
	}
	return m
}

func headerError(source string, err error) error {
	if errors.Is(err, io.EOF) {
		return &models.DataLoadError{Source: source, Reason: "file is empty"}
	}
	return &models.DataLoadError{Source: source, Reason: "cannot read header", Err: err}
}

// withSource replaces the logical source of a DataLoadError with a file path.
func withSource(err error, path string) error {
	var loadErr *models.DataLoadError
	if errors.As(err, &loadErr) {
		return &models.DataLoadError{Source: path, Reason: loadErr.Reason, Err: loadErr.Err}
	}
	return &models.DataLoadError{Source: path, Err: err}
}
