package models

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCatalog is wrapped by the DataLoadError returned when a title
	// index is built from an empty catalog.
	ErrEmptyCatalog = errors.New("empty catalog")

	// ErrNoSimilarUsers matches any *NoSimilarUsersError.
	ErrNoSimilarUsers = errors.New("no similar users")

	// ErrMovieNotFound is returned for movie ids absent from the catalog.
	ErrMovieNotFound = errors.New("movie not found")
)

// DataLoadError reports missing or malformed catalog or rating data. It is
// returned at construction time and is always fatal.
type DataLoadError struct {
	Source string // "catalog", "ratings", or a file path
	Reason string
	Err    error
}

func (e *DataLoadError) Error() string {
	msg := fmt.Sprintf("failed to load %s", e.Source)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}

// NoSimilarUsersError is returned when nobody rated the reference movie above
// the like threshold. Callers should report that there is not enough data
// for this movie.
type NoSimilarUsersError struct {
	MovieID   int
	Threshold float64
}

func (e *NoSimilarUsersError) Error() string {
	return fmt.Sprintf("no users rated movie %d above %.1f", e.MovieID, e.Threshold)
}

// Is lets errors.Is(err, ErrNoSimilarUsers) match.
func (e *NoSimilarUsersError) Is(target error) bool {
	return target == ErrNoSimilarUsers
}
