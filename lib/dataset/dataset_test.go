package dataset

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/icco/movierec/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const moviesCSV = `movieId,title,genres
1,Toy Story (1995),Adventure|Animation|Children|Comedy|Fantasy
2,Jumanji (1995),Adventure|Children|Fantasy
11,"American President, The (1995)",Comedy|Drama|Romance
182715,Annihilation (2018),(no genres listed)
`

const ratingsCSV = `userId,movieId,rating,timestamp
1,1,4.0,964982703
1,3,4.0,964981247
2,11,5.0,964982224
3,2,0.5,
`

func TestReadMovies(t *testing.T) {
	movies, err := ReadMovies(strings.NewReader(moviesCSV))
	require.NoError(t, err)
	require.Len(t, movies, 4)

	assert.Equal(t, 1, movies[0].ID)
	assert.Equal(t, "Toy Story (1995)", movies[0].Title)
	assert.Equal(t, "Toy Story 1995", movies[0].CleanTitle)
	assert.Equal(t, []string{"Adventure", "Animation", "Children", "Comedy", "Fantasy"}, movies[0].Genres)

	assert.Equal(t, "American President, The (1995)", movies[2].Title)
	assert.Equal(t, "American President The 1995", movies[2].CleanTitle)
	assert.Empty(t, movies[3].Genres)

	for i, m := range movies {
		assert.Equal(t, i, m.Position)
	}
}

func TestReadMovies_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		isErr error
	}{
		{"empty file", "", nil},
		{"header only", "movieId,title,genres\n", models.ErrEmptyCatalog},
		{"missing column", "movieId,title\n1,Heat (1995)\n", nil},
		{"bad id", "movieId,title,genres\nx,Heat (1995),Action\n", nil},
		{"duplicate id", "movieId,title,genres\n1,Heat (1995),Action\n1,Heat (1995),Action\n", nil},
		{"short row", "movieId,title,genres\n1,Heat (1995)\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			movies, err := ReadMovies(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Nil(t, movies)

			var loadErr *models.DataLoadError
			assert.True(t, errors.As(err, &loadErr))
			if tt.isErr != nil {
				assert.ErrorIs(t, err, tt.isErr)
			}
		})
	}
}

func TestReadRatings(t *testing.T) {
	ratings, err := ReadRatings(strings.NewReader(ratingsCSV))
	require.NoError(t, err)
	require.Len(t, ratings, 4)

	assert.Equal(t, models.Rating{UserID: 1, MovieID: 1, Value: 4.0, Timestamp: 964982703}, ratings[0])
	assert.Equal(t, models.Rating{UserID: 3, MovieID: 2, Value: 0.5}, ratings[3])
}

func TestReadRatings_WithoutTimestamp(t *testing.T) {
	ratings, err := ReadRatings(strings.NewReader("userId,movieId,rating\n7,1,3.5\n"))
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, 3.5, ratings[0].Value)
	assert.Zero(t, ratings[0].Timestamp)
}

func TestReadRatings_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty file", ""},
		{"header only", "userId,movieId,rating,timestamp\n"},
		{"missing rating column", "userId,movieId\n1,1\n"},
		{"bad user", "userId,movieId,rating\nu1,1,4.0\n"},
		{"bad movie", "userId,movieId,rating\n1,m1,4.0\n"},
		{"bad rating", "userId,movieId,rating\n1,1,great\n"},
		{"bad timestamp", "userId,movieId,rating,timestamp\n1,1,4.0,yesterday\n"},
		{"short row", "userId,movieId,rating\n1,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratings, err := ReadRatings(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Nil(t, ratings)

			var loadErr *models.DataLoadError
			assert.True(t, errors.As(err, &loadErr))
		})
	}
}

func TestParseGenres(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", []string{}},
		{"(no genres listed)", []string{}},
		{"Drama", []string{"Drama"}},
		{"Action|Crime|Thriller", []string{"Action", "Crime", "Thriller"}},
		{"Action||Crime ", []string{"Action", "Crime"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseGenres(tt.input))
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	moviesPath := filepath.Join(dir, "movies.csv")
	ratingsPath := filepath.Join(dir, "ratings.csv")
	require.NoError(t, os.WriteFile(moviesPath, []byte(moviesCSV), 0o600))
	require.NoError(t, os.WriteFile(ratingsPath, []byte(ratingsCSV), 0o600))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ds, err := Load(moviesPath, ratingsPath, logger)
	require.NoError(t, err)
	assert.Len(t, ds.Movies, 4)
	assert.Len(t, ds.Ratings, 4)

	_, err = Load(filepath.Join(dir, "missing.csv"), ratingsPath, logger)
	var loadErr *models.DataLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, filepath.Join(dir, "missing.csv"), loadErr.Source)
	assert.ErrorIs(t, err, os.ErrNotExist)

	badRatings := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(badRatings, []byte("userId,movieId,rating\n1,1,x\n"), 0o600))
	_, err = Load(moviesPath, badRatings, logger)
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, badRatings, loadErr.Source)
	assert.Contains(t, loadErr.Reason, "bad rating")
}
