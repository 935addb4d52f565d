package search

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/icco/movierec/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func catalog() []models.Movie {
	return []models.Movie{
		models.NewMovie(1, "Toy Story (1995)", []string{"Adventure", "Animation"}),
		models.NewMovie(2, "Jumanji (1995)", []string{"Adventure", "Children"}),
		models.NewMovie(3, "Grumpier Old Men (1995)", []string{"Comedy", "Romance"}),
		models.NewMovie(3114, "Toy Story 2 (1999)", []string{"Adventure", "Animation"}),
		models.NewMovie(78499, "Toy Story 3 (2010)", []string{"Adventure", "Animation"}),
		models.NewMovie(6, "Heat (1995)", []string{"Action", "Crime"}),
		models.NewMovie(7, "Sabrina (1995)", []string{"Comedy", "Romance"}),
	}
}

func newIndex(t *testing.T, movies []models.Movie) *TitleIndex {
	t.Helper()
	idx, err := NewTitleIndex(movies, testLogger())
	require.NoError(t, err)
	return idx
}

func TestNewTitleIndex_EmptyCatalog(t *testing.T) {
	idx, err := NewTitleIndex(nil, testLogger())
	require.Error(t, err)
	assert.Nil(t, idx)

	assert.True(t, errors.Is(err, models.ErrEmptyCatalog))
	var loadErr *models.DataLoadError
	assert.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "catalog", loadErr.Source)
}

func TestTerms(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "Heat", []string{"heat"}},
		{"bigrams", "Toy Story 1995", []string{"toy", "story", "1995", "toy story", "story 1995"}},
		{"extra spaces", "  Toy   Story ", []string{"toy", "story", "toy story"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, terms(tt.input))
		})
	}
}

func TestSearch_SelfMatchRanksFirst(t *testing.T) {
	idx := newIndex(t, catalog())

	for _, m := range catalog() {
		t.Run(m.Title, func(t *testing.T) {
			results := idx.Search(m.CleanTitle, DefaultK)
			require.NotEmpty(t, results)
			assert.Equal(t, m.ID, results[0].Movie.ID)
			assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
		})
	}
}

func TestSearch_PunctuationInQuery(t *testing.T) {
	idx := newIndex(t, catalog())

	results := idx.Search("Toy Story (1995)", 3)
	require.Len(t, results, 3)
	assert.Equal(t, 1, results[0].Movie.ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)

	// The sequels share "toy", "story" and "toy story".
	ids := []int{results[1].Movie.ID, results[2].Movie.ID}
	assert.ElementsMatch(t, []int{3114, 78499}, ids)
}

func TestSearch_OrderedNonIncreasing(t *testing.T) {
	idx := newIndex(t, catalog())

	for _, q := range []string{"toy", "story 2", "old men", "1995", "sabrina heat"} {
		t.Run(q, func(t *testing.T) {
			results := idx.Search(q, DefaultK)
			assert.LessOrEqual(t, len(results), DefaultK)
			for i := 1; i < len(results); i++ {
				assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
			}
		})
	}
}

func TestSearch_KLargerThanCatalog(t *testing.T) {
	movies := catalog()
	idx := newIndex(t, movies)

	results := idx.Search("toy story", 100)
	require.Len(t, results, len(movies))
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}
}

func TestSearch_NonPositiveK(t *testing.T) {
	idx := newIndex(t, catalog())
	assert.Empty(t, idx.Search("toy", 0))
	assert.Empty(t, idx.Search("toy", -3))
}

func TestSearch_OutOfVocabulary(t *testing.T) {
	movies := catalog()
	idx := newIndex(t, movies)

	results := idx.Search("zzzz qqqq", 3)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Zero(t, r.Similarity)
		// All ties, so catalog order is kept.
		assert.Equal(t, movies[i].ID, r.Movie.ID)
	}

	results = idx.Search("!!!", 2)
	require.Len(t, results, 2)
	assert.Zero(t, results[0].Similarity)
}

func TestSearch_TiesKeepCatalogOrder(t *testing.T) {
	movies := []models.Movie{
		models.NewMovie(10, "Hamlet (1948)", nil),
		models.NewMovie(11, "Hamlet (1990)", nil),
		models.NewMovie(12, "Hamlet (1996)", nil),
	}
	idx := newIndex(t, movies)

	results := idx.Search("hamlet", 3)
	require.Len(t, results, 3)
	assert.Equal(t, []int{10, 11, 12}, []int{results[0].Movie.ID, results[1].Movie.ID, results[2].Movie.ID})
	assert.InDelta(t, results[0].Similarity, results[2].Similarity, 1e-12)
}

func TestSearch_Deterministic(t *testing.T) {
	idx := newIndex(t, catalog())

	first := idx.Search("toy story 1995", DefaultK)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, idx.Search("toy story 1995", DefaultK))
	}
}

func TestSearch_CaseInsensitive(t *testing.T) {
	idx := newIndex(t, catalog())

	upper := idx.Search("JUMANJI", 1)
	lower := idx.Search("jumanji", 1)
	require.Len(t, upper, 1)
	assert.Equal(t, 2, upper[0].Movie.ID)
	assert.Equal(t, lower, upper)
}

func TestTitleIndex_Accessors(t *testing.T) {
	idx := newIndex(t, catalog())

	assert.Equal(t, 7, idx.Len())
	assert.Positive(t, idx.VocabularySize())

	m, ok := idx.Movie(3114)
	require.True(t, ok)
	assert.Equal(t, "Toy Story 2 (1999)", m.Title)

	_, ok = idx.Movie(999999)
	assert.False(t, ok)
}

func TestCosine(t *testing.T) {
	a := vector{{term: 0, weight: 1}}
	b := vector{{term: 1, weight: 1}}
	c := vector{{term: 0, weight: 3}, {term: 1, weight: 4}}

	assert.Zero(t, cosine(nil, a))
	assert.Zero(t, cosine(a, nil))
	assert.Zero(t, cosine(a, b))
	assert.InDelta(t, 1.0, cosine(a, a), 1e-12)
	assert.InDelta(t, 0.6, cosine(a, c), 1e-12)
	assert.InDelta(t, 0.8, cosine(b, c), 1e-12)
}
