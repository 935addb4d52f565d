// Package search implements title search over the movie catalog using TF-IDF
// weighted unigram and bigram vectors and cosine similarity.
package search

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/icco/movierec/models"
)

// DefaultK is the number of results returned when the caller has no preference.
const DefaultK = 5

// entry is one non-zero component of a sparse vector.
type entry struct {
	term   int
	weight float64
}

// vector is a sparse, L2-normalized TF-IDF vector sorted by term index.
type vector []entry

// TitleIndex is an immutable TF-IDF index over catalog titles. The vocabulary
// is fixed at construction; query terms outside it contribute nothing.
//
// A TitleIndex is safe for concurrent use once NewTitleIndex returns.
type TitleIndex struct {
	movies []models.Movie
	vocab  map[string]int
	idf    []float64
	docs   []vector
	byID   map[int]int
	logger *slog.Logger
}

// NewTitleIndex builds the index. It fails with a *models.DataLoadError
// wrapping models.ErrEmptyCatalog when movies is empty.
func NewTitleIndex(movies []models.Movie, logger *slog.Logger) (*TitleIndex, error) {
	if len(movies) == 0 {
		return nil, &models.DataLoadError{Source: "catalog", Reason: "cannot build title index", Err: models.ErrEmptyCatalog}
	}
	if logger == nil {
		logger = slog.Default()
	}

	idx := &TitleIndex{
		movies: movies,
		vocab:  make(map[string]int),
		docs:   make([]vector, len(movies)),
		byID:   make(map[int]int, len(movies)),
		logger: logger,
	}

	// Document frequency per term, counted once per title.
	counts := make([]map[int]int, len(movies))
	var df []int
	for i, m := range movies {
		if _, dup := idx.byID[m.ID]; !dup {
			idx.byID[m.ID] = i
		}
		clean := m.CleanTitle
		if clean == "" {
			clean = models.CleanTitle(m.Title)
		}
		tf := make(map[int]int)
		for _, term := range terms(clean) {
			id, ok := idx.vocab[term]
			if !ok {
				id = len(idx.vocab)
				idx.vocab[term] = id
				df = append(df, 0)
			}
			if tf[id] == 0 {
				df[id]++
			}
			tf[id]++
		}
		counts[i] = tf
	}

	n := float64(len(movies))
	idx.idf = make([]float64, len(df))
	for id, d := range df {
		idx.idf[id] = math.Log((1+n)/(1+float64(d))) + 1
	}

	for i, tf := range counts {
		idx.docs[i] = idx.weigh(tf)
	}

	logger.Info("Built title index",
		slog.Int("movies", len(movies)),
		slog.Int("vocabulary", len(idx.vocab)))

	return idx, nil
}

// Search returns the k catalog movies whose titles are closest to query,
// highest similarity first. Ties keep catalog order. If k exceeds the catalog
// size the whole catalog is returned.
func (idx *TitleIndex) Search(query string, k int) []models.SearchResult {
	if k <= 0 {
		return nil
	}
	idx.logger.Debug("Searching titles", slog.String("query", query), slog.Int("k", k))

	q := idx.vectorize(query)

	type scored struct {
		pos int
		sim float64
	}
	all := make([]scored, len(idx.docs))
	for i, d := range idx.docs {
		all[i] = scored{pos: i, sim: cosine(q, d)}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].sim > all[j].sim
	})

	if k > len(all) {
		k = len(all)
	}
	results := make([]models.SearchResult, k)
	for i := 0; i < k; i++ {
		results[i] = models.SearchResult{
			Movie:      idx.movies[all[i].pos],
			Similarity: all[i].sim,
		}
	}

	idx.logger.Debug("Search finished", slog.String("query", query), slog.Int("results", len(results)))
	return results
}

// vectorize projects text into the index vocabulary. The text is cleaned the
// same way catalog titles are.
func (idx *TitleIndex) vectorize(text string) vector {
	tf := make(map[int]int)
	for _, term := range terms(models.CleanTitle(text)) {
		if id, ok := idx.vocab[term]; ok {
			tf[id]++
		}
	}
	return idx.weigh(tf)
}

// Len returns the number of indexed movies.
func (idx *TitleIndex) Len() int {
	return len(idx.movies)
}

// VocabularySize returns the number of distinct unigrams and bigrams.
func (idx *TitleIndex) VocabularySize() int {
	return len(idx.vocab)
}

// Movie returns the catalog entry with the given id.
func (idx *TitleIndex) Movie(id int) (models.Movie, bool) {
	i, ok := idx.byID[id]
	if !ok {
		return models.Movie{}, false
	}
	return idx.movies[i], true
}

// weigh turns raw term counts into a normalized sparse TF-IDF vector.
func (idx *TitleIndex) weigh(tf map[int]int) vector {
	if len(tf) == 0 {
		return nil
	}
	v := make(vector, 0, len(tf))
	for id, c := range tf {
		v = append(v, entry{term: id, weight: float64(c) * idx.idf[id]})
	}
	// Sorted before summing so equal inputs give bit-identical norms.
	sort.Slice(v, func(i, j int) bool { return v[i].term < v[j].term })
	var norm float64
	for _, e := range v {
		norm += e.weight * e.weight
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i].weight /= norm
	}
	return v
}

// terms returns the lower-cased unigrams and bigrams of a cleaned title.
func terms(clean string) []string {
	tokens := strings.Fields(strings.ToLower(clean))
	if len(tokens) == 0 {
		return nil
	}
	out := make([]string, 0, 2*len(tokens)-1)
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}

// cosine computes the cosine similarity of two sparse vectors. Zero vectors
// have similarity 0 with everything.
func cosine(a, b vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, na, nb float64
	for _, e := range a {
		na += e.weight * e.weight
	}
	for _, e := range b {
		nb += e.weight * e.weight
	}
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].term == b[j].term:
			dot += a[i].weight * b[j].weight
			i++
			j++
		case a[i].term < b[j].term:
			i++
		default:
			j++
		}
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
