// Package recommend ranks movies that are liked disproportionately often by
// users who also liked a reference movie.
//
// For a reference movie the "similar users" are those who rated it above the
// like threshold. For every movie m those users liked, similarRatio(m) is the
// share of similar users who liked m. Movies at or below SimilarFraction are
// dropped. allRatio(m) is the share of the baseline population who liked m,
// where the baseline is every user who liked at least one retained movie.
// The score is similarRatio / allRatio.
//
// The reference movie is not removed from its own results. Every similar user
// liked it and nobody else did, so its score is |baseline| / |similar users|,
// the highest any movie can reach. It always ranks first or ties for first.
package recommend

import (
	"log/slog"
	"sort"

	"github.com/icco/movierec/models"
)

const (
	DefaultLikeThreshold   = 4.0
	DefaultSimilarFraction = 0.10
	DefaultTopK            = 5
)

// Options tunes a single Recommend call. Zero fields take the defaults, so a
// SimilarFraction of exactly zero cannot be expressed; callers validate it is
// in (0, 1) and use a tiny positive value to keep every candidate.
type Options struct {
	LikeThreshold   float64 `json:"like_threshold"`
	SimilarFraction float64 `json:"similar_fraction"`
	TopK            int     `json:"top_k"`
}

// DefaultOptions returns the thresholds the recommender was tuned with.
func DefaultOptions() Options {
	return Options{
		LikeThreshold:   DefaultLikeThreshold,
		SimilarFraction: DefaultSimilarFraction,
		TopK:            DefaultTopK,
	}
}

func (o Options) withDefaults() Options {
	if o.LikeThreshold == 0 {
		o.LikeThreshold = DefaultLikeThreshold
	}
	if o.SimilarFraction == 0 {
		o.SimilarFraction = DefaultSimilarFraction
	}
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	return o
}

// rated is one side of a rating, keyed by the other side in the index maps.
type rated struct {
	id    int
	value float64
}

// candidate carries the counts behind a score so ranking does not depend on
// float rounding.
type candidate struct {
	models.ScoredMovie
	similar int // similar users who liked the movie
	all     int // baseline users who liked the movie
}

// compare orders two candidates by score. Within one call every score is
// (similar/n) / (all/p) with the same n and p, so comparing similar/all by
// cross multiplication is exact.
func (c candidate) compare(o candidate) int {
	l, r := c.similar*o.all, o.similar*c.all
	switch {
	case l > r:
		return 1
	case l < r:
		return -1
	}
	return 0
}

// CoRatingRecommender holds the rating history grouped by movie and by user.
// It is read-only after New and safe for concurrent use.
type CoRatingRecommender struct {
	byMovie map[int][]rated // movie -> (user, rating)
	byUser  map[int][]rated // user -> (movie, rating)
	movies  map[int]models.Movie
	ratings int
	logger  *slog.Logger
}

// New groups ratings for fast lookup. The catalog is only used to attach
// titles and genres to results. An empty rating set is a *models.DataLoadError.
func New(movies []models.Movie, ratings []models.Rating, logger *slog.Logger) (*CoRatingRecommender, error) {
	if len(ratings) == 0 {
		return nil, &models.DataLoadError{Source: "ratings", Reason: "no ratings to recommend from"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &CoRatingRecommender{
		byMovie: make(map[int][]rated),
		byUser:  make(map[int][]rated),
		movies:  make(map[int]models.Movie, len(movies)),
		ratings: len(ratings),
		logger:  logger,
	}
	for _, m := range movies {
		if _, ok := r.movies[m.ID]; !ok {
			r.movies[m.ID] = m
		}
	}
	for _, rt := range ratings {
		r.byMovie[rt.MovieID] = append(r.byMovie[rt.MovieID], rated{id: rt.UserID, value: rt.Value})
		r.byUser[rt.UserID] = append(r.byUser[rt.UserID], rated{id: rt.MovieID, value: rt.Value})
	}

	logger.Info("Built co-rating recommender",
		slog.Int("ratings", len(ratings)),
		slog.Int("users", len(r.byUser)),
		slog.Int("rated_movies", len(r.byMovie)))

	return r, nil
}

// Recommend returns up to opts.TopK movies ranked by score, highest first,
// ties broken by ascending movie id. It returns a *models.NoSimilarUsersError
// when nobody rated movieID above the like threshold.
func (r *CoRatingRecommender) Recommend(movieID int, opts Options) ([]models.ScoredMovie, error) {
	opts = opts.withDefaults()
	thr := opts.LikeThreshold

	r.logger.Debug("Finding similar movies",
		slog.Int("movie_id", movieID),
		slog.Float64("like_threshold", thr),
		slog.Float64("similar_fraction", opts.SimilarFraction))

	similarUsers := r.likers(movieID, thr)
	if len(similarUsers) == 0 {
		return nil, &models.NoSimilarUsersError{MovieID: movieID, Threshold: thr}
	}

	// Movies liked by similar users, counted once per user.
	similarCounts := make(map[int]int)
	for u := range similarUsers {
		for m := range r.liked(u, thr) {
			similarCounts[m]++
		}
	}

	n := float64(len(similarUsers))
	similarRatio := make(map[int]float64)
	for m, c := range similarCounts {
		if ratio := float64(c) / n; ratio > opts.SimilarFraction {
			similarRatio[m] = ratio
		}
	}

	// Baseline: everyone who liked at least one retained movie.
	population := make(map[int]struct{})
	allCounts := make(map[int]int, len(similarRatio))
	for m := range similarRatio {
		users := r.likers(m, thr)
		allCounts[m] = len(users)
		for u := range users {
			population[u] = struct{}{}
		}
	}

	r.logger.Debug("Computed candidate sets",
		slog.Int("movie_id", movieID),
		slog.Int("similar_users", len(similarUsers)),
		slog.Int("similar_movies", len(similarCounts)),
		slog.Int("candidates", len(similarRatio)),
		slog.Int("population", len(population)))

	p := float64(len(population))
	cands := make([]candidate, 0, len(similarRatio))
	for m, sr := range similarRatio {
		ar := float64(allCounts[m]) / p
		movie := r.movies[m]
		cands = append(cands, candidate{
			ScoredMovie: models.ScoredMovie{
				MovieID:      m,
				Title:        movie.Title,
				Genres:       movie.Genres,
				SimilarRatio: sr,
				AllRatio:     ar,
				Score:        sr / ar,
			},
			similar: similarCounts[m],
			all:     allCounts[m],
		})
	}

	sort.Slice(cands, func(i, j int) bool {
		if c := cands[i].compare(cands[j]); c != 0 {
			return c > 0
		}
		return cands[i].MovieID < cands[j].MovieID
	})

	scored := make([]models.ScoredMovie, len(cands))
	for i, c := range cands {
		scored[i] = c.ScoredMovie
	}
	if len(scored) > opts.TopK {
		scored = scored[:opts.TopK]
	}

	r.logger.Info("Found similar movies",
		slog.Int("movie_id", movieID),
		slog.Int("candidates", len(similarRatio)),
		slog.Int("returned", len(scored)))

	return scored, nil
}

// SimilarUsers returns the distinct users who rated movieID above threshold.
func (r *CoRatingRecommender) SimilarUsers(movieID int, threshold float64) []int {
	set := r.likers(movieID, threshold)
	users := make([]int, 0, len(set))
	for u := range set {
		users = append(users, u)
	}
	sort.Ints(users)
	return users
}

// Len returns the number of ratings held.
func (r *CoRatingRecommender) Len() int {
	return r.ratings
}

// Users returns the number of distinct users.
func (r *CoRatingRecommender) Users() int {
	return len(r.byUser)
}

// likers is the set of users who rated movie strictly above thr.
func (r *CoRatingRecommender) likers(movie int, thr float64) map[int]struct{} {
	set := make(map[int]struct{})
	for _, rt := range r.byMovie[movie] {
		if rt.value > thr {
			set[rt.id] = struct{}{}
		}
	}
	return set
}

// liked is the set of movies user rated strictly above thr.
func (r *CoRatingRecommender) liked(user int, thr float64) map[int]struct{} {
	set := make(map[int]struct{})
	for _, rt := range r.byUser[user] {
		if rt.value > thr {
			set[rt.id] = struct{}{}
		}
	}
	return set
}
