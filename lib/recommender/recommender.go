package recommender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/icco/movierec/lib/dataset"
	"github.com/icco/movierec/lib/db"
	"github.com/icco/movierec/lib/recommend"
	"github.com/icco/movierec/lib/search"
	"github.com/icco/movierec/lib/types"
	"github.com/icco/movierec/lib/validation"
	"github.com/icco/movierec/models"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// enrichTimeout bounds all poster, library and explanation calls for one lookup.
const enrichTimeout = 20 * time.Second

const enrichConcurrency = 4

// PosterSource finds a poster image for a catalog title.
type PosterSource interface {
	PosterFor(ctx context.Context, catalogTitle string) (string, error)
}

// LibrarySource reports whether a catalog title is already owned.
type LibrarySource interface {
	InLibrary(ctx context.Context, catalogTitle string) (bool, error)
}

// Explainer describes a recommendation list in prose.
type Explainer interface {
	Explain(ctx context.Context, reference models.Movie, recs []models.ScoredMovie) (*validation.Explanation, error)
}

// Result is the outcome of a free-text lookup.
type Result struct {
	Query       string               `json:"query"`
	Reference   models.SearchResult  `json:"reference"`
	Options     recommend.Options    `json:"options"`
	Movies      []models.ScoredMovie `json:"movies"`
	Explanation string               `json:"explanation,omitempty"`
	HistoryID   uint                 `json:"history_id,omitempty"`
}

// Recommender ties title search to co-rating recommendations and the
// optional enrichers, and records lookups in the database.
type Recommender struct {
	index    *search.TitleIndex
	corating *recommend.CoRatingRecommender
	stats    types.StatsData

	db        *gorm.DB
	posters   PosterSource
	library   LibrarySource
	explainer Explainer
	defaults  recommend.Options
	searchK   int
	logger    *slog.Logger
}

type Option func(*Recommender)

// WithDB enables lookup history.
func WithDB(gormDB *gorm.DB) Option { return func(r *Recommender) { r.db = gormDB } }

func WithPosters(p PosterSource) Option { return func(r *Recommender) { r.posters = p } }

func WithLibrary(l LibrarySource) Option { return func(r *Recommender) { r.library = l } }

func WithExplainer(e Explainer) Option { return func(r *Recommender) { r.explainer = e } }

// WithDefaults sets the options used for fields a caller leaves zero.
func WithDefaults(o recommend.Options) Option { return func(r *Recommender) { r.defaults = o } }

func WithSearchK(k int) Option { return func(r *Recommender) { r.searchK = k } }

// New builds the title index and the rating index from ds. Any error is fatal.
func New(ds *dataset.Dataset, logger *slog.Logger, opts ...Option) (*Recommender, error) {
	r := &Recommender{
		defaults: recommend.DefaultOptions(),
		searchK:  search.DefaultK,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}

	index, err := search.NewTitleIndex(ds.Movies, logger)
	if err != nil {
		return nil, err
	}
	corating, err := recommend.New(ds.Movies, ds.Ratings, logger)
	if err != nil {
		return nil, err
	}
	r.index = index
	r.corating = corating
	r.stats = types.ComputeStats(ds.Movies, ds.Ratings)
	r.stats.VocabularySize = int64(index.VocabularySize())
	return r, nil
}

// Ready reports whether both indexes are built.
func (r *Recommender) Ready() bool {
	return r != nil && r.index != nil && r.corating != nil
}

// MovieCount returns the catalog size.
func (r *Recommender) MovieCount() int {
	return r.index.Len()
}

// Defaults returns the options applied to zero fields.
func (r *Recommender) Defaults() recommend.Options {
	return r.defaults
}

// SearchK returns the default number of search results.
func (r *Recommender) SearchK() int {
	return r.searchK
}

// ResolveOptions fills zero fields of o from the configured defaults.
func (r *Recommender) ResolveOptions(o recommend.Options) recommend.Options {
	if o.LikeThreshold == 0 {
		o.LikeThreshold = r.defaults.LikeThreshold
	}
	if o.SimilarFraction == 0 {
		o.SimilarFraction = r.defaults.SimilarFraction
	}
	if o.TopK <= 0 {
		o.TopK = r.defaults.TopK
	}
	return o
}

// Search returns the k titles closest to query. k <= 0 uses the configured default.
func (r *Recommender) Search(query string, k int) []models.SearchResult {
	if k <= 0 {
		k = r.searchK
	}
	r.logger.Debug("Title search", slog.String("query", query), slog.Int("k", k))
	return r.index.Search(query, k)
}

// Movie returns a catalog entry by id.
func (r *Recommender) Movie(id int) (models.Movie, error) {
	m, ok := r.index.Movie(id)
	if !ok {
		return models.Movie{}, fmt.Errorf("%w: %d", models.ErrMovieNotFound, id)
	}
	return m, nil
}

// Similar recommends movies for a catalog movie id and enriches the result.
func (r *Recommender) Similar(ctx context.Context, movieID int, opts recommend.Options) ([]models.ScoredMovie, error) {
	if _, err := r.Movie(movieID); err != nil {
		return nil, err
	}
	opts = r.ResolveOptions(opts)
	recs, err := r.corating.Recommend(movieID, opts)
	if err != nil {
		return nil, err
	}
	r.enrich(ctx, recs)
	return recs, nil
}

// Recommend resolves query to its best-matching title and recommends movies
// for it. A query that shares no terms with any title is ErrMovieNotFound.
func (r *Recommender) Recommend(ctx context.Context, query string, opts recommend.Options) (*Result, error) {
	hits := r.index.Search(query, 1)
	if len(hits) == 0 || hits[0].Similarity == 0 {
		return nil, fmt.Errorf("%w: no title matches %q", models.ErrMovieNotFound, query)
	}
	ref := hits[0]
	opts = r.ResolveOptions(opts)

	r.logger.Info("Recommending",
		slog.String("query", query),
		slog.Int("reference", ref.Movie.ID),
		slog.String("title", ref.Movie.Title),
		slog.Float64("similarity", ref.Similarity))

	recs, err := r.Similar(ctx, ref.Movie.ID, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{Query: query, Reference: ref, Options: opts, Movies: recs}
	if r.explainer != nil && len(recs) > 0 {
		ectx, cancel := context.WithTimeout(ctx, enrichTimeout)
		exp, err := r.explainer.Explain(ectx, ref.Movie, recs)
		cancel()
		if err != nil {
			r.logger.Warn("Failed to explain recommendations", slog.Any("error", err))
		} else {
			res.Explanation = exp.Summary
		}
	}

	if r.db != nil {
		rec := toHistory(res)
		if err := db.SaveRecommendation(ctx, r.db, rec); err != nil {
			r.logger.Error("Failed to record recommendation", slog.Any("error", err))
		} else {
			res.HistoryID = rec.ID
		}
	}
	return res, nil
}

// enrich fills poster and library fields in place. Failures are logged only.
func (r *Recommender) enrich(ctx context.Context, recs []models.ScoredMovie) {
	if r.posters == nil && r.library == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, enrichTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i := range recs {
		m := &recs[i]
		g.Go(func() error {
			if r.posters != nil {
				url, err := r.posters.PosterFor(gctx, m.Title)
				if err != nil {
					r.logger.Warn("Poster lookup failed", slog.String("title", m.Title), slog.Any("error", err))
				}
				m.PosterURL = url
			}
			if r.library != nil {
				owned, err := r.library.InLibrary(gctx, m.Title)
				if err != nil {
					r.logger.Warn("Library lookup failed", slog.String("title", m.Title), slog.Any("error", err))
				}
				m.InLibrary = owned
			}
			return nil
		})
	}
	_ = g.Wait()
}

func toHistory(res *Result) *models.Recommendation {
	rec := &models.Recommendation{
		Date:             time.Now().UTC(),
		Query:            res.Query,
		ReferenceMovieID: res.Reference.Movie.ID,
		ReferenceTitle:   res.Reference.Movie.Title,
		LikeThreshold:    res.Options.LikeThreshold,
		SimilarFraction:  res.Options.SimilarFraction,
		Explanation:      res.Explanation,
	}
	for i, m := range res.Movies {
		rec.Movies = append(rec.Movies, models.RecommendedMovie{
			Rank:         i + 1,
			MovieID:      m.MovieID,
			Title:        m.Title,
			Genres:       strings.Join(m.Genres, "|"),
			Score:        m.Score,
			SimilarRatio: m.SimilarRatio,
			AllRatio:     m.AllRatio,
			PosterURL:    m.PosterURL,
			InLibrary:    m.InLibrary,
		})
	}
	return rec
}

// ErrNoHistory is returned by History when no database is configured.
var ErrNoHistory = errors.New("history is not enabled")

// History returns the most recent lookups, newest first.
func (r *Recommender) History(ctx context.Context, limit int) ([]models.Recommendation, error) {
	if r.db == nil {
		return nil, ErrNoHistory
	}
	return db.RecentRecommendations(ctx, r.db, limit)
}

// Stats returns dataset statistics plus lookup history totals when a
// database is configured.
func (r *Recommender) Stats(ctx context.Context) (types.StatsData, error) {
	stats := r.stats
	stats.GenreDistribution = append([]types.GenreCount(nil), r.stats.GenreDistribution...)
	if r.db == nil {
		return stats, nil
	}

	count, err := db.CountRecommendations(ctx, r.db)
	if err != nil {
		return stats, err
	}
	stats.TotalRecommendations = count
	if count == 0 {
		return stats, nil
	}

	var first, last models.Recommendation
	if err := r.db.WithContext(ctx).Order("date asc").First(&first).Error; err != nil {
		return stats, fmt.Errorf("failed to get first recommendation: %w", err)
	}
	if err := r.db.WithContext(ctx).Order("date desc").First(&last).Error; err != nil {
		return stats, fmt.Errorf("failed to get last recommendation: %w", err)
	}
	stats.FirstRecommendation = first.Date
	stats.LastRecommendation = last.Date
	return stats, nil
}
