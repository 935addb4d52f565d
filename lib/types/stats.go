package types

import (
	"sort"
	"time"

	"github.com/icco/movierec/models"
)

// GenreCount is one row of the genre distribution.
type GenreCount struct {
	Genre string
	Count int64
}

// StatsData represents statistics about the loaded dataset and lookup history.
type StatsData struct {
	TotalMovies          int64
	TotalRatings         int64
	TotalUsers           int64
	RatedMovies          int64
	VocabularySize       int64
	MinRating            float64
	MaxRating            float64
	AverageRating        float64
	TotalRecommendations int64
	FirstRecommendation  time.Time
	LastRecommendation   time.Time
	GenreDistribution    []GenreCount
}

// ComputeStats fills the dataset-derived fields of StatsData. Genres are
// sorted by count descending, then name.
func ComputeStats(movies []models.Movie, ratings []models.Rating) StatsData {
	stats := StatsData{
		TotalMovies:  int64(len(movies)),
		TotalRatings: int64(len(ratings)),
	}

	genres := make(map[string]int64)
	for _, m := range movies {
		for _, g := range m.Genres {
			genres[g]++
		}
	}
	for g, n := range genres {
		stats.GenreDistribution = append(stats.GenreDistribution, GenreCount{Genre: g, Count: n})
	}
	sort.Slice(stats.GenreDistribution, func(i, j int) bool {
		a, b := stats.GenreDistribution[i], stats.GenreDistribution[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Genre < b.Genre
	})

	if len(ratings) == 0 {
		return stats
	}

	users := make(map[int]struct{})
	rated := make(map[int]struct{})
	stats.MinRating, stats.MaxRating = ratings[0].Value, ratings[0].Value
	var sum float64
	for _, r := range ratings {
		users[r.UserID] = struct{}{}
		rated[r.MovieID] = struct{}{}
		sum += r.Value
		stats.MinRating = min(stats.MinRating, r.Value)
		stats.MaxRating = max(stats.MaxRating, r.Value)
	}
	stats.TotalUsers = int64(len(users))
	stats.RatedMovies = int64(len(rated))
	stats.AverageRating = sum / float64(len(ratings))
	return stats
}
