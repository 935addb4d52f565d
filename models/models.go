package models

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// nonTitleChars matches everything CleanTitle strips.
var nonTitleChars = regexp.MustCompile(`[^a-zA-Z0-9 ]`)

// CleanTitle removes every character outside ASCII letters, digits and space.
// Case is preserved.
func CleanTitle(title string) string {
	return nonTitleChars.ReplaceAllString(title, "")
}

// yearSuffix matches the trailing "(1995)" on catalog titles.
var yearSuffix = regexp.MustCompile(`\s*\((\d{4})\)\s*$`)

// SplitTitle separates a catalog title like "Heat (1995)" into "Heat" and 1995.
// Year is 0 when the title has no year suffix. Trailing articles such as
// "Usual Suspects, The" are moved to the front.
func SplitTitle(title string) (string, int) {
	year := 0
	if m := yearSuffix.FindStringSubmatch(title); m != nil {
		year, _ = strconv.Atoi(m[1])
		title = title[:len(title)-len(m[0])]
	}
	title = strings.TrimSpace(title)
	for _, article := range []string{"The", "A", "An"} {
		if suffix := ", " + article; strings.HasSuffix(title, suffix) {
			title = article + " " + strings.TrimSuffix(title, suffix)
			break
		}
	}
	return title, year
}

// Movie is a catalog entry. It is created once when the catalog is loaded and
// never mutated afterwards.
type Movie struct {
	ID         int      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Position   int      `json:"-" gorm:"index"` // catalog order, used for tie-breaking
	Title      string   `json:"title"`
	CleanTitle string   `json:"clean_title"`
	Genres     []string `json:"genres" gorm:"serializer:json"`
}

// NewMovie builds a Movie and derives its clean title.
func NewMovie(id int, title string, genres []string) Movie {
	return Movie{
		ID:         id,
		Title:      title,
		CleanTitle: CleanTitle(title),
		Genres:     genres,
	}
}

// Rating is a single user rating. MovieID is not required to exist in the catalog.
type Rating struct {
	ID        uint    `json:"-" gorm:"primaryKey"`
	UserID    int     `json:"user_id" gorm:"index"`
	MovieID   int     `json:"movie_id" gorm:"index"`
	Value     float64 `json:"rating" gorm:"column:rating"`
	Timestamp int64   `json:"timestamp"`
}

// SearchResult is a catalog movie together with its similarity to a title query.
type SearchResult struct {
	Movie      Movie   `json:"movie"`
	Similarity float64 `json:"similarity"`
}

// ScoredMovie is one row of a co-rating recommendation.
type ScoredMovie struct {
	MovieID      int      `json:"movie_id"`
	Title        string   `json:"title"`
	Genres       []string `json:"genres"`
	SimilarRatio float64  `json:"similar_ratio"`
	AllRatio     float64  `json:"all_ratio"`
	Score        float64  `json:"score"`

	// Optional enrichment, empty unless the matching integration is configured.
	PosterURL string `json:"poster_url,omitempty"`
	InLibrary bool   `json:"in_library,omitempty"`
}

// Recommendation is a recorded lookup: the query, the reference movie that
// was picked for it and the movies that were recommended.
type Recommendation struct {
	gorm.Model
	Date             time.Time
	Query            string
	ReferenceMovieID int
	ReferenceTitle   string
	LikeThreshold    float64
	SimilarFraction  float64
	Explanation      string
	Movies           []RecommendedMovie
}

// RecommendedMovie is one ranked entry of a Recommendation.
type RecommendedMovie struct {
	gorm.Model
	RecommendationID uint
	Rank             int
	MovieID          int
	Title            string
	Genres           string
	Score            float64
	SimilarRatio     float64
	AllRatio         float64
	PosterURL        string
	InLibrary        bool
}
