package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything the binary reads from the environment.
type Config struct {
	Port     string
	DBPath   string
	DataDir  string
	LogLevel slog.Level

	MoviesCSV  string
	RatingsCSV string

	LikeThreshold   float64
	SimilarFraction float64
	TopK            int
	SearchK         int

	OpenAIKey   string
	OpenAIModel string
	TMDbKey     string
	PlexURL     string
	PlexToken   string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DBPath:      getEnv("DB_PATH", "movierec.db"),
		DataDir:     dataDir,
		MoviesCSV:   getEnv("MOVIES_CSV", filepath.Join(dataDir, "movies.csv")),
		RatingsCSV:  getEnv("RATINGS_CSV", filepath.Join(dataDir, "ratings.csv")),
		OpenAIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIModel: getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		TMDbKey:     getEnv("TMDB_API_KEY", ""),
		PlexURL:     getEnv("PLEX_URL", ""),
		PlexToken:   getEnv("PLEX_TOKEN", ""),
	}

	var err error
	if cfg.LogLevel, err = parseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	if cfg.LikeThreshold, err = getFloatEnv("LIKE_THRESHOLD", 4.0); err != nil {
		return nil, err
	}
	if cfg.SimilarFraction, err = getFloatEnv("SIMILAR_FRACTION", 0.10); err != nil {
		return nil, err
	}
	if cfg.TopK, err = getIntEnv("TOP_K", 5); err != nil {
		return nil, err
	}
	if cfg.SearchK, err = getIntEnv("SEARCH_K", 5); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the recommendation parameters are in range.
func (c *Config) Validate() error {
	if math.IsNaN(c.LikeThreshold) || c.LikeThreshold <= 0 || c.LikeThreshold > 5 {
		return fmt.Errorf("LIKE_THRESHOLD must be in (0, 5], got %v", c.LikeThreshold)
	}
	if math.IsNaN(c.SimilarFraction) || c.SimilarFraction <= 0 || c.SimilarFraction >= 1 {
		return fmt.Errorf("SIMILAR_FRACTION must be in (0, 1), got %v", c.SimilarFraction)
	}
	if c.TopK < 1 {
		return fmt.Errorf("TOP_K must be at least 1, got %d", c.TopK)
	}
	if c.SearchK < 1 {
		return fmt.Errorf("SEARCH_K must be at least 1, got %d", c.SearchK)
	}
	return nil
}

// OpenAIEnabled reports whether explanations can be generated.
func (c *Config) OpenAIEnabled() bool { return c.OpenAIKey != "" }

// TMDbEnabled reports whether poster lookups can be made.
func (c *Config) TMDbEnabled() bool { return c.TMDbKey != "" }

// PlexEnabled reports whether library availability can be checked.
func (c *Config) PlexEnabled() bool { return c.PlexURL != "" && c.PlexToken != "" }

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return i, nil
}

func getFloatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}
