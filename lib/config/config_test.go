package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PORT", "DB_PATH", "DATA_DIR", "MOVIES_CSV", "RATINGS_CSV", "LOG_LEVEL",
	"LIKE_THRESHOLD", "SIMILAR_FRACTION", "TOP_K", "SEARCH_K",
	"OPENAI_API_KEY", "OPENAI_MODEL", "TMDB_API_KEY", "PLEX_URL", "PLEX_TOKEN",
}

func clearEnv(t *testing.T) {
	t.Helper()
	// Run from an empty dir so a developer's .env is not picked up.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "movierec.db", cfg.DBPath)
	assert.Equal(t, filepath.Join("./data", "movies.csv"), cfg.MoviesCSV)
	assert.Equal(t, filepath.Join("./data", "ratings.csv"), cfg.RatingsCSV)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 4.0, cfg.LikeThreshold)
	assert.Equal(t, 0.10, cfg.SimilarFraction)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 5, cfg.SearchK)
	assert.False(t, cfg.OpenAIEnabled())
	assert.False(t, cfg.TMDbEnabled())
	assert.False(t, cfg.PlexEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_DIR", "/srv/ml")
	t.Setenv("RATINGS_CSV", "/tmp/r.csv")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LIKE_THRESHOLD", "3.5")
	t.Setenv("SIMILAR_FRACTION", "0.25")
	t.Setenv("TOP_K", "10")
	t.Setenv("PLEX_URL", "http://plex:32400")
	t.Setenv("PLEX_TOKEN", "abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/srv/ml", "movies.csv"), cfg.MoviesCSV)
	assert.Equal(t, "/tmp/r.csv", cfg.RatingsCSV)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 3.5, cfg.LikeThreshold)
	assert.Equal(t, 0.25, cfg.SimilarFraction)
	assert.Equal(t, 10, cfg.TopK)
	assert.True(t, cfg.PlexEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"LIKE_THRESHOLD", "high"},
		{"LIKE_THRESHOLD", "0"},
		{"LIKE_THRESHOLD", "5.5"},
		{"LIKE_THRESHOLD", "NaN"},
		{"LIKE_THRESHOLD", "Inf"},
		{"SIMILAR_FRACTION", "1"},
		{"SIMILAR_FRACTION", "0"},
		{"SIMILAR_FRACTION", "-0.1"},
		{"SIMILAR_FRACTION", "NaN"},
		{"SIMILAR_FRACTION", "-Inf"},
		{"TOP_K", "0"},
		{"TOP_K", "five"},
		{"SEARCH_K", "-1"},
		{"LOG_LEVEL", "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
