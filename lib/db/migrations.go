package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/icco/movierec/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open connects to the SQLite database at path with slog-backed GORM logging.
func Open(path string, logger *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: NewGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// RunMigrations runs all database migrations
func RunMigrations(db *gorm.DB, logger *slog.Logger) error {
	ctx := context.Background()

	if err := enableSQLiteOptimizations(ctx, db, logger); err != nil {
		return fmt.Errorf("failed to enable SQLite optimizations: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&models.Movie{},
		&models.Rating{},
		&models.Recommendation{},
		&models.RecommendedMovie{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := createAdditionalIndexes(ctx, db, logger); err != nil {
		return fmt.Errorf("failed to create additional indexes: %w", err)
	}

	return nil
}

// enableSQLiteOptimizations enables SQLite-specific optimizations
func enableSQLiteOptimizations(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	optimizations := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000", // 64MB, ratings tables get large
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA mmap_size=134217728",
	}

	for _, pragma := range optimizations {
		if err := db.WithContext(ctx).Exec(pragma).Error; err != nil {
			logger.Warn("Failed to execute pragma", slog.String("pragma", pragma), slog.Any("error", err))
		} else {
			logger.Debug("Executed pragma", slog.String("pragma", pragma))
		}
	}

	return nil
}

// createAdditionalIndexes creates composite indexes for the history queries.
func createAdditionalIndexes(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	additionalIndexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_ratings_movie_rating ON ratings(movie_id, rating)",
		"CREATE INDEX IF NOT EXISTS idx_recommendations_date ON recommendations(date)",
		"CREATE INDEX IF NOT EXISTS idx_recommended_movies_rec_rank ON recommended_movies(recommendation_id, rank)",
	}

	for _, indexSQL := range additionalIndexes {
		if err := db.WithContext(ctx).Exec(indexSQL).Error; err != nil {
			logger.Warn("Failed to create index", slog.String("sql", indexSQL), slog.Any("error", err))
		} else {
			logger.Debug("Created index", slog.String("sql", indexSQL))
		}
	}

	return nil
}
