package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/icco/movierec/lib/dataset"
	"github.com/icco/movierec/models"
	"gorm.io/gorm"
)

const (
	movieBatchSize  = 500
	ratingBatchSize = 1000
)

// ImportDataset replaces the stored catalog and rating log with ds.
func ImportDataset(ctx context.Context, db *gorm.DB, ds *dataset.Dataset, logger *slog.Logger) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Rating{}).Error; err != nil {
			return fmt.Errorf("failed to clear ratings: %w", err)
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Movie{}).Error; err != nil {
			return fmt.Errorf("failed to clear movies: %w", err)
		}

		movies := make([]models.Movie, len(ds.Movies))
		copy(movies, ds.Movies)
		for i := range movies {
			movies[i].Position = i
		}
		if err := tx.CreateInBatches(movies, movieBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert movies: %w", err)
		}
		logger.Info("Imported movies", slog.Int("count", len(movies)))

		ratings := make([]models.Rating, len(ds.Ratings))
		for i, r := range ds.Ratings {
			r.ID = 0
			ratings[i] = r
		}
		if err := tx.CreateInBatches(ratings, ratingBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert ratings: %w", err)
		}
		logger.Info("Imported ratings", slog.Int("count", len(ratings)))

		return nil
	})
}

// HasDataset reports whether a catalog has been imported.
func HasDataset(ctx context.Context, db *gorm.DB) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Movie{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to count movies: %w", err)
	}
	return count > 0, nil
}

// LoadDataset reads the stored catalog in catalog order and the full rating log.
func LoadDataset(ctx context.Context, db *gorm.DB, logger *slog.Logger) (*dataset.Dataset, error) {
	var movies []models.Movie
	if err := db.WithContext(ctx).Order("position asc").Find(&movies).Error; err != nil {
		return nil, &models.DataLoadError{Source: "database", Reason: "cannot read movies", Err: err}
	}
	if len(movies) == 0 {
		return nil, &models.DataLoadError{Source: "database", Err: models.ErrEmptyCatalog}
	}
	for i := range movies {
		if movies[i].CleanTitle == "" {
			movies[i].CleanTitle = models.CleanTitle(movies[i].Title)
		}
	}
	logger.Info("Loaded movies from database", slog.Int("count", len(movies)))

	var ratings []models.Rating
	var batch []models.Rating
	res := db.WithContext(ctx).FindInBatches(&batch, ratingBatchSize*10, func(tx *gorm.DB, _ int) error {
		ratings = append(ratings, batch...)
		return nil
	})
	if res.Error != nil {
		return nil, &models.DataLoadError{Source: "database", Reason: "cannot read ratings", Err: res.Error}
	}
	if len(ratings) == 0 {
		return nil, &models.DataLoadError{Source: "database", Reason: "no ratings"}
	}
	logger.Info("Loaded ratings from database", slog.Int("count", len(ratings)))

	return &dataset.Dataset{Movies: movies, Ratings: ratings}, nil
}

// SaveRecommendation stores a lookup and its ranked movies.
func SaveRecommendation(ctx context.Context, db *gorm.DB, rec *models.Recommendation) error {
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to save recommendation: %w", err)
	}
	return nil
}

// RecentRecommendations returns the latest lookups, newest first, with their
// movies in rank order.
func RecentRecommendations(ctx context.Context, db *gorm.DB, limit int) ([]models.Recommendation, error) {
	var recs []models.Recommendation
	err := db.WithContext(ctx).
		Preload("Movies", func(tx *gorm.DB) *gorm.DB { return tx.Order("rank asc") }).
		Order("date desc").Order("id desc").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get recent recommendations: %w", err)
	}
	return recs, nil
}

// CountRecommendations returns the number of recorded lookups.
func CountRecommendations(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Recommendation{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count recommendations: %w", err)
	}
	return count, nil
}
