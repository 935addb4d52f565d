package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/icco/movierec/lib/recommender"
)

// runStats prints dataset and lookup history statistics.
func runStats(ctx context.Context, svc *recommender.Recommender, out io.Writer) error {
	stats, err := svc.Stats(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Movies\t%d\n", stats.TotalMovies)
	fmt.Fprintf(tw, "Ratings\t%d\n", stats.TotalRatings)
	fmt.Fprintf(tw, "Users\t%d\n", stats.TotalUsers)
	fmt.Fprintf(tw, "Rated movies\t%d\n", stats.RatedMovies)
	fmt.Fprintf(tw, "Title vocabulary\t%d\n", stats.VocabularySize)
	fmt.Fprintf(tw, "Rating range\t%.1f - %.1f (mean %.2f)\n", stats.MinRating, stats.MaxRating, stats.AverageRating)
	fmt.Fprintf(tw, "Lookups\t%d\n", stats.TotalRecommendations)
	if stats.TotalRecommendations > 0 {
		fmt.Fprintf(tw, "First lookup\t%s\n", stats.FirstRecommendation.Format("2006-01-02 15:04"))
		fmt.Fprintf(tw, "Last lookup\t%s\n", stats.LastRecommendation.Format("2006-01-02 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nGenres:")
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, g := range stats.GenreDistribution {
		fmt.Fprintf(tw, "  %s\t%d\n", g.Genre, g.Count)
	}
	return tw.Flush()
}
