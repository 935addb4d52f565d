package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/icco/movierec/lib/recommend"
	"github.com/icco/movierec/lib/recommender"
	"github.com/icco/movierec/models"
)

// runPrompt reads titles line by line and prints recommendations for the best
// match of each. An empty line or EOF ends the loop.
func runPrompt(ctx context.Context, svc *recommender.Recommender, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Movie title (empty to quit): ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := svc.Recommend(ctx, query, recommend.Options{})
		switch {
		case errors.Is(err, models.ErrNoSimilarUsers):
			fmt.Fprintln(out, "insufficient data for this movie")
			continue
		case errors.Is(err, models.ErrMovieNotFound):
			fmt.Fprintf(out, "no title matches %q\n", query)
			continue
		case err != nil:
			return err
		}

		printResult(out, res)
	}
}

func printResult(out io.Writer, res *recommender.Result) {
	fmt.Fprintf(out, "\nBecause you liked %s:\n", res.Reference.Movie.Title)
	if len(res.Movies) == 0 {
		fmt.Fprintln(out, "  no movie cleared the similar-user cutoff")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  SCORE\tTITLE\tGENRES")
	for _, m := range res.Movies {
		title := m.Title
		if m.InLibrary {
			title += " [in library]"
		}
		fmt.Fprintf(tw, "  %.2f\t%s\t%s\n", m.Score, title, strings.Join(m.Genres, "|"))
	}
	_ = tw.Flush()

	if res.Explanation != "" {
		fmt.Fprintf(out, "\n%s\n", res.Explanation)
	}
	fmt.Fprintln(out)
}
