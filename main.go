package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/icco/movierec/handlers"
	"github.com/icco/movierec/lib/config"
	"github.com/icco/movierec/lib/dataset"
	"github.com/icco/movierec/lib/db"
	"github.com/icco/movierec/lib/explain"
	"github.com/icco/movierec/lib/lock"
	"github.com/icco/movierec/lib/plex"
	"github.com/icco/movierec/lib/recommend"
	"github.com/icco/movierec/lib/recommender"
	"github.com/icco/movierec/lib/tmdb"
	"gorm.io/gorm"
)

const (
	importLockTimeout = 30 * time.Second
	plexCheckTimeout  = 10 * time.Second
)

const usage = `usage: movierec [command]

commands:
  serve    run the web server (default)
  prompt   interactive title lookup on stdin
  import   load the CSV dataset into the database
  stats    print dataset statistics
`

func main() {
	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var handler slog.Handler
	if cmd == "serve" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		err = runServe(ctx, cfg, logger)
	case "prompt":
		err = withService(ctx, cfg, logger, func(svc *recommender.Recommender, _ *gorm.DB) error {
			return runPrompt(ctx, svc, os.Stdin, os.Stdout)
		})
	case "import":
		err = runImport(ctx, cfg, args, logger)
	case "stats":
		err = withService(ctx, cfg, logger, func(svc *recommender.Recommender, _ *gorm.DB) error {
			return runStats(ctx, svc, os.Stdout)
		})
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("Command failed", slog.String("command", cmd), slog.Any("error", err))
		os.Exit(1)
	}
}

func openDB(cfg *config.Config, logger *slog.Logger) (*gorm.DB, error) {
	logger.Info("Connecting to database", slog.String("path", cfg.DBPath))
	gormDB, err := db.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(gormDB, logger); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return gormDB, nil
}

// loadDataset prefers an imported dataset and falls back to the CSV files.
func loadDataset(ctx context.Context, cfg *config.Config, gormDB *gorm.DB, logger *slog.Logger) (*dataset.Dataset, error) {
	imported, err := db.HasDataset(ctx, gormDB)
	if err != nil {
		return nil, err
	}
	if imported {
		return db.LoadDataset(ctx, gormDB, logger)
	}
	logger.Info("No imported dataset, reading CSV files",
		slog.String("movies", cfg.MoviesCSV),
		slog.String("ratings", cfg.RatingsCSV))
	return dataset.Load(cfg.MoviesCSV, cfg.RatingsCSV, logger)
}

func newService(ctx context.Context, cfg *config.Config, gormDB *gorm.DB, logger *slog.Logger) (*recommender.Recommender, error) {
	ds, err := loadDataset(ctx, cfg, gormDB, logger)
	if err != nil {
		return nil, err
	}

	opts := []recommender.Option{
		recommender.WithDB(gormDB),
		recommender.WithSearchK(cfg.SearchK),
		recommender.WithDefaults(recommend.Options{
			LikeThreshold:   cfg.LikeThreshold,
			SimilarFraction: cfg.SimilarFraction,
			TopK:            cfg.TopK,
		}),
	}
	if cfg.TMDbEnabled() {
		opts = append(opts, recommender.WithPosters(tmdb.NewClient(cfg.TMDbKey, logger)))
	}
	if cfg.PlexEnabled() {
		pc := plex.NewClient(cfg.PlexURL, cfg.PlexToken, logger)
		checkPlex(ctx, pc, logger)
		opts = append(opts, recommender.WithLibrary(pc))
	}
	if cfg.OpenAIEnabled() {
		opts = append(opts, recommender.WithExplainer(explain.New(cfg.OpenAIKey, cfg.OpenAIModel, logger)))
	}
	return recommender.New(ds, logger, opts...)
}

// checkPlex warns when the Plex server cannot be reached. Library flags are
// optional, so a failure does not stop startup.
func checkPlex(ctx context.Context, pc *plex.Client, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, plexCheckTimeout)
	defer cancel()
	if err := pc.TestConnection(ctx); err != nil {
		logger.Warn("Plex server unreachable, library flags will be missing",
			slog.String("url", pc.GetURL()),
			slog.Any("error", err))
		return
	}
	logger.Info("Connected to Plex", slog.String("url", pc.GetURL()))
}

func withService(ctx context.Context, cfg *config.Config, logger *slog.Logger, fn func(*recommender.Recommender, *gorm.DB) error) error {
	gormDB, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB(gormDB, logger)

	svc, err := newService(ctx, cfg, gormDB, logger)
	if err != nil {
		return err
	}
	return fn(svc, gormDB)
}

func closeDB(gormDB *gorm.DB, logger *slog.Logger) {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("Failed to close database", slog.Any("error", err))
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	return withService(ctx, cfg, logger, func(svc *recommender.Recommender, gormDB *gorm.DB) error {
		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handlers.NewRouter(svc, gormDB),
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      90 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			logger.Info("Starting server", slog.String("port", cfg.Port))
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func runImport(ctx context.Context, cfg *config.Config, args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	movies := fs.String("movies", cfg.MoviesCSV, "path to movies.csv")
	ratings := fs.String("ratings", cfg.RatingsCSV, "path to ratings.csv")
	lockDir := fs.String("lock-dir", "", "directory for the import lock file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	gormDB, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB(gormDB, logger)

	fl := lock.NewFileLock(*lockDir, logger)
	return fl.WithLock(ctx, "import", importLockTimeout, func() error {
		ds, err := dataset.Load(*movies, *ratings, logger)
		if err != nil {
			return err
		}
		start := time.Now()
		if err := db.ImportDataset(ctx, gormDB, ds, logger); err != nil {
			return err
		}
		logger.Info("Import complete",
			slog.Int("movies", len(ds.Movies)),
			slog.Int("ratings", len(ds.Ratings)),
			slog.Duration("elapsed", time.Since(start)))
		return nil
	})
}
