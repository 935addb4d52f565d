package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/icco/movierec/lib/health"
	"github.com/icco/movierec/lib/recommender"
	"gorm.io/gorm"
)

// NewRouter wires every HTTP route onto a chi router.
func NewRouter(svc *recommender.Recommender, gormDB *gorm.DB) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/", HandleHome(svc))
	r.Get("/search", HandleSearch(svc))
	r.Get("/recommend", HandleRecommend(svc))
	r.Get("/movies/{id}/similar", HandleSimilar(svc))
	r.Get("/history", HandleHistory(svc))
	r.Get("/stats", HandleStats(svc))
	r.Get("/healthz", health.Check(gormDB, svc))

	return r
}
