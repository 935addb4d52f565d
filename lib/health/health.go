package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"gorm.io/gorm"
)

// Component is the status of one dependency.
type Component struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health represents the health check response structure.
type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	DB        Component `json:"db"`
	Index     Component `json:"index"`
	Movies    int       `json:"movies,omitempty"`
}

// Readiness is satisfied by the recommendation service once its indexes are built.
type Readiness interface {
	Ready() bool
	MovieCount() int
}

// Check returns an HTTP handler that pings the database and reports whether
// the search and rating indexes are loaded.
func Check(db *gorm.DB, svc Readiness) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := Health{
			Status:    "ok",
			Timestamp: time.Now(),
			DB:        checkDB(ctx, db),
			Index:     Component{Status: "ok"},
		}

		if svc == nil || !svc.Ready() {
			health.Index = Component{Status: "error", Message: "Indexes not built"}
		} else {
			health.Movies = svc.MovieCount()
		}

		status := http.StatusOK
		if health.DB.Status != "ok" || health.Index.Status != "ok" {
			health.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		writeHealth(w, health, status)
	}
}

func checkDB(ctx context.Context, db *gorm.DB) Component {
	if db == nil {
		return Component{Status: "error", Message: "No database configured"}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return Component{Status: "error", Message: "Failed to get database connection"}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return Component{Status: "error", Message: "Database ping failed"}
	}
	return Component{Status: "ok"}
}

// writeHealth writes the health check response to the HTTP response writer.
func writeHealth(w http.ResponseWriter, health Health, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		slog.Error("Failed to encode health response", slog.Any("error", err))
	}
}
