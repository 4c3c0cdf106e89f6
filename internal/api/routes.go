// Package api provides HTTP handlers for reviewing finished analysis runs.
package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cellatlas/scquery/internal/resultstore"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Store       *resultstore.Store
	CORSOrigins []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api/runs", func(r chi.Router) {
		r.Get("/", listRunsHandler(cfg.Store))
		r.Route("/{run_id}", func(r chi.Router) {
			r.Get("/", getRunHandler(cfg.Store))
			r.Delete("/", deleteRunHandler(cfg.Store))
			r.Get("/classifications", classificationsHandler(cfg.Store))
			r.Get("/contingency", contingencyHandler(cfg.Store))
			r.Get("/artifacts/*", artifactHandler(cfg.Store))
		})
	})

	return r
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// loadRun resolves the run from the URL, writing the error response itself
// when the run cannot be served.
func loadRun(w http.ResponseWriter, r *http.Request, store *resultstore.Store) *resultstore.Run {
	runID := chi.URLParam(r, "run_id")
	run, err := store.GetRun(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return nil
	}
	return run
}

func listRunsHandler(store *resultstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := store.ListRuns()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if runs == nil {
			runs = []*resultstore.Run{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"runs": runs})
	}
}

func getRunHandler(store *resultstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := loadRun(w, r, store)
		if run == nil {
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(run)
	}
}

func deleteRunHandler(store *resultstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := loadRun(w, r, store)
		if run == nil {
			return
		}
		if err := store.DeleteRun(run.ID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func classificationsHandler(store *resultstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := loadRun(w, r, store)
		if run == nil {
			return
		}
		rows, err := store.Classifications(run.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if rows == nil {
			rows = []resultstore.Classification{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"run_id": run.ID, "classifications": rows})
	}
}

func contingencyHandler(store *resultstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := loadRun(w, r, store)
		if run == nil {
			return
		}
		rows, err := store.Contingency(run.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if rows == nil {
			rows = []resultstore.ContingencyRow{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"run_id": run.ID, "contingency": rows})
	}
}

// artifactHandler serves files (charts, CSVs, reports) out of a run's output
// directory. Paths are confined to that directory.
func artifactHandler(store *resultstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := loadRun(w, r, store)
		if run == nil {
			return
		}

		rel := chi.URLParam(r, "*")
		base, err := filepath.Abs(run.OutputDir)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		path, err := filepath.Abs(filepath.Join(base, filepath.FromSlash(rel)))
		if err != nil || (path != base && !strings.HasPrefix(path, base+string(filepath.Separator))) {
			writeError(w, http.StatusBadRequest, "invalid artifact path")
			return
		}

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			writeError(w, http.StatusNotFound, "artifact not found")
			return
		}
		http.ServeFile(w, r, path)
	}
}
