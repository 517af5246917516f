package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /dashboard", h.Dashboard)
	mux.HandleFunc("GET /styles", h.ListStyles)

	mux.HandleFunc("GET /tracks", h.ListTracks)
	mux.HandleFunc("POST /tracks", h.CreateTrack)
	mux.HandleFunc("GET /tracks/{id}", h.GetTrack)
	mux.HandleFunc("PUT /tracks/{id}", h.UpdateTrack)
	mux.HandleFunc("DELETE /tracks/{id}", h.DeleteTrack)
	mux.HandleFunc("POST /tracks/{id}/generate", h.GenerateForTrack)

	mux.HandleFunc("GET /videos", h.ListVideos)
	mux.HandleFunc("POST /videos", h.CreateVideo)
	mux.HandleFunc("GET /videos/pending", h.PendingVideos)
	mux.HandleFunc("GET /videos/{id}", h.GetVideo)
	mux.HandleFunc("PUT /videos/{id}", h.UpdateVideo)
	mux.HandleFunc("DELETE /videos/{id}", h.DeleteVideo)
	mux.HandleFunc("POST /videos/{id}/generate", h.GenerateVideo)
	mux.HandleFunc("POST /videos/{id}/generate-remote", h.GenerateVideoRemote)
	mux.HandleFunc("POST /videos/{id}/status", h.UpdateVideoStatus)

	mux.HandleFunc("GET /projects", h.ListProjects)
	mux.HandleFunc("POST /projects", h.CreateProject)
	mux.HandleFunc("GET /projects/{id}", h.GetProject)
	mux.HandleFunc("PUT /projects/{id}", h.UpdateProject)
	mux.HandleFunc("DELETE /projects/{id}", h.DeleteProject)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
