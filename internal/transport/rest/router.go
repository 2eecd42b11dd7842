package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"

	"coherence/internal/config"
	"coherence/internal/service"
	"coherence/internal/transport/rest/handler"
	"coherence/internal/transport/rest/middleware"
	"coherence/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	VideoService   *service.VideoService
	AuthService    *service.AuthService
	WSHub          *ws.Hub
	CORS           config.CORSConfig
	AuthRequired   bool
	MaxUploadBytes int64
	// Services reports which upstream integrations are configured
	Services map[string]bool
	Logger   *slog.Logger
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status   string          `json:"status"`
	Services map[string]bool `json:"services"`
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := mux.NewRouter()

	// Initialize handlers
	videoHandler := handler.NewVideoHandler(c.VideoService, c.MaxUploadBytes, logger)
	sampleHandler := handler.NewSampleHandler(c.VideoService, logger)
	authHandler := handler.NewAuthHandler()
	wsHandler := ws.NewHandler(c.WSHub, c.VideoService, c.CORS.AllowedOrigins, logger)

	authMW := middleware.NewAuthMiddleware(c.AuthService, c.AuthRequired)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.CORS))

	r.HandleFunc("/health", healthHandler(c.Services)).Methods("GET", "OPTIONS")

	api := r.PathPrefix("/api").Subrouter()

	// Streaming and websocket routes stay uncompressed
	api.HandleFunc("/videos/{id}/stream", videoHandler.Stream).Methods("GET", "HEAD", "OPTIONS")
	api.HandleFunc("/ws/videos/{id}", wsHandler.StatusWS).Methods("GET")

	jsonRoutes := api.NewRoute().Subrouter()
	jsonRoutes.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })

	// Samples are registered before {id} so "samples" is never taken as an id
	jsonRoutes.HandleFunc("/videos/samples", sampleHandler.List).Methods("GET", "OPTIONS")
	jsonRoutes.HandleFunc("/videos/samples/{id}", sampleHandler.Get).Methods("GET", "OPTIONS")

	jsonRoutes.HandleFunc("/videos/{id}/status", videoHandler.Status).Methods("GET", "OPTIONS")
	jsonRoutes.HandleFunc("/videos/{id}/results", videoHandler.Results).Methods("GET", "OPTIONS")
	jsonRoutes.HandleFunc("/videos/{id}/coaching", videoHandler.Coaching).Methods("POST", "OPTIONS")
	jsonRoutes.HandleFunc("/videos/{id}", videoHandler.Delete).Methods("DELETE", "OPTIONS")

	// Upload records the owner when a token is sent
	uploadRoutes := jsonRoutes.NewRoute().Subrouter()
	uploadRoutes.Use(authMW.OptionalUser)
	uploadRoutes.HandleFunc("/videos/upload", videoHandler.Upload).Methods("POST", "OPTIONS")

	userRoutes := jsonRoutes.NewRoute().Subrouter()
	userRoutes.Use(authMW.RequireUser)
	userRoutes.HandleFunc("/auth/me", authHandler.Me).Methods("GET", "OPTIONS")

	return r
}

func healthHandler(services map[string]bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if services == nil {
			services = map[string]bool{}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(HealthResponse{Status: "healthy", Services: services})
	}
}

func corsMiddleware(cfg config.CORSConfig) mux.MiddlewareFunc {
	allowed := make(map[string]struct{})
	wildcard := false
	for _, o := range strings.Split(cfg.AllowedOrigins, ",") {
		o = strings.TrimSpace(o)
		switch o {
		case "":
		case "*":
			wildcard = true
		default:
			allowed[o] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		wildcard = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if wildcard {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin := r.Header.Get("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", cfg.AllowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", cfg.AllowedHeaders)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
