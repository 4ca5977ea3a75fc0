// Package api implements the admin/monitoring HTTP surface: JWT login,
// a stats endpoint, rule reload, and a live websocket event stream —
// grounded on the teacher's chi + cors web server, stripped of every
// telescope/observation-point concern the new domain has no use for.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/flightops/ruled/internal/auth"
	"github.com/flightops/ruled/internal/db"
	"github.com/flightops/ruled/pkg/engine"
)

type ctxKey string

const (
	ctxUserID   ctxKey = "user_id"
	ctxUsername ctxKey = "username"
	ctxRole     ctxKey = "role"
)

// ReloadFunc reloads the rule set from disk, swapping it into the
// running evaluator. Returns the number of rules loaded, or an error
// describing why the reload was rejected.
type ReloadFunc func(ctx context.Context) (numRules int, err error)

// Server holds the admin API's dependencies.
type Server struct {
	router   *chi.Mux
	authSvc  *auth.Service
	userRepo *db.UserRepository
	stats    *engine.Stats
	hub      *eventHub
	reload   ReloadFunc
	logger   *log.Logger

	upgrader websocket.Upgrader
}

// NewServer builds the admin API router. userRepo may be nil (login then
// answers 503, while protected routes still accept any valid token),
// matching a headless deployment with no database configured.
func NewServer(authSvc *auth.Service, userRepo *db.UserRepository, stats *engine.Stats, reload ReloadFunc, logger *log.Logger) *Server {
	s := &Server{
		authSvc:  authSvc,
		userRepo: userRepo,
		stats:    stats,
		hub:      newEventHub(logger),
		reload:   reload,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.router = chi.NewRouter()
	s.setupRoutes()
	return s
}

// Router exposes the configured http.Handler for use by an http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}

// Observer returns the engine.Observer that feeds the live event
// stream; wire it into the Dispatcher with SetObserver.
func (s *Server) Observer() engine.Observer {
	return s.hub.broadcast
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleGetCurrentUser)
			r.Get("/stats", s.handleGetStats)
			r.Get("/ws/events", s.handleEventStream)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Post("/rules/reload", s.handleReloadRules)
			})
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			http.Error(w, "missing or malformed authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := s.authSvc.ValidateToken(authHeader[7:])
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxUsername, claims.Username)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := r.Context().Value(ctxRole).(string)
		if !auth.CanManageRules(role) {
			http.Error(w, "admin role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.userRepo == nil {
		http.Error(w, "no database configured, admin login unavailable", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.userRepo.GetByUsername(r.Context(), req.Username)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err := s.authSvc.ComparePassword(user.PasswordHash, req.Password); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := s.authSvc.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}
	_ = s.userRepo.UpdateLastLogin(r.Context(), user.ID)

	respondJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user": map[string]any{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
		},
	})
}

func (s *Server) handleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"id":       r.Context().Value(ctxUserID),
		"username": r.Context().Value(ctxUsername),
		"role":     r.Context().Value(ctxRole),
	})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.stats.Snapshot())
}

func (s *Server) handleReloadRules(w http.ResponseWriter, r *http.Request) {
	if s.reload == nil {
		http.Error(w, "reload not supported", http.StatusNotImplemented)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	n, err := s.reload(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"rules_loaded": n})
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("api: websocket upgrade failed: %v", err)
		}
		return
	}
	defer conn.Close()

	ch := s.hub.add(conn)
	defer s.hub.remove(conn)

	// Drain inbound frames so the connection's read deadline advances and
	// client disconnects are detected promptly; this endpoint is
	// server-push only.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for payload := range ch {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
