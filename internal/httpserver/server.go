// internal/httpserver/server.go
//
// HTTP server wiring for the Memory Match backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs,
//     request logging).
//   - Public endpoints: "/", "/health".
//   - Game endpoints (optional auth): /game/new, /game/{id}[/select|/reset|/navigate|/ws].
//   - Daily deal + leaderboard endpoints (optional auth).
//   - Auth + profile/stat endpoints: /auth/*, /stats/me, /games/mine.
//   - Persisting finished games when a session announces its Stats.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Live games are held in the session store only; finished results go to
//     the results database.
//   - The WebSocket route sits outside the handler timeout because the
//     connection outlives the request.

package httpserver

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory-game/internal/clock"
	"github.com/robalobadob/memory-game/internal/config"
	"github.com/robalobadob/memory-game/internal/deck"
	"github.com/robalobadob/memory-game/internal/results"
	"github.com/robalobadob/memory-game/internal/store"
)

// Server bundles router, live session store and results database.
type Server struct {
	r       *chi.Mux
	cfg     config.Config
	store   store.Store
	results *results.Store
	clk     clock.Clock
	deck    *deck.Deck
	newRand func() *rand.Rand

	dailyMu   sync.Mutex
	dailyLive map[string]string // owner|date → live daily game id
}

// Option customises a Server.
type Option func(*Server)

// WithClock sets the clock driving game timers.
func WithClock(c clock.Clock) Option { return func(s *Server) { s.clk = c } }

// WithDeck sets the symbol pools used for new games.
func WithDeck(d *deck.Deck) Option { return func(s *Server) { s.deck = d } }

// WithRand sets the random source factory for classic games.
func WithRand(f func() *rand.Rand) Option { return func(s *Server) { s.newRand = f } }

// New constructs a Server, installs middleware, and registers routes.
func New(cfg config.Config, st store.Store, res *results.Store, opts ...Option) *Server {
	s := &Server{
		r:         chi.NewRouter(),
		cfg:       cfg,
		store:     st,
		results:   res,
		clk:       clock.Real{},
		dailyLive: make(map[string]string),
	}
	for _, o := range opts {
		o(s)
	}
	if s.deck == nil {
		s.deck = deck.Current()
	}
	if s.newRand == nil {
		s.newRand = func() *rand.Rand { return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) }
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(requestLogger)   // one zerolog line per request
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(jsonContentType) // default JSON responses
	s.r.Use(s.cors)          // credentials-friendly CORS

	// WebSocket stream: no handler timeout.
	s.r.With(s.withOptionalAuth()).Get("/game/{id}/ws", s.handleWS)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"memory-go","endpoints":["/health","POST /game/new","/game/{id}","/leaderboard","/auth/*"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})
		r.Get("/debug/deck", func(w http.ResponseWriter, r *http.Request) {
			m, b := s.deck.Stats()
			writeJSON(w, http.StatusOK, map[string]int{"main": m, "bonus": b, "sessions": s.store.Len()})
		})

		// Game + daily endpoints: OPTIONAL AUTH (guests can play)
		s.mountGame(r.With(s.withOptionalAuth()))
		s.mountDaily(r.With(s.withOptionalAuth()))

		// Auth + profile/stats
		s.mountAuthRoutes(r)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Handler exposes the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.r }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// HTTPServer returns an *http.Server for addr serving this router.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Shutdown closes every live session so no game timer outlives the server.
func (s *Server) Shutdown(ctx context.Context) {
	n := s.store.CloseAll(ctx)
	log.Info().Int("sessions", n).Msg("closed live sessions")
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs method, path, status and duration at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("reqId", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// ------------------------------- helpers -----------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
