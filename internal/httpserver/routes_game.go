// internal/httpserver/routes_game.go
//
// HTTP routes for playing a game.
//   - POST /game/new            → deal a classic or daily game
//   - GET  /game/{id}           → current state (and result once announced)
//   - POST /game/{id}/select    → flip a card on the main or bonus grid
//   - POST /game/{id}/reset     → deal a fresh game in place
//   - POST /game/{id}/navigate  → the client changed page
//
// Invalid selections are not errors: they come back with accepted=false and
// the unchanged state. Finished games are persisted when the session
// announces its Stats.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory-game/internal/daily"
	"github.com/robalobadob/memory-game/internal/game"
	"github.com/robalobadob/memory-game/internal/results"
	"github.com/robalobadob/memory-game/internal/session"
	"github.com/robalobadob/memory-game/internal/store"
)

// newGameReq is the POST /game/new payload.
type newGameReq struct {
	Mode string `json:"mode"` // "classic" (default) | "daily"
}

// selectReq is the POST /game/{id}/select payload.
type selectReq struct {
	Grid   game.Grid `json:"grid"`
	CardID int       `json:"cardId"`
}

// navigateReq is the POST /game/{id}/navigate payload.
type navigateReq struct {
	Page session.Page `json:"page"`
}

// gameRes describes a live game.
type gameRes struct {
	session.Info
	State  game.Snapshot `json:"state"`
	Result *resultRes    `json:"result,omitempty"`
}

// resultRes is the end-screen summary.
type resultRes struct {
	game.Stats
	Rating string `json:"rating"`
}

type selectRes struct {
	Accepted bool          `json:"accepted"`
	State    game.Snapshot `json:"state"`
}

// mountGame registers all /game routes.
func (s *Server) mountGame(r chi.Router) {
	r.Post("/game/new", s.handleNewGame)
	r.Get("/game/{id}", s.handleGetGame)
	r.Post("/game/{id}/select", s.handleSelect)
	r.Post("/game/{id}/reset", s.handleReset)
	r.Post("/game/{id}/navigate", s.handleNavigate)
}

// handleNewGame deals a new game for the caller (user or guest). A daily
// game reuses the caller's live daily session for today, and is refused if
// today's daily result is already recorded. Resetting a daily game redeals
// the same seeded layout.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Mode == "" {
		req.Mode = results.ModeClassic
	}
	if req.Mode != results.ModeClassic && req.Mode != results.ModeDaily {
		writeError(w, http.StatusBadRequest, "bad_mode")
		return
	}

	now := s.clk.Now().UTC()
	info := session.Info{ID: uuid.NewString(), Mode: req.Mode, CreatedAt: now}
	if me := userFrom(r.Context()); me != nil {
		info.UserID = me.ID
	} else {
		info.AnonID = s.ensureAnonID(w, r)
	}

	var (
		rng    *rand.Rand
		reseed func() *rand.Rand
	)
	if req.Mode == results.ModeDaily {
		info.Date = daily.DateKey(now)
		played, err := s.results.AlreadyPlayedDaily(r.Context(), info.UserID, info.AnonID, info.Date)
		if err != nil {
			log.Error().Err(err).Msg("daily lookup")
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if played {
			writeError(w, http.StatusConflict, "already_played")
			return
		}
		if sess := s.liveDaily(r.Context(), info); sess != nil {
			writeJSON(w, http.StatusOK, describe(sess))
			return
		}
		reseed = func() *rand.Rand { return daily.Rand(now, s.cfg.DailySalt) }
		rng = reseed()
	} else {
		rng = s.newRand()
	}

	sess := session.New(info, session.Config{
		Clock:         s.clk,
		RevealDelay:   s.cfg.RevealDelay,
		CompleteDelay: s.cfg.CompleteDelay,
		Deck:          s.deck,
		Rand:          rng,
		Reseed:        reseed,
		OnComplete:    s.recordResult,
	})
	if err := s.store.Save(r.Context(), sess); err != nil {
		sess.Close()
		log.Error().Err(err).Msg("save session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	if info.Mode == results.ModeDaily {
		s.dailyMu.Lock()
		s.dailyLive[dailyKey(info)] = info.ID
		s.dailyMu.Unlock()
	}
	log.Info().Str("game", info.ID).Str("mode", info.Mode).Msg("game created")
	writeJSON(w, http.StatusCreated, describe(sess))
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, describe(sess))
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req selectReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	accepted, state := sess.Select(req.Grid, req.CardID)
	writeJSON(w, http.StatusOK, selectRes{Accepted: accepted, State: state})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sess.Reset()
	writeJSON(w, http.StatusOK, describe(sess))
}

// handleNavigate forwards a page change. Leaving the game screen tears the
// session down and forgets it.
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req navigateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Page == "" {
		writeError(w, http.StatusBadRequest, "bad_page")
		return
	}
	if sess.Navigate(req.Page) {
		writeJSON(w, http.StatusOK, describe(sess))
		return
	}
	_ = s.store.Delete(r.Context(), sess.ID)
	writeJSON(w, http.StatusOK, map[string]any{"gameId": sess.ID, "closed": true, "page": req.Page})
}

// lookup resolves {id} to a live session, writing 404 when missing or closed.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil || sess.Closed() {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Msg("get session")
		}
		writeError(w, http.StatusNotFound, "not_found")
		return nil, false
	}
	return sess, true
}

func describe(sess *session.Session) gameRes {
	res := gameRes{Info: sess.Info, State: sess.Snapshot()}
	if st, ok := sess.Result(); ok {
		res.Result = &resultRes{Stats: st, Rating: game.Rating(st.FinalScore)}
	}
	return res
}

// liveDaily returns the caller's open daily session for info.Date, if any.
func (s *Server) liveDaily(ctx context.Context, info session.Info) *session.Session {
	s.dailyMu.Lock()
	id, ok := s.dailyLive[dailyKey(info)]
	s.dailyMu.Unlock()
	if !ok {
		return nil
	}
	sess, err := s.store.Get(ctx, id)
	if err != nil || sess.Closed() {
		s.dailyMu.Lock()
		if s.dailyLive[dailyKey(info)] == id {
			delete(s.dailyLive, dailyKey(info))
		}
		s.dailyMu.Unlock()
		return nil
	}
	return sess
}

func dailyKey(info session.Info) string {
	owner := info.UserID
	if owner == "" {
		owner = "anon:" + info.AnonID
	}
	return owner + "|" + info.Date
}

// recordResult persists a finished game. It runs on the session's timer
// goroutine, outside the session lock.
func (s *Server) recordResult(info session.Info, st game.Stats) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	finished := s.clk.Now().UTC()
	date := info.Date
	if date == "" {
		date = daily.DateKey(finished)
	}
	err := s.results.RecordGame(ctx, &results.Game{
		ID:          uuid.NewString(),
		UserID:      info.UserID,
		AnonymousID: info.AnonID,
		Mode:        info.Mode,
		Date:        date,
		FinalScore:  st.FinalScore,
		TimeTaken:   st.TimeTaken,
		Moves:       st.Moves,
		StartedAt:   info.CreatedAt,
		FinishedAt:  finished,
	})
	switch {
	case errors.Is(err, results.ErrAlreadyPlayed):
		log.Info().Str("game", info.ID).Msg("daily already recorded; result not saved")
	case err != nil:
		log.Warn().Err(err).Str("game", info.ID).Msg("record result")
	default:
		log.Debug().Str("game", info.ID).Int("score", st.FinalScore).Msg("result recorded")
	}
}
