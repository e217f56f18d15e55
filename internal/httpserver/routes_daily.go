// internal/httpserver/routes_daily.go
//
// HTTP routes for the daily deal and the leaderboard.
//   - GET /daily        → today's date key and whether the caller has played it
//   - GET /leaderboard  → top results (?mode=daily|classic&date=YYYY-MM-DD&limit=N)
//
// Everyone gets the same shuffle on a given UTC day (see internal/daily);
// each player can record one daily result per day.

package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory-game/internal/daily"
	"github.com/robalobadob/memory-game/internal/results"
)

type dailyRes struct {
	Date   string `json:"date"`
	Played bool   `json:"played"`
}

type leaderboardRes struct {
	Mode    string          `json:"mode"`
	Date    string          `json:"date,omitempty"`
	Entries []results.Entry `json:"entries"`
}

// mountDaily registers the daily + leaderboard routes.
func (s *Server) mountDaily(r chi.Router) {
	r.Get("/daily", s.handleDailyStatus)
	r.Get("/leaderboard", s.handleLeaderboard)
}

func (s *Server) handleDailyStatus(w http.ResponseWriter, r *http.Request) {
	date := daily.DateKey(s.clk.Now())
	res := dailyRes{Date: date}

	var userID, anonID string
	if me := userFrom(r.Context()); me != nil {
		userID = me.ID
	} else if c, err := r.Cookie(anonCookieName); err == nil {
		anonID = c.Value
	}
	played, err := s.results.AlreadyPlayedDaily(r.Context(), userID, anonID, date)
	if err != nil {
		log.Error().Err(err).Msg("daily status")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	res.Played = played
	writeJSON(w, http.StatusOK, res)
}

// handleLeaderboard ranks finished games. Daily defaults to today; classic
// defaults to all dates.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("mode")
	if mode == "" {
		mode = results.ModeDaily
	}
	if mode != results.ModeDaily && mode != results.ModeClassic {
		writeError(w, http.StatusBadRequest, "bad_mode")
		return
	}
	date := q.Get("date")
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			writeError(w, http.StatusBadRequest, "bad_date")
			return
		}
	} else if mode == results.ModeDaily {
		date = daily.DateKey(s.clk.Now())
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	entries, err := s.results.Leaderboard(r.Context(), mode, date, limit)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, leaderboardRes{Mode: mode, Date: date, Entries: entries})
}
