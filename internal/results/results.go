// internal/results/results.go
//
// SQLite-backed persistence for user accounts and finished games.
// Responsibilities:
//   - Create and look up users (bcrypt password hashes).
//   - Record a finished game and bump the owner's aggregate stats in one
//     transaction.
//   - Query history, per-user stats and the leaderboard.
//   - Enforce "one daily game per player per date".
//
// In-progress games are never stored here; see internal/store.

package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

// Sentinel errors.
var (
	ErrUsernameTaken  = errors.New("username taken")
	ErrNotFound       = errors.New("not found")
	ErrAlreadyPlayed  = errors.New("daily already played")
	ErrInvalidSignup  = errors.New("invalid signup")
	ErrBadCredentials = errors.New("invalid username or password")
)

// Game modes.
const (
	ModeClassic = "classic"
	ModeDaily   = "daily"
)

// User matches the users table shape.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	GamesPlayed  int       `json:"gamesPlayed"`
	BestScore    *int      `json:"bestScore"`
	TotalScore   int       `json:"totalScore"`
}

// Game is one finished game.
type Game struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	AnonymousID string    `json:"-"`
	Mode        string    `json:"mode"`
	Date        string    `json:"date"`
	FinalScore  int       `json:"finalScore"`
	TimeTaken   int       `json:"timeTaken"`
	Moves       int       `json:"moves"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// Stats aggregates a user's finished games.
type Stats struct {
	GamesPlayed  int     `json:"gamesPlayed"`
	BestScore    *int    `json:"bestScore"`
	TotalScore   int     `json:"totalScore"`
	AverageScore float64 `json:"averageScore"`
}

// Entry is one leaderboard row.
type Entry struct {
	Rank       int    `json:"rank"`
	Username   string `json:"username"`
	FinalScore int    `json:"finalScore"`
	TimeTaken  int    `json:"timeTaken"`
	Moves      int    `json:"moves"`
	Date       string `json:"date"`
}

// Store wraps the results database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New returns a Store over db. now defaults to time.Now.
func New(db *sql.DB, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{db: db, now: now}
}

// ------------------------------- users -------------------------------------

// CreateUser validates input, hashes the password and inserts a new user.
func (s *Store) CreateUser(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if err := validateSignup(username, password); err != nil {
		return nil, err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(h),
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// Authenticate returns the user when username and password match.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.UserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrBadCredentials
	}
	return u, nil
}

const userCols = `id, username, password_hash, created_at, games_played, best_score, total_score`

// UserByID loads a user or returns ErrNotFound.
func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=?`, id))
}

// UserByUsername loads a user (case-insensitive) or returns ErrNotFound.
func (s *Store) UserByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE username=?`, username))
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u       User
		created string
		best    sql.NullInt64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created, &u.GamesPlayed, &best, &u.TotalScore); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt = parseTime(created)
	if best.Valid {
		v := int(best.Int64)
		u.BestScore = &v
	}
	return &u, nil
}

// validateSignup enforces basic username/password rules.
func validateSignup(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return fmt.Errorf("%w: username must be 3-24 chars", ErrInvalidSignup)
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return fmt.Errorf("%w: username: letters, numbers, underscore only", ErrInvalidSignup)
		}
	}
	if len(p) < 8 || len(p) > 100 {
		return fmt.Errorf("%w: password must be 8-100 chars", ErrInvalidSignup)
	}
	return nil
}

// ------------------------------- games -------------------------------------

// RecordGame inserts a finished game. When the game has an owning user, the
// user's aggregate stats are bumped in the same transaction. A second daily
// result for the same player and date returns ErrAlreadyPlayed.
func (s *Store) RecordGame(ctx context.Context, g *Game) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.FinishedAt.IsZero() {
		g.FinishedAt = s.now()
	}
	if g.Mode == ModeDaily {
		played, err := s.AlreadyPlayedDaily(ctx, g.UserID, g.AnonymousID, g.Date)
		if err != nil {
			return err
		}
		if played {
			return ErrAlreadyPlayed
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO games
		(id, user_id, anonymous_id, mode, date, final_score, time_taken, moves, started_at, finished_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		g.ID, nullable(g.UserID), nullable(g.AnonymousID), g.Mode, g.Date,
		g.FinalScore, g.TimeTaken, g.Moves,
		g.StartedAt.UTC().Format(time.RFC3339), g.FinishedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyPlayed
		}
		return fmt.Errorf("insert game: %w", err)
	}

	if g.UserID != "" {
		if err := bumpStats(ctx, tx, g.UserID, g.FinalScore); err != nil {
			return fmt.Errorf("bump stats: %w", err)
		}
	}
	return tx.Commit()
}

// bumpStats increments games played and folds score into best/total.
func bumpStats(ctx context.Context, tx *sql.Tx, userID string, score int) error {
	res, err := tx.ExecContext(ctx, `UPDATE users SET
		games_played = games_played + 1,
		total_score  = total_score + ?,
		best_score   = CASE WHEN best_score IS NULL OR best_score < ? THEN ? ELSE best_score END
		WHERE id=?`, score, score, score, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AlreadyPlayedDaily reports whether the player (user, or anonymous id when
// userID is empty) has a daily result for date.
func (s *Store) AlreadyPlayedDaily(ctx context.Context, userID, anonID, date string) (bool, error) {
	col, arg := "user_id", userID
	if userID == "" {
		if anonID == "" {
			return false, nil
		}
		col, arg = "anonymous_id", anonID
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM games WHERE mode=? AND date=? AND `+col+`=? LIMIT 1`, ModeDaily, date, arg).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query daily: %w", err)
	}
	return true, nil
}

// RecentGames returns a user's latest finished games, newest first.
func (s *Store) RecentGames(ctx context.Context, userID string, limit int) ([]Game, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, mode, date, final_score, time_taken, moves, started_at, finished_at
		FROM games WHERE user_id=? ORDER BY finished_at DESC, created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	out := []Game{}
	for rows.Next() {
		var (
			g                 Game
			started, finished string
		)
		if err := rows.Scan(&g.ID, &g.Mode, &g.Date, &g.FinalScore, &g.TimeTaken, &g.Moves, &started, &finished); err != nil {
			return nil, err
		}
		g.UserID = userID
		g.StartedAt = parseTime(started)
		g.FinishedAt = parseTime(finished)
		out = append(out, g)
	}
	return out, rows.Err()
}

// UserStats returns the aggregate stats for a user.
func (s *Store) UserStats(ctx context.Context, userID string) (*Stats, error) {
	u, err := s.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	st := &Stats{GamesPlayed: u.GamesPlayed, BestScore: u.BestScore, TotalScore: u.TotalScore}
	if u.GamesPlayed > 0 {
		st.AverageScore = float64(u.TotalScore) / float64(u.GamesPlayed)
	}
	return st, nil
}

// Leaderboard returns the top results for mode, highest score first, ties
// broken by time then moves. An empty date ranks across all dates. Guests
// are listed as "guest".
func (s *Store) Leaderboard(ctx context.Context, mode, date string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := `SELECT COALESCE(u.username, 'guest'), g.final_score, g.time_taken, g.moves, g.date
		FROM games g LEFT JOIN users u ON u.id = g.user_id
		WHERE g.mode=?`
	args := []any{mode}
	if date != "" {
		q += ` AND g.date=?`
		args = append(args, date)
	}
	q += ` ORDER BY g.final_score DESC, g.time_taken ASC, g.moves ASC, g.finished_at ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Username, &e.FinalScore, &e.TimeTaken, &e.Moves, &e.Date); err != nil {
			return nil, err
		}
		e.Rank = len(out) + 1
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClaimAnonGames transfers anonymous games to a user account after auth and
// folds their scores into the user's stats. Daily results that would clash
// with one the user already has stay anonymous.
func (s *Store) ClaimAnonGames(ctx context.Context, anonID, userID string) (int, error) {
	if anonID == "" || userID == "" {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id, final_score FROM games
		WHERE anonymous_id=? AND user_id IS NULL
		AND NOT (mode=? AND date IN (SELECT date FROM games WHERE user_id=? AND mode=?))`,
		anonID, ModeDaily, userID, ModeDaily)
	if err != nil {
		return 0, fmt.Errorf("query anon games: %w", err)
	}
	type claim struct {
		id    string
		score int
	}
	var claims []claim
	for rows.Next() {
		var c claim
		if err := rows.Scan(&c.id, &c.score); err != nil {
			rows.Close()
			return 0, err
		}
		claims = append(claims, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, c := range claims {
		if _, err := tx.ExecContext(ctx, `UPDATE games SET user_id=?, anonymous_id=NULL WHERE id=?`, userID, c.id); err != nil {
			return 0, fmt.Errorf("claim %s: %w", c.id, err)
		}
		if err := bumpStats(ctx, tx, userID, c.score); err != nil {
			return 0, fmt.Errorf("bump stats: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(claims), nil
}

// ------------------------------- util --------------------------------------

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// parseTime parses RFC3339 timestamps; on error returns zero time.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
