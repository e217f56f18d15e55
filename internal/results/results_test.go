package results

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/memory-game/internal/db"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.OpenAndMigrate(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return New(conn, func() time.Time { return epoch })
}

func TestCreateUserAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	u, err := s.CreateUser(ctx, "  alice ", "password1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.NotEqual(t, "password1", u.PasswordHash)

	_, err = s.CreateUser(ctx, "ALICE", "password2")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	got, err := s.Authenticate(ctx, "Alice", "password1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.CreatedAt.Equal(epoch))
	assert.Nil(t, got.BestScore)

	_, err = s.Authenticate(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = s.Authenticate(ctx, "nobody", "password1")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = s.UserByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUserValidation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	cases := []struct{ name, user, pass string }{
		{"short username", "ab", "password1"},
		{"bad chars", "bad name!", "password1"},
		{"short password", "bob", "short"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreateUser(ctx, tc.user, tc.pass)
			assert.ErrorIs(t, err, ErrInvalidSignup)
		})
	}
}

func TestRecordGameBumpsStats(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u, err := s.CreateUser(ctx, "carol", "password1")
	require.NoError(t, err)

	for _, score := range []int{900, 450, -150} {
		require.NoError(t, s.RecordGame(ctx, &Game{
			UserID: u.ID, Mode: ModeClassic, Date: "2025-03-01",
			FinalScore: score, TimeTaken: 60, Moves: 10, StartedAt: epoch,
		}))
	}

	st, err := s.UserStats(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, st.GamesPlayed)
	require.NotNil(t, st.BestScore)
	assert.Equal(t, 900, *st.BestScore)
	assert.Equal(t, 1200, st.TotalScore)
	assert.InDelta(t, 400.0, st.AverageScore, 0.001)

	games, err := s.RecentGames(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, games, 3)
	assert.Equal(t, ModeClassic, games[0].Mode)
}

func TestDailyOncePerPlayer(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u, err := s.CreateUser(ctx, "dave", "password1")
	require.NoError(t, err)

	daily := func(userID, anon, date string) *Game {
		return &Game{UserID: userID, AnonymousID: anon, Mode: ModeDaily, Date: date, FinalScore: 500, StartedAt: epoch}
	}

	require.NoError(t, s.RecordGame(ctx, daily(u.ID, "", "2025-03-01")))
	assert.ErrorIs(t, s.RecordGame(ctx, daily(u.ID, "", "2025-03-01")), ErrAlreadyPlayed)
	require.NoError(t, s.RecordGame(ctx, daily(u.ID, "", "2025-03-02")))

	require.NoError(t, s.RecordGame(ctx, daily("", "anon-1", "2025-03-01")))
	assert.ErrorIs(t, s.RecordGame(ctx, daily("", "anon-1", "2025-03-01")), ErrAlreadyPlayed)

	played, err := s.AlreadyPlayedDaily(ctx, "", "anon-2", "2025-03-01")
	require.NoError(t, err)
	assert.False(t, played)
	played, err = s.AlreadyPlayedDaily(ctx, "", "", "2025-03-01")
	require.NoError(t, err)
	assert.False(t, played)
}

func TestLeaderboardOrdering(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u, err := s.CreateUser(ctx, "erin", "password1")
	require.NoError(t, err)

	rows := []Game{
		{UserID: u.ID, Mode: ModeClassic, Date: "2025-03-01", FinalScore: 800, TimeTaken: 90, Moves: 12},
		{AnonymousID: "a", Mode: ModeClassic, Date: "2025-03-01", FinalScore: 800, TimeTaken: 60, Moves: 14},
		{AnonymousID: "b", Mode: ModeClassic, Date: "2025-03-02", FinalScore: 950, TimeTaken: 40, Moves: 8},
		{AnonymousID: "c", Mode: ModeDaily, Date: "2025-03-01", FinalScore: 999, TimeTaken: 30, Moves: 8},
	}
	for i := range rows {
		rows[i].StartedAt = epoch
		require.NoError(t, s.RecordGame(ctx, &rows[i]))
	}

	all, err := s.Leaderboard(ctx, ModeClassic, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 950, all[0].FinalScore)
	assert.Equal(t, "guest", all[1].Username)
	assert.Equal(t, 60, all[1].TimeTaken)
	assert.Equal(t, "erin", all[2].Username)
	assert.Equal(t, 3, all[2].Rank)

	day, err := s.Leaderboard(ctx, ModeDaily, "2025-03-01", 0)
	require.NoError(t, err)
	require.Len(t, day, 1)
	assert.Equal(t, 999, day[0].FinalScore)
}

func TestClaimAnonGames(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u, err := s.CreateUser(ctx, "frank", "password1")
	require.NoError(t, err)

	require.NoError(t, s.RecordGame(ctx, &Game{UserID: u.ID, Mode: ModeDaily, Date: "2025-03-01", FinalScore: 100, StartedAt: epoch}))
	require.NoError(t, s.RecordGame(ctx, &Game{AnonymousID: "anon", Mode: ModeDaily, Date: "2025-03-01", FinalScore: 700, StartedAt: epoch}))
	require.NoError(t, s.RecordGame(ctx, &Game{AnonymousID: "anon", Mode: ModeClassic, Date: "2025-03-01", FinalScore: 300, StartedAt: epoch}))

	n, err := s.ClaimAnonGames(ctx, "anon", u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "clashing daily result stays anonymous")

	st, err := s.UserStats(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.GamesPlayed)
	assert.Equal(t, 400, st.TotalScore)

	n, err = s.ClaimAnonGames(ctx, "", u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
