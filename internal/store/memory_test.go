package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/memory-game/internal/clock"
	"github.com/robalobadob/memory-game/internal/session"
)

func newSession(clk clock.Clock, id string) *session.Session {
	return session.New(session.Info{ID: id, Mode: "classic"}, session.Config{Clock: clk})
}

func TestSaveGetDelete(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Unix(0, 0))
	st := NewMemoryStore()

	s := newSession(clk, "a")
	require.NoError(t, st.Save(ctx, s))

	got, err := st.Get(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = st.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.Delete(ctx, "a"))
	assert.True(t, s.Closed())
	_, err = st.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, st.Delete(ctx, "a"))
}

func TestSaveReplacesAndClosesOld(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Unix(0, 0))
	st := NewMemoryStore()

	old := newSession(clk, "a")
	fresh := newSession(clk, "a")
	require.NoError(t, st.Save(ctx, old))
	require.NoError(t, st.Save(ctx, fresh))

	assert.True(t, old.Closed())
	assert.False(t, fresh.Closed())
	assert.Equal(t, 1, st.Len())
}

func TestReapIdleAndClosed(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Unix(0, 0))
	st := NewMemoryStore()

	idle := newSession(clk, "idle")
	clk.Advance(10 * time.Minute)
	busy := newSession(clk, "busy")
	done := newSession(clk, "done")
	done.Close()
	for _, s := range []*session.Session{idle, busy, done} {
		require.NoError(t, st.Save(ctx, s))
	}

	n := st.Reap(ctx, clk.Now().Add(-5*time.Minute))
	assert.Equal(t, 2, n)
	assert.True(t, idle.Closed())
	assert.Equal(t, 1, st.Len())

	_, err := st.Get(ctx, "busy")
	assert.NoError(t, err)
}

func TestCloseAll(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Unix(0, 0))
	st := NewMemoryStore()

	a, b := newSession(clk, "a"), newSession(clk, "b")
	require.NoError(t, st.Save(ctx, a))
	require.NoError(t, st.Save(ctx, b))

	assert.Equal(t, 2, st.CloseAll(ctx))
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
	assert.Equal(t, 0, st.Len())
	assert.Equal(t, 0, clk.Pending())
	assert.Equal(t, 0, st.CloseAll(ctx))
}
