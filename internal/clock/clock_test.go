package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestRealClockNow(t *testing.T) {
	clk := Real{}
	if clk.Now().IsZero() {
		t.Fatalf("expected non-zero time")
	}
}

func TestRealClockAfterFuncStop(t *testing.T) {
	tm := Real{}.AfterFunc(time.Hour, func() { t.Error("should not fire") })
	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
}

func TestFakeAdvance(t *testing.T) {
	clk := NewFake(epoch)
	require.True(t, clk.Now().Equal(epoch))

	clk.Advance(1500 * time.Millisecond)
	assert.True(t, clk.Now().Equal(epoch.Add(1500*time.Millisecond)))
}

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	clk := NewFake(epoch)
	var got []string
	clk.AfterFunc(2*time.Second, func() { got = append(got, "b") })
	clk.AfterFunc(time.Second, func() { got = append(got, "a") })
	clk.AfterFunc(2*time.Second, func() { got = append(got, "c") })

	clk.Advance(500 * time.Millisecond)
	assert.Empty(t, got)

	clk.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 0, clk.Pending())
}

func TestFakeCallbackSeesDeadline(t *testing.T) {
	clk := NewFake(epoch)
	var at time.Time
	clk.AfterFunc(time.Second, func() { at = clk.Now() })
	clk.Advance(5 * time.Second)
	assert.True(t, at.Equal(epoch.Add(time.Second)))
	assert.True(t, clk.Now().Equal(epoch.Add(5*time.Second)))
}

func TestFakeNestedScheduling(t *testing.T) {
	clk := NewFake(epoch)
	fired := 0
	var rearm func()
	rearm = func() {
		fired++
		clk.AfterFunc(time.Second, rearm)
	}
	clk.AfterFunc(time.Second, rearm)

	clk.Advance(3 * time.Second)
	assert.Equal(t, 3, fired)
	assert.Equal(t, 1, clk.Pending())
}

func TestFakeStop(t *testing.T) {
	clk := NewFake(epoch)
	tm := clk.AfterFunc(time.Second, func() { t.Error("stopped timer fired") })
	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	clk.Advance(time.Minute)

	done := clk.AfterFunc(time.Second, func() {})
	clk.Advance(time.Second)
	assert.False(t, done.Stop(), "Stop after firing")
}
