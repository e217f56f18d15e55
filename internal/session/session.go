// internal/session/session.go
//
// Runtime wrapper around one game.Game.
// Responsibilities:
//   - Serialise every event that touches the game: player selections, the
//     once-per-second tick, and the engine's scheduled resolutions and
//     completion announcement all run under one mutex, one at a time.
//   - Drive the tick as a re-armed clock timer that is cancelled on reset,
//     completion and teardown.
//   - Fan state changes out to subscribers (WebSocket clients) without ever
//     blocking on a slow one.
//   - Hand the final Stats to the owner (persistence) outside the lock.
//   - Handle navigation requests from the view layer.

package session

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory-game/internal/clock"
	"github.com/robalobadob/memory-game/internal/deck"
	"github.com/robalobadob/memory-game/internal/game"
)

// TickInterval is the period of the game timers.
const TickInterval = time.Second

// subscriberBuffer bounds how far a subscriber may lag before it is dropped.
const subscriberBuffer = 32

// Page is a screen of the client app.
type Page string

const (
	PageStart        Page = "start"
	PageInstructions Page = "instructions"
	PageGame         Page = "game"
	PageEnd          Page = "end"
)

// EventType tags messages delivered to subscribers.
type EventType string

const (
	EventState    EventType = "state"
	EventComplete EventType = "complete"
	EventClosed   EventType = "closed"
)

// Event is one message to subscribers.
type Event struct {
	Type   EventType      `json:"type"`
	State  *game.Snapshot `json:"state,omitempty"`
	Stats  *game.Stats    `json:"stats,omitempty"`
	Rating string         `json:"rating,omitempty"`
}

// Info describes who is playing what. It never changes after New.
type Info struct {
	ID        string    `json:"gameId"`
	Mode      string    `json:"mode"`
	Date      string    `json:"date,omitempty"`
	UserID    string    `json:"-"`
	AnonID    string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Config configures a Session.
type Config struct {
	Clock         clock.Clock
	RevealDelay   time.Duration
	CompleteDelay time.Duration
	Deck          *deck.Deck
	Rand          *rand.Rand
	// Reseed, when set, supplies the random source for every deal after the
	// first, so a fixed-seed game redeals the same layout on reset.
	Reseed func() *rand.Rand
	// OnComplete is called once per deal with the final Stats, outside the
	// session lock.
	OnComplete func(Info, game.Stats)
}

// Session owns a game and everything that may mutate it.
type Session struct {
	Info

	mu         sync.Mutex
	clk        clock.Clock
	g          *game.Game
	tick       clock.Timer
	tickGen    uint64 // bumped on every arm and stop; stale ticks compare against it
	reseed     func() *rand.Rand
	subs       map[chan Event]struct{}
	lastActive time.Time
	closed     bool
	result     *game.Stats
	onComplete func(Info, game.Stats)
	deferred   []func()
	log        zerolog.Logger
}

// New starts a session: the main grid is dealt and the tick is armed.
func New(info Info, cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if info.CreatedAt.IsZero() {
		info.CreatedAt = cfg.Clock.Now()
	}
	s := &Session{
		Info:       info,
		clk:        cfg.Clock,
		subs:       make(map[chan Event]struct{}),
		lastActive: cfg.Clock.Now(),
		onComplete: cfg.OnComplete,
		reseed:     cfg.Reseed,
		log:        log.With().Str("game", info.ID).Str("mode", info.Mode).Logger(),
	}
	s.g = game.New(game.Options{
		Clock:         serialClock{s},
		RevealDelay:   cfg.RevealDelay,
		CompleteDelay: cfg.CompleteDelay,
		Rand:          cfg.Rand,
		Deck:          cfg.Deck,
		OnComplete:    s.handleComplete,
	})

	s.mu.Lock()
	s.armTick()
	s.mu.Unlock()
	s.log.Debug().Msg("session started")
	return s
}

// Select forwards a card selection to the game. It reports whether the
// selection was accepted and returns the resulting projection.
func (s *Session) Select(grid game.Grid, cardID int) (bool, game.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.clk.Now()
	ok := s.g.Select(grid, cardID)
	if ok {
		s.publishState()
	}
	return ok, s.g.Snapshot()
}

// Snapshot returns the current projection.
func (s *Session) Snapshot() game.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g.Snapshot()
}

// Result returns the announced Stats, if the game has completed and the
// announcement has fired.
func (s *Session) Result() (game.Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return game.Stats{}, false
	}
	return *s.result, true
}

// Reset deals a fresh game in place. Pending timers of the old deal are
// cancelled.
func (s *Session) Reset() game.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.g.Snapshot()
	}
	s.lastActive = s.clk.Now()
	s.stopTick()
	if s.reseed != nil {
		s.g.ResetWith(s.reseed())
	} else {
		s.g.Reset()
	}
	s.result = nil
	s.armTick()
	s.publishState()
	s.log.Debug().Msg("session reset")
	return s.g.Snapshot()
}

// Navigate handles a page change requested by the view layer. Going back
// to the game screen deals a new game; any other page leaves the game and
// tears the session down. It reports whether the session is still open.
func (s *Session) Navigate(page Page) bool {
	if page == PageGame {
		s.Reset()
		return !s.Closed()
	}
	s.Close()
	return false
}

// Close tears the session down: the tick and every engine timer are
// cancelled and subscribers are notified and released. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopTick()
	s.g.Close()
	s.publish(Event{Type: EventClosed})
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
	s.log.Debug().Msg("session closed")
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// LastActive is the time of the last player action.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Subscribe registers a listener. The current state is delivered first.
// The channel is closed when the session closes, when cancel is called, or
// when the listener falls too far behind.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Event, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	snap := s.g.Snapshot()
	ch <- Event{Type: EventState, State: &snap}
	s.subs[ch] = struct{}{}
	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// armTick schedules the next tick. Caller holds mu.
func (s *Session) armTick() {
	s.tickGen++
	gen := s.tickGen
	s.tick = s.clk.AfterFunc(TickInterval, func() { s.onTick(gen) })
}

// stopTick cancels the pending tick. A tick already in flight finds the
// generation changed and does nothing. Caller holds mu.
func (s *Session) stopTick() {
	s.tickGen++
	if s.tick != nil {
		s.tick.Stop()
		s.tick = nil
	}
}

func (s *Session) onTick(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.tickGen {
		s.mu.Unlock()
		return
	}
	s.g.Tick()
	s.publishState()
	if s.g.Complete {
		s.tick = nil
	} else {
		s.armTick()
	}
	s.mu.Unlock()
}

// handleComplete runs inside a serialised engine callback.
func (s *Session) handleComplete(stats game.Stats) {
	s.result = &stats
	s.publish(Event{Type: EventComplete, Stats: &stats, Rating: game.Rating(stats.FinalScore)})
	s.log.Info().
		Int("score", stats.FinalScore).
		Int("time", stats.TimeTaken).
		Int("moves", stats.Moves).
		Msg("game complete")
	if s.onComplete != nil {
		info := s.Info
		s.deferred = append(s.deferred, func() { s.onComplete(info, stats) })
	}
}

// publishState sends the current projection. Caller holds mu.
func (s *Session) publishState() {
	snap := s.g.Snapshot()
	s.publish(Event{Type: EventState, State: &snap})
}

// publish delivers ev to every subscriber, dropping any whose buffer is
// full. Caller holds mu.
func (s *Session) publish(ev Event) {
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
			close(ch)
			delete(s.subs, ch)
			s.log.Warn().Msg("dropped slow subscriber")
		}
	}
}

// serialClock hands the engine a scheduler whose callbacks run under the
// session lock, followed by a state broadcast. Work queued by the callback
// in s.deferred runs after the lock is released.
type serialClock struct{ s *Session }

func (c serialClock) Now() time.Time { return c.s.clk.Now() }

func (c serialClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	s := c.s
	return s.clk.AfterFunc(d, func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		f()
		s.publishState()
		deferred := s.deferred
		s.deferred = nil
		s.mu.Unlock()

		for _, fn := range deferred {
			fn()
		}
	})
}
