// internal/game/engine.go
//
// Core game engine for a single memory-match session.
// Responsibilities:
//   - Deal a shuffled 8-pair main grid (and 2-pair bonus grids on demand).
//   - Accept card selections, silently ignoring anything invalid.
//   - Resolve each flipped pair after the reveal delay: match/mismatch,
//     moves, streaks, score, bonus trigger.
//   - Drive the per-second timers (main elapsed time, bonus countdown).
//   - Detect completion and announce Stats exactly once, after a delay.
//
// Notes:
//   - The engine is not safe for concurrent use. Callers serialise events
//     (see internal/session), including the callbacks it schedules on the
//     injected clock.
//   - Every scheduled callback is tied to the current deal; Reset and Close
//     stop pending timers and invalidate any callback already in flight.
package game

import (
	"math/rand/v2"
	"time"

	"github.com/robalobadob/memory-game/internal/clock"
	"github.com/robalobadob/memory-game/internal/deck"
)

const (
	// TotalPairs is the number of pairs in the main grid.
	TotalPairs = deck.MainPairs
	// BonusSeconds is how long a bonus grid stays open.
	BonusSeconds = 7
	// bonusTriggerStreak is the consecutive-match count that opens a bonus grid.
	bonusTriggerStreak = 2
	// bonusFirstID keeps bonus card ids clear of the main grid.
	bonusFirstID = 1000

	DefaultRevealDelay   = time.Second
	DefaultCompleteDelay = 1500 * time.Millisecond
)

// Options configures a Game. Zero values fall back to defaults.
type Options struct {
	Clock         clock.Clock
	RevealDelay   time.Duration
	CompleteDelay time.Duration
	Rand          *rand.Rand
	Deck          *deck.Deck
	// OnComplete receives the final Stats once, CompleteDelay after the
	// last pair is matched.
	OnComplete func(Stats)
}

// Game holds the state of one play session.
type Game struct {
	Cards              []Card
	Moves              int
	IncorrectMoves     int
	ElapsedSeconds     int
	Complete           bool
	Score              int
	ConsecutiveMatches int
	Bonus              *BonusGrid
	Paused             bool

	opts    Options
	flipped []int // ids of flipped-and-unresolved main cards (≤2)

	deal          uint64 // bumped on Reset; stale callbacks compare against it
	closed        bool
	resolveTimer  clock.Timer
	bonusTimer    clock.Timer
	completeTimer clock.Timer
}

// New constructs a game with a freshly shuffled main grid.
func New(opts Options) *Game {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.RevealDelay <= 0 {
		opts.RevealDelay = DefaultRevealDelay
	}
	if opts.CompleteDelay <= 0 {
		opts.CompleteDelay = DefaultCompleteDelay
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Deck == nil {
		opts.Deck = deck.Current()
	}
	g := &Game{opts: opts}
	g.Cards = dealGrid(opts.Deck.MainSymbols(opts.Rand), 0, opts.Rand)
	return g
}

// Select flips a card in the target grid. It reports whether the selection
// was accepted; rejected selections leave the state untouched.
//
// Ignored when:
//   - the game is complete or torn down;
//   - the target is the main grid and it is paused;
//   - the target grid already has two unresolved cards;
//   - the card does not exist, or is already flipped or matched;
//   - the target is the bonus grid and none is active.
func (g *Game) Select(grid Grid, cardID int) bool {
	if g.closed || g.Complete {
		return false
	}
	switch grid {
	case GridMain:
		if g.Paused || len(g.flipped) >= 2 {
			return false
		}
		i := indexOf(g.Cards, cardID)
		if i < 0 || g.Cards[i].Flipped || g.Cards[i].Matched {
			return false
		}
		g.Cards[i].Flipped = true
		g.flipped = append(g.flipped, cardID)
		if len(g.flipped) == 2 {
			g.resolveTimer = g.schedule(g.opts.RevealDelay, g.resolveMain)
		}
		return true

	case GridBonus:
		b := g.Bonus
		if b == nil || !b.Active || len(b.flipped) >= 2 {
			return false
		}
		i := indexOf(b.Cards, cardID)
		if i < 0 || b.Cards[i].Flipped || b.Cards[i].Matched {
			return false
		}
		b.Cards[i].Flipped = true
		b.flipped = append(b.flipped, cardID)
		if len(b.flipped) == 2 {
			g.bonusTimer = g.schedule(g.opts.RevealDelay, func() {
				if g.Bonus == b {
					g.resolveBonus()
				}
			})
		}
		return true
	}
	return false
}

// Tick advances the per-second timers. The main timer runs only while the
// main grid is not paused; the bonus countdown runs only while a bonus grid
// is active. When the countdown reaches zero the bonus grid is discarded
// and the main grid resumes.
func (g *Game) Tick() {
	if g.closed || g.Complete {
		return
	}
	if !g.Paused {
		g.ElapsedSeconds++
	}
	if b := g.Bonus; b != nil && b.Active {
		b.TimeRemaining--
		if b.TimeRemaining <= 0 {
			g.endBonus()
		}
	}
}

// Reset reinitialises the game to a fresh shuffled deal, cancelling every
// pending resolution and completion announcement.
func (g *Game) Reset() {
	g.ResetWith(nil)
}

// ResetWith is Reset drawing the new deal, and any later bonus grids, from
// rng. A nil rng keeps the current source.
func (g *Game) ResetWith(rng *rand.Rand) {
	if rng != nil {
		g.opts.Rand = rng
	}
	g.stopTimers()
	g.deal++
	g.Cards = dealGrid(g.opts.Deck.MainSymbols(g.opts.Rand), 0, g.opts.Rand)
	g.Moves, g.IncorrectMoves, g.ElapsedSeconds = 0, 0, 0
	g.Complete, g.Paused = false, false
	g.Score, g.ConsecutiveMatches = 0, 0
	g.Bonus = nil
	g.flipped = nil
	g.closed = false
}

// Close tears the game down. Pending timers are cancelled and any later
// call becomes a no-op.
func (g *Game) Close() {
	g.stopTimers()
	g.closed = true
}

// Phase reports where the main grid is in its state machine.
func (g *Game) Phase() Phase {
	switch {
	case g.Complete:
		return PhaseComplete
	case g.Bonus != nil && g.Bonus.Active:
		return PhaseBonus
	default:
		return PhasePlaying
	}
}

// MatchedPairs counts matched main cards, two per pair.
func (g *Game) MatchedPairs() int {
	n := 0
	for _, c := range g.Cards {
		if c.Matched {
			n++
		}
	}
	return n / 2
}

// BonusPoints is what the current bonus grid has earned. Points of a grid
// that has closed no longer count toward later score recomputations.
func (g *Game) BonusPoints() int {
	if g.Bonus == nil {
		return 0
	}
	return g.Bonus.Matches * pointsPerBonusPair
}

// Pending reports how many cards of a grid are flipped and unresolved.
func (g *Game) Pending(grid Grid) int {
	if grid == GridBonus {
		if g.Bonus == nil {
			return 0
		}
		return len(g.Bonus.flipped)
	}
	return len(g.flipped)
}

// Snapshot builds the client-facing projection.
func (g *Game) Snapshot() Snapshot {
	s := Snapshot{
		Phase:              g.Phase(),
		Cards:              cardViews(g.Cards),
		Moves:              g.Moves,
		IncorrectMoves:     g.IncorrectMoves,
		ElapsedSeconds:     g.ElapsedSeconds,
		Score:              g.Score,
		MatchedPairs:       g.MatchedPairs(),
		TotalPairs:         TotalPairs,
		ConsecutiveMatches: g.ConsecutiveMatches,
		BonusPoints:        g.BonusPoints(),
		Paused:             g.Paused,
		Complete:           g.Complete,
	}
	if b := g.Bonus; b != nil {
		s.Bonus = &BonusView{
			Cards:         cardViews(b.Cards),
			Active:        b.Active,
			TimeRemaining: b.TimeRemaining,
			Matches:       b.Matches,
			Points:        b.Matches * pointsPerBonusPair,
		}
	}
	return s
}

// resolveMain judges the two unresolved main cards.
func (g *Game) resolveMain() {
	g.resolveTimer = nil
	if len(g.flipped) != 2 {
		return
	}
	a, b := indexOf(g.Cards, g.flipped[0]), indexOf(g.Cards, g.flipped[1])
	g.flipped = nil
	g.Moves++

	if g.Cards[a].Symbol == g.Cards[b].Symbol {
		g.Cards[a].Matched, g.Cards[b].Matched = true, true
		g.ConsecutiveMatches++
		pairs := g.MatchedPairs()
		g.Score = Score(pairs, g.IncorrectMoves, g.ElapsedSeconds, g.BonusPoints())
		if g.ConsecutiveMatches == bonusTriggerStreak && g.Bonus == nil && pairs < TotalPairs {
			g.startBonus()
		}
	} else {
		g.Cards[a].Flipped, g.Cards[b].Flipped = false, false
		g.IncorrectMoves++
		g.ConsecutiveMatches = 0
		g.Score = Score(g.MatchedPairs(), g.IncorrectMoves, g.ElapsedSeconds, g.BonusPoints())
	}
	g.checkComplete()
}

// resolveBonus judges the two unresolved bonus cards.
func (g *Game) resolveBonus() {
	g.bonusTimer = nil
	bg := g.Bonus
	if bg == nil || len(bg.flipped) != 2 {
		return
	}
	a, b := indexOf(bg.Cards, bg.flipped[0]), indexOf(bg.Cards, bg.flipped[1])
	bg.flipped = nil

	if bg.Cards[a].Symbol == bg.Cards[b].Symbol {
		bg.Cards[a].Matched, bg.Cards[b].Matched = true, true
		bg.Matches++
		g.Score = Score(g.MatchedPairs(), g.IncorrectMoves, g.ElapsedSeconds, g.BonusPoints())
	} else {
		bg.Cards[a].Flipped, bg.Cards[b].Flipped = false, false
	}
}

// startBonus opens a fresh bonus grid and pauses the main grid.
func (g *Game) startBonus() {
	g.Bonus = &BonusGrid{
		Cards:         dealGrid(g.opts.Deck.BonusSymbols(g.opts.Rand), bonusFirstID, g.opts.Rand),
		Active:        true,
		TimeRemaining: BonusSeconds,
	}
	g.Paused = true
}

// endBonus discards the bonus grid and resumes the main grid. An
// unresolved bonus pair is dropped with it. The score keeps the bonus until
// the next main resolution recomputes it.
func (g *Game) endBonus() {
	if g.bonusTimer != nil {
		g.bonusTimer.Stop()
		g.bonusTimer = nil
	}
	g.Bonus = nil
	g.Paused = false
}

// checkComplete marks the game complete the first time every main card is
// matched and schedules the Stats announcement.
func (g *Game) checkComplete() {
	if g.Complete || len(g.Cards) == 0 {
		return
	}
	for _, c := range g.Cards {
		if !c.Matched {
			return
		}
	}
	g.Complete = true
	stats := Stats{FinalScore: g.Score, TimeTaken: g.ElapsedSeconds, Moves: g.Moves}
	g.completeTimer = g.schedule(g.opts.CompleteDelay, func() {
		g.completeTimer = nil
		if g.opts.OnComplete != nil {
			g.opts.OnComplete(stats)
		}
	})
}

// schedule runs f after d unless the deal changed or the game was closed
// in the meantime.
func (g *Game) schedule(d time.Duration, f func()) clock.Timer {
	deal := g.deal
	return g.opts.Clock.AfterFunc(d, func() {
		if g.closed || g.deal != deal {
			return
		}
		f()
	})
}

func (g *Game) stopTimers() {
	for _, t := range []*clock.Timer{&g.resolveTimer, &g.bonusTimer, &g.completeTimer} {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}
}

// dealGrid pairs each symbol twice, numbers the cards from firstID and
// applies a uniform shuffle.
func dealGrid(symbols []string, firstID int, rng *rand.Rand) []Card {
	cards := make([]Card, 0, len(symbols)*2)
	id := firstID
	for _, s := range symbols {
		cards = append(cards, Card{ID: id, Symbol: s}, Card{ID: id + 1, Symbol: s})
		id += 2
	}
	rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	return cards
}

func indexOf(cards []Card, id int) int {
	for i := range cards {
		if cards[i].ID == id {
			return i
		}
	}
	return -1
}

func cardViews(cards []Card) []CardView {
	views := make([]CardView, len(cards))
	for i, c := range cards {
		v := CardView{ID: c.ID, Flipped: c.Flipped, Matched: c.Matched}
		if c.Flipped || c.Matched {
			v.Symbol = c.Symbol
		}
		views[i] = v
	}
	return views
}
