// internal/game/types.go
//
// Core type definitions for the memory game engine.
// Defines:
//   - Card: one face of a grid (symbol + flip/match flags).
//   - Grid: which grid a selection targets (main or bonus).
//   - BonusGrid: the timed 2-pair sub-round.
//   - Stats: the summary handed to the view layer when a game completes.
//   - Snapshot: the read-only projection served to clients.

package game

// Grid names the grid a card selection targets.
type Grid string

const (
	GridMain  Grid = "main"
	GridBonus Grid = "bonus"
)

// Phase is a coarse view of the main-grid state machine:
// playing → (bonus)* → complete.
type Phase string

const (
	PhasePlaying  Phase = "playing"
	PhaseBonus    Phase = "bonus"
	PhaseComplete Phase = "complete"
)

// Card is a single card. Two cards sharing Symbol form a pair.
// Only the engine mutates Flipped and Matched; a matched card stays flipped.
type Card struct {
	ID      int    // unique within its grid; bonus ids never collide with main ids
	Symbol  string // opaque pairing token
	Flipped bool
	Matched bool
}

// BonusGrid is the timed sub-round opened by two consecutive main matches.
type BonusGrid struct {
	Cards         []Card
	Active        bool
	TimeRemaining int // seconds, counts down from BonusSeconds
	Matches       int

	flipped []int // ids of flipped-and-unresolved cards (≤2)
}

// Stats is emitted once per game when the main grid is solved.
type Stats struct {
	FinalScore int `json:"finalScore"`
	TimeTaken  int `json:"timeTaken"` // unpaused main-timer seconds
	Moves      int `json:"moves"`
}

// CardView is the client-facing representation of a card.
// Symbol is only included while the card is face up.
type CardView struct {
	ID      int    `json:"id"`
	Symbol  string `json:"symbol,omitempty"`
	Flipped bool   `json:"isFlipped"`
	Matched bool   `json:"isMatched"`
}

// BonusView is the client-facing representation of an active bonus grid.
type BonusView struct {
	Cards         []CardView `json:"cards"`
	Active        bool       `json:"isActive"`
	TimeRemaining int        `json:"timeRemaining"`
	Matches       int        `json:"matches"`
	Points        int        `json:"points"`
}

// Snapshot is the read-only projection of a game after an event.
type Snapshot struct {
	Phase              Phase      `json:"phase"`
	Cards              []CardView `json:"cards"`
	Moves              int        `json:"moves"`
	IncorrectMoves     int        `json:"incorrectMoves"`
	ElapsedSeconds     int        `json:"elapsedSeconds"`
	Score              int        `json:"score"`
	MatchedPairs       int        `json:"matchedPairs"`
	TotalPairs         int        `json:"totalPairs"`
	ConsecutiveMatches int        `json:"consecutiveMatches"`
	BonusPoints        int        `json:"bonusPoints"`
	Paused             bool       `json:"isMainGamePaused"`
	Complete           bool       `json:"isGameComplete"`
	Bonus              *BonusView `json:"bonusGrid"`
}
