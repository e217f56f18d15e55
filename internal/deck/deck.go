// internal/deck/deck.go
//
// Symbol pools for dealing memory grids.
//
// Responsibilities:
//   - Load the main and bonus symbol pools from configured files or fall
//     back to embedded defaults.
//   - Validate pools (non-empty, distinct, large enough for a deal).
//   - Pick the symbols for one deal with a caller-supplied random source.
//
// Initialization behavior (Init):
//   1. mainPath set   → main pool read from that file (DECK_MAIN_FILE).
//   2. bonusPath set  → bonus pool read from that file (DECK_BONUS_FILE).
//   3. Otherwise the embedded default_main.txt / default_bonus.txt are used.
//
// File format: one symbol per line; blank lines and lines starting with '#'
// are ignored; surrounding whitespace is trimmed.

package deck

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
)

const (
	// MainPairs is the number of symbols dealt into the main grid.
	MainPairs = 8
	// BonusPairs is the number of symbols dealt into a bonus grid.
	BonusPairs = 2
)

//go:embed default_main.txt
var embeddedMain string

//go:embed default_bonus.txt
var embeddedBonus string

// Deck holds the symbol pools a game deals from.
type Deck struct {
	Main  []string
	Bonus []string
}

var (
	initOnce   sync.Once
	current    *Deck
	initialErr error
)

// Init loads the pools exactly once from the given files (empty paths use
// the embedded defaults) and returns any validation error.
func Init(mainPath, bonusPath string) error {
	initOnce.Do(func() {
		current, initialErr = Load(mainPath, bonusPath)
	})
	return initialErr
}

// Current returns the deck loaded by Init, or the embedded default if Init
// was never called or failed.
func Current() *Deck {
	if err := Init("", ""); err != nil || current == nil {
		return Default()
	}
	return current
}

// Default returns a deck built from the embedded symbol lists.
func Default() *Deck {
	return &Deck{
		Main:  parseLines(embeddedMain),
		Bonus: parseLines(embeddedBonus),
	}
}

// Load builds a deck, reading each pool from its path when non-empty.
func Load(mainPath, bonusPath string) (*Deck, error) {
	d := Default()
	if mainPath != "" {
		syms, err := readSymbolFile(mainPath)
		if err != nil {
			return nil, fmt.Errorf("deck: main pool: %w", err)
		}
		d.Main = syms
	}
	if bonusPath != "" {
		syms, err := readSymbolFile(bonusPath)
		if err != nil {
			return nil, fmt.Errorf("deck: bonus pool: %w", err)
		}
		d.Bonus = syms
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks that both pools hold enough distinct symbols for a deal
// and that no symbol is shared between them.
func (d *Deck) Validate() error {
	if err := validatePool("main", d.Main, MainPairs); err != nil {
		return err
	}
	if err := validatePool("bonus", d.Bonus, BonusPairs); err != nil {
		return err
	}
	main := toSet(d.Main)
	for _, s := range d.Bonus {
		if _, ok := main[s]; ok {
			return fmt.Errorf("deck: symbol %q is in both pools", s)
		}
	}
	return nil
}

// MainSymbols picks the symbols for a main grid deal.
func (d *Deck) MainSymbols(rng *rand.Rand) []string {
	return pick(d.Main, MainPairs, rng)
}

// BonusSymbols picks the symbols for a bonus grid deal.
func (d *Deck) BonusSymbols(rng *rand.Rand) []string {
	return pick(d.Bonus, BonusPairs, rng)
}

// Stats returns the pool sizes: (main, bonus).
func (d *Deck) Stats() (mainCount int, bonusCount int) {
	return len(d.Main), len(d.Bonus)
}

// pick returns n distinct symbols from pool. When the pool is exactly n
// long the pool order is kept; otherwise a random subset is drawn.
func pick(pool []string, n int, rng *rand.Rand) []string {
	out := append([]string(nil), pool...)
	if len(out) > n {
		rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		out = out[:n]
	}
	return out
}

func validatePool(name string, pool []string, need int) error {
	if len(pool) < need {
		return fmt.Errorf("deck: %s pool has %d symbols, need %d", name, len(pool), need)
	}
	seen := make(map[string]struct{}, len(pool))
	for _, s := range pool {
		if s == "" {
			return errors.New("deck: empty symbol in " + name + " pool")
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("deck: duplicate symbol %q in %s pool", s, name)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// readSymbolFile loads one symbol per line from a file.
func readSymbolFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if s, ok := normalizeLine(sc.Text()); ok {
			out = append(out, s)
		}
	}
	return out, sc.Err()
}

// parseLines processes an embedded multiline string into symbols.
func parseLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if sym, ok := normalizeLine(line); ok {
			out = append(out, sym)
		}
	}
	return out
}

func normalizeLine(line string) (string, bool) {
	s := strings.TrimSpace(line)
	if s == "" || strings.HasPrefix(s, "#") {
		return "", false
	}
	return s, true
}

func toSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, s := range list {
		m[s] = struct{}{}
	}
	return m
}
