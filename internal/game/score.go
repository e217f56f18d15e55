// internal/game/score.go
//
// Scoring rules and the end-screen rating.

package game

const (
	pointsPerPair      = 100
	penaltyPerMiss     = 50
	speedBonusMax      = 200
	speedBonusStepSecs = 5
	pointsPerBonusPair = 150
)

// Score is the pure scoring function. The speed bonus only applies once
// every main pair is matched. The result may be negative.
func Score(matchedPairs, incorrectMoves, elapsedSeconds, bonusPoints int) int {
	score := matchedPairs*pointsPerPair - incorrectMoves*penaltyPerMiss + bonusPoints
	if matchedPairs == TotalPairs {
		score += max(0, speedBonusMax-elapsedSeconds/speedBonusStepSecs)
	}
	return score
}

// Rating is the end-screen verdict for a final score.
func Rating(finalScore int) string {
	switch {
	case finalScore >= 800:
		return "Outstanding!"
	case finalScore >= 600:
		return "Great Job!"
	case finalScore >= 400:
		return "Well Done!"
	default:
		return "Good Effort!"
	}
}
