// Package rating implements the Elo update applied after every resolved duel.
package rating

import "math"

// K is the Elo K-factor used for every match.
const K = 32

// Outcome is the actual score of player A against player B.
type Outcome float64

const (
	Loss Outcome = 0
	Draw Outcome = 0.5
	Win  Outcome = 1
)

// OutcomeOf compares two final scores from A's point of view.
func OutcomeOf(scoreA, scoreB int) Outcome {
	switch {
	case scoreA > scoreB:
		return Win
	case scoreA < scoreB:
		return Loss
	default:
		return Draw
	}
}

// Expected returns the expected score of a player rated ratingA against ratingB.
func Expected(ratingA, ratingB int) float64 {
	return 1 / (1 + math.Pow(10, float64(ratingB-ratingA)/400))
}

// Update returns the new ratings of A and B. Each side's expectation is computed
// on its own, so the two deltas are not forced to be exact negatives after rounding.
func Update(ratingA, ratingB int, outcome Outcome) (int, int) {
	expectedA := Expected(ratingA, ratingB)
	expectedB := Expected(ratingB, ratingA)

	newA := roundHalfUp(float64(ratingA) + K*(float64(outcome)-expectedA))
	newB := roundHalfUp(float64(ratingB) + K*((1-float64(outcome))-expectedB))
	return newA, newB
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
