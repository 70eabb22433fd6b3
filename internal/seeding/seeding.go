// Package seeding computes bracket sizes, balanced seed placement and round
// names. Everything here is a pure function of the entrant count.
package seeding

import (
	"fmt"
	"math/bits"
)

// BracketSize gets the nearest power of 2 while rounding up, so with input 5
// it returns 8. Anything below 2 still gets a bracket of 2.
func BracketSize(n int) int {
	if n <= 2 {
		return 2
	}
	return 1 << bits.Len(uint(n-1))
}

// TotalRounds is log2 of a power-of-two bracket size.
func TotalRounds(bracketSize int) int {
	return bits.TrailingZeros(uint(bracketSize))
}

// SlotOrder lists seeds (1-based) in slot order. Each level pairs every seed s
// of the half-size draw with its mirror size+1-s, so seeds 1 and 2 only meet in
// the final.
func SlotOrder(bracketSize int) []int {
	if bracketSize <= 2 {
		return []int{1, 2}
	}

	prev := SlotOrder(bracketSize / 2)
	order := make([]int, 0, bracketSize)
	for _, seed := range prev {
		order = append(order, seed, bracketSize+1-seed)
	}
	return order
}

// SeedPositions returns, for every seed 1..bracketSize, its 0-indexed slot:
// positions[seed-1] is the slot of seed.
func SeedPositions(bracketSize int) []int {
	order := SlotOrder(bracketSize)
	positions := make([]int, len(order))
	for slot, seed := range order {
		positions[seed-1] = slot
	}
	return positions
}

// RoundOnePairs returns the seed pairs of every round 1 match, in match order.
func RoundOnePairs(bracketSize int) [][2]int {
	order := SlotOrder(bracketSize)
	pairs := make([][2]int, 0, len(order)/2)
	for i := 0; i < len(order); i += 2 {
		pairs = append(pairs, [2]int{order[i], order[i+1]})
	}
	return pairs
}

func RoundName(round, totalRounds int) string {
	switch totalRounds - round {
	case 0:
		return "Finals"
	case 1:
		return "Semi-Finals"
	case 2:
		return "Quarter-Finals"
	default:
		return fmt.Sprintf("Round %d", round)
	}
}
